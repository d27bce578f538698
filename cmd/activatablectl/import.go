package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"activatable/internal/app"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/infrastructure/storage/postgres"
)

const fileFlag = "file"

func newImportCommand(s *session) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		fileFlag: &cobraflags.StringFlag{Name: fileFlag, Usage: "JSON array of records"},
	}

	cmd := &cobra.Command{
		Use:   "import <model>",
		Short: "Bulk-load records with COPY and announce them as created",
		Long: `import decodes a JSON array of records, runs the same create checks a
single create runs (over the batch as a whole and against stored records),
writes them with one COPY inside a transaction and then announces every new
record as an activation change, grouped by flag value. Requires database.dsn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags[fileFlag].GetString()
			if path == "" {
				return apperror.NewValidation("--file is required")
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			var items []json.RawMessage
			if err := json.Unmarshal(raw, &items); err != nil {
				return apperror.NewValidation("file must hold a JSON array").WithDetail("error", err.Error())
			}
			if s.cfg.InMemory() {
				return apperror.NewValidation("import requires database.dsn")
			}

			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				n, err := importRecords(ctx, a, admin, items)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported: %d %s records\n", n, admin.Name())
				return nil
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func importRecords(ctx context.Context, a *app.App, admin domain.ModelAdmin, items []json.RawMessage) (int64, error) {
	records, err := decodeRecords(ctx, admin, items)
	if err != nil {
		return 0, err
	}

	inserter := postgres.NewBatchInserter(a.PgTx)
	model := admin.Model()

	var n int64
	err = a.PgTx.RunInTransaction(ctx, func(ctx context.Context) error {
		// COPY skips Save, so the create checks run here over the whole batch.
		if err := admin.Prepare(ctx, records); err != nil {
			return err
		}

		rows := make([]any, len(records))
		for i, m := range records {
			rows[i] = m
		}
		n, err = inserter.CopyRecords(ctx, model, rows)
		if err != nil {
			return err
		}

		// Creation counts as a change; the dispatcher sends after commit.
		active, inactive := splitByFlag(records)
		if err := a.Dispatcher.Changed(ctx, model.Name, active, true); err != nil {
			return err
		}
		return a.Dispatcher.Changed(ctx, model.Name, inactive, false)
	})
	return n, err
}

// decodeRecords builds and validates every item.
func decodeRecords(ctx context.Context, admin domain.ModelAdmin, items []json.RawMessage) ([]domain.Model, error) {
	records := make([]domain.Model, 0, len(items))
	for i, item := range items {
		m, err := admin.Decode(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, m)
	}
	return records, nil
}

func splitByFlag(records []domain.Model) (active, inactive []id.ID) {
	for _, m := range records {
		if m.IsActivated() {
			active = append(active, m.GetID())
		} else {
			inactive = append(inactive, m.GetID())
		}
	}
	return active, inactive
}
