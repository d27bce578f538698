package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"activatable/internal/app"
	"activatable/internal/core/apperror"
	"activatable/internal/core/id"
	"activatable/internal/domain"
	"activatable/internal/domain/filter"
)

const (
	dataFlag   = "data"
	searchFlag = "search"
	activeFlag = "active"
	filterFlag = "filter"
	limitFlag  = "limit"
)

// adminOf resolves the record type named by the first argument.
func adminOf(a *app.App, name string) (domain.ModelAdmin, error) {
	return a.Admins.Get(name)
}

// readData returns the --data value, reading a file when it starts with @.
func readData(v string) ([]byte, error) {
	if v == "" {
		return nil, apperror.NewValidation("--data is required")
	}
	if v[0] == '@' {
		b, err := os.ReadFile(v[1:])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", v[1:], err)
		}
		return b, nil
	}
	return []byte(v), nil
}

func newListCommand(s *session) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		searchFlag: &cobraflags.StringFlag{Name: searchFlag, Usage: "Match code or name"},
		activeFlag: &cobraflags.StringFlag{Name: activeFlag, Usage: "Filter by flag: true or false"},
		filterFlag: &cobraflags.StringFlag{Name: filterFlag, Usage: "JSON array of filter items"},
		limitFlag:  &cobraflags.StringFlag{Name: limitFlag, Value: "50", Usage: "Maximum number of records"},
	}

	cmd := &cobra.Command{
		Use:   "list <model>",
		Short: "List records of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := listFilter(flags)
			if err != nil {
				return err
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				res, err := admin.List(ctx, f)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func listFilter(flags map[string]cobraflags.Flag) (domain.ListFilter, error) {
	f := domain.DefaultListFilter()
	f.Search = flags[searchFlag].GetString()

	if v := flags[limitFlag].GetString(); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return f, apperror.NewValidation("--limit must be a positive integer")
		}
		f.Limit = limit
	}
	if v := flags[activeFlag].GetString(); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperror.NewValidation("--active must be true or false")
		}
		f.Active = &active
	}
	if v := flags[filterFlag].GetString(); v != "" {
		var items []filter.Item
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			return f, apperror.NewValidation("invalid --filter").WithDetail("error", err.Error())
		}
		f.AdvancedFilters = items
	}
	return f, nil
}

func newGetCommand(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "get <model> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := id.Parse(args[1])
			if err != nil {
				return apperror.NewValidation("invalid id").WithDetail("id", args[1])
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				rec, err := admin.Get(ctx, entityID)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
}

func newCreateCommand(s *session) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		dataFlag: &cobraflags.StringFlag{Name: dataFlag, Usage: "Record as JSON, or @file"},
	}

	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a record; creation always announces an activation change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(flags[dataFlag].GetString())
			if err != nil {
				return err
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				rec, err := admin.Create(ctx, data)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func newUpdateCommand(s *session) *cobra.Command {
	flags := map[string]cobraflags.Flag{
		dataFlag: &cobraflags.StringFlag{Name: dataFlag, Usage: "Fields to change as JSON, or @file"},
	}

	cmd := &cobra.Command{
		Use:   "update <model> <id>",
		Short: "Apply a JSON patch to a record and save it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := id.Parse(args[1])
			if err != nil {
				return apperror.NewValidation("invalid id").WithDetail("id", args[1])
			}
			data, err := readData(flags[dataFlag].GetString())
			if err != nil {
				return err
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				rec, err := admin.Update(ctx, entityID, data)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

// newSetActiveCommand builds activate or deactivate. One ID goes through the
// single-record save, several through one bulk update.
func newSetActiveCommand(s *session, active bool) *cobra.Command {
	use, short := "activate", "Set the flag on records"
	if !active {
		use, short = "deactivate", "Clear the flag on records"
	}

	return &cobra.Command{
		Use:   use + " <model> <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := id.ParseAll(args[1:])
			if err != nil {
				return apperror.NewValidation("invalid id").WithDetail("error", err.Error())
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				if len(ids) == 1 {
					rec, err := admin.SetActive(ctx, ids[0], active)
					if err != nil {
						return err
					}
					return printJSON(cmd, rec)
				}
				n, err := admin.BulkSetActive(ctx, domain.ListFilter{IDs: ids}, active)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", use, n)
				return nil
			})
		},
	}
}

func newDeleteCommand(s *session) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <model> <id>...",
		Short: "Deactivate records, or remove them with --force",
		Long: `delete clears the flag on the given records. With --force the rows are
removed; a record still referenced by another row is reported as protected.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := id.ParseAll(args[1:])
			if err != nil {
				return apperror.NewValidation("invalid id").WithDetail("error", err.Error())
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				admin, err := adminOf(a, args[0])
				if err != nil {
					return err
				}
				if len(ids) == 1 {
					if err := admin.Delete(ctx, ids[0], force); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "deleted: 1 record (force=%t)\n", force)
					return nil
				}
				n, err := admin.BulkDelete(ctx, domain.ListFilter{IDs: ids}, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted: %d records (force=%t)\n", n, force)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove rows instead of deactivating them")
	return cmd
}
