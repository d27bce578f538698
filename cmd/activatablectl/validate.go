package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"activatable/internal/app"
	"activatable/internal/metadata"
)

func newValidateCommand(s *session) *cobra.Command {
	var skipDB bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check activatable record types for a flag field and unsafe cascade deletes",
		Long: `validate runs the start-up checks without starting a server.

Every activatable type must declare a boolean flag column under the configured
name, and unless it allows cascade delete none of its relations may cascade.
With database.dsn set, foreign keys in the live schema are checked as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.Validate(s.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "models: %d activatable of %d registered\n", len(reg.Activatable()), len(reg.List()))

			if s.cfg.InMemory() || skipDB {
				return nil
			}
			return s.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Inspector.CheckCascade(ctx, a.Registry); err != nil {
					return err
				}
				fmt.Fprintln(out, "database: no cascading foreign keys on protected tables")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipDB, "skip-db", false, "Only run the static checks")
	return cmd
}

func newModelsCommand(s *session) *cobra.Command {
	var activatableOnly bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Print registered record type definitions as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.Validate(s.cfg)
			if err != nil {
				return err
			}
			var defs []metadata.ModelDef
			if activatableOnly {
				defs = reg.Activatable()
			} else {
				defs = reg.List()
			}
			return printJSON(cmd, defs)
		},
	}
	cmd.Flags().BoolVar(&activatableOnly, "activatable", false, "Only list activatable types")
	return cmd
}
