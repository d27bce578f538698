package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"activatable/internal/app"
	"activatable/internal/config"
	appctx "activatable/internal/core/context"
	"activatable/pkg/logger"
)

const (
	configFlag = "config"
	actorFlag  = "actor"
)

// session carries what the root command resolved for its subcommands.
type session struct {
	flags map[string]cobraflags.Flag
	cfg   *config.Config
	log   *logger.Logger
}

// NewRootCommand builds the command tree. Each call returns an independent tree.
func NewRootCommand() *cobra.Command {
	s := &session{
		flags: map[string]cobraflags.Flag{
			configFlag: &cobraflags.StringFlag{
				Name:  configFlag,
				Value: os.Getenv(config.EnvPrefix + "_CONFIG"),
				Usage: "Path to the configuration file",
			},
			actorFlag: &cobraflags.StringFlag{
				Name:  actorFlag,
				Value: "",
				Usage: "Actor recorded with activation events (defaults to the OS user)",
			},
		},
	}

	root := &cobra.Command{
		Use:   "activatablectl",
		Short: "Inspect and manage activatable record types",
		Long: `activatablectl validates the registered record types and changes their
activation state through the same services the API uses, so observers
receive the usual activation events.

Without database.dsn every command runs against an empty in-memory store.`,
		SilenceUsage:      true,
		PersistentPreRunE: s.load,
	}
	cobraflags.RegisterMap(root, s.flags)
	// Subcommands register their own flags on themselves, so persistent
	// flags must be visible to them.
	root.PersistentFlags().AddFlagSet(root.Flags())

	root.AddCommand(
		newValidateCommand(s),
		newModelsCommand(s),
		newListCommand(s),
		newGetCommand(s),
		newCreateCommand(s),
		newUpdateCommand(s),
		newSetActiveCommand(s, true),
		newSetActiveCommand(s, false),
		newDeleteCommand(s),
		newImportCommand(s),
	)
	return root
}

func (s *session) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(s.flags[configFlag].GetString())
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	s.cfg = cfg
	s.log = log.WithComponent("cli")

	cmd.SetContext(appctx.WithActor(cmd.Context(), &appctx.Actor{
		ID:     s.actor(),
		Source: "cli",
	}))
	return nil
}

func (s *session) actor() string {
	if a := s.flags[actorFlag].GetString(); a != "" {
		return a
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

// open assembles the application. The caller must Close it.
func (s *session) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, s.cfg, s.log, app.RoleCLI)
}

// withApp runs fn against a freshly assembled application.
func (s *session) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
