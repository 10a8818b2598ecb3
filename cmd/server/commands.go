package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/phrazzld/drill-api/internal/config"
	"github.com/phrazzld/drill-api/internal/platform/logger"
	"github.com/phrazzld/drill-api/internal/platform/postgres"
	"github.com/phrazzld/drill-api/internal/redact"
	"github.com/spf13/cobra"
)

// globalFlags holds the flags shared by every subcommand.
type globalFlags struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "drill-server",
		Short:        "Practice session API server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to config.yaml (default ./config.yaml)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "path to .env file (default ./.env)")

	root.AddCommand(newServeCommand(flags), newMigrateCommand(flags))
	return root
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	for _, name := range postgres.MigrationCommands {
		migrate.AddCommand(&cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run goose %q against the configured database", name),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context(), flags, name)
			},
		})
	}
	return migrate
}

// bootstrap loads configuration and sets up the default logger.
func bootstrap(flags *globalFlags) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadWithOptions(config.Options{
		ConfigFile: flags.configFile,
		EnvFile:    flags.envFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))
	return cfg, l, nil
}

func runServe(ctx context.Context, flags *globalFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, l, err := bootstrap(flags)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		l.Error("failed to connect to database", redact.ErrorAttr(err))
		return fmt.Errorf("failed to connect to database: %s", redact.Error(err))
	}

	app, err := newApplication(cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.startHTTPServer(ctx, app.setupRouter())
}

func runMigrate(ctx context.Context, flags *globalFlags, command string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, l, err := bootstrap(flags)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		l.Error("failed to connect to database", redact.ErrorAttr(err))
		return fmt.Errorf("failed to connect to database: %s", redact.Error(err))
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			l.Error("failed to close database connection", redact.ErrorAttr(cerr))
		}
	}()

	return postgres.Migrate(ctx, db, command, l)
}
