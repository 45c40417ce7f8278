package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/otahir-21/MetatechCrmV1-sub001/internal/config"
	"github.com/otahir-21/MetatechCrmV1-sub001/migrations"
	"github.com/otahir-21/MetatechCrmV1-sub001/pkg/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "crm",
		Short:         "Multi-tenant CRM API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), runServer)
		},
	}
	root.AddCommand(serve)
	// a bare invocation serves
	root.RunE = serve.RunE

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
				db, err := initDB(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer db.Close()

				if err := migrations.Apply(ctx, db); err != nil {
					return err
				}
				log.Info("migrations applied")
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sessions once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
				deps, err := openDependencies(ctx, cfg, log)
				if err != nil {
					return err
				}
				defer deps.Close()

				svc := newServices(cfg, deps, log)
				pruned, err := svc.sessions.Prune(ctx)
				if err != nil {
					return err
				}
				log.Info("expired sessions pruned", zap.Int64("count", pruned))
				return nil
			})
		},
	})

	return root
}

// withRuntime loads configuration and the process logger, then runs fn
func withRuntime(ctx context.Context, fn func(context.Context, *config.Config, *zap.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return err
	}

	log := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() { _ = log.Sync() }()

	start := time.Now()
	if err := fn(ctx, cfg, log); err != nil {
		log.Error("command failed", zap.Error(err), zap.Duration("after", time.Since(start)))
		return err
	}
	return nil
}
