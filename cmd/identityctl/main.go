package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"contact_hub/internal/config"
	"contact_hub/internal/database"
	"contact_hub/internal/service"
	"contact_hub/pkg/logger"

	"github.com/spf13/cobra"
)

var logLevel string

func main() {
	root := &cobra.Command{
		Use:           "identityctl",
		Short:         "Operator tool for contact identities",
		Long:          "identityctl applies the schema, resolves identifiers and merges duplicate contacts against the configured storage.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(migrateCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(mergeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// env - общая инициализация подкоманд
type env struct {
	cfg      *config.Config
	log      logger.Logger
	storage  *database.Storage
	services *service.Services
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	log := logger.New(level)

	storage, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		log:      log,
		storage:  storage,
		services: service.NewServices(storage.Repos, cfg, service.Deps{}, log),
	}, nil
}

func (e *env) close() {
	e.storage.Close()
	_ = e.log.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
