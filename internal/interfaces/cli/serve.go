package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/edu008/HeatQuest/internal/bootstrap"
	"github.com/edu008/HeatQuest/internal/infrastructure/monitoring/logging"
)

// newServeCmd runs the HTTP API server until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HeatQuest API server",
		Long:  "Starts the HTTP API server with the configured database, cache,\nobject store, and messaging backends, and blocks until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cliCtx)
		},
	}
}

func runServer(ctx context.Context, cliCtx *CLIContext) error {
	cfg := cliCtx.Config

	// The server gets its own logger built from file config; the CLI logger
	// is console-formatted and aimed at interactive use.
	log, err := logging.NewLogger(logging.LogConfig(cfg.Log))
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Start()
	}()

	log.Info("server started",
		logging.Int("port", cfg.Server.Port),
		logging.String("version", Version))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", logging.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("shutting down", logging.Err(ctx.Err()))
	}

	// Stop applies the configured shutdown timeout internally.
	return app.Server.Stop(context.Background())
}
