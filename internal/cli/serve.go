package cli

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/G0th1/brandsphere1-sub001/internal/control"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run boot checks, connect to the database and serve health endpoints",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg == nil {
		return
	}

	// Initialize App
	app, err := control.NewApp(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		exitFunc(1)
		return
	}

	// Signals cancel ctx, which also aborts a connect still backing off.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	defer stop()

	if !verifyOrExit(ctx, app, nil, false) {
		return
	}

	if err := serveUntilDone(ctx, app, cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("Error during shutdown", "error", err)
		exitFunc(1)
	}
}

// runner is the lifecycle serveUntilDone drives.
type runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// serveUntilDone starts app, waits for ctx to end and stops app within
// timeout.
func serveUntilDone(ctx context.Context, app runner, timeout time.Duration) error {
	startErr := app.Start(ctx)
	if startErr != nil {
		slog.Error("Failed to start service", "error", startErr)
	} else {
		slog.Info("Service started", "config", cfgPath)
		<-ctx.Done()
		slog.Info("Received signal, shutting down...")
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return errors.Join(startErr, app.Stop(shutdownCtx))
}
