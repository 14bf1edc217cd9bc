package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

// exitFunc terminates the process; tests replace it.
var exitFunc = os.Exit

var rootCmd = &cobra.Command{
	Use:   "brandsphere",
	Short: "BrandSphere database service",
	Long:  `Keeps the BrandSphere PostgreSQL connection healthy, verifies boot configuration and reports status.`,
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		exitFunc(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads configuration and sets up logging, exiting on failure.
func loadConfig() *config.AppConfig {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		exitFunc(1)
		return nil
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.AppConfig) {
	stylelog.InitDefault(&tint.Options{
		Level:      logLevel(cfg.Logging.Level, isDebug),
		TimeFormat: time.RFC3339,
	})
}

func logLevel(level string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
