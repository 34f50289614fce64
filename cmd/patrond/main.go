// Command patrond runs the Patron engine as a Forge app with its realtime,
// metrics and health endpoints.
package main

import (
	"flag"
	"log/slog"
	"os"
	"syscall"

	"github.com/xraph/forge"

	"github.com/xraph/patron/extension"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	flag.Parse()

	cfg, err := extension.LoadConfig(*configPath)
	if err != nil {
		slog.Error("cannot load config", slog.Any("err", err))
		os.Exit(1)
	}

	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("starting patrond", slog.String("env", cfg.Env), slog.String("addr", cfg.HTTP.Address))

	if err := run(cfg, logger); err != nil {
		logger.Error("patrond stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("patrond stopped gracefully")
}

// run hosts the extension in a Forge app. Run serves HTTP until SIGINT or
// SIGTERM, then stops the extension within the shutdown timeout.
func run(cfg extension.Config, logger *slog.Logger) error {
	ext := extension.New(extension.WithConfig(cfg), extension.WithLogger(logger))

	app := forge.New(
		forge.WithAppName("patrond"),
		forge.WithAppVersion(extension.ExtensionVersion),
		forge.WithAppEnvironment(cfg.Env),
		forge.WithHTTPAddress(cfg.HTTP.Address),
		forge.WithHTTPTimeout(cfg.HTTP.Timeout),
		forge.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		forge.WithShutdownSignals(syscall.SIGINT, syscall.SIGTERM),
		forge.WithExtensions(ext),
	)

	return app.Run()
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case "local":
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case "dev":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
