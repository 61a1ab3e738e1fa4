// Package providers contains dependency injection providers for the CineShelf server and client.
package providers

import (
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
)

// ProvideConfig provides the server configuration parsed from flags, environment and .env.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the server's structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting CineShelf Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_dir", cfg.Data.Dir,
		"snapshot_backend", cfg.Server.SnapshotBackend,
	)

	return log, nil
}

// ProvideClientLogger provides the CLI logger. It writes to stderr so command output
// on stdout stays machine readable.
func ProvideClientLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return logger.New(logger.Config{
		Writer:      os.Stderr,
		Format:      "pretty",
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
		NoColor:     os.Getenv("NO_COLOR") != "",
	}), nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
