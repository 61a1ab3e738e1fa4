// Package di provides dependency injection configuration for the CineShelf server and client.
package di

import (
	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/di/providers"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/ratelimit"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

// NewServerContainer creates the server's DI container with all providers.
func NewServerContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideSQLite)
	do.Provide(injector, providers.ProvideSnapshotRepository)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideTitleService)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// BootstrapServer initializes all server services. The HTTP server starts listening
// once everything it depends on is ready.
func BootstrapServer(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.SQLiteHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SnapshotRepositoryHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*titles.Service](injector)
	_ = do.MustInvoke[*ratelimit.KeyedRateLimiter](injector)

	providers.TriggerSearchReindexIfNeeded(injector)

	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}

// NewClientContainer creates the CLI's DI container around an already loaded config.
// Services open lazily, so commands that never touch the server never build a client.
func NewClientContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideClientLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideProfileManager)

	do.Provide(injector, providers.ProvideTransport)
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideMetadataClient)

	return injector
}
