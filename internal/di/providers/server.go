package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/api"
	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/ratelimit"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

// ProvideRateLimiter provides the per-client-IP limiter for inbound requests.
// The limiter's Shutdown stops its sweeper.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedRateLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	snapshots := do.MustInvoke[*SnapshotRepositoryHandle](i)
	db := do.MustInvoke[*SQLiteHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	titleService := do.MustInvoke[*titles.Service](i)
	limiter := do.MustInvoke[*ratelimit.KeyedRateLimiter](i)

	handler := api.NewServer(api.Options{
		Snapshots:   snapshots.Repository,
		Titles:      titleService,
		Database:    db.Store,
		Index:       index.TitleIndex,
		Limiter:     limiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Component("api"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv}, nil
}
