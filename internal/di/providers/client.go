package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/backup"
	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/metadata"
	"github.com/cineshelfapp/cineshelf/internal/profile"
)

// ProfileManagerHandle wraps the profile manager. Shutdown flushes the active catalog
// before the store underneath is closed.
type ProfileManagerHandle struct {
	*profile.Manager
}

// Shutdown implements do.Shutdownable.
func (h *ProfileManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Active().Catalog.Flush(ctx)
}

// ProvideProfileManager opens the profile registry and the last active profile.
func ProvideProfileManager(i do.Injector) (*ProfileManagerHandle, error) {
	s := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	m, err := profile.Open(context.Background(), s.Store, log.Component("profile"))
	if err != nil {
		return nil, err
	}
	return &ProfileManagerHandle{Manager: m}, nil
}

// ProvideTransport provides the HTTP transport used for backup and restore.
func ProvideTransport(i do.Injector) (*backup.HTTPTransport, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return backup.NewHTTPTransport(&http.Client{Transport: http.DefaultTransport}, log.Component("transport")), nil
}

// ProvideCoordinator provides the backup/restore coordinator for the active profile.
// Configured endpoint lists replace the ones derived from the server URL.
func ProvideCoordinator(i do.Injector) (*backup.Coordinator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	manager := do.MustInvoke[*ProfileManagerHandle](i)
	transport := do.MustInvoke[*backup.HTTPTransport](i)

	bc := backup.DefaultConfig(cfg.Client.ServerURL)
	if len(cfg.Client.BackupEndpoints) > 0 {
		bc.BackupEndpoints = cfg.Client.BackupEndpoints
	}
	if len(cfg.Client.RestoreEndpoints) > 0 {
		bc.RestoreEndpoints = cfg.Client.RestoreEndpoints
	}
	bc.AttemptTimeout = cfg.Client.RequestTimeout

	return backup.NewCoordinator(manager.Manager, transport, bc, log.Component("backup")), nil
}

// ProvideMetadataClient provides the shared title catalog client.
func ProvideMetadataClient(i do.Injector) (*metadata.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return metadata.NewClient(cfg.Client.ServerURL, cfg.Client.RequestTimeout, log.Component("metadata")), nil
}
