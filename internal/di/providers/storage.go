package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// SnapshotRepositoryHandle wraps the configured snapshot backend.
type SnapshotRepositoryHandle struct {
	snapshot.Repository
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *SnapshotRepositoryHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideSnapshotRepository provides the backup blob store selected by the snapshot backend.
func ProvideSnapshotRepository(i do.Injector) (*SnapshotRepositoryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Server.SnapshotBackend {
	case config.SnapshotBackendSQLite:
		db := do.MustInvoke[*SQLiteHandle](i)
		repo := snapshot.NewSQLiteRepository(db.Store, log.Component("snapshot"))
		return &SnapshotRepositoryHandle{Repository: repo}, nil

	case config.SnapshotBackendFS, "":
		repo, err := snapshot.NewFSRepository(cfg.Server.SnapshotDir, log.Component("snapshot"))
		if err != nil {
			return nil, err
		}
		return &SnapshotRepositoryHandle{Repository: repo, close: repo.Close}, nil

	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.Server.SnapshotBackend)
	}
}
