package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/store"
	"github.com/cineshelfapp/cineshelf/internal/store/sqlite"
)

// SQLiteHandle wraps the server database with shutdown capability.
type SQLiteHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *SQLiteHandle) Shutdown() error {
	return h.Close()
}

// ProvideSQLite provides the server database holding shared titles and, with the sqlite
// backend, stored backups.
func ProvideSQLite(i do.Injector) (*SQLiteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sqlite.Open(cfg.Server.DBPath, log.Component("sqlite"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Server.DBPath)

	return &SQLiteHandle{Store: db}, nil
}

// StoreHandle wraps the device store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the client's Badger store under the data directory.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := filepath.Join(cfg.Data.Dir, "db")
	s, err := store.New(dbPath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Debug("Device store opened", "path", dbPath)

	return &StoreHandle{Store: s}, nil
}
