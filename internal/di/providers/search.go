package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/cineshelfapp/cineshelf/internal/config"
	"github.com/cineshelfapp/cineshelf/internal/logger"
	"github.com/cineshelfapp/cineshelf/internal/search"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

// SearchIndexHandle wraps the title index with shutdown capability.
type SearchIndexHandle struct {
	*search.TitleIndex

	// Created is set when the index was built empty on this start.
	Created bool
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve title index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, created, err := search.NewTitleIndex(search.Options{
		DataPath: cfg.Server.IndexPath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount, "created", created)

	return &SearchIndexHandle{TitleIndex: index, Created: created}, nil
}

// ProvideTitleService provides the shared title catalog.
func ProvideTitleService(i do.Injector) (*titles.Service, error) {
	db := do.MustInvoke[*SQLiteHandle](i)
	index := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return titles.NewService(db.Store, index.TitleIndex, log.Component("titles")), nil
}

// TriggerSearchReindexIfNeeded rebuilds the index from the title table when it was
// created empty on this start but titles exist.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	index := do.MustInvoke[*SearchIndexHandle](i)
	db := do.MustInvoke[*SQLiteHandle](i)
	svc := do.MustInvoke[*titles.Service](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := index.DocumentCount()
	if !index.Created && docCount > 0 {
		return
	}

	count, err := db.CountTitles(context.Background())
	if err != nil || count == 0 {
		return
	}

	log.Info("Search index is empty but titles exist, triggering reindex", "title_count", count)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reindexTimeout)
		defer cancel()

		n, err := svc.Reindex(ctx)
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "documents", n)
	}()
}
