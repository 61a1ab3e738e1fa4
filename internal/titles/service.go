// Package titles is the server's shared title catalog: titles saved by any device,
// looked up by external id or by name, and searchable through the Bleve index.
package titles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/metrics"
	"github.com/cineshelfapp/cineshelf/internal/search"
	"github.com/cineshelfapp/cineshelf/internal/validation"
)

// Store is the title table. *sqlite.Store implements it.
type Store interface {
	UpsertTitle(ctx context.Context, t *domain.Title, now time.Time) (bool, error)
	GetTitle(ctx context.Context, externalID string) (*domain.Title, error)
	FindTitleByName(ctx context.Context, name string) (*domain.Title, error)
	ListTitles(ctx context.Context) ([]domain.Title, error)
}

// Index is the full-text index. *search.TitleIndex implements it.
type Index interface {
	IndexTitle(doc *search.TitleDocument) error
	IndexTitles(docs []*search.TitleDocument) error
	Search(ctx context.Context, params search.Params) (*search.Result, error)
}

// Service coordinates the title table and its index.
type Service struct {
	store     Store
	index     Index
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(store Store, index Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     store,
		index:     index,
		validator: validation.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// SaveResult reports what Save did.
type SaveResult struct {
	Title   domain.Title `json:"title"`
	Created bool         `json:"created"`
}

// Save upserts t by external id and refreshes its index entry.
func (s *Service) Save(ctx context.Context, t domain.Title) (*SaveResult, error) {
	t.ExternalID = strings.TrimSpace(t.ExternalID)
	t.Name = strings.TrimSpace(t.Name)
	if err := s.validator.Validate(&t); err != nil {
		return nil, err
	}

	now := s.now()
	start := time.Now()
	created, err := s.store.UpsertTitle(ctx, &t, now)
	metrics.RecordDBOperation("upsert", "titles", start)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "save title")
	}

	// The table is the source of truth; a stale index entry is fixed by the next reindex.
	if err := s.index.IndexTitle(search.TitleToDocument(&t, now)); err != nil {
		s.logger.Warn("failed to index title", "external_id", t.ExternalID, "error", err)
	}

	s.logger.Info("title saved", "external_id", t.ExternalID, "created", created)
	return &SaveResult{Title: t, Created: created}, nil
}

// Get returns the title with the given external id.
func (s *Service) Get(ctx context.Context, externalID string) (*domain.Title, error) {
	t, err := s.store.GetTitle(ctx, strings.TrimSpace(externalID))
	if err != nil {
		return nil, notFound(err, "Title not found")
	}
	return t, nil
}

// Lookup finds a title whose name equals name case-insensitively.
func (s *Service) Lookup(ctx context.Context, name string) (*domain.Title, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domainerrors.Validation("name is required")
	}
	defer metrics.RecordDBOperation("find_by_name", "titles", time.Now())
	t, err := s.store.FindTitleByName(ctx, name)
	if err != nil {
		return nil, notFound(err, "Title not found")
	}
	return t, nil
}

// Search runs a full-text query over the index.
func (s *Service) Search(ctx context.Context, params search.Params) (*search.Result, error) {
	res, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search titles")
	}
	return res, nil
}

// Reindex rebuilds every index entry from the title table.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	all, err := s.store.ListTitles(ctx)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "list titles")
	}

	now := s.now()
	docs := make([]*search.TitleDocument, len(all))
	for i := range all {
		docs[i] = search.TitleToDocument(&all[i], now)
	}
	if err := s.index.IndexTitles(docs); err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "index titles")
	}

	s.logger.Info("title index rebuilt", "titles", len(docs))
	return len(docs), nil
}

func notFound(err error, msg string) error {
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.NotFound(msg)
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, "load title")
}
