// Package resolve drives the workflow that links unresolved copies to titles.
//
// The Engine is either Idle or Resolving one copy. It never selects a resolved copy, and
// copies the user skipped are passed over until the engine is Reset.
package resolve

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// Catalog is the part of *catalog.Catalog the engine needs.
type Catalog interface {
	Copy(copyID string) (*domain.Copy, error)
	Unresolved() []domain.Copy
	ResolveCopy(ctx context.Context, copyID string, patch catalog.CopyPatch, title domain.Title) (*domain.Copy, error)
	DeleteCopy(ctx context.Context, copyID string) error
}

// State is the engine state.
type State int

// Engine states.
const (
	Idle State = iota
	Resolving
)

func (s State) String() string {
	if s == Resolving {
		return "resolving"
	}
	return "idle"
}

// Engine is the resolve state machine of one profile.
type Engine struct {
	mu      sync.Mutex
	catalog Catalog
	logger  *slog.Logger

	state   State
	current string
	form    Form
	skipped []string
}

// NewEngine creates an Idle engine over c.
func NewEngine(c Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{catalog: c, logger: logger}
}

// State returns the current state and the id of the copy being resolved.
func (e *Engine) State() (State, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.current
}

// Form returns the working form. ok is false while Idle.
func (e *Engine) Form() (form Form, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form, e.state == Resolving
}

// Start begins resolving copyID and pre-fills the working form from it.
func (e *Engine) Start(copyID string) (*Form, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, err := e.catalog.Copy(copyID)
	if err != nil {
		return nil, err
	}
	if cp.Resolved {
		return nil, domainerrors.InvalidStatef("copy %q is already resolved", copyID)
	}

	e.begin(cp)
	form := e.form
	return &form, nil
}

// Next starts the first unresolved copy that was not skipped.
// ok is false when there is none; the engine is then Idle.
func (e *Engine) Next() (form *Form, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.advance() {
		return nil, false
	}
	f := e.form
	return &f, true
}

// UpdateForm edits the working form.
func (e *Engine) UpdateForm(patch catalog.CopyPatch) (*Form, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Resolving {
		return nil, domainerrors.InvalidState("no copy is being resolved")
	}
	e.form.apply(patch)
	form := e.form
	return &form, nil
}

// Resolve links the current copy to title, applying the working form, and advances.
// The returned copy is the one just resolved.
func (e *Engine) Resolve(ctx context.Context, title domain.Title) (*domain.Copy, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Resolving {
		return nil, domainerrors.InvalidState("no copy is being resolved")
	}

	cp, err := e.catalog.Copy(e.current)
	if err != nil || cp.Resolved {
		stale := e.current
		e.idle()
		return nil, domainerrors.InvalidStatef("copy %q is no longer awaiting resolution", stale)
	}

	resolved, err := e.catalog.ResolveCopy(ctx, e.current, e.form.patch(), title)
	if err != nil {
		return nil, err
	}

	e.logger.Info("copy resolved", "copy_id", resolved.ID, "title_ref", resolved.TitleRef)
	e.advance()
	return resolved, nil
}

// Skip passes over the current copy and advances.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Resolving {
		return domainerrors.InvalidState("no copy is being resolved")
	}
	if !slices.Contains(e.skipped, e.current) {
		e.skipped = append(e.skipped, e.current)
	}

	e.logger.Debug("copy skipped", "copy_id", e.current, "skipped", len(e.skipped))
	e.advance()
	return nil
}

// DeleteCurrent deletes the current copy from the catalog and advances.
func (e *Engine) DeleteCurrent(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Resolving {
		return domainerrors.InvalidState("no copy is being resolved")
	}

	deleted := e.current
	if err := e.catalog.DeleteCopy(ctx, deleted); err != nil {
		return err
	}
	e.skipped = slices.DeleteFunc(e.skipped, func(s string) bool { return s == deleted })

	e.logger.Info("copy deleted while resolving", "copy_id", deleted)
	e.advance()
	return nil
}

// Reset returns to Idle and forgets skipped copies.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idle()
	e.skipped = nil
}

// Skipped returns the skipped copy ids in the order they were skipped.
func (e *Engine) Skipped() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.skipped)
}

// Progress describes where the workflow stands.
type Progress struct {
	State           State  `json:"-"`
	CopyID          string `json:"copyId,omitempty"`
	Position        int    `json:"position"`
	Remaining       int    `json:"remaining"`
	Skipped         int    `json:"skipped"`
	TotalUnresolved int    `json:"totalUnresolved"`
}

// Progress reports the current copy, its position among the remaining copies, and counts.
// Position is 0 when Idle or when the current copy was skipped earlier.
func (e *Engine) Progress() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()

	unresolved := e.catalog.Unresolved()
	p := Progress{
		State:           e.state,
		CopyID:          e.current,
		Skipped:         len(e.skipped),
		TotalUnresolved: len(unresolved),
	}
	for _, cp := range unresolved {
		if slices.Contains(e.skipped, cp.ID) {
			continue
		}
		p.Remaining++
		if e.state == Resolving && cp.ID == e.current {
			p.Position = p.Remaining
		}
	}
	return p
}

// advance moves to the earliest unresolved copy not in the skip set. Callers hold e.mu.
func (e *Engine) advance() bool {
	for _, cp := range e.catalog.Unresolved() {
		if slices.Contains(e.skipped, cp.ID) {
			continue
		}
		e.begin(&cp)
		return true
	}
	e.idle()
	return false
}

func (e *Engine) begin(cp *domain.Copy) {
	e.state = Resolving
	e.current = cp.ID
	e.form = formFromCopy(cp)
}

func (e *Engine) idle() {
	e.state = Idle
	e.current = ""
	e.form = Form{}
}
