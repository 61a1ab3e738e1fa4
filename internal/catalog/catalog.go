// Package catalog owns the copies, titles, and custom editions of one profile.
//
// A Catalog is the only writer of its profile's data. Every mutation validates its input,
// builds the next state, persists it through the Repository, and only then swaps it into
// memory, so a failed write never leaves the in-memory view ahead of storage.
// Values returned by a Catalog are copies and may be modified freely by the caller.
package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/id"
	"github.com/cineshelfapp/cineshelf/internal/normalize"
	"github.com/cineshelfapp/cineshelf/internal/validation"
)

// Repository persists profile data. *store.Store implements it.
type Repository interface {
	LoadProfile(ctx context.Context, ns string) (*domain.ProfileData, error)
	SaveProfile(ctx context.Context, ns string, data *domain.ProfileData) error
	SaveSafetySnapshot(ctx context.Context, ns string, snap *domain.SafetySnapshot) error
	SafetySnapshot(ctx context.Context, ns string) (*domain.SafetySnapshot, error)
	SaveLastBackup(ctx context.Context, ns string, rec *domain.BackupRecord) error
	LastBackup(ctx context.Context, ns string) (*domain.BackupRecord, error)
}

// Filter selects which copies ListCopies returns.
type Filter int

// Copy filters.
const (
	FilterCollection Filter = iota
	FilterWishlist
	FilterAll
)

// Catalog is the in-memory view of one profile backed by a Repository.
type Catalog struct {
	mu sync.RWMutex

	profile   domain.Profile
	repo      Repository
	validator *validation.Validator
	logger    *slog.Logger

	now   func() time.Time
	newID func() (string, error)

	data domain.ProfileData
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithClock overrides the time source used for createdAt and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithIDGenerator overrides copy id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(c *Catalog) { c.newID = gen }
}

// Open loads the persisted data of profile p.
func Open(ctx context.Context, repo Repository, p domain.Profile, logger *slog.Logger, opts ...Option) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Catalog{
		profile:   p,
		repo:      repo,
		validator: validation.New(),
		logger:    logger.With("profile", p.Namespace),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:     id.NewCopyID,
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := repo.LoadProfile(ctx, p.Namespace)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load catalog")
	}
	c.data = data.Clone()

	c.logger.Debug("catalog opened",
		"copies", len(c.data.Copies),
		"titles", len(c.data.Titles),
	)
	return c, nil
}

// Profile returns the profile this catalog belongs to.
func (c *Catalog) Profile() domain.Profile {
	return c.profile
}

// commit persists next and makes it the current state. Callers hold c.mu.
func (c *Catalog) commit(ctx context.Context, next domain.ProfileData) error {
	if err := c.repo.SaveProfile(ctx, c.profile.Namespace, &next); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "persist catalog")
	}
	c.data = next
	return nil
}

// NewCopy is the input of AddCopy.
type NewCopy struct {
	Title      string
	Format     string
	Region     string
	Edition    string
	Languages  string
	Notes      string
	UPC        string
	DiscCount  int
	IsWishlist bool
}

// CopyPatch holds the fields UpdateCopy changes. Nil fields are left alone.
type CopyPatch struct {
	Title      *string
	Format     *string
	Region     *string
	Edition    *string
	Languages  *string
	Notes      *string
	UPC        *string
	DiscCount  *int
	IsWishlist *bool
}

// Apply writes the set fields of p onto cp.
func (p CopyPatch) Apply(cp *domain.Copy) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&cp.Title, p.Title)
	setString(&cp.Format, p.Format)
	setString(&cp.Region, p.Region)
	setString(&cp.Edition, p.Edition)
	setString(&cp.Languages, p.Languages)
	setString(&cp.Notes, p.Notes)
	setString(&cp.UPC, p.UPC)
	if p.DiscCount != nil {
		cp.DiscCount = *p.DiscCount
	}
	if p.IsWishlist != nil {
		cp.IsWishlist = *p.IsWishlist
	}
}

func (c *Catalog) validateCopy(cp *domain.Copy) error {
	return c.validator.Validate(cp)
}

// AddCopy inserts a new copy at the end of the queue.
// When a title with the same name (case-insensitive) exists the copy is linked to it.
func (c *Catalog) AddCopy(ctx context.Context, in NewCopy) (*domain.Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := domain.Copy{
		Title:      strings.TrimSpace(in.Title),
		Format:     normalize.OrDefault(in.Format, domain.DefaultFormat),
		Region:     strings.TrimSpace(in.Region),
		Edition:    strings.TrimSpace(in.Edition),
		Languages:  strings.TrimSpace(in.Languages),
		Notes:      strings.TrimSpace(in.Notes),
		UPC:        strings.TrimSpace(in.UPC),
		DiscCount:  in.DiscCount,
		IsWishlist: in.IsWishlist,
	}
	if cp.DiscCount == 0 {
		cp.DiscCount = domain.MinDiscCount
	}
	if err := c.validateCopy(&cp); err != nil {
		return nil, err
	}

	copyID, err := c.newID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate copy id")
	}
	cp.ID = copyID
	cp.CreatedAt = c.now()

	if t := findTitleByName(c.data.Titles, cp.Title); t != nil {
		cp.Link(t.ExternalID)
	}

	next := c.data.Clone()
	next.Copies = append(next.Copies, cp)
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.Info("copy added",
		"copy_id", cp.ID,
		"title", cp.Title,
		"wishlist", cp.IsWishlist,
		"auto_linked", cp.Resolved,
	)
	return &cp, nil
}

// UpdateCopy changes the editable fields of a copy. The id and createdAt never change.
func (c *Catalog) UpdateCopy(ctx context.Context, copyID string, patch CopyPatch) (*domain.Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("copy %q not found", copyID)
	}

	next := c.data.Clone()
	cp := &next.Copies[idx]
	patch.Apply(cp)
	if err := c.validateCopy(cp); err != nil {
		return nil, err
	}

	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	updated := next.Copies[idx]
	c.logger.Debug("copy updated", "copy_id", copyID)
	return &updated, nil
}

// DeleteCopy removes a copy.
func (c *Catalog) DeleteCopy(ctx context.Context, copyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return domainerrors.NotFoundf("copy %q not found", copyID)
	}

	next := c.data.Clone()
	next.Copies = slices.Delete(next.Copies, idx, idx+1)
	if err := c.commit(ctx, next); err != nil {
		return err
	}

	c.logger.Info("copy deleted", "copy_id", copyID)
	return nil
}

// MoveCopy moves a copy between the collection and the wishlist.
func (c *Catalog) MoveCopy(ctx context.Context, copyID string) (*domain.Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("copy %q not found", copyID)
	}

	next := c.data.Clone()
	next.Copies[idx].IsWishlist = !next.Copies[idx].IsWishlist
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	moved := next.Copies[idx]
	c.logger.Info("copy moved", "copy_id", copyID, "wishlist", moved.IsWishlist)
	return &moved, nil
}

// LinkCopy points a copy at an existing title.
func (c *Catalog) LinkCopy(ctx context.Context, copyID, externalID string) (*domain.Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("copy %q not found", copyID)
	}
	if c.titleIndexOf(externalID) < 0 {
		return nil, domainerrors.NotFoundf("title %q not found", externalID)
	}

	next := c.data.Clone()
	next.Copies[idx].Link(externalID)
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	linked := next.Copies[idx]
	return &linked, nil
}

// ResolveCopy upserts title, applies patch to the copy, and links the copy to the title,
// all in one write. The copy takes the title's name.
func (c *Catalog) ResolveCopy(ctx context.Context, copyID string, patch CopyPatch, title domain.Title) (*domain.Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("copy %q not found", copyID)
	}
	title, err := c.cleanTitle(title)
	if err != nil {
		return nil, err
	}

	next := c.data.Clone()
	next.Titles = upsertTitle(next.Titles, title)

	cp := &next.Copies[idx]
	patch.Apply(cp)
	cp.Title = truncateRunes(title.Name, domain.MaxTitleLength)
	if err := c.validateCopy(cp); err != nil {
		return nil, err
	}
	cp.Link(title.ExternalID)

	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	resolved := next.Copies[idx]
	c.logger.Info("copy resolved", "copy_id", copyID, "title_ref", title.ExternalID)
	return &resolved, nil
}

// Copy returns the copy with the given id.
func (c *Catalog) Copy(copyID string) (*domain.Copy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.indexOf(copyID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("copy %q not found", copyID)
	}
	cp := c.data.Copies[idx]
	return &cp, nil
}

// ListCopies returns the copies selected by f in catalog order.
func (c *Catalog) ListCopies(f Filter) []domain.Copy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Copy, 0, len(c.data.Copies))
	for _, cp := range c.data.Copies {
		switch {
		case f == FilterAll,
			f == FilterWishlist && cp.IsWishlist,
			f == FilterCollection && !cp.IsWishlist:
			out = append(out, cp)
		}
	}
	return out
}

// Unresolved returns the unresolved copies in queue order.
func (c *Catalog) Unresolved() []domain.Copy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []domain.Copy
	for _, cp := range c.data.Copies {
		if !cp.Resolved {
			out = append(out, cp)
		}
	}
	return out
}

// AddOrUpdateTitle inserts title or replaces the title with the same externalId.
func (c *Catalog) AddOrUpdateTitle(ctx context.Context, title domain.Title) (*domain.Title, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title, err := c.cleanTitle(title)
	if err != nil {
		return nil, err
	}

	next := c.data.Clone()
	next.Titles = upsertTitle(next.Titles, title)
	if err := c.commit(ctx, next); err != nil {
		return nil, err
	}

	c.logger.Debug("title saved", "external_id", title.ExternalID)
	return &title, nil
}

// FindTitle returns the title with the given externalId.
func (c *Catalog) FindTitle(externalID string) (*domain.Title, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.titleIndexOf(externalID)
	if idx < 0 {
		return nil, domainerrors.NotFoundf("title %q not found", externalID)
	}
	t := c.data.Titles[idx]
	return &t, nil
}

// FindTitleByName returns the first title whose name matches case-insensitively.
func (c *Catalog) FindTitleByName(name string) (*domain.Title, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t := findTitleByName(c.data.Titles, name)
	if t == nil {
		return nil, domainerrors.NotFoundf("no title named %q", name)
	}
	found := *t
	return &found, nil
}

// Titles returns every title of the profile.
func (c *Catalog) Titles() []domain.Title {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.data.Titles)
}

// Data returns a deep copy of the profile content.
func (c *Catalog) Data() domain.ProfileData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// Replace swaps the whole profile content for data. Nothing changes when the write fails.
func (c *Catalog) Replace(ctx context.Context, data domain.ProfileData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.commit(ctx, data.Clone()); err != nil {
		return err
	}

	c.logger.Info("catalog replaced",
		"copies", len(data.Copies),
		"titles", len(data.Titles),
		"custom_editions", len(data.CustomEditions),
	)
	return nil
}

// Clear removes every copy, title, and custom edition of the profile.
func (c *Catalog) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	empty := domain.ProfileData{}
	if err := c.commit(ctx, empty.Clone()); err != nil {
		return err
	}
	c.logger.Warn("catalog cleared")
	return nil
}

// Flush writes the current state again. Used before a profile switch.
func (c *Catalog) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(ctx, c.data.Clone())
}

// SaveSafetySnapshot persists a copy of the current data tagged with reason.
func (c *Catalog) SaveSafetySnapshot(ctx context.Context, snapshotID, reason string) (*domain.SafetySnapshot, error) {
	c.mu.RLock()
	snap := &domain.SafetySnapshot{
		ID:        snapshotID,
		Reason:    reason,
		Profile:   c.profile.Name,
		Timestamp: c.now(),
		Data:      c.data.Clone(),
	}
	c.mu.RUnlock()

	if err := c.repo.SaveSafetySnapshot(ctx, c.profile.Namespace, snap); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "persist safety snapshot")
	}

	c.logger.Info("safety snapshot saved",
		"snapshot_id", snapshotID,
		"reason", reason,
		"copies", len(snap.Data.Copies),
	)
	return snap, nil
}

// SafetySnapshot returns the last safety snapshot of the profile.
func (c *Catalog) SafetySnapshot(ctx context.Context) (*domain.SafetySnapshot, error) {
	snap, err := c.repo.SafetySnapshot(ctx, c.profile.Namespace)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("no safety snapshot for this profile")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load safety snapshot")
	}
	return snap, nil
}

// RecordBackup stores the metadata of a successful backup.
func (c *Catalog) RecordBackup(ctx context.Context, rec domain.BackupRecord) error {
	if err := c.repo.SaveLastBackup(ctx, c.profile.Namespace, &rec); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "persist backup record")
	}
	return nil
}

// LastBackup returns the metadata of the last successful backup.
func (c *Catalog) LastBackup(ctx context.Context) (*domain.BackupRecord, error) {
	rec, err := c.repo.LastBackup(ctx, c.profile.Namespace)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("this profile was never backed up")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load backup record")
	}
	return rec, nil
}

func (c *Catalog) indexOf(copyID string) int {
	return slices.IndexFunc(c.data.Copies, func(cp domain.Copy) bool { return cp.ID == copyID })
}

func (c *Catalog) titleIndexOf(externalID string) int {
	return slices.IndexFunc(c.data.Titles, func(t domain.Title) bool { return t.ExternalID == externalID })
}

func (c *Catalog) cleanTitle(t domain.Title) (domain.Title, error) {
	t.ExternalID = strings.TrimSpace(t.ExternalID)
	t.Name = strings.TrimSpace(t.Name)
	if err := c.validator.Validate(&t); err != nil {
		return domain.Title{}, err
	}
	return t, nil
}

func findTitleByName(titles []domain.Title, name string) *domain.Title {
	folded := normalize.Fold(name)
	if folded == "" {
		return nil
	}
	for i := range titles {
		if normalize.Fold(titles[i].Name) == folded {
			return &titles[i]
		}
	}
	return nil
}

func upsertTitle(titles []domain.Title, t domain.Title) []domain.Title {
	for i := range titles {
		if titles[i].ExternalID == t.ExternalID {
			titles[i] = t
			return titles
		}
	}
	return append(titles, t)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
