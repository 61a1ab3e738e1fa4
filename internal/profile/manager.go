// Package profile manages the named profiles of one device and the session of the active one.
//
// A Session bundles the catalog and resolve engine of the active profile. It replaces any
// notion of a global "current profile": switching profiles builds a new Session and the old
// one must not be used afterwards.
package profile

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/resolve"
)

// Store persists the profile registry and each profile's data. *store.Store implements it.
type Store interface {
	catalog.Repository
	Profiles(ctx context.Context) ([]domain.Profile, error)
	SaveProfiles(ctx context.Context, profiles []domain.Profile) error
	ActiveProfile(ctx context.Context) (string, error)
	SetActiveProfile(ctx context.Context, name string) error
	PurgeProfile(ctx context.Context, ns string) error
}

// Session is the working context of the active profile.
type Session struct {
	Profile  domain.Profile
	Catalog  *catalog.Catalog
	Resolver *resolve.Engine
}

// Manager owns the profile registry and the active Session.
// Switches, deletions, and work run through Do are serialized.
type Manager struct {
	mu sync.Mutex

	store       Store
	logger      *slog.Logger
	catalogOpts []catalog.Option

	profiles []domain.Profile
	session  *Session
	hooks    []func(*Session)
}

// Open loads the registry, creating the default profile on first use, and opens the
// session of the profile that was active last.
func Open(ctx context.Context, store Store, logger *slog.Logger, opts ...catalog.Option) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Manager{store: store, logger: logger, catalogOpts: opts}

	profiles, err := store.Profiles(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load profiles")
	}
	if !slices.ContainsFunc(profiles, byName(domain.DefaultProfile)) {
		profiles = append([]domain.Profile{domain.NewProfile(domain.DefaultProfile)}, profiles...)
		if err := store.SaveProfiles(ctx, profiles); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "save profiles")
		}
		logger.Info("default profile created")
	}
	m.profiles = profiles

	active, err := store.ActiveProfile(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load active profile")
	}
	p, ok := m.find(active)
	if !ok {
		p, _ = m.find(domain.DefaultProfile)
	}

	session, err := m.openSession(ctx, p)
	if err != nil {
		return nil, err
	}
	m.session = session

	logger.Debug("profile manager opened", "active", p.Name, "profiles", len(profiles))
	return m, nil
}

// OnSwitch registers fn to run after every profile switch with the new session.
func (m *Manager) OnSwitch(fn func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Active returns the active session.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// List returns the registered profiles in creation order.
func (m *Manager) List() []domain.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.profiles)
}

// Do runs fn with exclusive access to the active session. No switch happens while fn runs.
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m.session)
}

// Switch makes name the active profile. Switching to the active profile does nothing.
func (m *Manager) Switch(ctx context.Context, name string) (*Session, error) {
	m.mu.Lock()
	session, changed, err := m.switchLocked(ctx, name)
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if changed {
		for _, fn := range hooks {
			fn(session)
		}
	}
	return session, nil
}

func (m *Manager) switchLocked(ctx context.Context, name string) (*Session, bool, error) {
	p, ok := m.find(name)
	if !ok {
		return nil, false, domainerrors.NotFoundf("profile %q not found", name)
	}
	if m.session != nil && m.session.Profile.Name == p.Name {
		return m.session, false, nil
	}

	if m.session != nil {
		if err := m.session.Catalog.Flush(ctx); err != nil {
			return nil, false, err
		}
		m.session.Resolver.Reset()
	}
	return m.activate(ctx, p)
}

// activate opens p and records it as active. Callers hold m.mu.
func (m *Manager) activate(ctx context.Context, p domain.Profile) (*Session, bool, error) {
	session, err := m.openSession(ctx, p)
	if err != nil {
		return nil, false, err
	}
	if err := m.store.SetActiveProfile(ctx, p.Name); err != nil {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "save active profile")
	}

	from := ""
	if m.session != nil {
		from = m.session.Profile.Name
	}
	m.session = session

	m.logger.Info("profile switched", "from", from, "to", p.Name)
	return session, true, nil
}

// Create registers a new profile. The active profile does not change.
func (m *Manager) Create(ctx context.Context, name string) (domain.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Profile{}, domainerrors.Validation("profile name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.find(name); exists {
		return domain.Profile{}, domainerrors.Validationf("profile %q already exists", name)
	}
	p := domain.NewProfile(name)
	if p.Namespace == "" {
		return domain.Profile{}, domainerrors.Validationf("profile name %q has no letters, digits, '-' or '_'", name)
	}
	if i := slices.IndexFunc(m.profiles, func(q domain.Profile) bool { return q.Namespace == p.Namespace }); i >= 0 {
		return domain.Profile{}, domainerrors.ValidationWithDetails(
			"profile name collides with an existing profile",
			map[string]string{"name": name, "existing": m.profiles[i].Name, "namespace": p.Namespace},
		)
	}

	next := append(slices.Clone(m.profiles), p)
	if err := m.store.SaveProfiles(ctx, next); err != nil {
		return domain.Profile{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "save profiles")
	}
	m.profiles = next

	m.logger.Info("profile created", "name", p.Name, "namespace", p.Namespace)
	return p, nil
}

// Delete removes a profile and all of its data. Deleting the active profile
// switches to the default profile.
func (m *Manager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	session, changed, err := m.deleteLocked(ctx, name)
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if changed {
		for _, fn := range hooks {
			fn(session)
		}
	}
	return nil
}

func (m *Manager) deleteLocked(ctx context.Context, name string) (*Session, bool, error) {
	if name == domain.DefaultProfile {
		return nil, false, domainerrors.Protectedf("the %q profile cannot be deleted", domain.DefaultProfile)
	}
	if len(m.profiles) <= 1 {
		return nil, false, domainerrors.Protectedf("the last remaining profile cannot be deleted")
	}
	p, ok := m.find(name)
	if !ok {
		return nil, false, domainerrors.NotFoundf("profile %q not found", name)
	}

	next := slices.DeleteFunc(slices.Clone(m.profiles), byName(name))
	if err := m.store.SaveProfiles(ctx, next); err != nil {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "save profiles")
	}
	m.profiles = next

	if err := m.store.PurgeProfile(ctx, p.Namespace); err != nil {
		return nil, false, domainerrors.Wrap(err, domainerrors.CodeInternal, "purge profile data")
	}
	m.logger.Info("profile deleted", "name", p.Name, "namespace", p.Namespace)

	if m.session.Profile.Name != name {
		return m.session, false, nil
	}

	def, _ := m.find(domain.DefaultProfile)
	return m.activate(ctx, def)
}

func (m *Manager) openSession(ctx context.Context, p domain.Profile) (*Session, error) {
	c, err := catalog.Open(ctx, m.store, p, m.logger, m.catalogOpts...)
	if err != nil {
		return nil, err
	}
	return &Session{
		Profile:  p,
		Catalog:  c,
		Resolver: resolve.NewEngine(c, m.logger.With("profile", p.Namespace)),
	}, nil
}

func (m *Manager) find(name string) (domain.Profile, bool) {
	i := slices.IndexFunc(m.profiles, byName(name))
	if i < 0 {
		return domain.Profile{}, false
	}
	return m.profiles[i], true
}

func byName(name string) func(domain.Profile) bool {
	return func(p domain.Profile) bool { return p.Name == name }
}
