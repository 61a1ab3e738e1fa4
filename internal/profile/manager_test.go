package profile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/profile"
	"github.com/cineshelfapp/cineshelf/internal/resolve"
	"github.com/cineshelfapp/cineshelf/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestManager(t *testing.T, s *store.Store) *profile.Manager {
	t.Helper()
	m, err := profile.Open(context.Background(), s, nil)
	require.NoError(t, err)
	return m
}

func names(profiles []domain.Profile) []string {
	out := make([]string, len(profiles))
	for i, p := range profiles {
		out[i] = p.Name
	}
	return out
}

func TestOpen_CreatesDefault(t *testing.T) {
	m := newTestManager(t, newTestStore(t))

	assert.Equal(t, []string{domain.DefaultProfile}, names(m.List()))
	assert.Equal(t, domain.DefaultProfile, m.Active().Profile.Name)
}

func TestCreate(t *testing.T) {
	m := newTestManager(t, newTestStore(t))
	ctx := context.Background()

	p, err := m.Create(ctx, "Kid's Shelf")
	require.NoError(t, err)
	assert.Equal(t, "KidsShelf", p.Namespace)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"duplicate", "Kid's Shelf"},
		{"no usable characters", "!!!"},
		{"namespace collision", "Kids Shelf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(ctx, tt.input)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}

	assert.Equal(t, []string{domain.DefaultProfile, "Kid's Shelf"}, names(m.List()))
	assert.Equal(t, domain.DefaultProfile, m.Active().Profile.Name)
}

func TestSwitch_IsolatesData(t *testing.T) {
	m := newTestManager(t, newTestStore(t))
	ctx := context.Background()

	_, err := m.Active().Catalog.AddCopy(ctx, catalog.NewCopy{Title: "Dune"})
	require.NoError(t, err)

	_, err = m.Create(ctx, "alice")
	require.NoError(t, err)

	var hooked []string
	m.OnSwitch(func(s *profile.Session) { hooked = append(hooked, s.Profile.Name) })

	s, err := m.Switch(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, s.Catalog.ListCopies(catalog.FilterAll))
	state, _ := s.Resolver.State()
	assert.Equal(t, resolve.Idle, state)

	// Switching to the active profile does nothing.
	same, err := m.Switch(ctx, "alice")
	require.NoError(t, err)
	assert.Same(t, s, same)

	back, err := m.Switch(ctx, domain.DefaultProfile)
	require.NoError(t, err)
	assert.Len(t, back.Catalog.ListCopies(catalog.FilterAll), 1)

	assert.Equal(t, []string{"alice", domain.DefaultProfile}, hooked)

	_, err = m.Switch(ctx, "bob")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSwitch_ResetsResolver(t *testing.T) {
	m := newTestManager(t, newTestStore(t))
	ctx := context.Background()

	old := m.Active()
	cp, err := old.Catalog.AddCopy(ctx, catalog.NewCopy{Title: "Heat"})
	require.NoError(t, err)
	_, err = old.Resolver.Start(cp.ID)
	require.NoError(t, err)

	_, err = m.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = m.Switch(ctx, "alice")
	require.NoError(t, err)

	state, _ := old.Resolver.State()
	assert.Equal(t, resolve.Idle, state)

	back, err := m.Switch(ctx, domain.DefaultProfile)
	require.NoError(t, err)
	state, _ = back.Resolver.State()
	assert.Equal(t, resolve.Idle, state)
	assert.Empty(t, back.Resolver.Skipped())
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	m := newTestManager(t, s)
	ctx := context.Background()

	assert.ErrorIs(t, m.Delete(ctx, domain.DefaultProfile), domainerrors.ErrProtectedResource)

	_, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	active, err := m.Switch(ctx, "alice")
	require.NoError(t, err)
	_, err = active.Catalog.AddCopy(ctx, catalog.NewCopy{Title: "Alien"})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Delete(ctx, "bob"), domainerrors.ErrNotFound)

	require.NoError(t, m.Delete(ctx, "alice"))
	assert.Equal(t, domain.DefaultProfile, m.Active().Profile.Name)
	assert.Equal(t, []string{domain.DefaultProfile}, names(m.List()))

	data, err := s.LoadProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, data.Copies)

	// Only the default profile remains.
	assert.ErrorIs(t, m.Delete(ctx, domain.DefaultProfile), domainerrors.ErrProtectedResource)
}

func TestDelete_InactiveProfileKeepsSession(t *testing.T) {
	m := newTestManager(t, newTestStore(t))
	ctx := context.Background()

	_, err := m.Create(ctx, "alice")
	require.NoError(t, err)

	before := m.Active()
	require.NoError(t, m.Delete(ctx, "alice"))
	assert.Same(t, before, m.Active())
}

func TestOpen_RestoresActiveProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := newTestManager(t, s)
	_, err := m.Create(ctx, "alice")
	require.NoError(t, err)
	_, err = m.Switch(ctx, "alice")
	require.NoError(t, err)

	reopened := newTestManager(t, s)
	assert.Equal(t, "alice", reopened.Active().Profile.Name)
	assert.Equal(t, []string{domain.DefaultProfile, "alice"}, names(reopened.List()))
}

func TestDo_ExclusiveSession(t *testing.T) {
	m := newTestManager(t, newTestStore(t))
	ctx := context.Background()

	err := m.Do(ctx, func(ctx context.Context, s *profile.Session) error {
		_, err := s.Catalog.AddCopy(ctx, catalog.NewCopy{Title: "Ran"})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, m.Active().Catalog.ListCopies(catalog.FilterAll), 1)
}
