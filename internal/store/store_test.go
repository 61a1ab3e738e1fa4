package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleData() *domain.ProfileData {
	return &domain.ProfileData{
		Copies: []domain.Copy{
			{ID: "copy-1", Title: "Dune", DiscCount: 2, CreatedAt: time.Now().UTC().Truncate(time.Second)},
			{ID: "copy-2", Title: "Alien", DiscCount: 1, TitleRef: "tt0078748", Resolved: true},
		},
		Titles:         []domain.Title{{ExternalID: "tt0078748", Name: "Alien", Year: 1979}},
		CustomEditions: []string{"Steelbook"},
	}
}

func TestLoadProfile_EmptyNamespace(t *testing.T) {
	s := setupTestStore(t)

	data, err := s.LoadProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, data.Copies)
	assert.Empty(t, data.Copies)
	assert.Empty(t, data.Titles)
	assert.Empty(t, data.CustomEditions)
}

func TestSaveProfile_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	want := sampleData()
	require.NoError(t, s.SaveProfile(ctx, "alice", want))

	got, err := s.LoadProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, want.Copies, got.Copies)
	assert.Equal(t, want.Titles, got.Titles)
	assert.Equal(t, want.CustomEditions, got.CustomEditions)

	// Other namespaces are untouched.
	other, err := s.LoadProfile(ctx, "alice2")
	require.NoError(t, err)
	assert.Empty(t, other.Copies)
}

func TestSaveProfile_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	ctx := context.Background()

	s, err := store.New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveProfile(ctx, "default", sampleData()))
	require.NoError(t, s.Close())

	s, err = store.New(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadProfile(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, got.Copies, 2)
}

func TestPurgeProfile(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProfile(ctx, "bob", sampleData()))
	require.NoError(t, s.SaveLastBackup(ctx, "bob", &domain.BackupRecord{ItemCount: 2}))
	require.NoError(t, s.SaveProfile(ctx, "bobby", sampleData()))

	require.NoError(t, s.PurgeProfile(ctx, "bob"))

	data, err := s.LoadProfile(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, data.Copies)

	_, err = s.LastBackup(ctx, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// A namespace sharing a prefix survives.
	data, err = s.LoadProfile(ctx, "bobby")
	require.NoError(t, err)
	assert.Len(t, data.Copies, 2)
}

func TestSafetySnapshot(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.SafetySnapshot(ctx, "default")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	snap := &domain.SafetySnapshot{
		ID:     "safety-1",
		Reason: domain.SafetyReasonBeforeRestore,
		Data:   *sampleData(),
	}
	require.NoError(t, s.SaveSafetySnapshot(ctx, "default", snap))

	got, err := s.SafetySnapshot(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, domain.SafetyReasonBeforeRestore, got.Reason)
	assert.Len(t, got.Data.Copies, 2)
}

func TestProfilesRegistry(t *testing.T) {
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	profiles, err := s.Profiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	active, err := s.ActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", active)

	require.NoError(t, s.SaveProfiles(ctx, []domain.Profile{domain.NewProfile("default"), domain.NewProfile("Kid's Shelf")}))
	require.NoError(t, s.SetActiveProfile(ctx, "Kid's Shelf"))

	profiles, err = s.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "KidsShelf", profiles[1].Namespace)

	active, err = s.ActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kid's Shelf", active)

	assert.NoError(t, s.Ping(ctx))
}

func TestDocument(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	doc := store.NewDocument[domain.BackupRecord](s, "test:doc")

	_, err := doc.Get(ctx)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, doc.Put(ctx, &domain.BackupRecord{ItemCount: 3, Endpoint: "http://a"}))
	got, err := doc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ItemCount)

	require.NoError(t, doc.Delete(ctx))
	require.NoError(t, doc.Delete(ctx), "delete is idempotent")

	def, err := doc.GetOr(ctx, domain.BackupRecord{Endpoint: "none"})
	require.NoError(t, err)
	assert.Equal(t, "none", def.Endpoint)
}
