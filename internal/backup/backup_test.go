package backup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
	"github.com/cineshelfapp/cineshelf/internal/profile"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
	"github.com/cineshelfapp/cineshelf/internal/store"
)

// flakyStore fails profile writes on demand.
type flakyStore struct {
	*store.Store
	failSave bool
}

func (s *flakyStore) SaveProfile(ctx context.Context, ns string, data *domain.ProfileData) error {
	if s.failSave {
		return errors.New("disk full")
	}
	return s.Store.SaveProfile(ctx, ns, data)
}

// fakeTransport answers per endpoint and records what it was asked.
type fakeTransport struct {
	mu     sync.Mutex
	push   map[string]error
	pull   map[string]func() (*snapshot.Document, error)
	pushed []*snapshot.Document
	calls  []string
}

func (f *fakeTransport) Push(_ context.Context, endpoint, user string, doc *snapshot.Document) (*snapshot.PushResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	if err := f.push[endpoint]; err != nil {
		return nil, err
	}
	f.pushed = append(f.pushed, doc)
	return &snapshot.PushResponse{Success: true, Filename: snapshot.Filename(user), User: user}, nil
}

func (f *fakeTransport) Pull(_ context.Context, endpoint, _, _ string) (*snapshot.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	fn, ok := f.pull[endpoint]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return fn()
}

var testConfig = Config{
	BackupEndpoints:  []string{"http://a/backup", "http://b/backup", "http://c/backup"},
	RestoreEndpoints: []string{"http://a/restore", "http://b/restore", "http://c/restore"},
}

type fixture struct {
	store     *flakyStore
	manager   *profile.Manager
	transport *fakeTransport
	coord     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fs := &flakyStore{Store: s}
	m, err := profile.Open(context.Background(), fs, nil)
	require.NoError(t, err)

	tr := &fakeTransport{
		push: map[string]error{},
		pull: map[string]func() (*snapshot.Document, error){},
	}
	return &fixture{store: fs, manager: m, transport: tr, coord: NewCoordinator(m, tr, testConfig, nil)}
}

func (f *fixture) seed(t *testing.T, titles ...string) {
	t.Helper()
	for _, title := range titles {
		_, err := f.manager.Active().Catalog.AddCopy(context.Background(), catalog.NewCopy{Title: title})
		require.NoError(t, err)
	}
}

func copyTitles(data domain.ProfileData) []string {
	out := make([]string, len(data.Copies))
	for i, cp := range data.Copies {
		out[i] = cp.Title
	}
	return out
}

func TestBackup_FallsBackToNextEndpoint(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Dune", "Heat")
	f.transport.push["http://a/backup"] = errors.New("status 502")

	res, err := f.coord.Backup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "http://b/backup", res.Endpoint)
	assert.Equal(t, "cineshelf_backup_default.json", res.Filename)
	assert.Equal(t, 2, res.Copies)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "http://a/backup", res.Attempts[0].Endpoint)
	assert.Equal(t, []string{"http://a/backup", "http://b/backup"}, f.transport.calls)

	require.Len(t, f.transport.pushed, 1)
	doc := f.transport.pushed[0]
	assert.Equal(t, "default", doc.User)
	assert.Equal(t, snapshot.FormatVersion, doc.FormatVersion)
	assert.Equal(t, res.BackupID, doc.BackupID)

	rec, err := f.manager.Active().Catalog.LastBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.BackupID, rec.BackupID)
	assert.Equal(t, 2, rec.ItemCount)
	assert.Equal(t, "http://b/backup", rec.Endpoint)
}

func TestBackup_AllEndpointsFail(t *testing.T) {
	f := newFixture(t)
	for _, ep := range testConfig.BackupEndpoints {
		f.transport.push[ep] = errors.New("timeout")
	}

	_, err := f.coord.Backup(context.Background())
	require.ErrorIs(t, err, domainerrors.ErrBackupUnavailable)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	attempts, ok := de.Details.([]Attempt)
	require.True(t, ok)
	assert.Len(t, attempts, 3)

	_, err = f.manager.Active().Catalog.LastBackup(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestRestore_ReplacesDataAndKeepsSafetySnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "Local Only")

	remote := domain.ProfileData{
		Copies: []domain.Copy{{ID: "r1", Title: "Remote", DiscCount: 1}},
		Titles: []domain.Title{{ExternalID: "tt1", Name: "Remote"}},
	}
	f.transport.pull["http://b/restore"] = func() (*snapshot.Document, error) {
		doc := snapshot.NewDocument("default", remote, "b1", repairNow)
		doc.RestoreMetadata = &snapshot.RestoreMetadata{FilenameUsed: "cineshelf_backup_default.json"}
		return doc, nil
	}

	res, err := f.coord.Restore(ctx, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, "http://b/restore", res.Source)
	assert.Equal(t, "cineshelf_backup_default.json", res.Filename)
	assert.Equal(t, 1, res.Copies)
	assert.Zero(t, res.Repaired)
	assert.NotEmpty(t, res.SafetySnapshotID)

	cat := f.manager.Active().Catalog
	assert.Equal(t, []string{"Remote"}, copyTitles(cat.Data()))

	// The restored data is what a reopened catalog sees.
	reopened, err := catalog.Open(ctx, f.store, cat.Profile(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Remote"}, copyTitles(reopened.Data()))

	undo, err := f.coord.RestoreSafety(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.SafetySnapshotID, undo.SafetySnapshotID)
	assert.Equal(t, []string{"Local Only"}, copyTitles(f.manager.Active().Catalog.Data()))
}

func TestRestore_NotFoundAnswers(t *testing.T) {
	available := []snapshot.BackupInfo{{Filename: "cineshelf_backup_bob.json", UserPart: "bob"}}

	tests := []struct {
		name    string
		file    string
		missing snapshot.MissingResponse
		want    error
	}{
		{"candidates listed", "", snapshot.MissingResponse{Error: "No backup found", AvailableBackups: available}, domainerrors.ErrRestoreConflict},
		{"nothing stored", "", snapshot.MissingResponse{Error: "No backup found"}, domainerrors.ErrNotFound},
		{"forced file", "cineshelf_backup_x.json", snapshot.MissingResponse{Error: "Backup file not found", File: "cineshelf_backup_x.json"}, domainerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "Keep Me")
			f.transport.pull["http://a/restore"] = func() (*snapshot.Document, error) {
				return nil, &MissingError{MissingResponse: tt.missing}
			}

			_, err := f.coord.Restore(context.Background(), RestoreOptions{File: tt.file})
			require.ErrorIs(t, err, tt.want)

			// Authoritative answer: no further candidates.
			assert.Equal(t, []string{"http://a/restore"}, f.transport.calls)
			assert.Equal(t, []string{"Keep Me"}, copyTitles(f.manager.Active().Catalog.Data()))

			if tt.want == domainerrors.ErrRestoreConflict {
				var de *domainerrors.Error
				require.ErrorAs(t, err, &de)
				assert.Equal(t, available, de.Details)
			}
		})
	}
}

func TestRestore_InvalidPayloadStopsSearch(t *testing.T) {
	f := newFixture(t)
	f.transport.pull["http://a/restore"] = func() (*snapshot.Document, error) {
		return nil, domainerrors.Validation("snapshot has no copies array")
	}
	f.transport.pull["http://b/restore"] = func() (*snapshot.Document, error) {
		t.Fatal("second endpoint must not be tried")
		return nil, nil
	}

	_, err := f.coord.Restore(context.Background(), RestoreOptions{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestRestore_AllEndpointsFail(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Restore(context.Background(), RestoreOptions{})
	require.ErrorIs(t, err, domainerrors.ErrBackupUnavailable)
	assert.Len(t, f.transport.calls, 3)
}

func TestRestore_WriteFailureLeavesDataUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "Original")

	f.transport.pull["http://a/restore"] = func() (*snapshot.Document, error) {
		return snapshot.NewDocument("default", domain.ProfileData{
			Copies: []domain.Copy{{ID: "r1", Title: "Remote", DiscCount: 1}},
		}, "b1", repairNow), nil
	}
	f.store.failSave = true

	_, err := f.coord.Restore(ctx, RestoreOptions{})
	require.ErrorIs(t, err, domainerrors.ErrInternal)

	cat := f.manager.Active().Catalog
	assert.Equal(t, []string{"Original"}, copyTitles(cat.Data()))

	snap, err := cat.SafetySnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SafetyReasonBeforeRestore, snap.Reason)
	assert.Equal(t, []string{"Original"}, copyTitles(snap.Data))
}

func TestRestore_FinishesAfterCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.transport.pull["http://a/restore"] = func() (*snapshot.Document, error) {
		// The caller gives up once the document is in hand.
		cancel()
		return snapshot.NewDocument("default", domain.ProfileData{
			Copies: []domain.Copy{{ID: "r1", Title: "Remote", DiscCount: 1}},
		}, "b1", repairNow), nil
	}

	_, err := f.coord.Restore(ctx, RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Remote"}, copyTitles(f.manager.Active().Catalog.Data()))
}

func TestImportDocument(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Old")

	_, err := f.coord.ImportDocument(context.Background(), &snapshot.Document{}, "file.json")
	require.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Equal(t, []string{"Old"}, copyTitles(f.manager.Active().Catalog.Data()))

	doc := &snapshot.Document{
		Copies: []snapshot.Copy{{Title: "Imported"}},
		Titles: []domain.Title{},
	}
	res, err := f.coord.ImportDocument(context.Background(), doc, "file.json")
	require.NoError(t, err)
	assert.Equal(t, "file.json", res.Source)
	assert.Positive(t, res.Repaired)
	assert.Equal(t, []string{"Imported"}, copyTitles(f.manager.Active().Catalog.Data()))
}

func TestRestoreSafety_WithoutSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.RestoreSafety(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestEndpoints(t *testing.T) {
	got := Endpoints(" http://host:8080/ ", []string{"/api/v1/backup", "backup"})
	assert.Equal(t, []string{"http://host:8080/api/v1/backup", "http://host:8080/backup"}, got)
}
