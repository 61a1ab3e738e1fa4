package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/ratelimit"
	"github.com/cineshelfapp/cineshelf/internal/search"
	"github.com/cineshelfapp/cineshelf/internal/snapshot"
	"github.com/cineshelfapp/cineshelf/internal/store/sqlite"
	"github.com/cineshelfapp/cineshelf/internal/titles"
)

// testServer wraps the API server with direct access to its storage.
type testServer struct {
	*Server
	api         humatest.TestAPI
	snapshotDir string
}

func setupTestServer(t *testing.T, opts ...func(*Options)) *testServer {
	t.Helper()
	dir := t.TempDir()

	snapshotDir := filepath.Join(dir, "snapshots")
	repo, err := snapshot.NewFSRepository(snapshotDir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	db, err := sqlite.Open(filepath.Join(dir, "cineshelf.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, _, err := search.NewTitleIndex(search.Options{DataPath: filepath.Join(dir, "index")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	o := Options{
		Snapshots: repo,
		Titles:    titles.NewService(db, idx, nil),
		Database:  db,
		Index:     idx,
	}
	for _, fn := range opts {
		fn(&o)
	}

	s := NewServer(o)
	return &testServer{
		Server:      s,
		api:         humatest.Wrap(t, s.api),
		snapshotDir: snapshotDir,
	}
}

func sampleDocument(user string) *snapshot.Document {
	data := domain.ProfileData{
		Copies: []domain.Copy{{
			ID:        "copy-1",
			Title:     "Dune",
			Format:    "4K UHD",
			DiscCount: 2,
			TitleRef:  "tt1160419",
			Resolved:  true,
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}},
		Titles:         []domain.Title{{ExternalID: "tt1160419", Name: "Dune", Year: 2021}},
		CustomEditions: []string{"Collector's Tin"},
	}
	return snapshot.NewDocument(user, data, "backup-1", time.Now())
}

// do sends a raw request through the full middleware stack.
func (ts *testServer) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestBackup_StoresSnapshot(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/backup", sampleDocument("alice"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp snapshot.PushResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Backup saved successfully", resp.Message)
	assert.Equal(t, "cineshelf_backup_alice.json", resp.Filename)
	assert.Equal(t, "alice", resp.User)
	assert.False(t, resp.Timestamp.IsZero())

	_, err := os.Stat(filepath.Join(ts.snapshotDir, "cineshelf_backup_alice.json"))
	require.NoError(t, err)
}

func TestBackup_AllMountPoints(t *testing.T) {
	ts := setupTestServer(t)

	for _, path := range []string{"/api/v1/backup", "/api/backup", "/backup"} {
		t.Run(path, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, path, sampleDocument("alice"), nil)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
}

func TestBackup_UserFromHeader(t *testing.T) {
	ts := setupTestServer(t)

	doc := sampleDocument("")
	w := ts.do(t, http.MethodPost, "/backup", doc, map[string]string{
		snapshot.HeaderUserID:        "bob",
		snapshot.HeaderBackupVersion: snapshot.ClientVersion,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cineshelf_backup_bob.json", decodeMap(t, w)["filename"])
}

func TestBackup_SanitizesUser(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodPost, "/backup", sampleDocument("al ice!"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "alice", decodeMap(t, w)["user"])
}

func TestBackup_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"not json", "{not json", "Invalid data - snapshot is not a valid document"},
		{"no copies", `{"user":"alice","titles":[]}`, "Invalid data - snapshot has no copies array"},
		{"no user", sampleDocument(""), "Invalid data - user field required"},
		{"unusable user", sampleDocument("!!!"), "Invalid username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)

			w := ts.do(t, http.MethodPost, "/api/v1/backup", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			body := decodeMap(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])

			entries, err := os.ReadDir(ts.snapshotDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestBackup_TooLarge(t *testing.T) {
	ts := setupTestServer(t, func(o *Options) { o.MaxBodyBytes = 64 })

	w := ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRestore_ReturnsDocumentWithMetadata(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil).Code)

	for _, path := range []string{"/api/v1/restore", "/api/restore", "/restore"} {
		t.Run(path, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, path+"?user=alice", nil, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			doc, err := snapshot.DecodeBytes(w.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, "alice", doc.User)
			assert.Equal(t, "Backup for alice", doc.BackupLabel)
			require.Len(t, doc.Copies, 1)
			assert.Equal(t, "Dune", doc.Copies[0].Title)
			assert.Equal(t, []string{"Collector's Tin"}, doc.CustomEditions)

			require.NotNil(t, doc.RestoreMetadata)
			assert.Equal(t, "cineshelf_backup_alice.json", doc.RestoreMetadata.FilenameUsed)
			assert.Equal(t, "alice", doc.RestoreMetadata.UserRequested)
			assert.False(t, doc.RestoreMetadata.FileForced)
		})
	}
}

func TestRestore_SubstringMatch(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice_phone"), nil).Code)

	w := ts.do(t, http.MethodGet, "/restore?user=alice", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc, err := snapshot.DecodeBytes(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "cineshelf_backup_alice_phone.json", doc.RestoreMetadata.FilenameUsed)
}

func TestRestore_ForcedFile(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil).Code)

	w := ts.do(t, http.MethodGet, "/restore?user=bob&file=../cineshelf_backup_alice.json", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc, err := snapshot.DecodeBytes(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "cineshelf_backup_alice.json", doc.RestoreMetadata.FilenameUsed)
	assert.Equal(t, "bob", doc.RestoreMetadata.UserRequested)
	assert.True(t, doc.RestoreMetadata.FileForced)
}

func TestRestore_ForcedFileMissing(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/restore?user=alice&file=cineshelf_backup_nobody.json", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, map[string]any{
		"error": "Specified file not found",
		"file":  "cineshelf_backup_nobody.json",
	}, decodeMap(t, w))
}

func TestRestore_NotFoundListsBackups(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil).Code)

	w := ts.do(t, http.MethodGet, "/restore?user=zed", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp snapshot.NotFoundResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "No backup found for this user", resp.Error)
	assert.Equal(t, "zed", resp.User)
	assert.Equal(t, snapshot.NotFoundSuggestion, resp.Suggestion)
	require.Len(t, resp.AvailableBackups, 1)
	assert.Equal(t, "cineshelf_backup_alice.json", resp.AvailableBackups[0].Filename)
	assert.Equal(t, "alice", resp.AvailableBackups[0].UserPart)
	assert.Positive(t, resp.AvailableBackups[0].Size)
}

func TestRestore_NotFoundEmptyRepository(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, http.MethodGet, "/restore?user=zed", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, []any{}, decodeMap(t, w)["availableBackups"])
}

func TestRestore_UserRequired(t *testing.T) {
	ts := setupTestServer(t)

	for _, target := range []string{"/restore", "/restore?user=", "/restore?user=%21%21"} {
		w := ts.do(t, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, "User parameter required", decodeMap(t, w)["error"])
	}
}

func TestRestore_Post(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil).Code)

	w := ts.do(t, http.MethodPost, "/api/restore", map[string]string{"user": "alice"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	doc, err := snapshot.DecodeBytes(w.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "alice", doc.User)
}

func TestRestore_CorruptBlob(t *testing.T) {
	ts := setupTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(ts.snapshotDir, "cineshelf_backup_carol.json"), []byte("{oops"), 0o644))

	w := ts.do(t, http.MethodGet, "/restore?user=carol&file=cineshelf_backup_carol.json", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeMap(t, w)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestListBackups(t *testing.T) {
	ts := setupTestServer(t)
	for _, user := range []string{"alice", "alice_tablet", "bob"} {
		require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument(user), nil).Code)
	}

	resp := ts.api.Get("/api/v1/backups")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var all BackupListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &all))
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Backups, 3)

	resp = ts.api.Get("/api/v1/backups?user=alice")
	require.Equal(t, http.StatusOK, resp.Code)

	var filtered BackupListResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &filtered))
	assert.Equal(t, 2, filtered.Total)
	for _, b := range filtered.Backups {
		assert.True(t, strings.HasPrefix(b.UserPart, "alice"))
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(0.001, 2)
	t.Cleanup(limiter.Stop)
	ts := setupTestServer(t, func(o *Options) { o.Limiter = limiter })

	headers := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/restore?user=a", nil, headers).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/restore?user=a", nil, headers).Code)

	w := ts.do(t, http.MethodGet, "/restore?user=a", nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Other clients have their own budget.
	other := map[string]string{"X-Forwarded-For": "203.0.113.8"}
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/restore?user=a", nil, other).Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:4000", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:4000", "198.51.100.2"},
		{"remote addr", nil, "198.51.100.3:5555", "198.51.100.3"},
		{"remote without port", nil, "198.51.100.4", "198.51.100.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(r))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/backup", nil)
	req.Header.Set("Origin", "https://shelf.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")
	w := httptest.NewRecorder()
	ts.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/backup", sampleDocument("alice"), nil).Code)

	w := ts.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cineshelf_http_requests_total")
	assert.Contains(t, w.Body.String(), `cineshelf_snapshot_operations_total{operation="put",outcome="ok"}`)
}
