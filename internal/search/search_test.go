package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cineshelfapp/cineshelf/internal/domain"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) *TitleIndex {
	t.Helper()

	index, created, err := NewTitleIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	require.True(t, created)
	t.Cleanup(func() { _ = index.Close() })

	return index
}

func seedTitles(t *testing.T, index *TitleIndex) {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	titles := []domain.Title{
		{ExternalID: "tt0113277", Name: "Heat", Year: 1995, Director: "Michael Mann", Genre: "Crime, Drama", Plot: "A group of professional bank robbers."},
		{ExternalID: "tt1160419", Name: "Dune", Year: 2021, Director: "Denis Villeneuve", Genre: "Sci-Fi, Adventure"},
		{ExternalID: "tt0087182", Name: "Dune", Year: 1984, Director: "David Lynch", Genre: "Sci-Fi"},
		{ExternalID: "tt0338013", Name: "Collateral", Year: 2004, Director: "Michael Mann", Genre: "Crime"},
	}
	docs := make([]*TitleDocument, len(titles))
	for i := range titles {
		docs[i] = TitleToDocument(&titles[i], now)
	}
	require.NoError(t, index.IndexTitles(docs))
}

func hitIDs(res *Result) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ExternalID
	}
	return ids
}

func TestNewTitleIndex(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewTitleIndex_ReopensAndRebuildsOnVersionChange(t *testing.T) {
	dir := t.TempDir()

	index, created, err := NewTitleIndex(Options{DataPath: dir})
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, index.IndexTitle(&TitleDocument{ID: "a", Name: "Alien"}))
	require.NoError(t, index.Close())

	index, created, err = NewTitleIndex(Options{DataPath: dir})
	require.NoError(t, err)
	assert.False(t, created)
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "titles.version"), []byte("0"), 0o644))
	index, created, err = NewTitleIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer index.Close()
	assert.True(t, created)
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_ByName(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)

	res, err := index.Search(context.Background(), Params{Query: "dune"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Total)
	assert.ElementsMatch(t, []string{"tt1160419", "tt0087182"}, hitIDs(res))
	assert.Equal(t, "Dune", res.Hits[0].Name)
}

func TestSearch_ByDirector(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)

	res, err := index.Search(context.Background(), Params{Query: "Michael Mann"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tt0113277", "tt0338013"}, hitIDs(res))
}

func TestSearch_Filters(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)
	ctx := context.Background()

	res, err := index.Search(ctx, Params{Genre: "Crime"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tt0113277", "tt0338013"}, hitIDs(res))

	res, err = index.Search(ctx, Params{Query: "dune", MinYear: 2000})
	require.NoError(t, err)
	assert.Equal(t, []string{"tt1160419"}, hitIDs(res))
	assert.Equal(t, 2021, res.Hits[0].Year)
}

func TestSearch_Limit(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)

	res, err := index.Search(context.Background(), Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), res.Total)
	assert.Len(t, res.Hits, 2)
}

func TestDeleteTitle(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)

	require.NoError(t, index.DeleteTitle("tt0087182"))
	res, err := index.Search(context.Background(), Params{Query: "dune"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tt1160419"}, hitIDs(res))
}

func TestRebuild(t *testing.T) {
	index := setupTestIndex(t)
	seedTitles(t, index)

	require.NoError(t, index.Rebuild())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestTitleToDocument_SplitsGenres(t *testing.T) {
	doc := TitleToDocument(&domain.Title{ExternalID: "x", Name: "X", Genre: " Crime ,, Drama"}, time.Unix(0, 0))
	assert.Equal(t, []string{"crime", "drama"}, doc.Genres)

	m := doc.ToMap()
	assert.NotContains(t, m, "plot")
	assert.Equal(t, "x", m["id"])
}
