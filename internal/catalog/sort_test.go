package catalog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cineshelfapp/cineshelf/internal/catalog"
	"github.com/cineshelfapp/cineshelf/internal/domain"
)

func ids(copies []domain.Copy) []string {
	out := make([]string, len(copies))
	for i, cp := range copies {
		out[i] = cp.ID
	}
	return out
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		key   string
		field catalog.SortField
		dir   catalog.Direction
	}{
		{"title", catalog.SortTitle, catalog.Ascending},
		{"year-desc", catalog.SortYear, catalog.Descending},
		{"RATING", catalog.SortRating, catalog.Ascending},
		{"added-desc", catalog.SortAdded, catalog.Descending},
		{"popularity", catalog.SortTitle, catalog.Ascending},
		{"popularity-desc", catalog.SortTitle, catalog.Descending},
		{"", catalog.SortTitle, catalog.Ascending},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			field, dir := catalog.ParseSortKey(tt.key)
			assert.Equal(t, tt.field, field)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

func TestSortCopies_StableByTitle(t *testing.T) {
	copies := []domain.Copy{
		{ID: "1", Title: "b"},
		{ID: "2", Title: "a"},
		{ID: "3", Title: "A"},
	}

	asc := catalog.SortCopies(copies, nil, catalog.SortTitle, catalog.Ascending)
	assert.Equal(t, []string{"2", "3", "1"}, ids(asc))

	desc := catalog.SortCopies(copies, nil, catalog.SortTitle, catalog.Descending)
	assert.Equal(t, []string{"1", "2", "3"}, ids(desc))

	// Input is untouched.
	assert.Equal(t, []string{"1", "2", "3"}, ids(copies))
}

func TestSortCopies_LinkedFields(t *testing.T) {
	titles := map[string]*domain.Title{
		"t1": {ExternalID: "t1", Name: "Old", Year: 1950, Rating: 7.5, Runtime: "95 min", Director: "zed", Genre: "Drama"},
		"t2": {ExternalID: "t2", Name: "New", Year: 2010, Rating: 8.1, Runtime: "2 h 10 min", Director: "Abe"},
	}
	copies := []domain.Copy{
		{ID: "old", Title: "Old", TitleRef: "t1", Resolved: true},
		{ID: "loose", Title: "Loose"},
		{ID: "new", Title: "New", TitleRef: "t2", Resolved: true},
	}

	tests := []struct {
		field catalog.SortField
		want  []string
	}{
		{catalog.SortYear, []string{"loose", "old", "new"}},
		{catalog.SortRating, []string{"loose", "old", "new"}},
		// "2 h 10 min" reads as 2.
		{catalog.SortRuntime, []string{"loose", "new", "old"}},
		// Unlinked and blank values read as "Unknown".
		{catalog.SortDirector, []string{"new", "loose", "old"}},
		{catalog.SortGenre, []string{"old", "loose", "new"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			got := catalog.SortCopies(copies, titles, tt.field, catalog.Ascending)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSortCopies_AddedAndFormat(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	copies := []domain.Copy{
		{ID: "1", Format: "dvd", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "2", Format: "Blu-ray", CreatedAt: base},
		{ID: "3", Format: "4K", CreatedAt: base.Add(time.Hour)},
	}

	added := catalog.SortCopies(copies, nil, catalog.SortAdded, catalog.Descending)
	assert.Equal(t, []string{"1", "3", "2"}, ids(added))

	format := catalog.SortCopies(copies, nil, catalog.SortFormat, catalog.Ascending)
	assert.Equal(t, []string{"3", "2", "1"}, ids(format))
}
