package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	"github.com/cineshelfapp/cineshelf/internal/normalize"
)

// SortField names a sortable attribute of a copy or its linked title.
type SortField string

// Sort fields.
const (
	SortTitle    SortField = "title"
	SortYear     SortField = "year"
	SortRating   SortField = "rating"
	SortRuntime  SortField = "runtime"
	SortDirector SortField = "director"
	SortGenre    SortField = "genre"
	SortFormat   SortField = "format"
	SortAdded    SortField = "added"
)

// Direction is the sort direction.
type Direction int

// Directions.
const (
	Ascending Direction = iota
	Descending
)

const descSuffix = "-desc"

// unknownField is used for director and genre when no title is linked.
const unknownField = "Unknown"

// ParseSortKey splits keys such as "year-desc" into a field and a direction.
// Unrecognized fields fall back to title.
func ParseSortKey(key string) (SortField, Direction) {
	key = strings.ToLower(strings.TrimSpace(key))

	dir := Ascending
	if trimmed, ok := strings.CutSuffix(key, descSuffix); ok {
		key = trimmed
		dir = Descending
	}

	field := SortField(key)
	switch field {
	case SortTitle, SortYear, SortRating, SortRuntime, SortDirector, SortGenre, SortFormat, SortAdded:
		return field, dir
	default:
		return SortTitle, dir
	}
}

// Sort returns copies ordered by key, resolving linked titles in this catalog.
func (c *Catalog) Sort(copies []domain.Copy, key string) []domain.Copy {
	c.mu.RLock()
	titles := c.data.TitleIndex()
	c.mu.RUnlock()

	field, dir := ParseSortKey(key)
	return SortCopies(copies, titles, field, dir)
}

// SortCopies returns a sorted copy of copies. The sort is stable: copies that compare
// equal keep their relative order in either direction.
func SortCopies(copies []domain.Copy, titles map[string]*domain.Title, field SortField, dir Direction) []domain.Copy {
	out := slices.Clone(copies)
	compare := comparator(titles, field)

	slices.SortStableFunc(out, func(a, b domain.Copy) int {
		if dir == Descending {
			return compare(&b, &a)
		}
		return compare(&a, &b)
	})
	return out
}

func comparator(titles map[string]*domain.Title, field SortField) func(a, b *domain.Copy) int {
	linked := func(cp *domain.Copy) *domain.Title {
		if cp.TitleRef == "" {
			return nil
		}
		return titles[cp.TitleRef]
	}
	textOf := func(cp *domain.Copy, pick func(*domain.Title) string) string {
		if t := linked(cp); t != nil {
			return normalize.OrDefault(pick(t), unknownField)
		}
		return unknownField
	}

	switch field {
	case SortYear:
		return func(a, b *domain.Copy) int {
			return cmp.Compare(yearOf(linked(a)), yearOf(linked(b)))
		}
	case SortRating:
		return func(a, b *domain.Copy) int {
			return cmp.Compare(ratingOf(linked(a)), ratingOf(linked(b)))
		}
	case SortRuntime:
		return func(a, b *domain.Copy) int {
			return cmp.Compare(runtimeOf(linked(a)), runtimeOf(linked(b)))
		}
	case SortDirector:
		return func(a, b *domain.Copy) int {
			pick := func(t *domain.Title) string { return t.Director }
			return normalize.Compare(textOf(a, pick), textOf(b, pick))
		}
	case SortGenre:
		return func(a, b *domain.Copy) int {
			pick := func(t *domain.Title) string { return t.Genre }
			return normalize.Compare(textOf(a, pick), textOf(b, pick))
		}
	case SortFormat:
		return func(a, b *domain.Copy) int {
			return normalize.Compare(a.Format, b.Format)
		}
	case SortAdded:
		return func(a, b *domain.Copy) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	default:
		return func(a, b *domain.Copy) int {
			return normalize.Compare(a.Title, b.Title)
		}
	}
}

func yearOf(t *domain.Title) int {
	if t == nil {
		return 0
	}
	return t.Year
}

func ratingOf(t *domain.Title) float64 {
	if t == nil {
		return 0
	}
	return t.Rating
}

func runtimeOf(t *domain.Title) int {
	if t == nil {
		return 0
	}
	return normalize.RuntimeMinutes(t.Runtime)
}
