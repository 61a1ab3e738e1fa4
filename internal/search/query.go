package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a search query.
type Params struct {
	Query string // User's search query
	Genre string // Exact genre filter, case-insensitive

	MinYear int
	MaxYear int

	Limit  int
	Offset int

	Highlight bool
}

// DefaultLimit is used when Params.Limit is not positive.
const DefaultLimit = 20

// MaxLimit caps Params.Limit.
const MaxLimit = 100

// Result is a page of search hits.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"tookMs"`
	Hits   []Hit  `json:"hits"`
}

// Hit is one matching title.
type Hit struct {
	ExternalID string            `json:"externalId"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	Director   string            `json:"director,omitempty"`
	Year       int               `json:"year,omitempty"`
	Rating     float64           `json:"rating,omitempty"`
	Genres     []string          `json:"genres,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// Search executes a search query.
func (s *TitleIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	searchRequest := bleve.NewSearchRequestOptions(buildQuery(params), limit, max(params.Offset, 0), false)
	searchRequest.SortBy([]string{"-_score", "name"})

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
	}

	searchRequest.Fields = []string{"name", "director", "year", "rating", "genres"}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		h := Hit{
			ExternalID: hit.ID,
			Score:      hit.Score,
		}

		if n, ok := hit.Fields["name"].(string); ok {
			h.Name = n
		}
		if d, ok := hit.Fields["director"].(string); ok {
			h.Director = d
		}
		if y, ok := hit.Fields["year"].(float64); ok {
			h.Year = int(y)
		}
		if r, ok := hit.Fields["rating"].(float64); ok {
			h.Rating = r
		}
		// A single stored value comes back as a string, several as a slice.
		switch g := hit.Fields["genres"].(type) {
		case string:
			h.Genres = []string{g}
		case []any:
			for _, v := range g {
				if str, ok := v.(string); ok {
					h.Genres = append(h.Genres, str)
				}
			}
		}

		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, h)
	}

	return result, nil
}

// buildQuery constructs the Bleve query from params.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		directorMatch := bleve.NewMatchQuery(q)
		directorMatch.SetField("director")
		directorMatch.SetBoost(1.5)

		plotMatch := bleve.NewMatchQuery(q)
		plotMatch.SetField("plot")
		plotMatch.SetBoost(0.5)

		// Typo tolerance on the name.
		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)

		textQueries := []query.Query{nameMatch, directorMatch, plotMatch, fuzzyQuery}

		// Autocomplete on partial names.
		if len(q) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(q))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if g := strings.ToLower(strings.TrimSpace(params.Genre)); g != "" {
		gq := bleve.NewTermQuery(g)
		gq.SetField("genres")
		queries = append(queries, gq)
	}

	if params.MinYear > 0 || params.MaxYear > 0 {
		lo := float64(params.MinYear)
		hi := float64(params.MaxYear)
		if params.MaxYear == 0 {
			hi = 9999
		}
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		rangeQuery.SetField("year")
		queries = append(queries, rangeQuery)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}
