// Package search provides full-text search over the shared title catalog using Bleve.
package search

import (
	"strings"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
)

// TitleDocument is the indexed form of a title.
type TitleDocument struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Plot     string   `json:"plot,omitempty"`
	Director string   `json:"director,omitempty"`
	Genres   []string `json:"genres,omitempty"` // lowercased, one per comma-separated genre
	Year     int      `json:"year,omitempty"`
	Rating   float64  `json:"rating,omitempty"`

	UpdatedAt int64 `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names matching the mapping.
func (d *TitleDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"updated_at": d.UpdatedAt,
	}

	if d.Plot != "" {
		m["plot"] = d.Plot
	}
	if d.Director != "" {
		m["director"] = d.Director
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	if d.Year > 0 {
		m["year"] = d.Year
	}
	if d.Rating > 0 {
		m["rating"] = d.Rating
	}
	return m
}

// TitleToDocument converts a domain Title to a TitleDocument.
func TitleToDocument(t *domain.Title, updatedAt time.Time) *TitleDocument {
	return &TitleDocument{
		ID:        t.ExternalID,
		Name:      t.Name,
		Plot:      t.Plot,
		Director:  t.Director,
		Genres:    splitGenres(t.Genre),
		Year:      t.Year,
		Rating:    t.Rating,
		UpdatedAt: updatedAt.UnixMilli(),
	}
}

func splitGenres(genre string) []string {
	var out []string
	for _, g := range strings.Split(genre, ",") {
		if g = strings.ToLower(strings.TrimSpace(g)); g != "" {
			out = append(out, g)
		}
	}
	return out
}
