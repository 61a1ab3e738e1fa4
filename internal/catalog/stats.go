package catalog

import "github.com/cineshelfapp/cineshelf/internal/normalize"

// Stats summarizes a profile.
type Stats struct {
	Total          int            `json:"total" yaml:"total"`
	Collection     int            `json:"collection" yaml:"collection"`
	Wishlist       int            `json:"wishlist" yaml:"wishlist"`
	Unresolved     int            `json:"unresolved" yaml:"unresolved"`
	Titles         int            `json:"titles" yaml:"titles"`
	CustomEditions int            `json:"customEditions" yaml:"customEditions"`
	Discs          int            `json:"discs" yaml:"discs"`
	Formats        map[string]int `json:"formats" yaml:"formats"`
	Languages      map[string]int `json:"languages" yaml:"languages"`
}

// Stats computes counts over every copy of the profile.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Total:          len(c.data.Copies),
		Titles:         len(c.data.Titles),
		CustomEditions: len(c.data.CustomEditions),
		Formats:        make(map[string]int),
		Languages:      make(map[string]int),
	}
	for _, cp := range c.data.Copies {
		if cp.IsWishlist {
			s.Wishlist++
		} else {
			s.Collection++
			s.Discs += cp.DiscCount
		}
		if !cp.Resolved {
			s.Unresolved++
		}
		s.Formats[cp.Format]++
		for _, lang := range normalize.Languages(cp.Languages) {
			s.Languages[lang]++
		}
	}
	return s
}
