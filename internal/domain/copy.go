// Package domain defines the catalog records shared by the client and server.
package domain

import (
	"slices"
	"time"
)

// Copy is a single physical or wishlist item owned by a profile.
type Copy struct {
	ID         string    `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title" validate:"notblank,max=200"`
	Format     string    `json:"format,omitempty" yaml:"format,omitempty"`
	Region     string    `json:"region,omitempty" yaml:"region,omitempty"`
	Edition    string    `json:"edition,omitempty" yaml:"edition,omitempty"`
	Languages  string    `json:"languages,omitempty" yaml:"languages,omitempty"`
	Notes      string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	UPC        string    `json:"upc,omitempty" yaml:"upc,omitempty"`
	DiscCount  int       `json:"discCount" yaml:"discCount" validate:"gte=1,lte=50"`
	IsWishlist bool      `json:"isWishlist" yaml:"isWishlist"`
	TitleRef   string    `json:"titleRef,omitempty" yaml:"titleRef,omitempty"` // empty means unlinked
	Resolved   bool      `json:"resolved" yaml:"resolved"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
}

// Copy limits.
const (
	MaxTitleLength = 200
	MinDiscCount   = 1
	MaxDiscCount   = 50
	DefaultFormat  = "Unknown"
)

// Linked reports whether the copy carries a title reference.
func (c *Copy) Linked() bool {
	return c.TitleRef != ""
}

// Link points the copy at a title and marks it resolved.
func (c *Copy) Link(externalID string) {
	c.TitleRef = externalID
	c.Resolved = true
}

// Unlink clears the title reference.
func (c *Copy) Unlink() {
	c.TitleRef = ""
	c.Resolved = false
}

// ProfileData is the full catalog content of one profile.
// Copies are kept in insertion order, which is the resolve queue order.
type ProfileData struct {
	Copies         []Copy   `json:"copies" yaml:"copies"`
	Titles         []Title  `json:"titles" yaml:"titles"`
	CustomEditions []string `json:"customEditions" yaml:"customEditions"`
}

// Clone returns a deep copy. Copy and Title hold only value fields so cloning the slices suffices.
func (d *ProfileData) Clone() ProfileData {
	return ProfileData{
		Copies:         nonNil(slices.Clone(d.Copies)),
		Titles:         nonNil(slices.Clone(d.Titles)),
		CustomEditions: nonNil(slices.Clone(d.CustomEditions)),
	}
}

// TitleIndex maps external ids to titles.
func (d *ProfileData) TitleIndex() map[string]*Title {
	idx := make(map[string]*Title, len(d.Titles))
	for i := range d.Titles {
		idx[d.Titles[i].ExternalID] = &d.Titles[i]
	}
	return idx
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
