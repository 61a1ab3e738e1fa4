package domain

// Title is descriptive metadata for a work, keyed by an external identifier
// (for example an IMDb id) that is unique within a profile.
type Title struct {
	ExternalID string  `json:"externalId" yaml:"externalId" validate:"notblank,max=100"`
	Name       string  `json:"name" yaml:"name" validate:"notblank,max=500"`
	Year       int     `json:"year,omitempty" yaml:"year,omitempty" validate:"gte=0,lte=9999"`
	Rating     float64 `json:"rating,omitempty" yaml:"rating,omitempty" validate:"gte=0,lte=10"`
	PosterURL  string  `json:"posterUrl,omitempty" yaml:"posterUrl,omitempty"`
	Plot       string  `json:"plot,omitempty" yaml:"plot,omitempty"`
	Director   string  `json:"director,omitempty" yaml:"director,omitempty"`
	Genre      string  `json:"genre,omitempty" yaml:"genre,omitempty"`
	Runtime    string  `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

// Placeholders used when repairing titles that arrive without identity.
const (
	UnknownTitleName = "Unknown Title"
	UnknownIDPrefix  = "unknown_"
)

// Bounds mirrored by the Title validation tags.
const (
	MaxExternalIDLength = 100
	MaxTitleNameLength  = 500
	MaxYear             = 9999
	MaxRating           = 10.0
)
