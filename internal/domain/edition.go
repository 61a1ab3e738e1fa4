package domain

// MaxEditionLength bounds custom edition names.
const MaxEditionLength = 50

// DefaultEditions is the built-in edition list offered for every profile.
//
//nolint:gochecknoglobals // Static list
var DefaultEditions = []string{
	"Standard",
	"Widescreen",
	"Full Screen",
	"Special Edition",
	"Director's Cut",
	"Extended Edition",
	"Collector's Edition",
	"Limited Edition",
	"Anniversary Edition",
	"Criterion Collection",
	"Unrated",
	"Theatrical Cut",
}
