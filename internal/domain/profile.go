package domain

import (
	"regexp"
	"time"
)

// DefaultProfile is the profile that always exists and can never be deleted.
const DefaultProfile = "default"

var identifierUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeIdentifier reduces s to the characters allowed in storage keys and snapshot names.
// The client and the server apply the same rule. The result may be empty.
func SanitizeIdentifier(s string) string {
	return identifierUnsafe.ReplaceAllString(s, "")
}

// Profile is a named namespace partitioning one device's catalog.
type Profile struct {
	Name      string    `json:"name" yaml:"name"`
	Namespace string    `json:"namespace" yaml:"namespace"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// NewProfile creates a profile with its namespace derived from name.
func NewProfile(name string) Profile {
	return Profile{
		Name:      name,
		Namespace: SanitizeIdentifier(name),
		CreatedAt: time.Now(),
	}
}
