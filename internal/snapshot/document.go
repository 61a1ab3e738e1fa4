// Package snapshot defines the backup wire format and the server-side repository of
// stored snapshots.
//
// A Document is the whole content of one profile as exchanged between a device and the
// server. Payloads are decoded into Documents at the boundary; anything that does not fit
// the shape is rejected with a validation error instead of being trusted.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/domain"
	domainerrors "github.com/cineshelfapp/cineshelf/internal/errors"
)

// Versions written into documents.
const (
	FormatVersion = "2"
	ServerVersion = "2.1"
	ClientVersion = "2.0"
)

// Blob naming: cineshelf_backup_<identifier>.json.
const (
	FilePrefix = "cineshelf_backup_"
	FileExt    = ".json"
)

// Copy is the wire form of a copy. Optional fields are pointers so the repair pass can
// tell an absent value from a zero one.
type Copy struct {
	ID         string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title      string     `json:"title" yaml:"title"`
	Format     string     `json:"format,omitempty" yaml:"format,omitempty"`
	Region     string     `json:"region,omitempty" yaml:"region,omitempty"`
	Edition    string     `json:"edition,omitempty" yaml:"edition,omitempty"`
	Languages  string     `json:"languages,omitempty" yaml:"languages,omitempty"`
	Notes      string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	UPC        string     `json:"upc,omitempty" yaml:"upc,omitempty"`
	DiscCount  *int       `json:"discCount,omitempty" yaml:"discCount,omitempty"`
	IsWishlist bool       `json:"isWishlist" yaml:"isWishlist"`
	TitleRef   *string    `json:"titleRef" yaml:"titleRef"`
	Resolved   *bool      `json:"resolved,omitempty" yaml:"resolved,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// RestoreMetadata is attached by the server to a retrieved document.
type RestoreMetadata struct {
	FilenameUsed  string    `json:"filenameUsed" yaml:"filenameUsed"`
	RestoredAt    time.Time `json:"restoredAt" yaml:"restoredAt"`
	UserRequested string    `json:"userRequested" yaml:"userRequested"`
	FileForced    bool      `json:"fileForced" yaml:"fileForced"`
}

// Document is a full snapshot of one profile.
type Document struct {
	User           string         `json:"user" yaml:"user"`
	Copies         []Copy         `json:"copies" yaml:"copies"`
	Titles         []domain.Title `json:"titles" yaml:"titles"`
	CustomEditions []string       `json:"customEditions" yaml:"customEditions"`
	Timestamp      time.Time      `json:"timestamp" yaml:"timestamp"`
	FormatVersion  string         `json:"formatVersion" yaml:"formatVersion"`
	BackupID       string         `json:"backupId,omitempty" yaml:"backupId,omitempty"`

	// Set by the server when the document is stored.
	BackupLabel     string    `json:"backupLabel,omitempty" yaml:"backupLabel,omitempty"`
	BackupTime      time.Time `json:"backupTime,omitzero" yaml:"backupTime,omitempty"`
	ServerVersion   string    `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty"`
	FilenameCreated string    `json:"filenameCreated,omitempty" yaml:"filenameCreated,omitempty"`

	// Set by the server when the document is retrieved.
	RestoreMetadata *RestoreMetadata `json:"_restoreMetadata,omitempty" yaml:"restoreMetadata,omitempty"`
}

// NewDocument builds a document from profile data. The document shares no memory with data.
func NewDocument(user string, data domain.ProfileData, backupID string, now time.Time) *Document {
	data = data.Clone()

	copies := make([]Copy, len(data.Copies))
	for i, cp := range data.Copies {
		copies[i] = FromCopy(cp)
	}

	return &Document{
		User:           user,
		Copies:         copies,
		Titles:         data.Titles,
		CustomEditions: data.CustomEditions,
		Timestamp:      now,
		FormatVersion:  FormatVersion,
		BackupID:       backupID,
		BackupLabel:    "CineShelf backup for " + user,
	}
}

// FromCopy converts a domain copy to its wire form.
func FromCopy(cp domain.Copy) Copy {
	discs := cp.DiscCount
	resolved := cp.Resolved
	createdAt := cp.CreatedAt

	var ref *string
	if cp.TitleRef != "" {
		r := cp.TitleRef
		ref = &r
	}

	return Copy{
		ID:         cp.ID,
		Title:      cp.Title,
		Format:     cp.Format,
		Region:     cp.Region,
		Edition:    cp.Edition,
		Languages:  cp.Languages,
		Notes:      cp.Notes,
		UPC:        cp.UPC,
		DiscCount:  &discs,
		IsWishlist: cp.IsWishlist,
		TitleRef:   ref,
		Resolved:   &resolved,
		CreatedAt:  &createdAt,
	}
}

// Validate checks the shape the repair pass relies on.
func (d *Document) Validate() error {
	if d.Copies == nil {
		return domainerrors.Validation("snapshot has no copies array")
	}
	if d.Titles == nil {
		return domainerrors.Validation("snapshot has no titles array")
	}
	return nil
}

// Decode reads a document from r and validates its shape.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "snapshot is not a valid document")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (*Document, error) {
	return Decode(bytes.NewReader(b))
}

// Encode writes d as indented JSON.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Sanitize reduces identifier to the characters allowed in blob names.
func Sanitize(identifier string) (string, error) {
	clean := domain.SanitizeIdentifier(identifier)
	if clean == "" {
		return "", domainerrors.ValidationWithDetails("invalid identifier",
			map[string]string{"identifier": identifier})
	}
	return clean, nil
}

// Filename returns the blob name for a sanitized identifier.
func Filename(identifier string) string {
	return FilePrefix + identifier + FileExt
}

// UserPart returns the identifier encoded in a blob name, or "" when name is not a blob name.
func UserPart(name string) string {
	rest, ok := strings.CutPrefix(name, FilePrefix)
	if !ok {
		return ""
	}
	user, ok := strings.CutSuffix(rest, FileExt)
	if !ok {
		return ""
	}
	return user
}
