package snapshot

import "time"

// HTTP headers sent by clients.
const (
	HeaderUserID        = "X-User-ID"
	HeaderBackupVersion = "X-Backup-Version"
)

// PushResponse is the body of a successful backup request.
type PushResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Filename  string    `json:"filename"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the body of a rejected request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NotFoundResponse is the body returned when no snapshot matches an identifier.
type NotFoundResponse struct {
	Error            string       `json:"error"`
	User             string       `json:"user"`
	AvailableBackups []BackupInfo `json:"availableBackups"`
	Suggestion       string       `json:"suggestion"`
}

// FileNotFoundResponse is the body returned when a forced file does not exist.
type FileNotFoundResponse struct {
	Error string `json:"error"`
	File  string `json:"file"`
}

// MissingResponse is what a client reads from any not-found reply.
type MissingResponse struct {
	Error            string       `json:"error"`
	User             string       `json:"user,omitempty"`
	File             string       `json:"file,omitempty"`
	AvailableBackups []BackupInfo `json:"availableBackups,omitempty"`
}

// Suggestion shown next to the candidate listing.
const NotFoundSuggestion = "Try using the file parameter to specify which backup to restore"
