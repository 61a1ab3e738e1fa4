package backup

import (
	"strings"
	"time"

	"github.com/cineshelfapp/cineshelf/internal/snapshot"
)

// Default endpoint paths tried in order after the configured server URL.
//
//nolint:gochecknoglobals // Static lists
var (
	DefaultBackupPaths  = []string{"/api/v1/backup", "/api/backup", "/backup"}
	DefaultRestorePaths = []string{"/api/v1/restore", "/api/restore", "/restore"}
)

// DefaultAttemptTimeout bounds each endpoint attempt.
const DefaultAttemptTimeout = 15 * time.Second

// Config configures a Coordinator.
type Config struct {
	BackupEndpoints  []string
	RestoreEndpoints []string
	AttemptTimeout   time.Duration
}

// DefaultConfig returns the candidate endpoints derived from serverURL.
func DefaultConfig(serverURL string) Config {
	return Config{
		BackupEndpoints:  Endpoints(serverURL, DefaultBackupPaths),
		RestoreEndpoints: Endpoints(serverURL, DefaultRestorePaths),
		AttemptTimeout:   DefaultAttemptTimeout,
	}
}

// Endpoints joins serverURL with each path.
func Endpoints(serverURL string, paths []string) []string {
	base := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, base+"/"+strings.TrimLeft(p, "/"))
	}
	return out
}

// RestoreOptions configures a remote restore.
type RestoreOptions struct {
	// File forces a specific blob instead of the identifier lookup.
	File string
}

// Attempt records one failed endpoint attempt.
type Attempt struct {
	Endpoint string `json:"endpoint"`
	Error    string `json:"error"`
}

// BackupResult describes a successful backup.
type BackupResult struct {
	BackupID       string    `json:"backupId" yaml:"backupId"`
	Endpoint       string    `json:"endpoint" yaml:"endpoint"`
	Filename       string    `json:"filename" yaml:"filename"`
	User           string    `json:"user" yaml:"user"`
	Timestamp      time.Time `json:"timestamp" yaml:"timestamp"`
	Copies         int       `json:"copies" yaml:"copies"`
	Titles         int       `json:"titles" yaml:"titles"`
	CustomEditions int       `json:"customEditions" yaml:"customEditions"`
	Attempts       []Attempt `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// RestoreResult describes a completed restore or import.
type RestoreResult struct {
	Source           string                    `json:"source" yaml:"source"`
	Filename         string                    `json:"filename,omitempty" yaml:"filename,omitempty"`
	SafetySnapshotID string                    `json:"safetySnapshotId,omitempty" yaml:"safetySnapshotId,omitempty"`
	Repaired         int                       `json:"repaired" yaml:"repaired"`
	Copies           int                       `json:"copies" yaml:"copies"`
	Titles           int                       `json:"titles" yaml:"titles"`
	CustomEditions   int                       `json:"customEditions" yaml:"customEditions"`
	Metadata         *snapshot.RestoreMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
