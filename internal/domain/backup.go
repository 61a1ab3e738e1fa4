package domain

import "time"

// SafetyReasonBeforeRestore tags the snapshot taken right before a destructive restore.
const SafetyReasonBeforeRestore = "safety_before_restore"

// BackupRecord describes the last successful backup of a profile.
type BackupRecord struct {
	BackupID           string    `json:"backupId" yaml:"backupId"`
	Timestamp          time.Time `json:"timestamp" yaml:"timestamp"`
	ItemCount          int       `json:"itemCount" yaml:"itemCount"`
	TitleCount         int       `json:"titleCount" yaml:"titleCount"`
	CustomEditionCount int       `json:"customEditionCount" yaml:"customEditionCount"`
	Endpoint           string    `json:"endpoint" yaml:"endpoint"`
	Filename           string    `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// SafetySnapshot is the local copy of a profile taken before its data is replaced.
type SafetySnapshot struct {
	ID        string      `json:"id" yaml:"id"`
	Reason    string      `json:"reason" yaml:"reason"`
	Profile   string      `json:"profile" yaml:"profile"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Data      ProfileData `json:"data" yaml:"data"`
}
