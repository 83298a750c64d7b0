// Package models provides data model definitions for FieldSync.
package models

import (
	"encoding/json"
	"time"
)

// ConflictType classifies how a conflict was detected.
type ConflictType string

const (
	ConflictUpdate ConflictType = "UPDATE_CONFLICT"
)

// MaxRequeueAttempts caps how often a conflict may be resolved keep-local
// before the repository refuses to re-enqueue it again.
const MaxRequeueAttempts = 3

// ConflictRecord captures a persistent optimistic-lock rejection that
// needs a user decision. LocalVersion and RemoteVersion are JSON field
// snapshots taken at detection time.
type ConflictRecord struct {
	ConflictID      string          `db:"conflict_id" json:"conflict_id"`
	EntityType      string          `db:"entity_type" json:"entity_type"`
	EntityID        int64           `db:"entity_id" json:"entity_id"`
	EntityUUID      UUID            `db:"entity_uuid" json:"entity_uuid"`
	ConflictType    ConflictType    `db:"conflict_type" json:"conflict_type"`
	LocalVersion    json.RawMessage `db:"local_version" json:"local_version"`
	RemoteVersion   json.RawMessage `db:"remote_version" json:"remote_version"`
	DetectedAt      int64           `db:"detected_at" json:"detected_at"`
	RequeueAttempts int             `db:"requeue_attempts" json:"requeue_attempts"`
	Notes           string          `db:"notes" json:"notes,omitempty"`
}

// TableName returns the table name for ConflictRecord.
func (ConflictRecord) TableName() string {
	return "conflict_records"
}

// DetectedAtTime returns the DetectedAt as time.Time.
func (c *ConflictRecord) DetectedAtTime() time.Time {
	return time.Unix(c.DetectedAt, 0)
}

// CanRequeue reports whether a keep-local resolution may re-enqueue.
func (c *ConflictRecord) CanRequeue() bool {
	return c.RequeueAttempts < MaxRequeueAttempts
}
