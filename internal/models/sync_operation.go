// Package models provides data model definitions for FieldSync.
package models

import "encoding/json"

// SyncOperation is a durable outbox entry describing one pending mutation.
//
// Entries survive restarts; the dispatcher drains them in priority order
// once ScheduledAt has passed. Payload is the typed JSON body the push
// handler replays against the remote API.
type SyncOperation struct {
	OperationID  string          `db:"operation_id" json:"operation_id"` // "<type>-<local_id>-<uuid>"
	EntityType   string          `db:"entity_type" json:"entity_type"`
	EntityID     int64           `db:"entity_id" json:"entity_id"`
	EntityUUID   UUID            `db:"entity_uuid" json:"entity_uuid"`
	Operation    OperationType   `db:"operation" json:"operation"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Priority     SyncPriority    `db:"priority" json:"priority"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	MaxRetries   int             `db:"max_retries" json:"max_retries"`
	SkipCount    int             `db:"skip_count" json:"skip_count"`
	MaxSkips     int             `db:"max_skips" json:"max_skips"`
	Status       string          `db:"status" json:"status"` // PENDING, SYNCING, FAILED
	ErrorMessage string          `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    int64           `db:"created_at" json:"created_at"`
	ScheduledAt  int64           `db:"scheduled_at" json:"scheduled_at"`
	LastAttempt  int64           `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
}

// Queue entry status values.
const (
	OpStatusPending = "PENDING"
	OpStatusSyncing = "SYNCING"
	OpStatusFailed  = "FAILED"
)

// Default retry/skip budgets for queue entries.
const (
	DefaultMaxRetries = 3
	DefaultMaxSkips   = 20
)

// TableName returns the table name for SyncOperation.
func (SyncOperation) TableName() string {
	return "sync_operations"
}

// RetriesExhausted reports whether the entry has burned its retry budget.
func (o *SyncOperation) RetriesExhausted() bool {
	return o.RetryCount >= o.MaxRetries
}

// SkipsExhausted reports whether the entry has been skipped too many times.
func (o *SyncOperation) SkipsExhausted() bool {
	return o.SkipCount >= o.MaxSkips
}
