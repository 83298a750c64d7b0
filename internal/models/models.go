// Package models provides data model definitions for FieldSync.
package models

import (
	"database/sql/driver"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// SyncState carries the offline bookkeeping shared by every synced entity.
//
// ServerID stays 0 until the remote create is acknowledged; child entities
// cannot push until their parents have a ServerID. LockUpdatedAt holds the
// last-known remote updatedAt verbatim and is sent as the optimistic lock
// token on updates and deletes.
type SyncState struct {
	ServerID      int64      `db:"server_id" json:"server_id,omitempty"`
	IsDirty       bool       `db:"is_dirty" json:"is_dirty"`
	IsDeleted     bool       `db:"is_deleted" json:"is_deleted"`
	SyncStatus    SyncStatus `db:"sync_status" json:"sync_status"`
	UpdatedAt     int64      `db:"updated_at" json:"updated_at"`
	LastSyncedAt  int64      `db:"last_synced_at" json:"last_synced_at,omitempty"`
	LockUpdatedAt string     `db:"lock_updated_at" json:"lock_updated_at,omitempty"`
}

// Synced returns true once the entity has been acknowledged by the server.
func (s *SyncState) Synced() bool {
	return s.ServerID > 0
}

// Touch marks the entity dirty and bumps its local change clock.
func (s *SyncState) Touch() {
	s.IsDirty = true
	s.SyncStatus = SyncStatusPending
	s.UpdatedAt = time.Now().Unix()
}

// MarkSynced clears the dirty flag after a successful push.
func (s *SyncState) MarkSynced(serverID int64, lockUpdatedAt string) {
	if serverID > 0 {
		s.ServerID = serverID
	}
	s.IsDirty = false
	s.SyncStatus = SyncStatusSynced
	s.LastSyncedAt = time.Now().Unix()
	if lockUpdatedAt != "" {
		s.LockUpdatedAt = lockUpdatedAt
	}
}
