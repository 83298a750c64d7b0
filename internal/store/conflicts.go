// Package store provides SQLite-backed persistence for FieldSync.
package store

import (
	"time"

	"github.com/restohub/fieldsync/internal/models"
)

const conflictColumns = `conflict_id, entity_type, entity_id, entity_uuid, conflict_type,
	local_version, remote_version, detected_at, requeue_attempts, notes`

func scanConflict(row rowScanner) (*models.ConflictRecord, error) {
	var c models.ConflictRecord
	err := row.Scan(
		&c.ConflictID, &c.EntityType, &c.EntityID, &c.EntityUUID, &c.ConflictType,
		&c.LocalVersion, &c.RemoteVersion, &c.DetectedAt, &c.RequeueAttempts, &c.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertConflict persists a new conflict record. An existing record for
// the same entity is replaced; the latest detection wins.
func (s *Store) InsertConflict(c *models.ConflictRecord) error {
	if c.DetectedAt == 0 {
		c.DetectedAt = time.Now().Unix()
	}
	if err := s.DeleteConflictsForEntity(c.EntityType, c.EntityUUID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
	INSERT INTO conflict_records (conflict_id, entity_type, entity_id, entity_uuid,
		conflict_type, local_version, remote_version, detected_at, requeue_attempts, notes)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ConflictID, c.EntityType, c.EntityID, c.EntityUUID,
		c.ConflictType, []byte(c.LocalVersion), []byte(c.RemoteVersion),
		c.DetectedAt, c.RequeueAttempts, c.Notes)
	return err
}

// GetConflict retrieves a conflict record by id.
func (s *Store) GetConflict(conflictID string) (*models.ConflictRecord, error) {
	stmt, err := s.PrepareStmt("SELECT " + conflictColumns + " FROM conflict_records WHERE conflict_id = ?")
	if err != nil {
		return nil, err
	}
	return scanConflict(stmt.QueryRow(conflictID))
}

// ListConflicts returns all conflict records, newest first.
func (s *Store) ListConflicts() ([]*models.ConflictRecord, error) {
	rows, err := s.db.Query("SELECT " + conflictColumns + " FROM conflict_records ORDER BY detected_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.ConflictRecord
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

// CountConflicts returns the number of unresolved conflicts.
func (s *Store) CountConflicts() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM conflict_records").Scan(&n)
	return n, err
}

// DeleteConflict removes a conflict record.
func (s *Store) DeleteConflict(conflictID string) error {
	_, err := s.db.Exec("DELETE FROM conflict_records WHERE conflict_id = ?", conflictID)
	return err
}

// DeleteConflictsForEntity removes any conflict records for an entity.
func (s *Store) DeleteConflictsForEntity(entityType string, uuid models.UUID) error {
	_, err := s.db.Exec(
		"DELETE FROM conflict_records WHERE entity_type = ? AND entity_uuid = ?",
		entityType, uuid)
	return err
}

// IncrementConflictRequeue bumps the keep-local requeue counter.
func (s *Store) IncrementConflictRequeue(conflictID string) error {
	_, err := s.db.Exec(
		"UPDATE conflict_records SET requeue_attempts = requeue_attempts + 1 WHERE conflict_id = ?",
		conflictID)
	return err
}
