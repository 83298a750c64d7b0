// Package store provides SQLite-backed persistence for FieldSync.
package store

import (
	"encoding/json"
	"time"

	"github.com/restohub/fieldsync/internal/models"
)

const operationColumns = `operation_id, entity_type, entity_id, entity_uuid, operation,
	payload, priority, retry_count, max_retries, skip_count, max_skips, status,
	error_message, created_at, scheduled_at, last_attempt_at`

func scanOperation(row rowScanner) (*models.SyncOperation, error) {
	var op models.SyncOperation
	err := row.Scan(
		&op.OperationID, &op.EntityType, &op.EntityID, &op.EntityUUID, &op.Operation,
		&op.Payload, &op.Priority, &op.RetryCount, &op.MaxRetries, &op.SkipCount, &op.MaxSkips,
		&op.Status, &op.ErrorMessage, &op.CreatedAt, &op.ScheduledAt, &op.LastAttempt,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// InsertOperation persists a new queue entry.
func (s *Store) InsertOperation(op *models.SyncOperation) error {
	now := time.Now().Unix()
	if op.CreatedAt == 0 {
		op.CreatedAt = now
	}
	if op.ScheduledAt == 0 {
		op.ScheduledAt = now
	}
	if op.MaxRetries == 0 {
		op.MaxRetries = models.DefaultMaxRetries
	}
	if op.MaxSkips == 0 {
		op.MaxSkips = models.DefaultMaxSkips
	}
	if op.Status == "" {
		op.Status = models.OpStatusPending
	}
	_, err := s.db.Exec(`
	INSERT INTO sync_operations (operation_id, entity_type, entity_id, entity_uuid, operation,
		payload, priority, retry_count, max_retries, skip_count, max_skips, status,
		error_message, created_at, scheduled_at, last_attempt_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.OperationID, op.EntityType, op.EntityID, op.EntityUUID, op.Operation,
		[]byte(op.Payload), op.Priority, op.RetryCount, op.MaxRetries, op.SkipCount, op.MaxSkips,
		op.Status, op.ErrorMessage, op.CreatedAt, op.ScheduledAt, op.LastAttempt)
	return err
}

// DueOperations returns pending entries whose schedule has passed, in
// priority order then FIFO. limit <= 0 means no limit.
func (s *Store) DueOperations(now int64, limit int) ([]*models.SyncOperation, error) {
	query := "SELECT " + operationColumns + ` FROM sync_operations
		WHERE status = ? AND scheduled_at <= ?
		ORDER BY priority, created_at`
	args := []interface{}{models.OpStatusPending, now}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*models.SyncOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetOperation retrieves a queue entry by id.
func (s *Store) GetOperation(operationID string) (*models.SyncOperation, error) {
	stmt, err := s.PrepareStmt("SELECT " + operationColumns + " FROM sync_operations WHERE operation_id = ?")
	if err != nil {
		return nil, err
	}
	return scanOperation(stmt.QueryRow(operationID))
}

// PendingOperationFor returns the queued entry of a given kind for an
// entity, or nil when none is queued.
func (s *Store) PendingOperationFor(entityType string, uuid models.UUID, operation models.OperationType) (*models.SyncOperation, error) {
	stmt, err := s.PrepareStmt("SELECT " + operationColumns + ` FROM sync_operations
		WHERE entity_type = ? AND entity_uuid = ? AND operation = ? AND status = ?`)
	if err != nil {
		return nil, err
	}
	op, err := scanOperation(stmt.QueryRow(entityType, uuid, operation, models.OpStatusPending))
	if IsNotFound(err) {
		return nil, nil
	}
	return op, err
}

// RemoveOperation deletes a queue entry.
func (s *Store) RemoveOperation(operationID string) error {
	_, err := s.db.Exec("DELETE FROM sync_operations WHERE operation_id = ?", operationID)
	return err
}

// RemoveOperationsForEntity deletes every queued entry for an entity.
// Called before enqueuing a replacement operation.
func (s *Store) RemoveOperationsForEntity(entityType string, uuid models.UUID) error {
	_, err := s.db.Exec(
		"DELETE FROM sync_operations WHERE entity_type = ? AND entity_uuid = ?",
		entityType, uuid)
	return err
}

// UpdateOperationPayload replaces the payload of a queued entry. Used to
// merge later edits into a still-pending CREATE.
func (s *Store) UpdateOperationPayload(operationID string, payload json.RawMessage) error {
	_, err := s.db.Exec(
		"UPDATE sync_operations SET payload = ? WHERE operation_id = ?",
		[]byte(payload), operationID)
	return err
}

// RescheduleOperation pushes an entry's schedule forward after a skip.
func (s *Store) RescheduleOperation(operationID string, skipCount int, scheduledAt int64) error {
	_, err := s.db.Exec(`
	UPDATE sync_operations SET skip_count = ?, scheduled_at = ?, last_attempt_at = ?
	WHERE operation_id = ?`,
		skipCount, scheduledAt, time.Now().Unix(), operationID)
	return err
}

// RecordOperationFailure bumps the retry counter and reschedules.
func (s *Store) RecordOperationFailure(operationID string, retryCount int, scheduledAt int64, errMsg string) error {
	_, err := s.db.Exec(`
	UPDATE sync_operations SET retry_count = ?, scheduled_at = ?, last_attempt_at = ?,
		error_message = ?
	WHERE operation_id = ?`,
		retryCount, scheduledAt, time.Now().Unix(), errMsg, operationID)
	return err
}

// MarkOperationFailed parks an entry permanently.
func (s *Store) MarkOperationFailed(operationID string, errMsg string) error {
	_, err := s.db.Exec(`
	UPDATE sync_operations SET status = ?, error_message = ?, last_attempt_at = ?
	WHERE operation_id = ?`,
		models.OpStatusFailed, errMsg, time.Now().Unix(), operationID)
	return err
}

// PendingLockTimestamp reads the lock token carried by an entity's queued
// operation payload, if any. Keeps a re-enqueued update from clobbering a
// lock token the queue already negotiated.
func (s *Store) PendingLockTimestamp(entityType string, uuid models.UUID) (string, error) {
	stmt, err := s.PrepareStmt(`SELECT payload FROM sync_operations
		WHERE entity_type = ? AND entity_uuid = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return "", err
	}
	var payload []byte
	if err := stmt.QueryRow(entityType, uuid, models.OpStatusPending).Scan(&payload); err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	var fields struct {
		LockUpdatedAt string `json:"lock_updated_at"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", nil
	}
	return fields.LockUpdatedAt, nil
}

// QueueStats summarizes the queue for status reporting.
type QueueStats struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// GetQueueStats counts entries by status.
func (s *Store) GetQueueStats() (QueueStats, error) {
	var stats QueueStats
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM sync_operations GROUP BY status")
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		switch status {
		case models.OpStatusPending, models.OpStatusSyncing:
			stats.Pending += n
		case models.OpStatusFailed:
			stats.Failed += n
		}
	}
	return stats, rows.Err()
}
