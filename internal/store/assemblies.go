// Package store provides SQLite-backed persistence for FieldSync.
package store

import (
	"time"

	"github.com/restohub/fieldsync/internal/models"
)

const assemblyColumns = `local_id, assembly_id, group_uuid, project_id, room_uuid,
	entity_type, entity_id, status, total_files, bytes_received, error_message,
	fails_count, retry_count, next_retry_at, last_timeout_sec, created_at, last_updated_at`

func scanAssembly(row rowScanner) (*models.UploadAssembly, error) {
	var a models.UploadAssembly
	err := row.Scan(
		&a.LocalID, &a.AssemblyID, &a.GroupUUID, &a.ProjectID, &a.RoomUUID,
		&a.EntityType, &a.EntityID, &a.Status, &a.TotalFiles, &a.BytesReceived, &a.ErrorMessage,
		&a.FailsCount, &a.RetryCount, &a.NextRetryAt, &a.LastTimeoutSec, &a.CreatedAt, &a.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAssembly persists a new upload assembly.
func (s *Store) InsertAssembly(a *models.UploadAssembly) error {
	now := time.Now().Unix()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.LastUpdatedAt = now
	if a.Status == "" {
		a.Status = models.AssemblyQueued
	}
	res, err := s.db.Exec(`
	INSERT INTO upload_assemblies (assembly_id, group_uuid, project_id, room_uuid, entity_type,
		entity_id, status, total_files, bytes_received, error_message, fails_count, retry_count,
		next_retry_at, last_timeout_sec, created_at, last_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AssemblyID, a.GroupUUID, a.ProjectID, a.RoomUUID, a.EntityType,
		a.EntityID, a.Status, a.TotalFiles, a.BytesReceived, a.ErrorMessage, a.FailsCount, a.RetryCount,
		a.NextRetryAt, a.LastTimeoutSec, a.CreatedAt, a.LastUpdatedAt)
	if err != nil {
		return err
	}
	a.LocalID, err = res.LastInsertId()
	return err
}

// GetAssembly retrieves an assembly by local id.
func (s *Store) GetAssembly(localID int64) (*models.UploadAssembly, error) {
	stmt, err := s.PrepareStmt("SELECT " + assemblyColumns + " FROM upload_assemblies WHERE local_id = ?")
	if err != nil {
		return nil, err
	}
	return scanAssembly(stmt.QueryRow(localID))
}

// GetAssemblyByServerID retrieves an assembly by its backend id.
func (s *Store) GetAssemblyByServerID(assemblyID string) (*models.UploadAssembly, error) {
	stmt, err := s.PrepareStmt("SELECT " + assemblyColumns + " FROM upload_assemblies WHERE assembly_id = ?")
	if err != nil {
		return nil, err
	}
	return scanAssembly(stmt.QueryRow(assemblyID))
}

// NextReadyAssembly returns the oldest assembly ready to upload
// (created or queued), or nil when none is ready.
func (s *Store) NextReadyAssembly() (*models.UploadAssembly, error) {
	stmt, err := s.PrepareStmt("SELECT " + assemblyColumns + ` FROM upload_assemblies
		WHERE status IN (?, ?) ORDER BY created_at, local_id LIMIT 1`)
	if err != nil {
		return nil, err
	}
	a, err := scanAssembly(stmt.QueryRow(models.AssemblyCreated, models.AssemblyQueued))
	if IsNotFound(err) {
		return nil, nil
	}
	return a, err
}

// AssembliesByStatus returns all assemblies in a given status.
func (s *Store) AssembliesByStatus(statuses ...models.AssemblyStatus) ([]*models.UploadAssembly, error) {
	query := "SELECT " + assemblyColumns + " FROM upload_assemblies WHERE status IN ("
	args := make([]interface{}, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args[i] = st
	}
	query += ") ORDER BY created_at, local_id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assemblies []*models.UploadAssembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, err
		}
		assemblies = append(assemblies, a)
	}
	return assemblies, rows.Err()
}

// RetryableAssemblies returns failed, connectivity-paused or still-queued
// assemblies whose retry schedule has passed and whose fail budget is not
// exhausted.
func (s *Store) RetryableAssemblies(cutoff int64, maxFails int) ([]*models.UploadAssembly, error) {
	rows, err := s.db.Query("SELECT "+assemblyColumns+` FROM upload_assemblies
		WHERE status IN (?, ?, ?) AND next_retry_at <= ? AND fails_count < ?
		ORDER BY created_at, local_id`,
		models.AssemblyFailed, models.AssemblyWaitingForConn, models.AssemblyQueued,
		cutoff, maxFails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assemblies []*models.UploadAssembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, err
		}
		assemblies = append(assemblies, a)
	}
	return assemblies, rows.Err()
}

// SetAssemblyStatus transitions an assembly's status.
func (s *Store) SetAssemblyStatus(localID int64, status models.AssemblyStatus) error {
	_, err := s.db.Exec(
		"UPDATE upload_assemblies SET status = ?, last_updated_at = ? WHERE local_id = ?",
		status, time.Now().Unix(), localID)
	return err
}

// SetAssemblyError transitions an assembly to a status with an error
// message attached.
func (s *Store) SetAssemblyError(localID int64, status models.AssemblyStatus, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE upload_assemblies SET status = ?, error_message = ?, last_updated_at = ? WHERE local_id = ?",
		status, errMsg, time.Now().Unix(), localID)
	return err
}

// SetAssemblyServerID records the backend assembly id after creation.
func (s *Store) SetAssemblyServerID(localID int64, assemblyID string) error {
	_, err := s.db.Exec(
		"UPDATE upload_assemblies SET assembly_id = ?, last_updated_at = ? WHERE local_id = ?",
		assemblyID, time.Now().Unix(), localID)
	return err
}

// RecordAssemblyFailure bumps the fail counters and arms the next retry.
func (s *Store) RecordAssemblyFailure(localID int64, errMsg string, timeoutSec int, nextRetryAt int64) error {
	_, err := s.db.Exec(`
	UPDATE upload_assemblies SET status = ?, error_message = ?,
		fails_count = fails_count + 1, retry_count = retry_count + 1,
		last_timeout_sec = ?, next_retry_at = ?, last_updated_at = ?
	WHERE local_id = ?`,
		models.AssemblyFailed, errMsg, timeoutSec, nextRetryAt, time.Now().Unix(), localID)
	return err
}

// ResetAssemblyCounters zeroes the retry bookkeeping for a manual retry.
func (s *Store) ResetAssemblyCounters(localID int64) error {
	_, err := s.db.Exec(`
	UPDATE upload_assemblies SET fails_count = 0, retry_count = 0, next_retry_at = 0,
		last_timeout_sec = 0, error_message = '', last_updated_at = ?
	WHERE local_id = ?`,
		time.Now().Unix(), localID)
	return err
}

// AddAssemblyBytes accumulates received byte progress.
func (s *Store) AddAssemblyBytes(localID int64, n int64) error {
	_, err := s.db.Exec(
		"UPDATE upload_assemblies SET bytes_received = bytes_received + ?, last_updated_at = ? WHERE local_id = ?",
		n, time.Now().Unix(), localID)
	return err
}

// DeleteAssembly removes an assembly; its photos go with it via the
// foreign key cascade.
func (s *Store) DeleteAssembly(localID int64) error {
	_, err := s.db.Exec("DELETE FROM upload_assemblies WHERE local_id = ?", localID)
	return err
}

// =====================================================
// Assembly Photo Operations
// =====================================================

const assemblyPhotoColumns = `local_id, photo_uuid, assembly_local_id, file_name,
	local_file_path, status, order_index, file_size, bytes_uploaded, error_message,
	last_updated_at`

func scanAssemblyPhoto(row rowScanner) (*models.AssemblyPhoto, error) {
	var p models.AssemblyPhoto
	err := row.Scan(
		&p.LocalID, &p.PhotoUUID, &p.AssemblyLocal, &p.FileName,
		&p.LocalFilePath, &p.Status, &p.OrderIndex, &p.FileSize, &p.BytesUploaded, &p.ErrorMessage,
		&p.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertAssemblyPhoto persists one photo row of an assembly.
func (s *Store) InsertAssemblyPhoto(p *models.AssemblyPhoto) error {
	p.LastUpdatedAt = time.Now().Unix()
	if p.Status == "" {
		p.Status = models.PhotoUploadPending
	}
	res, err := s.db.Exec(`
	INSERT INTO assembly_photos (photo_uuid, assembly_local_id, file_name, local_file_path,
		status, order_index, file_size, bytes_uploaded, error_message, last_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PhotoUUID, p.AssemblyLocal, p.FileName, p.LocalFilePath,
		p.Status, p.OrderIndex, p.FileSize, p.BytesUploaded, p.ErrorMessage, p.LastUpdatedAt)
	if err != nil {
		return err
	}
	p.LocalID, err = res.LastInsertId()
	return err
}

// AssemblyPhotos returns an assembly's photos in upload order.
func (s *Store) AssemblyPhotos(assemblyLocalID int64) ([]*models.AssemblyPhoto, error) {
	stmt, err := s.PrepareStmt("SELECT " + assemblyPhotoColumns + ` FROM assembly_photos
		WHERE assembly_local_id = ? ORDER BY order_index, local_id`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(assemblyLocalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*models.AssemblyPhoto
	for rows.Next() {
		p, err := scanAssemblyPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// SetAssemblyPhotoStatus transitions one photo's upload status.
func (s *Store) SetAssemblyPhotoStatus(localID int64, status models.PhotoUploadStatus, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE assembly_photos SET status = ?, error_message = ?, last_updated_at = ? WHERE local_id = ?",
		status, errMsg, time.Now().Unix(), localID)
	return err
}

// SetAssemblyPhotoUploaded marks a photo fully uploaded.
func (s *Store) SetAssemblyPhotoUploaded(localID int64, bytes int64) error {
	_, err := s.db.Exec(`
	UPDATE assembly_photos SET status = ?, bytes_uploaded = ?, error_message = '',
		last_updated_at = ?
	WHERE local_id = ?`,
		models.PhotoUploadCompleted, bytes, time.Now().Unix(), localID)
	return err
}

// ResetAssemblyPhotos moves all photos in one status to another,
// recording why. Used for crash recovery and retry resets.
func (s *Store) ResetAssemblyPhotos(assemblyLocalID int64, from, to models.PhotoUploadStatus, reason string) error {
	_, err := s.db.Exec(`
	UPDATE assembly_photos SET status = ?, error_message = ?, last_updated_at = ?
	WHERE assembly_local_id = ? AND status = ?`,
		to, reason, time.Now().Unix(), assemblyLocalID, from)
	return err
}

// CompleteAssemblyPhotos marks every photo of an assembly completed.
// Used when the backend reports the assembly finished out-of-band.
func (s *Store) CompleteAssemblyPhotos(assemblyLocalID int64) error {
	_, err := s.db.Exec(`
	UPDATE assembly_photos SET status = ?, bytes_uploaded = file_size, error_message = '',
		last_updated_at = ?
	WHERE assembly_local_id = ?`,
		models.PhotoUploadCompleted, time.Now().Unix(), assemblyLocalID)
	return err
}
