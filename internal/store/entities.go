// Package store provides SQLite-backed persistence for FieldSync.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/restohub/fieldsync/internal/models"
)

// entityTables whitelists the tables the generic sync-state helpers may
// touch. Table names are interpolated into SQL and must never come from
// user input.
var entityTables = map[string]bool{
	"projects":              true,
	"properties":            true,
	"locations":             true,
	"rooms":                 true,
	"photos":                true,
	"notes":                 true,
	"equipment":             true,
	"moisture_logs":         true,
	"atmospheric_logs":      true,
	"support_conversations": true,
	"support_messages":      true,
}

func checkTable(table string) error {
	if !entityTables[table] {
		return fmt.Errorf("unknown entity table %q", table)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// =====================================================
// Generic sync-state operations (any entity table)
// =====================================================

// ServerIDByUUID returns the server id recorded for an entity, 0 when the
// entity has not been pushed yet. sql.ErrNoRows when the entity is unknown.
func (s *Store) ServerIDByUUID(table string, uuid models.UUID) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	stmt, err := s.PrepareStmt("SELECT server_id FROM " + table + " WHERE uuid = ?")
	if err != nil {
		return 0, err
	}
	var id int64
	if err := stmt.QueryRow(uuid).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SetServerID records the server id (and lock token) for an entity.
func (s *Store) SetServerID(table string, uuid models.UUID, serverID int64, lockUpdatedAt string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+" SET server_id = ?, lock_updated_at = ? WHERE uuid = ?",
		serverID, lockUpdatedAt, uuid)
	return err
}

// SetLockTimestamp overwrites the optimistic lock token without touching
// the server id. Used when minting a fresh lock for a forced overwrite.
func (s *Store) SetLockTimestamp(table string, uuid models.UUID, lockUpdatedAt string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+" SET lock_updated_at = ? WHERE uuid = ?",
		lockUpdatedAt, uuid)
	return err
}

// MarkEntitySynced clears the dirty flag after a successful push. A zero
// serverID keeps the recorded one; an empty lock keeps the recorded one.
func (s *Store) MarkEntitySynced(table string, uuid models.UUID, serverID int64, lockUpdatedAt string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+` SET
			is_dirty = 0,
			sync_status = ?,
			last_synced_at = ?,
			server_id = CASE WHEN ? > 0 THEN ? ELSE server_id END,
			lock_updated_at = CASE WHEN ? != '' THEN ? ELSE lock_updated_at END
		WHERE uuid = ?`,
		models.SyncStatusSynced, time.Now().Unix(),
		serverID, serverID, lockUpdatedAt, lockUpdatedAt, uuid)
	return err
}

// SetEntityStatus sets the sync status of an entity.
func (s *Store) SetEntityStatus(table string, uuid models.UUID, status models.SyncStatus) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec("UPDATE "+table+" SET sync_status = ? WHERE uuid = ?", status, uuid)
	return err
}

// MarkEntityDirty flags an entity for a new push.
func (s *Store) MarkEntityDirty(table string, uuid models.UUID) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+" SET is_dirty = 1, sync_status = ?, updated_at = ? WHERE uuid = ?",
		models.SyncStatusPending, time.Now().Unix(), uuid)
	return err
}

// MarkEntityDeleted soft-deletes an entity locally. The row stays so a
// later server rejection can restore it.
func (s *Store) MarkEntityDeleted(table string, uuid models.UUID) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+" SET is_deleted = 1, is_dirty = 0, sync_status = ? WHERE uuid = ?",
		models.SyncStatusSynced, uuid)
	return err
}

// RestoreEntity undoes a local soft delete after the server refused the
// delete. The fresh remote lock token is recorded when provided.
func (s *Store) RestoreEntity(table string, uuid models.UUID, lockUpdatedAt string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE "+table+` SET
			is_deleted = 0,
			is_dirty = 0,
			sync_status = ?,
			lock_updated_at = CASE WHEN ? != '' THEN ? ELSE lock_updated_at END
		WHERE uuid = ?`,
		models.SyncStatusSynced, lockUpdatedAt, lockUpdatedAt, uuid)
	return err
}

// =====================================================
// Project Operations
// =====================================================

const projectColumns = `local_id, uuid, name, alias, company_id, address_id,
	street, city, province, postal_code, country, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.LocalID, &p.UUID, &p.Name, &p.Alias, &p.CompanyID, &p.AddressID,
		&p.Street, &p.City, &p.Province, &p.PostalCode, &p.Country, &p.CreatedAt,
		&p.ServerID, &p.IsDirty, &p.IsDeleted, &p.SyncStatus, &p.UpdatedAt, &p.LastSyncedAt, &p.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProject inserts a new project row.
func (s *Store) InsertProject(p *models.Project) error {
	stampNew(&p.CreatedAt, &p.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO projects (uuid, name, alias, company_id, address_id, street, city, province,
		postal_code, country, created_at, server_id, is_dirty, is_deleted, sync_status,
		updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UUID, p.Name, p.Alias, p.CompanyID, p.AddressID, p.Street, p.City, p.Province,
		p.PostalCode, p.Country, p.CreatedAt, p.ServerID, p.IsDirty, p.IsDeleted, p.SyncStatus,
		p.UpdatedAt, p.LastSyncedAt, p.LockUpdatedAt)
	if err != nil {
		return err
	}
	p.LocalID, err = res.LastInsertId()
	return err
}

// GetProjectByUUID retrieves a project by UUID, deleted rows included.
func (s *Store) GetProjectByUUID(uuid models.UUID) (*models.Project, error) {
	stmt, err := s.PrepareStmt("SELECT " + projectColumns + " FROM projects WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanProject(stmt.QueryRow(uuid))
}

// UpdateProject writes all mutable project fields by UUID.
func (s *Store) UpdateProject(p *models.Project) error {
	_, err := s.db.Exec(`
	UPDATE projects SET name = ?, alias = ?, company_id = ?, address_id = ?, street = ?,
		city = ?, province = ?, postal_code = ?, country = ?, server_id = ?, is_dirty = ?,
		is_deleted = ?, sync_status = ?, updated_at = ?, last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		p.Name, p.Alias, p.CompanyID, p.AddressID, p.Street,
		p.City, p.Province, p.PostalCode, p.Country, p.ServerID, p.IsDirty,
		p.IsDeleted, p.SyncStatus, p.UpdatedAt, p.LastSyncedAt, p.LockUpdatedAt,
		p.UUID)
	return err
}

// =====================================================
// Property Operations
// =====================================================

const propertyColumns = `local_id, uuid, project_uuid, name, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.LocalID, &p.UUID, &p.ProjectUUID, &p.Name, &p.CreatedAt,
		&p.ServerID, &p.IsDirty, &p.IsDeleted, &p.SyncStatus, &p.UpdatedAt, &p.LastSyncedAt, &p.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProperty inserts a new property row.
func (s *Store) InsertProperty(p *models.Property) error {
	stampNew(&p.CreatedAt, &p.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO properties (uuid, project_uuid, name, created_at, server_id, is_dirty,
		is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UUID, p.ProjectUUID, p.Name, p.CreatedAt, p.ServerID, p.IsDirty,
		p.IsDeleted, p.SyncStatus, p.UpdatedAt, p.LastSyncedAt, p.LockUpdatedAt)
	if err != nil {
		return err
	}
	p.LocalID, err = res.LastInsertId()
	return err
}

// GetPropertyByUUID retrieves a property by UUID.
func (s *Store) GetPropertyByUUID(uuid models.UUID) (*models.Property, error) {
	stmt, err := s.PrepareStmt("SELECT " + propertyColumns + " FROM properties WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanProperty(stmt.QueryRow(uuid))
}

// UpdateProperty writes all mutable property fields by UUID.
func (s *Store) UpdateProperty(p *models.Property) error {
	_, err := s.db.Exec(`
	UPDATE properties SET project_uuid = ?, name = ?, server_id = ?, is_dirty = ?,
		is_deleted = ?, sync_status = ?, updated_at = ?, last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		p.ProjectUUID, p.Name, p.ServerID, p.IsDirty,
		p.IsDeleted, p.SyncStatus, p.UpdatedAt, p.LastSyncedAt, p.LockUpdatedAt,
		p.UUID)
	return err
}

// FirstPropertyForProject returns the oldest non-deleted property of a
// project. Used by the location handler when a queued location predates
// its property assignment.
func (s *Store) FirstPropertyForProject(projectUUID models.UUID) (*models.Property, error) {
	stmt, err := s.PrepareStmt("SELECT " + propertyColumns +
		" FROM properties WHERE project_uuid = ? AND is_deleted = 0 ORDER BY created_at, local_id LIMIT 1")
	if err != nil {
		return nil, err
	}
	return scanProperty(stmt.QueryRow(projectUUID))
}

// =====================================================
// Location Operations
// =====================================================

const locationColumns = `local_id, uuid, project_uuid, property_uuid, name, is_single_unit, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanLocation(row rowScanner) (*models.Location, error) {
	var l models.Location
	err := row.Scan(
		&l.LocalID, &l.UUID, &l.ProjectUUID, &l.PropertyUUID, &l.Name, &l.IsSingleUnit, &l.CreatedAt,
		&l.ServerID, &l.IsDirty, &l.IsDeleted, &l.SyncStatus, &l.UpdatedAt, &l.LastSyncedAt, &l.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLocation inserts a new location row.
func (s *Store) InsertLocation(l *models.Location) error {
	stampNew(&l.CreatedAt, &l.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO locations (uuid, project_uuid, property_uuid, name, is_single_unit, created_at,
		server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.UUID, l.ProjectUUID, l.PropertyUUID, l.Name, l.IsSingleUnit, l.CreatedAt,
		l.ServerID, l.IsDirty, l.IsDeleted, l.SyncStatus, l.UpdatedAt, l.LastSyncedAt, l.LockUpdatedAt)
	if err != nil {
		return err
	}
	l.LocalID, err = res.LastInsertId()
	return err
}

// GetLocationByUUID retrieves a location by UUID.
func (s *Store) GetLocationByUUID(uuid models.UUID) (*models.Location, error) {
	stmt, err := s.PrepareStmt("SELECT " + locationColumns + " FROM locations WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanLocation(stmt.QueryRow(uuid))
}

// UpdateLocation writes all mutable location fields by UUID.
func (s *Store) UpdateLocation(l *models.Location) error {
	_, err := s.db.Exec(`
	UPDATE locations SET project_uuid = ?, property_uuid = ?, name = ?, is_single_unit = ?,
		server_id = ?, is_dirty = ?, is_deleted = ?, sync_status = ?, updated_at = ?,
		last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		l.ProjectUUID, l.PropertyUUID, l.Name, l.IsSingleUnit,
		l.ServerID, l.IsDirty, l.IsDeleted, l.SyncStatus, l.UpdatedAt,
		l.LastSyncedAt, l.LockUpdatedAt,
		l.UUID)
	return err
}

// =====================================================
// Room Operations
// =====================================================

const roomColumns = `local_id, uuid, project_uuid, property_uuid, level_uuid, location_uuid,
	name, room_type, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanRoom(row rowScanner) (*models.Room, error) {
	var r models.Room
	err := row.Scan(
		&r.LocalID, &r.UUID, &r.ProjectUUID, &r.PropertyUUID, &r.LevelUUID, &r.LocationUUID,
		&r.Name, &r.RoomType, &r.CreatedAt,
		&r.ServerID, &r.IsDirty, &r.IsDeleted, &r.SyncStatus, &r.UpdatedAt, &r.LastSyncedAt, &r.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRoom inserts a new room row.
func (s *Store) InsertRoom(r *models.Room) error {
	stampNew(&r.CreatedAt, &r.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO rooms (uuid, project_uuid, property_uuid, level_uuid, location_uuid, name,
		room_type, created_at, server_id, is_dirty, is_deleted, sync_status, updated_at,
		last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UUID, r.ProjectUUID, r.PropertyUUID, r.LevelUUID, r.LocationUUID, r.Name,
		r.RoomType, r.CreatedAt, r.ServerID, r.IsDirty, r.IsDeleted, r.SyncStatus, r.UpdatedAt,
		r.LastSyncedAt, r.LockUpdatedAt)
	if err != nil {
		return err
	}
	r.LocalID, err = res.LastInsertId()
	return err
}

// GetRoomByUUID retrieves a room by UUID.
func (s *Store) GetRoomByUUID(uuid models.UUID) (*models.Room, error) {
	stmt, err := s.PrepareStmt("SELECT " + roomColumns + " FROM rooms WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanRoom(stmt.QueryRow(uuid))
}

// UpdateRoom writes all mutable room fields by UUID.
func (s *Store) UpdateRoom(r *models.Room) error {
	_, err := s.db.Exec(`
	UPDATE rooms SET project_uuid = ?, property_uuid = ?, level_uuid = ?, location_uuid = ?,
		name = ?, room_type = ?, server_id = ?, is_dirty = ?, is_deleted = ?, sync_status = ?,
		updated_at = ?, last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		r.ProjectUUID, r.PropertyUUID, r.LevelUUID, r.LocationUUID,
		r.Name, r.RoomType, r.ServerID, r.IsDirty, r.IsDeleted, r.SyncStatus,
		r.UpdatedAt, r.LastSyncedAt, r.LockUpdatedAt,
		r.UUID)
	return err
}

// RoomsByLocation returns the non-deleted rooms under a location.
func (s *Store) RoomsByLocation(locationUUID models.UUID) ([]*models.Room, error) {
	stmt, err := s.PrepareStmt("SELECT " + roomColumns +
		" FROM rooms WHERE location_uuid = ? AND is_deleted = 0 ORDER BY local_id")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(locationUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// =====================================================
// Photo Operations
// =====================================================

const photoColumns = `local_id, uuid, project_uuid, room_uuid, file_name, description,
	cached_original_path, cached_thumbnail_path, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanPhoto(row rowScanner) (*models.Photo, error) {
	var p models.Photo
	err := row.Scan(
		&p.LocalID, &p.UUID, &p.ProjectUUID, &p.RoomUUID, &p.FileName, &p.Description,
		&p.CachedOriginalPath, &p.CachedThumbnailPath, &p.CreatedAt,
		&p.ServerID, &p.IsDirty, &p.IsDeleted, &p.SyncStatus, &p.UpdatedAt, &p.LastSyncedAt, &p.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPhoto inserts a new photo row.
func (s *Store) InsertPhoto(p *models.Photo) error {
	stampNew(&p.CreatedAt, &p.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO photos (uuid, project_uuid, room_uuid, file_name, description,
		cached_original_path, cached_thumbnail_path, created_at, server_id, is_dirty,
		is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UUID, p.ProjectUUID, p.RoomUUID, p.FileName, p.Description,
		p.CachedOriginalPath, p.CachedThumbnailPath, p.CreatedAt, p.ServerID, p.IsDirty,
		p.IsDeleted, p.SyncStatus, p.UpdatedAt, p.LastSyncedAt, p.LockUpdatedAt)
	if err != nil {
		return err
	}
	p.LocalID, err = res.LastInsertId()
	return err
}

// GetPhotoByUUID retrieves a photo by UUID.
func (s *Store) GetPhotoByUUID(uuid models.UUID) (*models.Photo, error) {
	stmt, err := s.PrepareStmt("SELECT " + photoColumns + " FROM photos WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanPhoto(stmt.QueryRow(uuid))
}

// PhotosByRoom returns the non-deleted photos of a room.
func (s *Store) PhotosByRoom(roomUUID models.UUID) ([]*models.Photo, error) {
	stmt, err := s.PrepareStmt("SELECT " + photoColumns +
		" FROM photos WHERE room_uuid = ? AND is_deleted = 0 ORDER BY local_id")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.Query(roomUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// =====================================================
// Cascade Deletes
// =====================================================

// CascadeDeleteRoom soft-deletes a room and its photos, purging any
// queue entries still pending for them. The photos are returned so
// callers can remove their cached files from disk.
func (s *Store) CascadeDeleteRoom(roomUUID models.UUID) ([]*models.Photo, error) {
	photos, err := s.PhotosByRoom(roomUUID)
	if err != nil {
		return nil, err
	}
	for _, p := range photos {
		if err := s.MarkEntityDeleted("photos", p.UUID); err != nil {
			return nil, err
		}
		if err := s.RemoveOperationsForEntity(models.EntityPhoto, p.UUID); err != nil {
			return nil, err
		}
	}
	if err := s.MarkEntityDeleted("rooms", roomUUID); err != nil {
		return nil, err
	}
	if err := s.RemoveOperationsForEntity(models.EntityRoom, roomUUID); err != nil {
		return nil, err
	}
	return photos, nil
}

// CascadeDeleteLocation soft-deletes a location, its rooms and their
// photos, returning all affected photos for cached-file cleanup. Queue
// entries for the whole subtree are purged; a skipped room create
// rescheduled into the future must not outlive its location.
func (s *Store) CascadeDeleteLocation(locationUUID models.UUID) ([]*models.Photo, error) {
	rooms, err := s.RoomsByLocation(locationUUID)
	if err != nil {
		return nil, err
	}
	var photos []*models.Photo
	for _, r := range rooms {
		roomPhotos, err := s.CascadeDeleteRoom(r.UUID)
		if err != nil {
			return nil, err
		}
		photos = append(photos, roomPhotos...)
	}
	if err := s.MarkEntityDeleted("locations", locationUUID); err != nil {
		return nil, err
	}
	if err := s.RemoveOperationsForEntity(models.EntityLocation, locationUUID); err != nil {
		return nil, err
	}
	return photos, nil
}

// =====================================================
// Note Operations
// =====================================================

const noteColumns = `local_id, uuid, project_uuid, room_uuid, photo_uuid, body, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanNote(row rowScanner) (*models.Note, error) {
	var n models.Note
	err := row.Scan(
		&n.LocalID, &n.UUID, &n.ProjectUUID, &n.RoomUUID, &n.PhotoUUID, &n.Body, &n.CreatedAt,
		&n.ServerID, &n.IsDirty, &n.IsDeleted, &n.SyncStatus, &n.UpdatedAt, &n.LastSyncedAt, &n.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNote inserts a new note row.
func (s *Store) InsertNote(n *models.Note) error {
	stampNew(&n.CreatedAt, &n.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO notes (uuid, project_uuid, room_uuid, photo_uuid, body, created_at,
		server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UUID, n.ProjectUUID, n.RoomUUID, n.PhotoUUID, n.Body, n.CreatedAt,
		n.ServerID, n.IsDirty, n.IsDeleted, n.SyncStatus, n.UpdatedAt, n.LastSyncedAt, n.LockUpdatedAt)
	if err != nil {
		return err
	}
	n.LocalID, err = res.LastInsertId()
	return err
}

// GetNoteByUUID retrieves a note by UUID.
func (s *Store) GetNoteByUUID(uuid models.UUID) (*models.Note, error) {
	stmt, err := s.PrepareStmt("SELECT " + noteColumns + " FROM notes WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanNote(stmt.QueryRow(uuid))
}

// UpdateNote writes all mutable note fields by UUID.
func (s *Store) UpdateNote(n *models.Note) error {
	_, err := s.db.Exec(`
	UPDATE notes SET room_uuid = ?, photo_uuid = ?, body = ?, server_id = ?, is_dirty = ?,
		is_deleted = ?, sync_status = ?, updated_at = ?, last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		n.RoomUUID, n.PhotoUUID, n.Body, n.ServerID, n.IsDirty,
		n.IsDeleted, n.SyncStatus, n.UpdatedAt, n.LastSyncedAt, n.LockUpdatedAt,
		n.UUID)
	return err
}

// =====================================================
// Equipment Operations
// =====================================================

const equipmentColumns = `local_id, uuid, project_uuid, room_uuid, name, equipment_type,
	quantity, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var e models.Equipment
	err := row.Scan(
		&e.LocalID, &e.UUID, &e.ProjectUUID, &e.RoomUUID, &e.Name, &e.EquipmentType,
		&e.Quantity, &e.CreatedAt,
		&e.ServerID, &e.IsDirty, &e.IsDeleted, &e.SyncStatus, &e.UpdatedAt, &e.LastSyncedAt, &e.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEquipment inserts a new equipment row.
func (s *Store) InsertEquipment(e *models.Equipment) error {
	stampNew(&e.CreatedAt, &e.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO equipment (uuid, project_uuid, room_uuid, name, equipment_type, quantity,
		created_at, server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at,
		lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UUID, e.ProjectUUID, e.RoomUUID, e.Name, e.EquipmentType, e.Quantity,
		e.CreatedAt, e.ServerID, e.IsDirty, e.IsDeleted, e.SyncStatus, e.UpdatedAt, e.LastSyncedAt,
		e.LockUpdatedAt)
	if err != nil {
		return err
	}
	e.LocalID, err = res.LastInsertId()
	return err
}

// GetEquipmentByUUID retrieves an equipment record by UUID.
func (s *Store) GetEquipmentByUUID(uuid models.UUID) (*models.Equipment, error) {
	stmt, err := s.PrepareStmt("SELECT " + equipmentColumns + " FROM equipment WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanEquipment(stmt.QueryRow(uuid))
}

// UpdateEquipment writes all mutable equipment fields by UUID.
func (s *Store) UpdateEquipment(e *models.Equipment) error {
	_, err := s.db.Exec(`
	UPDATE equipment SET room_uuid = ?, name = ?, equipment_type = ?, quantity = ?,
		server_id = ?, is_dirty = ?, is_deleted = ?, sync_status = ?, updated_at = ?,
		last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		e.RoomUUID, e.Name, e.EquipmentType, e.Quantity,
		e.ServerID, e.IsDirty, e.IsDeleted, e.SyncStatus, e.UpdatedAt,
		e.LastSyncedAt, e.LockUpdatedAt,
		e.UUID)
	return err
}

// =====================================================
// Moisture / Atmospheric Log Operations
// =====================================================

const moistureColumns = `local_id, uuid, project_uuid, room_uuid, material_name, reading,
	recorded_at, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanMoistureLog(row rowScanner) (*models.MoistureLog, error) {
	var m models.MoistureLog
	err := row.Scan(
		&m.LocalID, &m.UUID, &m.ProjectUUID, &m.RoomUUID, &m.MaterialName, &m.Reading,
		&m.RecordedAt, &m.CreatedAt,
		&m.ServerID, &m.IsDirty, &m.IsDeleted, &m.SyncStatus, &m.UpdatedAt, &m.LastSyncedAt, &m.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMoistureLog inserts a new moisture log row.
func (s *Store) InsertMoistureLog(m *models.MoistureLog) error {
	stampNew(&m.CreatedAt, &m.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO moisture_logs (uuid, project_uuid, room_uuid, material_name, reading,
		recorded_at, created_at, server_id, is_dirty, is_deleted, sync_status, updated_at,
		last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UUID, m.ProjectUUID, m.RoomUUID, m.MaterialName, m.Reading,
		m.RecordedAt, m.CreatedAt, m.ServerID, m.IsDirty, m.IsDeleted, m.SyncStatus, m.UpdatedAt,
		m.LastSyncedAt, m.LockUpdatedAt)
	if err != nil {
		return err
	}
	m.LocalID, err = res.LastInsertId()
	return err
}

// GetMoistureLogByUUID retrieves a moisture log by UUID.
func (s *Store) GetMoistureLogByUUID(uuid models.UUID) (*models.MoistureLog, error) {
	stmt, err := s.PrepareStmt("SELECT " + moistureColumns + " FROM moisture_logs WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanMoistureLog(stmt.QueryRow(uuid))
}

// UpdateMoistureLog writes all mutable moisture log fields by UUID.
func (s *Store) UpdateMoistureLog(m *models.MoistureLog) error {
	_, err := s.db.Exec(`
	UPDATE moisture_logs SET room_uuid = ?, material_name = ?, reading = ?, recorded_at = ?,
		server_id = ?, is_dirty = ?, is_deleted = ?, sync_status = ?, updated_at = ?,
		last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		m.RoomUUID, m.MaterialName, m.Reading, m.RecordedAt,
		m.ServerID, m.IsDirty, m.IsDeleted, m.SyncStatus, m.UpdatedAt,
		m.LastSyncedAt, m.LockUpdatedAt,
		m.UUID)
	return err
}

const atmosphericColumns = `local_id, uuid, project_uuid, room_uuid, temperature_c,
	relative_humidity, grains_per_pound, recorded_at, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanAtmosphericLog(row rowScanner) (*models.AtmosphericLog, error) {
	var a models.AtmosphericLog
	err := row.Scan(
		&a.LocalID, &a.UUID, &a.ProjectUUID, &a.RoomUUID, &a.TemperatureC,
		&a.RelativeHumidity, &a.GrainsPerPound, &a.RecordedAt, &a.CreatedAt,
		&a.ServerID, &a.IsDirty, &a.IsDeleted, &a.SyncStatus, &a.UpdatedAt, &a.LastSyncedAt, &a.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAtmosphericLog inserts a new atmospheric log row.
func (s *Store) InsertAtmosphericLog(a *models.AtmosphericLog) error {
	stampNew(&a.CreatedAt, &a.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO atmospheric_logs (uuid, project_uuid, room_uuid, temperature_c,
		relative_humidity, grains_per_pound, recorded_at, created_at, server_id, is_dirty,
		is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.ProjectUUID, a.RoomUUID, a.TemperatureC,
		a.RelativeHumidity, a.GrainsPerPound, a.RecordedAt, a.CreatedAt, a.ServerID, a.IsDirty,
		a.IsDeleted, a.SyncStatus, a.UpdatedAt, a.LastSyncedAt, a.LockUpdatedAt)
	if err != nil {
		return err
	}
	a.LocalID, err = res.LastInsertId()
	return err
}

// GetAtmosphericLogByUUID retrieves an atmospheric log by UUID.
func (s *Store) GetAtmosphericLogByUUID(uuid models.UUID) (*models.AtmosphericLog, error) {
	stmt, err := s.PrepareStmt("SELECT " + atmosphericColumns + " FROM atmospheric_logs WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanAtmosphericLog(stmt.QueryRow(uuid))
}

// UpdateAtmosphericLog writes all mutable atmospheric log fields by UUID.
func (s *Store) UpdateAtmosphericLog(a *models.AtmosphericLog) error {
	_, err := s.db.Exec(`
	UPDATE atmospheric_logs SET room_uuid = ?, temperature_c = ?, relative_humidity = ?,
		grains_per_pound = ?, recorded_at = ?, server_id = ?, is_dirty = ?, is_deleted = ?,
		sync_status = ?, updated_at = ?, last_synced_at = ?, lock_updated_at = ?
	WHERE uuid = ?`,
		a.RoomUUID, a.TemperatureC, a.RelativeHumidity,
		a.GrainsPerPound, a.RecordedAt, a.ServerID, a.IsDirty, a.IsDeleted,
		a.SyncStatus, a.UpdatedAt, a.LastSyncedAt, a.LockUpdatedAt,
		a.UUID)
	return err
}

// =====================================================
// Support Operations
// =====================================================

const conversationColumns = `local_id, uuid, subject, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanConversation(row rowScanner) (*models.SupportConversation, error) {
	var c models.SupportConversation
	err := row.Scan(
		&c.LocalID, &c.UUID, &c.Subject, &c.CreatedAt,
		&c.ServerID, &c.IsDirty, &c.IsDeleted, &c.SyncStatus, &c.UpdatedAt, &c.LastSyncedAt, &c.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertConversation inserts a new support conversation row.
func (s *Store) InsertConversation(c *models.SupportConversation) error {
	stampNew(&c.CreatedAt, &c.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO support_conversations (uuid, subject, created_at, server_id, is_dirty,
		is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.Subject, c.CreatedAt, c.ServerID, c.IsDirty,
		c.IsDeleted, c.SyncStatus, c.UpdatedAt, c.LastSyncedAt, c.LockUpdatedAt)
	if err != nil {
		return err
	}
	c.LocalID, err = res.LastInsertId()
	return err
}

// GetConversationByUUID retrieves a support conversation by UUID.
func (s *Store) GetConversationByUUID(uuid models.UUID) (*models.SupportConversation, error) {
	stmt, err := s.PrepareStmt("SELECT " + conversationColumns + " FROM support_conversations WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanConversation(stmt.QueryRow(uuid))
}

const messageColumns = `local_id, uuid, conversation_uuid, body, created_at,
	server_id, is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at`

func scanMessage(row rowScanner) (*models.SupportMessage, error) {
	var m models.SupportMessage
	err := row.Scan(
		&m.LocalID, &m.UUID, &m.ConversationUUID, &m.Body, &m.CreatedAt,
		&m.ServerID, &m.IsDirty, &m.IsDeleted, &m.SyncStatus, &m.UpdatedAt, &m.LastSyncedAt, &m.LockUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage inserts a new support message row.
func (s *Store) InsertMessage(m *models.SupportMessage) error {
	stampNew(&m.CreatedAt, &m.SyncState)
	res, err := s.db.Exec(`
	INSERT INTO support_messages (uuid, conversation_uuid, body, created_at, server_id,
		is_dirty, is_deleted, sync_status, updated_at, last_synced_at, lock_updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UUID, m.ConversationUUID, m.Body, m.CreatedAt, m.ServerID,
		m.IsDirty, m.IsDeleted, m.SyncStatus, m.UpdatedAt, m.LastSyncedAt, m.LockUpdatedAt)
	if err != nil {
		return err
	}
	m.LocalID, err = res.LastInsertId()
	return err
}

// GetMessageByUUID retrieves a support message by UUID.
func (s *Store) GetMessageByUUID(uuid models.UUID) (*models.SupportMessage, error) {
	stmt, err := s.PrepareStmt("SELECT " + messageColumns + " FROM support_messages WHERE uuid = ?")
	if err != nil {
		return nil, err
	}
	return scanMessage(stmt.QueryRow(uuid))
}

// stampNew fills creation defaults before an insert.
func stampNew(createdAt *int64, st *models.SyncState) {
	now := time.Now().Unix()
	if *createdAt == 0 {
		*createdAt = now
	}
	if st.UpdatedAt == 0 {
		st.UpdatedAt = now
	}
	if st.SyncStatus == "" {
		st.SyncStatus = models.SyncStatusPending
	}
}

// IsNotFound reports whether err is the no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
