// Package store provides SQLite-backed persistence for FieldSync.
package store

import "database/sql"

// Every entity table shares the sync bookkeeping columns: server_id,
// is_dirty, is_deleted, sync_status, updated_at, last_synced_at and
// lock_updated_at. Generic helpers in entities.go key on the table name.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		alias TEXT NOT NULL DEFAULT '',
		company_id INTEGER NOT NULL DEFAULT 0,
		address_id INTEGER NOT NULL DEFAULT 0,
		street TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS properties (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS locations (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		property_uuid TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		is_single_unit INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS rooms (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		property_uuid TEXT NOT NULL DEFAULT '',
		level_uuid TEXT NOT NULL DEFAULT '',
		location_uuid TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		room_type TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS photos (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		room_uuid TEXT NOT NULL DEFAULT '',
		file_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		cached_original_path TEXT NOT NULL DEFAULT '',
		cached_thumbnail_path TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS notes (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		room_uuid TEXT NOT NULL DEFAULT '',
		photo_uuid TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS equipment (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		room_uuid TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		equipment_type TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS moisture_logs (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		room_uuid TEXT NOT NULL DEFAULT '',
		material_name TEXT NOT NULL DEFAULT '',
		reading REAL NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS atmospheric_logs (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		project_uuid TEXT NOT NULL,
		room_uuid TEXT NOT NULL DEFAULT '',
		temperature_c REAL NOT NULL DEFAULT 0,
		relative_humidity REAL NOT NULL DEFAULT 0,
		grains_per_pound REAL NOT NULL DEFAULT 0,
		recorded_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS support_conversations (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		subject TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS support_messages (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		conversation_uuid TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		server_id INTEGER NOT NULL DEFAULT 0,
		is_dirty INTEGER NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT 'PENDING',
		updated_at INTEGER NOT NULL DEFAULT 0,
		last_synced_at INTEGER NOT NULL DEFAULT 0,
		lock_updated_at TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS sync_operations (
		operation_id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL DEFAULT 0,
		entity_uuid TEXT NOT NULL,
		operation TEXT NOT NULL,
		payload BLOB NOT NULL,
		priority INTEGER NOT NULL DEFAULT 2,
		retry_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 3,
		skip_count INTEGER NOT NULL DEFAULT 0,
		max_skips INTEGER NOT NULL DEFAULT 20,
		status TEXT NOT NULL DEFAULT 'PENDING',
		error_message TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT 0,
		scheduled_at INTEGER NOT NULL DEFAULT 0,
		last_attempt_at INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sync_operations_due
		ON sync_operations (status, scheduled_at, priority, created_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sync_operations_entity
		ON sync_operations (entity_type, entity_uuid);`,

	`CREATE TABLE IF NOT EXISTS conflict_records (
		conflict_id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL DEFAULT 0,
		entity_uuid TEXT NOT NULL,
		conflict_type TEXT NOT NULL,
		local_version BLOB NOT NULL,
		remote_version BLOB NOT NULL,
		detected_at INTEGER NOT NULL DEFAULT 0,
		requeue_attempts INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE TABLE IF NOT EXISTS upload_assemblies (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		assembly_id TEXT NOT NULL DEFAULT '',
		group_uuid TEXT NOT NULL UNIQUE,
		project_id INTEGER NOT NULL DEFAULT 0,
		room_uuid TEXT NOT NULL DEFAULT '',
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'queued',
		total_files INTEGER NOT NULL DEFAULT 0,
		bytes_received INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		fails_count INTEGER NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER NOT NULL DEFAULT 0,
		last_timeout_sec INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT 0,
		last_updated_at INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_upload_assemblies_status
		ON upload_assemblies (status, created_at);`,

	`CREATE TABLE IF NOT EXISTS assembly_photos (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_uuid TEXT NOT NULL,
		assembly_local_id INTEGER NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		local_file_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		order_index INTEGER NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		bytes_uploaded INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		last_updated_at INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (assembly_local_id) REFERENCES upload_assemblies(local_id) ON DELETE CASCADE
	);`,
	`CREATE INDEX IF NOT EXISTS idx_assembly_photos_assembly
		ON assembly_photos (assembly_local_id, order_index);`,
}

// initSchema creates all tables and indexes if they don't exist.
func initSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
