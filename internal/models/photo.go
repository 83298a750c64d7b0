// Package models provides data model definitions for FieldSync.
package models

// Photo is a captured image. The bytes themselves move through the upload
// assembly pipeline; the sync queue only replays photo deletes.
type Photo struct {
	LocalID             int64  `db:"local_id" json:"local_id"`
	UUID                UUID   `db:"uuid" json:"uuid"`
	ProjectUUID         UUID   `db:"project_uuid" json:"project_uuid"`
	RoomUUID            UUID   `db:"room_uuid" json:"room_uuid"`
	FileName            string `db:"file_name" json:"file_name"`
	Description         string `db:"description" json:"description,omitempty"`
	CachedOriginalPath  string `db:"cached_original_path" json:"cached_original_path,omitempty"`
	CachedThumbnailPath string `db:"cached_thumbnail_path" json:"cached_thumbnail_path,omitempty"`
	CreatedAt           int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Photo.
func (Photo) TableName() string {
	return "photos"
}
