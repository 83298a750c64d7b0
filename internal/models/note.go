// Package models provides data model definitions for FieldSync.
package models

// Note is free text attached to a project, a room, or a photo.
// RoomUUID and PhotoUUID are optional attachment points.
type Note struct {
	LocalID     int64  `db:"local_id" json:"local_id"`
	UUID        UUID   `db:"uuid" json:"uuid"`
	ProjectUUID UUID   `db:"project_uuid" json:"project_uuid"`
	RoomUUID    UUID   `db:"room_uuid" json:"room_uuid,omitempty"`
	PhotoUUID   UUID   `db:"photo_uuid" json:"photo_uuid,omitempty"`
	Body        string `db:"body" json:"body"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Note.
func (Note) TableName() string {
	return "notes"
}
