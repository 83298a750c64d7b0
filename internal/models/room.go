// Package models provides data model definitions for FieldSync.
package models

// Room is the capture surface: photos, notes, equipment and readings
// attach to rooms.
type Room struct {
	LocalID      int64  `db:"local_id" json:"local_id"`
	UUID         UUID   `db:"uuid" json:"uuid"`
	ProjectUUID  UUID   `db:"project_uuid" json:"project_uuid"`
	PropertyUUID UUID   `db:"property_uuid" json:"property_uuid"`
	LevelUUID    UUID   `db:"level_uuid" json:"level_uuid"`
	LocationUUID UUID   `db:"location_uuid" json:"location_uuid"`
	Name         string `db:"name" json:"name"`
	RoomType     string `db:"room_type" json:"room_type,omitempty"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Room.
func (Room) TableName() string {
	return "rooms"
}
