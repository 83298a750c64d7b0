// Package models provides data model definitions for FieldSync.
package models

// Equipment is drying or monitoring gear placed in a room.
type Equipment struct {
	LocalID       int64  `db:"local_id" json:"local_id"`
	UUID          UUID   `db:"uuid" json:"uuid"`
	ProjectUUID   UUID   `db:"project_uuid" json:"project_uuid"`
	RoomUUID      UUID   `db:"room_uuid" json:"room_uuid,omitempty"`
	Name          string `db:"name" json:"name"`
	EquipmentType string `db:"equipment_type" json:"equipment_type,omitempty"`
	Quantity      int    `db:"quantity" json:"quantity"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Equipment.
func (Equipment) TableName() string {
	return "equipment"
}
