// Package models provides data model definitions for FieldSync.
package models

// MoistureLog is a moisture reading taken against a material in a room.
type MoistureLog struct {
	LocalID      int64   `db:"local_id" json:"local_id"`
	UUID         UUID    `db:"uuid" json:"uuid"`
	ProjectUUID  UUID    `db:"project_uuid" json:"project_uuid"`
	RoomUUID     UUID    `db:"room_uuid" json:"room_uuid"`
	MaterialName string  `db:"material_name" json:"material_name,omitempty"`
	Reading      float64 `db:"reading" json:"reading"`
	RecordedAt   int64   `db:"recorded_at" json:"recorded_at"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for MoistureLog.
func (MoistureLog) TableName() string {
	return "moisture_logs"
}

// AtmosphericLog is an ambient air reading taken in a room.
type AtmosphericLog struct {
	LocalID          int64   `db:"local_id" json:"local_id"`
	UUID             UUID    `db:"uuid" json:"uuid"`
	ProjectUUID      UUID    `db:"project_uuid" json:"project_uuid"`
	RoomUUID         UUID    `db:"room_uuid" json:"room_uuid"`
	TemperatureC     float64 `db:"temperature_c" json:"temperature_c"`
	RelativeHumidity float64 `db:"relative_humidity" json:"relative_humidity"`
	GrainsPerPound   float64 `db:"grains_per_pound" json:"grains_per_pound"`
	RecordedAt       int64   `db:"recorded_at" json:"recorded_at"`
	CreatedAt        int64   `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for AtmosphericLog.
func (AtmosphericLog) TableName() string {
	return "atmospheric_logs"
}
