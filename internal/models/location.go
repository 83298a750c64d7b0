// Package models provides data model definitions for FieldSync.
package models

// Location is a unit or floor area within a property.
// Single-unit properties alias the level and the location to one record.
type Location struct {
	LocalID      int64  `db:"local_id" json:"local_id"`
	UUID         UUID   `db:"uuid" json:"uuid"`
	ProjectUUID  UUID   `db:"project_uuid" json:"project_uuid"`
	PropertyUUID UUID   `db:"property_uuid" json:"property_uuid"`
	Name         string `db:"name" json:"name"`
	IsSingleUnit bool   `db:"is_single_unit" json:"is_single_unit"`
	CreatedAt    int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Location.
func (Location) TableName() string {
	return "locations"
}
