// Package models provides data model definitions for FieldSync.
package models

// Property is a building or unit within a project.
type Property struct {
	LocalID     int64  `db:"local_id" json:"local_id"`
	UUID        UUID   `db:"uuid" json:"uuid"`
	ProjectUUID UUID   `db:"project_uuid" json:"project_uuid"`
	Name        string `db:"name" json:"name"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Property.
func (Property) TableName() string {
	return "properties"
}
