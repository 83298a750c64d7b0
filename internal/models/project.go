// Package models provides data model definitions for FieldSync.
package models

// Project is the top-level job record; every other entity hangs off one.
type Project struct {
	LocalID    int64  `db:"local_id" json:"local_id"`
	UUID       UUID   `db:"uuid" json:"uuid"`
	Name       string `db:"name" json:"name"`
	Alias      string `db:"alias" json:"alias,omitempty"`
	CompanyID  int64  `db:"company_id" json:"company_id"`
	AddressID  int64  `db:"address_id" json:"address_id,omitempty"` // server-side address id
	Street     string `db:"street" json:"street,omitempty"`
	City       string `db:"city" json:"city,omitempty"`
	Province   string `db:"province" json:"province,omitempty"`
	PostalCode string `db:"postal_code" json:"postal_code,omitempty"`
	Country    string `db:"country" json:"country,omitempty"`
	CreatedAt  int64  `db:"created_at" json:"created_at"`
	SyncState
}

// TableName returns the table name for Project.
func (Project) TableName() string {
	return "projects"
}
