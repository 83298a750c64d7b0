// Package models provides data model definitions for FieldSync.
package models

// SyncStatus represents the sync lifecycle state of an entity.
type SyncStatus string

const (
	SyncStatusPending  SyncStatus = "PENDING"
	SyncStatusSyncing  SyncStatus = "SYNCING"
	SyncStatusSynced   SyncStatus = "SYNCED"
	SyncStatusConflict SyncStatus = "CONFLICT"
	SyncStatusFailed   SyncStatus = "FAILED"
)

// SyncPriority orders queue drains; lower values drain first.
type SyncPriority int

const (
	PriorityCritical SyncPriority = 0
	PriorityHigh     SyncPriority = 1
	PriorityMedium   SyncPriority = 2
	PriorityLow      SyncPriority = 3
)

// OperationType is the kind of mutation a queue entry replays.
type OperationType string

const (
	OpCreate OperationType = "CREATE"
	OpUpdate OperationType = "UPDATE"
	OpDelete OperationType = "DELETE"
)

// Entity type keys used for queue dispatch.
const (
	EntityProject        = "project"
	EntityProperty       = "property"
	EntityLocation       = "location"
	EntityRoom           = "room"
	EntityPhoto          = "photo"
	EntityNote           = "note"
	EntityEquipment      = "equipment"
	EntityMoistureLog    = "moisture_log"
	EntityAtmosphericLog = "atmospheric_log"
	EntityConversation   = "support_conversation"
	EntitySupportMessage = "support_message"
)
