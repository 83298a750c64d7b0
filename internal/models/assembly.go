// Package models provides data model definitions for FieldSync.
package models

// AssemblyStatus is the lifecycle state of an upload assembly.
type AssemblyStatus string

const (
	AssemblyQueued         AssemblyStatus = "queued"
	AssemblyCreating       AssemblyStatus = "creating"
	AssemblyCreated        AssemblyStatus = "created"
	AssemblyUploading      AssemblyStatus = "uploading"
	AssemblyProcessing     AssemblyStatus = "processing"
	AssemblyCompleted      AssemblyStatus = "completed"
	AssemblyFailed         AssemblyStatus = "failed"
	AssemblyCancelled      AssemblyStatus = "cancelled"
	AssemblyRetrying       AssemblyStatus = "retrying"
	AssemblyWaitingForConn AssemblyStatus = "waiting_for_connectivity"
	AssemblyWaitingForRoom AssemblyStatus = "waiting_for_room"
)

// PhotoUploadStatus is the lifecycle state of a single photo within an
// assembly.
type PhotoUploadStatus string

const (
	PhotoUploadPending   PhotoUploadStatus = "pending"
	PhotoUploadUploading PhotoUploadStatus = "uploading"
	PhotoUploadCompleted PhotoUploadStatus = "completed"
	PhotoUploadFailed    PhotoUploadStatus = "failed"
	PhotoUploadCancelled PhotoUploadStatus = "cancelled"
)

// UploadAssembly is a bulk photo upload batch. AssemblyID is assigned by
// the backend when the assembly is created server-side; until then the
// assembly sits in queued (or waiting_for_room when its room has not yet
// been pushed).
type UploadAssembly struct {
	LocalID        int64          `db:"local_id" json:"local_id"`
	AssemblyID     string         `db:"assembly_id" json:"assembly_id,omitempty"`
	GroupUUID      UUID           `db:"group_uuid" json:"group_uuid"`
	ProjectID      int64          `db:"project_id" json:"project_id"`
	RoomUUID       UUID           `db:"room_uuid" json:"room_uuid,omitempty"`
	EntityType     string         `db:"entity_type" json:"entity_type,omitempty"` // non-room targets
	EntityID       int64          `db:"entity_id" json:"entity_id,omitempty"`
	Status         AssemblyStatus `db:"status" json:"status"`
	TotalFiles     int            `db:"total_files" json:"total_files"`
	BytesReceived  int64          `db:"bytes_received" json:"bytes_received"`
	ErrorMessage   string         `db:"error_message" json:"error_message,omitempty"`
	FailsCount     int            `db:"fails_count" json:"fails_count"`
	RetryCount     int            `db:"retry_count" json:"retry_count"`
	NextRetryAt    int64          `db:"next_retry_at" json:"next_retry_at,omitempty"`
	LastTimeoutSec int            `db:"last_timeout_sec" json:"last_timeout_sec"`
	CreatedAt      int64          `db:"created_at" json:"created_at"`
	LastUpdatedAt  int64          `db:"last_updated_at" json:"last_updated_at"`
}

// TableName returns the table name for UploadAssembly.
func (UploadAssembly) TableName() string {
	return "upload_assemblies"
}

// AssemblyPhoto is one photo within an upload assembly.
type AssemblyPhoto struct {
	LocalID       int64             `db:"local_id" json:"local_id"`
	PhotoUUID     UUID              `db:"photo_uuid" json:"photo_uuid"`
	AssemblyLocal int64             `db:"assembly_local_id" json:"assembly_local_id"`
	FileName      string            `db:"file_name" json:"file_name"`
	LocalFilePath string            `db:"local_file_path" json:"local_file_path,omitempty"`
	Status        PhotoUploadStatus `db:"status" json:"status"`
	OrderIndex    int               `db:"order_index" json:"order_index"`
	FileSize      int64             `db:"file_size" json:"file_size"`
	BytesUploaded int64             `db:"bytes_uploaded" json:"bytes_uploaded"`
	ErrorMessage  string            `db:"error_message" json:"error_message,omitempty"`
	LastUpdatedAt int64             `db:"last_updated_at" json:"last_updated_at"`
}

// TableName returns the table name for AssemblyPhoto.
func (AssemblyPhoto) TableName() string {
	return "assembly_photos"
}
