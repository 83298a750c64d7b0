// Package api provides the typed HTTP client for the FieldSync backend.
package api

// DTOs mirror the backend's JSON shapes. ID 0 or negative in a create
// response is a placeholder the backend sometimes emits under load; push
// handlers treat it as retryable.

// AddressDTO is a created address.
type AddressDTO struct {
	ID        int64  `json:"id"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ProjectDTO is a project as the backend sees it.
type ProjectDTO struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	Name      string `json:"name,omitempty"`
	Alias     string `json:"alias,omitempty"`
	CompanyID int64  `json:"company_id,omitempty"`
	AddressID int64  `json:"address_id,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// PropertyDTO is a property as the backend sees it.
type PropertyDTO struct {
	ID        int64         `json:"id"`
	UUID      string        `json:"uuid,omitempty"`
	Name      string        `json:"name,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
	Locations []LocationDTO `json:"locations,omitempty"`
}

// LocationDTO is a location as the backend sees it.
type LocationDTO struct {
	ID           int64     `json:"id"`
	UUID         string    `json:"uuid,omitempty"`
	Name         string    `json:"name,omitempty"`
	IsSingleUnit bool      `json:"is_single_unit,omitempty"`
	UpdatedAt    string    `json:"updated_at,omitempty"`
	Rooms        []RoomDTO `json:"rooms,omitempty"`
}

// RoomDTO is a room as the backend sees it.
type RoomDTO struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	Name      string `json:"name,omitempty"`
	RoomType  string `json:"room_type,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ProjectDetailDTO is the full project snapshot, nested down to rooms.
// It backs both 409 retry flows and the project-essentials refresh.
type ProjectDetailDTO struct {
	ProjectDTO
	Properties []PropertyDTO `json:"properties,omitempty"`
}

// RecordDTO is the common shape of notes, equipment, readings and
// support records.
type RecordDTO struct {
	ID        int64  `json:"id"`
	UUID      string `json:"uuid,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AssemblyDTO is a created upload assembly.
type AssemblyDTO struct {
	ID            string `json:"id"`
	UploadURL     string `json:"upload_url,omitempty"`
	TotalFiles    int    `json:"total_files,omitempty"`
	BytesReceived int64  `json:"bytes_received,omitempty"`
	Complete      bool   `json:"complete,omitempty"`
}

// =====================================================
// Requests
// =====================================================

// AddressRequest creates a server-side address.
type AddressRequest struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// ProjectCreateRequest creates a project under a company.
type ProjectCreateRequest struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Alias     string `json:"alias,omitempty"`
	CompanyID int64  `json:"company_id"`
	AddressID int64  `json:"address_id,omitempty"`
}

// ProjectUpdateRequest updates a project. UpdatedAt is the optimistic
// lock token (the last-known remote updatedAt).
type ProjectUpdateRequest struct {
	Name      string `json:"name,omitempty"`
	Alias     string `json:"alias,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// PropertyCreateRequest creates a property under a project.
type PropertyCreateRequest struct {
	UUID      string `json:"uuid"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
}

// PropertyUpdateRequest updates a property.
type PropertyUpdateRequest struct {
	Name      string `json:"name,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// LocationCreateRequest creates a location under a property.
type LocationCreateRequest struct {
	UUID         string `json:"uuid"`
	PropertyID   int64  `json:"property_id"`
	Name         string `json:"name"`
	IsSingleUnit bool   `json:"is_single_unit,omitempty"`
}

// LocationUpdateRequest updates a location.
type LocationUpdateRequest struct {
	Name      string `json:"name,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// RoomCreateRequest creates a room under a location.
type RoomCreateRequest struct {
	UUID       string `json:"uuid"`
	ProjectID  int64  `json:"project_id"`
	PropertyID int64  `json:"property_id"`
	LevelID    int64  `json:"level_id"`
	LocationID int64  `json:"location_id"`
	Name       string `json:"name"`
	RoomType   string `json:"room_type,omitempty"`
}

// RoomUpdateRequest updates a room.
type RoomUpdateRequest struct {
	Name      string `json:"name,omitempty"`
	RoomType  string `json:"room_type,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

// NoteRequest creates or updates a note. RoomID and PhotoID are optional
// attachment points; UpdatedAt is empty on create.
type NoteRequest struct {
	UUID      string `json:"uuid,omitempty"`
	ProjectID int64  `json:"project_id,omitempty"`
	RoomID    int64  `json:"room_id,omitempty"`
	PhotoID   int64  `json:"photo_id,omitempty"`
	Body      string `json:"body"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// EquipmentRequest creates or updates an equipment record.
type EquipmentRequest struct {
	UUID          string `json:"uuid,omitempty"`
	ProjectID     int64  `json:"project_id,omitempty"`
	RoomID        int64  `json:"room_id,omitempty"`
	Name          string `json:"name"`
	EquipmentType string `json:"equipment_type,omitempty"`
	Quantity      int    `json:"quantity"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// MoistureLogRequest creates or updates a moisture reading.
type MoistureLogRequest struct {
	UUID         string  `json:"uuid,omitempty"`
	ProjectID    int64   `json:"project_id,omitempty"`
	RoomID       int64   `json:"room_id,omitempty"`
	MaterialName string  `json:"material_name,omitempty"`
	Reading      float64 `json:"reading"`
	RecordedAt   int64   `json:"recorded_at"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// AtmosphericLogRequest creates or updates an atmospheric reading.
type AtmosphericLogRequest struct {
	UUID             string  `json:"uuid,omitempty"`
	ProjectID        int64   `json:"project_id,omitempty"`
	RoomID           int64   `json:"room_id,omitempty"`
	TemperatureC     float64 `json:"temperature_c"`
	RelativeHumidity float64 `json:"relative_humidity"`
	GrainsPerPound   float64 `json:"grains_per_pound"`
	RecordedAt       int64   `json:"recorded_at"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

// ConversationRequest opens a support conversation.
type ConversationRequest struct {
	UUID    string `json:"uuid"`
	Subject string `json:"subject"`
}

// MessageRequest posts a message into a support conversation.
type MessageRequest struct {
	UUID           string `json:"uuid"`
	ConversationID int64  `json:"conversation_id"`
	Body           string `json:"body"`
}

// DeleteRequest carries the optimistic lock token on entity deletes.
type DeleteRequest struct {
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AssemblyCreateRequest registers an upload assembly server-side.
// Either RoomID or EntityType/EntityID is set, never both.
type AssemblyCreateRequest struct {
	GroupUUID  string `json:"group_uuid"`
	ProjectID  int64  `json:"project_id"`
	RoomID     int64  `json:"room_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   int64  `json:"entity_id,omitempty"`
	TotalFiles int    `json:"total_files"`
}
