// Package api provides the typed HTTP client for the FieldSync backend.
package api

import (
	"context"
	"fmt"
	"net/http"
)

// =====================================================
// Addresses & Projects
// =====================================================

// CreateAddress creates a server-side address.
func (c *Client) CreateAddress(ctx context.Context, req *AddressRequest) (*AddressDTO, error) {
	var dto AddressDTO
	if err := c.do(ctx, http.MethodPost, "/addresses", nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// CreateProject creates a project. The idempotency key makes replays
// after a crash safe: the backend returns the original result instead of
// creating a duplicate.
func (c *Client) CreateProject(ctx context.Context, req *ProjectCreateRequest, idempotencyKey string) (*ProjectDTO, error) {
	var dto ProjectDTO
	path := fmt.Sprintf("/companies/%d/projects", req.CompanyID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateProject updates a project under optimistic lock.
func (c *Client) UpdateProject(ctx context.Context, serverID int64, req *ProjectUpdateRequest) (*ProjectDTO, error) {
	var dto ProjectDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/projects/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteProject deletes a project under optimistic lock.
func (c *Client) DeleteProject(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// GetProjectDetail fetches the full project snapshot, nested down to
// rooms. Used for 409 retries and project-essentials refreshes.
func (c *Client) GetProjectDetail(ctx context.Context, serverID int64) (*ProjectDetailDTO, error) {
	var dto ProjectDetailDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", serverID), nil, nil, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// =====================================================
// Properties & Locations
// =====================================================

// CreateProperty creates a property under a project.
func (c *Client) CreateProperty(ctx context.Context, req *PropertyCreateRequest, idempotencyKey string) (*PropertyDTO, error) {
	var dto PropertyDTO
	path := fmt.Sprintf("/projects/%d/properties", req.ProjectID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateProperty updates a property under optimistic lock.
func (c *Client) UpdateProperty(ctx context.Context, serverID int64, req *PropertyUpdateRequest) (*PropertyDTO, error) {
	var dto PropertyDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/properties/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteProperty deletes a property under optimistic lock.
func (c *Client) DeleteProperty(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/properties/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// CreateLocation creates a location under a property.
func (c *Client) CreateLocation(ctx context.Context, req *LocationCreateRequest, idempotencyKey string) (*LocationDTO, error) {
	var dto LocationDTO
	path := fmt.Sprintf("/properties/%d/locations", req.PropertyID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateLocation updates a location under optimistic lock.
func (c *Client) UpdateLocation(ctx context.Context, serverID int64, req *LocationUpdateRequest) (*LocationDTO, error) {
	var dto LocationDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/locations/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteLocation deletes a location under optimistic lock.
func (c *Client) DeleteLocation(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/locations/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// GetPropertyLocations lists a property's locations with fresh lock
// timestamps.
func (c *Client) GetPropertyLocations(ctx context.Context, propertyServerID int64) ([]LocationDTO, error) {
	var dtos []LocationDTO
	path := fmt.Sprintf("/properties/%d/locations", propertyServerID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &dtos); err != nil {
		return nil, err
	}
	return dtos, nil
}

// =====================================================
// Rooms & Photos
// =====================================================

// CreateRoom creates a room under a location.
func (c *Client) CreateRoom(ctx context.Context, req *RoomCreateRequest, idempotencyKey string) (*RoomDTO, error) {
	var dto RoomDTO
	path := fmt.Sprintf("/locations/%d/rooms", req.LocationID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateRoom updates a room under optimistic lock.
func (c *Client) UpdateRoom(ctx context.Context, serverID int64, req *RoomUpdateRequest) (*RoomDTO, error) {
	var dto RoomDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/rooms/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteRoom deletes a room under optimistic lock.
func (c *Client) DeleteRoom(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// GetRoomDetail fetches a fresh room snapshot for 409 retries.
func (c *Client) GetRoomDetail(ctx context.Context, serverID int64) (*RoomDTO, error) {
	var dto RoomDTO
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d", serverID), nil, nil, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeletePhoto deletes a photo under optimistic lock. Photo creation goes
// through the upload assembly pipeline, not this client.
func (c *Client) DeletePhoto(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/photos/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// =====================================================
// Notes, Equipment & Readings
// =====================================================

// CreateNote creates a note.
func (c *Client) CreateNote(ctx context.Context, req *NoteRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPost, "/notes", idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateNote updates a note under optimistic lock.
func (c *Client) UpdateNote(ctx context.Context, serverID int64, req *NoteRequest) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/notes/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteNote deletes a note under optimistic lock.
func (c *Client) DeleteNote(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/notes/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// CreateEquipment creates an equipment record.
func (c *Client) CreateEquipment(ctx context.Context, req *EquipmentRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPost, "/equipment", idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateEquipment updates an equipment record under optimistic lock.
func (c *Client) UpdateEquipment(ctx context.Context, serverID int64, req *EquipmentRequest) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/equipment/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteEquipment deletes an equipment record under optimistic lock.
func (c *Client) DeleteEquipment(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/equipment/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// CreateMoistureLog creates a moisture reading.
func (c *Client) CreateMoistureLog(ctx context.Context, req *MoistureLogRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPost, "/moisture-logs", idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateMoistureLog updates a moisture reading under optimistic lock.
func (c *Client) UpdateMoistureLog(ctx context.Context, serverID int64, req *MoistureLogRequest) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/moisture-logs/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteMoistureLog deletes a moisture reading under optimistic lock.
func (c *Client) DeleteMoistureLog(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/moisture-logs/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// CreateAtmosphericLog creates an atmospheric reading.
func (c *Client) CreateAtmosphericLog(ctx context.Context, req *AtmosphericLogRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPost, "/atmospheric-logs", idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// UpdateAtmosphericLog updates an atmospheric reading under optimistic lock.
func (c *Client) UpdateAtmosphericLog(ctx context.Context, serverID int64, req *AtmosphericLogRequest) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/atmospheric-logs/%d", serverID), nil, req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// DeleteAtmosphericLog deletes an atmospheric reading under optimistic lock.
func (c *Client) DeleteAtmosphericLog(ctx context.Context, serverID int64, lockUpdatedAt string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/atmospheric-logs/%d", serverID), nil,
		&DeleteRequest{UpdatedAt: lockUpdatedAt}, nil)
}

// =====================================================
// Support
// =====================================================

// CreateConversation opens a support conversation.
func (c *Client) CreateConversation(ctx context.Context, req *ConversationRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	if err := c.do(ctx, http.MethodPost, "/support/conversations", idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// CreateMessage posts a message into a support conversation.
func (c *Client) CreateMessage(ctx context.Context, req *MessageRequest, idempotencyKey string) (*RecordDTO, error) {
	var dto RecordDTO
	path := fmt.Sprintf("/support/conversations/%d/messages", req.ConversationID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyHeader(idempotencyKey), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// =====================================================
// Upload Assemblies
// =====================================================

// CreateAssembly registers an upload assembly server-side and returns
// its id and upload URL.
func (c *Client) CreateAssembly(ctx context.Context, req *AssemblyCreateRequest) (*AssemblyDTO, error) {
	var dto AssemblyDTO
	if err := c.do(ctx, http.MethodPost, "/assemblies", idempotencyHeader(req.GroupUUID), req, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}

// GetAssemblyStatus fetches the backend's view of an assembly for
// reconciliation.
func (c *Client) GetAssemblyStatus(ctx context.Context, assemblyID string) (*AssemblyDTO, error) {
	var dto AssemblyDTO
	if err := c.do(ctx, http.MethodGet, "/assemblies/"+assemblyID, nil, nil, &dto); err != nil {
		return nil, err
	}
	return &dto, nil
}
