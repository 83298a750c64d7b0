// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// RoomHandler replays room mutations. Room creation is the deepest
// dependency chain in the queue: project, property, level and location
// server ids must all resolve before the room can be pushed.
type RoomHandler struct {
	env *Env
}

// NewRoomHandler creates a room push handler.
func NewRoomHandler(env *Env) *RoomHandler {
	return &RoomHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *RoomHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate:
		return h.create(ctx, op)
	case models.OpUpdate:
		return h.update(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported room operation %q", op.Operation)
}

func (h *RoomHandler) create(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*RoomPayload)

	room, err := h.env.Store.GetRoomByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if room.IsDeleted {
		return OutcomeDrop, nil
	}
	if room.Synced() {
		return OutcomeSuccess, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", room.ProjectUUID, room.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 {
		return OutcomeSkip, nil
	}

	// The project may have been deleted remotely while this room sat
	// queued. Verify it still exists before pushing children into it;
	// the snapshot also lets us dedupe a room that already made it up.
	detail, err := h.env.API.GetProjectDetail(ctx, projectID)
	if api.IsMissingOnServer(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if dto := findServerRoom(detail, room.UUID); dto != nil {
		room.MarkSynced(dto.ID, dto.UpdatedAt)
		if err := h.env.Store.UpdateRoom(room); err != nil {
			return OutcomeRetry, err
		}
		h.kickAssemblies()
		return OutcomeSuccess, nil
	}

	propertyID, err := h.env.resolveWithRefresh(ctx, "properties", room.PropertyUUID, room.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if propertyID == 0 {
		return OutcomeSkip, nil
	}

	// Single-unit properties alias the level and the location; a room
	// with no level of its own uses its location for both ids.
	levelUUID := room.LevelUUID
	if levelUUID == "" {
		levelUUID = room.LocationUUID
	}
	levelID, err := h.env.resolveWithRefresh(ctx, "locations", levelUUID, room.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	locationID := levelID
	if room.LocationUUID != levelUUID {
		locationID, err = h.env.resolveWithRefresh(ctx, "locations", room.LocationUUID, room.ProjectUUID)
		if err != nil {
			return OutcomeRetry, err
		}
	}
	if levelID == 0 || locationID == 0 {
		return OutcomeSkip, nil
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(room.UUID)
	}
	dto, err := h.env.API.CreateRoom(ctx, &api.RoomCreateRequest{
		UUID:       string(room.UUID),
		ProjectID:  projectID,
		PropertyID: propertyID,
		LevelID:    levelID,
		LocationID: locationID,
		Name:       p.Name,
		RoomType:   p.RoomType,
	}, idemKey)
	if err != nil {
		// A 404 naming the location means the location itself is gone
		// remotely. Bury the subtree instead of skipping forever.
		if api.IsMissingOnServer(err) && mentionsLocation(api.StatusBody(err)) {
			if derr := h.env.Store.MarkEntityDeleted("locations", room.LocationUUID); derr != nil {
				return OutcomeRetry, derr
			}
			if derr := h.env.Store.MarkEntityDeleted("rooms", room.UUID); derr != nil {
				return OutcomeRetry, derr
			}
			log.Printf("[RoomHandler] location %s gone on server, dropped room %s", room.LocationUUID, room.UUID)
			return OutcomeDrop, nil
		}
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}

	room.MarkSynced(dto.ID, dto.UpdatedAt)
	if err := h.env.Store.UpdateRoom(room); err != nil {
		return OutcomeRetry, err
	}
	h.kickAssemblies()
	return OutcomeSuccess, nil
}

func (h *RoomHandler) update(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*RoomPayload)

	room, err := h.env.Store.GetRoomByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if room.IsDeleted {
		return OutcomeDrop, nil
	}
	if !room.Synced() {
		return OutcomeSkip, nil
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = room.LockUpdatedAt
	}
	req := &api.RoomUpdateRequest{Name: p.Name, RoomType: p.RoomType, UpdatedAt: lock}

	dto, err := h.env.API.UpdateRoom(ctx, room.ServerID, req)
	switch {
	case err == nil:
		if err := h.env.Store.MarkEntitySynced("rooms", room.UUID, 0, dto.UpdatedAt); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsMissingOnServer(err):
		if err := h.env.Store.MarkEntitySynced("rooms", room.UUID, 0, ""); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.env.API.GetRoomDetail(ctx, room.ServerID)
		if ferr != nil {
			return OutcomeRetry, ferr
		}
		req.UpdatedAt = fresh.UpdatedAt
		dto, rerr := h.env.API.UpdateRoom(ctx, room.ServerID, req)
		if rerr == nil {
			if err := h.env.Store.MarkEntitySynced("rooms", room.UUID, 0, dto.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if !api.IsConflict(rerr) {
			return OutcomeRetry, rerr
		}
		local := map[string]interface{}{"name": p.Name, "roomType": p.RoomType, "updatedAt": lock}
		remote := map[string]interface{}{"name": fresh.Name, "roomType": fresh.RoomType, "updatedAt": fresh.UpdatedAt}
		if err := h.env.recordConflict(op.EntityType, room.LocalID, room.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *RoomHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	room, err := h.env.Store.GetRoomByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !room.Synced() {
		return h.cascade(room.UUID)
	}

	err = h.env.API.DeleteRoom(ctx, room.ServerID, room.LockUpdatedAt)
	switch {
	case err == nil, api.IsMissingOnServer(err):
		return h.cascade(room.UUID)

	case api.IsConflict(err):
		fresh, ferr := h.env.API.GetRoomDetail(ctx, room.ServerID)
		if ferr != nil {
			if err := h.env.Store.RestoreEntity("rooms", room.UUID, ""); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		rerr := h.env.API.DeleteRoom(ctx, room.ServerID, fresh.UpdatedAt)
		if rerr == nil || api.IsMissingOnServer(rerr) {
			return h.cascade(room.UUID)
		}
		if api.IsConflict(rerr) {
			if err := h.env.Store.RestoreEntity("rooms", room.UUID, fresh.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		return OutcomeRetry, rerr

	default:
		return OutcomeRetry, err
	}
}

func (h *RoomHandler) cascade(uuid models.UUID) (Outcome, error) {
	photos, err := h.env.Store.CascadeDeleteRoom(uuid)
	if err != nil {
		return OutcomeRetry, err
	}
	removeCachedFiles(photos)
	return OutcomeSuccess, nil
}

// kickAssemblies requests an upload-pipeline nudge once the drain has
// released the store mutex: an assembly parked in waiting_for_room may
// now have the room id it needs.
func (h *RoomHandler) kickAssemblies() {
	h.env.assemblyKick.Store(true)
}

// findServerRoom scans a project snapshot for a room with the given
// client UUID.
func findServerRoom(detail *api.ProjectDetailDTO, uuid models.UUID) *api.RoomDTO {
	for pi := range detail.Properties {
		for li := range detail.Properties[pi].Locations {
			rooms := detail.Properties[pi].Locations[li].Rooms
			for ri := range rooms {
				if rooms[ri].UUID == string(uuid) {
					return &rooms[ri]
				}
			}
		}
	}
	return nil
}

// mentionsLocation reports whether an error body blames the parent
// location rather than the room itself.
func mentionsLocation(body string) bool {
	return strings.Contains(strings.ToLower(body), "location")
}
