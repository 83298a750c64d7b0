// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// LocationHandler replays location mutations. Deleting a location
// cascades to its rooms and their photos, locally and remotely.
type LocationHandler struct {
	env *Env
}

// NewLocationHandler creates a location push handler.
func NewLocationHandler(env *Env) *LocationHandler {
	return &LocationHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *LocationHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate:
		return h.create(ctx, op)
	case models.OpUpdate:
		return h.update(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported location operation %q", op.Operation)
}

func (h *LocationHandler) create(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*LocationPayload)

	location, err := h.env.Store.GetLocationByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if location.IsDeleted {
		return OutcomeDrop, nil
	}
	if location.Synced() {
		return OutcomeSuccess, nil
	}

	// A location queued before its property assignment falls back to the
	// project's current property.
	propertyUUID := location.PropertyUUID
	if propertyUUID == "" {
		prop, perr := h.env.Store.FirstPropertyForProject(location.ProjectUUID)
		if perr != nil && !store.IsNotFound(perr) {
			return OutcomeRetry, perr
		}
		if prop != nil {
			propertyUUID = prop.UUID
			location.PropertyUUID = prop.UUID
		}
	}
	if propertyUUID == "" {
		return OutcomeSkip, nil
	}

	propertyID, err := h.env.resolveWithRefresh(ctx, "properties", propertyUUID, location.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if propertyID == 0 {
		return OutcomeSkip, nil
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(location.UUID)
	}
	dto, err := h.env.API.CreateLocation(ctx, &api.LocationCreateRequest{
		UUID:         string(location.UUID),
		PropertyID:   propertyID,
		Name:         p.Name,
		IsSingleUnit: p.IsSingleUnit,
	}, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}

	location.MarkSynced(dto.ID, dto.UpdatedAt)
	return OutcomeSuccess, h.env.Store.UpdateLocation(location)
}

func (h *LocationHandler) update(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*LocationPayload)

	location, err := h.env.Store.GetLocationByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if location.IsDeleted {
		return OutcomeDrop, nil
	}
	if !location.Synced() {
		return OutcomeSkip, nil
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = location.LockUpdatedAt
	}
	req := &api.LocationUpdateRequest{Name: p.Name, UpdatedAt: lock}

	dto, err := h.env.API.UpdateLocation(ctx, location.ServerID, req)
	switch {
	case err == nil:
		if err := h.env.Store.MarkEntitySynced("locations", location.UUID, 0, dto.UpdatedAt); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsMissingOnServer(err):
		if err := h.env.Store.MarkEntitySynced("locations", location.UUID, 0, ""); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.freshLocation(ctx, location)
		if ferr != nil {
			return OutcomeRetry, ferr
		}
		req.UpdatedAt = fresh.UpdatedAt
		dto, rerr := h.env.API.UpdateLocation(ctx, location.ServerID, req)
		if rerr == nil {
			if err := h.env.Store.MarkEntitySynced("locations", location.UUID, 0, dto.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if !api.IsConflict(rerr) {
			return OutcomeRetry, rerr
		}
		local := map[string]interface{}{"name": p.Name, "updatedAt": lock}
		remote := map[string]interface{}{"name": fresh.Name, "updatedAt": fresh.UpdatedAt}
		if err := h.env.recordConflict(op.EntityType, location.LocalID, location.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *LocationHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	location, err := h.env.Store.GetLocationByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !location.Synced() {
		// Never pushed; cascade locally and be done.
		return h.cascade(location.UUID)
	}

	err = h.env.API.DeleteLocation(ctx, location.ServerID, location.LockUpdatedAt)
	switch {
	case err == nil, api.IsMissingOnServer(err):
		return h.cascade(location.UUID)

	case api.IsConflict(err):
		fresh, ferr := h.freshLocation(ctx, location)
		if ferr != nil {
			if err := h.env.Store.RestoreEntity("locations", location.UUID, ""); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		rerr := h.env.API.DeleteLocation(ctx, location.ServerID, fresh.UpdatedAt)
		if rerr == nil || api.IsMissingOnServer(rerr) {
			return h.cascade(location.UUID)
		}
		if api.IsConflict(rerr) {
			if err := h.env.Store.RestoreEntity("locations", location.UUID, fresh.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		return OutcomeRetry, rerr

	default:
		return OutcomeRetry, err
	}
}

// cascade soft-deletes the location subtree and removes cached photo
// files from disk.
func (h *LocationHandler) cascade(uuid models.UUID) (Outcome, error) {
	photos, err := h.env.Store.CascadeDeleteLocation(uuid)
	if err != nil {
		return OutcomeRetry, err
	}
	removeCachedFiles(photos)
	return OutcomeSuccess, nil
}

// freshLocation fetches the location's current remote state through its
// property listing.
func (h *LocationHandler) freshLocation(ctx context.Context, location *models.Location) (*api.LocationDTO, error) {
	propertyID, err := h.env.resolveServerID("properties", location.PropertyUUID)
	if err != nil {
		return nil, err
	}
	if propertyID == 0 {
		return nil, fmt.Errorf("property %s has no server id", location.PropertyUUID)
	}
	dtos, err := h.env.API.GetPropertyLocations(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	for i := range dtos {
		if dtos[i].UUID == string(location.UUID) || dtos[i].ID == location.ServerID {
			return &dtos[i], nil
		}
	}
	return nil, fmt.Errorf("location %s missing from property listing", location.UUID)
}

// removeCachedFiles best-effort deletes photo cache files freed by a
// cascade.
func removeCachedFiles(photos []*models.Photo) {
	for _, p := range photos {
		for _, path := range []string{p.CachedOriginalPath, p.CachedThumbnailPath} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("[LocationHandler] failed to remove cached file %s: %v", path, err)
			}
		}
	}
}
