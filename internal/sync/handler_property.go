// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// PropertyHandler replays property mutations.
type PropertyHandler struct {
	env *Env
}

// NewPropertyHandler creates a property push handler.
func NewPropertyHandler(env *Env) *PropertyHandler {
	return &PropertyHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *PropertyHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate:
		return h.create(ctx, op)
	case models.OpUpdate:
		return h.update(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported property operation %q", op.Operation)
}

func (h *PropertyHandler) create(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*PropertyPayload)

	property, err := h.env.Store.GetPropertyByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if property.IsDeleted {
		return OutcomeDrop, nil
	}
	if property.Synced() {
		return OutcomeSuccess, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", property.ProjectUUID, property.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 {
		return OutcomeSkip, nil
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(property.UUID)
	}
	dto, err := h.env.API.CreateProperty(ctx, &api.PropertyCreateRequest{
		UUID:      string(property.UUID),
		ProjectID: projectID,
		Name:      p.Name,
	}, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}

	property.MarkSynced(dto.ID, dto.UpdatedAt)
	return OutcomeSuccess, h.env.Store.UpdateProperty(property)
}

func (h *PropertyHandler) update(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*PropertyPayload)

	property, err := h.env.Store.GetPropertyByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if property.IsDeleted {
		return OutcomeDrop, nil
	}
	if !property.Synced() {
		return OutcomeSkip, nil
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = property.LockUpdatedAt
	}
	req := &api.PropertyUpdateRequest{Name: p.Name, UpdatedAt: lock}

	dto, err := h.env.API.UpdateProperty(ctx, property.ServerID, req)
	switch {
	case err == nil:
		if err := h.env.Store.MarkEntitySynced("properties", property.UUID, 0, dto.UpdatedAt); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsMissingOnServer(err):
		if err := h.env.Store.MarkEntitySynced("properties", property.UUID, 0, ""); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.freshProperty(ctx, property)
		if ferr != nil {
			return OutcomeRetry, ferr
		}
		req.UpdatedAt = fresh.UpdatedAt
		dto, rerr := h.env.API.UpdateProperty(ctx, property.ServerID, req)
		if rerr == nil {
			if err := h.env.Store.MarkEntitySynced("properties", property.UUID, 0, dto.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if !api.IsConflict(rerr) {
			return OutcomeRetry, rerr
		}
		local := map[string]interface{}{"name": p.Name, "updatedAt": lock}
		remote := map[string]interface{}{"name": fresh.Name, "updatedAt": fresh.UpdatedAt}
		if err := h.env.recordConflict(op.EntityType, property.LocalID, property.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *PropertyHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	property, err := h.env.Store.GetPropertyByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !property.Synced() {
		if err := h.env.Store.MarkEntityDeleted("properties", property.UUID); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil
	}

	err = h.env.API.DeleteProperty(ctx, property.ServerID, property.LockUpdatedAt)
	switch {
	case err == nil, api.IsMissingOnServer(err):
		if err := h.env.Store.MarkEntityDeleted("properties", property.UUID); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.freshProperty(ctx, property)
		if ferr != nil {
			if err := h.env.Store.RestoreEntity("properties", property.UUID, ""); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		rerr := h.env.API.DeleteProperty(ctx, property.ServerID, fresh.UpdatedAt)
		if rerr == nil || api.IsMissingOnServer(rerr) {
			if err := h.env.Store.MarkEntityDeleted("properties", property.UUID); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if api.IsConflict(rerr) {
			if err := h.env.Store.RestoreEntity("properties", property.UUID, fresh.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		return OutcomeRetry, rerr

	default:
		return OutcomeRetry, err
	}
}

// freshProperty fetches the property's current remote state through the
// project snapshot; there is no single-property endpoint.
func (h *PropertyHandler) freshProperty(ctx context.Context, property *models.Property) (*api.PropertyDTO, error) {
	projectID, err := h.env.resolveServerID("projects", property.ProjectUUID)
	if err != nil {
		return nil, err
	}
	if projectID == 0 {
		return nil, fmt.Errorf("project %s has no server id", property.ProjectUUID)
	}
	detail, err := h.env.API.GetProjectDetail(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range detail.Properties {
		dto := &detail.Properties[i]
		if dto.UUID == string(property.UUID) || dto.ID == property.ServerID {
			return dto, nil
		}
	}
	return nil, fmt.Errorf("property %s missing from project snapshot", property.UUID)
}
