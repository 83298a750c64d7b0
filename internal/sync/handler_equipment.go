// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"
	"log"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// EquipmentHandler replays equipment mutations. The backend prunes
// equipment aggressively when rooms are rebuilt, so an update that hits
// 404 falls back to re-creating the record instead of giving up.
type EquipmentHandler struct {
	env *Env
}

// NewEquipmentHandler creates an equipment push handler.
func NewEquipmentHandler(env *Env) *EquipmentHandler {
	return &EquipmentHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *EquipmentHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate, models.OpUpdate:
		return h.upsert(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported equipment operation %q", op.Operation)
}

func (h *EquipmentHandler) upsert(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*EquipmentPayload)

	eq, err := h.env.Store.GetEquipmentByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if eq.IsDeleted {
		return OutcomeDrop, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", eq.ProjectUUID, eq.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 {
		return OutcomeSkip, nil
	}
	var roomID int64
	if eq.RoomUUID != "" {
		roomID, err = h.env.resolveWithRefresh(ctx, "rooms", eq.RoomUUID, eq.ProjectUUID)
		if err != nil {
			return OutcomeRetry, err
		}
		if roomID == 0 {
			return OutcomeSkip, nil
		}
	}

	req := &api.EquipmentRequest{
		UUID:          string(eq.UUID),
		ProjectID:     projectID,
		RoomID:        roomID,
		Name:          p.Name,
		EquipmentType: p.EquipmentType,
		Quantity:      p.Quantity,
	}

	if !eq.Synced() {
		return h.create(ctx, eq, p, req)
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = eq.LockUpdatedAt
	}
	req.UpdatedAt = lock

	dto, err := h.env.API.UpdateEquipment(ctx, eq.ServerID, req)
	switch {
	case err == nil:
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("equipment", eq.UUID, 0, dto.UpdatedAt)

	case api.IsMissingOnServer(err):
		log.Printf("[EquipmentHandler] %s missing on server, re-creating", eq.UUID)
		req.UpdatedAt = ""
		return h.create(ctx, eq, p, req)

	case api.IsConflict(err):
		local := map[string]interface{}{
			"name":          p.Name,
			"equipmentType": p.EquipmentType,
			"quantity":      p.Quantity,
			"updatedAt":     lock,
		}
		remote := map[string]interface{}{"updatedAt": ""}
		if err := h.env.recordConflict(op.EntityType, eq.LocalID, eq.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *EquipmentHandler) create(ctx context.Context, eq *models.Equipment, p *EquipmentPayload, req *api.EquipmentRequest) (Outcome, error) {
	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(eq.UUID)
	}
	dto, err := h.env.API.CreateEquipment(ctx, req, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}
	return OutcomeSuccess, h.env.Store.MarkEntitySynced("equipment", eq.UUID, dto.ID, dto.UpdatedAt)
}

func (h *EquipmentHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	eq, err := h.env.Store.GetEquipmentByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !eq.Synced() {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("equipment", eq.UUID)
	}

	err = h.env.API.DeleteEquipment(ctx, eq.ServerID, eq.LockUpdatedAt)
	if err == nil || api.IsMissingOnServer(err) {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("equipment", eq.UUID)
	}
	if api.IsConflict(err) {
		if rerr := h.env.Store.RestoreEntity("equipment", eq.UUID, ""); rerr != nil {
			return OutcomeRetry, rerr
		}
		return OutcomeDrop, nil
	}
	return OutcomeRetry, err
}
