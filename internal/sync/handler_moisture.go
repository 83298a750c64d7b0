// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// MoistureLogHandler replays moisture reading mutations. Readings are
// room-scoped and immutable in spirit; updates exist only to fix typos
// made in the field.
type MoistureLogHandler struct {
	env *Env
}

// NewMoistureLogHandler creates a moisture reading push handler.
func NewMoistureLogHandler(env *Env) *MoistureLogHandler {
	return &MoistureLogHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *MoistureLogHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate, models.OpUpdate:
		return h.upsert(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported moisture log operation %q", op.Operation)
}

func (h *MoistureLogHandler) upsert(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*MoistureLogPayload)

	ml, err := h.env.Store.GetMoistureLogByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if ml.IsDeleted {
		return OutcomeDrop, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", ml.ProjectUUID, ml.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	roomID, err := h.env.resolveWithRefresh(ctx, "rooms", ml.RoomUUID, ml.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 || roomID == 0 {
		return OutcomeSkip, nil
	}

	req := &api.MoistureLogRequest{
		UUID:         string(ml.UUID),
		ProjectID:    projectID,
		RoomID:       roomID,
		MaterialName: p.MaterialName,
		Reading:      p.Reading,
		RecordedAt:   p.RecordedAt,
	}

	if !ml.Synced() {
		idemKey := p.IdempotencyKey
		if idemKey == "" {
			idemKey = string(ml.UUID)
		}
		dto, err := h.env.API.CreateMoistureLog(ctx, req, idemKey)
		if err != nil {
			return OutcomeRetry, err
		}
		if dto.ID <= 0 {
			return OutcomeRetry, nil
		}
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("moisture_logs", ml.UUID, dto.ID, dto.UpdatedAt)
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = ml.LockUpdatedAt
	}
	req.UpdatedAt = lock

	dto, err := h.env.API.UpdateMoistureLog(ctx, ml.ServerID, req)
	switch {
	case err == nil:
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("moisture_logs", ml.UUID, 0, dto.UpdatedAt)

	case api.IsMissingOnServer(err):
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("moisture_logs", ml.UUID, 0, "")

	case api.IsConflict(err):
		local := map[string]interface{}{
			"materialName": p.MaterialName,
			"reading":      p.Reading,
			"updatedAt":    lock,
		}
		remote := map[string]interface{}{"updatedAt": ""}
		if err := h.env.recordConflict(op.EntityType, ml.LocalID, ml.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *MoistureLogHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	ml, err := h.env.Store.GetMoistureLogByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !ml.Synced() {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("moisture_logs", ml.UUID)
	}

	err = h.env.API.DeleteMoistureLog(ctx, ml.ServerID, ml.LockUpdatedAt)
	if err == nil || api.IsMissingOnServer(err) {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("moisture_logs", ml.UUID)
	}
	if api.IsConflict(err) {
		if rerr := h.env.Store.RestoreEntity("moisture_logs", ml.UUID, ""); rerr != nil {
			return OutcomeRetry, rerr
		}
		return OutcomeDrop, nil
	}
	return OutcomeRetry, err
}
