// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// AtmosphericLogHandler replays atmospheric reading mutations.
type AtmosphericLogHandler struct {
	env *Env
}

// NewAtmosphericLogHandler creates an atmospheric reading push handler.
func NewAtmosphericLogHandler(env *Env) *AtmosphericLogHandler {
	return &AtmosphericLogHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *AtmosphericLogHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate, models.OpUpdate:
		return h.upsert(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported atmospheric log operation %q", op.Operation)
}

func (h *AtmosphericLogHandler) upsert(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*AtmosphericLogPayload)

	al, err := h.env.Store.GetAtmosphericLogByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if al.IsDeleted {
		return OutcomeDrop, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", al.ProjectUUID, al.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	roomID, err := h.env.resolveWithRefresh(ctx, "rooms", al.RoomUUID, al.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 || roomID == 0 {
		return OutcomeSkip, nil
	}

	req := &api.AtmosphericLogRequest{
		UUID:             string(al.UUID),
		ProjectID:        projectID,
		RoomID:           roomID,
		TemperatureC:     p.TemperatureC,
		RelativeHumidity: p.RelativeHumidity,
		GrainsPerPound:   p.GrainsPerPound,
		RecordedAt:       p.RecordedAt,
	}

	if !al.Synced() {
		idemKey := p.IdempotencyKey
		if idemKey == "" {
			idemKey = string(al.UUID)
		}
		dto, err := h.env.API.CreateAtmosphericLog(ctx, req, idemKey)
		if err != nil {
			return OutcomeRetry, err
		}
		if dto.ID <= 0 {
			return OutcomeRetry, nil
		}
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("atmospheric_logs", al.UUID, dto.ID, dto.UpdatedAt)
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = al.LockUpdatedAt
	}
	req.UpdatedAt = lock

	dto, err := h.env.API.UpdateAtmosphericLog(ctx, al.ServerID, req)
	switch {
	case err == nil:
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("atmospheric_logs", al.UUID, 0, dto.UpdatedAt)

	case api.IsMissingOnServer(err):
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("atmospheric_logs", al.UUID, 0, "")

	case api.IsConflict(err):
		local := map[string]interface{}{
			"temperatureC":     p.TemperatureC,
			"relativeHumidity": p.RelativeHumidity,
			"grainsPerPound":   p.GrainsPerPound,
			"updatedAt":        lock,
		}
		remote := map[string]interface{}{"updatedAt": ""}
		if err := h.env.recordConflict(op.EntityType, al.LocalID, al.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *AtmosphericLogHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	al, err := h.env.Store.GetAtmosphericLogByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !al.Synced() {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("atmospheric_logs", al.UUID)
	}

	err = h.env.API.DeleteAtmosphericLog(ctx, al.ServerID, al.LockUpdatedAt)
	if err == nil || api.IsMissingOnServer(err) {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("atmospheric_logs", al.UUID)
	}
	if api.IsConflict(err) {
		if rerr := h.env.Store.RestoreEntity("atmospheric_logs", al.UUID, ""); rerr != nil {
			return OutcomeRetry, rerr
		}
		return OutcomeDrop, nil
	}
	return OutcomeRetry, err
}
