// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// NoteHandler replays note mutations. Notes attach to a project and
// optionally to a room or a photo; every referenced parent must have a
// server id before the note can push.
type NoteHandler struct {
	env *Env
}

// NewNoteHandler creates a note push handler.
func NewNoteHandler(env *Env) *NoteHandler {
	return &NoteHandler{env: env}
}

// Handle dispatches on the entry's operation kind. Creates and updates
// share an upsert path: a note whose create never landed is pushed as a
// create no matter which operation queued it.
func (h *NoteHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate, models.OpUpdate:
		return h.upsert(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported note operation %q", op.Operation)
}

func (h *NoteHandler) upsert(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*NotePayload)

	note, err := h.env.Store.GetNoteByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if note.IsDeleted {
		return OutcomeDrop, nil
	}

	projectID, err := h.env.resolveWithRefresh(ctx, "projects", note.ProjectUUID, note.ProjectUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if projectID == 0 {
		return OutcomeSkip, nil
	}
	var roomID, photoID int64
	if note.RoomUUID != "" {
		roomID, err = h.env.resolveWithRefresh(ctx, "rooms", note.RoomUUID, note.ProjectUUID)
		if err != nil {
			return OutcomeRetry, err
		}
		if roomID == 0 {
			return OutcomeSkip, nil
		}
	}
	if note.PhotoUUID != "" {
		photoID, err = h.env.resolveServerID("photos", note.PhotoUUID)
		if err != nil {
			return OutcomeRetry, err
		}
		if photoID == 0 {
			return OutcomeSkip, nil
		}
	}

	req := &api.NoteRequest{
		UUID:      string(note.UUID),
		ProjectID: projectID,
		RoomID:    roomID,
		PhotoID:   photoID,
		Body:      p.Body,
	}

	if !note.Synced() {
		idemKey := p.IdempotencyKey
		if idemKey == "" {
			idemKey = string(note.UUID)
		}
		dto, err := h.env.API.CreateNote(ctx, req, idemKey)
		if err != nil {
			return OutcomeRetry, err
		}
		if dto.ID <= 0 {
			return OutcomeRetry, nil
		}
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("notes", note.UUID, dto.ID, dto.UpdatedAt)
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = note.LockUpdatedAt
	}
	req.UpdatedAt = lock

	dto, err := h.env.API.UpdateNote(ctx, note.ServerID, req)
	switch {
	case err == nil:
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("notes", note.UUID, 0, dto.UpdatedAt)

	case api.IsMissingOnServer(err):
		return OutcomeSuccess, h.env.Store.MarkEntitySynced("notes", note.UUID, 0, "")

	case api.IsConflict(err):
		local := map[string]interface{}{"body": p.Body, "updatedAt": lock}
		remote := map[string]interface{}{"updatedAt": ""}
		if err := h.env.recordConflict(op.EntityType, note.LocalID, note.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *NoteHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	note, err := h.env.Store.GetNoteByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !note.Synced() {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("notes", note.UUID)
	}

	err = h.env.API.DeleteNote(ctx, note.ServerID, note.LockUpdatedAt)
	if err == nil || api.IsMissingOnServer(err) {
		return OutcomeSuccess, h.env.Store.MarkEntityDeleted("notes", note.UUID)
	}
	if api.IsConflict(err) {
		// Record deletes are not worth a restore dance; remote wins.
		if rerr := h.env.Store.RestoreEntity("notes", note.UUID, ""); rerr != nil {
			return OutcomeRetry, rerr
		}
		return OutcomeDrop, nil
	}
	return OutcomeRetry, err
}
