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

// PhotoHandler replays photo deletes. Photo creation never runs through
// the queue; the bytes move through the upload assembly pipeline and the
// backend materializes the photo record itself.
type PhotoHandler struct {
	env *Env
}

// NewPhotoHandler creates a photo push handler.
func NewPhotoHandler(env *Env) *PhotoHandler {
	return &PhotoHandler{env: env}
}

// Handle accepts only deletes.
func (h *PhotoHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	if op.Operation != models.OpDelete {
		return OutcomeDrop, fmt.Errorf("unsupported photo operation %q", op.Operation)
	}

	photo, err := h.env.Store.GetPhotoByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !photo.Synced() {
		// Never reached the server; it may still be sitting in an
		// assembly, which drops cancelled photos on its own.
		return h.deleteLocal(photo)
	}

	err = h.env.API.DeletePhoto(ctx, photo.ServerID, photo.LockUpdatedAt)
	switch {
	case err == nil, api.IsMissingOnServer(err):
		return h.deleteLocal(photo)

	case api.IsConflict(err):
		log.Printf("[PhotoHandler] delete conflict on %s, keeping remote copy", photo.UUID)
		if rerr := h.env.Store.RestoreEntity("photos", photo.UUID, ""); rerr != nil {
			return OutcomeRetry, rerr
		}
		return OutcomeDrop, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *PhotoHandler) deleteLocal(photo *models.Photo) (Outcome, error) {
	if err := h.env.Store.MarkEntityDeleted("photos", photo.UUID); err != nil {
		return OutcomeRetry, err
	}
	removeCachedFiles([]*models.Photo{photo})
	return OutcomeSuccess, nil
}
