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

// ProjectHandler replays project mutations. Project creates run first in
// the dependency chain: everything else skips until its project has a
// server id.
type ProjectHandler struct {
	env *Env
}

// NewProjectHandler creates a project push handler.
func NewProjectHandler(env *Env) *ProjectHandler {
	return &ProjectHandler{env: env}
}

// Handle dispatches on the entry's operation kind.
func (h *ProjectHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	switch op.Operation {
	case models.OpCreate:
		return h.create(ctx, op)
	case models.OpUpdate:
		return h.update(ctx, op)
	case models.OpDelete:
		return h.delete(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported project operation %q", op.Operation)
}

func (h *ProjectHandler) create(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*ProjectPayload)

	project, err := h.env.Store.GetProjectByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if project.IsDeleted {
		return OutcomeDrop, nil
	}
	if project.Synced() {
		// Replay after a crash that lost the ack; nothing to do.
		return OutcomeSuccess, nil
	}
	if project.CompanyID == 0 {
		return OutcomeDrop, fmt.Errorf("project %s has no company", project.UUID)
	}

	// Create the address first when the project carries one.
	addressID := project.AddressID
	if addressID == 0 && p.Street != "" {
		addr, err := h.env.API.CreateAddress(ctx, &api.AddressRequest{
			Street:     p.Street,
			City:       p.City,
			Province:   p.Province,
			PostalCode: p.PostalCode,
			Country:    p.Country,
		})
		if err != nil {
			return OutcomeRetry, err
		}
		addressID = addr.ID
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(project.UUID)
	}
	dto, err := h.env.API.CreateProject(ctx, &api.ProjectCreateRequest{
		UUID:      string(project.UUID),
		Name:      p.Name,
		Alias:     p.Alias,
		CompanyID: project.CompanyID,
		AddressID: addressID,
	}, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		// Placeholder id from the backend; retry on the next drain.
		return OutcomeRetry, nil
	}

	project.AddressID = addressID
	project.MarkSynced(dto.ID, dto.UpdatedAt)
	if err := h.env.Store.UpdateProject(project); err != nil {
		return OutcomeRetry, err
	}

	// The create endpoint ignores aliases; push it as a follow-up update.
	// Best effort: a rejection here must not fail the create.
	if p.Alias != "" && dto.Alias != p.Alias {
		if _, err := h.env.API.UpdateProject(ctx, dto.ID, &api.ProjectUpdateRequest{
			Alias:     p.Alias,
			UpdatedAt: dto.UpdatedAt,
		}); err != nil {
			log.Printf("[ProjectHandler] alias follow-up update failed for %s: %v", project.UUID, err)
		}
	}

	return OutcomeSuccess, nil
}

func (h *ProjectHandler) update(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*ProjectPayload)

	project, err := h.env.Store.GetProjectByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if project.IsDeleted {
		return OutcomeDrop, nil
	}
	if !project.Synced() {
		// Create has not been acknowledged yet.
		return OutcomeSkip, nil
	}

	lock := p.LockUpdatedAt
	if lock == "" {
		lock = project.LockUpdatedAt
	}
	req := &api.ProjectUpdateRequest{Name: p.Name, Alias: p.Alias, UpdatedAt: lock}

	dto, err := h.env.API.UpdateProject(ctx, project.ServerID, req)
	switch {
	case err == nil:
		if err := h.env.Store.MarkEntitySynced("projects", project.UUID, 0, dto.UpdatedAt); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsMissingOnServer(err):
		// Gone remotely; nothing left to push.
		if err := h.env.Store.MarkEntitySynced("projects", project.UUID, 0, ""); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.env.API.GetProjectDetail(ctx, project.ServerID)
		if ferr != nil {
			return OutcomeRetry, ferr
		}
		req.UpdatedAt = fresh.UpdatedAt
		dto, rerr := h.env.API.UpdateProject(ctx, project.ServerID, req)
		if rerr == nil {
			if err := h.env.Store.MarkEntitySynced("projects", project.UUID, 0, dto.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if !api.IsConflict(rerr) {
			return OutcomeRetry, rerr
		}
		// Persistent 409: hand the decision to the user.
		local := map[string]interface{}{
			"name":      p.Name,
			"alias":     p.Alias,
			"updatedAt": lock,
		}
		remote := map[string]interface{}{
			"name":      fresh.Name,
			"alias":     fresh.Alias,
			"updatedAt": fresh.UpdatedAt,
		}
		if err := h.env.recordConflict(op.EntityType, project.LocalID, project.UUID, local, remote); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeConflictPending, nil

	default:
		return OutcomeRetry, err
	}
}

func (h *ProjectHandler) delete(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	project, err := h.env.Store.GetProjectByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if !project.Synced() {
		// Never reached the server; the local soft delete is final.
		if err := h.env.Store.MarkEntityDeleted("projects", project.UUID); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil
	}

	err = h.env.API.DeleteProject(ctx, project.ServerID, project.LockUpdatedAt)
	switch {
	case err == nil, api.IsMissingOnServer(err):
		if err := h.env.Store.MarkEntityDeleted("projects", project.UUID); err != nil {
			return OutcomeRetry, err
		}
		return OutcomeSuccess, nil

	case api.IsConflict(err):
		fresh, ferr := h.env.API.GetProjectDetail(ctx, project.ServerID)
		if ferr != nil {
			// Cannot learn the fresh lock; keep the local copy alive and
			// stop fighting the server.
			if err := h.env.Store.RestoreEntity("projects", project.UUID, ""); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		rerr := h.env.API.DeleteProject(ctx, project.ServerID, fresh.UpdatedAt)
		if rerr == nil || api.IsMissingOnServer(rerr) {
			if err := h.env.Store.MarkEntityDeleted("projects", project.UUID); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeSuccess, nil
		}
		if api.IsConflict(rerr) {
			// Remote state wins for deletes: restore the entity with the
			// fresh lock token.
			if err := h.env.Store.RestoreEntity("projects", project.UUID, fresh.UpdatedAt); err != nil {
				return OutcomeRetry, err
			}
			return OutcomeDrop, nil
		}
		return OutcomeRetry, rerr

	default:
		return OutcomeRetry, err
	}
}
