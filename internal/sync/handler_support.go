// Package sync replays locally queued mutations against the backend.
package sync

import (
	"context"
	"fmt"

	"github.com/restohub/fieldsync/internal/api"
	"github.com/restohub/fieldsync/internal/models"
	"github.com/restohub/fieldsync/internal/store"
)

// SupportHandler replays support conversations and their messages.
// Both are create-only: support threads are never edited offline.
// A message Skips until its conversation has a server id.
type SupportHandler struct {
	env *Env
}

// NewSupportHandler creates a support push handler.
func NewSupportHandler(env *Env) *SupportHandler {
	return &SupportHandler{env: env}
}

// Handle dispatches on the entry's entity type.
func (h *SupportHandler) Handle(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	if op.Operation != models.OpCreate {
		return OutcomeDrop, fmt.Errorf("unsupported support operation %q", op.Operation)
	}
	switch op.EntityType {
	case models.EntityConversation:
		return h.createConversation(ctx, op)
	case models.EntitySupportMessage:
		return h.createMessage(ctx, op)
	}
	return OutcomeDrop, fmt.Errorf("unsupported support entity %q", op.EntityType)
}

func (h *SupportHandler) createConversation(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*ConversationPayload)

	conv, err := h.env.Store.GetConversationByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if conv.Synced() {
		return OutcomeSuccess, nil
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(conv.UUID)
	}
	dto, err := h.env.API.CreateConversation(ctx, &api.ConversationRequest{
		UUID:    string(conv.UUID),
		Subject: p.Subject,
	}, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}
	return OutcomeSuccess, h.env.Store.MarkEntitySynced("support_conversations", conv.UUID, dto.ID, dto.UpdatedAt)
}

func (h *SupportHandler) createMessage(ctx context.Context, op *models.SyncOperation) (Outcome, error) {
	payload, err := DecodePayload(op.EntityType, op.Payload)
	if err != nil {
		return OutcomeDrop, err
	}
	p := payload.(*MessagePayload)

	msg, err := h.env.Store.GetMessageByUUID(op.EntityUUID)
	if store.IsNotFound(err) {
		return OutcomeDrop, nil
	}
	if err != nil {
		return OutcomeRetry, err
	}
	if msg.Synced() {
		return OutcomeSuccess, nil
	}

	conversationID, err := h.env.resolveServerID("support_conversations", msg.ConversationUUID)
	if err != nil {
		return OutcomeRetry, err
	}
	if conversationID == 0 {
		return OutcomeSkip, nil
	}

	idemKey := p.IdempotencyKey
	if idemKey == "" {
		idemKey = string(msg.UUID)
	}
	dto, err := h.env.API.CreateMessage(ctx, &api.MessageRequest{
		UUID:           string(msg.UUID),
		ConversationID: conversationID,
		Body:           p.Body,
	}, idemKey)
	if err != nil {
		return OutcomeRetry, err
	}
	if dto.ID <= 0 {
		return OutcomeRetry, nil
	}
	return OutcomeSuccess, h.env.Store.MarkEntitySynced("support_messages", msg.UUID, dto.ID, dto.UpdatedAt)
}
