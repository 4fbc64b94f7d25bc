package app

import (
	"context"
	"errors"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// StatusUseCase monotonic sent -> delivered -> read tracker
type StatusUseCase struct {
	msgRepo  repository.MessageRepository
	registry Registry
}

// NewStatusUseCase create StatusUseCase
func NewStatusUseCase(msgRepo repository.MessageRepository, registry Registry) *StatusUseCase {
	return &StatusUseCase{msgRepo: msgRepo, registry: registry}
}

// MarkDelivered a non-sender received the message. Unknown ids, the sender's
// own receipt and non-advancing updates are silent no-ops.
func (uc *StatusUseCase) MarkDelivered(ctx context.Context, session domain.Session, messageID string) error {
	if messageID == "" {
		return errprocess.New(errprocess.InvalidPayload, nil)
	}

	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errprocess.New(errprocess.StoreUnavailable, err)
	}
	if msg.FromUserID == session.UserID || !msg.Status.CanAdvanceTo(domain.StatusDelivered) {
		return nil
	}

	moved, err := uc.msgRepo.AdvanceStatus(ctx, messageID, domain.StatusDelivered, session.UserID)
	if err != nil {
		return errprocess.New(errprocess.SaveFailed, err)
	}
	if !moved {
		return nil
	}

	uc.registry.Broadcast(msg.ConversationID, domain.MessageStatusChanged, domain.StatusChange{
		MessageID:      messageID,
		Status:         domain.StatusDelivered,
		ConversationID: msg.ConversationID,
	})
	return nil
}

// MarkRead advance a batch of messages of one conversation to read in one pass
func (uc *StatusUseCase) MarkRead(ctx context.Context, session domain.Session, conversationID string, messageIDs []string) ([]string, error) {
	if conversationID == "" {
		return nil, errprocess.New(errprocess.RoomIDMissing, nil)
	}
	ids := dedupe(messageIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	moved, err := uc.msgRepo.AdvanceStatusBatch(ctx, conversationID, ids, domain.StatusRead, session.UserID)
	if err != nil {
		logger.Log.Error("mark read failed", zap.String("conversationID", conversationID), zap.Error(err))
		return nil, errprocess.New(errprocess.SaveFailed, err)
	}

	for _, id := range moved {
		uc.registry.Broadcast(conversationID, domain.MessageStatusChanged, domain.StatusChange{
			MessageID:      id,
			Status:         domain.StatusRead,
			ConversationID: conversationID,
		})
	}
	return moved, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
