package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	memberrepo "secure_chat_service/internal/member/repository"
	"secure_chat_service/pkg"
	"secure_chat_service/pkg/encrypt"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationUseCase conversation lifecycle, key distribution and history
type ConversationUseCase struct {
	convRepo   repository.ConversationRepository
	msgRepo    repository.MessageRepository
	memberRepo memberrepo.MemberRepository
	keyCache   repository.KeyCache
	registry   Registry

	defaultLimit int
	maxLimit     int

	now    func() time.Time
	newKey func() (string, error)
}

// NewConversationUseCase create ConversationUseCase
func NewConversationUseCase(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	memberRepo memberrepo.MemberRepository,
	keyCache repository.KeyCache,
	registry Registry,
	defaultLimit, maxLimit int,
) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo:     convRepo,
		msgRepo:      msgRepo,
		memberRepo:   memberRepo,
		keyCache:     keyCache,
		registry:     registry,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		now:          func() time.Time { return time.Now().UTC() },
		newKey:       encrypt.GenerateKey,
	}
}

// Create 建立對話, 建立者一定是成員, key 由 server 產生
func (uc *ConversationUseCase) Create(ctx context.Context, session domain.Session, req domain.CreateConversationRequest) (*domain.Conversation, error) {
	members, err := uc.memberRepo.FindByEmails(ctx, req.ParticipantEmails)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}

	participants := []string{}
	for _, m := range members {
		participants = pkg.AppendUnique(participants, m.MemberID)
	}
	participants = pkg.AppendUnique(participants, session.UserID)

	key, err := uc.newKey()
	if err != nil {
		return nil, errprocess.New(errprocess.KeyUnavailable, err)
	}

	now := uc.now()
	conv := &domain.Conversation{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(req.Title),
		Participants: participants,
		CreatedBy:    session.UserID,
		ChatKey:      key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uc.convRepo.Create(ctx, conv); err != nil {
		return nil, errprocess.New(errprocess.SaveFailed, err)
	}

	logger.Log.Info("conversation created",
		zap.String("conversationID", conv.ID),
		zap.String("createdBy", session.UserID),
		zap.Int("participants", len(participants)),
	)
	return conv, nil
}

// List conversations the user participates in
func (uc *ConversationUseCase) List(ctx context.Context, session domain.Session) ([]domain.Conversation, error) {
	list, err := uc.convRepo.FindByParticipant(ctx, session.UserID)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	return list, nil
}

// Get participant-only read of a conversation
func (uc *ConversationUseCase) Get(ctx context.Context, session domain.Session, conversationID string) (*domain.Conversation, error) {
	return uc.authorize(ctx, session, conversationID)
}

// Key participant-only key distribution, read through the redis cache
func (uc *ConversationUseCase) Key(ctx context.Context, session domain.Session, conversationID string) (string, error) {
	cached, err := uc.keyCache.Get(ctx, conversationID)
	switch {
	case err == nil:
		if !cached.IsParticipant(session.UserID) {
			return "", errprocess.New(errprocess.Forbidden, nil)
		}
		if cached.ChatKey != "" {
			return cached.ChatKey, nil
		}
	case !errors.Is(err, domain.ErrNotFound):
		logger.Log.Warn("key cache unavailable", zap.String("conversationID", conversationID), zap.Error(err))
	}

	conv, err := uc.authorize(ctx, session, conversationID)
	if err != nil {
		return "", err
	}
	if _, err := encrypt.ParseKey(conv.ChatKey); err != nil {
		return "", errprocess.New(errprocess.KeyUnavailable, err)
	}

	if err := uc.keyCache.Set(ctx, &domain.ConversationKey{
		ConversationID: conv.ID,
		ChatKey:        conv.ChatKey,
		Participants:   conv.Participants,
	}); err != nil {
		logger.Log.Warn("key cache set failed", zap.String("conversationID", conv.ID), zap.Error(err))
	}
	return conv.ChatKey, nil
}

// History newest first as stored, the client reverses to chronological order
func (uc *ConversationUseCase) History(ctx context.Context, session domain.Session, q domain.HistoryQuery) ([]domain.Message, error) {
	if q.ConversationID == "" {
		return nil, errprocess.New(errprocess.RoomIDMissing, nil)
	}
	if _, err := uc.authorize(ctx, session, q.ConversationID); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = uc.defaultLimit
	}
	if limit > uc.maxLimit {
		limit = uc.maxLimit
	}

	msgs, err := uc.msgRepo.FindByConversation(ctx, q.ConversationID, q.Before, limit)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	return msgs, nil
}

// Delete remove the conversation, close its room, then sweep its messages.
// The sweep runs after the room is closed so a send accepted before the
// close does not leave messages behind.
func (uc *ConversationUseCase) Delete(ctx context.Context, session domain.Session, conversationID string) error {
	if _, err := uc.authorize(ctx, session, conversationID); err != nil {
		return err
	}

	if err := uc.convRepo.Delete(ctx, conversationID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return errprocess.New(errprocess.SaveFailed, err)
	}
	if err := uc.keyCache.Del(ctx, conversationID); err != nil {
		logger.Log.Warn("key cache evict failed", zap.String("conversationID", conversationID), zap.Error(err))
	}

	uc.registry.Broadcast(conversationID, domain.ConversationDeleted, domain.ConversationRef{ConversationID: conversationID})
	uc.registry.CloseRoom(conversationID)

	n, err := uc.msgRepo.DeleteByConversation(ctx, conversationID)
	if err != nil {
		return errprocess.New(errprocess.SaveFailed, err)
	}

	logger.Log.Info("conversation deleted",
		zap.String("conversationID", conversationID),
		zap.String("userID", session.UserID),
		zap.Int64("messages", n),
	)
	return nil
}

func (uc *ConversationUseCase) authorize(ctx context.Context, session domain.Session, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return nil, errprocess.New(errprocess.RoomIDMissing, nil)
	}
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errprocess.New(errprocess.NotFound, err)
	}
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	if !conv.IsParticipant(session.UserID) {
		return nil, errprocess.New(errprocess.Forbidden, nil)
	}
	return conv, nil
}
