package app

import (
	"context"
	"strings"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/chat/repository"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const persistTimeout = 10 * time.Second

// MessageUseCase message ingest pipeline: validate, persist, broadcast
type MessageUseCase struct {
	msgRepo           repository.MessageRepository
	registry          Registry
	maxAttachmentSize int64

	now   func() time.Time
	newID func() string
}

// NewMessageUseCase create MessageUseCase
func NewMessageUseCase(msgRepo repository.MessageRepository, registry Registry, maxAttachmentSize int64) *MessageUseCase {
	return &MessageUseCase{
		msgRepo:           msgRepo,
		registry:          registry,
		maxAttachmentSize: maxAttachmentSize,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
	}
}

// Send 驗證後寫入 DB, 成功才廣播給房間內所有連線(包含自己)
func (uc *MessageUseCase) Send(ctx context.Context, session domain.Session, req domain.SendMessageRequest) (*domain.Message, error) {
	if err := req.Validate(uc.maxAttachmentSize); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uc.newID(),
		ConversationID: strings.TrimSpace(string(req.RoomID)),
		FromUserID:     session.UserID,
		FromEmail:      session.Email,
		Ciphertext:     string(req.Ciphertext),
		IV:             string(req.IV),
		Tag:            string(req.Tag),
		Attachments:    req.Attachments,
		Timestamp:      uc.now().Truncate(time.Millisecond),
		Status:         domain.StatusSent,
	}

	// 斷線不中止已接受的寫入
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := uc.msgRepo.Create(persistCtx, msg); err != nil {
		logger.Log.Error("save message failed",
			zap.String("conversationID", msg.ConversationID),
			zap.String("userID", session.UserID),
			zap.Error(err),
		)
		return nil, errprocess.New(errprocess.SaveFailed, err)
	}

	n := uc.registry.Broadcast(msg.ConversationID, domain.NewMessage, msg)
	logger.Log.Debug("message broadcast",
		zap.String("messageID", msg.ID),
		zap.String("conversationID", msg.ConversationID),
		zap.Int("receivers", n),
	)
	return msg, nil
}
