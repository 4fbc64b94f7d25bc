package handlers

import (
	"context"
	"strconv"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
)

// ConversationService conversation, key and history operations
type ConversationService interface {
	Create(ctx context.Context, session domain.Session, req domain.CreateConversationRequest) (*domain.Conversation, error)
	List(ctx context.Context, session domain.Session) ([]domain.Conversation, error)
	Get(ctx context.Context, session domain.Session, conversationID string) (*domain.Conversation, error)
	Key(ctx context.Context, session domain.Session, conversationID string) (string, error)
	History(ctx context.Context, session domain.Session, q domain.HistoryQuery) ([]domain.Message, error)
	Delete(ctx context.Context, session domain.Session, conversationID string) error
}

// AttachmentService signed upload targets
type AttachmentService interface {
	SignedUpload(ctx context.Context, session domain.Session, req domain.AttachmentUploadRequest) (*domain.AttachmentUpload, error)
}

// ChatHandler HTTP surface consumed by the client sync engine
type ChatHandler struct {
	conversations ConversationService
	attachments   AttachmentService
}

// NewChatHandler create ChatHandler
func NewChatHandler(conversations ConversationService, attachments AttachmentService) *ChatHandler {
	return &ChatHandler{conversations: conversations, attachments: attachments}
}

// CreateConversation POST /conversations
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.CreateConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, errprocess.New(errprocess.InvalidPayload, err))
	}

	conv, err := h.conversations.Create(c.UserContext(), session, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

// ListConversations GET /conversations
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.conversations.List(c.UserContext(), session)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetConversation GET /conversations/:id
func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	conv, err := h.conversations.Get(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(conv)
}

// GetConversationKey GET /conversations/:id/key
func (h *ChatHandler) GetConversationKey(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	key, err := h.conversations.Key(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"chatKey": key})
}

// DeleteConversation DELETE /conversations/:id
func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.conversations.Delete(c.UserContext(), session, c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// ListMessages GET /messages?conversationId=&limit=&before=
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}

	q := domain.HistoryQuery{ConversationID: c.Query("conversationId")}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return writeError(c, errprocess.New(errprocess.InvalidPayload, err))
		}
		q.Limit = n
	}
	if v := c.Query("before"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return writeError(c, errprocess.New(errprocess.InvalidPayload, err))
		}
		q.Before = t
	}

	msgs, err := h.conversations.History(c.UserContext(), session, q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(msgs)
}

// SignedUploadURL GET /attachments/signed-url?conversationId=&filename=&contentType=&size=
func (h *ChatHandler) SignedUploadURL(c *fiber.Ctx) error {
	session, err := sessionOf(c)
	if err != nil {
		return writeError(c, err)
	}
	req := domain.AttachmentUploadRequest{
		ConversationID: c.Query("conversationId"),
		Filename:       c.Query("filename"),
		ContentType:    c.Query("contentType"),
	}
	if v := c.Query("size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return writeError(c, errprocess.New(errprocess.InvalidPayload, err))
		}
		req.Size = n
	}

	out, err := h.attachments.SignedUpload(c.UserContext(), session, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func sessionOf(c *fiber.Ctx) (domain.Session, error) {
	id, email, ok := middlewares.MemberFromLocals(func(k string) interface{} { return c.Locals(k) })
	if !ok {
		return domain.Session{}, errprocess.New(errprocess.Unauthenticated, nil)
	}
	return domain.Session{UserID: id, Email: email}, nil
}

// writeError map a tagged error to status code and {error: code}
func writeError(c *fiber.Ctx, err error) error {
	code, ok := errprocess.CodeOf(err)
	if !ok {
		code = errprocess.StoreUnavailable
	}
	return c.Status(httpStatus(code)).JSON(fiber.Map{"error": code})
}

func httpStatus(code errprocess.Code) int {
	switch code {
	case errprocess.Unauthenticated:
		return fiber.StatusUnauthorized
	case errprocess.Forbidden:
		return fiber.StatusForbidden
	case errprocess.NotFound:
		return fiber.StatusNotFound
	case errprocess.RoomIDMissing, errprocess.CiphertextOrIVMissing, errprocess.InvalidPayload:
		return fiber.StatusBadRequest
	case errprocess.KeyUnavailable:
		return fiber.StatusConflict
	case errprocess.TransportFailed:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}
