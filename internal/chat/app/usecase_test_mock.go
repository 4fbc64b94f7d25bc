package app

import (
	"context"
	"time"

	"secure_chat_service/internal/chat/domain"
	memberdomain "secure_chat_service/internal/member/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Create moke create message
func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID moke find message
func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByConversation moke history
func (m *MockMessageRepository) FindByConversation(ctx context.Context, conversationID string, before time.Time, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID, before, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// AdvanceStatus moke status update
func (m *MockMessageRepository) AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus, excludeSender string) (bool, error) {
	args := m.Called(ctx, id, status, excludeSender)
	return args.Bool(0), args.Error(1)
}

// AdvanceStatusBatch moke batch status update
func (m *MockMessageRepository) AdvanceStatusBatch(ctx context.Context, conversationID string, ids []string, status domain.MessageStatus, excludeSender string) ([]string, error) {
	args := m.Called(ctx, conversationID, ids, status, excludeSender)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// DeleteByConversation moke cascade delete
func (m *MockMessageRepository) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

// EnsureIndexes moke index creation
func (m *MockMessageRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// Create moke create conversation
func (m *MockConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

// FindByID moke find conversation
func (m *MockConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByParticipant moke list conversation
func (m *MockConversationRepository) FindByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete moke delete conversation
func (m *MockConversationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// EnsureIndexes moke index creation
func (m *MockConversationRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockMemberRepository Mock MemberRepository
type MockMemberRepository struct {
	mock.Mock
}

// FindByEmails moke resolve emails
func (m *MockMemberRepository) FindByEmails(ctx context.Context, emails []string) ([]memberdomain.Member, error) {
	args := m.Called(ctx, emails)
	if args.Get(0) != nil {
		return args.Get(0).([]memberdomain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockKeyCache Mock KeyCache
type MockKeyCache struct {
	mock.Mock
}

// Get moke cache get
func (m *MockKeyCache) Get(ctx context.Context, conversationID string) (*domain.ConversationKey, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ConversationKey), args.Error(1)
	}
	return nil, args.Error(1)
}

// Set moke cache set
func (m *MockKeyCache) Set(ctx context.Context, key *domain.ConversationKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Del moke cache evict
func (m *MockKeyCache) Del(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

// MockRegistry Mock Registry
type MockRegistry struct {
	mock.Mock
}

// Broadcast moke broadcast
func (m *MockRegistry) Broadcast(roomID string, action domain.Action, data interface{}) int {
	args := m.Called(roomID, action, data)
	return args.Int(0)
}

// BroadcastExcept moke broadcast without one connection
func (m *MockRegistry) BroadcastExcept(roomID, exceptConnID string, action domain.Action, data interface{}) int {
	args := m.Called(roomID, exceptConnID, action, data)
	return args.Int(0)
}

// RoomsOf moke joined rooms
func (m *MockRegistry) RoomsOf(connID string) []string {
	args := m.Called(connID)
	if args.Get(0) != nil {
		return args.Get(0).([]string)
	}
	return nil
}

// CloseRoom moke close room
func (m *MockRegistry) CloseRoom(roomID string) {
	m.Called(roomID)
}

// MockObjectStorage Mock ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

// PresignPutURL moke presign upload
func (m *MockObjectStorage) PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// PresignGetURL moke presign download
func (m *MockObjectStorage) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}
