package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"secure_chat_service/internal/chat/domain"
	memberdomain "secure_chat_service/internal/member/domain"
	"secure_chat_service/pkg/encrypt"
	errprocess "secure_chat_service/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type conversationMocks struct {
	conv   *MockConversationRepository
	msg    *MockMessageRepository
	member *MockMemberRepository
	cache  *MockKeyCache
	reg    *MockRegistry
}

func newTestConversationUseCase() (*ConversationUseCase, conversationMocks) {
	m := conversationMocks{
		conv:   new(MockConversationRepository),
		msg:    new(MockMessageRepository),
		member: new(MockMemberRepository),
		cache:  new(MockKeyCache),
		reg:    new(MockRegistry),
	}
	uc := NewConversationUseCase(m.conv, m.msg, m.member, m.cache, m.reg, 50, 200)
	return uc, m
}

func testConversation(key string) *domain.Conversation {
	return &domain.Conversation{
		ID:           "r1",
		Title:        "team",
		Participants: []string{alice.UserID, bob.UserID},
		CreatedBy:    alice.UserID,
		ChatKey:      key,
	}
}

// 測試建立對話: 建立者自動加入, email 重複只算一次
func TestConversationUseCase_Create(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	uc.newKey = func() (string, error) { return "a2V5", nil }

	emails := []string{"bob@example.com", "BOB@example.com", "nobody@example.com"}
	m.member.On("FindByEmails", ctx, emails).Return([]memberdomain.Member{
		{MemberID: bob.UserID, Email: "bob@example.com"},
		{MemberID: bob.UserID, Email: "bob@example.com"},
	}, nil)
	m.conv.On("Create", ctx, mock.MatchedBy(func(c *domain.Conversation) bool {
		return c.ID != "" && c.ChatKey == "a2V5" && c.CreatedBy == alice.UserID
	})).Return(nil)

	conv, err := uc.Create(ctx, alice, domain.CreateConversationRequest{Title: "  team ", ParticipantEmails: emails})

	require.NoError(t, err)
	assert.Equal(t, "team", conv.Title)
	assert.Equal(t, []string{bob.UserID, alice.UserID}, conv.Participants)
	m.conv.AssertExpectations(t)
}

func TestConversationUseCase_Create_Errors(t *testing.T) {
	ctx := context.Background()

	uc, m := newTestConversationUseCase()
	m.member.On("FindByEmails", ctx, mock.Anything).Return(nil, errors.New("pg down"))
	_, err := uc.Create(ctx, alice, domain.CreateConversationRequest{ParticipantEmails: []string{"x@example.com"}})
	assert.True(t, errprocess.Is(err, errprocess.StoreUnavailable))

	uc, m = newTestConversationUseCase()
	m.member.On("FindByEmails", ctx, mock.Anything).Return([]memberdomain.Member{}, nil)
	m.conv.On("Create", ctx, mock.Anything).Return(errors.New("duplicate"))
	_, err = uc.Create(ctx, alice, domain.CreateConversationRequest{})
	assert.True(t, errprocess.Is(err, errprocess.SaveFailed))
}

func TestConversationUseCase_Get_Authorization(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
	m.conv.On("FindByID", ctx, "gone").Return(nil, domain.ErrNotFound)

	conv, err := uc.Get(ctx, bob, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", conv.ID)

	_, err = uc.Get(ctx, domain.Session{UserID: "u-eve"}, "r1")
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))

	_, err = uc.Get(ctx, bob, "gone")
	assert.True(t, errprocess.Is(err, errprocess.NotFound))

	_, err = uc.Get(ctx, bob, "")
	assert.True(t, errprocess.Is(err, errprocess.RoomIDMissing))
}

// 測試 key: cache miss 時讀 DB 並回寫 cache
func TestConversationUseCase_Key_CacheMiss(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	key, err := encrypt.GenerateKey()
	require.NoError(t, err)

	m.cache.On("Get", ctx, "r1").Return(nil, domain.ErrNotFound)
	m.conv.On("FindByID", ctx, "r1").Return(testConversation(key), nil)
	m.cache.On("Set", ctx, &domain.ConversationKey{
		ConversationID: "r1",
		ChatKey:        key,
		Participants:   []string{alice.UserID, bob.UserID},
	}).Return(nil)

	got, err := uc.Key(ctx, bob, "r1")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	m.cache.AssertExpectations(t)
}

func TestConversationUseCase_Key_CacheHit(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.cache.On("Get", ctx, "r1").Return(&domain.ConversationKey{
		ConversationID: "r1",
		ChatKey:        "cached",
		Participants:   []string{alice.UserID},
	}, nil)

	got, err := uc.Key(ctx, alice, "r1")
	require.NoError(t, err)
	assert.Equal(t, "cached", got)

	_, err = uc.Key(ctx, bob, "r1")
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	m.conv.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// 測試 DB 內的 key 無效: key_unavailable
func TestConversationUseCase_Key_Invalid(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.cache.On("Get", ctx, "r1").Return(nil, errors.New("redis down"))
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("not-a-key"), nil)

	_, err := uc.Key(ctx, alice, "r1")
	assert.True(t, errprocess.Is(err, errprocess.KeyUnavailable))
	m.cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestConversationUseCase_History(t *testing.T) {
	ctx := context.Background()
	before := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		limit int
		want  int
	}{
		{"default", 0, 50},
		{"custom", 10, 10},
		{"capped", 5000, 200},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			uc, m := newTestConversationUseCase()
			m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
			m.msg.On("FindByConversation", ctx, "r1", before, c.want).Return([]domain.Message{{ID: "m2"}, {ID: "m1"}}, nil)

			msgs, err := uc.History(ctx, bob, domain.HistoryQuery{ConversationID: "r1", Limit: c.limit, Before: before})
			require.NoError(t, err)
			assert.Len(t, msgs, 2)
			m.msg.AssertExpectations(t)
		})
	}
}

func TestConversationUseCase_History_Forbidden(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)

	_, err := uc.History(ctx, domain.Session{UserID: "u-eve"}, domain.HistoryQuery{ConversationID: "r1"})
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	m.msg.AssertNotCalled(t, "FindByConversation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// 測試刪除: 先刪對話, 通知並關閉房間, 最後才清訊息
func TestConversationUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()

	var order []string
	step := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { order = append(order, name) }
	}
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
	m.conv.On("Delete", ctx, "r1").Run(step("conversation")).Return(nil)
	m.cache.On("Del", ctx, "r1").Return(errors.New("redis down"))
	m.reg.On("Broadcast", "r1", domain.ConversationDeleted, domain.ConversationRef{ConversationID: "r1"}).Run(step("broadcast")).Return(2)
	m.reg.On("CloseRoom", "r1").Run(step("close")).Return()
	m.msg.On("DeleteByConversation", ctx, "r1").Run(step("messages")).Return(int64(3), nil)

	require.NoError(t, uc.Delete(ctx, alice, "r1"))

	assert.Equal(t, []string{"conversation", "broadcast", "close", "messages"}, order)
	m.msg.AssertExpectations(t)
	m.conv.AssertExpectations(t)
	m.reg.AssertExpectations(t)
}

func TestConversationUseCase_Delete_SweepFails(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
	m.conv.On("Delete", ctx, "r1").Return(nil)
	m.cache.On("Del", ctx, "r1").Return(nil)
	m.reg.On("Broadcast", "r1", domain.ConversationDeleted, mock.Anything).Return(0)
	m.reg.On("CloseRoom", "r1").Return()
	m.msg.On("DeleteByConversation", ctx, "r1").Return(int64(0), errors.New("mongo down"))

	err := uc.Delete(ctx, alice, "r1")
	assert.True(t, errprocess.Is(err, errprocess.SaveFailed))
}

func TestConversationUseCase_Delete_Forbidden(t *testing.T) {
	ctx := context.Background()
	uc, m := newTestConversationUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)

	err := uc.Delete(ctx, domain.Session{UserID: "u-eve"}, "r1")
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	m.msg.AssertNotCalled(t, "DeleteByConversation", mock.Anything, mock.Anything)
	m.reg.AssertNotCalled(t, "CloseRoom", mock.Anything)
}
