package repository

import (
	"context"
	"testing"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"
	testtool "secure_chat_service/pkg/test_tool"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"go.mongodb.org/mongo-driver/mongo"
)

func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	logger.SetNewNop()

	ctx := context.Background()
	container, uri, err := testtool.SetupMongo(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	db, err := database.NewMongoDB(ctx, database.DSN{
		URI:   uri,
		Retry: database.Retry{Count: 5, Interval: time.Second},
	}, "chat_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })

	return db.Database
}

func newMessage(conv, from string, ts time.Time) *domain.Message {
	return &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv,
		FromUserID:     from,
		FromEmail:      from + "@example.com",
		Ciphertext:     "Zm9v",
		IV:             "MTIzNDU2Nzg5MDEy",
		Timestamp:      ts.UTC().Truncate(time.Millisecond),
		Status:         domain.StatusSent,
	}
}

func TestMongoRepositories(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()

	msgRepo := NewMongoMessageRepository(db)
	convRepo := NewMongoConversationRepository(db)
	require.NoError(t, msgRepo.EnsureIndexes(ctx))
	require.NoError(t, convRepo.EnsureIndexes(ctx))

	t.Run("history newest first with before", func(t *testing.T) {
		base := time.Now().Add(-time.Hour)
		var ids []string
		for i := 0; i < 5; i++ {
			m := newMessage("c-history", "u1", base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, msgRepo.Create(ctx, m))
			ids = append(ids, m.ID)
		}

		got, err := msgRepo.FindByConversation(ctx, "c-history", time.Time{}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, ids[4], got[0].ID)
		assert.Equal(t, ids[2], got[2].ID)

		older, err := msgRepo.FindByConversation(ctx, "c-history", got[2].Timestamp, 10)
		require.NoError(t, err)
		require.Len(t, older, 2)
		assert.Equal(t, ids[1], older[0].ID)
	})

	t.Run("status is monotonic", func(t *testing.T) {
		m := newMessage("c-status", "sender", time.Now())
		require.NoError(t, msgRepo.Create(ctx, m))

		// sender 自己的回執不算
		moved, err := msgRepo.AdvanceStatus(ctx, m.ID, domain.StatusDelivered, "sender")
		require.NoError(t, err)
		assert.False(t, moved)

		moved, err = msgRepo.AdvanceStatus(ctx, m.ID, domain.StatusDelivered, "reader")
		require.NoError(t, err)
		assert.True(t, moved)

		ids, err := msgRepo.AdvanceStatusBatch(ctx, "c-status", []string{m.ID, "unknown"}, domain.StatusRead, "reader2")
		require.NoError(t, err)
		assert.Equal(t, []string{m.ID}, ids)

		moved, err = msgRepo.AdvanceStatus(ctx, m.ID, domain.StatusDelivered, "reader")
		require.NoError(t, err)
		assert.False(t, moved)

		got, err := msgRepo.FindByID(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRead, got.Status)
	})

	t.Run("conversation lifecycle", func(t *testing.T) {
		c := &domain.Conversation{
			ID:           uuid.NewString(),
			Title:        "team",
			Participants: []string{"u1", "u2"},
			CreatedBy:    "u1",
			ChatKey:      "key",
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		require.NoError(t, convRepo.Create(ctx, c))
		require.NoError(t, msgRepo.Create(ctx, newMessage(c.ID, "u1", time.Now())))

		list, err := convRepo.FindByParticipant(ctx, "u2")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "key", list[0].ChatKey)

		n, err := msgRepo.DeleteByConversation(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, convRepo.Delete(ctx, c.ID))

		_, err = convRepo.FindByID(ctx, c.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, convRepo.Delete(ctx, c.ID), domain.ErrNotFound)
	})
}
