package repository

import (
	"context"
	"errors"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/pkg/database"
	"secure_chat_service/pkg/logger"

	"go.uber.org/zap"
)

const keyCachePrefix = "chat:key:"

// KeyCache read-through cache of conversation keys and participants
type KeyCache interface {
	// Get returns domain.ErrNotFound on a miss
	Get(ctx context.Context, conversationID string) (*domain.ConversationKey, error)
	Set(ctx context.Context, key *domain.ConversationKey) error
	Del(ctx context.Context, conversationID string) error
}

type redisKeyCache struct {
	repo database.RedisRepository[domain.ConversationKey]
	ttl  time.Duration
}

// NewRedisKeyCache create a KeyCache on top of the generic redis repository
func NewRedisKeyCache(repo database.RedisRepository[domain.ConversationKey], ttl time.Duration) KeyCache {
	return &redisKeyCache{repo: repo, ttl: ttl}
}

func (c *redisKeyCache) Get(ctx context.Context, conversationID string) (*domain.ConversationKey, error) {
	k, err := c.repo.Get(ctx, keyCachePrefix+conversationID)
	if errors.Is(err, database.ErrCacheMiss) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// 命中就延長 TTL, 常用的對話留在 cache
	if err := c.repo.ExtendTTL(ctx, keyCachePrefix+conversationID, c.ttl); err != nil {
		logger.Log.Warn("extend key cache ttl", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return &k, nil
}

func (c *redisKeyCache) Set(ctx context.Context, key *domain.ConversationKey) error {
	return c.repo.Set(ctx, keyCachePrefix+key.ConversationID, *key, c.ttl)
}

func (c *redisKeyCache) Del(ctx context.Context, conversationID string) error {
	return c.repo.Del(ctx, keyCachePrefix+conversationID)
}
