package database

import (
	"context"
	"fmt"
	"time"

	"secure_chat_service/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Retry attempts after the first failed dial and the wait between them
type Retry struct {
	Count    int
	Interval time.Duration
}

// RetrySeconds build a Retry from the yaml retry_count / retry_interval (seconds) pair
func RetrySeconds(count, intervalSec int) Retry {
	return Retry{Count: count, Interval: time.Duration(intervalSec) * time.Second}
}

// DSN connect string of a store plus how hard to try reaching it
type DSN struct {
	URI   string
	Retry Retry
}

// MongoDB connected client and the chat database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MinIOConfig object storage endpoint, bucket and retry policy
type MinIOConfig struct {
	Endpoint   string
	User       string
	Password   string
	BucketName string
	UseSSL     bool
	Retry      Retry
}

// dialWithRetry call dial up to Retry.Count+1 times, ctx cancels the wait
func dialWithRetry[T any](ctx context.Context, store string, r Retry, dial func(context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= r.Count+1; attempt++ {
		if v, err = dial(ctx); err == nil {
			return v, nil
		}
		logger.Log.Warn("dial failed, retrying...",
			zap.String("store", store),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt > r.Count {
			break
		}
		select {
		case <-ctx.Done():
			return v, fmt.Errorf("dial %s: %w", store, ctx.Err())
		case <-time.After(r.Interval):
		}
	}
	return v, fmt.Errorf("dial %s after %d attempts: %w", store, r.Count+1, err)
}
