package offlinequeue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxRetries attempts before an entry is dropped
const DefaultMaxRetries = 3

// ErrEntryNotFound no entry with that id
var ErrEntryNotFound = errors.New("queue entry not found")

// Payload outgoing message, json matches the send_message data
type Payload struct {
	RoomID      string              `json:"roomId"`
	Ciphertext  string              `json:"ciphertext"`
	IV          string              `json:"iv"`
	Tag         string              `json:"tag,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
}

// Entry one queued message
type Entry struct {
	ID             int64
	ConversationID string
	Payload        Payload
	EnqueuedAt     time.Time
	Retries        int
}

// FlushResult aggregate outcome of one flush
type FlushResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// SendFunc deliver one payload, nil means the server acknowledged it
type SendFunc func(ctx context.Context, p Payload) error

// Queue durable offline queue
type Queue struct {
	db         *DB
	maxRetries int
	flights    singleflight.Group
	now        func() time.Time
}

// New wrap a migrated DB, maxRetries <= 0 uses DefaultMaxRetries
func New(db *DB, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{db: db, maxRetries: maxRetries, now: time.Now}
}

// Enqueue store a payload for later delivery
func (q *Queue) Enqueue(ctx context.Context, conversationID string, p Payload) (int64, error) {
	if conversationID == "" {
		return 0, errprocess.New(errprocess.RoomIDMissing, nil)
	}
	if p.RoomID == "" {
		p.RoomID = conversationID
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, errprocess.New(errprocess.InvalidPayload, err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO offline_queue (conversation_id, payload, enqueued_at, retries)
		VALUES (?, ?, ?, 0)`,
		conversationID, string(raw), q.now().UnixNano())
	if err != nil {
		return 0, errprocess.New(errprocess.SaveFailed, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errprocess.New(errprocess.SaveFailed, err)
	}

	logger.Log.Debug("offline enqueue", zap.String("conversationID", conversationID), zap.Int64("entryID", id))
	return id, nil
}

// ListForConversation oldest enqueued first
func (q *Queue) ListForConversation(ctx context.Context, conversationID string) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, conversation_id, payload, enqueued_at, retries
		FROM offline_queue WHERE conversation_id = ?
		ORDER BY enqueued_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			payload string
			at      int64
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &payload, &at, &e.Retries); err != nil {
			return nil, errprocess.New(errprocess.StoreUnavailable, err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, errprocess.New(errprocess.InvalidPayload, fmt.Errorf("entry %d: %w", e.ID, err))
		}
		e.EnqueuedAt = time.Unix(0, at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	return entries, nil
}

// Remove delete an entry, removing an unknown id is not an error
func (q *Queue) Remove(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id); err != nil {
		return errprocess.New(errprocess.SaveFailed, err)
	}
	return nil
}

// IncrementRetry bump the retry counter by one
func (q *Queue) IncrementRetry(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `UPDATE offline_queue SET retries = retries + 1 WHERE id = ?`, id)
	if err != nil {
		return errprocess.New(errprocess.SaveFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errprocess.New(errprocess.NotFound, ErrEntryNotFound)
	}
	return nil
}

// Count entries queued for a conversation, empty id counts all
func (q *Queue) Count(ctx context.Context, conversationID string) (int, error) {
	var (
		n   int
		row *sql.Row
	)
	if conversationID == "" {
		row = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue`)
	} else {
		row = q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_queue WHERE conversation_id = ?`, conversationID)
	}
	if err := row.Scan(&n); err != nil {
		return 0, errprocess.New(errprocess.StoreUnavailable, err)
	}
	return n, nil
}

// Flush replay queued entries oldest first. Concurrent calls for the same
// conversation share one execution and its result.
func (q *Queue) Flush(ctx context.Context, conversationID string, send SendFunc) (FlushResult, error) {
	v, err, shared := q.flights.Do(conversationID, func() (interface{}, error) {
		return q.flush(ctx, conversationID, send)
	})
	if shared {
		logger.Log.Debug("flush joined in-flight run", zap.String("conversationID", conversationID))
	}
	if err != nil {
		return FlushResult{}, err
	}
	return v.(FlushResult), nil
}

func (q *Queue) flush(ctx context.Context, conversationID string, send SendFunc) (FlushResult, error) {
	var res FlushResult

	entries, err := q.ListForConversation(ctx, conversationID)
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, errprocess.New(errprocess.TransportFailed, err)
		}

		// 超過重試上限: 直接丟棄, 不再送
		if e.Retries >= q.maxRetries {
			if err := q.Remove(ctx, e.ID); err != nil {
				return res, err
			}
			res.Failed++
			logger.Log.Warn("offline entry dropped",
				zap.String("conversationID", conversationID),
				zap.Int64("entryID", e.ID),
				zap.Int("retries", e.Retries),
				zap.String("err", string(errprocess.RetryExhausted)),
			)
			continue
		}

		if err := send(ctx, e.Payload); err != nil {
			if incErr := q.IncrementRetry(ctx, e.ID); incErr != nil {
				return res, incErr
			}
			res.Failed++
			logger.Log.Warn("offline resend failed",
				zap.String("conversationID", conversationID),
				zap.Int64("entryID", e.ID),
				zap.Int("retries", e.Retries+1),
				zap.Error(err),
			)
			continue
		}

		if err := q.Remove(ctx, e.ID); err != nil {
			return res, err
		}
		res.Sent++
	}

	logger.Log.Info("offline flush",
		zap.String("conversationID", conversationID),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
