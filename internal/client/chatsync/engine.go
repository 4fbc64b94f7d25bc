package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/internal/client/offlinequeue"
	"secure_chat_service/internal/client/transport"
	"secure_chat_service/pkg/encrypt"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// ErrClosed engine already torn down
var ErrClosed = errors.New("sync engine closed")

// HistoryAPI key and history endpoints
type HistoryAPI interface {
	FetchKey(ctx context.Context, conversationID string) (string, error)
	FetchHistory(ctx context.Context, conversationID string, limit int, before time.Time) ([]domain.Message, error)
}

// Transport realtime connection
type Transport interface {
	On(action domain.Action, h transport.Handler)
	OnConnect(fn func())
	Connected() bool
	Emit(ctx context.Context, action domain.Action, data interface{}) (domain.Ack, error)
	Send(action domain.Action, data interface{}) error
	Join(ctx context.Context, roomID string) error
}

// Queue durable offline queue
type Queue interface {
	Enqueue(ctx context.Context, conversationID string, p offlinequeue.Payload) (int64, error)
	Flush(ctx context.Context, conversationID string, send offlinequeue.SendFunc) (offlinequeue.FlushResult, error)
}

// Config engine dependencies, the session is passed in explicitly
type Config struct {
	Session        domain.Session
	ConversationID string
	API            HistoryAPI
	Transport      Transport
	Queue          Queue
	HistoryLimit   int

	// OnSynced called after every reconnect sync
	OnSynced func(offlinequeue.FlushResult, error)
	// OnChange called whenever the timeline, typing set or deletion flag changes
	OnChange func()
}

// SendResult outcome of Send. Queued means the message waits in the offline
// queue, Reason tells why.
type SendResult struct {
	ID     string
	Queued bool
	Reason errprocess.Code
}

// Engine client side sync of one conversation
type Engine struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	key     []byte
	deleted bool

	timeline *Timeline
	typing   *TypingTracker
}

// New create an Engine and subscribe it to the transport
func New(cfg Config) *Engine {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		timeline: NewTimeline(),
		typing:   NewTypingTracker(),
	}

	tr := cfg.Transport
	tr.On(domain.NewMessage, e.handleMessage)
	tr.On(domain.MessageStatusChanged, e.handleStatus)
	tr.On(domain.UserTyping, func(data json.RawMessage) { e.handleTyping(data, true) })
	tr.On(domain.UserStoppedTyping, func(data json.RawMessage) { e.handleTyping(data, false) })
	tr.On(domain.ConversationDeleted, e.handleDeleted)
	tr.OnConnect(func() {
		res, err := e.Sync(e.ctx)
		if e.cfg.OnSynced != nil && !e.closed() {
			e.cfg.OnSynced(res, err)
		}
	})
	return e
}

// Sync 每次 (重新) 連線: key -> history -> 解密 -> join -> flush
func (e *Engine) Sync(ctx context.Context) (offlinequeue.FlushResult, error) {
	var res offlinequeue.FlushResult
	convID := e.cfg.ConversationID

	encoded, err := e.cfg.API.FetchKey(ctx, convID)
	if e.closed() {
		return res, ErrClosed
	}
	if err != nil {
		return res, err
	}
	key, err := encrypt.ParseKey(encoded)
	if err != nil {
		return res, errprocess.New(errprocess.KeyUnavailable, err)
	}
	e.mu.Lock()
	e.key = key
	e.mu.Unlock()

	history, err := e.cfg.API.FetchHistory(ctx, convID, e.cfg.HistoryLimit, time.Time{})
	if e.closed() {
		return res, ErrClosed
	}
	if err != nil {
		return res, err
	}

	// server 回傳 newest first, 轉成時間順序
	display := make([]DisplayMessage, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		display = append(display, project(history[i], key))
	}
	if e.timeline.Merge(display...).Changed() {
		e.changed()
	}

	if err := e.cfg.Transport.Join(ctx, convID); err != nil {
		return res, err
	}

	res, err = e.cfg.Queue.Flush(ctx, convID, e.deliver)
	if err != nil {
		return res, err
	}
	logger.Log.Info("conversation synced",
		zap.String("conversationID", convID),
		zap.Int("history", len(history)),
		zap.Int("flushSent", res.Sent),
		zap.Int("flushFailed", res.Failed),
	)
	return res, nil
}

// Send encrypt and send, or queue when offline or rejected. A missing key
// fails closed and nothing is queued.
func (e *Engine) Send(ctx context.Context, text string, attachments []domain.Attachment) (SendResult, error) {
	if e.closed() {
		return SendResult{}, ErrClosed
	}
	key := e.currentKey()
	if key == nil {
		return SendResult{}, errprocess.New(errprocess.KeyUnavailable, nil)
	}

	ct, iv, err := encrypt.Seal(key, text)
	if err != nil {
		return SendResult{}, errprocess.New(errprocess.KeyUnavailable, err)
	}
	p := offlinequeue.Payload{
		RoomID:      e.cfg.ConversationID,
		Ciphertext:  ct,
		IV:          iv,
		Attachments: attachments,
	}

	if !e.cfg.Transport.Connected() {
		return e.enqueue(ctx, p, errprocess.TransportFailed)
	}

	id, err := e.emitSend(ctx, p)
	if err != nil {
		code, ok := errprocess.CodeOf(err)
		if !ok {
			code = errprocess.TransportFailed
		}
		return e.enqueue(ctx, p, code)
	}
	return SendResult{ID: id}, nil
}

func (e *Engine) enqueue(ctx context.Context, p offlinequeue.Payload, reason errprocess.Code) (SendResult, error) {
	if _, err := e.cfg.Queue.Enqueue(ctx, e.cfg.ConversationID, p); err != nil {
		return SendResult{}, err
	}
	logger.Log.Info("message queued", zap.String("conversationID", e.cfg.ConversationID), zap.String("reason", string(reason)))
	return SendResult{Queued: true, Reason: reason}, nil
}

// deliver queue replay path, never enqueues
func (e *Engine) deliver(ctx context.Context, p offlinequeue.Payload) error {
	_, err := e.emitSend(ctx, p)
	return err
}

func (e *Engine) emitSend(ctx context.Context, p offlinequeue.Payload) (string, error) {
	ack, err := e.cfg.Transport.Emit(ctx, domain.SendMessage, p)
	if err != nil {
		return "", err
	}
	if !ack.OK {
		code := ack.Err
		if code == "" {
			code = errprocess.SaveFailed
		}
		return "", errprocess.New(code, nil)
	}
	return ack.ID, nil
}

// MarkRead report every displayed message from others that is not read yet, in one batch
func (e *Engine) MarkRead(ctx context.Context) ([]string, error) {
	ids := e.timeline.unreadFrom(e.cfg.Session.UserID)
	if len(ids) == 0 {
		return nil, nil
	}
	ack, err := e.cfg.Transport.Emit(ctx, domain.MessageRead, domain.ReadRequest{
		MessageIDs:     ids,
		ConversationID: e.cfg.ConversationID,
	})
	if err != nil {
		return nil, err
	}
	if !ack.OK {
		return nil, errprocess.New(ack.Err, nil)
	}
	return ids, nil
}

// StartTyping tell the room we are typing
func (e *Engine) StartTyping() error {
	return e.cfg.Transport.Send(domain.Typing, domain.ConversationRef{ConversationID: e.cfg.ConversationID})
}

// StopTyping tell the room we stopped typing
func (e *Engine) StopTyping() error {
	return e.cfg.Transport.Send(domain.StopTyping, domain.ConversationRef{ConversationID: e.cfg.ConversationID})
}

// Messages current timeline
func (e *Engine) Messages() []DisplayMessage {
	return e.timeline.Messages()
}

// TypingUsers emails of others currently typing
func (e *Engine) TypingUsers() []string {
	return e.typing.Active()
}

// Deleted report whether the conversation was deleted by a participant
func (e *Engine) Deleted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.deleted
}

// Close cancel in-flight fetches, later results and events are discarded
func (e *Engine) Close() {
	e.cancel()
}

func (e *Engine) closed() bool {
	return e.ctx.Err() != nil
}

func (e *Engine) currentKey() []byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.key
}

func (e *Engine) changed() {
	if e.cfg.OnChange != nil && !e.closed() {
		e.cfg.OnChange()
	}
}

func (e *Engine) handleMessage(data json.RawMessage) {
	if e.closed() {
		return
	}
	var m domain.Message
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Log.Warn("message event decode", zap.Error(err))
		return
	}
	if m.ConversationID != e.cfg.ConversationID {
		return
	}

	merged := e.timeline.Merge(project(m, e.currentKey()))
	if !merged.Changed() {
		return
	}
	e.changed()
	if len(merged.Added) == 0 {
		return
	}

	// 身分用 id 比對, email 只用來顯示
	if m.FromUserID != e.cfg.Session.UserID {
		if err := e.cfg.Transport.Send(domain.MessageDelivered, domain.DeliveredRequest{MessageID: m.ID}); err != nil {
			logger.Log.Debug("delivered receipt not sent", zap.String("messageID", m.ID), zap.Error(err))
		}
	}
}

func (e *Engine) handleStatus(data json.RawMessage) {
	if e.closed() {
		return
	}
	var s domain.StatusChange
	if err := json.Unmarshal(data, &s); err != nil || s.ConversationID != e.cfg.ConversationID {
		return
	}
	if e.timeline.ApplyStatus(s.MessageID, s.Status) {
		e.changed()
	}
}

func (e *Engine) handleTyping(data json.RawMessage, typing bool) {
	if e.closed() {
		return
	}
	var ev domain.TypingEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ConversationID != e.cfg.ConversationID {
		return
	}
	if ev.UserID == e.cfg.Session.UserID {
		return
	}
	label := ev.Email
	if label == "" {
		label = ev.UserID
	}
	e.typing.Set(label, typing)
	e.changed()
}

func (e *Engine) handleDeleted(data json.RawMessage) {
	if e.closed() {
		return
	}
	var ref domain.ConversationRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.ConversationID != e.cfg.ConversationID {
		return
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	e.changed()
}

// project decrypt one message, failures become the sentinel for that message only
func project(m domain.Message, key []byte) DisplayMessage {
	d := DisplayMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		FromUserID:     m.FromUserID,
		FromEmail:      m.FromEmail,
		Attachments:    m.Attachments,
		Timestamp:      m.Timestamp,
		Status:         m.Status,
	}
	if !d.Status.Valid() {
		d.Status = domain.StatusSent
	}

	text, err := encrypt.Open(key, m.Ciphertext, m.IV, m.Tag)
	if err != nil {
		logger.Log.Debug("decrypt failed",
			zap.String("messageID", m.ID),
			zap.String("err", string(errprocess.DecryptFailed)),
			zap.Error(err),
		)
		d.Text = UndecryptableText
		d.Undecryptable = true
		return d
	}
	d.Text = text
	return d
}
