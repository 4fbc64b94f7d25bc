package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State connection state
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// ErrNotConnected emit while no connection is up
var ErrNotConnected = errors.New("not connected")

// Config realtime client settings
type Config struct {
	// URL server base, http(s):// or ws(s)://
	URL   string
	Token string

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	AckTimeout       time.Duration
	ReadTimeout      time.Duration

	Dialer *websocket.Dialer
}

func (c *Config) defaults() {
	if c.ReconnectInitial <= 0 {
		c.ReconnectInitial = 500 * time.Millisecond
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 90 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
}

// Handler receives the data of one server event
type Handler func(data json.RawMessage)

type frame struct {
	Action domain.Action   `json:"action"`
	AckID  string          `json:"ack_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Client websocket client with ack correlation, reconnect and room re-join
type Client struct {
	cfg Config

	mu     sync.Mutex
	conn   *websocket.Conn
	state  State
	rooms  map[string]struct{}
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[domain.Action][]Handler
	onConnect  []func()
	onState    []func(State)

	pendingMu sync.Mutex
	pending   map[string]chan domain.Ack
	seq       uint64
}

// New create a Client, nothing is dialed until Start
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:      cfg,
		state:    StateDisconnected,
		rooms:    make(map[string]struct{}),
		handlers: make(map[domain.Action][]Handler),
		pending:  make(map[string]chan domain.Ack),
	}
}

// On register a handler for a server event. Handlers run on the read loop
// and must not wait for an ack.
func (c *Client) On(action domain.Action, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[action] = append(c.handlers[action], h)
}

// OnConnect called after every (re)connect once rooms are re-joined
func (c *Client) OnConnect(fn func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

// OnStateChange called on every state transition
func (c *Client) OnStateChange(fn func(State)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onState = append(c.onState, fn)
}

// State current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected report whether a connection is up
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Start connect in the background and keep reconnecting until Close
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx)
}

// Close stop reconnecting and drop the connection
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	first := true
	for {
		if first {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}
		first = false

		conn, err := c.dialWithBackoff(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Log.Error("realtime dial gave up", zap.Error(err))
			}
			return
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)

		readDone := make(chan struct{})
		go c.readLoop(conn, readDone)
		go c.afterConnect(ctx)

		select {
		case <-readDone:
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			<-readDone
		}

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.failPending()

		if ctx.Err() != nil {
			return
		}
		logger.Log.Warn("realtime connection lost, reconnecting")
	}
}

func (c *Client) dialWithBackoff(ctx context.Context) (*websocket.Conn, error) {
	target, err := c.endpoint()
	if err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReconnectInitial
	b.MaxInterval = c.cfg.ReconnectMax
	b.MaxElapsedTime = 0 // 不限次數

	var conn *websocket.Conn
	op := func() error {
		ws, resp, err := c.cfg.Dialer.DialContext(ctx, target, nil)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(errprocess.New(errprocess.Unauthenticated, err))
			}
			return err
		}
		conn = ws
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Log.Warn("realtime dial failed", zap.Error(err), zap.Duration("retryIn", wait))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	q := u.Query()
	q.Set("auth", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// afterConnect 重新加入之前的房間, 再通知 OnConnect
func (c *Client) afterConnect(ctx context.Context) {
	for _, room := range c.joinedRooms() {
		ack, err := c.Emit(ctx, domain.JoinConversation, domain.RoomRequest{RoomID: room})
		if err != nil || !ack.OK {
			logger.Log.Warn("re-join failed", zap.String("roomID", room), zap.Error(err), zap.String("err", string(ack.Err)))
		}
	}

	c.handlersMu.RLock()
	fns := append([]func(){}, c.onConnect...)
	c.handlersMu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log.Debug("realtime read", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			logger.Log.Warn("realtime frame decode", zap.Error(err))
			continue
		}
		if f.Action == domain.AckAction {
			c.resolve(f)
			continue
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f frame) {
	c.handlersMu.RLock()
	hs := append([]Handler{}, c.handlers[f.Action]...)
	c.handlersMu.RUnlock()
	for _, h := range hs {
		h(f.Data)
	}
}

func (c *Client) resolve(f frame) {
	var ack domain.Ack
	if err := json.Unmarshal(f.Data, &ack); err != nil {
		ack = domain.Ack{Err: errprocess.InvalidPayload}
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[f.AckID]
	delete(c.pending, f.AckID)
	c.pendingMu.Unlock()
	if ok {
		ch <- ack
	}
}

// failPending 斷線時所有等待中的 ack 都視為 transport error
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- domain.Ack{OK: false, Err: errprocess.TransportFailed}
		delete(c.pending, id)
	}
}

// Emit send an action and wait for its ack. A negative ack is returned as
// the ack, not as an error. Transport problems return a transport_error.
func (c *Client) Emit(ctx context.Context, action domain.Action, data interface{}) (domain.Ack, error) {
	id := strconv.FormatUint(atomic.AddUint64(&c.seq, 1), 10)
	ch := make(chan domain.Ack, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.write(action, id, data); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return domain.Ack{}, err
	}

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case ack := <-ch:
		if ack.Err == errprocess.TransportFailed {
			return ack, errprocess.New(errprocess.TransportFailed, ErrNotConnected)
		}
		return ack, nil
	case <-timer.C:
	case <-ctx.Done():
	}

	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
	if ctx.Err() != nil {
		return domain.Ack{}, errprocess.New(errprocess.TransportFailed, ctx.Err())
	}
	return domain.Ack{}, errprocess.New(errprocess.TransportFailed, fmt.Errorf("ack timeout for %s", action))
}

// Send fire and forget, no ack id
func (c *Client) Send(action domain.Action, data interface{}) error {
	return c.write(action, "", data)
}

// Join join a room and remember it for re-join after reconnect
func (c *Client) Join(ctx context.Context, roomID string) error {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()

	ack, err := c.Emit(ctx, domain.JoinConversation, domain.RoomRequest{RoomID: roomID})
	if err != nil {
		return err
	}
	if !ack.OK {
		return errprocess.New(ack.Err, nil)
	}
	return nil
}

// Leave leave a room, it is no longer re-joined
func (c *Client) Leave(ctx context.Context, roomID string) error {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()

	ack, err := c.Emit(ctx, domain.LeaveConversation, domain.RoomRequest{RoomID: roomID})
	if err != nil {
		return err
	}
	if !ack.OK {
		return errprocess.New(ack.Err, nil)
	}
	return nil
}

func (c *Client) joinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

func (c *Client) write(action domain.Action, ackID string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errprocess.New(errprocess.InvalidPayload, err)
	}
	b, err := json.Marshal(frame{Action: action, AckID: ackID, Data: raw})
	if err != nil {
		return errprocess.New(errprocess.InvalidPayload, err)
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if conn == nil || !connected {
		return errprocess.New(errprocess.TransportFailed, ErrNotConnected)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.AckTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return errprocess.New(errprocess.TransportFailed, err)
	}
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	logger.Log.Debug("realtime state", zap.String("state", string(s)))

	c.handlersMu.RLock()
	fns := append([]func(State){}, c.onState...)
	c.handlersMu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}
