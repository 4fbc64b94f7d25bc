package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 最小的 chat server: join / send_message 回 ack, send_message 再廣播
type fakeServer struct {
	*httptest.Server

	mu      sync.Mutex
	joins   []string
	conns   []*websocket.Conn
	tokens  []string
	rejectN int
}

func newFakeServer(t *testing.T) *fakeServer {
	s := &fakeServer{}
	up := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		if s.rejectN > 0 {
			s.rejectN--
			s.mu.Unlock()
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		s.tokens = append(s.tokens, r.URL.Query().Get("auth"))
		s.mu.Unlock()

		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		go s.serve(conn)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeServer) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Action {
		case domain.JoinConversation:
			var r domain.RoomRequest
			_ = json.Unmarshal(f.Data, &r)
			s.mu.Lock()
			s.joins = append(s.joins, r.RoomID)
			s.mu.Unlock()
			_ = conn.WriteJSON(domain.WSResponse{Action: domain.AckAction, AckID: f.AckID, Data: domain.AckOK("")})
		case domain.LeaveConversation:
			_ = conn.WriteJSON(domain.WSResponse{Action: domain.AckAction, AckID: f.AckID, Data: domain.AckOK("")})
		case domain.SendMessage:
			var p map[string]string
			_ = json.Unmarshal(f.Data, &p)
			if p["ciphertext"] == "" {
				_ = conn.WriteJSON(domain.WSResponse{Action: domain.AckAction, AckID: f.AckID,
					Data: domain.Ack{Err: errprocess.CiphertextOrIVMissing}})
				continue
			}
			_ = conn.WriteJSON(domain.WSResponse{Action: domain.NewMessage, Data: domain.Message{ID: "m-1", Ciphertext: p["ciphertext"]}})
			_ = conn.WriteJSON(domain.WSResponse{Action: domain.AckAction, AckID: f.AckID, Data: domain.AckOK("m-1")})
		}
	}
}

func (s *fakeServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *fakeServer) joined() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.joins...)
}

func newTestClient(t *testing.T, s *fakeServer) (*Client, chan struct{}) {
	c := New(Config{
		URL:              s.URL,
		Token:            "tk",
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		AckTimeout:       2 * time.Second,
	})
	connected := make(chan struct{}, 8)
	c.OnConnect(func() { connected <- struct{}{} })
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Close() })
	return c, connected
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout")
	}
}

func TestClient_EmitAckAndEvents(t *testing.T) {
	s := newFakeServer(t)
	c, connected := newTestClient(t, s)
	waitFor(t, connected)
	assert.Equal(t, StateConnected, c.State())

	got := make(chan domain.Message, 1)
	c.On(domain.NewMessage, func(data json.RawMessage) {
		var m domain.Message
		_ = json.Unmarshal(data, &m)
		got <- m
	})

	ack, err := c.Emit(context.Background(), domain.SendMessage, map[string]string{"roomId": "r1", "ciphertext": "Zm9v", "iv": "aXY="})
	require.NoError(t, err)
	assert.Equal(t, domain.AckOK("m-1"), ack)

	select {
	case m := <-got:
		assert.Equal(t, "Zm9v", m.Ciphertext)
	case <-time.After(2 * time.Second):
		t.Fatal("no message event")
	}

	ack, err = c.Emit(context.Background(), domain.SendMessage, map[string]string{"roomId": "r1"})
	require.NoError(t, err)
	assert.False(t, ack.OK)
	assert.Equal(t, errprocess.CiphertextOrIVMissing, ack.Err)

	s.mu.Lock()
	assert.Equal(t, "tk", s.tokens[0])
	s.mu.Unlock()
}

// 斷線後自動重連並重新加入房間
func TestClient_ReconnectRejoinsRooms(t *testing.T) {
	s := newFakeServer(t)
	c, connected := newTestClient(t, s)
	waitFor(t, connected)

	require.NoError(t, c.Join(context.Background(), "r1"))
	require.NoError(t, c.Join(context.Background(), "r2"))
	require.NoError(t, c.Leave(context.Background(), "r2"))

	s.mu.Lock()
	s.rejectN = 2
	s.mu.Unlock()
	s.dropAll()

	waitFor(t, connected)
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, []string{"r1", "r2", "r1"}, s.joined())
}

func TestClient_EmitWhileDisconnected(t *testing.T) {
	c := New(Config{URL: "http://127.0.0.1:1"})
	_, err := c.Emit(context.Background(), domain.SendMessage, nil)
	assert.True(t, errprocess.Is(err, errprocess.TransportFailed))
	assert.True(t, errprocess.Is(c.Send(domain.Typing, nil), errprocess.TransportFailed))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_CloseStopsReconnect(t *testing.T) {
	s := newFakeServer(t)
	c, connected := newTestClient(t, s)
	waitFor(t, connected)

	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Connected())
}

func TestEndpoint(t *testing.T) {
	c := New(Config{URL: "https://chat.example.com/api/", Token: "a b"})
	u, err := c.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/api/ws?auth=a+b", u)
}
