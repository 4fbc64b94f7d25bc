package app

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"secure_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Action domain.Action   `json:"action"`
	AckID  string          `json:"ack_id"`
	Data   json.RawMessage `json:"data"`
}

type fakePeer struct {
	id      string
	session domain.Session
	fail    bool

	mu     sync.Mutex
	frames []frame
}

func newFakePeer(id, userID string) *fakePeer {
	return &fakePeer{id: id, session: domain.Session{UserID: userID, Email: userID + "@example.com"}}
}

func (p *fakePeer) ID() string              { return p.id }
func (p *fakePeer) Session() domain.Session { return p.session }

func (p *fakePeer) Write(b []byte) error {
	if p.fail {
		return errors.New("broken pipe")
	}
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, f)
	return nil
}

func (p *fakePeer) received() []frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]frame, len(p.frames))
	copy(out, p.frames)
	return out
}

func TestHub_JoinBroadcastIncludesSender(t *testing.T) {
	h := NewHub()
	a, b, c := newFakePeer("a", "u1"), newFakePeer("b", "u2"), newFakePeer("c", "u3")
	h.Register(a)
	h.Register(b)
	h.Register(c)

	require.True(t, h.Join("a", "r1"))
	require.True(t, h.Join("b", "r1"))
	require.True(t, h.Join("c", "r2"))
	assert.False(t, h.Join("ghost", "r1"))

	n := h.Broadcast("r1", domain.NewMessage, map[string]string{"id": "m1"})
	assert.Equal(t, 2, n)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, c.received())
	assert.Equal(t, domain.NewMessage, a.received()[0].Action)
}

func TestHub_BroadcastExcept(t *testing.T) {
	h := NewHub()
	a, b := newFakePeer("a", "u1"), newFakePeer("b", "u2")
	h.Register(a)
	h.Register(b)
	h.Join("a", "r1")
	h.Join("b", "r1")

	n := h.BroadcastExcept("r1", "a", domain.UserTyping, nil)
	assert.Equal(t, 1, n)
	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
}

func TestHub_LeaveAndUnregister(t *testing.T) {
	h := NewHub()
	a := newFakePeer("a", "u1")
	h.Register(a)
	h.Join("a", "r1")
	h.Join("a", "r2")
	h.Join("a", "r3")

	h.Leave("a", "r3")
	h.Leave("a", "never-joined")

	rooms := h.RoomsOf("a")
	sort.Strings(rooms)
	assert.Equal(t, []string{"r1", "r2"}, rooms)

	left := h.Unregister("a")
	sort.Strings(left)
	assert.Equal(t, []string{"r1", "r2"}, left)
	assert.Empty(t, h.RoomsOf("a"))
	assert.Equal(t, 0, h.MemberCount("r1"))
	assert.Equal(t, 0, h.Broadcast("r1", domain.NewMessage, nil))
}

func TestHub_CloseRoom(t *testing.T) {
	h := NewHub()
	a, b := newFakePeer("a", "u1"), newFakePeer("b", "u2")
	h.Register(a)
	h.Register(b)
	h.Join("a", "r1")
	h.Join("b", "r1")
	h.Join("b", "r2")

	h.CloseRoom("r1")
	assert.Equal(t, 0, h.MemberCount("r1"))
	assert.Empty(t, h.RoomsOf("a"))
	assert.Equal(t, []string{"r2"}, h.RoomsOf("b"))
}

func TestHub_BrokenPeerDoesNotStopFanOut(t *testing.T) {
	h := NewHub()
	bad, good := newFakePeer("bad", "u1"), newFakePeer("good", "u2")
	bad.fail = true
	h.Register(bad)
	h.Register(good)
	h.Join("bad", "r1")
	h.Join("good", "r1")

	assert.Equal(t, 1, h.Broadcast("r1", domain.NewMessage, nil))
	assert.Len(t, good.received(), 1)
}

func TestHub_ConcurrentJoinBroadcast(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		p := newFakePeer(string(rune('A'+i)), "u")
		h.Register(p)
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Join(p.ID(), "r1")
		}()
		go func() {
			defer wg.Done()
			h.Broadcast("r1", domain.PresenceUpdate, nil)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.MemberCount("r1"))
}
