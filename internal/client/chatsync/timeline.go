package chatsync

import (
	"sort"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
)

// UndecryptableText shown in place of a message that could not be decrypted
const UndecryptableText = "<unable to decrypt>"

// DisplayMessage decrypted client side projection, never sent back to the server
type DisplayMessage struct {
	ID             string
	ConversationID string
	FromUserID     string
	FromEmail      string
	Text           string
	Undecryptable  bool
	Attachments    []domain.Attachment
	Timestamp      time.Time
	Status         domain.MessageStatus
}

// Timeline ordered, id deduplicated message list
type Timeline struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*DisplayMessage
}

// NewTimeline create an empty Timeline
func NewTimeline() *Timeline {
	return &Timeline{byID: make(map[string]*DisplayMessage)}
}

// MergeResult ids touched by a Merge
type MergeResult struct {
	// Added ids new to the timeline
	Added []string
	// Updated ids already present whose status advanced or that became decryptable
	Updated []string
}

// Changed report whether the merge changed anything visible
func (r MergeResult) Changed() bool {
	return len(r.Added)+len(r.Updated) > 0
}

// Merge add messages not already present and refresh the ones that are.
// A known message only moves its status forward, and an undecryptable copy
// is replaced by a decrypted one. Messages are kept in server timestamp order.
func (t *Timeline) Merge(msgs ...DisplayMessage) MergeResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res MergeResult
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if cur, ok := t.byID[m.ID]; ok {
			if t.refresh(cur, m) {
				res.Updated = append(res.Updated, m.ID)
			}
			continue
		}
		cp := m
		t.byID[m.ID] = &cp
		t.order = append(t.order, m.ID)
		res.Added = append(res.Added, m.ID)
	}
	if len(res.Added) > 0 {
		sort.SliceStable(t.order, func(i, j int) bool {
			return t.byID[t.order[i]].Timestamp.Before(t.byID[t.order[j]].Timestamp)
		})
	}
	return res
}

func (t *Timeline) refresh(cur *DisplayMessage, in DisplayMessage) bool {
	changed := false
	if cur.Status.CanAdvanceTo(in.Status) {
		cur.Status = in.Status
		changed = true
	}
	if cur.Undecryptable && !in.Undecryptable {
		cur.Text, cur.Undecryptable = in.Text, false
		changed = true
	}
	return changed
}

// ApplyStatus move a message forward, lower or equal ranks are ignored
func (t *Timeline) ApplyStatus(id string, status domain.MessageStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byID[id]
	if !ok || !m.Status.CanAdvanceTo(status) {
		return false
	}
	m.Status = status
	return true
}

// Messages snapshot in display order
func (t *Timeline) Messages() []DisplayMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]DisplayMessage, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.byID[id])
	}
	return out
}

// Len number of messages
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// unreadFrom ids of messages from someone else that are not read yet
func (t *Timeline) unreadFrom(self string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var ids []string
	for _, id := range t.order {
		m := t.byID[id]
		if m.FromUserID != self && m.Status.CanAdvanceTo(domain.StatusRead) {
			ids = append(ids, id)
		}
	}
	return ids
}
