package chatsync

import (
	"sort"
	"sync"
	"time"
)

// TypingTTL an incoming typing indication expires after this long
const TypingTTL = 3 * time.Second

// TypingTracker users currently typing in the conversation
type TypingTracker struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewTypingTracker create a TypingTracker
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{until: make(map[string]time.Time), now: time.Now}
}

// Set mark a user as typing or stopped
func (t *TypingTracker) Set(label string, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if typing {
		t.until[label] = t.now().Add(TypingTTL)
		return
	}
	delete(t.until, label)
}

// Active users whose indication has not expired, sorted
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make([]string, 0, len(t.until))
	for label, exp := range t.until {
		if now.After(exp) {
			delete(t.until, label)
			continue
		}
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
