package service

import (
	"sync"

	"github.com/spec-kit/courier-portal/internal/session"
)

// Inbox is a bounded FIFO of notifications. When full the oldest entry is
// dropped.
type Inbox struct {
	mu    sync.Mutex
	size  int
	items []session.Notification
}

// NewInbox returns an inbox holding at most size notifications.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1
	}
	return &Inbox{size: size}
}

// Push appends note. Repeating the most recent message is a no-op so a
// burst of identical failures shows a single toast.
func (b *Inbox) Push(note session.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.items); n > 0 && b.items[n-1] == note {
		return
	}
	if len(b.items) == b.size {
		b.items = b.items[1:]
	}
	b.items = append(b.items, note)
}

// Drain empties the inbox.
func (b *Inbox) Drain() []session.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Len reports the number of pending notifications.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
