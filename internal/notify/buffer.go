// Package notify provides the bounded, self-expiring log of user-visible
// status messages.
package notify

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"snipe-console/internal/domain"
	"snipe-console/internal/observability"
)

// Default buffer limits.
const (
	DefaultCapacity = 50
	DefaultTTL      = 180 * time.Second
)

// Notifier is the push side of the buffer, consumed by every handler.
type Notifier interface {
	Push(t domain.NotificationType, message string) domain.Notification
}

// Buffer keeps the most recent notifications, newest first.
// Each entry removes itself TTL after it was pushed; removal is keyed by id,
// so truncation or a manual clear never cancels the wrong timer.
type Buffer struct {
	mu       sync.Mutex
	items    []domain.Notification
	lastID   int64
	clock    clockwork.Clock
	capacity int
	ttl      time.Duration
	listener func(domain.Notification)
}

// Option configures Buffer.
type Option func(*Buffer)

// WithClock sets the clock used for ids and expiry.
func WithClock(c clockwork.Clock) Option {
	return func(b *Buffer) {
		b.clock = c
	}
}

// WithCapacity overrides the maximum number of retained entries.
func WithCapacity(n int) Option {
	return func(b *Buffer) {
		b.capacity = n
	}
}

// WithTTL overrides how long an entry stays in the buffer.
func WithTTL(d time.Duration) Option {
	return func(b *Buffer) {
		b.ttl = d
	}
}

// NewBuffer creates an empty buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{
		clock:    clockwork.NewRealClock(),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetListener registers a callback invoked after every push.
func (b *Buffer) SetListener(fn func(domain.Notification)) {
	b.mu.Lock()
	b.listener = fn
	b.mu.Unlock()
}

// Push prepends a notification, truncates to capacity and schedules its removal.
func (b *Buffer) Push(t domain.NotificationType, message string) domain.Notification {
	now := b.clock.Now().UnixMilli()

	b.mu.Lock()
	id := now
	if id <= b.lastID {
		id = b.lastID + 1
	}
	b.lastID = id

	n := domain.Notification{ID: id, Type: t, Message: message, Timestamp: now}
	b.items = append([]domain.Notification{n}, b.items...)
	if len(b.items) > b.capacity {
		b.items = b.items[:b.capacity]
	}
	listener := b.listener
	b.mu.Unlock()

	b.clock.AfterFunc(b.ttl, func() { b.Remove(id) })
	observability.RecordNotification(string(t))

	if listener != nil {
		listener(n)
	}
	return n
}

// Remove deletes the entry with the given id, if still present.
func (b *Buffer) Remove(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, n := range b.items {
		if n.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return
		}
	}
}

// Clear drops every entry. Pending expiry timers become no-ops.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

// List returns a copy of the entries, newest first.
func (b *Buffer) List() []domain.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]domain.Notification, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

var _ Notifier = (*Buffer)(nil)
