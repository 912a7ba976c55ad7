package notify

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipe-console/internal/domain"
)

func TestBuffer_PushNewestFirst(t *testing.T) {
	b := NewBuffer(WithClock(clockwork.NewFakeClock()))

	b.Push(domain.NotifyInfo, "first")
	b.Push(domain.NotifyError, "second")

	items := b.List()
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Message)
	assert.Equal(t, domain.NotifyError, items[0].Type)
	assert.Equal(t, "first", items[1].Message)
}

func TestBuffer_IDsStrictlyIncreasing(t *testing.T) {
	b := NewBuffer(WithClock(clockwork.NewFakeClock()))

	a := b.Push(domain.NotifyInfo, "a")
	c := b.Push(domain.NotifyInfo, "b")
	d := b.Push(domain.NotifyInfo, "c")

	assert.Less(t, a.ID, c.ID)
	assert.Less(t, c.ID, d.ID)
	assert.Equal(t, a.Timestamp, d.Timestamp)
}

func TestBuffer_CapacityNeverExceeded(t *testing.T) {
	b := NewBuffer(WithClock(clockwork.NewFakeClock()))

	for i := 0; i < 75; i++ {
		b.Push(domain.NotifyInfo, fmt.Sprintf("msg-%d", i))
		assert.LessOrEqual(t, b.Len(), DefaultCapacity)
	}

	items := b.List()
	require.Len(t, items, DefaultCapacity)
	assert.Equal(t, "msg-74", items[0].Message)
	assert.Equal(t, "msg-25", items[DefaultCapacity-1].Message)
}

func TestBuffer_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBuffer(WithClock(clock))

	b.Push(domain.NotifyWarning, "expiring")
	clock.Advance(100 * time.Second)
	b.Push(domain.NotifyInfo, "younger")

	clock.Advance(80 * time.Second)
	require.Eventually(t, func() bool {
		return b.Len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "younger", b.List()[0].Message)

	clock.Advance(100 * time.Second)
	require.Eventually(t, func() bool {
		return b.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBuffer_ExpiryAfterTruncationRemovesByID(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBuffer(WithClock(clock), WithCapacity(2))

	b.Push(domain.NotifyInfo, "old")
	clock.Advance(10 * time.Second)
	b.Push(domain.NotifyInfo, "mid")
	b.Push(domain.NotifyInfo, "new") // truncates "old"

	// The timer of the truncated entry fires first and must not remove anything else.
	clock.Advance(DefaultTTL - 10*time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, b.Len())

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return b.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBuffer_ClearAndListener(t *testing.T) {
	b := NewBuffer(WithClock(clockwork.NewFakeClock()))

	var seen []string
	b.SetListener(func(n domain.Notification) {
		seen = append(seen, n.Message)
	})

	b.Push(domain.NotifySuccess, "one")
	b.Push(domain.NotifySuccess, "two")
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, []string{"one", "two"}, seen)
}
