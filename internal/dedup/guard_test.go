package dedup

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_ClaimOnce(t *testing.T) {
	g := NewGuard(clockwork.NewFakeClock())

	assert.True(t, g.Claim("ABC123"))
	assert.False(t, g.Claim("ABC123"))
	assert.True(t, g.Claim("XYZ789"))
	assert.True(t, g.Held("ABC123"))
	assert.Equal(t, 2, g.Len())
}

func TestGuard_Release(t *testing.T) {
	g := NewGuard(clockwork.NewFakeClock())

	g.Claim("ABC123")
	g.Release("ABC123")

	assert.False(t, g.Held("ABC123"))
	assert.True(t, g.Claim("ABC123"))

	// Releasing an unknown address is a no-op.
	g.Release("missing")
}

func TestGuard_ClaimForReleasesAfterWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := NewGuard(clock)

	require.True(t, g.ClaimFor("ABC123", DefaultWindow))

	clock.Advance(29 * time.Second)
	assert.False(t, g.ClaimFor("ABC123", DefaultWindow))
	assert.True(t, g.Held("ABC123"))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		return !g.Held("ABC123")
	}, time.Second, 5*time.Millisecond)
	assert.True(t, g.ClaimFor("ABC123", DefaultWindow))
}

func TestGuard_StaleTimerKeepsNewerClaim(t *testing.T) {
	clock := clockwork.NewFakeClock()
	g := NewGuard(clock)

	require.True(t, g.ClaimFor("ABC123", DefaultWindow))
	clock.Advance(10 * time.Second)

	g.Release("ABC123")
	require.True(t, g.ClaimFor("ABC123", DefaultWindow))

	// First claim's timer fires here; the second claim must survive.
	clock.Advance(20 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, g.Held("ABC123"))

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return !g.Held("ABC123")
	}, time.Second, 5*time.Millisecond)
}
