// Package dedup provides the per-address claim registry that prevents a
// second automated sequence for a token while the first one is in flight.
package dedup

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultWindow is how long a primary-match claim is held.
const DefaultWindow = 30 * time.Second

// Guard tracks claimed addresses. The zero value is not usable; use NewGuard.
type Guard struct {
	mu     sync.Mutex
	claims map[string]uint64 // address -> claim generation
	gen    uint64
	clock  clockwork.Clock
}

// NewGuard creates an empty guard. A nil clock means the real clock.
func NewGuard(clock clockwork.Clock) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Guard{
		claims: make(map[string]uint64),
		clock:  clock,
	}
}

// Claim marks address as claimed. Returns false if it already was.
func (g *Guard) Claim(address string) bool {
	_, ok := g.claim(address)
	return ok
}

// ClaimFor claims address and schedules an unconditional release after window.
// The release only drops this claim: if the address was released and claimed
// again in the meantime, the newer claim is left alone.
func (g *Guard) ClaimFor(address string, window time.Duration) bool {
	gen, ok := g.claim(address)
	if !ok {
		return false
	}
	g.clock.AfterFunc(window, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.claims[address] == gen {
			delete(g.claims, address)
		}
	})
	return true
}

func (g *Guard) claim(address string) (uint64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.claims[address]; held {
		return 0, false
	}
	g.gen++
	g.claims[address] = g.gen
	return g.gen, true
}

// Release removes the claim on address, if any.
func (g *Guard) Release(address string) {
	g.mu.Lock()
	delete(g.claims, address)
	g.mu.Unlock()
}

// Held reports whether address is currently claimed.
func (g *Guard) Held(address string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.claims[address]
	return held
}

// Len returns the number of claimed addresses.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}
