package router

import (
	"sync"

	"snipe-console/internal/domain"
)

// DefaultFeedCapacity is the number of detected tokens kept.
const DefaultFeedCapacity = 100

// Feed is the detected-token collection: newest first, unique by address,
// capped. Duplicate inserts are dropped.
type Feed struct {
	mu       sync.RWMutex
	tokens   []domain.Token
	index    map[string]struct{}
	capacity int
}

// NewFeed creates a feed holding at most capacity tokens.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		index:    make(map[string]struct{}),
		capacity: capacity,
	}
}

// Insert prepends token. Returns false if the address is already present.
func (f *Feed) Insert(token domain.Token) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.index[token.TokenAddress]; ok {
		return false
	}

	f.tokens = append([]domain.Token{token}, f.tokens...)
	f.index[token.TokenAddress] = struct{}{}

	if len(f.tokens) > f.capacity {
		for _, old := range f.tokens[f.capacity:] {
			delete(f.index, old.TokenAddress)
		}
		f.tokens = f.tokens[:f.capacity]
	}
	return true
}

// Token looks up a token by address.
func (f *Feed) Token(address string) (domain.Token, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, t := range f.tokens {
		if t.TokenAddress == address {
			return t, true
		}
	}
	return domain.Token{}, false
}

// UpdateBondingCurve records a resolved bonding curve on a stored token.
func (f *Feed) UpdateBondingCurve(address, bondingCurve string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.tokens {
		if f.tokens[i].TokenAddress == address {
			f.tokens[i].BondingCurveAddress = bondingCurve
			return true
		}
	}
	return false
}

// Tokens returns a copy of the feed, newest first.
func (f *Feed) Tokens() []domain.Token {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]domain.Token, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// Visible returns the tokens the display filter lets through.
func (f *Feed) Visible(filter domain.FilterSettings) []domain.Token {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []domain.Token
	for _, t := range f.tokens {
		if filter.Allows(t) {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of tokens.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.tokens)
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.tokens = nil
	f.index = make(map[string]struct{})
	f.mu.Unlock()
}
