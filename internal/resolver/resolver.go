// Package resolver resolves a token address to the more specific bonding
// curve or pair address used to deep-link into a trading UI.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snipe-console/internal/api"
)

// Address validation errors.
var (
	ErrBadEncoding = errors.New("address is not 32 bytes of base58")
	ErrOnCurve     = errors.New("address is on the ed25519 curve")
)

// Remote is the backend call used for resolution.
type Remote interface {
	ResolveToken(ctx context.Context, tokenAddress string) (api.Resolution, error)
}

// Resolution holds the addresses found for a token. Either may be empty.
type Resolution struct {
	BondingCurve string
	Pair         string
}

// Empty reports whether nothing was resolved.
func (r Resolution) Empty() bool {
	return r.BondingCurve == "" && r.Pair == ""
}

// Client resolves addresses through the backend and caches non-empty answers
// per token address.
type Client struct {
	remote Remote
	mu     sync.RWMutex
	cache  map[string]Resolution
	logger zerolog.Logger
}

// New creates a resolution client.
func New(remote Remote, logger *zerolog.Logger) *Client {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Client{
		remote: remote,
		cache:  make(map[string]Resolution),
		logger: l.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the cached resolution for tokenAddress or asks the backend.
// Addresses that fail validation are dropped from the answer.
func (c *Client) Resolve(ctx context.Context, tokenAddress string) (Resolution, error) {
	c.mu.RLock()
	res, ok := c.cache[tokenAddress]
	c.mu.RUnlock()
	if ok {
		return res, nil
	}

	raw, err := c.remote.ResolveToken(ctx, tokenAddress)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve %s: %w", tokenAddress, err)
	}

	res = Resolution{BondingCurve: raw.BondingCurve, Pair: raw.Pair}
	if res.BondingCurve != "" {
		if err := ValidateBondingCurve(res.BondingCurve); err != nil {
			c.logger.Warn().Err(err).Str("token", tokenAddress).Str("bonding_curve", res.BondingCurve).
				Msg("dropping invalid bonding curve")
			res.BondingCurve = ""
		}
	}
	if res.Pair != "" {
		if err := ValidateAddress(res.Pair); err != nil {
			c.logger.Warn().Err(err).Str("token", tokenAddress).Str("pair", res.Pair).
				Msg("dropping invalid pair address")
			res.Pair = ""
		}
	}

	if !res.Empty() {
		c.mu.Lock()
		c.cache[tokenAddress] = res
		c.mu.Unlock()
	}
	return res, nil
}

// Forget drops a cached resolution.
func (c *Client) Forget(tokenAddress string) {
	c.mu.Lock()
	delete(c.cache, tokenAddress)
	c.mu.Unlock()
}

// ValidateAddress checks that s decodes to a 32-byte public key.
func ValidateAddress(s string) error {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return ErrBadEncoding
	}
	return nil
}

// ValidateBondingCurve checks that s is a program derived address:
// 32 bytes of base58 that is not a valid ed25519 point.
func ValidateBondingCurve(s string) error {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return ErrBadEncoding
	}
	if isOnCurve(b) {
		return ErrOnCurve
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
