package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Platform identifies the launchpad a token was created on.
type Platform string

const (
	PlatformPumpfun  Platform = "pumpfun"
	PlatformLetsbonk Platform = "letsbonk"
	PlatformUnknown  Platform = "unknown"
)

// ParsePlatform normalizes a platform tag sent by the backend.
func ParsePlatform(s string) Platform {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pumpfun", "pump.fun", "pump":
		return PlatformPumpfun
	case "letsbonk", "bonk", "letsbonk.fun", "bonk.fun":
		return PlatformLetsbonk
	default:
		return PlatformUnknown
	}
}

// MatchType describes which list entry (if any) caused a detection.
type MatchType string

const (
	MatchPrimaryWallet   MatchType = "primary_wallet"
	MatchPrimaryAdmin    MatchType = "primary_admin"
	MatchSecondaryWallet MatchType = "secondary_wallet"
	MatchSecondaryAdmin  MatchType = "secondary_admin"
	MatchSnipeAll        MatchType = "snipe_all"
	MatchNoFilters       MatchType = "no_filters"
)

// IsPrimary reports whether the match is eligible for the automated open/snipe sequence.
func (m MatchType) IsPrimary() bool {
	return m == MatchPrimaryWallet || m == MatchPrimaryAdmin
}

// IsSecondary reports whether the match is notify-only.
func (m MatchType) IsSecondary() bool {
	return m == MatchSecondaryWallet || m == MatchSecondaryAdmin
}

// TwitterType is the kind of Twitter presence attached to a token.
type TwitterType string

const (
	TwitterIndividual TwitterType = "individual"
	TwitterCommunity  TwitterType = "community"
	TwitterNone       TwitterType = "none"
)

// TokenConfig is a per-entity override of the global snipe parameters.
type TokenConfig struct {
	Amount        decimal.Decimal `json:"amount"`      // SOL
	Fees          decimal.Decimal `json:"fees"`        // slippage tolerance, percent
	PriorityFee   decimal.Decimal `json:"priorityFee"` // SOL
	MEVProtection bool            `json:"mevProtection"`
	Sound         string          `json:"sound,omitempty"`
}

// Token is a detected-token record.
type Token struct {
	TokenAddress        string       `json:"tokenAddress"` // unique key
	Name                string       `json:"name"`
	Symbol              string       `json:"symbol"`
	Platform            Platform     `json:"platform"`
	Pool                string       `json:"pool,omitempty"` // pool tag, e.g. "bonk"
	MatchType           MatchType    `json:"matchType"`
	MatchedEntity       string       `json:"matchedEntity,omitempty"`
	TwitterType         TwitterType  `json:"twitterType"`
	BondingCurveAddress string       `json:"bondingCurveAddress,omitempty"` // resolved lazily
	PairAddress         string       `json:"pairAddress,omitempty"`
	IsDemo              bool         `json:"isDemo,omitempty"`
	DetectedAt          int64        `json:"detectedAt"` // Unix ms
	Config              *TokenConfig `json:"config,omitempty"`
}

// IsBonkPool reports whether the token trades on a letsbonk/bonk pool, where
// a pair address is the preferred fallback deep link.
func (t *Token) IsBonkPool() bool {
	if t.Platform == PlatformLetsbonk {
		return true
	}
	return strings.Contains(strings.ToLower(t.Pool), "bonk")
}

// EffectiveConfig returns the per-entity override, or the global snipe
// parameters when the token carries none.
func (t *Token) EffectiveConfig(global GlobalSnipeSettings) TokenConfig {
	if t.Config != nil {
		return *t.Config
	}
	return global.TokenConfig()
}
