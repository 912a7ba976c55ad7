package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"snipe-console/internal/domain"
)

// StatusResponse is the reply of GET /api/status.
type StatusResponse struct {
	BotRunning bool `json:"botRunning"`
	// Settings is kept raw: the backend may send some domains, or none.
	Settings json.RawMessage `json:"settings,omitempty"`
	Twitter  TwitterStatus   `json:"twitter"`
}

// SettingsOver decodes the reply's settings over base, so fields the backend
// left out keep their base values. ok is false when the reply had none.
func (r *StatusResponse) SettingsOver(base domain.Settings) (s domain.Settings, ok bool, err error) {
	raw := bytes.TrimSpace(r.Settings)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return base, false, nil
	}
	s = base
	if err := json.Unmarshal(raw, &s); err != nil {
		return base, false, fmt.Errorf("decode status settings: %w", err)
	}
	return s, true, nil
}

// TwitterStatus is the backend's Twitter session state.
type TwitterStatus struct {
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username,omitempty"`
}

// Community is a tracked Twitter community.
type Community struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	TokenAddress string   `json:"tokenAddress,omitempty"`
	Admins       []string `json:"admins,omitempty"`
}

// Tweet is a tracked tweet.
type Tweet struct {
	ID           string `json:"id"`
	Author       string `json:"author"`
	Text         string `json:"text"`
	TokenAddress string `json:"tokenAddress,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// Resolution is the reply of POST /api/token/resolve.
type Resolution struct {
	BondingCurve string `json:"bondingCurveAddress"`
	Pair         string `json:"pairAddress"`
}

// SnipeRequest is the body of POST /api/snipe.
type SnipeRequest struct {
	TokenAddress  string          `json:"tokenAddress"`
	Amount        decimal.Decimal `json:"amount"`
	Fees          decimal.Decimal `json:"fees"`
	PriorityFee   decimal.Decimal `json:"priorityFee"`
	MEVProtection bool            `json:"mevProtection"`
	IsDemo        bool            `json:"isDemo,omitempty"`
}

// SnipeResult is the reply of POST /api/snipe.
type SnipeResult struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// SnipeRequestFor builds a snipe request from a token and its effective config.
func SnipeRequestFor(token domain.Token, cfg domain.TokenConfig) SnipeRequest {
	return SnipeRequest{
		TokenAddress:  token.TokenAddress,
		Amount:        cfg.Amount,
		Fees:          cfg.Fees,
		PriorityFee:   cfg.PriorityFee,
		MEVProtection: cfg.MEVProtection,
		IsDemo:        token.IsDemo,
	}
}
