package popup

import "snipe-console/internal/domain"

// State is the popup currently shown. Exactly one of Idle, Secondary,
// Slippage or Blocked.
type State interface {
	Name() string
	isState()
}

// Idle means no popup is shown.
type Idle struct{}

// Secondary is the token popup. IsPrimary marks the auto-open variant.
type Secondary struct {
	Token     domain.Token
	IsPrimary bool
}

// Slippage is shown when a transaction failed on slippage.
type Slippage struct {
	Token       domain.Token
	ErrorDetail string
}

// Blocked is shown when an external open was refused, offering a retry.
type Blocked struct {
	URL          string
	TokenAddress string
	Reason       string
}

func (Idle) Name() string      { return "idle" }
func (Secondary) Name() string { return "secondary_popup" }
func (Slippage) Name() string  { return "slippage_error" }
func (Blocked) Name() string   { return "popup_blocked" }

func (Idle) isState()      {}
func (Secondary) isState() {}
func (Slippage) isState()  {}
func (Blocked) isState()   {}

// Snapshot is the flat, JSON-friendly form of a State.
type Snapshot struct {
	State        string        `json:"state"`
	Token        *domain.Token `json:"token,omitempty"`
	IsPrimary    bool          `json:"isPrimary,omitempty"`
	ErrorDetail  string        `json:"errorDetail,omitempty"`
	URL          string        `json:"url,omitempty"`
	TokenAddress string        `json:"tokenAddress,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// Describe flattens s.
func Describe(s State) Snapshot {
	snap := Snapshot{State: s.Name()}
	switch v := s.(type) {
	case Secondary:
		tok := v.Token
		snap.Token = &tok
		snap.IsPrimary = v.IsPrimary
		snap.TokenAddress = v.Token.TokenAddress
	case Slippage:
		tok := v.Token
		snap.Token = &tok
		snap.ErrorDetail = v.ErrorDetail
		snap.TokenAddress = v.Token.TokenAddress
	case Blocked:
		snap.URL = v.URL
		snap.TokenAddress = v.TokenAddress
		snap.Reason = v.Reason
	}
	return snap
}
