package domain

import "github.com/shopspring/decimal"

// SettingsDomain names one independently saved group of settings.
type SettingsDomain string

const (
	DomainBasic       SettingsDomain = "basic"
	DomainDetection   SettingsDomain = "detection"
	DomainFilter      SettingsDomain = "filter"
	DomainGlobalSnipe SettingsDomain = "globalSnipe"
)

// AllDomains lists every settings domain in display order.
func AllDomains() []SettingsDomain {
	return []SettingsDomain{DomainBasic, DomainDetection, DomainFilter, DomainGlobalSnipe}
}

// IsValid checks if the domain is a known value.
func (d SettingsDomain) IsValid() bool {
	switch d {
	case DomainBasic, DomainDetection, DomainFilter, DomainGlobalSnipe:
		return true
	}
	return false
}

// Destination is the external trading UI tokens are opened in.
type Destination string

const (
	DestinationNeoBullX Destination = "neo_bullx"
	DestinationAxiom    Destination = "axiom"
)

// TwitterFilter restricts which tokens are shown by their Twitter presence.
type TwitterFilter string

const (
	TwitterFilterAny        TwitterFilter = "any"
	TwitterFilterIndividual TwitterFilter = "individual"
	TwitterFilterCommunity  TwitterFilter = "community"
)

// Settings is the full settings object exchanged with the backend and the cache.
type Settings struct {
	Basic       BasicSettings       `json:"basic"`
	Detection   DetectionSettings   `json:"detection"`
	Filter      FilterSettings      `json:"filter"`
	GlobalSnipe GlobalSnipeSettings `json:"globalSnipe"`
}

// DefaultSettings returns the settings used before anything is cached or fetched.
func DefaultSettings() Settings {
	return Settings{
		Basic: BasicSettings{
			TokenPageDestination: DestinationNeoBullX,
			SoundEnabled:         true,
			AlertSound:           "alert.mp3",
		},
		Detection: DetectionSettings{
			AdminFilterEnabled: true,
		},
		Filter: FilterSettings{
			ShowPumpfun:   true,
			ShowLetsbonk:  true,
			TwitterFilter: TwitterFilterAny,
		},
		GlobalSnipe: GlobalSnipeSettings{
			Amount:      decimal.RequireFromString("0.01"),
			Fees:        decimal.NewFromInt(10),
			PriorityFee: decimal.RequireFromString("0.0001"),
		},
	}
}

type BasicSettings struct {
	PrivateKey           string      `json:"privateKey"`
	TokenPageDestination Destination `json:"tokenPageDestination"`
	SoundEnabled         bool        `json:"soundEnabled"`
	AlertSound           string      `json:"alertSound"`
}

// Equal compares field-wise.
func (s BasicSettings) Equal(o BasicSettings) bool { return s == o }

type DetectionSettings struct {
	DetectionOnlyMode     bool `json:"detectionOnlyMode"`
	SnipeAllTokens        bool `json:"snipeAllTokens"`
	AdminFilterEnabled    bool `json:"adminFilterEnabled"`
	CommunityReuseEnabled bool `json:"communityReuseEnabled"`
}

// Equal compares field-wise.
func (s DetectionSettings) Equal(o DetectionSettings) bool { return s == o }

type FilterSettings struct {
	ShowPumpfun   bool          `json:"showPumpfun"`
	ShowLetsbonk  bool          `json:"showLetsbonk"`
	TwitterFilter TwitterFilter `json:"twitterFilter"`
}

// Equal compares field-wise.
func (s FilterSettings) Equal(o FilterSettings) bool { return s == o }

type GlobalSnipeSettings struct {
	Amount        decimal.Decimal `json:"amount"`
	Fees          decimal.Decimal `json:"fees"`
	PriorityFee   decimal.Decimal `json:"priorityFee"`
	MEVProtection bool            `json:"mevProtection"`
	Sound         string          `json:"sound"`
}

// Equal compares field-wise; decimals compare by value.
func (s GlobalSnipeSettings) Equal(o GlobalSnipeSettings) bool {
	return s.Amount.Equal(o.Amount) &&
		s.Fees.Equal(o.Fees) &&
		s.PriorityFee.Equal(o.PriorityFee) &&
		s.MEVProtection == o.MEVProtection &&
		s.Sound == o.Sound
}

// TokenConfig converts the global parameters into a per-entity config.
func (s GlobalSnipeSettings) TokenConfig() TokenConfig {
	return TokenConfig{
		Amount:        s.Amount,
		Fees:          s.Fees,
		PriorityFee:   s.PriorityFee,
		MEVProtection: s.MEVProtection,
		Sound:         s.Sound,
	}
}

// Patches carry only the fields a user touched; nil means "unchanged".

type BasicPatch struct {
	PrivateKey           *string      `json:"privateKey,omitempty"`
	TokenPageDestination *Destination `json:"tokenPageDestination,omitempty"`
	SoundEnabled         *bool        `json:"soundEnabled,omitempty"`
	AlertSound           *string      `json:"alertSound,omitempty"`
}

func (p BasicPatch) Apply(s BasicSettings) BasicSettings {
	if p.PrivateKey != nil {
		s.PrivateKey = *p.PrivateKey
	}
	if p.TokenPageDestination != nil {
		s.TokenPageDestination = *p.TokenPageDestination
	}
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.AlertSound != nil {
		s.AlertSound = *p.AlertSound
	}
	return s
}

type DetectionPatch struct {
	DetectionOnlyMode     *bool `json:"detectionOnlyMode,omitempty"`
	SnipeAllTokens        *bool `json:"snipeAllTokens,omitempty"`
	AdminFilterEnabled    *bool `json:"adminFilterEnabled,omitempty"`
	CommunityReuseEnabled *bool `json:"communityReuseEnabled,omitempty"`
}

func (p DetectionPatch) Apply(s DetectionSettings) DetectionSettings {
	if p.DetectionOnlyMode != nil {
		s.DetectionOnlyMode = *p.DetectionOnlyMode
	}
	if p.SnipeAllTokens != nil {
		s.SnipeAllTokens = *p.SnipeAllTokens
	}
	if p.AdminFilterEnabled != nil {
		s.AdminFilterEnabled = *p.AdminFilterEnabled
	}
	if p.CommunityReuseEnabled != nil {
		s.CommunityReuseEnabled = *p.CommunityReuseEnabled
	}
	return s
}

type FilterPatch struct {
	ShowPumpfun   *bool          `json:"showPumpfun,omitempty"`
	ShowLetsbonk  *bool          `json:"showLetsbonk,omitempty"`
	TwitterFilter *TwitterFilter `json:"twitterFilter,omitempty"`
}

func (p FilterPatch) Apply(s FilterSettings) FilterSettings {
	if p.ShowPumpfun != nil {
		s.ShowPumpfun = *p.ShowPumpfun
	}
	if p.ShowLetsbonk != nil {
		s.ShowLetsbonk = *p.ShowLetsbonk
	}
	if p.TwitterFilter != nil {
		s.TwitterFilter = *p.TwitterFilter
	}
	return s
}

type GlobalSnipePatch struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Fees          *decimal.Decimal `json:"fees,omitempty"`
	PriorityFee   *decimal.Decimal `json:"priorityFee,omitempty"`
	MEVProtection *bool            `json:"mevProtection,omitempty"`
	Sound         *string          `json:"sound,omitempty"`
}

func (p GlobalSnipePatch) Apply(s GlobalSnipeSettings) GlobalSnipeSettings {
	if p.Amount != nil {
		s.Amount = *p.Amount
	}
	if p.Fees != nil {
		s.Fees = *p.Fees
	}
	if p.PriorityFee != nil {
		s.PriorityFee = *p.PriorityFee
	}
	if p.MEVProtection != nil {
		s.MEVProtection = *p.MEVProtection
	}
	if p.Sound != nil {
		s.Sound = *p.Sound
	}
	return s
}

// PropagationMode is the scope a global snipe change is applied to.
type PropagationMode string

const (
	PropagateAllExisting PropagationMode = "all_existing"
	PropagateNewOnly     PropagationMode = "new_only"
)

// IsValid checks if the mode is a known value.
func (m PropagationMode) IsValid() bool {
	return m == PropagateAllExisting || m == PropagateNewOnly
}

// AdminList names one of the two admin-entity lists.
type AdminList string

const (
	ListPrimary   AdminList = "primary"   // auto-snipe eligible
	ListSecondary AdminList = "secondary" // notify only
)

// IsValid checks if the list is a known value.
func (l AdminList) IsValid() bool {
	return l == ListPrimary || l == ListSecondary
}

// AdminEntry is one wallet or Twitter handle in an admin list.
type AdminEntry struct {
	ID     string       `json:"id"`
	Value  string       `json:"value"` // wallet address or twitter handle
	List   AdminList    `json:"list"`
	Config *TokenConfig `json:"config,omitempty"`
}

// Merge returns p with every field set in o overriding p's.
func (p BasicPatch) Merge(o BasicPatch) BasicPatch {
	if o.PrivateKey != nil {
		p.PrivateKey = o.PrivateKey
	}
	if o.TokenPageDestination != nil {
		p.TokenPageDestination = o.TokenPageDestination
	}
	if o.SoundEnabled != nil {
		p.SoundEnabled = o.SoundEnabled
	}
	if o.AlertSound != nil {
		p.AlertSound = o.AlertSound
	}
	return p
}

func (p DetectionPatch) Merge(o DetectionPatch) DetectionPatch {
	if o.DetectionOnlyMode != nil {
		p.DetectionOnlyMode = o.DetectionOnlyMode
	}
	if o.SnipeAllTokens != nil {
		p.SnipeAllTokens = o.SnipeAllTokens
	}
	if o.AdminFilterEnabled != nil {
		p.AdminFilterEnabled = o.AdminFilterEnabled
	}
	if o.CommunityReuseEnabled != nil {
		p.CommunityReuseEnabled = o.CommunityReuseEnabled
	}
	return p
}

func (p FilterPatch) Merge(o FilterPatch) FilterPatch {
	if o.ShowPumpfun != nil {
		p.ShowPumpfun = o.ShowPumpfun
	}
	if o.ShowLetsbonk != nil {
		p.ShowLetsbonk = o.ShowLetsbonk
	}
	if o.TwitterFilter != nil {
		p.TwitterFilter = o.TwitterFilter
	}
	return p
}

func (p GlobalSnipePatch) Merge(o GlobalSnipePatch) GlobalSnipePatch {
	if o.Amount != nil {
		p.Amount = o.Amount
	}
	if o.Fees != nil {
		p.Fees = o.Fees
	}
	if o.PriorityFee != nil {
		p.PriorityFee = o.PriorityFee
	}
	if o.MEVProtection != nil {
		p.MEVProtection = o.MEVProtection
	}
	if o.Sound != nil {
		p.Sound = o.Sound
	}
	return p
}

// Without drops the fields of p that still hold the value sent in a save.
// Fields edited again while the save was in flight stay.
func (p BasicPatch) Without(sent BasicPatch) BasicPatch {
	p.PrivateKey = unsent(p.PrivateKey, sent.PrivateKey)
	p.TokenPageDestination = unsent(p.TokenPageDestination, sent.TokenPageDestination)
	p.SoundEnabled = unsent(p.SoundEnabled, sent.SoundEnabled)
	p.AlertSound = unsent(p.AlertSound, sent.AlertSound)
	return p
}

func (p DetectionPatch) Without(sent DetectionPatch) DetectionPatch {
	p.DetectionOnlyMode = unsent(p.DetectionOnlyMode, sent.DetectionOnlyMode)
	p.SnipeAllTokens = unsent(p.SnipeAllTokens, sent.SnipeAllTokens)
	p.AdminFilterEnabled = unsent(p.AdminFilterEnabled, sent.AdminFilterEnabled)
	p.CommunityReuseEnabled = unsent(p.CommunityReuseEnabled, sent.CommunityReuseEnabled)
	return p
}

func (p FilterPatch) Without(sent FilterPatch) FilterPatch {
	p.ShowPumpfun = unsent(p.ShowPumpfun, sent.ShowPumpfun)
	p.ShowLetsbonk = unsent(p.ShowLetsbonk, sent.ShowLetsbonk)
	p.TwitterFilter = unsent(p.TwitterFilter, sent.TwitterFilter)
	return p
}

func (p GlobalSnipePatch) Without(sent GlobalSnipePatch) GlobalSnipePatch {
	p.Amount = unsentDecimal(p.Amount, sent.Amount)
	p.Fees = unsentDecimal(p.Fees, sent.Fees)
	p.PriorityFee = unsentDecimal(p.PriorityFee, sent.PriorityFee)
	p.MEVProtection = unsent(p.MEVProtection, sent.MEVProtection)
	p.Sound = unsent(p.Sound, sent.Sound)
	return p
}

func unsent[T comparable](cur, sent *T) *T {
	if cur != nil && sent != nil && *cur == *sent {
		return nil
	}
	return cur
}

func unsentDecimal(cur, sent *decimal.Decimal) *decimal.Decimal {
	if cur != nil && sent != nil && cur.Equal(*sent) {
		return nil
	}
	return cur
}

// Validate rejects amounts that cannot be sent to the backend.
func (p GlobalSnipePatch) Validate() error {
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Fees != nil && p.Fees.IsNegative() {
		return ErrInvalidFees
	}
	if p.PriorityFee != nil && p.PriorityFee.IsNegative() {
		return ErrInvalidFees
	}
	return nil
}

// Allows reports whether the display filter shows token.
func (s FilterSettings) Allows(t Token) bool {
	switch t.Platform {
	case PlatformPumpfun:
		if !s.ShowPumpfun {
			return false
		}
	case PlatformLetsbonk:
		if !s.ShowLetsbonk {
			return false
		}
	}
	switch s.TwitterFilter {
	case TwitterFilterIndividual:
		return t.TwitterType == TwitterIndividual
	case TwitterFilterCommunity:
		return t.TwitterType == TwitterCommunity
	}
	return true
}
