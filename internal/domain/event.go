package domain

import "encoding/json"

// EventKind is the tag of a message received on the event channel.
type EventKind string

const (
	KindTokenDetected          EventKind = "token_detected"
	KindSecondaryPopupTrigger  EventKind = "secondary_popup_trigger"
	KindTransactionFailed      EventKind = "transaction_failed"
	KindSnipeError             EventKind = "snipe_error"
	KindSnipeSuccess           EventKind = "snipe_success"
	KindAutoOpenTokenPage      EventKind = "auto_open_token_page"
	KindCommunityAdminsScraped EventKind = "community_admins_scraped"
	KindCommunityReuse         EventKind = "community_reuse_detected"
	KindTwitterLoginAttempt    EventKind = "twitter_login_attempt"
	KindTwitterSessionCheck    EventKind = "twitter_session_check"
	KindBotStatus              EventKind = "bot_status"
	KindDetectionOnlyToken     EventKind = "detection_only_token"
	KindSettingsUpdated        EventKind = "settings_updated"
	KindAdminListUpdated       EventKind = "admin_list_updated"
	KindError                  EventKind = "error"
	KindInfo                   EventKind = "info"
	KindConnectionEstablished  EventKind = "connection_established"
)

// Event is one frame received on the event channel: {type, data}.
// The payload stays raw until the handler for Kind decodes it.
type Event struct {
	Kind EventKind       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TokenPayload is the data of token_detected, secondary_popup_trigger and
// detection_only_token events.
type TokenPayload struct {
	TokenAddress        string       `json:"tokenAddress"`
	Name                string       `json:"name"`
	Symbol              string       `json:"symbol"`
	Platform            string       `json:"platform"`
	Pool                string       `json:"pool"`
	MatchType           MatchType    `json:"matchType"`
	MatchedEntity       string       `json:"matchedEntity"`
	TwitterType         TwitterType  `json:"twitterType"`
	BondingCurveAddress string       `json:"bondingCurveAddress"`
	PairAddress         string       `json:"pairAddress"`
	IsDemo              bool         `json:"isDemo"`
	Timestamp           int64        `json:"timestamp"`
	Config              *TokenConfig `json:"config"`
}

// Token builds the token record. Missing config is left nil so the global
// snipe settings apply at use time.
func (p TokenPayload) Token(nowMs int64) Token {
	tt := p.TwitterType
	if tt == "" {
		tt = TwitterNone
	}
	detectedAt := p.Timestamp
	if detectedAt == 0 {
		detectedAt = nowMs
	}
	return Token{
		TokenAddress:        p.TokenAddress,
		Name:                p.Name,
		Symbol:              p.Symbol,
		Platform:            ParsePlatform(p.Platform),
		Pool:                p.Pool,
		MatchType:           p.MatchType,
		MatchedEntity:       p.MatchedEntity,
		TwitterType:         tt,
		BondingCurveAddress: p.BondingCurveAddress,
		PairAddress:         p.PairAddress,
		IsDemo:              p.IsDemo,
		DetectedAt:          detectedAt,
		Config:              p.Config,
	}
}

// TxFailurePayload is the data of transaction_failed and snipe_error events.
type TxFailurePayload struct {
	TokenAddress string `json:"tokenAddress"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Signature    string `json:"signature"`
	Error        string `json:"error"`
	Message      string `json:"message"`
}

// Detail returns the most specific error text in the payload.
func (p TxFailurePayload) Detail() string {
	if p.Error != "" {
		return p.Error
	}
	return p.Message
}

type SnipeSuccessPayload struct {
	TokenAddress string `json:"tokenAddress"`
	Symbol       string `json:"symbol"`
	Signature    string `json:"signature"`
	Amount       string `json:"amount"`
}

type AutoOpenPayload struct {
	URL          string `json:"url"`
	TokenAddress string `json:"tokenAddress"`
}

type CommunityAdminsPayload struct {
	CommunityID  string   `json:"communityId"`
	TokenAddress string   `json:"tokenAddress"`
	Admins       []string `json:"admins"`
}

type CommunityReusePayload struct {
	CommunityID   string `json:"communityId"`
	TokenAddress  string `json:"tokenAddress"`
	PreviousToken string `json:"previousToken"`
}

type TwitterLoginPayload struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type TwitterSessionPayload struct {
	LoggedIn bool   `json:"loggedIn"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type BotStatusPayload struct {
	Running bool   `json:"running"`
	Message string `json:"message"`
}

type AdminListUpdatedPayload struct {
	List AdminList `json:"list"`
}

type MessagePayload struct {
	Message string `json:"message"`
}
