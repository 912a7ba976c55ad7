package router

import "sync"

const maxStatusRecords = 50

// TwitterSession is the last reported Twitter session state.
type TwitterSession struct {
	LoggedIn  bool   `json:"loggedIn"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	CheckedAt int64  `json:"checkedAt,omitempty"`
}

// CommunityRecord is one community_admins_scraped report.
type CommunityRecord struct {
	CommunityID  string   `json:"communityId"`
	TokenAddress string   `json:"tokenAddress,omitempty"`
	Admins       []string `json:"admins"`
	ScrapedAt    int64    `json:"scrapedAt"`
}

// ReuseRecord is one community_reuse_detected report.
type ReuseRecord struct {
	CommunityID   string `json:"communityId"`
	TokenAddress  string `json:"tokenAddress"`
	PreviousToken string `json:"previousToken,omitempty"`
	DetectedAt    int64  `json:"detectedAt"`
}

// Status is a snapshot of the auxiliary, read-only status records.
type Status struct {
	BotRunning  bool              `json:"botRunning"`
	BotMessage  string            `json:"botMessage,omitempty"`
	Twitter     TwitterSession    `json:"twitter"`
	Communities []CommunityRecord `json:"communities"`
	Reuses      []ReuseRecord     `json:"reuses"`
}

// StatusBoard holds the auxiliary status records, newest first.
type StatusBoard struct {
	mu sync.RWMutex
	st Status
}

func NewStatusBoard() *StatusBoard {
	return &StatusBoard{}
}

// Snapshot returns a deep copy.
func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := b.st
	out.Communities = make([]CommunityRecord, len(b.st.Communities))
	for i, c := range b.st.Communities {
		c.Admins = append([]string(nil), c.Admins...)
		out.Communities[i] = c
	}
	out.Reuses = append([]ReuseRecord(nil), b.st.Reuses...)
	return out
}

func (b *StatusBoard) SetBot(running bool, message string) {
	b.mu.Lock()
	b.st.BotRunning = running
	b.st.BotMessage = message
	b.mu.Unlock()
}

func (b *StatusBoard) SetTwitter(s TwitterSession) {
	b.mu.Lock()
	b.st.Twitter = s
	b.mu.Unlock()
}

func (b *StatusBoard) AddCommunity(r CommunityRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.st.Communities = append([]CommunityRecord{r}, b.st.Communities...)
	if len(b.st.Communities) > maxStatusRecords {
		b.st.Communities = b.st.Communities[:maxStatusRecords]
	}
}

func (b *StatusBoard) AddReuse(r ReuseRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.st.Reuses = append([]ReuseRecord{r}, b.st.Reuses...)
	if len(b.st.Reuses) > maxStatusRecords {
		b.st.Reuses = b.st.Reuses[:maxStatusRecords]
	}
}

// ApplyStatus copies the polled backend status.
func (b *StatusBoard) ApplyStatus(botRunning bool, twitterLoggedIn bool, twitterUser string, nowMs int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.st.BotRunning = botRunning
	b.st.Twitter.LoggedIn = twitterLoggedIn
	b.st.Twitter.Username = twitterUser
	b.st.Twitter.CheckedAt = nowMs
}

// ClearCommunities drops community and reuse records.
func (b *StatusBoard) ClearCommunities() {
	b.mu.Lock()
	b.st.Communities = nil
	b.st.Reuses = nil
	b.mu.Unlock()
}
