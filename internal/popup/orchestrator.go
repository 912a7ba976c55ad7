// Package popup sequences the popup shown to the user and the automated
// open/snipe actions that follow a detection.
package popup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snipe-console/internal/api"
	"snipe-console/internal/capability"
	"snipe-console/internal/dedup"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/observability"
	"snipe-console/internal/resolver"
)

// Resolver resolves a token to its bonding curve / pair.
type Resolver interface {
	Resolve(ctx context.Context, tokenAddress string) (resolver.Resolution, error)
}

// Preferences exposes the confirmed settings the orchestrator reads.
type Preferences interface {
	Destination() domain.Destination
	GlobalSnipe() domain.GlobalSnipeSettings
}

// Sniper issues snipe calls.
type Sniper interface {
	Snipe(ctx context.Context, req api.SnipeRequest) (api.SnipeResult, error)
}

// Delays between a trigger and its follow-up action.
type Delays struct {
	PrimaryOpen   time.Duration
	DemoSnipe     time.Duration
	SecondaryOpen time.Duration
	AutoOpenPage  time.Duration
	DedupWindow   time.Duration
	CallTimeout   time.Duration
}

// DefaultDelays returns the production delays.
func DefaultDelays() Delays {
	return Delays{
		PrimaryOpen:   500 * time.Millisecond,
		DemoSnipe:     100 * time.Millisecond,
		SecondaryOpen: 1000 * time.Millisecond,
		AutoOpenPage:  300 * time.Millisecond,
		DedupWindow:   dedup.DefaultWindow,
		CallTimeout:   15 * time.Second,
	}
}

// Deps are the orchestrator's collaborators. All are required.
type Deps struct {
	Guard    *dedup.Guard
	Resolver Resolver
	Prefs    Preferences
	Sniper   Sniper
	Opener   capability.Opener
	Notifier notify.Notifier
}

// Orchestrator owns the popup state. Every transition is last-write-wins.
type Orchestrator struct {
	mu    sync.Mutex
	state State
	seqs  []*Sequence
	seqID uint64

	guard      *dedup.Guard
	resolver   Resolver
	prefs      Preferences
	sniper     Sniper
	opener     capability.Opener
	notifier   notify.Notifier
	clock      clockwork.Clock
	delays     Delays
	onResolved func(tokenAddress, bondingCurve string)
	logger     zerolog.Logger
}

// Option configures Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for every delay.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

// WithDelays overrides the default delays.
func WithDelays(d Delays) Option {
	return func(o *Orchestrator) {
		o.delays = d
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithResolvedHook registers a callback for newly resolved bonding curves.
func WithResolvedHook(fn func(tokenAddress, bondingCurve string)) Option {
	return func(o *Orchestrator) {
		o.onResolved = fn
	}
}

// New creates an orchestrator in the Idle state.
func New(deps Deps, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:    Idle{},
		guard:    deps.Guard,
		resolver: deps.Resolver,
		prefs:    deps.Prefs,
		sniper:   deps.Sniper,
		opener:   deps.Opener,
		notifier: deps.Notifier,
		clock:    clockwork.NewRealClock(),
		delays:   DefaultDelays(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With().Str("component", "popup").Logger()
	return o
}

// State returns the current popup state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Sequences returns copies of the most recent open sequences, oldest first.
func (o *Orchestrator) Sequences() []Sequence {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Sequence, len(o.seqs))
	for i, s := range o.seqs {
		out[i] = *s
	}
	return out
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()

	observability.RecordPopupTransition(s.Name())
	o.logger.Debug().Str("state", s.Name()).Msg("popup transition")
}

// HandlePrimary shows the primary popup for token and schedules the
// auto-open sequence (and, for demo tokens, an auto-snipe). It returns false
// without side effects if the token is already claimed.
func (o *Orchestrator) HandlePrimary(token domain.Token) bool {
	if !o.guard.ClaimFor(token.TokenAddress, o.delays.DedupWindow) {
		observability.RecordDedupRejected()
		o.logger.Debug().Str("token", token.TokenAddress).Msg("already claimed, skipping")
		return false
	}

	o.setState(Secondary{Token: token, IsPrimary: true})

	seq := o.newSequence(PathPrimary, token.TokenAddress)
	o.clock.AfterFunc(o.delays.PrimaryOpen, func() {
		o.runOpen(seq, token)
	})

	if token.IsDemo {
		o.clock.AfterFunc(o.delays.DemoSnipe, func() {
			o.autoSnipe(token)
		})
	}
	return true
}

// HandleSecondary shows the notify-only popup and schedules its auto-open.
// Secondary matches may repeat; the dedup guard is not consulted.
func (o *Orchestrator) HandleSecondary(token domain.Token) {
	o.setState(Secondary{Token: token, IsPrimary: false})

	seq := o.newSequence(PathSecondary, token.TokenAddress)
	o.clock.AfterFunc(o.delays.SecondaryOpen, func() {
		o.runOpen(seq, token)
	})
}

// ShowSlippage shows the slippage error popup.
func (o *Orchestrator) ShowSlippage(token domain.Token, detail string) {
	o.setState(Slippage{Token: token, ErrorDetail: detail})
}

// OpenURL opens a backend-supplied URL after a short delay.
// The caller validates the URL.
func (o *Orchestrator) OpenURL(rawURL, tokenAddress string) {
	seq := o.newSequence(PathAutoOpen, tokenAddress)
	o.clock.AfterFunc(o.delays.AutoOpenPage, func() {
		o.open(seq, rawURL)
	})
}

// Dismiss returns to Idle. In-flight sequences are not affected.
func (o *Orchestrator) Dismiss() {
	o.setState(Idle{})
}

// RetryBlocked re-attempts the open of a Blocked popup. It reports whether
// the page opened; on success the popup is dismissed.
func (o *Orchestrator) RetryBlocked() (bool, error) {
	b, ok := o.State().(Blocked)
	if !ok {
		return false, fmt.Errorf("no blocked popup to retry")
	}

	res := o.opener.Open(b.URL)
	if !res.Opened {
		o.setState(Blocked{URL: b.URL, TokenAddress: b.TokenAddress, Reason: res.Reason})
		o.notifier.Push(domain.NotifyWarning, "Still blocked: "+b.URL)
		return false, nil
	}

	o.setState(Idle{})
	o.notifier.Push(domain.NotifySuccess, "Opened "+b.URL)
	return true, nil
}

// OpenToken is the manual "view token" action.
func (o *Orchestrator) OpenToken(ctx context.Context, token domain.Token) capability.OpenResult {
	u := o.ViewURL(ctx, token)
	res := o.opener.Open(u)
	if !res.Opened {
		o.setState(Blocked{URL: u, TokenAddress: token.TokenAddress, Reason: res.Reason})
	}
	return res
}

func (o *Orchestrator) newSequence(path Path, tokenAddress string) *Sequence {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.seqID++
	seq := &Sequence{
		ID:           o.seqID,
		Path:         path,
		TokenAddress: tokenAddress,
		Stage:        StageWaiting,
		StartedAt:    o.clock.Now().UnixMilli(),
	}
	o.seqs = append(o.seqs, seq)
	if len(o.seqs) > maxSequences {
		o.seqs = o.seqs[len(o.seqs)-maxSequences:]
	}
	return seq
}

func (o *Orchestrator) advance(seq *Sequence, stage Stage) {
	o.mu.Lock()
	seq.Stage = stage
	o.mu.Unlock()
}

// runOpen resolves the destination for token, then opens it.
func (o *Orchestrator) runOpen(seq *Sequence, token domain.Token) {
	o.advance(seq, StageResolving)

	ctx, cancel := context.WithTimeout(context.Background(), o.delays.CallTimeout)
	defer cancel()
	u := o.Destination(ctx, token)

	if o.open(seq, u) && seq.Path == PathPrimary {
		o.completePrimary(token)
	}
}

// open runs the opening stage and reports whether the page opened.
func (o *Orchestrator) open(seq *Sequence, u string) bool {
	o.mu.Lock()
	seq.Stage = StageOpening
	seq.URL = u
	o.mu.Unlock()

	res := o.opener.Open(u)

	o.mu.Lock()
	if res.Opened {
		seq.Stage = StageOpened
	} else {
		seq.Stage = StageBlocked
		seq.Reason = res.Reason
	}
	o.mu.Unlock()

	l := o.logger.With().Str("path", string(seq.Path)).Str("token", seq.TokenAddress).Str("url", u).Logger()
	if !res.Opened {
		observability.RecordAutoOpen(string(seq.Path), "blocked")
		l.Warn().Str("reason", res.Reason).Msg("open blocked")
		o.setState(Blocked{URL: u, TokenAddress: seq.TokenAddress, Reason: res.Reason})
		o.notifier.Push(domain.NotifyWarning, "Popup blocked, open the token page manually")
		return false
	}

	observability.RecordAutoOpen(string(seq.Path), "opened")
	l.Info().Msg("token page opened")
	o.notifier.Push(domain.NotifySuccess, "Opened token page for "+shortAddress(seq.TokenAddress))
	return true
}

// completePrimary dismisses the primary popup for token if it is still shown.
func (o *Orchestrator) completePrimary(token domain.Token) {
	o.mu.Lock()
	cur, ok := o.state.(Secondary)
	if !ok || !cur.IsPrimary || cur.Token.TokenAddress != token.TokenAddress {
		o.mu.Unlock()
		return
	}
	o.state = Idle{}
	o.mu.Unlock()

	observability.RecordPopupTransition(Idle{}.Name())
}

func (o *Orchestrator) autoSnipe(token domain.Token) {
	ctx, cancel := context.WithTimeout(context.Background(), o.delays.CallTimeout)
	defer cancel()

	cfg := token.EffectiveConfig(o.prefs.GlobalSnipe())
	res, err := o.sniper.Snipe(ctx, api.SnipeRequestFor(token, cfg))
	if err != nil {
		o.logger.Error().Err(err).Str("token", token.TokenAddress).Msg("auto-snipe failed")
		o.notifier.Push(domain.NotifyError, fmt.Sprintf("Auto-snipe failed for %s: %v", token.Symbol, err))
		return
	}
	o.logger.Info().Str("token", token.TokenAddress).Str("signature", res.Signature).Msg("auto-snipe sent")
	o.notifier.Push(domain.NotifyInfo, fmt.Sprintf("Auto-snipe sent for %s (%s SOL)", token.Symbol, cfg.Amount))
}

func shortAddress(a string) string {
	if len(a) <= 12 {
		return a
	}
	return a[:4] + "..." + a[len(a)-4:]
}
