// Package router dispatches events received on the event channel to their
// handlers. Events are handled strictly in arrival order on the caller's
// goroutine; handlers only update state and schedule detached follow-ups.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/observability"
)

// Popups is the popup orchestrator surface used by handlers.
type Popups interface {
	HandlePrimary(token domain.Token) bool
	HandleSecondary(token domain.Token)
	ShowSlippage(token domain.Token, detail string)
	OpenURL(rawURL, tokenAddress string)
}

// Settings is the settings engine surface used by handlers.
type Settings interface {
	Confirmed() domain.Settings
	ApplyRemote(ctx context.Context, s domain.Settings)
}

// AdminLoader reloads an admin list from the backend.
type AdminLoader interface {
	Load(ctx context.Context, list domain.AdminList) error
}

// Sounder plays an alert sound without blocking.
type Sounder interface {
	Alert(ref string)
}

// HandlerFunc handles the payload of one event kind.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

// Deps are the router's collaborators.
type Deps struct {
	Popups   Popups
	Settings Settings
	Admins   AdminLoader
	Sound    Sounder
	Notifier notify.Notifier
	Feed     *Feed
	Status   *StatusBoard
}

// Router maps event kinds to handlers.
type Router struct {
	handlers map[domain.EventKind]HandlerFunc

	popups   Popups
	settings Settings
	admins   AdminLoader
	sound    Sounder
	notifier notify.Notifier
	feed     *Feed
	status   *StatusBoard
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// Option configures Router.
type Option func(*Router)

// WithClock sets the clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(r *Router) {
		r.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Router) {
		r.logger = l
	}
}

// New creates a router with every known kind registered. A nil Feed or
// Status gets a fresh one.
func New(deps Deps, opts ...Option) *Router {
	r := &Router{
		handlers: make(map[domain.EventKind]HandlerFunc),
		popups:   deps.Popups,
		settings: deps.Settings,
		admins:   deps.Admins,
		sound:    deps.Sound,
		notifier: deps.Notifier,
		feed:     deps.Feed,
		status:   deps.Status,
		clock:    clockwork.NewRealClock(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.feed == nil {
		r.feed = NewFeed(DefaultFeedCapacity)
	}
	if r.status == nil {
		r.status = NewStatusBoard()
	}
	r.logger = r.logger.With().Str("component", "router").Logger()
	r.registerDefaults()
	return r
}

// Register installs (or replaces) the handler for kind.
func (r *Router) Register(kind domain.EventKind, h HandlerFunc) {
	r.handlers[kind] = h
}

// Feed returns the detected-token feed.
func (r *Router) Feed() *Feed { return r.feed }

// Status returns the auxiliary status records.
func (r *Router) Status() *StatusBoard { return r.status }

// Route decodes a raw frame and handles it.
func (r *Router) Route(ctx context.Context, frame []byte) error {
	var ev domain.Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		observability.RecordMalformedFrame()
		r.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("malformed frame")
		return fmt.Errorf("decode event: %w", err)
	}
	return r.Handle(ctx, ev)
}

// Handle dispatches ev to its handler. Unknown kinds are logged and ignored.
func (r *Router) Handle(ctx context.Context, ev domain.Event) error {
	h, ok := r.handlers[ev.Kind]
	if !ok {
		observability.RecordUnknownEvent()
		r.logger.Debug().Str("kind", string(ev.Kind)).Msg("ignoring unknown event")
		return nil
	}

	start := time.Now()
	err := h(ctx, ev.Data)
	observability.RecordEventRouted(string(ev.Kind), time.Since(start).Seconds())

	if err != nil {
		r.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("event handler failed")
		return fmt.Errorf("handle %s: %w", ev.Kind, err)
	}
	r.logger.Debug().Str("kind", string(ev.Kind)).Msg("event handled")
	return nil
}

func (r *Router) registerDefaults() {
	r.Register(domain.KindTokenDetected, r.onTokenDetected)
	r.Register(domain.KindSecondaryPopupTrigger, r.onSecondaryTrigger)
	r.Register(domain.KindTransactionFailed, r.onTxFailure)
	r.Register(domain.KindSnipeError, r.onTxFailure)
	r.Register(domain.KindSnipeSuccess, r.onSnipeSuccess)
	r.Register(domain.KindAutoOpenTokenPage, r.onAutoOpen)
	r.Register(domain.KindCommunityAdminsScraped, r.onCommunityAdmins)
	r.Register(domain.KindCommunityReuse, r.onCommunityReuse)
	r.Register(domain.KindTwitterLoginAttempt, r.onTwitterLogin)
	r.Register(domain.KindTwitterSessionCheck, r.onTwitterSession)
	r.Register(domain.KindBotStatus, r.onBotStatus)
	r.Register(domain.KindDetectionOnlyToken, r.onDetectionOnly)
	r.Register(domain.KindSettingsUpdated, r.onSettingsUpdated)
	r.Register(domain.KindAdminListUpdated, r.onAdminListUpdated)
	r.Register(domain.KindError, r.message(domain.NotifyError))
	r.Register(domain.KindInfo, r.message(domain.NotifyInfo))
	r.Register(domain.KindConnectionEstablished, r.onConnected)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func (r *Router) nowMs() int64 {
	return r.clock.Now().UnixMilli()
}
