// Package control is the user action surface. Every backend failure ends in
// an error notification and is returned to the caller; validation failures
// block the action before anything is sent.
package control

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"snipe-console/internal/api"
	"snipe-console/internal/capability"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/popup"
	"snipe-console/internal/router"
)

// Backend is the part of the API the actions call directly.
type Backend interface {
	Communities(ctx context.Context) ([]api.Community, error)
	ClearCommunities(ctx context.Context) error
	Tweets(ctx context.Context) ([]api.Tweet, error)
	ClearTweets(ctx context.Context) error
	Sounds(ctx context.Context) ([]string, error)
	UploadSound(ctx context.Context, name string, data []byte) error
	DeleteSound(ctx context.Context, name string) error
	StartBot(ctx context.Context) error
	StopBot(ctx context.Context) error
	Snipe(ctx context.Context, req api.SnipeRequest) (api.SnipeResult, error)
	TwitterLogin(ctx context.Context, username, password string) error
	TwitterLogout(ctx context.Context) error
	TwitterStatus(ctx context.Context) (api.TwitterStatus, error)
}

// Settings is the settings engine surface.
type Settings interface {
	Draft() domain.Settings
	Confirmed() domain.Settings
	GlobalSnipe() domain.GlobalSnipeSettings
	IsDirty(d domain.SettingsDomain) bool
	PropagationMode() domain.PropagationMode
	SetPropagationMode(m domain.PropagationMode) error
	EditBasic(p domain.BasicPatch)
	EditDetection(p domain.DetectionPatch)
	EditFilter(p domain.FilterPatch)
	EditGlobalSnipe(p domain.GlobalSnipePatch)
	SaveBasic(ctx context.Context, p domain.BasicPatch) error
	SaveDetection(ctx context.Context, p domain.DetectionPatch) error
	SaveFilter(ctx context.Context, p domain.FilterPatch) error
	SaveGlobalSnipe(ctx context.Context, p domain.GlobalSnipePatch) error
	Refresh(ctx context.Context) (*api.StatusResponse, error)
}

// AdminLists is the admin list surface.
type AdminLists interface {
	Load(ctx context.Context, list domain.AdminList) error
	Add(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error)
	Remove(ctx context.Context, list domain.AdminList, id string) error
	UpdateConfig(ctx context.Context, list domain.AdminList, id string, cfg domain.TokenConfig) error
	Entries(list domain.AdminList) []domain.AdminEntry
}

// Popups is the popup orchestrator surface.
type Popups interface {
	State() popup.State
	Sequences() []popup.Sequence
	Dismiss()
	RetryBlocked() (bool, error)
	OpenToken(ctx context.Context, token domain.Token) capability.OpenResult
}

// Deps are the controller's collaborators.
type Deps struct {
	Backend  Backend
	Settings Settings
	Admins   AdminLists
	Popups   Popups
	Notifier notify.Notifier
	Feed     *router.Feed
	Status   *router.StatusBoard
}

// Controller runs user actions.
type Controller struct {
	backend  Backend
	settings Settings
	admins   AdminLists
	popups   Popups
	notifier notify.Notifier
	feed     *router.Feed
	status   *router.StatusBoard
	clock    clockwork.Clock
	logger   zerolog.Logger
}

// Option configures Controller.
type Option func(*Controller)

// WithClock sets the clock used for status timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a controller.
func New(deps Deps, opts ...Option) *Controller {
	c := &Controller{
		backend:  deps.Backend,
		settings: deps.Settings,
		admins:   deps.Admins,
		popups:   deps.Popups,
		notifier: deps.Notifier,
		feed:     deps.Feed,
		status:   deps.Status,
		clock:    clockwork.NewRealClock(),
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "control").Logger()
	return c
}

// failed notifies and wraps a backend error.
func (c *Controller) failed(action string, err error) error {
	c.logger.Error().Err(err).Str("action", action).Msg("action failed")
	c.notifier.Push(domain.NotifyError, fmt.Sprintf("Failed to %s: %v", action, err))
	return fmt.Errorf("%s: %w", action, err)
}

// invalid notifies about a validation failure.
func (c *Controller) invalid(msg string, err error) error {
	c.notifier.Push(domain.NotifyWarning, msg)
	return err
}

// token returns the feed record for address, or a bare token.
func (c *Controller) token(address string) domain.Token {
	if t, ok := c.feed.Token(address); ok {
		return t
	}
	return domain.Token{TokenAddress: address}
}

// Snipe manually buys tokenAddress. A zero amount means the token's
// effective config amount.
func (c *Controller) Snipe(ctx context.Context, tokenAddress string, amount decimal.Decimal) (api.SnipeResult, error) {
	if tokenAddress == "" {
		return api.SnipeResult{}, c.invalid("Enter a token address", domain.ErrMissingAddress)
	}

	token := c.token(tokenAddress)
	cfg := token.EffectiveConfig(c.settings.GlobalSnipe())
	if !amount.IsZero() {
		cfg.Amount = amount
	}
	if !cfg.Amount.IsPositive() {
		return api.SnipeResult{}, c.invalid("Snipe amount must be greater than 0", domain.ErrInvalidAmount)
	}

	res, err := c.backend.Snipe(ctx, api.SnipeRequestFor(token, cfg))
	if err != nil {
		return api.SnipeResult{}, c.failed("snipe "+tokenAddress, err)
	}
	c.logger.Info().Str("token", tokenAddress).Str("amount", cfg.Amount.String()).Str("signature", res.Signature).Msg("manual snipe sent")
	c.notifier.Push(domain.NotifySuccess, fmt.Sprintf("Snipe sent: %s SOL", cfg.Amount))
	return res, nil
}

// ViewToken opens the manual view page for tokenAddress.
func (c *Controller) ViewToken(ctx context.Context, tokenAddress string) (capability.OpenResult, error) {
	if tokenAddress == "" {
		return capability.OpenResult{}, c.invalid("Enter a token address", domain.ErrMissingAddress)
	}
	res := c.popups.OpenToken(ctx, c.token(tokenAddress))
	if !res.Opened {
		c.notifier.Push(domain.NotifyWarning, "Popup blocked, open the token page manually")
	}
	return res, nil
}

// DismissPopup returns the popup to idle.
func (c *Controller) DismissPopup() {
	c.popups.Dismiss()
}

// RetryBlocked re-attempts a blocked open.
func (c *Controller) RetryBlocked() (bool, error) {
	return c.popups.RetryBlocked()
}

// PopupState returns a snapshot of the popup state.
func (c *Controller) PopupState() popup.Snapshot {
	return popup.Describe(c.popups.State())
}

// Sequences returns the recent open sequences.
func (c *Controller) Sequences() []popup.Sequence {
	return c.popups.Sequences()
}

// Communities lists tracked communities.
func (c *Controller) Communities(ctx context.Context) ([]api.Community, error) {
	out, err := c.backend.Communities(ctx)
	if err != nil {
		return nil, c.failed("load communities", err)
	}
	return out, nil
}

// ClearCommunities clears tracked communities and the local community records.
func (c *Controller) ClearCommunities(ctx context.Context) error {
	if err := c.backend.ClearCommunities(ctx); err != nil {
		return c.failed("clear communities", err)
	}
	c.status.ClearCommunities()
	c.notifier.Push(domain.NotifySuccess, "Communities cleared")
	return nil
}

// Tweets lists tracked tweets.
func (c *Controller) Tweets(ctx context.Context) ([]api.Tweet, error) {
	out, err := c.backend.Tweets(ctx)
	if err != nil {
		return nil, c.failed("load tweets", err)
	}
	return out, nil
}

// ClearTweets clears tracked tweets.
func (c *Controller) ClearTweets(ctx context.Context) error {
	if err := c.backend.ClearTweets(ctx); err != nil {
		return c.failed("clear tweets", err)
	}
	c.notifier.Push(domain.NotifySuccess, "Tweets cleared")
	return nil
}

// Sounds lists uploaded sounds.
func (c *Controller) Sounds(ctx context.Context) ([]string, error) {
	out, err := c.backend.Sounds(ctx)
	if err != nil {
		return nil, c.failed("load sounds", err)
	}
	return out, nil
}

// UploadSound uploads a custom sound.
func (c *Controller) UploadSound(ctx context.Context, name string, data []byte) error {
	if name == "" || len(data) == 0 {
		return c.invalid("Choose a sound file to upload", domain.ErrMissingField)
	}
	if err := c.backend.UploadSound(ctx, name, data); err != nil {
		return c.failed("upload sound", err)
	}
	c.notifier.Push(domain.NotifySuccess, "Uploaded sound "+name)
	return nil
}

// DeleteSound deletes a custom sound.
func (c *Controller) DeleteSound(ctx context.Context, name string) error {
	if name == "" {
		return c.invalid("Choose a sound to delete", domain.ErrMissingField)
	}
	if err := c.backend.DeleteSound(ctx, name); err != nil {
		return c.failed("delete sound", err)
	}
	c.notifier.Push(domain.NotifySuccess, "Deleted sound "+name)
	return nil
}

// StartBot starts detection on the backend.
func (c *Controller) StartBot(ctx context.Context) error {
	if err := c.backend.StartBot(ctx); err != nil {
		return c.failed("start bot", err)
	}
	c.status.SetBot(true, "")
	c.notifier.Push(domain.NotifySuccess, "Bot started")
	return nil
}

// StopBot stops detection on the backend.
func (c *Controller) StopBot(ctx context.Context) error {
	if err := c.backend.StopBot(ctx); err != nil {
		return c.failed("stop bot", err)
	}
	c.status.SetBot(false, "")
	c.notifier.Push(domain.NotifyInfo, "Bot stopped")
	return nil
}

// TwitterLogin asks the backend to log in. The outcome arrives as a
// twitter_login_attempt event.
func (c *Controller) TwitterLogin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return c.invalid("Enter both Twitter username and password", domain.ErrMissingField)
	}
	if err := c.backend.TwitterLogin(ctx, username, password); err != nil {
		return c.failed("log in to Twitter", err)
	}
	c.notifier.Push(domain.NotifyInfo, "Twitter login requested for @"+username)
	return nil
}

// TwitterLogout ends the backend's Twitter session.
func (c *Controller) TwitterLogout(ctx context.Context) error {
	if err := c.backend.TwitterLogout(ctx); err != nil {
		return c.failed("log out of Twitter", err)
	}
	c.status.SetTwitter(router.TwitterSession{CheckedAt: c.clock.Now().UnixMilli()})
	c.notifier.Push(domain.NotifyInfo, "Logged out of Twitter")
	return nil
}

// CheckTwitter refreshes the Twitter session state.
func (c *Controller) CheckTwitter(ctx context.Context) (api.TwitterStatus, error) {
	st, err := c.backend.TwitterStatus(ctx)
	if err != nil {
		return api.TwitterStatus{}, c.failed("check Twitter session", err)
	}
	c.status.SetTwitter(router.TwitterSession{
		LoggedIn:  st.LoggedIn,
		Username:  st.Username,
		CheckedAt: c.clock.Now().UnixMilli(),
	})
	return st, nil
}

// PollStatus refreshes settings and the bot/Twitter status from the backend.
func (c *Controller) PollStatus(ctx context.Context) error {
	st, err := c.settings.Refresh(ctx)
	if err != nil {
		return err
	}
	c.status.ApplyStatus(st.BotRunning, st.Twitter.LoggedIn, st.Twitter.Username, c.clock.Now().UnixMilli())
	return nil
}

// AddAdmin adds an entry to list.
func (c *Controller) AddAdmin(ctx context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error) {
	return c.admins.Add(ctx, list, entry)
}

// RemoveAdmin removes an entry from list.
func (c *Controller) RemoveAdmin(ctx context.Context, list domain.AdminList, id string) error {
	return c.admins.Remove(ctx, list, id)
}

// UpdateAdmin replaces an entry's snipe config.
func (c *Controller) UpdateAdmin(ctx context.Context, list domain.AdminList, id string, cfg domain.TokenConfig) error {
	if !cfg.Amount.IsPositive() {
		return c.invalid("Snipe amount must be greater than 0", domain.ErrInvalidAmount)
	}
	return c.admins.UpdateConfig(ctx, list, id, cfg)
}

// Admins returns the entries of list.
func (c *Controller) Admins(list domain.AdminList) []domain.AdminEntry {
	return c.admins.Entries(list)
}

// ReloadAdmins refetches list from the backend.
func (c *Controller) ReloadAdmins(ctx context.Context, list domain.AdminList) error {
	return c.admins.Load(ctx, list)
}
