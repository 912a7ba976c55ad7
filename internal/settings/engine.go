// Package settings reconciles the user's draft settings against the values
// last confirmed by the backend, domain by domain.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snipe-console/internal/api"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/observability"
	"snipe-console/internal/storage"
)

// Remote is the subset of the backend API the engine uses.
type Remote interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	SaveBasic(ctx context.Context, patch domain.BasicPatch) error
	SaveDetection(ctx context.Context, patch domain.DetectionPatch) error
	SaveFilter(ctx context.Context, patch domain.FilterPatch) error
	SaveGlobalSnipe(ctx context.Context, patch domain.GlobalSnipePatch, mode domain.PropagationMode) error
	AdminRemote
}

var _ Remote = (*api.Client)(nil)

// Engine holds draft and confirmed values per settings domain.
//
// Edits are recorded as per-domain patches of touched fields. When the
// backend pushes or returns new values, the confirmed settings are replaced
// and the draft is rebuilt as remote values with the session's edits replayed
// on top, so only untouched fields follow the server.
type Engine struct {
	mu        sync.RWMutex
	writeMu   sync.Mutex // serializes cache writes
	draft     domain.Settings
	confirmed domain.Settings
	mode      domain.PropagationMode

	basicEdits       domain.BasicPatch
	detectionEdits   domain.DetectionPatch
	filterEdits      domain.FilterPatch
	globalSnipeEdits domain.GlobalSnipePatch

	remote   Remote
	cache    storage.SettingsCache
	notifier notify.Notifier
	lists    *Lists
	logger   zerolog.Logger
}

// Option configures Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithInitial sets the settings used before the cache or backend answer.
func WithInitial(s domain.Settings) Option {
	return func(e *Engine) {
		e.draft = s
		e.confirmed = s
	}
}

// NewEngine creates an engine seeded with domain.DefaultSettings.
// cache may be nil, in which case nothing is persisted locally.
func NewEngine(remote Remote, cache storage.SettingsCache, notifier notify.Notifier, opts ...Option) *Engine {
	e := &Engine{
		draft:     domain.DefaultSettings(),
		confirmed: domain.DefaultSettings(),
		mode:      domain.PropagateNewOnly,
		remote:    remote,
		cache:     cache,
		notifier:  notifier,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "settings").Logger()
	e.lists = newLists(remote, notifier, e.GlobalSnipe, e.logger)
	return e
}

// Lists returns the admin lists owned by the engine.
func (e *Engine) Lists() *Lists {
	return e.lists
}

// Draft returns a copy of the draft settings.
func (e *Engine) Draft() domain.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.draft
}

// Confirmed returns a copy of the confirmed settings.
func (e *Engine) Confirmed() domain.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.confirmed
}

// GlobalSnipe returns the confirmed global snipe settings.
func (e *Engine) GlobalSnipe() domain.GlobalSnipeSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.confirmed.GlobalSnipe
}

// Destination returns the confirmed token page destination.
func (e *Engine) Destination() domain.Destination {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.confirmed.Basic.TokenPageDestination
}

// IsDirty reports whether the draft of d differs from the confirmed value.
func (e *Engine) IsDirty(d domain.SettingsDomain) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	switch d {
	case domain.DomainBasic:
		return !e.draft.Basic.Equal(e.confirmed.Basic)
	case domain.DomainDetection:
		return !e.draft.Detection.Equal(e.confirmed.Detection)
	case domain.DomainFilter:
		return !e.draft.Filter.Equal(e.confirmed.Filter)
	case domain.DomainGlobalSnipe:
		return !e.draft.GlobalSnipe.Equal(e.confirmed.GlobalSnipe)
	}
	return false
}

// PropagationMode returns the mode the next global snipe save will use.
func (e *Engine) PropagationMode() domain.PropagationMode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.mode
}

// SetPropagationMode selects how the next global snipe save is applied.
// Not persisted.
func (e *Engine) SetPropagationMode(m domain.PropagationMode) error {
	if !m.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMode, m)
	}
	e.mu.Lock()
	e.mode = m
	e.mu.Unlock()
	return nil
}

func (e *Engine) EditBasic(p domain.BasicPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.basicEdits = e.basicEdits.Merge(p)
	e.draft.Basic = p.Apply(e.draft.Basic)
}

func (e *Engine) EditDetection(p domain.DetectionPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detectionEdits = e.detectionEdits.Merge(p)
	e.draft.Detection = p.Apply(e.draft.Detection)
}

func (e *Engine) EditFilter(p domain.FilterPatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filterEdits = e.filterEdits.Merge(p)
	e.draft.Filter = p.Apply(e.draft.Filter)
}

func (e *Engine) EditGlobalSnipe(p domain.GlobalSnipePatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globalSnipeEdits = e.globalSnipeEdits.Merge(p)
	e.draft.GlobalSnipe = p.Apply(e.draft.GlobalSnipe)
}

// SaveBasic records p as an edit and persists every touched basic field.
func (e *Engine) SaveBasic(ctx context.Context, p domain.BasicPatch) error {
	e.mu.Lock()
	e.basicEdits = e.basicEdits.Merge(p)
	e.draft.Basic = p.Apply(e.draft.Basic)
	send := e.basicEdits
	e.mu.Unlock()

	if err := e.remote.SaveBasic(ctx, send); err != nil {
		return e.saveFailed(domain.DomainBasic, err)
	}

	e.mu.Lock()
	e.confirmed.Basic = send.Apply(e.confirmed.Basic)
	e.basicEdits = e.basicEdits.Without(send)
	e.draft.Basic = e.basicEdits.Apply(e.confirmed.Basic)
	e.mu.Unlock()

	e.saved(ctx, domain.DomainBasic)
	return nil
}

// SaveDetection records p as an edit and persists every touched detection field.
func (e *Engine) SaveDetection(ctx context.Context, p domain.DetectionPatch) error {
	e.mu.Lock()
	e.detectionEdits = e.detectionEdits.Merge(p)
	e.draft.Detection = p.Apply(e.draft.Detection)
	send := e.detectionEdits
	e.mu.Unlock()

	if err := e.remote.SaveDetection(ctx, send); err != nil {
		return e.saveFailed(domain.DomainDetection, err)
	}

	e.mu.Lock()
	e.confirmed.Detection = send.Apply(e.confirmed.Detection)
	e.detectionEdits = e.detectionEdits.Without(send)
	e.draft.Detection = e.detectionEdits.Apply(e.confirmed.Detection)
	e.mu.Unlock()

	e.saved(ctx, domain.DomainDetection)
	return nil
}

// SaveFilter records p as an edit and persists every touched filter field.
func (e *Engine) SaveFilter(ctx context.Context, p domain.FilterPatch) error {
	e.mu.Lock()
	e.filterEdits = e.filterEdits.Merge(p)
	e.draft.Filter = p.Apply(e.draft.Filter)
	send := e.filterEdits
	e.mu.Unlock()

	if err := e.remote.SaveFilter(ctx, send); err != nil {
		return e.saveFailed(domain.DomainFilter, err)
	}

	e.mu.Lock()
	e.confirmed.Filter = send.Apply(e.confirmed.Filter)
	e.filterEdits = e.filterEdits.Without(send)
	e.draft.Filter = e.filterEdits.Apply(e.confirmed.Filter)
	e.mu.Unlock()

	e.saved(ctx, domain.DomainFilter)
	return nil
}

// SaveGlobalSnipe persists every touched global snipe field. The propagation
// mode is read here, at save time. With all_existing, every entry in both
// admin lists takes the new amount, fees and priority fee once the backend
// accepts the save.
func (e *Engine) SaveGlobalSnipe(ctx context.Context, p domain.GlobalSnipePatch) error {
	if err := p.Validate(); err != nil {
		e.notifier.Push(domain.NotifyError, "Invalid global snipe settings: "+err.Error())
		return err
	}

	e.mu.Lock()
	e.globalSnipeEdits = e.globalSnipeEdits.Merge(p)
	e.draft.GlobalSnipe = p.Apply(e.draft.GlobalSnipe)
	send := e.globalSnipeEdits
	mode := e.mode
	e.mu.Unlock()

	if err := e.remote.SaveGlobalSnipe(ctx, send, mode); err != nil {
		return e.saveFailed(domain.DomainGlobalSnipe, err)
	}

	e.mu.Lock()
	e.confirmed.GlobalSnipe = send.Apply(e.confirmed.GlobalSnipe)
	e.globalSnipeEdits = e.globalSnipeEdits.Without(send)
	e.draft.GlobalSnipe = e.globalSnipeEdits.Apply(e.confirmed.GlobalSnipe)
	global := e.confirmed.GlobalSnipe
	e.mu.Unlock()

	if mode == domain.PropagateAllExisting {
		n := e.lists.applyGlobal(global)
		e.logger.Info().Int("entries", n).Msg("global snipe applied to existing admin entries")
	}

	e.saved(ctx, domain.DomainGlobalSnipe)
	return nil
}

func (e *Engine) saveFailed(d domain.SettingsDomain, err error) error {
	observability.RecordSettingsSave(string(d), "error")
	e.logger.Error().Err(err).Str("domain", string(d)).Msg("save failed")
	e.notifier.Push(domain.NotifyError, fmt.Sprintf("Failed to save %s settings: %v", d, err))
	return fmt.Errorf("save %s settings: %w", d, err)
}

func (e *Engine) saved(ctx context.Context, d domain.SettingsDomain) {
	observability.RecordSettingsSave(string(d), "ok")
	e.notifier.Push(domain.NotifySuccess, fmt.Sprintf("%s settings saved", d))
	e.writeCache(ctx, d)
}

// writeCache persists the current confirmed settings under the full key,
// plus the partial key for domains that have one. Writes are serialized and
// always take the latest confirmed value, so a slow write never lands after
// a newer one. Failures are logged only.
func (e *Engine) writeCache(ctx context.Context, domains ...domain.SettingsDomain) {
	if e.cache == nil {
		return
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	s := e.Confirmed()
	e.put(ctx, storage.KeySettings, s)
	for _, d := range domains {
		switch d {
		case domain.DomainGlobalSnipe:
			e.put(ctx, storage.KeyGlobalSnipe, s.GlobalSnipe)
		case domain.DomainFilter:
			e.put(ctx, storage.KeyFilter, s.Filter)
		}
	}
}

func (e *Engine) put(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err == nil {
		err = e.cache.Put(ctx, key, data)
	}
	if err != nil {
		observability.RecordCacheError("put")
		e.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// LoadCache seeds confirmed (and the untouched draft) from the local cache.
// The full object is read first; the partial keys overlay it.
func (e *Engine) LoadCache(ctx context.Context) bool {
	if e.cache == nil {
		return false
	}

	e.mu.RLock()
	s := e.confirmed
	e.mu.RUnlock()

	// Each key decodes into its own copy so a bad blob leaves s untouched.
	found := false
	if full := s; e.get(ctx, storage.KeySettings, &full) {
		s, found = full, true
	}
	if gs := s.GlobalSnipe; e.get(ctx, storage.KeyGlobalSnipe, &gs) {
		s.GlobalSnipe, found = gs, true
	}
	if f := s.Filter; e.get(ctx, storage.KeyFilter, &f) {
		s.Filter, found = f, true
	}
	if !found {
		return false
	}

	e.mu.Lock()
	e.replace(s)
	e.mu.Unlock()

	e.logger.Debug().Msg("settings seeded from cache")
	return true
}

func (e *Engine) get(ctx context.Context, key string, v interface{}) bool {
	data, err := e.cache.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		observability.RecordCacheError("get")
		e.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return false
	}
	return true
}

// Bootstrap seeds from the cache, then overwrites with a one-shot status fetch.
func (e *Engine) Bootstrap(ctx context.Context) (*api.StatusResponse, error) {
	e.LoadCache(ctx)
	return e.Refresh(ctx)
}

// Refresh fetches status from the backend and applies its settings.
func (e *Engine) Refresh(ctx context.Context) (*api.StatusResponse, error) {
	st, err := e.remote.Status(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("status fetch failed")
		e.notifier.Push(domain.NotifyError, "Failed to fetch status: "+err.Error())
		return nil, fmt.Errorf("fetch status: %w", err)
	}

	s, ok, err := st.SettingsOver(e.Confirmed())
	switch {
	case err != nil:
		e.logger.Warn().Err(err).Msg("ignoring malformed settings in status reply")
	case ok:
		e.ApplyRemote(ctx, s)
	default:
		e.logger.Debug().Msg("status reply carried no settings")
	}
	return st, nil
}

// ApplyRemote replaces confirmed with s and resets every draft field the
// user has not touched this session. The cache is updated in the background,
// so callers on the event path never wait on storage.
func (e *Engine) ApplyRemote(ctx context.Context, s domain.Settings) {
	e.mu.Lock()
	e.replace(s)
	e.mu.Unlock()

	if e.cache != nil {
		go e.writeCache(context.WithoutCancel(ctx), domain.DomainGlobalSnipe, domain.DomainFilter)
	}
}

// replace must be called with mu held.
func (e *Engine) replace(s domain.Settings) {
	e.confirmed = s
	e.draft = domain.Settings{
		Basic:       e.basicEdits.Apply(s.Basic),
		Detection:   e.detectionEdits.Apply(s.Detection),
		Filter:      e.filterEdits.Apply(s.Filter),
		GlobalSnipe: e.globalSnipeEdits.Apply(s.GlobalSnipe),
	}
}
