package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipe-console/internal/api"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/storage"
	"snipe-console/internal/storage/memory"
)

type fakeRemote struct {
	mu        sync.Mutex
	status    *api.StatusResponse
	statusErr error
	saveErr   error
	modes     []domain.PropagationMode
	saves     map[domain.SettingsDomain]int
	admins    map[domain.AdminList][]domain.AdminEntry
	nextID    int
	onSave    func(domain.SettingsDomain) // runs while the save is in flight
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		saves:  make(map[domain.SettingsDomain]int),
		admins: make(map[domain.AdminList][]domain.AdminEntry),
	}
}

func (f *fakeRemote) Status(context.Context) (*api.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st := *f.status
	return &st, nil
}

func (f *fakeRemote) save(d domain.SettingsDomain) error {
	f.mu.Lock()
	f.saves[d]++
	err, hook := f.saveErr, f.onSave
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return err
}

func (f *fakeRemote) SaveBasic(context.Context, domain.BasicPatch) error {
	return f.save(domain.DomainBasic)
}

func (f *fakeRemote) SaveDetection(context.Context, domain.DetectionPatch) error {
	return f.save(domain.DomainDetection)
}

func (f *fakeRemote) SaveFilter(context.Context, domain.FilterPatch) error {
	return f.save(domain.DomainFilter)
}

func (f *fakeRemote) SaveGlobalSnipe(_ context.Context, _ domain.GlobalSnipePatch, mode domain.PropagationMode) error {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	f.mu.Unlock()
	return f.save(domain.DomainGlobalSnipe)
}

func (f *fakeRemote) Admins(_ context.Context, list domain.AdminList) ([]domain.AdminEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AdminEntry(nil), f.admins[list]...), nil
}

func (f *fakeRemote) AddAdmin(_ context.Context, list domain.AdminList, entry domain.AdminEntry) (domain.AdminEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	entry.ID = fmt.Sprintf("id-%d", f.nextID)
	f.admins[list] = append(f.admins[list], entry)
	return entry, nil
}

func (f *fakeRemote) RemoveAdmin(context.Context, domain.AdminList, string) error { return nil }

func (f *fakeRemote) UpdateAdmin(context.Context, domain.AdminList, string, domain.TokenConfig) error {
	return nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }
func (failingCache) Put(context.Context, string, []byte) error   { return errors.New("disk full") }

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newTestEngine(t *testing.T, remote *fakeRemote, cache storage.SettingsCache) (*Engine, *notify.Buffer) {
	t.Helper()
	buf := notify.NewBuffer(notify.WithClock(clockwork.NewFakeClock()))
	return NewEngine(remote, cache, buf), buf
}

func TestEngine_SaveClearsDirtyAndLeavesOtherDomains(t *testing.T) {
	tests := []struct {
		name   string
		domain domain.SettingsDomain
		save   func(context.Context, *Engine) error
		check  func(*testing.T, domain.Settings)
	}{
		{
			name:   "basic",
			domain: domain.DomainBasic,
			save: func(ctx context.Context, e *Engine) error {
				return e.SaveBasic(ctx, domain.BasicPatch{TokenPageDestination: ptr(domain.DestinationAxiom)})
			},
			check: func(t *testing.T, s domain.Settings) {
				assert.Equal(t, domain.DestinationAxiom, s.Basic.TokenPageDestination)
			},
		},
		{
			name:   "detection",
			domain: domain.DomainDetection,
			save: func(ctx context.Context, e *Engine) error {
				return e.SaveDetection(ctx, domain.DetectionPatch{DetectionOnlyMode: ptr(true)})
			},
			check: func(t *testing.T, s domain.Settings) {
				assert.True(t, s.Detection.DetectionOnlyMode)
			},
		},
		{
			name:   "filter",
			domain: domain.DomainFilter,
			save: func(ctx context.Context, e *Engine) error {
				return e.SaveFilter(ctx, domain.FilterPatch{TwitterFilter: ptr(domain.TwitterFilterCommunity)})
			},
			check: func(t *testing.T, s domain.Settings) {
				assert.Equal(t, domain.TwitterFilterCommunity, s.Filter.TwitterFilter)
			},
		},
		{
			name:   "global snipe",
			domain: domain.DomainGlobalSnipe,
			save: func(ctx context.Context, e *Engine) error {
				return e.SaveGlobalSnipe(ctx, domain.GlobalSnipePatch{Amount: ptr(dec("0.75")), MEVProtection: ptr(true)})
			},
			check: func(t *testing.T, s domain.Settings) {
				assert.True(t, s.GlobalSnipe.Amount.Equal(dec("0.75")))
				assert.True(t, s.GlobalSnipe.MEVProtection)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, newFakeRemote(), memory.NewSettingsCache())
			before := e.Confirmed()

			require.NoError(t, tt.save(context.Background(), e))

			assert.False(t, e.IsDirty(tt.domain))
			after := e.Confirmed()
			tt.check(t, after)

			for _, d := range domain.AllDomains() {
				if d == tt.domain {
					continue
				}
				assert.False(t, e.IsDirty(d), "domain %s", d)
				assert.True(t, sameDomain(before, after, d), "domain %s changed", d)
			}
		})
	}
}

func sameDomain(a, b domain.Settings, d domain.SettingsDomain) bool {
	switch d {
	case domain.DomainBasic:
		return a.Basic.Equal(b.Basic)
	case domain.DomainDetection:
		return a.Detection.Equal(b.Detection)
	case domain.DomainFilter:
		return a.Filter.Equal(b.Filter)
	default:
		return a.GlobalSnipe.Equal(b.GlobalSnipe)
	}
}

func TestEngine_SaveKeepsUnsavedEditsInOtherDomains(t *testing.T) {
	e, _ := newTestEngine(t, newFakeRemote(), nil)
	ctx := context.Background()

	e.EditFilter(domain.FilterPatch{ShowLetsbonk: ptr(false)})
	require.True(t, e.IsDirty(domain.DomainFilter))

	require.NoError(t, e.SaveBasic(ctx, domain.BasicPatch{SoundEnabled: ptr(false)}))

	assert.True(t, e.IsDirty(domain.DomainFilter))
	assert.True(t, e.Confirmed().Filter.ShowLetsbonk)
	assert.False(t, e.Draft().Filter.ShowLetsbonk)
}

func TestEngine_SaveFailureKeepsConfirmed(t *testing.T) {
	remote := newFakeRemote()
	remote.saveErr = errors.New("backend down")
	e, buf := newTestEngine(t, remote, nil)

	err := e.SaveDetection(context.Background(), domain.DetectionPatch{SnipeAllTokens: ptr(true)})
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.saveErr)

	assert.False(t, e.Confirmed().Detection.SnipeAllTokens)
	assert.True(t, e.Draft().Detection.SnipeAllTokens)
	assert.True(t, e.IsDirty(domain.DomainDetection))

	items := buf.List()
	require.Len(t, items, 1)
	assert.Equal(t, domain.NotifyError, items[0].Type)
	assert.Contains(t, items[0].Message, "backend down")

	// Retry succeeds with the draft still carrying the edit.
	remote.mu.Lock()
	remote.saveErr = nil
	remote.mu.Unlock()
	require.NoError(t, e.SaveDetection(context.Background(), domain.DetectionPatch{}))
	assert.True(t, e.Confirmed().Detection.SnipeAllTokens)
	assert.False(t, e.IsDirty(domain.DomainDetection))
}

func TestEngine_SaveWritesCacheKeys(t *testing.T) {
	cache := memory.NewSettingsCache()
	e, _ := newTestEngine(t, newFakeRemote(), cache)
	ctx := context.Background()

	require.NoError(t, e.SaveGlobalSnipe(ctx, domain.GlobalSnipePatch{Amount: ptr(dec("0.3"))}))
	require.NoError(t, e.SaveFilter(ctx, domain.FilterPatch{ShowPumpfun: ptr(false)}))

	raw, err := cache.Get(ctx, storage.KeySettings)
	require.NoError(t, err)
	var full domain.Settings
	require.NoError(t, json.Unmarshal(raw, &full))
	assert.True(t, full.GlobalSnipe.Amount.Equal(dec("0.3")))
	assert.False(t, full.Filter.ShowPumpfun)

	raw, err = cache.Get(ctx, storage.KeyGlobalSnipe)
	require.NoError(t, err)
	var gs domain.GlobalSnipeSettings
	require.NoError(t, json.Unmarshal(raw, &gs))
	assert.True(t, gs.Amount.Equal(dec("0.3")))

	raw, err = cache.Get(ctx, storage.KeyFilter)
	require.NoError(t, err)
	var f domain.FilterSettings
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.False(t, f.ShowPumpfun)
}

func TestEngine_CacheFailureNotSurfaced(t *testing.T) {
	e, buf := newTestEngine(t, newFakeRemote(), failingCache{})

	require.NoError(t, e.SaveBasic(context.Background(), domain.BasicPatch{AlertSound: ptr("chime.wav")}))

	for _, n := range buf.List() {
		assert.NotEqual(t, domain.NotifyError, n.Type)
	}
	assert.Equal(t, "chime.wav", e.Confirmed().Basic.AlertSound)
}

func TestEngine_BootstrapSeedsFromCacheThenRemote(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewSettingsCache()

	cached := domain.DefaultSettings()
	cached.Basic.TokenPageDestination = domain.DestinationAxiom
	cached.GlobalSnipe.Amount = dec("0.2")
	raw, _ := json.Marshal(cached)
	require.NoError(t, cache.Put(ctx, storage.KeySettings, raw))

	partial := cached.GlobalSnipe
	partial.Amount = dec("0.3")
	raw, _ = json.Marshal(partial)
	require.NoError(t, cache.Put(ctx, storage.KeyGlobalSnipe, raw))

	remote := newFakeRemote()
	remote.statusErr = errors.New("connection refused")
	e, _ := newTestEngine(t, remote, cache)

	_, err := e.Bootstrap(ctx)
	require.Error(t, err)

	got := e.Confirmed()
	assert.Equal(t, domain.DestinationAxiom, got.Basic.TokenPageDestination)
	assert.True(t, got.GlobalSnipe.Amount.Equal(dec("0.3")))
	assert.False(t, e.IsDirty(domain.DomainGlobalSnipe))

	// User touches one filter field before the status fetch lands.
	e.EditFilter(domain.FilterPatch{ShowLetsbonk: ptr(false)})

	server := domain.DefaultSettings()
	server.Filter.ShowPumpfun = false
	server.Filter.ShowLetsbonk = true
	server.GlobalSnipe.Amount = dec("1")
	remote.mu.Lock()
	remote.statusErr = nil
	remote.status = &api.StatusResponse{BotRunning: true, Settings: mustJSON(t, server)}
	remote.mu.Unlock()

	st, err := e.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, st.BotRunning)

	assert.True(t, e.Confirmed().GlobalSnipe.Amount.Equal(dec("1")))
	assert.Equal(t, domain.DestinationNeoBullX, e.Draft().Basic.TokenPageDestination)
	assert.False(t, e.Draft().Filter.ShowPumpfun, "untouched field follows the server")
	assert.False(t, e.Draft().Filter.ShowLetsbonk, "touched field keeps the edit")
	assert.True(t, e.IsDirty(domain.DomainFilter))
}

func seedAdmins(remote *fakeRemote) {
	old := domain.TokenConfig{Amount: dec("0.1"), Fees: dec("5"), PriorityFee: dec("0.0005"), Sound: "custom.mp3"}
	remote.admins[domain.ListPrimary] = []domain.AdminEntry{{ID: "p1", Value: "wallet1", Config: ptr(old)}}
	remote.admins[domain.ListSecondary] = []domain.AdminEntry{{ID: "s1", Value: "@dev", Config: ptr(old)}}
}

func TestEngine_GlobalSnipePropagatesToAllExisting(t *testing.T) {
	remote := newFakeRemote()
	seedAdmins(remote)
	e, _ := newTestEngine(t, remote, nil)
	ctx := context.Background()

	require.NoError(t, e.Lists().LoadAll(ctx))
	require.NoError(t, e.SetPropagationMode(domain.PropagateAllExisting))

	err := e.SaveGlobalSnipe(ctx, domain.GlobalSnipePatch{
		Amount:      ptr(dec("0.5")),
		Fees:        ptr(dec("20")),
		PriorityFee: ptr(dec("0.002")),
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.PropagationMode{domain.PropagateAllExisting}, remote.modes)

	var all []domain.AdminEntry
	all = append(all, e.Lists().Entries(domain.ListPrimary)...)
	all = append(all, e.Lists().Entries(domain.ListSecondary)...)
	require.Len(t, all, 2)
	for _, entry := range all {
		require.NotNil(t, entry.Config)
		assert.True(t, entry.Config.Amount.Equal(dec("0.5")), entry.ID)
		assert.True(t, entry.Config.Fees.Equal(dec("20")), entry.ID)
		assert.True(t, entry.Config.PriorityFee.Equal(dec("0.002")), entry.ID)
		assert.Equal(t, "custom.mp3", entry.Config.Sound, entry.ID)
	}
}

func TestEngine_GlobalSnipeNewOnlyLeavesExisting(t *testing.T) {
	remote := newFakeRemote()
	seedAdmins(remote)
	e, _ := newTestEngine(t, remote, nil)
	ctx := context.Background()

	require.NoError(t, e.Lists().LoadAll(ctx))

	// The mode at save time wins over the mode at edit time.
	require.NoError(t, e.SetPropagationMode(domain.PropagateAllExisting))
	e.EditGlobalSnipe(domain.GlobalSnipePatch{Amount: ptr(dec("0.5"))})
	require.NoError(t, e.SetPropagationMode(domain.PropagateNewOnly))
	require.NoError(t, e.SaveGlobalSnipe(ctx, domain.GlobalSnipePatch{}))

	assert.Equal(t, []domain.PropagationMode{domain.PropagateNewOnly}, remote.modes)
	assert.True(t, e.GlobalSnipe().Amount.Equal(dec("0.5")))

	existing := e.Lists().Entries(domain.ListPrimary)
	require.Len(t, existing, 1)
	assert.True(t, existing[0].Config.Amount.Equal(dec("0.1")))

	added, err := e.Lists().Add(ctx, domain.ListSecondary, domain.AdminEntry{Value: "@newdev"})
	require.NoError(t, err)
	require.NotNil(t, added.Config)
	assert.True(t, added.Config.Amount.Equal(dec("0.5")))
	assert.Len(t, e.Lists().Entries(domain.ListSecondary), 2)
}

func TestEngine_GlobalSnipeValidation(t *testing.T) {
	remote := newFakeRemote()
	e, buf := newTestEngine(t, remote, nil)

	err := e.SaveGlobalSnipe(context.Background(), domain.GlobalSnipePatch{Amount: ptr(decimal.Zero)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Zero(t, remote.saves[domain.DomainGlobalSnipe])
	assert.Equal(t, 1, buf.Len())
}

func TestEngine_SetPropagationModeRejectsUnknown(t *testing.T) {
	e, _ := newTestEngine(t, newFakeRemote(), nil)

	assert.ErrorIs(t, e.SetPropagationMode("sometimes"), domain.ErrUnknownMode)
	assert.Equal(t, domain.PropagateNewOnly, e.PropagationMode())
}

func TestEngine_ApplyRemoteResetsUntouchedDraft(t *testing.T) {
	e, _ := newTestEngine(t, newFakeRemote(), nil)

	e.EditBasic(domain.BasicPatch{AlertSound: ptr("mine.mp3")})

	pushed := domain.DefaultSettings()
	pushed.Basic.SoundEnabled = false
	pushed.Basic.AlertSound = "theirs.mp3"
	e.ApplyRemote(context.Background(), pushed)

	assert.False(t, e.Draft().Basic.SoundEnabled)
	assert.Equal(t, "mine.mp3", e.Draft().Basic.AlertSound)
	assert.Equal(t, "theirs.mp3", e.Confirmed().Basic.AlertSound)
}

func TestEngine_RefreshWithoutSettingsKeepsConfirmed(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewSettingsCache()
	remote := newFakeRemote()
	remote.status = &api.StatusResponse{BotRunning: true}
	e, _ := newTestEngine(t, remote, cache)
	before := e.Confirmed()

	st, err := e.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, st.BotRunning)

	after := e.Confirmed()
	assert.True(t, after.GlobalSnipe.Amount.Equal(dec("0.01")))
	assert.Equal(t, before.Basic, after.Basic)
	assert.Equal(t, before.Filter, after.Filter)

	_, err = cache.Get(ctx, storage.KeySettings)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing to persist")
}

func TestEngine_RefreshOverlaysPartialSettings(t *testing.T) {
	remote := newFakeRemote()
	remote.status = &api.StatusResponse{
		Settings: json.RawMessage(`{"globalSnipe":{"amount":"0.7"},"filter":{"showLetsbonk":false}}`),
	}
	e, _ := newTestEngine(t, remote, nil)

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)

	got := e.Confirmed()
	assert.True(t, got.GlobalSnipe.Amount.Equal(dec("0.7")))
	assert.True(t, got.GlobalSnipe.Fees.Equal(dec("10")), "absent fields keep their value")
	assert.False(t, got.Filter.ShowLetsbonk)
	assert.True(t, got.Filter.ShowPumpfun)
	assert.Equal(t, domain.DestinationNeoBullX, got.Basic.TokenPageDestination)
	assert.True(t, got.Basic.SoundEnabled)
}

func TestEngine_RefreshIgnoresMalformedSettings(t *testing.T) {
	remote := newFakeRemote()
	remote.status = &api.StatusResponse{
		BotRunning: true,
		Settings:   json.RawMessage(`{"basic":{"tokenPageDestination":"axiom"},"globalSnipe":{"amount":"lots"}}`),
	}
	e, _ := newTestEngine(t, remote, nil)

	st, err := e.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, st.BotRunning)
	assert.Equal(t, domain.DestinationNeoBullX, e.Confirmed().Basic.TokenPageDestination)
}

func TestEngine_EditDuringSaveStaysDirty(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	e, _ := newTestEngine(t, remote, nil)

	remote.onSave = func(domain.SettingsDomain) {
		// Lands while the save is in flight: a new field and a re-edit.
		e.EditBasic(domain.BasicPatch{
			AlertSound:           ptr("chime.mp3"),
			TokenPageDestination: ptr(domain.DestinationNeoBullX),
		})
	}
	require.NoError(t, e.SaveBasic(ctx, domain.BasicPatch{TokenPageDestination: ptr(domain.DestinationAxiom)}))
	remote.onSave = nil

	assert.Equal(t, domain.DestinationAxiom, e.Confirmed().Basic.TokenPageDestination)
	assert.Equal(t, domain.DestinationNeoBullX, e.Draft().Basic.TokenPageDestination)
	assert.Equal(t, "chime.mp3", e.Draft().Basic.AlertSound)
	assert.True(t, e.IsDirty(domain.DomainBasic))

	// A later server push must not wipe the in-flight edits.
	server := e.Confirmed()
	server.Basic.SoundEnabled = false
	e.ApplyRemote(ctx, server)

	draft := e.Draft().Basic
	assert.Equal(t, domain.DestinationNeoBullX, draft.TokenPageDestination)
	assert.Equal(t, "chime.mp3", draft.AlertSound)
	assert.False(t, draft.SoundEnabled, "untouched field follows the server")
}

func TestEngine_SaveClearsOnlySentFields(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	e, _ := newTestEngine(t, remote, nil)

	require.NoError(t, e.SaveFilter(ctx, domain.FilterPatch{ShowPumpfun: ptr(false)}))
	assert.False(t, e.IsDirty(domain.DomainFilter))

	server := e.Confirmed()
	server.Filter.ShowPumpfun = true
	e.ApplyRemote(ctx, server)
	assert.True(t, e.Draft().Filter.ShowPumpfun, "saved field is no longer an edit")
}

func TestEngine_LoadCacheSkipsCorruptFullBlob(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewSettingsCache()
	require.NoError(t, cache.Put(ctx, storage.KeySettings,
		[]byte(`{"basic":{"tokenPageDestination":"axiom"},"globalSnipe":{"amount":"lots"}}`)))
	filter := domain.DefaultSettings().Filter
	filter.ShowLetsbonk = false
	require.NoError(t, cache.Put(ctx, storage.KeyFilter, mustJSON(t, filter)))

	e, _ := newTestEngine(t, newFakeRemote(), cache)
	require.True(t, e.LoadCache(ctx))

	got := e.Confirmed()
	assert.Equal(t, domain.DestinationNeoBullX, got.Basic.TokenPageDestination, "corrupt blob must not leak")
	assert.True(t, got.GlobalSnipe.Amount.Equal(dec("0.01")))
	assert.False(t, got.Filter.ShowLetsbonk)
}
