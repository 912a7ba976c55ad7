package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snipe-console/internal/api"
	"snipe-console/internal/capability"
	"snipe-console/internal/dedup"
	"snipe-console/internal/domain"
	"snipe-console/internal/notify"
	"snipe-console/internal/popup"
	"snipe-console/internal/resolver"
)

type stubResolver struct{}

func (stubResolver) Resolve(context.Context, string) (resolver.Resolution, error) {
	return resolver.Resolution{}, nil
}

type stubPrefs struct{}

func (stubPrefs) Destination() domain.Destination { return domain.DestinationNeoBullX }

func (stubPrefs) GlobalSnipe() domain.GlobalSnipeSettings {
	return domain.DefaultSettings().GlobalSnipe
}

type stubSniper struct{}

func (stubSniper) Snipe(context.Context, api.SnipeRequest) (api.SnipeResult, error) {
	return api.SnipeResult{}, nil
}

type countingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *countingOpener) Open(url string) capability.OpenResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return capability.OpenResult{Opened: true}
}

func (o *countingOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.urls)
}

func TestRoute_RepeatedPrimaryDetectionOpensOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	buf := notify.NewBuffer(notify.WithClock(clock))
	opener := &countingOpener{}

	orch := popup.New(popup.Deps{
		Guard:    dedup.NewGuard(clock),
		Resolver: stubResolver{},
		Prefs:    stubPrefs{},
		Sniper:   stubSniper{},
		Opener:   opener,
		Notifier: buf,
	}, popup.WithClock(clock))

	r := New(Deps{
		Popups:   orch,
		Settings: &fakeSettings{s: domain.DefaultSettings()},
		Admins:   &fakeAdmins{},
		Sound:    &fakeSound{},
		Notifier: buf,
	}, WithClock(clock))

	payload := map[string]interface{}{
		"tokenAddress": "ABC123",
		"symbol":       "ABC",
		"matchType":    "primary_admin",
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Route(context.Background(), frame(t, domain.KindTokenDetected, payload)))
	}

	require.Len(t, orch.Sequences(), 1)
	assert.Equal(t, 1, r.Feed().Len())

	clock.Advance(500 * time.Millisecond)
	require.Eventually(t, func() bool {
		return opener.Count() == 1
	}, time.Second, 5*time.Millisecond)

	clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, opener.Count())
	assert.Equal(t, "https://neo.bullx.io/terminal?chainId=1399811149&address=ABC123", opener.urls[0])
}
