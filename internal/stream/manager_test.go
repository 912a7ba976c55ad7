package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type recorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *recorder) Route(_ context.Context, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
	return nil
}

func (r *recorder) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.PingInterval = 50 * time.Millisecond
	cfg.ReadTimeout = 2 * time.Second
	return cfg
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManager_DeliversFramesInOrderSkippingNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		for _, msg := range []string{
			`{"type":"connection_established"}`,
			`not json`,
			`{"type":"info","data":{"message":"hi"}}`,
		} {
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	rec := &recorder{}
	m := NewManager(wsURL(server), rec, WithConfig(testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	waitFor(t, "two frames", func() bool { return len(rec.Frames()) == 2 })

	frames := rec.Frames()
	if frames[0] != `{"type":"connection_established"}` {
		t.Errorf("first frame = %s", frames[0])
	}
	if frames[1] != `{"type":"info","data":{"message":"hi"}}` {
		t.Errorf("second frame = %s", frames[1])
	}
	if got := m.Status(); got != StatusConnected {
		t.Errorf("status = %s, want connected", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := m.Status(); got != StatusDisconnected {
		t.Errorf("status after cancel = %s, want disconnected", got)
	}
}

func TestManager_ReconnectsAfterServerClose(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		n := connections.Add(1)
		if n == 1 {
			// Drop the first connection abruptly.
			return
		}
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"info","data":{"message":"back"}}`))
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	rec := &recorder{}
	m := NewManager(wsURL(server), rec, WithConfig(testConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, "frame after reconnect", func() bool { return len(rec.Frames()) == 1 })

	if n := connections.Load(); n < 2 {
		t.Errorf("connections = %d, want at least 2", n)
	}
	waitFor(t, "connected status", func() bool { return m.Status() == StatusConnected })
}

func TestManager_DialFailureRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := wsURL(server)
	server.Close()

	m := NewManager(url, &recorder{}, WithConfig(testConfig()))
	if got := m.Status(); got != StatusDisconnected {
		t.Fatalf("initial status = %s", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	waitFor(t, "error status", func() bool { return m.Status() == StatusError })

	<-done
	if got := m.Status(); got != StatusDisconnected {
		t.Errorf("status after timeout = %s, want disconnected", got)
	}
}

func TestManager_SendsPings(t *testing.T) {
	var pings atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		c.SetPingHandler(func(data string) error {
			pings.Add(1)
			return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
		})
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := NewManager(wsURL(server), &recorder{}, WithConfig(testConfig()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	waitFor(t, "ping", func() bool { return pings.Load() >= 1 })
}
