// Package stream maintains the persistent event channel to the backend and
// hands every received frame to a FrameHandler.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snipe-console/internal/observability"
)

// Status is the connection state of the event channel.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

var allStatuses = []string{
	string(StatusDisconnected),
	string(StatusConnecting),
	string(StatusConnected),
	string(StatusError),
}

// FrameHandler consumes raw JSON frames in arrival order.
type FrameHandler interface {
	Route(ctx context.Context, frame []byte) error
}

// Config configures connection behavior.
type Config struct {
	// ReconnectDelay is the fixed wait between a drop and the next attempt.
	ReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout bounds control frame writes.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:   3 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      90 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Manager owns the websocket connection. Frames are delivered on the
// goroutine running Run, one at a time. There is no replay of frames missed
// while disconnected.
type Manager struct {
	endpoint string
	handler  FrameHandler
	config   Config
	clock    clockwork.Clock
	logger   zerolog.Logger

	mu     sync.RWMutex
	status Status
}

// Option configures Manager.
type Option func(*Manager)

// WithConfig overrides the default configuration.
func WithConfig(c Config) Option {
	return func(m *Manager) {
		m.config = c
	}
}

// WithClock sets the clock used for reconnect waits and pings.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a disconnected manager for endpoint.
func NewManager(endpoint string, handler FrameHandler, opts ...Option) *Manager {
	m := &Manager{
		endpoint: endpoint,
		handler:  handler,
		config:   DefaultConfig(),
		clock:    clockwork.NewRealClock(),
		logger:   log.Logger,
		status:   StatusDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "stream").Str("endpoint", endpoint).Logger()
	observability.SetConnectionStatus(string(StatusDisconnected), allStatuses)
	return m
}

// Status returns the current connection status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	prev := m.status
	m.status = s
	m.mu.Unlock()

	if prev != s {
		observability.SetConnectionStatus(string(s), allStatuses)
		m.logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("connection status")
	}
}

// Run connects and reads until ctx is cancelled, reconnecting after every
// close or error with a fixed delay. It returns nil once ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			m.setStatus(StatusDisconnected)
			return nil
		}

		if err != nil {
			m.setStatus(StatusError)
			m.logger.Warn().Err(err).Dur("retry_in", m.config.ReconnectDelay).Msg("event channel lost")
		} else {
			m.setStatus(StatusDisconnected)
			m.logger.Info().Dur("retry_in", m.config.ReconnectDelay).Msg("event channel closed")
		}

		select {
		case <-ctx.Done():
			m.setStatus(StatusDisconnected)
			return nil
		case <-m.clock.After(m.config.ReconnectDelay):
		}
		observability.RecordReconnect()
	}
}

// session runs one connection. A nil error means the peer closed normally.
func (m *Manager) session(ctx context.Context) error {
	m.setStatus(StatusConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, m.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	m.setStatus(StatusConnected)
	m.logger.Info().Msg("event channel connected")

	conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.pingLoop(ctx, conn, done)
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	return m.readLoop(ctx, conn)
}

// readLoop delivers frames until the connection fails.
func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(m.config.ReadTimeout))

		if !json.Valid(message) {
			observability.RecordMalformedFrame()
			m.logger.Warn().Int("bytes", len(message)).Msg("skipping non-JSON frame")
			continue
		}

		// Handler errors are per-event; the channel stays up.
		if err := m.handler.Route(ctx, message); err != nil {
			m.logger.Debug().Err(err).Msg("frame not handled")
		}
	}
}

// pingLoop sends periodic pings and closes the connection when ctx is done,
// which unblocks the reader.
func (m *Manager) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := m.clock.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			deadline := time.Now().Add(m.config.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
			return
		case <-ticker.Chan():
			deadline := time.Now().Add(m.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				m.logger.Debug().Err(err).Msg("ping failed")
			}
		}
	}
}
