// Package capability holds the host capabilities the console depends on:
// opening a URL externally and playing a sound. Implementations are chosen
// once at startup.
package capability

import (
	"io"
	"os"
	"runtime"

	"github.com/pkg/browser"
	"github.com/rs/zerolog"
)

// OpenResult reports whether an external window was opened.
type OpenResult struct {
	Opened bool
	Reason string
}

// Opener opens a URL outside the console.
type Opener interface {
	Open(url string) OpenResult
}

// BrowserOpener opens URLs in the system browser.
type BrowserOpener struct {
	logger zerolog.Logger
}

// NewBrowserOpener creates a BrowserOpener. The helper process output is discarded.
func NewBrowserOpener(logger zerolog.Logger) *BrowserOpener {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &BrowserOpener{logger: logger.With().Str("component", "opener").Logger()}
}

func (o *BrowserOpener) Open(url string) OpenResult {
	if err := browser.OpenURL(url); err != nil {
		o.logger.Warn().Err(err).Str("url", url).Msg("browser open failed")
		return OpenResult{Reason: err.Error()}
	}
	o.logger.Debug().Str("url", url).Msg("opened")
	return OpenResult{Opened: true}
}

// LogOpener is used when no browser can be launched. Every open is logged
// and reported as blocked, so the URL surfaces for a manual retry.
type LogOpener struct {
	logger zerolog.Logger
}

func NewLogOpener(logger zerolog.Logger) *LogOpener {
	return &LogOpener{logger: logger.With().Str("component", "opener").Logger()}
}

func (o *LogOpener) Open(url string) OpenResult {
	o.logger.Info().Str("url", url).Msg("open requested, no browser available")
	return OpenResult{Reason: "no browser available"}
}

// SelectOpener picks the opener for this host.
func SelectOpener(disabled bool, logger zerolog.Logger) Opener {
	if disabled || !hasDisplay() {
		return NewLogOpener(logger)
	}
	return NewBrowserOpener(logger)
}

func hasDisplay() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
