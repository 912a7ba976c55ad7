package capability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoPlayer is returned when no audio player is available.
var ErrNoPlayer = errors.New("no audio player available")

// Player plays a sound asset by reference (a file name).
type Player interface {
	Play(ctx context.Context, ref string) error
}

// Synth produces a synthesized tone.
type Synth interface {
	Tone(ctx context.Context, tone Tone) error
}

// Tone parameters for the synthesized fallback.
type Tone struct {
	Category  string
	Frequency float64 // Hz
	Gain      float64
	Duration  time.Duration
}

var tones = []Tone{
	{Category: "success", Frequency: 880, Gain: 0.30},
	{Category: "alert", Frequency: 660, Gain: 0.40},
	{Category: "chime", Frequency: 1046.5, Gain: 0.25},
	{Category: "custom", Frequency: 523.25, Gain: 0.30},
}

var defaultTone = Tone{Category: "default", Frequency: 440, Gain: 0.30}

const toneDuration = 300 * time.Millisecond

// ToneFor infers the tone category from the sound reference's name.
func ToneFor(ref string) Tone {
	name := strings.ToLower(filepath.Base(ref))
	t := defaultTone
	for _, c := range tones {
		if strings.Contains(name, c.Category) {
			t = c
			break
		}
	}
	t.Duration = toneDuration
	return t
}

// CommandPlayer plays files from dir with an external command.
type CommandPlayer struct {
	command string
	dir     string
}

// NewCommandPlayer looks up the first available player binary.
func NewCommandPlayer(dir string) (*CommandPlayer, error) {
	for _, name := range []string{"paplay", "afplay", "aplay"} {
		if path, err := exec.LookPath(name); err == nil {
			return &CommandPlayer{command: path, dir: dir}, nil
		}
	}
	return nil, ErrNoPlayer
}

func (p *CommandPlayer) Play(ctx context.Context, ref string) error {
	if ref == "" {
		return fmt.Errorf("play: empty sound reference")
	}
	path := filepath.Join(p.dir, filepath.Base(ref))
	if err := exec.CommandContext(ctx, p.command, path).Run(); err != nil {
		return fmt.Errorf("play %s: %w", ref, err)
	}
	return nil
}

// BellSynth rings the terminal bell in place of a real tone.
type BellSynth struct {
	w      io.Writer
	logger zerolog.Logger
}

func NewBellSynth(w io.Writer, logger zerolog.Logger) *BellSynth {
	return &BellSynth{w: w, logger: logger}
}

func (s *BellSynth) Tone(_ context.Context, t Tone) error {
	s.logger.Debug().Str("category", t.Category).Float64("hz", t.Frequency).Float64("gain", t.Gain).Msg("tone")
	_, err := io.WriteString(s.w, "\a")
	return err
}

// Alerter plays sounds through a Player and falls back to a synthesized
// tone when playback fails or no player exists.
type Alerter struct {
	player  Player // may be nil
	synth   Synth
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAlerter creates an Alerter. player may be nil.
func NewAlerter(player Player, synth Synth, logger zerolog.Logger) *Alerter {
	return &Alerter{
		player:  player,
		synth:   synth,
		timeout: 10 * time.Second,
		logger:  logger.With().Str("component", "sound").Logger(),
	}
}

// Alert plays ref in the background.
func (a *Alerter) Alert(ref string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.PlayContext(ctx, ref); err != nil {
			a.logger.Warn().Err(err).Str("sound", ref).Msg("sound failed")
		}
	}()
}

// PlayContext plays ref, falling back to the tone for its category.
func (a *Alerter) PlayContext(ctx context.Context, ref string) error {
	if a.player != nil {
		err := a.player.Play(ctx, ref)
		if err == nil {
			return nil
		}
		a.logger.Debug().Err(err).Str("sound", ref).Msg("playback failed, using tone")
	}
	return a.synth.Tone(ctx, ToneFor(ref))
}

// SelectPlayer returns a CommandPlayer if one is available, else nil.
func SelectPlayer(dir string, logger zerolog.Logger) Player {
	p, err := NewCommandPlayer(dir)
	if err != nil {
		logger.Info().Msg("no audio player found, using synthesized tones")
		return nil
	}
	return p
}
