// Package audio plays game cues through the system speaker.
//
// Audio is optional: if the speaker cannot be opened the player logs once
// and every call becomes a no-op.
package audio

import (
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memorygame/internal/game"
)

// MusicVolume is the background level relative to cues.
const MusicVolume = 0.2

// Options configures a Player.
type Options struct {
	Muted  bool
	Music  bool // loop the background drone while unmuted
	Logger *zerolog.Logger
}

// backend abstracts the speaker for tests.
type backend interface {
	Init(sr beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
	Close()
}

type speakerBackend struct{}

func (speakerBackend) Init(sr beep.SampleRate, n int) error { return speaker.Init(sr, n) }
func (speakerBackend) Play(s ...beep.Streamer)              { speaker.Play(s...) }
func (speakerBackend) Lock()                                { speaker.Lock() }
func (speakerBackend) Unlock()                              { speaker.Unlock() }
func (speakerBackend) Close()                               { speaker.Close() }

// Player implements game.FeedbackSink.
type Player struct {
	be      backend
	log     zerolog.Logger
	rate    beep.SampleRate
	enabled bool
	muted   atomic.Bool
	music   *beep.Ctrl
}

var _ game.FeedbackSink = (*Player)(nil)

// New opens the speaker and returns a player. It never fails.
func New(opts Options) *Player {
	return newPlayer(opts, speakerBackend{})
}

func newPlayer(opts Options, be backend) *Player {
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	p := &Player{be: be, log: l, rate: SampleRate}
	p.muted.Store(opts.Muted)

	if err := be.Init(p.rate, p.rate.N(time.Second/10)); err != nil {
		p.log.Warn().Err(err).Msg("audio unavailable, continuing silently")
		return p
	}
	p.enabled = true

	if opts.Music {
		m, err := Music(p.rate, MusicVolume)
		if err != nil {
			p.log.Warn().Err(err).Msg("background music")
			return p
		}
		p.music = &beep.Ctrl{Streamer: m, Paused: opts.Muted}
		be.Play(p.music)
	}
	return p
}

// Enabled reports whether the speaker opened.
func (p *Player) Enabled() bool { return p.enabled }

// Muted reports the mute switch.
func (p *Player) Muted() bool { return p.muted.Load() }

// SetMuted silences cues and pauses the background music.
func (p *Player) SetMuted(m bool) {
	p.muted.Store(m)
	if p.music == nil {
		return
	}
	p.be.Lock()
	p.music.Paused = m
	p.be.Unlock()
}

// ToggleMute flips the mute switch and returns the new value.
func (p *Player) ToggleMute() bool {
	m := !p.Muted()
	p.SetMuted(m)
	return m
}

// Play starts the cue's sound and returns without waiting for it.
func (p *Player) Play(c game.Cue) {
	if !p.enabled || p.Muted() {
		return
	}
	s, err := Sound(c, p.rate)
	if err != nil {
		p.log.Debug().Err(err).Str("cue", string(c)).Msg("build sound")
		return
	}
	if s == nil {
		return
	}
	p.be.Play(s)
}

// Close stops all sound and releases the device.
func (p *Player) Close() {
	if !p.enabled {
		return
	}
	p.enabled = false
	p.be.Close()
}
