package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memorygame/internal/game"
)

type fakeBackend struct {
	initErr error
	played  []beep.Streamer
	locks   int
	closed  int
}

func (f *fakeBackend) Init(beep.SampleRate, int) error { return f.initErr }
func (f *fakeBackend) Play(s ...beep.Streamer)         { f.played = append(f.played, s...) }
func (f *fakeBackend) Lock()                           { f.locks++ }
func (f *fakeBackend) Unlock()                         {}
func (f *fakeBackend) Close()                          { f.closed++ }

func quiet() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// drain streams s to the end and returns the sample count and peak amplitude.
func drain(t *testing.T, s beep.Streamer) (int, float64) {
	t.Helper()
	buf := make([][2]float64, 512)
	total, peak := 0, 0.0
	for i := 0; i < 10000; i++ {
		n, ok := s.Stream(buf)
		for _, smp := range buf[:n] {
			for _, v := range smp {
				if v < 0 {
					v = -v
				}
				if v > peak {
					peak = v
				}
			}
		}
		total += n
		if !ok {
			return total, peak
		}
	}
	t.Fatal("stream did not end")
	return 0, 0
}

func TestSound_SingleNoteLengths(t *testing.T) {
	cases := map[game.Cue]time.Duration{
		game.CueClick:      35 * time.Millisecond,
		game.CuePanelFlash: 220 * time.Millisecond,
	}
	for cue, d := range cases {
		t.Run(string(cue), func(t *testing.T) {
			s, err := Sound(cue, SampleRate)
			require.NoError(t, err)
			n, peak := drain(t, s)
			assert.Equal(t, SampleRate.N(d), n)
			assert.LessOrEqual(t, peak, 1.0)
			assert.Greater(t, peak, 0.0)
		})
	}
}

func TestSound_WinIsThreeNotes(t *testing.T) {
	s, err := Sound(game.CueWin, SampleRate)
	require.NoError(t, err)
	n, peak := drain(t, s)
	want := 2*SampleRate.N(90*time.Millisecond) + SampleRate.N(160*time.Millisecond)
	assert.Equal(t, want, n)
	assert.LessOrEqual(t, peak, 1.0)
}

func TestSound_LoseEnds(t *testing.T) {
	s, err := Sound(game.CueLose, SampleRate)
	require.NoError(t, err)
	n, peak := drain(t, s)
	assert.Positive(t, n)
	assert.LessOrEqual(t, n, SampleRate.N(700*time.Millisecond))
	assert.LessOrEqual(t, peak, 1.0)
}

func TestSound_UnknownCue(t *testing.T) {
	s, err := Sound(game.Cue("nope"), SampleRate)
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestRelease(t *testing.T) {
	ones := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{1, 1}
		}
		return len(samples), true
	})
	buf := make([][2]float64, 200)
	n, ok := release(ones, 100, 10).Stream(buf)
	require.True(t, ok)
	require.Equal(t, 100, n)

	assert.Equal(t, 1.0, buf[0][0])
	assert.Equal(t, 1.0, buf[90][0])
	assert.InDelta(t, 0.5, buf[95][0], 1e-9)
	assert.InDelta(t, 0.1, buf[99][1], 1e-9)
}

func TestMusicIsQuiet(t *testing.T) {
	m, err := Music(SampleRate, MusicVolume)
	require.NoError(t, err)
	buf := make([][2]float64, 4096)
	n, ok := m.Stream(buf)
	require.True(t, ok)
	for _, s := range buf[:n] {
		assert.LessOrEqual(t, s[0], MusicVolume+1e-9)
		assert.GreaterOrEqual(t, s[0], -MusicVolume-1e-9)
	}
}

func TestPlayer_InitFailureIsSilent(t *testing.T) {
	be := &fakeBackend{initErr: errors.New("no device")}
	p := newPlayer(Options{Music: true, Logger: quiet()}, be)

	assert.False(t, p.Enabled())
	p.Play(game.CueWin)
	p.SetMuted(true)
	p.Close()
	assert.Empty(t, be.played)
	assert.Zero(t, be.closed)
}

func TestPlayer_PlaysUnlessMuted(t *testing.T) {
	be := &fakeBackend{}
	p := newPlayer(Options{Logger: quiet()}, be)
	require.True(t, p.Enabled())

	p.Play(game.CueClick)
	p.Play(game.CueLose)
	assert.Len(t, be.played, 2)

	p.SetMuted(true)
	p.Play(game.CueClick)
	assert.Len(t, be.played, 2)

	assert.False(t, p.ToggleMute())
	p.Play(game.CuePanelFlash)
	assert.Len(t, be.played, 3)

	p.Close()
	p.Close()
	assert.Equal(t, 1, be.closed)
	p.Play(game.CueClick)
	assert.Len(t, be.played, 3)
}

func TestPlayer_MusicFollowsMute(t *testing.T) {
	be := &fakeBackend{}
	p := newPlayer(Options{Music: true, Muted: true, Logger: quiet()}, be)

	require.Len(t, be.played, 1)
	ctrl, ok := be.played[0].(*beep.Ctrl)
	require.True(t, ok)
	assert.True(t, ctrl.Paused)

	p.SetMuted(false)
	assert.False(t, ctrl.Paused)
	assert.Equal(t, 1, be.locks)

	assert.True(t, p.ToggleMute())
	assert.True(t, ctrl.Paused)
}
