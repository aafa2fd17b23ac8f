package audio

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"

	"github.com/robalobadob/memorygame/internal/game"
)

// SampleRate used for every generated sound.
const SampleRate = beep.SampleRate(44100)

// note is one step of a cue.
type note struct {
	freqs []float64 // played together
	dur   time.Duration
	gain  float64
}

// cueNotes describes every cue as a short sequence of notes.
func cueNotes(c game.Cue) []note {
	switch c {
	case game.CueClick:
		return []note{{freqs: []float64{880}, dur: 35 * time.Millisecond, gain: 0.25}}
	case game.CuePanelFlash:
		return []note{{freqs: []float64{440}, dur: 220 * time.Millisecond, gain: 0.4}}
	case game.CueWin:
		return []note{
			{freqs: []float64{523.25}, dur: 90 * time.Millisecond, gain: 0.35},
			{freqs: []float64{659.25}, dur: 90 * time.Millisecond, gain: 0.35},
			{freqs: []float64{783.99}, dur: 160 * time.Millisecond, gain: 0.35},
		}
	case game.CueLose:
		return []note{
			{freqs: []float64{196.00, 207.65}, dur: 250 * time.Millisecond, gain: 0.3},
			{freqs: []float64{146.83, 155.56}, dur: 450 * time.Millisecond, gain: 0.3},
		}
	}
	return nil
}

// Sound builds the finite streamer for a cue. Unknown cues yield nil.
func Sound(c game.Cue, rate beep.SampleRate) (beep.Streamer, error) {
	notes := cueNotes(c)
	if len(notes) == 0 {
		return nil, nil
	}
	parts := make([]beep.Streamer, 0, len(notes))
	for _, n := range notes {
		s, err := chord(rate, n)
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
	}
	return beep.Seq(parts...), nil
}

// chord mixes the note's tones for its duration with a short release.
func chord(rate beep.SampleRate, n note) (beep.Streamer, error) {
	samples := rate.N(n.dur)
	tones := make([]beep.Streamer, 0, len(n.freqs))
	for _, f := range n.freqs {
		sine, err := generators.SineTone(rate, f)
		if err != nil {
			return nil, err
		}
		tones = append(tones, gain(beep.Take(samples, sine), n.gain))
	}
	var s beep.Streamer = tones[0]
	if len(tones) > 1 {
		s = beep.Mix(tones...)
	}
	return release(s, samples, rate.N(15*time.Millisecond)), nil
}

// gain scales a streamer linearly; 0 silences it.
func gain(s beep.Streamer, v float64) beep.Streamer {
	if v <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(v)}
}

// fade ramps the last tail samples of a total-length stream down to zero.
type fade struct {
	s     beep.Streamer
	pos   int
	total int
	tail  int
}

func release(s beep.Streamer, total, tail int) beep.Streamer {
	if tail > total {
		tail = total
	}
	return &fade{s: s, total: total, tail: tail}
}

func (f *fade) Stream(samples [][2]float64) (int, bool) {
	if f.pos >= f.total {
		return 0, false
	}
	if rest := f.total - f.pos; len(samples) > rest {
		samples = samples[:rest]
	}
	n, ok := f.s.Stream(samples)
	start := f.total - f.tail
	for i := 0; i < n; i++ {
		if p := f.pos + i; p >= start && f.tail > 0 {
			v := float64(f.total-p) / float64(f.tail)
			samples[i][0] *= v
			samples[i][1] *= v
		}
	}
	f.pos += n
	return n, ok
}

func (f *fade) Err() error { return f.s.Err() }

// Music is the quiet background drone: an open fifth on A, looping forever.
func Music(rate beep.SampleRate, volume float64) (beep.Streamer, error) {
	var tones []beep.Streamer
	for _, f := range []float64{110.00, 164.81} {
		sine, err := generators.SineTone(rate, f)
		if err != nil {
			return nil, err
		}
		tones = append(tones, gain(sine, volume/2))
	}
	return beep.Mix(tones...), nil
}
