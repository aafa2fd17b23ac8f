// internal/game/ports.go
//
// Interfaces the engine consumes. Implementations live elsewhere:
//   - Surface / FeedbackSink: internal/board, internal/terminal, internal/audio.
//   - ScoreStore: internal/store (memory or SQLite, bound to an owner).
//   - Clock: RealClock here; fakes in tests.

package game

import (
	"context"
	"time"
)

// Surface is the presentation layer the engine drives.
// SetHighlighted and SetLoseState must be idempotent.
type Surface interface {
	SetHighlighted(p Panel, on bool)
	SetInputEnabled(on bool)
	SetLoseState(p Panel, on bool)
	ReportScore(current, best int)
}

// FeedbackSink plays cues. Fire-and-forget.
type FeedbackSink interface {
	Play(c Cue)
}

// ScoreStore persists the best score.
// Load returns 0 when nothing has been recorded yet.
type ScoreStore interface {
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, best int) error
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock creates timers for the engine's suspension points.
type Clock interface {
	NewTimer(d time.Duration) Timer
}

// RealClock is a Clock backed by the runtime timer.
type RealClock struct{}

func (RealClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

type realTimer struct{ t *time.Timer }

func (r realTimer) C() <-chan time.Time { return r.t.C }
func (r realTimer) Stop() bool          { return r.t.Stop() }

// sinks fans a cue out to several sinks in order.
type sinks []FeedbackSink

// Sinks combines sinks into one. Nil entries are skipped.
func Sinks(ss ...FeedbackSink) FeedbackSink {
	out := make(sinks, 0, len(ss))
	for _, s := range ss {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (s sinks) Play(c Cue) {
	for _, x := range s {
		x.Play(c)
	}
}

// NopSink discards every cue.
type NopSink struct{}

func (NopSink) Play(Cue) {}
