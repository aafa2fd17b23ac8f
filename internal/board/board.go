// internal/board/board.go
//
// In-memory presentation surface and cue feed.
// Responsibilities:
//   - Implement game.Surface and game.FeedbackSink for hosts that render remotely
//     (HTTP clients poll Snapshot) or on their own goroutine (the terminal).
//   - Keep a bounded feed of cues with increasing sequence numbers so pollers can
//     ask for "everything since N".
//   - Signal changes on a coalescing channel.
//
// Concurrency-safe: the engine task writes, any goroutine reads.

package board

import (
	"sync"
	"time"

	"github.com/robalobadob/memorygame/internal/game"
)

// DefaultFeedSize bounds the number of cues kept for pollers.
const DefaultFeedSize = 64

// PanelView is the visual state of one panel.
type PanelView struct {
	Panel       game.Panel `json:"panel"`
	Highlighted bool       `json:"highlighted"`
	Lose        bool       `json:"lose"`
}

// CueEvent is one entry of the cue feed.
type CueEvent struct {
	Seq uint64    `json:"seq"`
	Cue game.Cue  `json:"cue"`
	At  time.Time `json:"at"`
}

// Snapshot is a consistent copy of the board.
type Snapshot struct {
	Version      uint64      `json:"version"`
	Panels       []PanelView `json:"panels"`
	InputEnabled bool        `json:"inputEnabled"`
	Current      int         `json:"current"`
	Best         int         `json:"best"`
	Cues         []CueEvent  `json:"cues"`
	LastCue      uint64      `json:"lastCue"`
}

// Losing reports whether any panel shows the lose visual.
func (s Snapshot) Losing() bool {
	for _, p := range s.Panels {
		if p.Lose {
			return true
		}
	}
	return false
}

// Board holds the state a surface would display.
type Board struct {
	mu       sync.RWMutex
	version  uint64
	panels   [game.PanelCount]PanelView
	input    bool
	current  int
	best     int
	feed     []CueEvent
	feedSize int
	cueSeq   uint64
	changes  chan struct{}
}

// New returns an empty board. feedSize <= 0 uses DefaultFeedSize.
func New(feedSize int) *Board {
	if feedSize <= 0 {
		feedSize = DefaultFeedSize
	}
	b := &Board{feedSize: feedSize, changes: make(chan struct{}, 1)}
	for i, p := range game.Panels() {
		b.panels[i].Panel = p
	}
	return b
}

// Changes fires after mutations. Multiple mutations may collapse into one signal.
func (b *Board) Changes() <-chan struct{} { return b.changes }

func (b *Board) SetHighlighted(p game.Panel, on bool) {
	if !p.Valid() {
		return
	}
	b.mutate(func() bool {
		v := &b.panels[p-1]
		if v.Highlighted == on {
			return false
		}
		v.Highlighted = on
		return true
	})
}

func (b *Board) SetLoseState(p game.Panel, on bool) {
	if !p.Valid() {
		return
	}
	b.mutate(func() bool {
		v := &b.panels[p-1]
		if v.Lose == on {
			return false
		}
		v.Lose = on
		return true
	})
}

func (b *Board) SetInputEnabled(on bool) {
	b.mutate(func() bool {
		if b.input == on {
			return false
		}
		b.input = on
		return true
	})
}

func (b *Board) ReportScore(current, best int) {
	b.mutate(func() bool {
		if b.current == current && b.best == best {
			return false
		}
		b.current, b.best = current, best
		return true
	})
}

// Play appends c to the cue feed, dropping the oldest entry when full.
func (b *Board) Play(c game.Cue) {
	b.mutate(func() bool {
		b.cueSeq++
		b.feed = append(b.feed, CueEvent{Seq: b.cueSeq, Cue: c, At: time.Now().UTC()})
		if len(b.feed) > b.feedSize {
			b.feed = b.feed[len(b.feed)-b.feedSize:]
		}
		return true
	})
}

// Snapshot copies the board, including cues with Seq > sinceCue.
func (b *Board) Snapshot(sinceCue uint64) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		Version:      b.version,
		Panels:       append([]PanelView(nil), b.panels[:]...),
		InputEnabled: b.input,
		Current:      b.current,
		Best:         b.best,
		Cues:         []CueEvent{},
		LastCue:      b.cueSeq,
	}
	for _, ev := range b.feed {
		if ev.Seq > sinceCue {
			s.Cues = append(s.Cues, ev)
		}
	}
	return s
}

// mutate applies fn under the write lock and signals when fn reports a change.
func (b *Board) mutate(fn func() bool) {
	b.mu.Lock()
	changed := fn()
	if changed {
		b.version++
	}
	b.mu.Unlock()
	if !changed {
		return
	}
	select {
	case b.changes <- struct{}{}:
	default:
	}
}
