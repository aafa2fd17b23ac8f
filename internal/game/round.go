// internal/game/round.go
//
// Round holds the target sequence and the answer collected so far.
// Collect is the input collector: it appends a tap and reports the new state
// without performing any I/O. The engine dispatches side effects.
//
// Mismatch detection is lazy: an early wrong tap is not reported until the
// answer reaches the target length.

package game

import (
	"slices"

	"github.com/google/uuid"
)

// Round is one generate → playback → input → outcome cycle.
type Round struct {
	ID     string
	Target []Panel
	Answer []Panel
	State  State
}

// NewRound starts an idle round for target. The target slice is copied.
func NewRound(target []Panel) *Round {
	return &Round{
		ID:     uuid.NewString(),
		Target: slices.Clone(target),
		Answer: make([]Panel, 0, len(target)),
		State:  StateIdle,
	}
}

// Collect appends p to the answer and resolves the round state.
func (r *Round) Collect(p Panel) (State, error) {
	if !p.Valid() {
		return r.State, ErrInvalidPanel
	}
	if r.State == StateWon || r.State == StateLost {
		return r.State, ErrRoundOver
	}
	r.Answer = append(r.Answer, p)

	switch {
	case slices.Equal(r.Answer, r.Target):
		r.State = StateWon
	case len(r.Answer) >= len(r.Target):
		r.State = StateLost
	default:
		r.State = StateAwaitingInput
	}
	return r.State, nil
}

// Remaining is the number of taps left before the round resolves.
func (r *Round) Remaining() int { return len(r.Target) - len(r.Answer) }
