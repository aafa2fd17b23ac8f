// internal/game/types.go
//
// Core type definitions for the round engine.
// Defines:
//   - Panel: one of the four tappable targets.
//   - State: the round state machine (idle → playing → awaiting input → won/lost).
//   - Cue: audio feedback events emitted by the engine.
//   - Outcome: the result returned to a caller for a single tap.

package game

import (
	"errors"
	"strconv"
)

// Panel identifies one of the tappable panels. Valid values are 1..PanelCount.
type Panel int

// PanelCount is the size of the fixed panel set.
const PanelCount = 4

// Panels returns the panel set in stable order.
func Panels() []Panel {
	out := make([]Panel, PanelCount)
	for i := range out {
		out[i] = Panel(i + 1)
	}
	return out
}

// Valid reports whether p belongs to the panel set.
func (p Panel) Valid() bool { return p >= 1 && p <= PanelCount }

func (p Panel) String() string { return strconv.Itoa(int(p)) }

// State is the state of the current round.
type State string

const (
	StateIdle          State = "idle"
	StatePlaying       State = "playing"
	StateAwaitingInput State = "awaiting_input"
	StateWon           State = "won"
	StateLost          State = "lost"
)

// Cue is an audio feedback event.
type Cue string

const (
	CueClick      Cue = "click"
	CuePanelFlash Cue = "panel_flash"
	CueWin        Cue = "win"
	CueLose       Cue = "lose"
)

// Outcome is what a caller learns from a single tap.
type Outcome struct {
	Round     string `json:"round"`     // id of the round the tap was applied to
	State     State  `json:"state"`     // round state after the tap
	Collected int    `json:"collected"` // taps collected so far in this round
	Length    int    `json:"length"`    // target length of the round
	Current   int    `json:"current"`   // score after the tap
	Best      int    `json:"best"`      // best score after the tap
}

var (
	// ErrInvalidPanel is returned for taps outside the panel set.
	ErrInvalidPanel = errors.New("game: invalid panel")
	// ErrInputDisabled is returned for taps that arrive while input is not being collected.
	ErrInputDisabled = errors.New("game: input disabled")
	// ErrStopped is returned once the engine task has exited.
	ErrStopped = errors.New("game: engine stopped")
	// ErrRoundOver is returned by Round.Collect after the round reached Won or Lost.
	ErrRoundOver = errors.New("game: round over")
)
