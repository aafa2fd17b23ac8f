// internal/game/engine.go
//
// Round engine for a single player.
// Responsibilities:
//   - Generate a target sequence for every round (Sequencer).
//   - Play it back with timed highlights while input is disabled.
//   - Collect taps one at a time and resolve win/lose.
//   - Keep current/best score and persist best through the ScoreStore.
//   - Run the lose flourish and cooldown before restarting.
//
// Notes:
//   - Run is the engine's only task. Round and score are touched from it alone,
//     and every Surface/FeedbackSink call is made from it.
//   - Tap hands the panel to the task over a channel and waits for the answer,
//     so callers on other goroutines never race the state machine.
//   - Cancelling Run's context abandons any pending timer; no collaborator is
//     called after that.

package game

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Timing holds the durations of the engine's suspension points.
type Timing struct {
	PreFlash  time.Duration // gap before each flash
	Highlight time.Duration // how long a panel stays lit
	LoseStep  time.Duration // per-panel hold during the lose flourish
	Cooldown  time.Duration // pause after the flourish before the next round
}

// DefaultTiming returns the standard pacing.
func DefaultTiming() Timing {
	return Timing{
		PreFlash:  400 * time.Millisecond,
		Highlight: 1000 * time.Millisecond,
		LoseStep:  300 * time.Millisecond,
		Cooldown:  2000 * time.Millisecond,
	}
}

// RoundResult is reported once per finished round.
type RoundResult struct {
	Round   string
	Length  int
	Taps    int
	Won     bool
	Current int
	Best    int
	At      time.Time
}

// Config wires an engine to its collaborators. Surface is required;
// everything else has a default.
type Config struct {
	Surface    Surface
	Sink       FeedbackSink
	Scores     ScoreStore
	Sequencer  Sequencer
	Clock      Clock
	Timing     *Timing
	Logger     *zerolog.Logger
	OnRoundEnd func(RoundResult)
}

// Engine runs rounds until its context is cancelled.
type Engine struct {
	surface    Surface
	sink       FeedbackSink
	scores     *ScoreTracker
	seq        Sequencer
	clock      Clock
	timing     Timing
	log        zerolog.Logger
	onRoundEnd func(RoundResult)

	round   *Round // owned by the Run task
	taps    chan tapReq
	done    chan struct{}
	started atomic.Bool
	state   atomic.Value // State
}

type tapReq struct {
	panel Panel
	reply chan tapRes
}

type tapRes struct {
	out Outcome
	err error
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Engine, error) {
	if cfg.Surface == nil {
		return nil, errors.New("game: surface is required")
	}
	e := &Engine{
		surface:    cfg.Surface,
		sink:       cfg.Sink,
		scores:     NewScoreTracker(cfg.Scores),
		seq:        cfg.Sequencer,
		clock:      cfg.Clock,
		timing:     DefaultTiming(),
		log:        log.Logger,
		onRoundEnd: cfg.OnRoundEnd,
		taps:       make(chan tapReq),
		done:       make(chan struct{}),
	}
	if e.sink == nil {
		e.sink = NopSink{}
	}
	if e.seq == nil {
		s, err := NewRandomSequencer(DefaultMinLength, DefaultMaxLength, nil)
		if err != nil {
			return nil, err
		}
		e.seq = s
	}
	if e.clock == nil {
		e.clock = RealClock{}
	}
	if cfg.Timing != nil {
		e.timing = *cfg.Timing
	}
	if cfg.Logger != nil {
		e.log = *cfg.Logger
	}
	e.state.Store(StateIdle)
	return e, nil
}

// Run loads the best score and plays rounds until ctx is done.
// It returns ctx.Err() on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("game: engine already started")
	}
	defer close(e.done)

	if _, err := e.scores.Load(ctx); err != nil {
		e.log.Warn().Err(err).Msg("load best score; starting from 0")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.surface.ReportScore(e.scores.Current(), e.scores.Best())

	for {
		r := NewRound(e.seq.Next())
		e.round = r
		e.log.Debug().Str("round", r.ID).Int("length", len(r.Target)).Msg("round started")

		if err := e.playback(ctx, r); err != nil {
			return err
		}
		state, err := e.collect(ctx, r)
		if err != nil {
			return err
		}
		if state == StateLost {
			if err := e.loseFlourish(ctx); err != nil {
				return err
			}
		}
	}
}

// Tap delivers a tap to the engine task and returns the resulting outcome.
func (e *Engine) Tap(ctx context.Context, p Panel) (Outcome, error) {
	if !p.Valid() {
		e.log.Warn().Int("panel", int(p)).Msg("tap rejected: invalid panel")
		return Outcome{}, ErrInvalidPanel
	}
	req := tapReq{panel: p, reply: make(chan tapRes, 1)}
	select {
	case e.taps <- req:
	case <-e.done:
		return Outcome{}, ErrStopped
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case res := <-req.reply:
		return res.out, res.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// State reports the state of the current round. Safe from any goroutine.
func (e *Engine) State() State { return e.state.Load().(State) }

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} { return e.done }

// ---------------------------- playback -------------------------------------

// playback walks the target with input disabled, then re-enables input.
func (e *Engine) playback(ctx context.Context, r *Round) error {
	e.setState(r, StatePlaying)
	e.surface.SetInputEnabled(false)

	for _, p := range r.Target {
		if err := e.pause(ctx, e.timing.PreFlash); err != nil {
			return err
		}
		e.sink.Play(CuePanelFlash)
		e.surface.SetHighlighted(p, true)
		if err := e.pause(ctx, e.timing.Highlight); err != nil {
			return err
		}
		e.surface.SetHighlighted(p, false)
	}

	e.setState(r, StateAwaitingInput)
	e.surface.SetInputEnabled(true)
	return nil
}

// pause suspends the task for d. Taps that arrive meanwhile are rejected.
func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := e.clock.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
			// A timer that fires together with cancellation must not resume the round.
			return ctx.Err()
		case req := <-e.taps:
			e.reject(req)
		}
	}
}

func (e *Engine) reject(req tapReq) {
	e.log.Warn().Int("panel", int(req.panel)).Str("state", string(e.State())).Msg("tap ignored: input disabled")
	req.reply <- tapRes{out: e.outcome(e.round), err: ErrInputDisabled}
}

// ------------------------------ input --------------------------------------

// collect feeds taps into the round until it is won or lost.
func (e *Engine) collect(ctx context.Context, r *Round) (State, error) {
	for {
		select {
		case <-ctx.Done():
			return r.State, ctx.Err()
		case req := <-e.taps:
			e.sink.Play(CueClick)
			state, err := r.Collect(req.panel)
			if err != nil {
				req.reply <- tapRes{out: e.outcome(r), err: err}
				continue
			}
			e.setState(r, state)
			switch state {
			case StateWon:
				e.sink.Play(CueWin)
				e.settleWin(ctx, r)
			case StateLost:
				e.settleLoss(r)
			}
			req.reply <- tapRes{out: e.outcome(r)}
			if state == StateWon || state == StateLost {
				return state, nil
			}
		}
	}
}

// ----------------------------- outcomes ------------------------------------

func (e *Engine) settleWin(ctx context.Context, r *Round) {
	if err := e.scores.RecordWin(ctx); err != nil {
		e.log.Warn().Err(err).Int("best", e.scores.Best()).Msg("persist best score")
	}
	e.surface.ReportScore(e.scores.Current(), e.scores.Best())
	e.finish(r, true)
}

func (e *Engine) settleLoss(r *Round) {
	e.scores.RecordLoss()
	e.surface.ReportScore(e.scores.Current(), e.scores.Best())
	e.finish(r, false)
}

func (e *Engine) finish(r *Round, won bool) {
	e.log.Info().Str("round", r.ID).Bool("won", won).
		Int("current", e.scores.Current()).Int("best", e.scores.Best()).Msg("round finished")
	if e.onRoundEnd == nil {
		return
	}
	e.onRoundEnd(RoundResult{
		Round:   r.ID,
		Length:  len(r.Target),
		Taps:    len(r.Answer),
		Won:     won,
		Current: e.scores.Current(),
		Best:    e.scores.Best(),
		At:      time.Now().UTC(),
	})
}

// loseFlourish shows the lose visual on each panel in turn, then cools down.
func (e *Engine) loseFlourish(ctx context.Context) error {
	e.surface.SetInputEnabled(false)
	e.sink.Play(CueLose)
	for _, p := range Panels() {
		e.surface.SetLoseState(p, true)
		if err := e.pause(ctx, e.timing.LoseStep); err != nil {
			return err
		}
		e.surface.SetLoseState(p, false)
	}
	return e.pause(ctx, e.timing.Cooldown)
}

func (e *Engine) setState(r *Round, s State) {
	r.State = s
	e.state.Store(s)
}

func (e *Engine) outcome(r *Round) Outcome {
	if r == nil {
		return Outcome{State: e.State(), Current: e.scores.Current(), Best: e.scores.Best()}
	}
	return Outcome{
		Round:     r.ID,
		State:     r.State,
		Collected: len(r.Answer),
		Length:    len(r.Target),
		Current:   e.scores.Current(),
		Best:      e.scores.Best(),
	}
}
