// internal/session/manager.go
//
// Live game sessions, one per owner.
// Responsibilities:
//   - Build a board + engine for an owner, bound to that owner's best score.
//   - Run each engine on its own goroutine with a cancellable context.
//   - Route taps to the right engine and remember when the owner was last seen.
//   - Stop sessions explicitly, when replaced, when idle, or on shutdown.
//   - Record finished rounds in the store (best effort).
//
// Stopping a session waits for its engine task to exit, so the board is never
// written after Stop/Reap/Close return.

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memorygame/internal/board"
	"github.com/robalobadob/memorygame/internal/game"
	"github.com/robalobadob/memorygame/internal/store"
)

// ErrNoSession is returned when the owner has no running session.
var ErrNoSession = errors.New("session: not found")

// Options configures every session the manager creates.
type Options struct {
	Store store.Store
	// Timing nil means game.DefaultTiming; a non-nil value is used as is.
	Timing   *game.Timing
	RoundMin int
	RoundMax int
	Clock    game.Clock
	Logger   *zerolog.Logger

	// NewSequencer overrides random sequence generation (tests).
	NewSequencer func() game.Sequencer
	// ExtraSink receives cues alongside the board (e.g. audio for local play).
	ExtraSink game.FeedbackSink
}

// Session is one owner's running game.
type Session struct {
	ID        string
	Owner     string
	StartedAt time.Time
	Board     *board.Board
	Engine    *game.Engine

	cancel   context.CancelFunc
	lastSeen atomic.Int64
}

// Touch marks the session as active now.
func (s *Session) Touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// LastSeen is the time of the last Touch.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// Manager owns all sessions.
type Manager struct {
	opts     Options
	log      zerolog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager validates opts and returns an empty manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if opts.RoundMin == 0 && opts.RoundMax == 0 {
		opts.RoundMin, opts.RoundMax = game.DefaultMinLength, game.DefaultMaxLength
	}
	if opts.Timing == nil {
		t := game.DefaultTiming()
		opts.Timing = &t
	} else {
		t := *opts.Timing
		opts.Timing = &t
	}
	if _, err := game.NewRandomSequencer(opts.RoundMin, opts.RoundMax, nil); err != nil {
		return nil, err
	}
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Manager{opts: opts, log: l, sessions: make(map[string]*Session)}, nil
}

// Start begins a new session for owner, replacing any running one.
func (m *Manager) Start(owner string) (*Session, error) {
	if owner == "" {
		return nil, errors.New("session: owner is required")
	}
	seq, err := m.sequencer()
	if err != nil {
		return nil, err
	}

	b := board.New(0)
	id := uuid.NewString()
	l := m.log.With().Str("session", id).Str("owner", owner).Logger()
	timing := *m.opts.Timing

	var sink game.FeedbackSink = b
	if m.opts.ExtraSink != nil {
		sink = game.Sinks(b, m.opts.ExtraSink)
	}
	eng, err := game.New(game.Config{
		Surface:    b,
		Sink:       sink,
		Scores:     store.Bind(m.opts.Store, owner),
		Sequencer:  seq,
		Clock:      m.opts.Clock,
		Timing:     &timing,
		Logger:     &l,
		OnRoundEnd: m.recordRound(owner, l),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ID: id, Owner: owner, StartedAt: time.Now().UTC(), Board: b, Engine: eng, cancel: cancel}
	s.Touch()

	m.mu.Lock()
	prev := m.sessions[owner]
	m.sessions[owner] = s
	m.mu.Unlock()
	if prev != nil {
		m.halt(prev)
	}

	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error().Err(err).Msg("engine exited")
		}
	}()
	l.Info().Msg("session started")
	return s, nil
}

// Get returns the owner's running session.
func (m *Manager) Get(owner string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[owner]
	return s, ok
}

// Tap routes a tap to the owner's engine.
func (m *Manager) Tap(ctx context.Context, owner string, p game.Panel) (game.Outcome, error) {
	s, ok := m.Get(owner)
	if !ok {
		return game.Outcome{}, ErrNoSession
	}
	s.Touch()
	return s.Engine.Tap(ctx, p)
}

// Stop ends the owner's session. It reports whether one was running.
func (m *Manager) Stop(owner string) bool {
	m.mu.Lock()
	s, ok := m.sessions[owner]
	delete(m.sessions, owner)
	m.mu.Unlock()
	if ok {
		m.halt(s)
	}
	return ok
}

// Reap stops sessions not touched within idle and returns how many were stopped.
func (m *Manager) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)
	var stale []*Session
	m.mu.Lock()
	for owner, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, owner)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		m.halt(s)
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Reap(idle); n > 0 {
				m.log.Info().Int("sessions", n).Msg("reaped idle sessions")
			}
		}
	}
}

// Len is the number of running sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for owner, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, owner)
	}
	m.mu.Unlock()
	for _, s := range all {
		m.halt(s)
	}
}

// halt cancels the engine and waits for its task to exit.
func (m *Manager) halt(s *Session) {
	s.cancel()
	<-s.Engine.Done()
	m.log.Info().Str("session", s.ID).Str("owner", s.Owner).Msg("session stopped")
}

func (m *Manager) sequencer() (game.Sequencer, error) {
	if m.opts.NewSequencer != nil {
		return m.opts.NewSequencer(), nil
	}
	return game.NewRandomSequencer(m.opts.RoundMin, m.opts.RoundMax, nil)
}

// recordRound persists finished rounds without holding up play for long.
func (m *Manager) recordRound(owner string, l zerolog.Logger) func(game.RoundResult) {
	return func(r game.RoundResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := m.opts.Store.RecordRound(ctx, store.FromResult(owner, r)); err != nil {
			l.Warn().Err(err).Str("round", r.Round).Msg("record round")
		}
	}
}
