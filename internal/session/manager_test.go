package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memorygame/internal/game"
	"github.com/robalobadob/memorygame/internal/store"
)

type instantClock struct{}

func (instantClock) NewTimer(time.Duration) game.Timer {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return instantTimer(ch)
}

type instantTimer chan time.Time

func (t instantTimer) C() <-chan time.Time { return t }
func (t instantTimer) Stop() bool          { return true }

type fixedSeq []game.Panel

func (f fixedSeq) Next() []game.Panel { return f }

func newTestManager(t *testing.T, st store.Store) *Manager {
	t.Helper()
	nop := zerolog.Nop()
	m, err := NewManager(Options{
		Store:        st,
		Clock:        instantClock{},
		Logger:       &nop,
		NewSequencer: func() game.Sequencer { return fixedSeq{2, 3} },
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func waitForInput(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Board.Snapshot(0).InputEnabled
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewManager_RequiresStore(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)

	_, err = NewManager(Options{Store: store.NewMemoryStore(), RoundMin: 4, RoundMax: 2})
	assert.Error(t, err)
}

func TestNewManager_Timing(t *testing.T) {
	m, err := NewManager(Options{Store: store.NewMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, game.DefaultTiming(), *m.opts.Timing)

	zero := game.Timing{}
	m, err = NewManager(Options{Store: store.NewMemoryStore(), Timing: &zero})
	require.NoError(t, err)
	assert.Equal(t, game.Timing{}, *m.opts.Timing)

	zero.Highlight = time.Second
	assert.Equal(t, game.Timing{}, *m.opts.Timing, "options are copied")
}

func TestManager_PlayRound(t *testing.T) {
	st := store.NewMemoryStore()
	m := newTestManager(t, st)
	ctx := context.Background()

	s, err := m.Start("alice")
	require.NoError(t, err)
	waitForInput(t, s)

	_, err = m.Tap(ctx, "alice", 2)
	require.NoError(t, err)
	out, err := m.Tap(ctx, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, game.StateWon, out.State)
	assert.Equal(t, 1, out.Best)

	best, err := st.Score(ctx, "alice", store.BestScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 1, best)

	require.Eventually(t, func() bool {
		rounds, _ := st.RecentRounds(ctx, "alice", 10)
		return len(rounds) == 1 && rounds[0].Won
	}, time.Second, 5*time.Millisecond)

	snap := s.Board.Snapshot(0)
	assert.Equal(t, 1, snap.Best)
	assert.NotEmpty(t, snap.Cues)
}

func TestManager_LoadsStoredBest(t *testing.T) {
	st := store.NewMemoryStore()
	require.NoError(t, st.SaveScore(context.Background(), "bob", store.BestScoreKey, 8))
	m := newTestManager(t, st)

	s, err := m.Start("bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Board.Snapshot(0).Best == 8 }, time.Second, 5*time.Millisecond)
}

func TestManager_ClaimDuringSessionKeepsHigherBest(t *testing.T) {
	st := store.NewMemoryStore()
	m := newTestManager(t, st)
	ctx := context.Background()

	s, err := m.Start("user1")
	require.NoError(t, err)
	waitForInput(t, s)

	require.NoError(t, st.SaveScore(ctx, "anon-x", store.BestScoreKey, 5))
	require.NoError(t, st.ClaimOwner(ctx, "anon-x", "user1"))

	_, err = m.Tap(ctx, "user1", 2)
	require.NoError(t, err)
	out, err := m.Tap(ctx, "user1", 3)
	require.NoError(t, err)
	assert.Equal(t, game.StateWon, out.State)

	best, err := st.Score(ctx, "user1", store.BestScoreKey)
	require.NoError(t, err)
	assert.Equal(t, 5, best)
}

func TestManager_TapWithoutSession(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	_, err := m.Tap(context.Background(), "nobody", 1)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_StartReplaces(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	first, err := m.Start("alice")
	require.NoError(t, err)
	second, err := m.Start("alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	select {
	case <-first.Engine.Done():
	default:
		t.Fatal("replaced engine should be stopped")
	}
	got, ok := m.Get("alice")
	require.True(t, ok)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Stop(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	s, err := m.Start("alice")
	require.NoError(t, err)

	assert.True(t, m.Stop("alice"))
	assert.False(t, m.Stop("alice"))
	<-s.Engine.Done()

	_, err = s.Engine.Tap(context.Background(), 1)
	assert.ErrorIs(t, err, game.ErrStopped)
}

func TestManager_Reap(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	_, err := m.Start("alice")
	require.NoError(t, err)
	_, err = m.Start("bob")
	require.NoError(t, err)

	assert.Zero(t, m.Reap(time.Hour))
	assert.Equal(t, 2, m.Len())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, m.Reap(time.Millisecond))
	assert.Zero(t, m.Len())
}

func TestManager_Close(t *testing.T) {
	m := newTestManager(t, store.NewMemoryStore())
	a, _ := m.Start("a")
	b, _ := m.Start("b")
	m.Close()
	<-a.Engine.Done()
	<-b.Engine.Done()
	assert.Zero(t, m.Len())
}
