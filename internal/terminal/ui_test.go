package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memorygame/internal/board"
	"github.com/robalobadob/memorygame/internal/game"
)

type cell struct {
	r  rune
	st tcell.Style
}

// gridCanvas records what the renderer drew.
type gridCanvas struct {
	w, h  int
	cells map[[2]int]cell
}

func newGrid(w, h int) *gridCanvas {
	return &gridCanvas{w: w, h: h, cells: map[[2]int]cell{}}
}

func (g *gridCanvas) Size() (int, int) { return g.w, g.h }

func (g *gridCanvas) SetContent(x, y int, r rune, _ []rune, st tcell.Style) {
	g.cells[[2]int{x, y}] = cell{r, st}
}

func (g *gridCanvas) row(y int) string {
	var b strings.Builder
	for x := 0; x < g.w; x++ {
		c, ok := g.cells[[2]int{x, y}]
		if !ok || c.r == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(c.r)
	}
	return b.String()
}

type fakeTapper struct {
	mu   sync.Mutex
	taps []game.Panel
	err  error
}

func (f *fakeTapper) Tap(_ context.Context, p game.Panel) (game.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps = append(f.taps, p)
	return game.Outcome{}, f.err
}

func (f *fakeTapper) got() []game.Panel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]game.Panel(nil), f.taps...)
}

type fakeMuter struct {
	mu    sync.Mutex
	muted bool
}

func (f *fakeMuter) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeMuter) ToggleMute() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = !f.muted
	return f.muted
}

func TestKeyPanel(t *testing.T) {
	for r, want := range map[rune]game.Panel{'1': 1, '2': 2, '3': 3, '4': 4, '0': 0, '5': 0, 'a': 0} {
		assert.Equal(t, want, keyPanel(tcell.KeyRune, r), string(r))
	}
	assert.Zero(t, keyPanel(tcell.KeyEnter, '1'))
}

func TestIsQuit(t *testing.T) {
	assert.True(t, isQuit(tcell.KeyEscape, 0))
	assert.True(t, isQuit(tcell.KeyCtrlC, 0))
	assert.True(t, isQuit(tcell.KeyRune, 'q'))
	assert.False(t, isQuit(tcell.KeyRune, '1'))
}

func TestPanelAt(t *testing.T) {
	const w, h = 80, 26 // grid is 80x24
	cases := []struct {
		x, y int
		want game.Panel
	}{
		{0, 0, 1},
		{39, 11, 1},
		{40, 0, 2},
		{79, 11, 2},
		{0, 12, 3},
		{40, 12, 4},
		{79, 23, 4},
		{10, 24, 0},
		{80, 0, 0},
		{-1, 0, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, panelAt(c.x, c.y, w, h), "(%d,%d)", c.x, c.y)
	}
}

func TestRender_HighlightAndStatus(t *testing.T) {
	b := board.New(0)
	b.SetHighlighted(2, true)
	b.SetInputEnabled(true)
	b.ReportScore(3, 7)

	g := newGrid(40, 12)
	render(g, b.Snapshot(0), false, false)

	base := tcell.StyleDefault.Foreground(tcell.ColorBlack)
	assert.Equal(t, base.Background(tcell.ColorDarkGreen), g.cells[[2]int{1, 1}].st)
	assert.Equal(t, base.Background(tcell.ColorYellow), g.cells[[2]int{30, 1}].st)
	assert.Equal(t, base.Background(tcell.ColorPurple), g.cells[[2]int{30, 8}].st)

	assert.Contains(t, g.row(10), "Score: 3   Best: 7")
	assert.Contains(t, g.row(11), "Your turn")
	assert.Contains(t, g.row(11), "q quit")
	assert.NotContains(t, g.row(10), "[muted]")
}

func TestRender_LoseAndMuted(t *testing.T) {
	b := board.New(0)
	b.SetLoseState(3, true)

	g := newGrid(40, 12)
	render(g, b.Snapshot(0), true, false)

	assert.Equal(t, tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorRed), g.cells[[2]int{2, 7}].st)
	assert.Contains(t, g.row(11), "L O S E")
	assert.Contains(t, g.row(10), "[muted]")
}

func TestRender_Watching(t *testing.T) {
	g := newGrid(40, 12)
	render(g, board.New(0).Snapshot(0), false, false)
	assert.Contains(t, g.row(11), "Watch...")
	assert.Contains(t, g.row(2), "1")
}

func TestRender_WinBanner(t *testing.T) {
	b := board.New(0)
	b.SetInputEnabled(true)

	g := newGrid(40, 12)
	render(g, b.Snapshot(0), false, true)
	assert.Contains(t, g.row(11), "W I N")
	assert.NotContains(t, g.row(11), "Your turn")

	b.SetLoseState(1, true)
	g = newGrid(40, 12)
	render(g, b.Snapshot(0), false, true)
	assert.Contains(t, g.row(11), "L O S E")
}

func TestHasCue(t *testing.T) {
	evs := []board.CueEvent{{Seq: 1, Cue: game.CueClick}, {Seq: 2, Cue: game.CueWin}}
	assert.True(t, hasCue(evs, game.CueWin))
	assert.False(t, hasCue(evs[:1], game.CueWin))
	assert.False(t, hasCue(nil, game.CueWin))
}

func TestDraw_WinBannerHoldsThenExpires(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()

	b := board.New(0)
	ui := New(screen, b, &fakeTapper{}, nil, nil)
	ui.draw()
	assert.True(t, ui.winUntil.IsZero())

	b.Play(game.CueWin)
	ui.draw()
	until := ui.winUntil
	assert.True(t, time.Now().Before(until))

	// the same cue is not counted twice
	ui.draw()
	assert.Equal(t, until, ui.winUntil)

	select {
	case <-ui.expired:
	case <-time.After(3 * winHold):
		t.Fatal("banner never expired")
	}
	assert.False(t, time.Now().Before(ui.winUntil))
}

func TestRender_TinyScreen(t *testing.T) {
	g := newGrid(3, 1)
	assert.NotPanics(t, func() { render(g, board.New(0).Snapshot(0), false, false) })
}

func TestRun_KeysMouseAndQuit(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()
	screen.SetSize(40, 12)

	tapper := &fakeTapper{err: game.ErrInputDisabled}
	muter := &fakeMuter{}
	nop := zerolog.Nop()
	ui := New(screen, board.New(0), tapper, muter, &nop)

	done := make(chan error, 1)
	go func() { done <- ui.Run(context.Background()) }()

	screen.InjectKey(tcell.KeyRune, '3', tcell.ModNone)
	require.Eventually(t, func() bool { return len(tapper.got()) == 1 }, 2*time.Second, 5*time.Millisecond)

	screen.InjectMouse(30, 8, tcell.Button1, tcell.ModNone)
	require.Eventually(t, func() bool { return len(tapper.got()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []game.Panel{3, 4}, tapper.got())

	screen.InjectKey(tcell.KeyRune, 'm', tcell.ModNone)
	require.Eventually(t, muter.Muted, 2*time.Second, 5*time.Millisecond)

	screen.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on q")
	}
}

func TestRun_StopsOnContext(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, screen.Init())
	defer screen.Fini()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(screen, board.New(0), &fakeTapper{}, nil, nil).Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return on cancel")
	}
}
