// internal/terminal/ui.go
//
// Local terminal front end.
// Responsibilities:
//   - Draw the board as a 2x2 grid of panels with a score line and a status line.
//   - Turn keys 1-4 and mouse clicks into taps on the engine.
//   - Redraw whenever the board changes or the terminal is resized.
//   - Flash a short win banner when a round is won.
//
// Keys: 1-4 tap, m mute, q / Esc / Ctrl-C quit.

package terminal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memorygame/internal/board"
	"github.com/robalobadob/memorygame/internal/game"
)

// statusRows is the space under the grid for the score and status lines.
const statusRows = 2

// winHold is how long the win banner stays up.
const winHold = 1500 * time.Millisecond

// Tapper delivers taps; *game.Engine satisfies it.
type Tapper interface {
	Tap(ctx context.Context, p game.Panel) (game.Outcome, error)
}

// Muter is the optional audio switch.
type Muter interface {
	Muted() bool
	ToggleMute() bool
}

// canvas is the part of tcell.Screen the renderer draws on.
type canvas interface {
	Size() (int, int)
	SetContent(x, y int, mainc rune, combc []rune, style tcell.Style)
}

var (
	panelBase = [game.PanelCount]tcell.Color{
		tcell.ColorDarkGreen, tcell.ColorDarkBlue, tcell.ColorDarkCyan, tcell.ColorPurple,
	}
	highlightColor = tcell.ColorYellow
	loseColor      = tcell.ColorRed
	winColor       = tcell.ColorLime
)

// UI runs the terminal front end for one board.
type UI struct {
	screen tcell.Screen
	board  *board.Board
	tapper Tapper
	muter  Muter
	log    zerolog.Logger

	// Owned by the Run goroutine.
	lastCue  uint64
	winUntil time.Time
	expired  chan struct{}
}

// New wires a screen to a board and an engine. muter may be nil.
func New(screen tcell.Screen, b *board.Board, t Tapper, muter Muter, logger *zerolog.Logger) *UI {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &UI{screen: screen, board: b, tapper: t, muter: muter, log: l, expired: make(chan struct{}, 1)}
}

// Run draws and handles input until the user quits or ctx is done.
// The caller owns the screen (Init before, Fini after).
func (u *UI) Run(ctx context.Context) error {
	u.screen.EnableMouse()
	u.screen.HideCursor()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	u.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-u.board.Changes():
			u.draw()
		case <-u.expired:
			u.draw()
		case ev := <-events:
			if !u.handle(ctx, ev) {
				return nil
			}
		}
	}
}

// handle processes one event and reports whether to keep running.
func (u *UI) handle(ctx context.Context, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if isQuit(ev.Key(), ev.Rune()) {
			return false
		}
		if ev.Key() == tcell.KeyRune && (ev.Rune() == 'm' || ev.Rune() == 'M') && u.muter != nil {
			u.muter.ToggleMute()
			u.draw()
			return true
		}
		if p := keyPanel(ev.Key(), ev.Rune()); p != 0 {
			u.tap(ctx, p)
		}
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 == 0 {
			return true
		}
		x, y := ev.Position()
		w, h := u.screen.Size()
		if p := panelAt(x, y, w, h); p != 0 {
			u.tap(ctx, p)
		}
	case *tcell.EventResize:
		u.screen.Sync()
		u.draw()
	}
	return true
}

func (u *UI) tap(ctx context.Context, p game.Panel) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := u.tapper.Tap(ctx, p)
	switch {
	case err == nil, errors.Is(err, game.ErrInputDisabled):
	default:
		u.log.Warn().Err(err).Int("panel", int(p)).Msg("tap")
	}
}

func (u *UI) draw() {
	s := u.board.Snapshot(u.lastCue)
	u.lastCue = s.LastCue
	now := time.Now()
	if hasCue(s.Cues, game.CueWin) {
		u.winUntil = now.Add(winHold)
		time.AfterFunc(winHold, func() {
			select {
			case u.expired <- struct{}{}:
			default:
			}
		})
	}

	u.screen.Clear()
	muted := u.muter != nil && u.muter.Muted()
	render(u.screen, s, muted, now.Before(u.winUntil))
	u.screen.Show()
}

func hasCue(evs []board.CueEvent, c game.Cue) bool {
	for _, ev := range evs {
		if ev.Cue == c {
			return true
		}
	}
	return false
}

// ------------------------------- layout ------------------------------------

// isQuit matches q, Esc and Ctrl-C.
func isQuit(k tcell.Key, r rune) bool {
	return k == tcell.KeyEscape || k == tcell.KeyCtrlC || (k == tcell.KeyRune && (r == 'q' || r == 'Q'))
}

// keyPanel maps the digit keys to panels; anything else is 0.
func keyPanel(k tcell.Key, r rune) game.Panel {
	if k != tcell.KeyRune {
		return 0
	}
	if p := game.Panel(r - '0'); p.Valid() {
		return p
	}
	return 0
}

// panelRect is the half-open cell rectangle of p on a w x h screen.
func panelRect(p game.Panel, w, h int) (x0, y0, x1, y1 int) {
	gh := max(h-statusRows, 0)
	i := int(p) - 1
	col, row := i%2, i/2
	return col * w / 2, row * gh / 2, (col + 1) * w / 2, (row + 1) * gh / 2
}

// panelAt is the panel under cell (x, y), or 0 outside the grid.
func panelAt(x, y, w, h int) game.Panel {
	for _, p := range game.Panels() {
		x0, y0, x1, y1 := panelRect(p, w, h)
		if x >= x0 && x < x1 && y >= y0 && y < y1 {
			return p
		}
	}
	return 0
}

func panelStyle(v board.PanelView) tcell.Style {
	bg := panelBase[v.Panel-1]
	switch {
	case v.Lose:
		bg = loseColor
	case v.Highlighted:
		bg = highlightColor
	}
	return tcell.StyleDefault.Background(bg).Foreground(tcell.ColorBlack)
}

// statusLine describes what the player should do now.
func statusLine(s board.Snapshot, won bool) (string, tcell.Style) {
	switch {
	case s.Losing():
		return "L O S E", tcell.StyleDefault.Foreground(loseColor).Bold(true)
	case won:
		return "W I N", tcell.StyleDefault.Foreground(winColor).Bold(true)
	case s.InputEnabled:
		return "Your turn", tcell.StyleDefault.Foreground(tcell.ColorGreen)
	default:
		return "Watch...", tcell.StyleDefault.Foreground(highlightColor)
	}
}

// render draws a snapshot onto c. won shows the win banner.
func render(c canvas, s board.Snapshot, muted, won bool) {
	w, h := c.Size()
	for _, v := range s.Panels {
		x0, y0, x1, y1 := panelRect(v.Panel, w, h)
		st := panelStyle(v)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				c.SetContent(x, y, ' ', nil, st)
			}
		}
		label := v.Panel.String()
		putStr(c, (x0+x1-len(label))/2, (y0+y1)/2, label, st.Bold(true))
	}

	gh := max(h-statusRows, 0)
	score := fmt.Sprintf("Score: %d   Best: %d", s.Current, s.Best)
	if muted {
		score += "   [muted]"
	}
	putStr(c, 1, gh, score, tcell.StyleDefault)
	msg, st := statusLine(s, won)
	putStr(c, 1, gh+1, msg, st)
	help := "1-4/click tap  m mute  q quit"
	putStr(c, w-len(help)-1, gh+1, help, tcell.StyleDefault.Foreground(tcell.ColorGray))
}

func putStr(c canvas, x, y int, s string, st tcell.Style) {
	w, h := c.Size()
	if y < 0 || y >= h {
		return
	}
	for _, r := range s {
		if x >= 0 && x < w {
			c.SetContent(x, y, r, nil, st)
		}
		x++
	}
}
