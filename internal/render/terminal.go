package render

import (
	"fmt"

	"lane-clash/internal/game"

	"github.com/gdamore/tcell/v2"
)

// Glyphs used by the terminal view
const (
	GlyphBase       = '■'
	GlyphTower      = '▲'
	GlyphRubble     = '░'
	GlyphMinion     = '•'
	GlyphMinionHold = '◆'
	GlyphLane       = '·'
)

// hudRows is the number of rows reserved for the status line
const hudRows = 1

// TerminalRenderer maps the match onto a character grid. Rows above the
// status line hold the map scaled to the screen size.
type TerminalRenderer struct {
	screen tcell.Screen
}

// NewTerminalRenderer draws onto an initialized screen
func NewTerminalRenderer(screen tcell.Screen) *TerminalRenderer {
	return &TerminalRenderer{screen: screen}
}

func teamStyle(team string) tcell.Style {
	c := TeamColor(team)
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
}

// Cell converts a map position to a screen cell for a width x height screen
func Cell(snap *game.GameSnapshot, x, y float64, width, height int) (int, int) {
	rows := height - hudRows
	if rows < 1 || width < 1 || snap.MapWidth <= 0 || snap.MapHeight <= 0 {
		return 0, 0
	}
	cx := int(x / snap.MapWidth * float64(width))
	cy := int(y / snap.MapHeight * float64(rows))
	return min(max(cx, 0), width-1), min(max(cy, 0), rows-1) + hudRows
}

// Draw renders the snapshot and shows the screen
func (r *TerminalRenderer) Draw(snap *game.GameSnapshot) {
	s := r.screen
	s.Clear()
	w, h := s.Size()
	if snap == nil || w < 1 || h <= hudRows {
		s.Show()
		return
	}

	r.drawLane(snap, w, h)

	for _, t := range snap.Towers {
		x, y := Cell(snap, t.X, t.Y, w, h)
		if t.Alive {
			s.SetContent(x, y, GlyphTower, nil, teamStyle(t.Team))
		} else {
			s.SetContent(x, y, GlyphRubble, nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
		}
	}
	for _, b := range snap.Bases {
		x, y := Cell(snap, b.X, b.Y, w, h)
		style := teamStyle(b.Team)
		if !b.Alive {
			style = tcell.StyleDefault.Foreground(tcell.ColorGray)
		}
		s.SetContent(x, y, GlyphBase, nil, style)
	}
	for _, m := range snap.Minions {
		x, y := Cell(snap, m.X, m.Y, w, h)
		glyph := GlyphMinion
		if m.Engaged {
			glyph = GlyphMinionHold
		}
		s.SetContent(x, y, glyph, nil, teamStyle(m.Team))
	}

	r.drawStatus(snap, w)
	s.Show()
}

// drawLane plots a dotted line between the two bases
func (r *TerminalRenderer) drawLane(snap *game.GameSnapshot, w, h int) {
	if len(snap.Bases) < 2 {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	a, b := snap.Bases[0], snap.Bases[1]
	const steps = 200
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		x, y := Cell(snap, a.X+(b.X-a.X)*f, a.Y+(b.Y-a.Y)*f, w, h)
		r.screen.SetContent(x, y, GlyphLane, nil, style)
	}
}

func (r *TerminalRenderer) drawStatus(snap *game.GameSnapshot, w int) {
	line := fmt.Sprintf(" tick %d  gold %d  hero %d ", snap.TickNumber, snap.GoldTotal, snap.HeroHealth)
	for _, t := range snap.Teams {
		line += fmt.Sprintf(" %s: %d minions, %d towers, base %d ", t.Team, t.Minions, t.TowersUp, t.BaseHP)
	}
	if snap.Over {
		line += fmt.Sprintf(" %s WINS ", snap.Winner)
	}

	style := tcell.StyleDefault.Foreground(tcell.ColorYellow).Background(tcell.ColorBlack)
	x := 0
	for _, ch := range line {
		if x >= w {
			break
		}
		r.screen.SetContent(x, 0, ch, nil, style)
		x++
	}
}
