// Package render draws match snapshots: PNG frames through gg for the HTTP
// viewer, and character cells through tcell for the terminal viewer.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"lane-clash/internal/game"

	"github.com/fogleman/gg"
)

// SnapshotSource is anything that can hand out the latest match snapshot
type SnapshotSource interface {
	GetSnapshot() *game.GameSnapshot
}

var (
	background = color.RGBA{18, 24, 20, 255}
	laneColor  = color.RGBA{70, 62, 45, 255}
	rubble     = color.RGBA{80, 80, 80, 255}
	hudText    = color.RGBA{235, 235, 240, 255}
	goldText   = color.RGBA{255, 190, 40, 255}
)

// TeamColor returns the display color for a team wire name
func TeamColor(team string) color.RGBA {
	switch team {
	case "team1":
		return color.RGBA{66, 135, 245, 255}
	case "team2":
		return color.RGBA{235, 64, 52, 255}
	default:
		return color.RGBA{200, 200, 200, 255}
	}
}

// FrameRenderer draws snapshots onto a fixed-size canvas. Not safe for
// concurrent use; callers serialize or use one renderer per goroutine.
type FrameRenderer struct {
	width, height int
	dc            *gg.Context
	fontLoaded    bool

	lastRender time.Duration
}

// NewFrameRenderer creates a renderer for width x height pixel frames
func NewFrameRenderer(width, height int) *FrameRenderer {
	if width <= 0 {
		width = 500
	}
	if height <= 0 {
		height = 500
	}
	r := &FrameRenderer{
		width:  width,
		height: height,
		dc:     gg.NewContext(width, height),
	}
	if path := fontPath(); path != "" {
		r.fontLoaded = r.dc.LoadFontFace(path, 14) == nil
	}
	return r
}

// Render draws the snapshot and returns the canvas image. The image is
// reused by the next Render call.
func (r *FrameRenderer) Render(snap *game.GameSnapshot) image.Image {
	start := time.Now()
	dc := r.dc

	dc.SetColor(background)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	if snap == nil || snap.MapWidth <= 0 || snap.MapHeight <= 0 {
		r.lastRender = time.Since(start)
		return dc.Image()
	}

	sx := float64(r.width) / snap.MapWidth
	sy := float64(r.height) / snap.MapHeight

	r.drawLanes(snap, sx, sy)
	for _, t := range snap.Towers {
		r.drawTower(t, sx, sy)
	}
	for _, b := range snap.Bases {
		r.drawBase(b, sx, sy)
	}
	for _, m := range snap.Minions {
		r.drawMinion(m, sx, sy)
	}
	r.drawHUD(snap)

	r.lastRender = time.Since(start)
	return dc.Image()
}

// EncodePNG renders the snapshot and returns it PNG-encoded
func (r *FrameRenderer) EncodePNG(snap *game.GameSnapshot) ([]byte, error) {
	img := r.Render(snap)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// LastRenderTime returns how long the previous Render took
func (r *FrameRenderer) LastRenderTime() time.Duration { return r.lastRender }

// drawLanes connects each base to its towers in roster order, ending at the
// opposing base.
func (r *FrameRenderer) drawLanes(snap *game.GameSnapshot, sx, sy float64) {
	if len(snap.Bases) < 2 {
		return
	}
	dc := r.dc
	dc.SetColor(laneColor)
	dc.SetLineWidth(6)

	byLane := make(map[int][]game.EntitySnapshot)
	var lanes []int
	for _, t := range snap.Towers {
		if t.Team != "team1" {
			continue
		}
		if _, ok := byLane[t.Lane]; !ok {
			lanes = append(lanes, t.Lane)
		}
		byLane[t.Lane] = append(byLane[t.Lane], t)
	}
	if len(lanes) == 0 {
		dc.DrawLine(snap.Bases[0].X*sx, snap.Bases[0].Y*sy, snap.Bases[1].X*sx, snap.Bases[1].Y*sy)
		dc.Stroke()
		return
	}

	for _, lane := range lanes {
		dc.MoveTo(snap.Bases[0].X*sx, snap.Bases[0].Y*sy)
		for _, t := range byLane[lane] {
			dc.LineTo(t.X*sx, t.Y*sy)
		}
		for i := len(snap.Towers) - 1; i >= 0; i-- {
			t := snap.Towers[i]
			if t.Team == "team2" && t.Lane == lane {
				dc.LineTo(t.X*sx, t.Y*sy)
			}
		}
		dc.LineTo(snap.Bases[1].X*sx, snap.Bases[1].Y*sy)
		dc.Stroke()
	}
}

func (r *FrameRenderer) drawBase(b game.EntitySnapshot, sx, sy float64) {
	dc := r.dc
	x, y := b.X*sx, b.Y*sy
	size := 28.0

	if b.Alive {
		dc.SetColor(TeamColor(b.Team))
	} else {
		dc.SetColor(rubble)
	}
	dc.DrawRectangle(x-size/2, y-size/2, size, size)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawRectangle(x-size/2, y-size/2, size, size)
	dc.Stroke()

	r.drawHealthBar(x, y-size/2-8, 40, b.HP, b.MaxHP)
}

func (r *FrameRenderer) drawTower(t game.EntitySnapshot, sx, sy float64) {
	dc := r.dc
	x, y := t.X*sx, t.Y*sy

	if !t.Alive {
		dc.SetColor(rubble)
		dc.DrawRegularPolygon(6, x, y, 8, 0)
		dc.Fill()
		return
	}

	dc.SetColor(TeamColor(t.Team))
	dc.DrawRegularPolygon(3, x, y, 12, 0)
	dc.Fill()
	r.drawHealthBar(x, y-18, 24, t.HP, t.MaxHP)
}

func (r *FrameRenderer) drawMinion(m game.EntitySnapshot, sx, sy float64) {
	dc := r.dc
	x, y := m.X*sx, m.Y*sy

	dc.SetColor(TeamColor(m.Team))
	dc.DrawCircle(x, y, 4)
	dc.Fill()

	if m.Engaged {
		dc.SetColor(color.RGBA{255, 255, 255, 160})
		dc.SetLineWidth(1)
		dc.DrawCircle(x, y, 6)
		dc.Stroke()
	}
}

func (r *FrameRenderer) drawHealthBar(cx, top, width float64, hp, maxHP int) {
	if maxHP <= 0 {
		return
	}
	dc := r.dc
	pct := float64(hp) / float64(maxHP)

	dc.SetColor(color.RGBA{51, 51, 51, 255})
	dc.DrawRectangle(cx-width/2, top, width, 4)
	dc.Fill()

	switch {
	case pct > 0.5:
		dc.SetColor(color.RGBA{83, 255, 69, 255})
	case pct > 0.25:
		dc.SetColor(color.RGBA{255, 149, 0, 255})
	default:
		dc.SetColor(color.RGBA{255, 62, 62, 255})
	}
	dc.DrawRectangle(cx-width/2, top, width*pct, 4)
	dc.Fill()
}

func (r *FrameRenderer) drawHUD(snap *game.GameSnapshot) {
	if !r.fontLoaded {
		return
	}
	dc := r.dc

	dc.SetColor(goldText)
	dc.DrawString(fmt.Sprintf("Gold: %d", snap.GoldTotal), 10, 20)
	dc.SetColor(hudText)
	dc.DrawString(fmt.Sprintf("Hero HP: %d", snap.HeroHealth), 10, 38)
	dc.DrawStringAnchored(fmt.Sprintf("tick %d", snap.TickNumber), float64(r.width)-10, 20, 1, 0)

	if snap.Over {
		dc.SetColor(TeamColor(snap.Winner))
		dc.DrawStringAnchored(fmt.Sprintf("%s wins", snap.Winner), float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
	}
}

func fontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
