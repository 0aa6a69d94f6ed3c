package render

import (
	"bytes"
	"image/png"
	"testing"

	"lane-clash/internal/game"

	"github.com/gdamore/tcell/v2"
)

func testSnapshot() *game.GameSnapshot {
	return &game.GameSnapshot{
		TickNumber: 42,
		MapWidth:   1000,
		MapHeight:  1000,
		Bases: []game.EntitySnapshot{
			{ID: "base-1", Kind: "base", Team: "team1", X: 100, Y: 850, HP: 5000, MaxHP: 5000, Alive: true},
			{ID: "base-2", Kind: "base", Team: "team2", X: 900, Y: 150, HP: 2500, MaxHP: 5000, Alive: true},
		},
		Towers: []game.EntitySnapshot{
			{ID: "t1_1", Kind: "tower", Team: "team1", X: 200, Y: 750, HP: 1000, MaxHP: 1000, Alive: true, Lane: 1},
			{ID: "t2_1", Kind: "tower", Team: "team2", X: 800, Y: 250, HP: 0, MaxHP: 1000, Alive: false, Lane: 1},
		},
		Minions: []game.EntitySnapshot{
			{ID: "minion-0", Kind: "minion", Team: "team1", X: 500, Y: 500, HP: 100, MaxHP: 100, Alive: true},
			{ID: "minion-1", Kind: "minion", Team: "team2", X: 520, Y: 480, HP: 60, MaxHP: 100, Alive: true, Engaged: true},
		},
		Teams: []game.TeamSnapshot{
			{Team: "team1", Minions: 1, TowersUp: 1, BaseHP: 5000},
			{Team: "team2", Minions: 1, TowersUp: 0, BaseHP: 2500},
		},
		GoldTotal:  30,
		HeroHealth: 100,
	}
}

func TestFrameRendererEncodePNG(t *testing.T) {
	tests := []struct {
		name string
		snap *game.GameSnapshot
	}{
		{"full match", testSnapshot()},
		{"empty snapshot", &game.GameSnapshot{}},
		{"nil snapshot", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFrameRenderer(200, 120)
			data, err := r.EncodePNG(tt.snap)
			if err != nil {
				t.Fatal(err)
			}

			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("invalid PNG: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 120 {
				t.Errorf("frame size = %dx%d, want 200x120", b.Dx(), b.Dy())
			}
		})
	}
}

func TestFrameRendererDrawsTeamColors(t *testing.T) {
	r := NewFrameRenderer(100, 100)
	img := r.Render(testSnapshot())

	// base-1 sits at (10, 85) in a 100x100 frame
	got := img.At(10, 85)
	want := TeamColor("team1")
	cr, cg, cb, _ := got.RGBA()
	if uint8(cr>>8) != want.R || uint8(cg>>8) != want.G || uint8(cb>>8) != want.B {
		t.Errorf("pixel at base-1 = %v, want team1 color %v", got, want)
	}
}

func TestCell(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name   string
		x, y   float64
		wx, wy int
	}{
		{"origin", 0, 0, 0, 1},
		{"far corner clamps", 1000, 1000, 79, 23},
		{"outside clamps", -50, 2000, 0, 23},
		{"middle", 500, 500, 40, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Cell(snap, tt.x, tt.y, 80, 24)
			if x != tt.wx || y != tt.wy {
				t.Errorf("Cell(%v,%v) = (%d,%d), want (%d,%d)", tt.x, tt.y, x, y, tt.wx, tt.wy)
			}
		})
	}
}

func TestTerminalRendererDraw(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(80, 24)

	snap := testSnapshot()
	NewTerminalRenderer(screen).Draw(snap)

	expect := []struct {
		id    string
		x, y  float64
		glyph rune
	}{
		{"base-1", 100, 850, GlyphBase},
		{"t1_1", 200, 750, GlyphTower},
		{"t2_1 rubble", 800, 250, GlyphRubble},
		{"minion-0", 500, 500, GlyphMinion},
		{"minion-1 engaged", 520, 480, GlyphMinionHold},
	}
	for _, e := range expect {
		cx, cy := Cell(snap, e.x, e.y, 80, 24)
		mainc, _, _, _ := screen.GetContent(cx, cy)
		if mainc != e.glyph {
			t.Errorf("%s at (%d,%d) = %q, want %q", e.id, cx, cy, mainc, e.glyph)
		}
	}

	if mainc, _, _, _ := screen.GetContent(1, 0); mainc != 't' {
		t.Errorf("status line starts with %q, want tick counter", mainc)
	}
}
