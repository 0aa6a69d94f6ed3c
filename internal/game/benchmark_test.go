package game

import (
	"testing"

	"lane-clash/internal/config"
)

// =============================================================================
// BENCHMARK SUITE: CRITICAL PATH PERFORMANCE TESTS
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// benchEngine returns an engine with waves queued so that roughly
// minionCount minions are live after the first tick. Structures are
// effectively unkillable so the match never ends mid-benchmark.
func benchEngine(b *testing.B, minionCount int) *Engine {
	b.Helper()
	cfg := testEngineConfig()
	cfg.Sim.TowerHP = 1 << 30
	cfg.Sim.CoreHP = 1 << 30
	cfg.Sim.MinionHP = 1 << 30
	cfg.Limits.MaxMinions = minionCount + 2

	engine := NewEngine(cfg)
	engine.WithState(func(s *State) {
		for i := 0; i < minionCount/2; i++ {
			s.QueueWave()
		}
	})
	if err := engine.Tick(); err != nil {
		b.Fatal(err)
	}
	return engine
}

// -----------------------------------------------------------------------------
// ENGINE TICK BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkEngineTick_10Minions(b *testing.B)   { benchmarkEngineTick(b, 10) }
func BenchmarkEngineTick_100Minions(b *testing.B)  { benchmarkEngineTick(b, 100) }
func BenchmarkEngineTick_500Minions(b *testing.B)  { benchmarkEngineTick(b, 500) }
func BenchmarkEngineTick_2000Minions(b *testing.B) { benchmarkEngineTick(b, 2000) }

func benchmarkEngineTick(b *testing.B, minionCount int) {
	engine := benchEngine(b, minionCount)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.Tick()
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT GENERATION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkCaptureSnapshot_100Minions(b *testing.B)  { benchmarkSnapshot(b, 100) }
func BenchmarkCaptureSnapshot_2000Minions(b *testing.B) { benchmarkSnapshot(b, 2000) }

func benchmarkSnapshot(b *testing.B, minionCount int) {
	engine := benchEngine(b, minionCount)
	store := NewSnapshotStore(config.DefaultLimits().MaxSnapshot)
	m := engine.Config().Map

	b.ResetTimer()
	b.ReportAllocs()

	engine.WithState(func(s *State) {
		for i := 0; i < b.N; i++ {
			store.Capture(s, m.Width, m.Height)
		}
	})
}

// -----------------------------------------------------------------------------
// TARGET SELECTION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkSelectTarget_50Candidates(b *testing.B) {
	s := newTestState(nil)
	unit := testMinion(s, Team1, 500, 500, nil)
	enemies := make([]*Minion, 50)
	for i := range enemies {
		enemies[i] = testMinion(s, Team2, 500+float64(i)*3, 500, nil)
	}
	base := s.Base(Team2)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		SelectTarget(unit, enemies, nil, base, s.Sim().AttackRange)
	}
}
