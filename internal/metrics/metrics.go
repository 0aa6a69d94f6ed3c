// Package metrics holds the simulation's Prometheus collectors.
//
// Cardinality is bounded: labels only ever take team names ("team1",
// "team2") or entity kinds ("base", "tower", "minion").
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent in one fixed simulation tick",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	ticksPerFrame = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_ticks_per_frame",
		Help:    "Fixed ticks run per accumulator drain",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})

	ticksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_ticks_dropped_total",
		Help: "Ticks discarded because the accumulator exceeded the catch-up cap",
	})

	activeMinions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_active_minions",
		Help: "Minions currently in the active set",
	}, []string{"team"})

	gold = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_gold",
		Help: "Gold balance per team",
	}, []string{"team"})

	baseHP = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_base_hp",
		Help: "Core hp per team",
	}, []string{"team"})

	spawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_minions_spawned_total",
		Help: "Minions that entered the active set",
	}, []string{"team"})

	spawnsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_spawns_dropped_total",
		Help: "Queued minions discarded by the live minion cap",
	})

	destroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_entities_destroyed_total",
		Help: "Entities destroyed, by kind and owning team",
	}, []string{"kind", "team"})

	matchesOver = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_matches_over_total",
		Help: "Matches finished, by winning team",
	}, []string{"winner"})
)

// RecordTick records the duration of one simulation tick
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordFrame records how many ticks one accumulator drain ran and how many it dropped
func RecordFrame(ran, dropped int) {
	ticksPerFrame.Observe(float64(ran))
	if dropped > 0 {
		ticksDropped.Add(float64(dropped))
	}
}

// SetTeamState updates the per-team gauges
func SetTeamState(team string, minions, goldBalance, hp int) {
	activeMinions.WithLabelValues(team).Set(float64(minions))
	gold.WithLabelValues(team).Set(float64(goldBalance))
	baseHP.WithLabelValues(team).Set(float64(hp))
}

// IncSpawned counts minions entering the active set
func IncSpawned(team string, n int) {
	spawned.WithLabelValues(team).Add(float64(n))
}

// IncSpawnsDropped counts spawns rejected by the minion cap
func IncSpawnsDropped(n int) {
	spawnsDropped.Add(float64(n))
}

// IncDestroyed counts a destroyed entity
func IncDestroyed(kind, team string) {
	destroyed.WithLabelValues(kind, team).Inc()
}

// IncMatchOver counts a finished match
func IncMatchOver(winner string) {
	matchesOver.WithLabelValues(winner).Inc()
}
