package game

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"lane-clash/internal/config"
	"lane-clash/internal/game/spatial"
	"lane-clash/internal/metrics"
)

// ErrMatchOver is returned by Tick once a winner has been declared.
var ErrMatchOver = errors.New("match is over")

// ErrTooManyListeners is returned by Subscribe when the listener cap is hit.
var ErrTooManyListeners = errors.New("listener limit reached")

// Listener receives the events of one frame, in emission order, after the
// frame's snapshot has been published. Listeners run on the engine goroutine
// and must not block.
type Listener func(events []Event)

// EngineConfig holds everything needed to build an engine
type EngineConfig struct {
	Map     config.MapConfig
	Sim     config.SimConfig
	Limits  config.ResourceLimits
	Spatial config.SpatialConfig
}

// EngineConfigFrom extracts the engine settings from the app config
func EngineConfigFrom(cfg config.AppConfig) EngineConfig {
	return EngineConfig{
		Map:     cfg.Map,
		Sim:     cfg.Sim,
		Limits:  cfg.Limits,
		Spatial: cfg.Spatial,
	}
}

// Engine is the simulation clock. It owns one match State and advances it
// in fixed ticks: pending spawns → pathing → targeting/combat → cleanup →
// win check. A frame runs as many fixed ticks as the accumulator allows and
// then publishes one snapshot.
type Engine struct {
	mu    sync.Mutex
	cfg   EngineConfig
	step  time.Duration
	state *State

	// current mirrors state for the spawn goroutine, which must never take mu.
	current atomic.Pointer[State]

	grid       *spatial.SpatialGrid
	candidates []*Minion // scratch for target candidates
	targets    []Entity  // scratch, per-minion target of the current tick

	accumulator time.Duration

	running   bool
	started   bool // set by Start, cleared by Stop; survives a match ending
	stopChan  chan struct{}
	doneChan  chan struct{}
	scheduler *SpawnScheduler

	snapshots *SnapshotStore
	eventLog  *EventLog

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextListen  int
}

// NewEngine creates a stopped engine with a fresh match
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Sim.TickRate <= 0 {
		cfg.Sim = config.DefaultSim()
	}
	if cfg.Map.Width <= 0 || cfg.Map.Height <= 0 {
		cfg.Map = config.DefaultMap()
	}

	e := &Engine{
		cfg:        cfg,
		step:       cfg.Sim.TickDuration(),
		grid:       spatial.NewSpatialGrid(cfg.Map.Width, cfg.Map.Height, float64(cfg.Spatial.GridCellSize), cfg.Limits.MaxMinions),
		candidates: make([]*Minion, 0, 64),
		snapshots:  NewSnapshotStore(cfg.Limits.MaxSnapshot),
		eventLog:   NewEventLog(),
		listeners:  make(map[int]Listener),
	}
	e.installState(NewState(cfg.Map, cfg.Sim))
	e.snapshots.Capture(e.state, cfg.Map.Width, cfg.Map.Height)
	return e
}

func (e *Engine) installState(s *State) {
	e.state = s
	e.current.Store(s)
	e.accumulator = 0
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig { return e.cfg }

// Step returns the fixed tick duration
func (e *Engine) Step() time.Duration { return e.step }

// Start launches the frame loop and the spawn scheduler
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.started = true
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stopChan, e.doneChan = stop, done
	e.scheduler = NewSpawnScheduler(e.cfg.Sim.SpawnInterval, e)
	over := e.state.Over
	sched := e.scheduler
	e.mu.Unlock()

	if !over {
		sched.Start()
	}
	go e.loop(stop, done)

	log.Printf("🎮 Simulation started at %d TPS (frame every %v)", e.cfg.Sim.TickRate, e.cfg.Sim.FrameInterval)
}

// loop drains the accumulator once per frame until stopped or the match ends.
func (e *Engine) loop(stop, done chan struct{}) {
	defer close(done)

	frame := e.cfg.Sim.FrameInterval
	if frame <= 0 {
		frame = e.step
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			e.Advance(now.Sub(last))
			last = now

			if e.IsOver() {
				e.mu.Lock()
				if e.stopChan == stop {
					e.running = false
				}
				e.mu.Unlock()
				log.Println("🛑 Simulation halted: match over")
				return
			}
		}
	}
}

// Stop halts the frame loop and the spawn scheduler. Safe to call twice.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.started = false
	if !e.running {
		sched := e.scheduler
		e.mu.Unlock()
		if sched != nil {
			sched.Stop()
		}
		return
	}
	e.running = false
	close(e.stopChan)
	done := e.doneChan
	sched := e.scheduler
	e.mu.Unlock()

	sched.Stop()
	sched.Wait()
	<-done
	log.Println("🛑 Simulation stopped")
}

// Running reports whether the frame loop is active
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Scheduler returns the current spawn scheduler (nil before Start)
func (e *Engine) Scheduler() *SpawnScheduler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler
}

// QueueWave implements WaveQueuer. It only touches the state's pending
// buffer, so it never waits for a running tick.
func (e *Engine) QueueWave() []*Minion {
	return e.current.Load().QueueWave()
}

// Tick runs exactly one fixed tick and publishes its snapshot and events.
// After the match is over it changes nothing and returns ErrMatchOver.
func (e *Engine) Tick() error {
	e.mu.Lock()
	if e.state.Over {
		e.mu.Unlock()
		return ErrMatchOver
	}
	e.tickLocked()
	events := e.publishLocked()
	e.mu.Unlock()

	e.dispatch(events)
	return nil
}

// Advance feeds wall time into the fixed-timestep accumulator, runs as many
// whole ticks as fit (at most MaxTicksPerFrame), then publishes one snapshot.
// Returns the number of ticks run.
func (e *Engine) Advance(elapsed time.Duration) int {
	e.mu.Lock()
	if e.state.Over || elapsed < 0 {
		e.mu.Unlock()
		return 0
	}

	e.accumulator += elapsed
	maxTicks := e.cfg.Sim.MaxTicksPerFrame
	ran := 0
	for e.accumulator >= e.step && (maxTicks <= 0 || ran < maxTicks) {
		e.tickLocked()
		e.accumulator -= e.step
		ran++
		if e.state.Over {
			e.accumulator = 0
			break
		}
	}

	dropped := 0
	if e.accumulator >= e.step {
		// Fell behind further than the cap allows; discard the backlog
		dropped = int(e.accumulator / e.step)
		e.accumulator %= e.step
	}

	var events []Event
	if ran > 0 {
		events = e.publishLocked()
	}
	e.mu.Unlock()

	metrics.RecordFrame(ran, dropped)
	if dropped > 0 {
		log.Printf("⚠️ Simulation fell behind, dropped %d ticks", dropped)
	}
	e.dispatch(events)
	return ran
}

// tickLocked runs one fixed tick. Caller holds mu.
func (e *Engine) tickLocked() {
	start := time.Now()
	s := e.state

	s.Tick++
	s.Now += e.step

	// Spawns queued since the last tick become visible now, never mid-tick.
	e.applySpawnsLocked()

	e.eventLog.Emit(Event{
		Version:   EventVersion,
		Type:      EventTypeTick,
		Timestamp: start.UnixNano(),
		TickNum:   s.Tick,
		Payload:   TickPayload{SimTimeNs: int64(s.Now), MinionCount: len(s.minions)},
	})

	minions := s.Minions()

	// (1) Pathing
	for _, m := range minions {
		Advance(m, s)
	}

	// Broad phase for target selection: indices into minions
	e.grid.Clear()
	for i, m := range minions {
		if s.IsActive(m) {
			e.grid.Insert(uint32(i), m.Pos.X, m.Pos.Y)
		}
	}

	// (2) Targeting and combat, in active-list order
	aggro := s.sim.AttackRange
	e.targets = e.targets[:0]
	for _, m := range minions {
		if !s.IsActive(m) {
			e.targets = append(e.targets, nil)
			continue
		}
		enemies := e.enemyCandidates(m, minions, aggro)
		target := SelectTarget(m, enemies, s.NextTower(m), s.Base(m.Team.Opponent()), aggro)
		e.targets = append(e.targets, target)
		m.Engaged = target != nil
		if target == nil {
			continue
		}
		if res := Attack(s, m, target, s.Now); res.Killed {
			metrics.IncDestroyed(target.Kind().String(), target.TeamID().String())
		}
	}
	// A minion whose target died this tick is free to move on the next one
	for i, m := range minions {
		if m.Engaged && !s.IsActive(e.targets[i]) {
			m.Engaged = false
		}
		e.targets[i] = nil
	}

	// (3) Cleanup
	s.cleanup()

	// (5) Win check; notification (4) happens when the frame is published
	if winner, declared := CheckWinCondition(s); declared {
		if e.scheduler != nil {
			e.scheduler.Stop()
		}
		metrics.IncMatchOver(winner.String())
	}

	metrics.RecordTick(time.Since(start))
}

// enemyCandidates returns the opposing live minions near m, preserving
// active-list order so that target ties still break by iteration order.
func (e *Engine) enemyCandidates(m *Minion, minions []*Minion, aggro float64) []*Minion {
	e.candidates = e.candidates[:0]
	for _, idx := range e.grid.QueryRadius(m.Pos.X, m.Pos.Y, aggro) {
		c := minions[idx]
		if c.Team != m.Team && c.HP > 0 {
			e.candidates = append(e.candidates, c)
		}
	}
	return e.candidates
}

func (e *Engine) applySpawnsLocked() {
	s := e.state
	added, dropped := s.applyPending(e.cfg.Limits.MaxMinions)

	if dropped > 0 {
		metrics.IncSpawnsDropped(dropped)
		log.Printf("⚠️ Minion cap reached (%d), dropped %d spawns", e.cfg.Limits.MaxMinions, dropped)
	}

	for _, m := range added {
		s.emit(NewEvent(EventTypeSpawn, m.ID, SpawnPayload{
			Team: m.Team.String(),
			X:    m.Pos.X,
			Y:    m.Pos.Y,
			HP:   m.HP,
			Path: m.Path.String(),
		}))
		metrics.IncSpawned(m.Team.String(), 1)
	}
}

// publishLocked captures the snapshot, updates gauges and hands back the
// events collected since the last publish. Caller holds mu.
func (e *Engine) publishLocked() []Event {
	snap := e.snapshots.Capture(e.state, e.cfg.Map.Width, e.cfg.Map.Height)
	for _, t := range snap.Teams {
		metrics.SetTeamState(t.Team, t.Minions, t.Gold, t.BaseHP)
	}

	events := e.state.drainEvents()
	for _, ev := range events {
		e.eventLog.Emit(ev)
	}
	return events
}

func (e *Engine) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	for _, l := range e.listeners {
		l(events)
	}
}

// Subscribe registers a listener and returns a function that removes it.
func (e *Engine) Subscribe(l Listener) (func(), error) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	if max := e.cfg.Limits.MaxListeners; max > 0 && len(e.listeners) >= max {
		return nil, ErrTooManyListeners
	}
	id := e.nextListen
	e.nextListen++
	e.listeners[id] = l

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}, nil
}

// Reset discards the current match and starts a fresh one from the same
// configuration. An engine that was started, and not stopped, runs the new
// match even if the previous one already ended.
func (e *Engine) Reset() {
	e.mu.Lock()
	restart := e.started
	e.mu.Unlock()
	if restart {
		e.Stop()
	}

	e.mu.Lock()
	e.installState(NewState(e.cfg.Map, e.cfg.Sim))
	e.state.emit(NewEvent(EventTypeReset, "", nil))
	events := e.publishLocked()
	e.mu.Unlock()

	e.dispatch(events)
	log.Println("🔄 Match reset")

	if restart {
		e.Start()
	}
}

// GetSnapshot returns the latest immutable snapshot for lock-free rendering
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshots.Latest()
}

// IsOver reports whether a winner has been declared
func (e *Engine) IsOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Over
}

// WithState runs fn with exclusive access to the live state. fn must not
// retain the state or any entity after returning.
func (e *Engine) WithState(fn func(s *State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.state)
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}

// RecentEvents returns up to n of the latest logged events
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}

// GetSpatialGrid returns the spatial grid for testing and external queries
func (e *Engine) GetSpatialGrid() *spatial.SpatialGrid {
	return e.grid
}
