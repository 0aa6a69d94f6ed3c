package game

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// WaveQueuer receives spawn requests. Implementations must be safe to call
// from the scheduler goroutine while a tick is running.
type WaveQueuer interface {
	QueueWave() []*Minion
}

// SpawnScheduler fires on a wall-clock interval, independent of the
// simulation tick, and queues one minion per team on every firing.
// Queued minions become visible at the start of the next tick.
type SpawnScheduler struct {
	interval time.Duration
	target   WaveQueuer

	started  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	fired atomic.Uint64
}

// NewSpawnScheduler creates a stopped scheduler
func NewSpawnScheduler(interval time.Duration, target WaveQueuer) *SpawnScheduler {
	return &SpawnScheduler{
		interval: interval,
		target:   target,
		stopChan: make(chan struct{}),
	}
}

// Start launches the timer goroutine. Calling Start twice, or after Stop, is a no-op.
func (s *SpawnScheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	select {
	case <-s.stopChan:
		return
	default:
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Fire()
			}
		}
	}()

	log.Printf("🐣 Spawn scheduler started (every %v)", s.interval)
}

// Fire queues one wave immediately.
func (s *SpawnScheduler) Fire() []*Minion {
	s.fired.Add(1)
	return s.target.QueueWave()
}

// Stop halts the timer. It never blocks on the engine, so it is safe to call
// while the engine lock is held; Wait blocks until the goroutine exits.
func (s *SpawnScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Wait blocks until the timer goroutine has exited
func (s *SpawnScheduler) Wait() {
	s.wg.Wait()
}

// Stopped reports whether Stop has been called
func (s *SpawnScheduler) Stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// Fired returns the number of waves queued so far
func (s *SpawnScheduler) Fired() uint64 {
	return s.fired.Load()
}
