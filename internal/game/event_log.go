package game

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024                   // Circular buffer size
	MaxEventsPerSec      = 10000                  // Global rate limit
	MaxEventsPerEntity   = 100                    // Per-entity rate limit per second
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	EntityLimiterCleanup = 5 * time.Minute        // Cleanup interval for entity limiters
)

// EventLog provides bounded, rate-limited JSONL event logging with backpressure.
// Ticks, match results and resets bypass the per-entity limiter so a replay
// always sees the match boundaries.
type EventLog struct {
	// Circular buffer guarded by bufMu
	bufMu     sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // next sequence to assign
	readHead  uint64 // next sequence to flush

	// Rate limiting for DoS protection
	globalLimiter  *rate.Limiter
	entityLimiters sync.Map // map[string]*entityLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	// Stats for monitoring
	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// entityLimiterEntry tracks per-entity rate limiting
type entityLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer goroutine. An empty path keeps the log in
// memory only (Recent still works).
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop gracefully shuts down the event log, flushing what is buffered.
func (el *EventLog) Stop() {
	if !el.running.Load() {
		return
	}
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting.
// Returns false if the log is stopped or the event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !alwaysLogged(event.Type) {
		if !el.globalLimiter.Allow() {
			el.droppedCount.Add(1)
			return false
		}
		// Per-entity rate limit (a single brawl cannot flood the log)
		if event.EntityID != "" && !el.getEntityLimiter(event.EntityID).Allow() {
			el.droppedCount.Add(1)
			return false
		}
	}

	el.bufMu.Lock()
	// Buffer full: drop the oldest event (rolling window)
	if el.writeHead-el.readHead >= EventBufferSize {
		el.readHead++
		el.droppedCount.Add(1)
	}
	event.Sequence = el.writeHead
	el.buffer[el.writeHead%EventBufferSize] = event
	el.writeHead++
	el.bufMu.Unlock()

	el.totalCount.Add(1)
	return true
}

func alwaysLogged(t EventType) bool {
	return t == EventTypeTick || t == EventTypeMatchOver || t == EventTypeReset
}

// getEntityLimiter returns/creates a per-entity rate limiter
func (el *EventLog) getEntityLimiter(entityID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.entityLimiters.Load(entityID); ok {
		e := v.(*entityLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &entityLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerEntity, MaxEventsPerEntity/10),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.entityLimiters.LoadOrStore(entityID, entry)
	return actual.(*entityLimiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush of everything still buffered
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale entity limiters; minion ids are never reused.
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(EntityLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupEntityLimiters()
		}
	}
}

func (el *EventLog) cleanupEntityLimiters() {
	cutoff := time.Now().Add(-EntityLimiterCleanup).UnixNano()
	el.entityLimiters.Range(func(key, value interface{}) bool {
		if value.(*entityLimiterEntry).lastUsed.Load() < cutoff {
			el.entityLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads unflushed events from the circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
		el.readHead++
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	w := bufio.NewWriter(el.file)
	enc := json.NewEncoder(w)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			continue
		}
	}
	w.Flush()
}

// Recent returns up to n of the most recent events still held in the ring,
// oldest first. Flushed events remain readable until overwritten.
func (el *EventLog) Recent(n int) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	avail := el.writeHead
	if avail > EventBufferSize {
		avail = EventBufferSize
	}
	if n <= 0 || uint64(n) > avail {
		n = int(avail)
	}

	out := make([]Event, 0, n)
	for seq := el.writeHead - uint64(n); seq < el.writeHead; seq++ {
		out = append(out, el.buffer[seq%EventBufferSize])
	}
	return out
}

// GetStats returns metrics for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return map[string]interface{}{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
		"path":    el.filePath,
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return el.droppedCount.Load()
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return el.totalCount.Load()
}
