package ipc

import (
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"lane-clash/internal/game"
)

// SnapshotSource is anything that exposes the latest published snapshot
type SnapshotSource interface {
	GetSnapshot() *game.GameSnapshot
}

// Publisher pushes match snapshots to connected viewers
type Publisher struct {
	socketPath string
	listener   net.Listener

	// Connected clients
	clients   map[net.Conn]struct{}
	clientsMu sync.RWMutex

	// Snapshot channel (ring buffer behavior - drop old if full)
	snapshotCh chan *game.GameSnapshot

	// Sent to new clients before any snapshot
	match   MatchMessage
	matchMu sync.RWMutex

	// Stats
	clientCount   int32 // atomic
	snapshotsSent int64 // atomic
	droppedFrames int64 // atomic

	// Control
	running  int32 // atomic
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPublisher creates a new snapshot publisher
func NewPublisher(socketPath string) *Publisher {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Publisher{
		socketPath: socketPath,
		clients:    make(map[net.Conn]struct{}),
		snapshotCh: make(chan *game.GameSnapshot, 8), // Buffer 8 frames
		stopCh:     make(chan struct{}),
	}
}

// SetMatch sets the match description sent to new clients
func (p *Publisher) SetMatch(m MatchMessage) {
	p.matchMu.Lock()
	p.match = m
	p.matchMu.Unlock()
}

// Start opens the listener and starts the accept and broadcast loops
func (p *Publisher) Start() error {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil // Already running
	}

	listener, err := CreatePlatformListener(p.socketPath)
	if err != nil {
		atomic.StoreInt32(&p.running, 0)
		return err
	}
	p.listener = listener

	p.wg.Add(2)
	go p.acceptLoop()
	go p.broadcastLoop()

	log.Printf("📡 Snapshot feed on %s", GetPlatformAddress(p.socketPath))
	return nil
}

// Stop closes the listener and every client
func (p *Publisher) Stop() {
	if !atomic.CompareAndSwapInt32(&p.running, 1, 0) {
		return // Not running
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.listener.Close()

	p.clientsMu.Lock()
	for conn := range p.clients {
		conn.Close()
	}
	p.clients = make(map[net.Conn]struct{})
	p.clientsMu.Unlock()
	atomic.StoreInt32(&p.clientCount, 0)

	p.wg.Wait()

	CleanupSocket(p.socketPath)
	log.Println("📡 Snapshot feed stopped")
}

// PublishSnapshot queues a snapshot for broadcast.
// Non-blocking: drops the oldest queued snapshot if the buffer is full.
func (p *Publisher) PublishSnapshot(snapshot *game.GameSnapshot) {
	if atomic.LoadInt32(&p.running) == 0 || snapshot == nil {
		return
	}

	select {
	case p.snapshotCh <- snapshot:
	default:
		select {
		case <-p.snapshotCh:
			atomic.AddInt64(&p.droppedFrames, 1)
		default:
		}
		select {
		case p.snapshotCh <- snapshot:
		default:
		}
	}
}

// Follow publishes every new snapshot from src, checked once per interval,
// until Stop. Unchanged sequences are skipped.
func (p *Publisher) Follow(src SnapshotSource, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var lastSeq uint64
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
			}
			if atomic.LoadInt32(&p.clientCount) == 0 {
				continue
			}
			snap := src.GetSnapshot()
			if snap == nil || snap.Sequence == lastSeq {
				continue
			}
			lastSeq = snap.Sequence
			p.PublishSnapshot(snap)
		}
	}()
}

// GetStats returns publisher statistics
func (p *Publisher) GetStats() (clients int, sent int64, dropped int64) {
	return int(atomic.LoadInt32(&p.clientCount)),
		atomic.LoadInt64(&p.snapshotsSent),
		atomic.LoadInt64(&p.droppedFrames)
}

func (p *Publisher) acceptLoop() {
	defer p.wg.Done()

	for atomic.LoadInt32(&p.running) == 1 {
		conn, err := p.listener.Accept()
		if err != nil {
			if atomic.LoadInt32(&p.running) == 0 {
				return // Expected during shutdown
			}
			log.Printf("⚠️ Snapshot feed accept error: %v", err)
			continue
		}
		p.addClient(conn)
	}
}

func (p *Publisher) addClient(conn net.Conn) {
	p.matchMu.RLock()
	match := p.match
	p.matchMu.RUnlock()

	// Match info goes out before the client can receive any snapshot
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := WriteMessage(conn, MsgTypeMatch, match); err != nil {
		log.Printf("⚠️ Failed to send match info to viewer: %v", err)
		conn.Close()
		return
	}

	p.clientsMu.Lock()
	if atomic.LoadInt32(&p.running) == 0 {
		p.clientsMu.Unlock()
		conn.Close()
		return
	}
	p.clients[conn] = struct{}{}
	p.clientsMu.Unlock()

	count := atomic.AddInt32(&p.clientCount, 1)
	log.Printf("✅ Viewer connected (total: %d)", count)
}

func (p *Publisher) removeClient(conn net.Conn) {
	p.clientsMu.Lock()
	if _, ok := p.clients[conn]; ok {
		delete(p.clients, conn)
		conn.Close()
		p.clientsMu.Unlock()

		count := atomic.AddInt32(&p.clientCount, -1)
		log.Printf("🔌 Viewer disconnected (remaining: %d)", count)
	} else {
		p.clientsMu.Unlock()
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case snapshot := <-p.snapshotCh:
			p.broadcast(snapshot)
		}
	}
}

func (p *Publisher) broadcast(snapshot *game.GameSnapshot) {
	msg := FromSnapshot(snapshot)

	p.clientsMu.RLock()
	clients := make([]net.Conn, 0, len(p.clients))
	for conn := range p.clients {
		clients = append(clients, conn)
	}
	p.clientsMu.RUnlock()

	var failed []net.Conn
	for _, conn := range clients {
		conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := WriteMessage(conn, MsgTypeSnapshot, msg); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		p.removeClient(conn)
	}

	if len(clients) > 0 && len(failed) < len(clients) {
		atomic.AddInt64(&p.snapshotsSent, 1)
	}
}
