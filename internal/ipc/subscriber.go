package ipc

import (
	"bufio"
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"lane-clash/internal/game"
)

// Subscriber receives match snapshots from a server and keeps the latest one.
// It reconnects on its own until stopped.
type Subscriber struct {
	socketPath string
	conn       net.Conn
	connMu     sync.Mutex

	// Latest snapshot (lock-free access)
	latest atomic.Pointer[game.GameSnapshot]

	match   MatchMessage
	matchMu sync.RWMutex
	matchCh chan MatchMessage

	// Stats
	snapshotsReceived int64 // atomic
	reconnects        int64 // atomic
	errors            int64 // atomic

	// Control
	running int32 // atomic
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSubscriber creates a new snapshot subscriber
func NewSubscriber(socketPath string) *Subscriber {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}

	return &Subscriber{
		socketPath: socketPath,
		matchCh:    make(chan MatchMessage, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the connection loop
func (s *Subscriber) Start() error {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return nil // Already running
	}

	s.wg.Add(1)
	go s.connectionLoop()

	log.Printf("📡 Connecting to snapshot feed at %s", GetPlatformAddress(s.socketPath))
	return nil
}

// Stop closes the connection and waits for the loop to exit
func (s *Subscriber) Stop() {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return // Not running
	}

	close(s.stopCh)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
}

// GetSnapshot returns the most recent snapshot, or nil before the first one
func (s *Subscriber) GetSnapshot() *game.GameSnapshot {
	return s.latest.Load()
}

// Match returns the match description received on connect
func (s *Subscriber) Match() MatchMessage {
	s.matchMu.RLock()
	defer s.matchMu.RUnlock()
	return s.match
}

// WaitForMatch blocks until match info arrives, the timeout passes or Stop
func (s *Subscriber) WaitForMatch(timeout time.Duration) (MatchMessage, bool) {
	select {
	case m := <-s.matchCh:
		return m, true
	case <-time.After(timeout):
		return MatchMessage{}, false
	case <-s.stopCh:
		return MatchMessage{}, false
	}
}

// GetStats returns subscriber statistics
func (s *Subscriber) GetStats() (received int64, reconnects int64, errors int64) {
	return atomic.LoadInt64(&s.snapshotsReceived),
		atomic.LoadInt64(&s.reconnects),
		atomic.LoadInt64(&s.errors)
}

// IsConnected returns whether the subscriber is connected
func (s *Subscriber) IsConnected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

func (s *Subscriber) connectionLoop() {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.running) == 1 {
		conn, err := ConnectPlatform(s.socketPath)
		if err != nil {
			select {
			case <-s.stopCh:
				return
			case <-time.After(ReconnectDelay):
				continue
			}
		}

		s.connMu.Lock()
		if atomic.LoadInt32(&s.running) == 0 {
			s.connMu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connMu.Unlock()
		log.Printf("✅ Connected to %s", GetPlatformAddress(s.socketPath))

		s.readLoop(conn)

		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		conn.Close()

		atomic.AddInt64(&s.reconnects, 1)

		select {
		case <-s.stopCh:
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

func (s *Subscriber) readLoop(conn net.Conn) {
	br := bufio.NewReader(conn)
	for atomic.LoadInt32(&s.running) == 1 {
		// Idle timeouts are only safe between frames
		conn.SetReadDeadline(time.Now().Add(ReadTimeout))
		if _, err := br.Peek(1); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				log.Println("🔌 Server closed the snapshot feed")
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(FrameTimeout))
		msgType, data, err := ReadMessage(br)
		if err != nil {
			if atomic.LoadInt32(&s.running) == 1 {
				log.Printf("⚠️ Snapshot feed read error: %v", err)
				atomic.AddInt64(&s.errors, 1)
			}
			return
		}

		switch msgType {
		case MsgTypeSnapshot:
			s.handleSnapshot(data)
		case MsgTypeMatch:
			s.handleMatch(data)
		case MsgTypePing:
			conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
			WriteMessage(conn, MsgTypePong, nil)
		}
	}
}

func (s *Subscriber) handleSnapshot(data []byte) {
	msg, err := DecodeSnapshot(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode snapshot: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.latest.Store(msg.ToGameSnapshot(s.Match()))
	atomic.AddInt64(&s.snapshotsReceived, 1)
}

func (s *Subscriber) handleMatch(data []byte) {
	m, err := DecodeMatch(data)
	if err != nil {
		log.Printf("⚠️ Failed to decode match info: %v", err)
		atomic.AddInt64(&s.errors, 1)
		return
	}

	s.matchMu.Lock()
	s.match = *m
	s.matchMu.Unlock()

	log.Printf("🗺️  Match %q: %gx%g @ %d TPS", m.Name, m.MapWidth, m.MapHeight, m.TickRate)

	select {
	case s.matchCh <- *m:
	default:
	}
}
