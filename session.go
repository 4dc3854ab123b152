package server

import (
	"sync"
	"time"
)

// sessionConn is the slice of the websocket connection the hub needs. Tests
// substitute in-memory fakes.
type sessionConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// session tracks one connected client: liveness, rate-limit accounting, and a
// buffered outbound queue drained by its own write pump.
type session struct {
	id   string
	conn sessionConn

	outbound  chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	mu             sync.Mutex
	lastHeartbeat  time.Time
	lastRTT        time.Duration
	windowStart    time.Time
	windowCount    int
	flagged        bool
	lastCommandSeq uint64
}

func newSession(id string, conn sessionConn, now time.Time) *session {
	return &session{
		id:            id,
		conn:          conn,
		outbound:      make(chan []byte, outboundBufferSize),
		closed:        make(chan struct{}),
		lastHeartbeat: now,
		windowStart:   now,
	}
}

// Send stages an outbound frame without blocking. A full queue means the
// client cannot keep up; the caller treats it like a broken pipe.
func (s *session) Send(data []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.outbound <- data:
		return true
	default:
		return false
	}
}

// writePump drains the outbound queue onto the wire. It exits on the first
// write failure or when the session closes.
func (s *session) writePump(onError func()) {
	for {
		select {
		case <-s.closed:
			return
		case data := <-s.outbound:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(textMessage, data); err != nil {
				if onError != nil {
					onError()
				}
				return
			}
		}
	}
}

// close tears the session down exactly once.
func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// allowInbound applies the rolling-window rate limit. Excess messages are
// dropped and the session flagged; the connection itself survives.
func (s *session) allowInbound(now time.Time, window time.Duration, budget int) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.windowStart) >= window {
		s.windowStart = now
		s.windowCount = 0
	}
	s.windowCount++
	if s.windowCount > budget {
		s.flagged = true
		return false, s.windowCount
	}
	return true, s.windowCount
}

func (s *session) heartbeat(receivedAt time.Time, clientSent int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			s.lastRTT = rtt
		}
	}
	return s.lastRTT
}

func (s *session) silentFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastHeartbeat)
}

func (s *session) isFlagged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagged
}

// LastCommandSeq returns the newest staged command sequence number.
func (s *session) LastCommandSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommandSeq
}

// StoreLastCommandSeq records a staged command sequence number.
func (s *session) StoreLastCommandSeq(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastCommandSeq {
		s.lastCommandSeq = seq
	}
}
