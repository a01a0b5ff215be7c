package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/duocall/signaling/internal/v1/types"
)

var errConnClosed = errors.New("use of closed connection")

type frame struct {
	messageType int
	data        []byte
}

// mockConn implements wsConnection for pump tests.
type mockConn struct {
	mu        sync.Mutex
	writes    []frame
	reads     chan frame
	closeOnce sync.Once
	done      chan struct{}
}

func newMockConn() *mockConn {
	return &mockConn{
		reads: make(chan frame, 16),
		done:  make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	// Drain frames queued before Close so delivery order is deterministic;
	// otherwise select picks randomly between a pending frame and done.
	select {
	case f, ok := <-m.reads:
		if !ok {
			return 0, nil, errConnClosed
		}
		return f.messageType, f.data, nil
	default:
	}
	select {
	case f, ok := <-m.reads:
		if !ok {
			return 0, nil, errConnClosed
		}
		return f.messageType, f.data, nil
	case <-m.done:
		return 0, nil, errConnClosed
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, frame{messageType: messageType, data: append([]byte(nil), data...)})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *mockConn) SetReadDeadline(time.Time) error      { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error     { return nil }
func (m *mockConn) SetReadLimit(int64)                   {}
func (m *mockConn) SetPongHandler(func(string) error)    {}

// deliver queues an inbound frame for the read pump.
func (m *mockConn) deliver(messageType int, data string) {
	m.reads <- frame{messageType: messageType, data: []byte(data)}
}

// writtenFrames returns a snapshot of everything written to the socket.
func (m *mockConn) writtenFrames() []frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]frame, len(m.writes))
	copy(out, m.writes)
	return out
}

// recordingSink implements types.EventSink and records delivered events.
type recordingSink struct {
	mu       sync.Mutex
	opened   []types.SessionIDType
	messages []string
	closed   []types.SessionIDType
}

func (s *recordingSink) OnOpen(peer types.PeerInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, peer.GetID())
}

func (s *recordingSink) OnMessage(id types.SessionIDType, rawLine string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, rawLine)
}

func (s *recordingSink) OnClose(id types.SessionIDType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, id)
}

func (s *recordingSink) receivedMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *recordingSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.closed)
}
