package coordinator

import (
	"sync"

	"github.com/duocall/signaling/internal/v1/types"
)

// MockPeer implements types.PeerInterface and records everything the
// coordinator enqueues on it.
type MockPeer struct {
	id types.SessionIDType

	mu          sync.Mutex
	sent        []string
	closed      bool
	closeReason string
	rejectSends bool // simulate a full outbox
}

func NewMockPeer(id string) *MockPeer {
	return &MockPeer{id: types.SessionIDType(id)}
}

func (p *MockPeer) GetID() types.SessionIDType { return p.id }

func (p *MockPeer) Send(line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejectSends || p.closed {
		return false
	}
	p.sent = append(p.sent, line)
	return true
}

func (p *MockPeer) Close(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.closeReason = reason
}

// Sent returns a snapshot of the outbox in enqueue order.
func (p *MockPeer) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	copy(out, p.sent)
	return out
}

// Drain clears recorded sends so a test can assert on the next step only.
func (p *MockPeer) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}

func (p *MockPeer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *MockPeer) CloseReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeReason
}

func (p *MockPeer) SetRejectSends(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectSends = reject
}
