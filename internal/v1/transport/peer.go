package transport

import (
	"context"
	"sync"
	"time"

	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/duocall/signaling/internal/v1/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// outboxSize bounds the per-peer outbound queue. A peer that cannot
	// drain this many lines is unhealthy and gets dropped.
	outboxSize = 256

	// writeWait is the deadline for a single socket write.
	writeWait = 10 * time.Second

	// maxMessageSize bounds inbound frames. SDP bodies fit comfortably.
	maxMessageSize = 65536
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
}

// Peer is one live signaling connection. It implements types.PeerInterface.
// The read pump feeds inbound lines to the coordinator; the write pump owns
// all socket writes, draining the outbox and sending keep-alive pings.
type Peer struct {
	conn        wsConnection
	sink        types.EventSink
	id          types.SessionIDType
	pingPeriod  time.Duration
	idleTimeout time.Duration

	mu          sync.Mutex
	closed      bool
	closeReason string

	outbox chan string
}

// NewPeer wraps an accepted connection. The caller starts the pumps.
func NewPeer(conn wsConnection, id types.SessionIDType, sink types.EventSink, pingPeriod, idleTimeout time.Duration) *Peer {
	return &Peer{
		conn:        conn,
		sink:        sink,
		id:          id,
		pingPeriod:  pingPeriod,
		idleTimeout: idleTimeout,
		outbox:      make(chan string, outboxSize),
	}
}

// GetID satisfies types.PeerInterface.
func (p *Peer) GetID() types.SessionIDType {
	return p.id
}

// Send satisfies types.PeerInterface. It enqueues one line on the outbox
// without blocking; false means the outbox is full or the peer is closed.
func (p *Peer) Send(line string) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		logging.GetLogger().Debug("Skipping send to closed peer", zap.String("sessionId", string(p.id)))
		return false
	}
	p.mu.Unlock()

	// Safety net against the close race on the outbox channel.
	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Recovered from send on closing peer",
				zap.String("sessionId", string(p.id)), zap.Any("panic", r))
		}
	}()

	select {
	case p.outbox <- line:
		return true
	default:
		return false
	}
}

// Close satisfies types.PeerInterface. Closing the outbox makes the write
// pump flush queued lines, send a close frame carrying the reason, and then
// close the socket; the read pump exits and reports OnClose.
func (p *Peer) Close(reason string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closeReason = reason
	p.mu.Unlock()

	close(p.outbox)
}

// readPump delivers inbound text frames to the coordinator until the
// connection dies. OnClose fires exactly once, on exit.
func (p *Peer) readPump() {
	defer func() {
		p.Close("") // stop the write pump
		p.sink.OnClose(p.id)
		p.conn.Close()
		metrics.DecConnection()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	deadline := p.pingPeriod + p.idleTimeout
	_ = p.conn.SetReadDeadline(time.Now().Add(deadline))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			break
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(deadline))

		if messageType != websocket.TextMessage {
			logging.Warn(context.Background(), "Ignoring non-text frame",
				zap.String("sessionId", string(p.id)), zap.Int("messageType", messageType))
			continue
		}

		p.sink.OnMessage(p.id, string(data))
	}
}

// writePump drains the outbox and sends keep-alive pings. It is the only
// writer on the connection, which preserves per-peer enqueue order.
func (p *Peer) writePump() {
	ticker := time.NewTicker(p.pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case line, ok := <-p.outbox:
			if !ok {
				p.mu.Lock()
				reason := p.closeReason
				p.mu.Unlock()
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
				_ = p.conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				logging.Error(context.Background(), "Error writing message",
					zap.String("sessionId", string(p.id)), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
