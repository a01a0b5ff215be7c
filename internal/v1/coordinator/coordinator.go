// Package coordinator is the single authority over sessions and rooms. It
// receives transport events, applies the room state machine, and produces
// every outbound message. All mutation happens under one coarse mutex;
// handlers never block on I/O while holding it because peer sends only
// enqueue onto per-peer outboxes.
package coordinator

import (
	"context"
	"sync"

	"github.com/duocall/signaling/internal/v1/codec"
	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/duocall/signaling/internal/v1/registry"
	"github.com/duocall/signaling/internal/v1/room"
	"github.com/duocall/signaling/internal/v1/types"
	"go.uber.org/zap"
)

// Coordinator implements types.EventSink. It owns the session table and the
// session-to-room index; rooms themselves live in the registry. The
// peer-to-room edge is a lookup here, not an owning pointer, so there are
// no reference cycles between peers and rooms.
type Coordinator struct {
	mu       sync.Mutex
	registry *registry.Registry
	peers    map[types.SessionIDType]types.PeerInterface
	rooms    map[types.SessionIDType]*room.Room
}

// New creates a Coordinator backed by the given room registry.
func New(reg *registry.Registry) *Coordinator {
	return &Coordinator{
		registry: reg,
		peers:    make(map[types.SessionIDType]types.PeerInterface),
		rooms:    make(map[types.SessionIDType]*room.Room),
	}
}

// OnOpen records the new session and sends the unsolicited connection-code
// hint. The peer is not yet in any room.
func (c *Coordinator) OnOpen(peer types.PeerInterface) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := peer.GetID()
	c.peers[id] = peer

	logging.Info(context.Background(), "Session opened",
		zap.String("sessionId", string(id)))

	c.send(peer, codec.Format(codec.VerbWaitingForConnectionCode, ""))
}

// OnClose removes the session. If the peer was in a room it is removed from
// the membership, the room drops to Impossible, the remaining member is
// notified, and empty-room cleanup is scheduled.
func (c *Coordinator) OnClose(id types.SessionIDType) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.peers[id]; !ok {
		return
	}
	delete(c.peers, id)

	r := c.rooms[id]
	delete(c.rooms, id)

	if r == nil {
		logging.Info(context.Background(), "Session closed",
			zap.String("sessionId", string(id)))
		return
	}

	r.RemoveMember(id)
	logging.Info(context.Background(), "Member departed",
		zap.String("sessionId", string(id)),
		zap.String("roomCode", string(r.Code)),
		zap.Int("remainingMembers", r.MemberCount()))

	c.setState(r, types.RoomStateImpossible)
	c.broadcastState(r)

	if r.IsEmpty() {
		c.registry.ScheduleCleanup(r.Code)
	}
}

// Shutdown closes every live session. Intended for graceful process exit.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	peers := make([]types.PeerInterface, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, p)
	}
	c.mu.Unlock()

	for _, p := range peers {
		p.Close("server shutting down")
	}
	logging.Info(ctx, "Coordinator shut down", zap.Int("closedSessions", len(peers)))
}

// SessionCount returns the number of live sessions.
func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}

// RoomCount returns the number of registered rooms, including empty rooms
// still inside their grace period.
func (c *Coordinator) RoomCount() int {
	return c.registry.Count()
}

// send enqueues one line on the peer's outbox. A full outbox means the peer
// is unhealthy: it is dropped through the same path as a close.
func (c *Coordinator) send(peer types.PeerInterface, line string) {
	if peer.Send(line) {
		return
	}
	logging.Warn(context.Background(), "Peer outbox overflow - dropping peer",
		zap.String("sessionId", string(peer.GetID())))
	peer.Close("outbox overflow")
}

// broadcastState sends "STATE <value>" to every current member of the room.
func (c *Coordinator) broadcastState(r *room.Room) {
	line := codec.FormatState(r.State())
	for _, m := range r.Members() {
		c.send(m, line)
	}
	logging.Info(context.Background(), "Broadcast state",
		zap.String("roomCode", string(r.Code)),
		zap.String("state", string(r.State())),
		zap.Int("members", r.MemberCount()))
}

// setState applies a state transition and records it. A no-op transition
// emits nothing.
func (c *Coordinator) setState(r *room.Room, next types.RoomState) {
	prev := r.SetState(next)
	if prev == next {
		return
	}
	metrics.StateTransitions.WithLabelValues(string(prev), string(next)).Inc()
	logging.Info(context.Background(), "Room state transition",
		zap.String("roomCode", string(r.Code)),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))
}

// relay forwards the raw inbound line verbatim to every member of the room
// except the sender.
func (c *Coordinator) relay(r *room.Room, sender types.SessionIDType, verb codec.Verb, raw string, payload string) {
	for _, m := range r.Others(sender) {
		c.send(m, raw)
		metrics.RelayedMessages.WithLabelValues(string(verb)).Inc()
	}
	logging.Info(context.Background(), "Relayed message",
		zap.String("roomCode", string(r.Code)),
		zap.String("sessionId", string(sender)),
		zap.String("verb", string(verb)),
		zap.String("payload", logging.TruncatePayload(payload)))
}
