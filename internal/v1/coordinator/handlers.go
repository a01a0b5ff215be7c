package coordinator

import (
	"context"
	"time"

	"github.com/duocall/signaling/internal/v1/codec"
	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/duocall/signaling/internal/v1/room"
	"github.com/duocall/signaling/internal/v1/types"
	"go.uber.org/zap"
)

// OnMessage parses one inbound frame and dispatches it. Malformed lines and
// protocol violations are logged and dropped; the connection stays open.
func (c *Coordinator) OnMessage(id types.SessionIDType, rawLine string) {
	start := time.Now()

	msg, err := codec.Parse(rawLine)
	if err != nil {
		metrics.SignalingEvents.WithLabelValues("unknown", "malformed").Inc()
		logging.Warn(context.Background(), "Dropping malformed message",
			zap.String("sessionId", string(id)),
			zap.String("line", logging.TruncatePayload(rawLine)))
		return
	}

	defer func() {
		metrics.MessageProcessingDuration.WithLabelValues(string(msg.Verb)).
			Observe(time.Since(start).Seconds())
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	peer, ok := c.peers[id]
	if !ok {
		// Session raced with its own close; nothing to do.
		return
	}

	switch msg.Verb {
	case codec.VerbState:
		c.handleState(peer)
	case codec.VerbConnection:
		c.handleConnection(peer, msg)
	case codec.VerbStartCall:
		c.handleStartCall(peer, msg)
	case codec.VerbOffer:
		c.handleOffer(peer, msg)
	case codec.VerbAnswer:
		c.handleAnswer(peer, msg)
	case codec.VerbICE:
		c.handleICE(peer, msg)
	default:
		// Server-to-peer verbs echoed back by a confused client.
		metrics.SignalingEvents.WithLabelValues(string(msg.Verb), "ignored").Inc()
		logging.Warn(context.Background(), "Ignoring server-bound verb from peer",
			zap.String("sessionId", string(id)),
			zap.String("verb", string(msg.Verb)))
	}
}

// handleState answers a state query: the peer's room state, or Impossible
// when it has no room.
func (c *Coordinator) handleState(peer types.PeerInterface) {
	state := types.RoomStateImpossible
	if r := c.rooms[peer.GetID()]; r != nil {
		state = r.State()
	}
	c.send(peer, codec.FormatState(state))
	metrics.SignalingEvents.WithLabelValues(string(codec.VerbState), "ok").Inc()
}

// handleConnection admits the peer into the room named by the payload,
// creating the room if absent. The first member becomes the initiator, the
// second the joiner; a third is rejected and disconnected.
func (c *Coordinator) handleConnection(peer types.PeerInterface, msg codec.Message) {
	id := peer.GetID()

	if msg.Payload == "" {
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "malformed").Inc()
		logging.Warn(context.Background(), "CONNECTION without room code",
			zap.String("sessionId", string(id)))
		return
	}
	code := types.RoomCodeType(msg.Payload)

	if current := c.rooms[id]; current != nil {
		if current.Code == code {
			// Idempotent rejoin of the peer's own room.
			c.send(peer, codec.Connected(code).Line())
			c.broadcastState(current)
			metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "ok").Inc()
			return
		}
		// A peer belongs to at most one room.
		c.send(peer, codec.RoomFull().Line())
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "rejected").Inc()
		logging.Warn(context.Background(), "Rejected CONNECTION - peer already in another room",
			zap.String("sessionId", string(id)),
			zap.String("roomCode", string(current.Code)),
			zap.String("requestedCode", string(code)))
		return
	}

	r, err := c.registry.GetOrCreate(code)
	if err != nil {
		// Cap reached; the peer cannot be accommodated.
		c.send(peer, codec.RoomFull().Line())
		peer.Close("cannot accept")
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "rejected").Inc()
		logging.Warn(context.Background(), "Rejected CONNECTION - registry refused room",
			zap.String("sessionId", string(id)),
			zap.String("roomCode", string(code)),
			zap.Error(err))
		return
	}

	if err := r.AddMember(peer); err != nil {
		c.send(peer, codec.RoomFull().Line())
		peer.Close("cannot accept")
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "rejected").Inc()
		logging.Info(context.Background(), "Rejected CONNECTION - room full",
			zap.String("sessionId", string(id)),
			zap.String("roomCode", string(code)))
		return
	}

	c.rooms[id] = r
	c.send(peer, codec.Connected(code).Line())

	role := "initiator"
	if r.MemberCount() == room.MaxMembers {
		role = "joiner"
		c.setState(r, types.RoomStateReady)
	}
	c.broadcastState(r)

	metrics.SignalingEvents.WithLabelValues(string(codec.VerbConnection), "ok").Inc()
	logging.Info(context.Background(), "Member joined",
		zap.String("sessionId", string(id)),
		zap.String("roomCode", string(code)),
		zap.String("role", role),
		zap.Int("members", r.MemberCount()))
}

// handleStartCall relays START_CALL to the other member and moves the room
// to Active if it is not there yet. Active is reachable both here and on
// ANSWER; whichever lands first wins and the other is a no-op.
func (c *Coordinator) handleStartCall(peer types.PeerInterface, msg codec.Message) {
	r := c.rooms[peer.GetID()]
	if r == nil {
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbStartCall), "ignored").Inc()
		logging.Warn(context.Background(), "Ignoring START_CALL from peer with no room",
			zap.String("sessionId", string(peer.GetID())))
		return
	}

	c.relay(r, peer.GetID(), msg.Verb, msg.Raw, msg.Payload)
	if r.State() != types.RoomStateActive {
		c.setState(r, types.RoomStateActive)
		c.broadcastState(r)
	}
	metrics.SignalingEvents.WithLabelValues(string(codec.VerbStartCall), "ok").Inc()
}

// handleOffer relays an SDP offer to the other member and moves the room to
// Creating. Offers outside Ready are dropped, which also discards the
// second offer of a racing pair.
func (c *Coordinator) handleOffer(peer types.PeerInterface, msg codec.Message) {
	r := c.rooms[peer.GetID()]
	if r == nil || r.State() != types.RoomStateReady {
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbOffer), "ignored").Inc()
		logging.Warn(context.Background(), "Ignoring OFFER in wrong state",
			zap.String("sessionId", string(peer.GetID())),
			zap.String("state", string(roomState(r))))
		return
	}

	c.relay(r, peer.GetID(), msg.Verb, msg.Raw, msg.Payload)
	c.setState(r, types.RoomStateCreating)
	c.broadcastState(r)
	metrics.SignalingEvents.WithLabelValues(string(codec.VerbOffer), "ok").Inc()
}

// handleAnswer relays an SDP answer to the other member, then moves the
// room to Active. The relay is enqueued before the state broadcast.
func (c *Coordinator) handleAnswer(peer types.PeerInterface, msg codec.Message) {
	r := c.rooms[peer.GetID()]
	if r == nil || r.State() != types.RoomStateCreating {
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbAnswer), "ignored").Inc()
		logging.Warn(context.Background(), "Ignoring ANSWER in wrong state",
			zap.String("sessionId", string(peer.GetID())),
			zap.String("state", string(roomState(r))))
		return
	}

	c.relay(r, peer.GetID(), msg.Verb, msg.Raw, msg.Payload)
	c.setState(r, types.RoomStateActive)
	c.broadcastState(r)
	metrics.SignalingEvents.WithLabelValues(string(codec.VerbAnswer), "ok").Inc()
}

// handleICE relays an ICE candidate verbatim. No state change; accepted in
// any state as long as the room has both members. WebRTC tolerates
// candidates arriving before either side's SDP.
func (c *Coordinator) handleICE(peer types.PeerInterface, msg codec.Message) {
	r := c.rooms[peer.GetID()]
	if r == nil || r.MemberCount() < room.MaxMembers {
		metrics.SignalingEvents.WithLabelValues(string(codec.VerbICE), "ignored").Inc()
		logging.Warn(context.Background(), "Ignoring ICE without a full room",
			zap.String("sessionId", string(peer.GetID())))
		return
	}

	c.relay(r, peer.GetID(), msg.Verb, msg.Raw, msg.Payload)
	metrics.SignalingEvents.WithLabelValues(string(codec.VerbICE), "ok").Inc()
}

// roomState reads a possibly-nil room's state for logging.
func roomState(r *room.Room) types.RoomState {
	if r == nil {
		return types.RoomStateImpossible
	}
	return r.State()
}
