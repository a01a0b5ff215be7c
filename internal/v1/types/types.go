package types

// --- Core Domain Types ---

// SessionIDType identifies a single live transport connection. Minted
// server-side on accept; opaque to clients.
type SessionIDType string

// RoomCodeType is the 6-character human-shareable identifier of a room.
type RoomCodeType string

// RoomState enumerates the states a room's call session moves through.
type RoomState string

// Room state constants. Impossible is both the initial value of a fresh
// room and the terminal value after any departure.
const (
	RoomStateImpossible RoomState = "Impossible"
	RoomStateReady      RoomState = "Ready"
	RoomStateCreating   RoomState = "Creating"
	RoomStateActive     RoomState = "Active"
)

// Valid reports whether s is one of the known room states.
func (s RoomState) Valid() bool {
	switch s {
	case RoomStateImpossible, RoomStateReady, RoomStateCreating, RoomStateActive:
		return true
	}
	return false
}

// --- Shared Interfaces ---

// PeerInterface defines the behavior the coordinator needs from a connected
// peer. This allows the coordinator and room packages to interact with peers
// without depending on the transport package.
type PeerInterface interface {
	GetID() SessionIDType
	// Send enqueues a single outbound line on the peer's outbox. It never
	// blocks; it returns false when the outbox is full or the peer is
	// already closed, in which case the caller should drop the peer.
	Send(line string) bool
	// Close forcefully tears down the connection with a close reason.
	// The transport reports the closure through EventSink.OnClose.
	Close(reason string)
}

// EventSink receives transport lifecycle events. Implemented by the
// coordinator; the transport guarantees OnClose is called exactly once per
// session, after which no further events for that session are delivered.
type EventSink interface {
	OnOpen(peer PeerInterface)
	OnMessage(id SessionIDType, rawLine string)
	OnClose(id SessionIDType)
}
