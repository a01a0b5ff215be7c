// Package room holds the two-peer pairing slot addressed by a room code.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/duocall/signaling/internal/v1/types"
)

// MaxMembers is the hard membership cap of a room. A room pairs exactly
// one initiator with one joiner.
const MaxMembers = 2

// ErrRoomFull is returned when a third peer tries to join.
var ErrRoomFull = errors.New("room already has two members")

// Room represents a pairing slot. Members are kept in arrival order: the
// initiator first, the joiner second. All mutations happen through the
// coordinator; the room's own lock only makes reads from registry cleanup
// timers safe.
type Room struct {
	Code types.RoomCodeType

	mu           sync.RWMutex
	members      []types.PeerInterface
	state        types.RoomState
	lastActivity time.Time
}

// NewRoom creates an empty room in the Impossible state.
func NewRoom(code types.RoomCodeType) *Room {
	return &Room{
		Code:         code,
		members:      make([]types.PeerInterface, 0, MaxMembers),
		state:        types.RoomStateImpossible,
		lastActivity: time.Now(),
	}
}

// AddMember appends peer to the membership list. The first member becomes
// the initiator, the second the joiner.
func (r *Room) AddMember(peer types.PeerInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= MaxMembers {
		return ErrRoomFull
	}
	r.members = append(r.members, peer)
	r.lastActivity = time.Now()
	return nil
}

// RemoveMember removes the peer with the given session id, preserving
// arrival order of the remainder. Returns false if the peer was not a member.
func (r *Room) RemoveMember(id types.SessionIDType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.GetID() == id {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.lastActivity = time.Now()
			return true
		}
	}
	return false
}

// HasMember reports whether the peer with the given session id is a member.
func (r *Room) HasMember(id types.SessionIDType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.members {
		if m.GetID() == id {
			return true
		}
	}
	return false
}

// Members returns a snapshot of the membership list in arrival order.
func (r *Room) Members() []types.PeerInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.PeerInterface, len(r.members))
	copy(out, r.members)
	return out
}

// Others returns every member except the one with the given session id.
// With two members this is the relay target.
func (r *Room) Others(id types.SessionIDType) []types.PeerInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.PeerInterface, 0, len(r.members))
	for _, m := range r.members {
		if m.GetID() != id {
			out = append(out, m)
		}
	}
	return out
}

// MemberCount returns the current membership size.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// IsEmpty reports whether the room has no members.
func (r *Room) IsEmpty() bool {
	return r.MemberCount() == 0
}

// State returns the current session state.
func (r *Room) State() types.RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// SetState records the new session state and returns the previous one.
func (r *Room) SetState(state types.RoomState) types.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state
	r.state = state
	r.lastActivity = time.Now()
	return prev
}

// LastActivity returns the time of the last membership or state change.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}
