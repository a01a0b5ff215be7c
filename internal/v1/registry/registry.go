// Package registry owns the mapping from room codes to rooms: code
// generation, lookup, join-or-create, and garbage collection of rooms that
// have been empty for a grace period.
package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/duocall/signaling/internal/v1/logging"
	"github.com/duocall/signaling/internal/v1/metrics"
	"github.com/duocall/signaling/internal/v1/room"
	"github.com/duocall/signaling/internal/v1/types"
	"go.uber.org/zap"
)

// CodeAlphabet is the 32-rune set room codes are drawn from: capital letters
// minus I/O, digits minus 0/1. Visually unambiguous when read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed length of a room code.
const CodeLength = 6

// maxGenerateAttempts bounds collision redraws before giving up.
const maxGenerateAttempts = 8

var (
	// ErrRoomCapReached is returned when the optional cap on simultaneous
	// rooms would be exceeded.
	ErrRoomCapReached = errors.New("room cap reached")

	// ErrCodeSpaceExhausted is returned when generation keeps colliding
	// with existing rooms.
	ErrCodeSpaceExhausted = errors.New("could not generate an unused room code")
)

// Registry maps room codes to rooms and schedules removal of rooms that
// stay empty past the grace period.
type Registry struct {
	mu              sync.Mutex
	rooms           map[types.RoomCodeType]*room.Room
	pendingCleanups map[types.RoomCodeType]*time.Timer
	gracePeriod     time.Duration
	roomCap         int // 0 means unlimited
}

// New creates a Registry. gracePeriod is how long an empty room survives
// before removal; roomCap of zero disables the cap.
func New(gracePeriod time.Duration, roomCap int) *Registry {
	return &Registry{
		rooms:           make(map[types.RoomCodeType]*room.Room),
		pendingCleanups: make(map[types.RoomCodeType]*time.Timer),
		gracePeriod:     gracePeriod,
		roomCap:         roomCap,
	}
}

// Generate draws an unused code uniformly at random, registers an empty
// room under it, and returns the code. Collisions are redrawn a bounded
// number of times before reporting ErrCodeSpaceExhausted.
func (reg *Registry) Generate() (types.RoomCodeType, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.roomCap > 0 && len(reg.rooms) >= reg.roomCap {
		metrics.GeneratedCodes.WithLabelValues("cap_reached").Inc()
		return "", ErrRoomCapReached
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			metrics.GeneratedCodes.WithLabelValues("error").Inc()
			return "", fmt.Errorf("drawing room code: %w", err)
		}
		if _, exists := reg.rooms[code]; exists {
			continue
		}

		reg.rooms[code] = room.NewRoom(code)
		metrics.ActiveRooms.Inc()
		metrics.GeneratedCodes.WithLabelValues("ok").Inc()
		logging.Info(context.Background(), "Registered generated room",
			zap.String("roomCode", string(code)), zap.Int("attempts", attempt+1))
		return code, nil
	}

	metrics.GeneratedCodes.WithLabelValues("exhausted").Inc()
	return "", ErrCodeSpaceExhausted
}

// Lookup returns the room registered under code, or nil. Case-sensitive.
func (reg *Registry) Lookup(code types.RoomCodeType) *room.Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[code]
}

// GetOrCreate returns the room registered under code, creating it if
// absent. A joiner that knows a code may implicitly create the room this
// way. Looking up an existing room cancels any pending cleanup for it.
func (reg *Registry) GetOrCreate(code types.RoomCodeType) (*room.Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if r, ok := reg.rooms[code]; ok {
		// Room exists, cancel any pending cleanup
		if timer, hasPendingCleanup := reg.pendingCleanups[code]; hasPendingCleanup {
			timer.Stop()
			delete(reg.pendingCleanups, code)
			logging.Info(context.Background(), "Cancelled pending room cleanup due to rejoin",
				zap.String("roomCode", string(code)))
		}
		return r, nil
	}

	if reg.roomCap > 0 && len(reg.rooms) >= reg.roomCap {
		return nil, ErrRoomCapReached
	}

	logging.Info(context.Background(), "Creating room", zap.String("roomCode", string(code)))
	r := room.NewRoom(code)
	reg.rooms[code] = r
	metrics.ActiveRooms.Inc()
	return r, nil
}

// Remove unconditionally deletes the room and any pending cleanup timer.
func (reg *Registry) Remove(code types.RoomCodeType) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.removeLocked(code)
}

func (reg *Registry) removeLocked(code types.RoomCodeType) {
	if timer, ok := reg.pendingCleanups[code]; ok {
		timer.Stop()
		delete(reg.pendingCleanups, code)
	}
	if _, ok := reg.rooms[code]; ok {
		delete(reg.rooms, code)
		metrics.ActiveRooms.Dec()
	}
}

// ScheduleCleanup arms removal of the room after the grace period. If the
// room gained a member in the interim the removal is skipped; a rejoin
// through GetOrCreate cancels the timer outright. Rearming replaces any
// previously scheduled timer.
func (reg *Registry) ScheduleCleanup(code types.RoomCodeType) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Cancel any existing cleanup timer for this room
	if existing, ok := reg.pendingCleanups[code]; ok {
		existing.Stop()
		delete(reg.pendingCleanups, code)
	}

	timer := time.AfterFunc(reg.gracePeriod, func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()

		delete(reg.pendingCleanups, code)

		// Double-check the room is still registered and still empty
		r, ok := reg.rooms[code]
		if !ok {
			return
		}
		if !r.IsEmpty() {
			logging.Info(context.Background(), "Skipped room cleanup - room is occupied",
				zap.String("roomCode", string(code)))
			return
		}

		delete(reg.rooms, code)
		metrics.ActiveRooms.Dec()
		logging.Info(context.Background(), "Removed empty room after grace period",
			zap.String("roomCode", string(code)))
	})

	reg.pendingCleanups[code] = timer
}

// Count returns the number of registered rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Shutdown stops all pending cleanup timers and drops every room.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for code, timer := range reg.pendingCleanups {
		timer.Stop()
		delete(reg.pendingCleanups, code)
	}
	for code := range reg.rooms {
		delete(reg.rooms, code)
		metrics.ActiveRooms.Dec()
	}
}

// randomCode draws CodeLength runes uniformly from CodeAlphabet. The
// alphabet length divides 256, so byte sampling carries no modulo bias.
func randomCode() (types.RoomCodeType, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = CodeAlphabet[int(b)%len(CodeAlphabet)]
	}
	return types.RoomCodeType(buf), nil
}
