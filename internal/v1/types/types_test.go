package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomStateValid(t *testing.T) {
	valid := []RoomState{
		RoomStateImpossible,
		RoomStateReady,
		RoomStateCreating,
		RoomStateActive,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}

	assert.False(t, RoomState("").Valid())
	assert.False(t, RoomState("ready").Valid(), "states are case-sensitive")
	assert.False(t, RoomState("Connected").Valid())
}
