package registry

import (
	"regexp"
	"testing"
	"time"

	"github.com/duocall/signaling/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memberPeer is a minimal types.PeerInterface used to occupy rooms.
type memberPeer struct {
	id types.SessionIDType
}

func (p *memberPeer) GetID() types.SessionIDType { return p.id }
func (p *memberPeer) Send(string) bool           { return true }
func (p *memberPeer) Close(string)               {}

func TestGenerateCodesAreUniqueAndWellFormed(t *testing.T) {
	reg := New(time.Minute, 0)
	defer reg.Shutdown()

	pattern := regexp.MustCompile(`^[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)
	seen := make(map[types.RoomCodeType]bool)

	for i := 0; i < 1000; i++ {
		code, err := reg.Generate()
		require.NoError(t, err)
		assert.Regexp(t, pattern, string(code))
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}

	assert.Equal(t, 1000, reg.Count())
}

func TestGenerateRegistersRoom(t *testing.T) {
	reg := New(time.Minute, 0)
	defer reg.Shutdown()

	code, err := reg.Generate()
	require.NoError(t, err)

	r := reg.Lookup(code)
	require.NotNil(t, r)
	assert.Equal(t, types.RoomStateImpossible, r.State())
	assert.True(t, r.IsEmpty())
}

func TestGenerateRespectsRoomCap(t *testing.T) {
	reg := New(time.Minute, 2)
	defer reg.Shutdown()

	_, err := reg.Generate()
	require.NoError(t, err)
	_, err = reg.Generate()
	require.NoError(t, err)

	_, err = reg.Generate()
	assert.ErrorIs(t, err, ErrRoomCapReached)
}

func TestLookupIsCaseSensitive(t *testing.T) {
	reg := New(time.Minute, 0)
	defer reg.Shutdown()

	r, err := reg.GetOrCreate("ABCD23")
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Nil(t, reg.Lookup("abcd23"))
	assert.Same(t, r, reg.Lookup("ABCD23"))
}

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	reg := New(time.Minute, 0)
	defer reg.Shutdown()

	first, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	second, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Count())
}

func TestGetOrCreateRespectsRoomCap(t *testing.T) {
	reg := New(time.Minute, 1)
	defer reg.Shutdown()

	_, err := reg.GetOrCreate("AAAAAA")
	require.NoError(t, err)

	_, err = reg.GetOrCreate("BBBBBB")
	assert.ErrorIs(t, err, ErrRoomCapReached)

	// Existing rooms are still reachable at the cap.
	r, err := reg.GetOrCreate("AAAAAA")
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestScheduleCleanupRemovesEmptyRoom(t *testing.T) {
	reg := New(20*time.Millisecond, 0)
	defer reg.Shutdown()

	_, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	reg.ScheduleCleanup("XYZ234")

	assert.Eventually(t, func() bool {
		return reg.Lookup("XYZ234") == nil
	}, time.Second, 5*time.Millisecond)

	// A subsequent GetOrCreate builds a fresh room under the same code.
	fresh, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	assert.True(t, fresh.IsEmpty())
}

func TestScheduleCleanupSkipsOccupiedRoom(t *testing.T) {
	reg := New(20*time.Millisecond, 0)
	defer reg.Shutdown()

	r, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	reg.ScheduleCleanup("XYZ234")

	// A peer joins before the timer fires.
	require.NoError(t, r.AddMember(&memberPeer{id: "s1"}))

	time.Sleep(60 * time.Millisecond)
	assert.Same(t, r, reg.Lookup("XYZ234"), "occupied room survives the grace period")
}

func TestGetOrCreateCancelsPendingCleanup(t *testing.T) {
	reg := New(30*time.Millisecond, 0)
	defer reg.Shutdown()

	first, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	reg.ScheduleCleanup("XYZ234")

	// Rejoin within the grace period cancels the removal.
	again, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	assert.Same(t, first, again)

	time.Sleep(80 * time.Millisecond)
	assert.Same(t, first, reg.Lookup("XYZ234"))
}

func TestScheduleCleanupReschedules(t *testing.T) {
	reg := New(25*time.Millisecond, 0)
	defer reg.Shutdown()

	_, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)

	// Rearming replaces the earlier timer rather than coalescing.
	reg.ScheduleCleanup("XYZ234")
	reg.ScheduleCleanup("XYZ234")

	assert.Eventually(t, func() bool {
		return reg.Lookup("XYZ234") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestRemoveIsUnconditional(t *testing.T) {
	reg := New(time.Minute, 0)
	defer reg.Shutdown()

	r, err := reg.GetOrCreate("XYZ234")
	require.NoError(t, err)
	require.NoError(t, r.AddMember(&memberPeer{id: "s1"}))

	reg.Remove("XYZ234")
	assert.Nil(t, reg.Lookup("XYZ234"))

	// Removing an absent room is a no-op.
	reg.Remove("XYZ234")
}

func TestRandomCodeDistribution(t *testing.T) {
	// Every drawn rune must come from the alphabet.
	for i := 0; i < 100; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		require.Len(t, string(code), CodeLength)
		for _, r := range string(code) {
			assert.Contains(t, CodeAlphabet, string(r))
		}
	}
}
