package game

import (
	"testing"

	"github.com/rwe-net/lobby-server/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotCounts(r *Room) (empty, closed, filled int) {
	for _, s := range r.Slots {
		switch s.State {
		case types.SlotEmpty:
			empty++
		case types.SlotClosed:
			closed++
		case types.SlotFilled:
			filled++
		}
	}
	return
}

func assertSlotInvariant(t *testing.T, r *Room, capacity int) {
	t.Helper()
	empty, closed, filled := slotCounts(r)
	assert.Equal(t, capacity, empty+closed+filled)
}

func TestJoinFillsLowestEmptySlot(t *testing.T) {
	r := NewRoom(1, "test", 3, "key")
	a, err := r.Join("Alice", "10.0.0.1", "1.2.3.4", "", []string{"ta"})
	require.NoError(t, err)
	b, err := r.Join("Bob", "10.0.0.2", "5.6.7.8", "", []string{"ta"})
	require.NoError(t, err)

	assert.Equal(t, 1, a.ID)
	assert.Equal(t, 2, b.ID)
	assert.Equal(t, types.SlotFilled, r.Slots[0].State)
	assert.Equal(t, a, r.Slots[0].Player)
	assert.Equal(t, b, r.Slots[1].Player)
	assert.Equal(t, types.SlotEmpty, r.Slots[2].State)

	// defaults
	assert.Equal(t, types.SideArm, a.Side)
	assert.Equal(t, 0, a.Color)
	require.NotNil(t, a.Team)
	assert.Equal(t, 0, *a.Team)
	assert.False(t, a.Ready)

	assertSlotInvariant(t, r, 3)
}

func TestJoinVacatedSlotIsReused(t *testing.T) {
	r := NewRoom(1, "test", 2, "key")
	a, _ := r.Join("Alice", "h", "", "", nil)
	_, _ = r.Join("Bob", "h", "", "", nil)
	_, err := r.Leave(a.ID)
	require.NoError(t, err)

	c, err := r.Join("Carol", "h", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, c, r.Slots[0].Player, "lowest-index empty slot is filled")
	assertSlotInvariant(t, r, 2)
}

func TestJoinFullRoom(t *testing.T) {
	r := NewRoom(1, "test", 1, "key")
	_, err := r.Join("Alice", "h", "", "", nil)
	require.NoError(t, err)
	_, err = r.Join("Bob", "h", "", "", nil)
	assert.ErrorIs(t, err, ErrRoomFull)
	assertSlotInvariant(t, r, 1)
}

func TestPlayerIDsNeverReused(t *testing.T) {
	r := NewRoom(1, "test", 2, "key")
	seen := make(map[int]struct{})
	last := 0
	for i := 0; i < 5; i++ {
		p, err := r.Join("P", "h", "", "", nil)
		require.NoError(t, err)
		_, dup := seen[p.ID]
		assert.False(t, dup)
		assert.Greater(t, p.ID, last)
		seen[p.ID] = struct{}{}
		last = p.ID
		_, err = r.Leave(p.ID)
		require.NoError(t, err)
	}
}

func TestJoinGeneratesGuestName(t *testing.T) {
	r := NewRoom(1, "test", 1, "key")
	p, err := r.Join("", "h", "", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.Name)
	assert.Contains(t, p.Name, "(guest)")
}

func TestAdminClaim(t *testing.T) {
	r := NewRoom(1, "test", 3, "secret")

	// wrong key leaves the room unclaimed
	a, _ := r.Join("Alice", "h", "", "nope", nil)
	assert.Nil(t, r.AdminPlayerID())
	assert.False(t, r.IsAdmin(a.ID))

	// exact match claims, permanently
	b, _ := r.Join("Bob", "h", "", "secret", nil)
	require.NotNil(t, r.AdminPlayerID())
	assert.Equal(t, b.ID, *r.AdminPlayerID())
	assert.True(t, r.IsAdmin(b.ID))

	// the key is spent, a later joiner cannot re-claim
	c, _ := r.Join("Carol", "h", "", "secret", nil)
	assert.Equal(t, b.ID, *r.AdminPlayerID())
	assert.False(t, r.IsAdmin(c.ID))
}

func TestAdminFailoverToLowestFilledSlot(t *testing.T) {
	r := NewRoom(1, "test", 4, "secret")
	a, _ := r.Join("A", "h", "", "", nil)
	b, _ := r.Join("B", "h", "", "", nil)
	c, _ := r.Join("C", "h", "", "secret", nil) // admin, slot 2
	_, _ = r.Join("D", "h", "", "", nil)

	// vacate slot 1 so filled slots are at indices 0, 2, 3
	_, err := r.Leave(b.ID)
	require.NoError(t, err)
	require.True(t, r.IsAdmin(c.ID))

	res, err := r.Leave(c.ID)
	require.NoError(t, err)
	require.NotNil(t, res.NewAdminPlayerID)
	assert.Equal(t, a.ID, *res.NewAdminPlayerID, "lowest remaining filled index takes over")
	assert.True(t, r.IsAdmin(a.ID))
	assert.False(t, res.Empty)
}

func TestLeaveLastPlayerEmptiesRoom(t *testing.T) {
	r := NewRoom(1, "test", 2, "secret")
	a, _ := r.Join("A", "h", "", "secret", nil)
	res, err := r.Leave(a.ID)
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Nil(t, res.NewAdminPlayerID)

	_, err = r.Leave(a.ID)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestOpenCloseSlot(t *testing.T) {
	r := NewRoom(1, "test", 3, "key")
	a, _ := r.Join("A", "h", "", "key", nil)

	changed, err := r.CloseSlot(1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, types.SlotClosed, r.Slots[1].State)

	// closing an already-closed slot is a no-op, not an error
	changed, err = r.CloseSlot(1)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = r.OpenSlot(1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, types.SlotEmpty, r.Slots[1].State)

	// filled slots can never be opened or closed
	_, err = r.CloseSlot(0)
	assert.ErrorIs(t, err, ErrSlotFilled)
	_, err = r.OpenSlot(0)
	assert.ErrorIs(t, err, ErrSlotFilled)
	assert.Equal(t, a, r.Slots[0].Player)

	_, err = r.CloseSlot(7)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
	_, err = r.CloseSlot(-1)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)

	assertSlotInvariant(t, r, 3)
}

func TestPlayerMutations(t *testing.T) {
	r := NewRoom(1, "test", 2, "key")
	a, _ := r.Join("A", "h", "", "", nil)

	require.NoError(t, r.SetSide(a.ID, types.SideCore))
	assert.Equal(t, types.SideCore, a.Side)
	assert.ErrorIs(t, r.SetSide(a.ID, "GOK"), ErrInvalidSide)

	team := 3
	require.NoError(t, r.SetTeam(a.ID, &team))
	assert.Equal(t, 3, *a.Team)
	require.NoError(t, r.SetTeam(a.ID, nil))
	assert.Nil(t, a.Team)

	require.NoError(t, r.SetColor(a.ID, 5))
	assert.Equal(t, 5, a.Color)

	require.NoError(t, r.SetReady(a.ID, true))
	assert.True(t, a.Ready)

	assert.ErrorIs(t, r.SetColor(99, 1), ErrPlayerNotFound)
}

func startableRoom(t *testing.T) (*Room, *types.PlayerInfo, *types.PlayerInfo) {
	t.Helper()
	r := NewRoom(1, "test", 2, "secret")
	a, err := r.Join("A", "10.0.0.1", "1.2.3.4", "secret", []string{"ta"})
	require.NoError(t, err)
	b, err := r.Join("B", "10.0.0.2", "5.6.7.8", "", []string{"ta"})
	require.NoError(t, err)
	r.SetMap("Comet Catcher")
	r.SetActiveMods([]string{"ta"})
	require.NoError(t, r.SetReady(a.ID, true))
	return r, a, b
}

func TestCheckStartQuorum(t *testing.T) {
	r, _, b := startableRoom(t)

	// B is not ready yet
	assert.ErrorIs(t, r.CheckStart(), ErrPlayersNotReady)

	require.NoError(t, r.SetReady(b.ID, true))
	assert.NoError(t, r.CheckStart())
}

func TestCheckStartRequiresMap(t *testing.T) {
	r, _, b := startableRoom(t)
	require.NoError(t, r.SetReady(b.ID, true))
	r.SetMap("")
	assert.ErrorIs(t, r.CheckStart(), ErrMapNotSet)
}

func TestCheckStartRequiresActiveMods(t *testing.T) {
	r, _, b := startableRoom(t)
	require.NoError(t, r.SetReady(b.ID, true))
	r.SetActiveMods(nil)
	assert.ErrorIs(t, r.CheckStart(), ErrNoActiveMods)
}

func TestCheckStartRequiresInstalledMods(t *testing.T) {
	r, _, b := startableRoom(t)
	require.NoError(t, r.SetReady(b.ID, true))
	r.SetActiveMods([]string{"ta", "escalation"})
	assert.ErrorIs(t, r.CheckStart(), ErrMissingMods)
}

func TestCheckStartNoEmptySlots(t *testing.T) {
	r := NewRoom(1, "test", 3, "secret")
	a, _ := r.Join("A", "h", "1.2.3.4", "secret", []string{"ta"})
	r.SetMap("Comet Catcher")
	r.SetActiveMods([]string{"ta"})
	require.NoError(t, r.SetReady(a.ID, true))

	assert.ErrorIs(t, r.CheckStart(), ErrEmptySlots)

	// closed slots count as resolved
	_, err := r.CloseSlot(1)
	require.NoError(t, err)
	_, err = r.CloseSlot(2)
	require.NoError(t, err)
	assert.NoError(t, r.CheckStart())
}

func TestStartAddressesAllIPv4(t *testing.T) {
	r, a, b := startableRoom(t)
	addrs := r.StartAddresses()
	assert.Equal(t, []types.AddressEntry{
		{PlayerID: a.ID, Address: "1.2.3.4"},
		{PlayerID: b.ID, Address: "5.6.7.8"},
	}, addrs)
}

func TestStartAddressesMappedIPv4(t *testing.T) {
	r, a, b := startableRoom(t)
	r.Player(a.ID).IPv4Address = "::ffff:1.2.3.4"
	addrs := r.StartAddresses()
	assert.Equal(t, "::ffff:1.2.3.4", addrs[0].Address)
	assert.Equal(t, a.ID, addrs[0].PlayerID)
	assert.Equal(t, "5.6.7.8", addrs[1].Address)
	assert.Equal(t, b.ID, addrs[1].PlayerID)
}

func TestStartAddressesHostFallback(t *testing.T) {
	// one player without a dotted-quad address forces hosts for everyone
	r, a, b := startableRoom(t)
	r.Player(b.ID).IPv4Address = "garbage"
	addrs := r.StartAddresses()
	assert.Equal(t, []types.AddressEntry{
		{PlayerID: a.ID, Address: "10.0.0.1"},
		{PlayerID: b.ID, Address: "10.0.0.2"},
	}, addrs)
}

func TestEntryProjection(t *testing.T) {
	r := NewRoom(7, "my game", 4, "key")
	_, _ = r.Join("A", "h", "", "", nil)
	_, _ = r.CloseSlot(3)
	assert.Equal(t, types.GameEntry{Description: "my game", Players: 1, MaxPlayers: 4}, r.Entry())
}

func TestSnapshotSlotsDoesNotAliasRoomState(t *testing.T) {
	r := NewRoom(1, "test", 2, "key")
	a, _ := r.Join("A", "h", "", "", nil)
	snap := r.SnapshotSlots()
	snap[0].Player.Name = "mutated"
	team := 9
	snap[0].Player.Team = &team
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, 0, *a.Team)
}
