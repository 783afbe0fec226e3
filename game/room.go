package game

import (
	"errors"
	"regexp"

	"github.com/folkengine/goname"
	"github.com/rwe-net/lobby-server/types"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrPlayerNotFound = errors.New("player not found")
	ErrSlotOutOfRange = errors.New("slot id out of range")
	ErrSlotFilled     = errors.New("slot is filled")
	ErrInvalidSide    = errors.New("invalid side")

	ErrMapNotSet       = errors.New("map is not set")
	ErrEmptySlots      = errors.New("not all slots are filled or closed")
	ErrPlayersNotReady = errors.New("not all players are ready")
	ErrNoActiveMods    = errors.New("no active mods selected")
	ErrMissingMods     = errors.New("not all players have the active mods installed")
)

var ipv4Pattern = regexp.MustCompile(`^(::ffff:)?\d+\.\d+\.\d+\.\d+$`)

// Room holds the mutable state of one hosted session. It is not safe for
// concurrent use; after creation all mutations must come from the room's own
// hub goroutine.
type Room struct {
	ID          int
	Description string
	Slots       []types.PlayerSlot
	Admin       types.AdminState
	MapName     string
	ActiveMods  []string

	nextPlayerID int
}

func NewRoom(id int, description string, capacity int, adminKey string) *Room {
	slots := make([]types.PlayerSlot, capacity)
	for i := range slots {
		slots[i] = types.EmptySlot()
	}
	return &Room{
		ID:           id,
		Description:  description,
		Slots:        slots,
		Admin:        types.AdminUnclaimed{AdminKey: adminKey},
		ActiveMods:   []string{},
		nextPlayerID: 1,
	}
}

// Join fills the lowest-index empty slot and allocates the next player id.
// Player ids are never reused within a room, even after a player leaves. A
// matching admin key claims the room while it is unclaimed; the claim is
// permanent. An empty name gets a generated guest name.
func (r *Room) Join(name, host, ipv4Address, adminKey string, installedMods []string) (*types.PlayerInfo, error) {
	slot := -1
	for i, s := range r.Slots {
		if s.State == types.SlotEmpty {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, ErrRoomFull
	}
	id := r.nextPlayerID
	r.nextPlayerID++
	if name == "" {
		name = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	if installedMods == nil {
		installedMods = []string{}
	}
	team := 0
	player := &types.PlayerInfo{
		ID:            id,
		Name:          name,
		Host:          host,
		IPv4Address:   ipv4Address,
		Side:          types.SideArm,
		Color:         0,
		Team:          &team,
		Ready:         false,
		InstalledMods: installedMods,
	}
	r.Slots[slot] = types.FilledSlot(player)
	if unclaimed, ok := r.Admin.(types.AdminUnclaimed); ok && adminKey == unclaimed.AdminKey {
		adminID := id
		r.Admin = types.AdminClaimed{AdminPlayerID: &adminID}
	}
	return player, nil
}

type LeaveResult struct {
	NewAdminPlayerID *int
	Empty            bool
}

// Leave vacates the player's slot. If the departing player held admin, the
// player in the lowest-index filled slot takes over; if no filled slot
// remains the room is due for deletion (Empty is set).
func (r *Room) Leave(playerID int) (LeaveResult, error) {
	found := false
	for i, s := range r.Slots {
		if s.State == types.SlotFilled && s.Player.ID == playerID {
			r.Slots[i] = types.EmptySlot()
			found = true
			break
		}
	}
	if !found {
		return LeaveResult{}, ErrPlayerNotFound
	}
	var first *types.PlayerInfo
	for _, s := range r.Slots {
		if s.State == types.SlotFilled {
			first = s.Player
			break
		}
	}
	if first == nil {
		return LeaveResult{Empty: true}, nil
	}
	res := LeaveResult{}
	if claimed, ok := r.Admin.(types.AdminClaimed); ok {
		if claimed.AdminPlayerID != nil && *claimed.AdminPlayerID == playerID {
			adminID := first.ID
			r.Admin = types.AdminClaimed{AdminPlayerID: &adminID}
			res.NewAdminPlayerID = &adminID
		}
	}
	return res, nil
}

func (r *Room) Player(playerID int) *types.PlayerInfo {
	for _, s := range r.Slots {
		if s.State == types.SlotFilled && s.Player.ID == playerID {
			return s.Player
		}
	}
	return nil
}

// AdminPlayerID returns the claimed admin's player id, or nil while the room
// is unclaimed.
func (r *Room) AdminPlayerID() *int {
	if claimed, ok := r.Admin.(types.AdminClaimed); ok {
		return claimed.AdminPlayerID
	}
	return nil
}

func (r *Room) IsAdmin(playerID int) bool {
	id := r.AdminPlayerID()
	return id != nil && *id == playerID
}

func (r *Room) SetSide(playerID int, side types.PlayerSide) error {
	if side != types.SideArm && side != types.SideCore {
		return ErrInvalidSide
	}
	player := r.Player(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	player.Side = side
	return nil
}

func (r *Room) SetTeam(playerID int, team *int) error {
	player := r.Player(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	player.Team = team
	return nil
}

func (r *Room) SetColor(playerID int, color int) error {
	player := r.Player(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	player.Color = color
	return nil
}

func (r *Room) SetReady(playerID int, ready bool) error {
	player := r.Player(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	player.Ready = ready
	return nil
}

// OpenSlot makes a slot joinable. Only legal on empty or closed slots; the
// returned bool reports whether the state actually changed.
func (r *Room) OpenSlot(slotID int) (bool, error) {
	return r.setSlotState(slotID, types.SlotEmpty)
}

// CloseSlot administratively disables a slot. Only legal on empty or closed
// slots.
func (r *Room) CloseSlot(slotID int) (bool, error) {
	return r.setSlotState(slotID, types.SlotClosed)
}

func (r *Room) setSlotState(slotID int, state types.SlotState) (bool, error) {
	if slotID < 0 || slotID >= len(r.Slots) {
		return false, ErrSlotOutOfRange
	}
	switch r.Slots[slotID].State {
	case types.SlotFilled:
		return false, ErrSlotFilled
	case state:
		return false, nil
	default:
		r.Slots[slotID] = types.PlayerSlot{State: state}
		return true, nil
	}
}

func (r *Room) SetMap(mapName string) {
	r.MapName = mapName
}

func (r *Room) SetActiveMods(mods []string) {
	if mods == nil {
		mods = []string{}
	}
	r.ActiveMods = mods
}

// CheckStart verifies the start-game quorum: map set, no empty slots, every
// filled player ready, a non-empty mod list and every player has the active
// mods installed. The issuer's admin status is checked by the caller.
func (r *Room) CheckStart() error {
	if r.MapName == "" {
		return ErrMapNotSet
	}
	if len(r.ActiveMods) == 0 {
		return ErrNoActiveMods
	}
	for _, s := range r.Slots {
		switch s.State {
		case types.SlotEmpty:
			return ErrEmptySlots
		case types.SlotClosed:
			continue
		case types.SlotFilled:
			if !s.Player.Ready {
				return ErrPlayersNotReady
			}
			if !hasAllMods(s.Player.InstalledMods, r.ActiveMods) {
				return ErrMissingMods
			}
		}
	}
	return nil
}

func hasAllMods(installed, required []string) bool {
	have := make(map[string]struct{}, len(installed))
	for _, m := range installed {
		have[m] = struct{}{}
	}
	for _, m := range required {
		if _, ok := have[m]; !ok {
			return false
		}
	}
	return true
}

// StartAddresses computes the address every peer should dial for each filled
// slot. IPv4 addresses are used only when every filled player reported a
// dotted-quad one; otherwise all peers fall back to the transport-observed
// host. Mixing address families is never attempted.
func (r *Room) StartAddresses() []types.AddressEntry {
	ipv4Game := true
	for _, s := range r.Slots {
		if s.State == types.SlotFilled && !ipv4Pattern.MatchString(s.Player.IPv4Address) {
			ipv4Game = false
			break
		}
	}
	addresses := make([]types.AddressEntry, 0)
	for _, s := range r.Slots {
		if s.State != types.SlotFilled {
			continue
		}
		addr := s.Player.Host
		if ipv4Game {
			addr = s.Player.IPv4Address
		}
		addresses = append(addresses, types.AddressEntry{PlayerID: s.Player.ID, Address: addr})
	}
	return addresses
}

func (r *Room) FilledCount() int {
	n := 0
	for _, s := range r.Slots {
		if s.State == types.SlotFilled {
			n++
		}
	}
	return n
}

// Entry is the directory projection of the room.
func (r *Room) Entry() types.GameEntry {
	return types.GameEntry{
		Description: r.Description,
		Players:     r.FilledCount(),
		MaxPlayers:  len(r.Slots),
	}
}

// SnapshotSlots deep-copies the slot list for serialization, so wire payloads
// never alias live room state.
func (r *Room) SnapshotSlots() []types.PlayerSlot {
	out := make([]types.PlayerSlot, len(r.Slots))
	for i, s := range r.Slots {
		out[i] = s
		if s.State == types.SlotFilled {
			player := *s.Player
			if s.Player.Team != nil {
				team := *s.Player.Team
				player.Team = &team
			}
			player.InstalledMods = append([]string(nil), s.Player.InstalledMods...)
			out[i].Player = &player
		}
	}
	return out
}
