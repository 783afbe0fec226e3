package types

import (
	"encoding/json"
	"fmt"
)

type PlayerSide string

const (
	SideArm  PlayerSide = "ARM"
	SideCore PlayerSide = "CORE"
)

// PlayerInfo describes one connected player. Host is the transport-observed
// remote address, IPv4Address is self-reported by the client and preferred for
// peer addressing when every participant has one.
type PlayerInfo struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	Host          string     `json:"host"`
	IPv4Address   string     `json:"ipv4Address"`
	Side          PlayerSide `json:"side"`
	Color         int        `json:"color"`
	Team          *int       `json:"team,omitempty"`
	Ready         bool       `json:"ready"`
	InstalledMods []string   `json:"installedMods"`
}

type SlotState string

const (
	SlotEmpty  SlotState = "empty"
	SlotClosed SlotState = "closed"
	SlotFilled SlotState = "filled"
)

// PlayerSlot is one of a room's fixed capacity positions. Player is set
// exactly when State is SlotFilled; this is also the wire shape.
type PlayerSlot struct {
	State  SlotState   `json:"state"`
	Player *PlayerInfo `json:"player,omitempty"`
}

func EmptySlot() PlayerSlot  { return PlayerSlot{State: SlotEmpty} }
func ClosedSlot() PlayerSlot { return PlayerSlot{State: SlotClosed} }

func FilledSlot(p *PlayerInfo) PlayerSlot {
	return PlayerSlot{State: SlotFilled, Player: p}
}

// AdminState is either AdminUnclaimed (the room-wide key is still out there)
// or AdminClaimed. Once claimed, a room never reverts to unclaimed.
type AdminState interface {
	adminState()
}

type AdminUnclaimed struct {
	AdminKey string
}

type AdminClaimed struct {
	AdminPlayerID *int
}

func (AdminUnclaimed) adminState() {}
func (AdminClaimed) adminState()   {}

// GameEntry is the directory projection of a room.
type GameEntry struct {
	Description string `json:"description"`
	Players     int    `json:"players"`
	MaxPlayers  int    `json:"max_players"`
}

// AddressEntry serializes as a [playerId, address] tuple, the shape the
// start-game payload uses on the wire.
type AddressEntry struct {
	PlayerID int
	Address  string
}

func (e AddressEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.PlayerID, e.Address})
}

func (e *AddressEntry) UnmarshalJSON(b []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("address entry is not a 2-tuple: %w", err)
	}
	if err := json.Unmarshal(raw[0], &e.PlayerID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Address)
}
