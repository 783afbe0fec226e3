package types

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Server to client payloads, room channel.

type HandshakeResponsePayload struct {
	PlayerID      int          `json:"playerId" mapstructure:"playerId"`
	AdminPlayerID *int         `json:"adminPlayerId,omitempty" mapstructure:"adminPlayerId"`
	Players       []PlayerSlot `json:"players" mapstructure:"players"`
	MapName       string       `json:"mapName,omitempty" mapstructure:"mapName"`
	ActiveMods    []string     `json:"activeMods" mapstructure:"activeMods"`
}

type PlayerJoinedPayload struct {
	PlayerID      int      `json:"playerId" mapstructure:"playerId"`
	Name          string   `json:"name" mapstructure:"name"`
	InstalledMods []string `json:"installedMods" mapstructure:"installedMods"`
}

type PlayerLeftPayload struct {
	PlayerID         int  `json:"playerId" mapstructure:"playerId"`
	NewAdminPlayerID *int `json:"newAdminPlayerId,omitempty" mapstructure:"newAdminPlayerId"`
}

type PlayerChatMessagePayload struct {
	PlayerID int    `json:"playerId" mapstructure:"playerId"`
	Message  string `json:"message" mapstructure:"message"`
}

type PlayerChangedSidePayload struct {
	PlayerID int        `json:"playerId" mapstructure:"playerId"`
	Side     PlayerSide `json:"side" mapstructure:"side"`
}

type PlayerChangedTeamPayload struct {
	PlayerID int  `json:"playerId" mapstructure:"playerId"`
	Team     *int `json:"team,omitempty" mapstructure:"team"`
}

type PlayerChangedColorPayload struct {
	PlayerID int `json:"playerId" mapstructure:"playerId"`
	Color    int `json:"color" mapstructure:"color"`
}

type PlayerReadyPayload struct {
	PlayerID int  `json:"playerId" mapstructure:"playerId"`
	Value    bool `json:"value" mapstructure:"value"`
}

type SlotOpenedPayload struct {
	SlotID int `json:"slotId" mapstructure:"slotId"`
}

type SlotClosedPayload struct {
	SlotID int `json:"slotId" mapstructure:"slotId"`
}

type ActiveModsChangedPayload struct {
	Mods []string `json:"mods" mapstructure:"mods"`
}

type MapChangedPayload struct {
	MapName string `json:"mapName" mapstructure:"mapName"`
}

type StartGamePayload struct {
	Addresses []AddressEntry `json:"addresses"`
}

// Server to client payloads, directory channel.

type GetGamesResponseItem struct {
	ID   int       `json:"id" mapstructure:"id"`
	Game GameEntry `json:"game" mapstructure:"game"`
}

type GetGamesResponsePayload struct {
	Games []GetGamesResponseItem `json:"games" mapstructure:"games"`
}

type CreateGameResponsePayload struct {
	GameID   int    `json:"game_id" mapstructure:"game_id"`
	AdminKey string `json:"admin_key" mapstructure:"admin_key"`
}

type GameCreatedPayload struct {
	GameID int       `json:"game_id" mapstructure:"game_id"`
	Game   GameEntry `json:"game" mapstructure:"game"`
}

type GameUpdatedPayload struct {
	GameID int       `json:"game_id" mapstructure:"game_id"`
	Game   GameEntry `json:"game" mapstructure:"game"`
}

type GameDeletedPayload struct {
	GameID int `json:"game_id" mapstructure:"game_id"`
}

// RoomCommand is the closed set of client commands on the room channel. Wire
// messages are decoded into it exactly once, at the transport boundary.
type RoomCommand interface {
	roomCommand()
}

type HandshakeCommand struct {
	GameID        int      `json:"gameId" mapstructure:"gameId"`
	Name          string   `json:"name" mapstructure:"name"`
	IPv4Address   string   `json:"ipv4Address" mapstructure:"ipv4Address"`
	AdminKey      string   `json:"adminKey" mapstructure:"adminKey"`
	InstalledMods []string `json:"installedMods" mapstructure:"installedMods"`
}

type ChatMessageCommand struct {
	Message string
}

type ChangeSideCommand struct {
	Side PlayerSide `json:"side" mapstructure:"side"`
}

type ChangeTeamCommand struct {
	Team *int `json:"team,omitempty" mapstructure:"team"`
}

type ChangeColorCommand struct {
	Color int `json:"color" mapstructure:"color"`
}

type ReadyCommand struct {
	Value bool
}

type OpenSlotCommand struct {
	SlotID int `json:"slotId" mapstructure:"slotId"`
}

type CloseSlotCommand struct {
	SlotID int `json:"slotId" mapstructure:"slotId"`
}

type SetActiveModsCommand struct {
	Mods []string `json:"mods" mapstructure:"mods"`
}

type ChangeMapCommand struct {
	MapName string `json:"mapName" mapstructure:"mapName"`
}

type RequestStartGameCommand struct{}

func (HandshakeCommand) roomCommand()        {}
func (ChatMessageCommand) roomCommand()      {}
func (ChangeSideCommand) roomCommand()       {}
func (ChangeTeamCommand) roomCommand()       {}
func (ChangeColorCommand) roomCommand()      {}
func (ReadyCommand) roomCommand()            {}
func (OpenSlotCommand) roomCommand()         {}
func (CloseSlotCommand) roomCommand()        {}
func (SetActiveModsCommand) roomCommand()    {}
func (ChangeMapCommand) roomCommand()        {}
func (RequestStartGameCommand) roomCommand() {}

// MasterCommand is the closed set of client commands on the directory channel.
type MasterCommand interface {
	masterCommand()
}

type GetGamesCommand struct{}

type CreateGameCommand struct {
	Description string `json:"description" mapstructure:"description"`
	MaxPlayers  int    `json:"max_players" mapstructure:"max_players"`
}

func (GetGamesCommand) masterCommand()   {}
func (CreateGameCommand) masterCommand() {}

// decodePayload unmarshals the raw payload into a generic map first and then
// weakly decodes it into the typed struct, so clients that send numbers as
// strings etc. still parse.
func decodePayload(data json.RawMessage, out interface{}) error {
	m := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
	}
	return mapstructure.WeakDecode(m, out)
}

// DecodeRoomCommand turns a wire message from a room-channel client into a
// typed command.
func DecodeRoomCommand(msg WebsocketMessage) (RoomCommand, error) {
	switch msg.Event {
	case EventHandshake:
		cmd := HandshakeCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventChatMessage:
		cmd := ChatMessageCommand{}
		if err := json.Unmarshal(msg.Data, &cmd.Message); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventChangeSide:
		cmd := ChangeSideCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventChangeTeam:
		cmd := ChangeTeamCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventChangeColor:
		cmd := ChangeColorCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventReady:
		cmd := ReadyCommand{}
		if err := json.Unmarshal(msg.Data, &cmd.Value); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventOpenSlot:
		cmd := OpenSlotCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventCloseSlot:
		cmd := CloseSlotCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventSetActiveMods:
		cmd := SetActiveModsCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventChangeMap:
		cmd := ChangeMapCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case EventRequestStartGame:
		return RequestStartGameCommand{}, nil
	}
	return nil, fmt.Errorf("unknown room event %q", msg.Event)
}

// DecodeMasterCommand turns a wire message from a directory subscriber into a
// typed command.
func DecodeMasterCommand(msg WebsocketMessage) (MasterCommand, error) {
	switch msg.Event {
	case EventGetGames:
		return GetGamesCommand{}, nil
	case EventCreateGame:
		cmd := CreateGameCommand{}
		if err := decodePayload(msg.Data, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("unknown directory event %q", msg.Event)
}
