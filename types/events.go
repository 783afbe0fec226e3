package types

import (
	"encoding/json"
	"fmt"
)

// RoomEvent is the closed set of server events on the room channel, as seen
// by a room client.
type RoomEvent interface {
	roomEvent()
}

func (HandshakeResponsePayload) roomEvent()  {}
func (PlayerJoinedPayload) roomEvent()       {}
func (PlayerLeftPayload) roomEvent()         {}
func (PlayerChatMessagePayload) roomEvent()  {}
func (PlayerChangedSidePayload) roomEvent()  {}
func (PlayerChangedTeamPayload) roomEvent()  {}
func (PlayerChangedColorPayload) roomEvent() {}
func (PlayerReadyPayload) roomEvent()        {}
func (SlotOpenedPayload) roomEvent()         {}
func (SlotClosedPayload) roomEvent()         {}
func (ActiveModsChangedPayload) roomEvent()  {}
func (MapChangedPayload) roomEvent()         {}
func (StartGamePayload) roomEvent()          {}

// MasterEvent is the closed set of server events on the directory channel, as
// seen by a directory subscriber.
type MasterEvent interface {
	masterEvent()
}

func (GetGamesResponsePayload) masterEvent()   {}
func (CreateGameResponsePayload) masterEvent() {}
func (GameCreatedPayload) masterEvent()        {}
func (GameUpdatedPayload) masterEvent()        {}
func (GameDeletedPayload) masterEvent()        {}

// DecodeRoomEvent parses a server message on the room channel. Server output
// is canonical JSON, so this decodes strictly.
func DecodeRoomEvent(msg WebsocketMessage) (RoomEvent, error) {
	var ev RoomEvent
	switch msg.Event {
	case EventHandshakeResponse:
		ev = &HandshakeResponsePayload{}
	case EventPlayerJoined:
		ev = &PlayerJoinedPayload{}
	case EventPlayerLeft:
		ev = &PlayerLeftPayload{}
	case EventPlayerChatMessage:
		ev = &PlayerChatMessagePayload{}
	case EventPlayerChangedSide:
		ev = &PlayerChangedSidePayload{}
	case EventPlayerChangedTeam:
		ev = &PlayerChangedTeamPayload{}
	case EventPlayerChangedColor:
		ev = &PlayerChangedColorPayload{}
	case EventPlayerReady:
		ev = &PlayerReadyPayload{}
	case EventSlotOpened:
		ev = &SlotOpenedPayload{}
	case EventSlotClosed:
		ev = &SlotClosedPayload{}
	case EventActiveModsChanged:
		ev = &ActiveModsChangedPayload{}
	case EventMapChanged:
		ev = &MapChangedPayload{}
	case EventStartGame:
		ev = &StartGamePayload{}
	default:
		return nil, fmt.Errorf("unknown room event %q", msg.Event)
	}
	if err := json.Unmarshal(msg.Data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// DecodeMasterEvent parses a server message on the directory channel.
func DecodeMasterEvent(msg WebsocketMessage) (MasterEvent, error) {
	var ev MasterEvent
	switch msg.Event {
	case EventGetGamesResponse:
		ev = &GetGamesResponsePayload{}
	case EventCreateGameResponse:
		ev = &CreateGameResponsePayload{}
	case EventGameCreated:
		ev = &GameCreatedPayload{}
	case EventGameUpdated:
		ev = &GameUpdatedPayload{}
	case EventGameDeleted:
		ev = &GameDeletedPayload{}
	default:
		return nil, fmt.Errorf("unknown directory event %q", msg.Event)
	}
	if err := json.Unmarshal(msg.Data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
