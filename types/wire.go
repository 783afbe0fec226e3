package types

import "encoding/json"

// Room channel, client to server.
const (
	EventHandshake        = "handshake"
	EventChatMessage      = "chat-message"
	EventChangeSide       = "change-side"
	EventChangeTeam       = "change-team"
	EventChangeColor      = "change-color"
	EventReady            = "ready"
	EventOpenSlot         = "open-slot"
	EventCloseSlot        = "close-slot"
	EventSetActiveMods    = "set-active-mods"
	EventChangeMap        = "change-map"
	EventRequestStartGame = "request-start-game"
)

// Room channel, server to client.
const (
	EventHandshakeResponse  = "handshake-response"
	EventPlayerJoined       = "player-joined"
	EventPlayerLeft         = "player-left"
	EventPlayerChatMessage  = "player-chat-message"
	EventPlayerChangedSide  = "player-changed-side"
	EventPlayerChangedTeam  = "player-changed-team"
	EventPlayerChangedColor = "player-changed-color"
	EventPlayerReady        = "player-ready"
	EventSlotOpened         = "slot-opened"
	EventSlotClosed         = "slot-closed"
	EventActiveModsChanged  = "active-mods-changed"
	EventMapChanged         = "map-changed"
	EventStartGame          = "start-game"
)

// Directory channel.
const (
	EventGetGames           = "get-games"
	EventGetGamesResponse   = "get-games-response"
	EventCreateGame         = "create-game"
	EventCreateGameResponse = "create-game-response"
	EventGameCreated        = "game-created"
	EventGameUpdated        = "game-updated"
	EventGameDeleted        = "game-deleted"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Envelope wraps a payload into a serialized WebsocketMessage.
func Envelope(event string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: data})
}
