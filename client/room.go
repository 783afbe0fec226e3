package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

// Room is a room-channel client. The handshake is sent on dial; the
// handshake-response (own player id, room snapshot) is the first event on
// Events. The channel is closed when the connection dies, which is also how a
// rejected handshake (unknown or full room) surfaces: the server terminates
// the connection without a payload.
type Room struct {
	conn *websocket.Conn

	Events chan types.RoomEvent

	writeMu sync.Mutex
}

// DialRoom connects to the room channel (ws://host/rooms) and sends the
// handshake.
func DialRoom(ctx context.Context, url string, handshake types.HandshakeCommand) (*Room, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	r := &Room{
		conn:   conn,
		Events: make(chan types.RoomEvent, eventChannelSize),
	}
	if err := r.send(types.EventHandshake, handshake); err != nil {
		conn.Close()
		return nil, err
	}
	go r.readLoop()
	return r, nil
}

func (r *Room) readLoop() {
	defer close(r.Events)
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			return
		}
		msg := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			globals.AppLogger.Warn("could not unmarshal room message", "error", err)
			return
		}
		ev, err := types.DecodeRoomEvent(msg)
		if err != nil {
			globals.AppLogger.Warn("could not decode room event", "error", err)
			continue
		}
		r.Events <- ev
	}
}

func (r *Room) send(event string, payload interface{}) error {
	data, err := types.Envelope(event, payload)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *Room) ChatMessage(message string) error {
	return r.send(types.EventChatMessage, message)
}

func (r *Room) ChangeSide(side types.PlayerSide) error {
	return r.send(types.EventChangeSide, types.ChangeSideCommand{Side: side})
}

func (r *Room) ChangeTeam(team *int) error {
	return r.send(types.EventChangeTeam, types.ChangeTeamCommand{Team: team})
}

func (r *Room) ChangeColor(color int) error {
	return r.send(types.EventChangeColor, types.ChangeColorCommand{Color: color})
}

func (r *Room) Ready(value bool) error {
	return r.send(types.EventReady, value)
}

func (r *Room) OpenSlot(slotID int) error {
	return r.send(types.EventOpenSlot, types.OpenSlotCommand{SlotID: slotID})
}

func (r *Room) CloseSlot(slotID int) error {
	return r.send(types.EventCloseSlot, types.CloseSlotCommand{SlotID: slotID})
}

func (r *Room) SetActiveMods(mods []string) error {
	return r.send(types.EventSetActiveMods, types.SetActiveModsCommand{Mods: mods})
}

func (r *Room) ChangeMap(mapName string) error {
	return r.send(types.EventChangeMap, types.ChangeMapCommand{MapName: mapName})
}

func (r *Room) RequestStartGame() error {
	return r.send(types.EventRequestStartGame, nil)
}

func (r *Room) Close() error {
	return r.conn.Close()
}
