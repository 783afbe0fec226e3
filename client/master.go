// Package client provides the two session adapters consuming the lobby
// server: a directory client subscribing to the game list and a room client
// joining a single room.
package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

const eventChannelSize = 64

// Master is a directory subscriber. Server events arrive on Events in the
// order the server emitted them; the channel is closed when the connection
// dies.
type Master struct {
	conn *websocket.Conn

	Events chan types.MasterEvent

	writeMu sync.Mutex
}

// DialMaster connects to the directory channel (ws://host/master). The server
// pushes a games snapshot immediately after connect.
func DialMaster(ctx context.Context, url string) (*Master, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	m := &Master{
		conn:   conn,
		Events: make(chan types.MasterEvent, eventChannelSize),
	}
	go m.readLoop()
	return m, nil
}

func (m *Master) readLoop() {
	defer close(m.Events)
	for {
		_, raw, err := m.conn.ReadMessage()
		if err != nil {
			return
		}
		msg := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			globals.AppLogger.Warn("could not unmarshal directory message", "error", err)
			return
		}
		ev, err := types.DecodeMasterEvent(msg)
		if err != nil {
			globals.AppLogger.Warn("could not decode directory event", "error", err)
			continue
		}
		m.Events <- ev
	}
}

func (m *Master) send(event string, payload interface{}) error {
	data, err := types.Envelope(event, payload)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.conn.WriteMessage(websocket.TextMessage, data)
}

// GetGames requests a fresh snapshot; the answer arrives on Events.
func (m *Master) GetGames() error {
	return m.send(types.EventGetGames, nil)
}

// CreateGame requests a new room. The create-game-response carrying the room
// id and the admin key arrives on Events and goes to this client only.
func (m *Master) CreateGame(description string, maxPlayers int) error {
	return m.send(types.EventCreateGame, types.CreateGameCommand{
		Description: description,
		MaxPlayers:  maxPlayers,
	})
}

func (m *Master) Close() error {
	return m.conn.Close()
}
