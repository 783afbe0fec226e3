package ws

import (
	"context"
	"sort"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"
	"github.com/hashicorp/go-hclog"
	"github.com/rwe-net/lobby-server/filter"
	"github.com/rwe-net/lobby-server/game"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

type masterInbound struct {
	client *Client
	cmd    types.MasterCommand
}

// MasterHub is the directory service: it fans room lifecycle events out to
// every subscriber and answers snapshot queries. It keeps its own entry cache
// fed by the registry event stream, so a snapshot always reflects the net
// effect of all events a subscriber has already observed. Subscribers are
// read-only with respect to room membership.
type MasterHub struct {
	server *Server

	clients map[*Client]struct{}

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan masterInbound

	// directory cache, maintained strictly in event order
	games      map[int]types.GameEntry
	advertised map[int]struct{}

	filterProg *vm.Program

	log hclog.Logger
}

func newMasterHub(server *Server) *MasterHub {
	m := &MasterHub{
		server:     server,
		clients:    make(map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan masterInbound, commandChannelSize),
		games:      make(map[int]types.GameEntry),
		advertised: make(map[int]struct{}),
		log:        globals.AppLogger.Named("master"),
	}
	if f := server.cfg.DirectoryConfig.Filter; f != "" {
		prog, err := expr.Compile(f, expr.Env(filter.Env{}))
		if err != nil {
			m.log.Error("could not compile advertisement filter, advertising everything", "filter", f, "error", err)
		} else {
			m.filterProg = prog
		}
	}
	return m
}

// Run is the directory event loop. When it stops consuming it shuts the
// registry event stream down so room hubs never block on a full buffer.
func (m *MasterHub) Run(ctx context.Context) {
	defer m.server.registry.Close()
	for id, room := range m.server.registry.Rooms() {
		entry := room.Entry()
		m.games[id] = entry
		if m.match(id, entry) {
			m.advertised[id] = struct{}{}
		}
	}
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.Register:
			m.clients[client] = struct{}{}
			m.log.Info("directory subscriber connected", "conn", client.ID)
			m.sendSnapshot(client)

		case client := <-m.Unregister:
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				client.Close()
			}

		case in := <-m.Inbound:
			switch cmd := in.cmd.(type) {
			case types.GetGamesCommand:
				m.sendSnapshot(in.client)
			case types.CreateGameCommand:
				m.handleCreate(in.client, cmd)
			}

		case ev := <-m.server.registry.Events():
			switch ev := ev.(type) {
			case game.GameUpdated:
				m.handleUpdate(ev.ID, ev.Entry)
			case game.GameDeleted:
				m.handleDelete(ev.ID)
			}
		}
	}
}

func (m *MasterHub) handleCreate(client *Client, cmd types.CreateGameCommand) {
	maxPlayers := cmd.MaxPlayers
	if limit := m.server.cfg.ServerConfig.MaxRoomCapacity; maxPlayers < 1 || maxPlayers > limit {
		m.log.Warn("clamping requested room capacity", "requested", cmd.MaxPlayers, "limit", limit)
		if maxPlayers < 1 {
			maxPlayers = 1
		} else {
			maxPlayers = limit
		}
	}
	room, adminKey := m.server.CreateGame(cmd.Description, maxPlayers)
	m.log.Info("game created", "game", room.ID, "description", cmd.Description, "max_players", maxPlayers)

	// the admin key goes to the creator only, never into a broadcast
	m.sendTo(client, types.EventCreateGameResponse, types.CreateGameResponsePayload{
		GameID:   room.ID,
		AdminKey: adminKey,
	})

	entry := types.GameEntry{Description: cmd.Description, Players: 0, MaxPlayers: maxPlayers}
	m.games[room.ID] = entry
	if m.match(room.ID, entry) {
		m.advertised[room.ID] = struct{}{}
		m.broadcast(types.EventGameCreated, types.GameCreatedPayload{GameID: room.ID, Game: entry})
	}
}

func (m *MasterHub) handleUpdate(id int, entry types.GameEntry) {
	m.games[id] = entry
	_, wasAdvertised := m.advertised[id]
	switch {
	case m.match(id, entry) && !wasAdvertised:
		m.advertised[id] = struct{}{}
		m.broadcast(types.EventGameCreated, types.GameCreatedPayload{GameID: id, Game: entry})
	case m.match(id, entry):
		m.broadcast(types.EventGameUpdated, types.GameUpdatedPayload{GameID: id, Game: entry})
	case wasAdvertised:
		delete(m.advertised, id)
		m.broadcast(types.EventGameDeleted, types.GameDeletedPayload{GameID: id})
	}
}

func (m *MasterHub) handleDelete(id int) {
	delete(m.games, id)
	if _, ok := m.advertised[id]; ok {
		delete(m.advertised, id)
		m.broadcast(types.EventGameDeleted, types.GameDeletedPayload{GameID: id})
	}
}

// match evaluates the advertisement filter; with no filter configured every
// game is advertised.
func (m *MasterHub) match(id int, entry types.GameEntry) bool {
	if m.filterProg == nil {
		return true
	}
	env := filter.Env{
		Id:          id,
		Description: entry.Description,
		Players:     entry.Players,
		MaxPlayers:  entry.MaxPlayers,
	}
	res, err := expr.Run(m.filterProg, env)
	if err != nil {
		m.log.Error("could not run advertisement filter", "error", err)
		return false
	}
	b, ok := res.(bool)
	return ok && b
}

func (m *MasterHub) sendSnapshot(client *Client) {
	ids := make([]int, 0, len(m.advertised))
	for id := range m.advertised {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	games := make([]types.GetGamesResponseItem, 0, len(ids))
	for _, id := range ids {
		games = append(games, types.GetGamesResponseItem{ID: id, Game: m.games[id]})
	}
	m.sendTo(client, types.EventGetGamesResponse, types.GetGamesResponsePayload{Games: games})
}

func (m *MasterHub) sendTo(client *Client, event string, payload interface{}) {
	data, err := types.Envelope(event, payload)
	if err != nil {
		m.log.Error("could not marshal event", "event", event, "error", err)
		return
	}
	client.trySend(data)
}

func (m *MasterHub) broadcast(event string, payload interface{}) {
	data, err := types.Envelope(event, payload)
	if err != nil {
		m.log.Error("could not marshal event", "event", event, "error", err)
		return
	}
	for client := range m.clients {
		client.trySend(data)
	}
}
