package ws

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
	"github.com/rwe-net/lobby-server/game"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

const commandChannelSize = 256

type joinRequest struct {
	client *Client
	cmd    types.HandshakeCommand
	reply  chan joinReply
}

type joinReply struct {
	playerID int
	err      error
}

type inbound struct {
	playerID int
	cmd      types.RoomCommand
}

// Hub runs one room. There is one hub goroutine per room and every
// room-mutating operation goes through its channels, so mutation and
// broadcast of one event are a single loop iteration: all connections observe
// room events in the order the mutations were applied, and two simultaneous
// joins can never grab the same slot. Different rooms run fully in parallel.
type Hub struct {
	server *Server
	room   *game.Room

	// playerID -> connection
	sessions map[int]*Client

	join     chan joinRequest
	commands chan inbound
	leaves   chan int
	refresh  chan struct{}
	done     chan struct{}

	log hclog.Logger
}

func newHub(server *Server, room *game.Room) *Hub {
	return &Hub{
		server:   server,
		room:     room,
		sessions: make(map[int]*Client),
		join:     make(chan joinRequest),
		commands: make(chan inbound, commandChannelSize),
		leaves:   make(chan int, commandChannelSize),
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      globals.AppLogger.With("room", room.ID),
	}
}

// Join attaches a handshaking connection to the room. It fails with
// game.ErrRoomFull when no empty slot remains, or game.ErrRoomNotFound when
// the room has already been torn down.
func (h *Hub) Join(client *Client, cmd types.HandshakeCommand) (int, error) {
	req := joinRequest{client: client, cmd: cmd, reply: make(chan joinReply, 1)}
	select {
	case h.join <- req:
	case <-h.done:
		return 0, game.ErrRoomNotFound
	}
	select {
	case rep := <-req.reply:
		return rep.playerID, rep.err
	case <-h.done:
		return 0, game.ErrRoomNotFound
	}
}

// Dispatch hands a decoded client command to the room loop.
func (h *Hub) Dispatch(playerID int, cmd types.RoomCommand) {
	select {
	case h.commands <- inbound{playerID: playerID, cmd: cmd}:
	case <-h.done:
	}
}

// Disconnect vacates the player's slot. Safe to call after the room died.
func (h *Hub) Disconnect(playerID int) {
	select {
	case h.leaves <- playerID:
	case <-h.done:
	}
}

// Run is the room event loop. It exits when the last filled slot empties, at
// which point the room is already deleted from the registry; the
// advertisement heartbeat dies with it.
func (h *Hub) Run() {
	defer close(h.done)
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if spec := h.server.cfg.DirectoryConfig.AdvertiseCron; spec != "" {
		_, err := cronRunner.AddFunc(spec, func() {
			select {
			case h.refresh <- struct{}{}:
			default:
			}
		})
		if err != nil {
			h.log.Error("could not schedule advertisement refresh", "spec", spec, "error", err)
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()
	for {
		select {
		case req := <-h.join:
			h.handleJoin(req)
		case in := <-h.commands:
			h.handleCommand(in.playerID, in.cmd)
		case playerID := <-h.leaves:
			if h.handleLeave(playerID) {
				return
			}
		case <-h.refresh:
			h.server.registry.NotifyUpdated(h.room)
		}
	}
}

func (h *Hub) handleJoin(req joinRequest) {
	player, err := h.room.Join(req.cmd.Name, req.client.RemoteAddr(), req.cmd.IPv4Address, req.cmd.AdminKey, req.cmd.InstalledMods)
	if err != nil {
		h.log.Info("room full, rejecting client", "conn", req.client.ID)
		req.reply <- joinReply{err: err}
		return
	}
	h.log.Info("player joined", "player", player.ID, "name", player.Name, "host", player.Host)
	h.sessions[player.ID] = req.client

	h.sendTo(player.ID, types.EventHandshakeResponse, types.HandshakeResponsePayload{
		PlayerID:      player.ID,
		AdminPlayerID: h.room.AdminPlayerID(),
		Players:       h.room.SnapshotSlots(),
		MapName:       h.room.MapName,
		ActiveMods:    append([]string(nil), h.room.ActiveMods...),
	})
	h.broadcastExcept(player.ID, types.EventPlayerJoined, types.PlayerJoinedPayload{
		PlayerID:      player.ID,
		Name:          player.Name,
		InstalledMods: player.InstalledMods,
	})
	h.server.registry.NotifyUpdated(h.room)
	req.reply <- joinReply{playerID: player.ID}
}

func (h *Hub) handleCommand(playerID int, cmd types.RoomCommand) {
	switch cmd := cmd.(type) {
	case types.ChatMessageCommand:
		// relayed verbatim, no filtering or rate limiting
		h.broadcast(types.EventPlayerChatMessage, types.PlayerChatMessagePayload{
			PlayerID: playerID,
			Message:  cmd.Message,
		})

	case types.ChangeSideCommand:
		if err := h.room.SetSide(playerID, cmd.Side); err != nil {
			h.failPlayer(playerID, err)
			return
		}
		h.broadcast(types.EventPlayerChangedSide, types.PlayerChangedSidePayload{PlayerID: playerID, Side: cmd.Side})

	case types.ChangeTeamCommand:
		if err := h.room.SetTeam(playerID, cmd.Team); err != nil {
			h.failPlayer(playerID, err)
			return
		}
		h.broadcast(types.EventPlayerChangedTeam, types.PlayerChangedTeamPayload{PlayerID: playerID, Team: cmd.Team})

	case types.ChangeColorCommand:
		if err := h.room.SetColor(playerID, cmd.Color); err != nil {
			h.failPlayer(playerID, err)
			return
		}
		h.broadcast(types.EventPlayerChangedColor, types.PlayerChangedColorPayload{PlayerID: playerID, Color: cmd.Color})

	case types.ReadyCommand:
		if err := h.room.SetReady(playerID, cmd.Value); err != nil {
			h.failPlayer(playerID, err)
			return
		}
		h.broadcast(types.EventPlayerReady, types.PlayerReadyPayload{PlayerID: playerID, Value: cmd.Value})

	case types.OpenSlotCommand:
		if !h.room.IsAdmin(playerID) {
			h.log.Warn("received open-slot from non-admin player", "player", playerID)
			return
		}
		changed, err := h.room.OpenSlot(cmd.SlotID)
		if err != nil {
			h.log.Warn("cannot open slot", "player", playerID, "slot", cmd.SlotID, "error", err)
			return
		}
		if !changed {
			return
		}
		h.broadcast(types.EventSlotOpened, types.SlotOpenedPayload{SlotID: cmd.SlotID})
		h.server.registry.NotifyUpdated(h.room)

	case types.CloseSlotCommand:
		if !h.room.IsAdmin(playerID) {
			h.log.Warn("received close-slot from non-admin player", "player", playerID)
			return
		}
		changed, err := h.room.CloseSlot(cmd.SlotID)
		if err != nil {
			h.log.Warn("cannot close slot", "player", playerID, "slot", cmd.SlotID, "error", err)
			return
		}
		if !changed {
			return
		}
		h.broadcast(types.EventSlotClosed, types.SlotClosedPayload{SlotID: cmd.SlotID})
		h.server.registry.NotifyUpdated(h.room)

	case types.SetActiveModsCommand:
		if !h.room.IsAdmin(playerID) {
			h.log.Warn("received set-active-mods from non-admin player", "player", playerID)
			return
		}
		h.room.SetActiveMods(cmd.Mods)
		h.broadcast(types.EventActiveModsChanged, types.ActiveModsChangedPayload{Mods: h.room.ActiveMods})

	case types.ChangeMapCommand:
		if !h.room.IsAdmin(playerID) {
			h.log.Warn("received change-map from non-admin player", "player", playerID)
			return
		}
		h.room.SetMap(cmd.MapName)
		h.broadcast(types.EventMapChanged, types.MapChangedPayload{MapName: cmd.MapName})

	case types.RequestStartGameCommand:
		if !h.room.IsAdmin(playerID) {
			h.log.Warn("received start-game request from non-admin player", "player", playerID)
			return
		}
		if err := h.room.CheckStart(); err != nil {
			// silent refusal, the admin has to resolve the blocking condition
			h.log.Warn("start-game refused", "player", playerID, "reason", err)
			return
		}
		h.broadcast(types.EventStartGame, types.StartGamePayload{Addresses: h.room.StartAddresses()})

	case types.HandshakeCommand:
		h.log.Warn("received handshake from already-joined player", "player", playerID)
		h.failPlayer(playerID, game.ErrPlayerNotFound)
	}
}

// failPlayer isolates an internal invariant violation to the offending
// connection instead of taking down the room.
func (h *Hub) failPlayer(playerID int, err error) {
	h.log.Error("command failed, closing connection", "player", playerID, "error", err)
	if c, ok := h.sessions[playerID]; ok {
		c.Close()
	}
}

// handleLeave vacates the slot and reports whether the room was deleted.
func (h *Hub) handleLeave(playerID int) bool {
	delete(h.sessions, playerID)
	res, err := h.room.Leave(playerID)
	if err != nil {
		h.log.Warn("disconnect for unknown player", "player", playerID)
		return false
	}
	h.log.Info("player left", "player", playerID)
	if res.Empty {
		h.server.removeHub(h.room.ID)
		h.server.registry.DeleteRoom(h.room.ID)
		return true
	}
	h.broadcast(types.EventPlayerLeft, types.PlayerLeftPayload{
		PlayerID:         playerID,
		NewAdminPlayerID: res.NewAdminPlayerID,
	})
	h.server.registry.NotifyUpdated(h.room)
	return false
}

func (h *Hub) sendTo(playerID int, event string, payload interface{}) {
	c, ok := h.sessions[playerID]
	if !ok {
		return
	}
	data, err := types.Envelope(event, payload)
	if err != nil {
		h.log.Error("could not marshal event", "event", event, "error", err)
		return
	}
	c.trySend(data)
}

func (h *Hub) broadcast(event string, payload interface{}) {
	h.broadcastExcept(-1, event, payload)
}

func (h *Hub) broadcastExcept(exceptPlayerID int, event string, payload interface{}) {
	data, err := types.Envelope(event, payload)
	if err != nil {
		h.log.Error("could not marshal event", "event", event, "error", err)
		return
	}
	for playerID, c := range h.sessions {
		if playerID == exceptPlayerID {
			continue
		}
		c.trySend(data)
	}
}
