package ws

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/rwe-net/lobby-server/config"
	"github.com/rwe-net/lobby-server/game"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

// Server is the websocket boundary: it owns the room registry, one hub per
// live room and the master directory hub, and upgrades connections on the
// /rooms and /master routes.
type Server struct {
	cfg      *config.Config
	registry *game.Registry

	hubs     map[int]*Hub
	hubsLock sync.RWMutex

	Master *MasterHub

	upgrader websocket.Upgrader

	log hclog.Logger
}

func NewServer(cfg *config.Config, registry *game.Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		hubs:     make(map[int]*Hub),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: globals.AppLogger,
	}
	s.Master = newMasterHub(s)
	return s
}

// CreateGame allocates a room in the registry and starts its hub.
func (s *Server) CreateGame(description string, maxPlayers int) (*game.Room, string) {
	room, adminKey := s.registry.CreateRoom(description, maxPlayers)
	hub := newHub(s, room)
	s.hubsLock.Lock()
	s.hubs[room.ID] = hub
	s.hubsLock.Unlock()
	go hub.Run()
	return room, adminKey
}

func (s *Server) hub(id int) (*Hub, bool) {
	s.hubsLock.RLock()
	defer s.hubsLock.RUnlock()
	hub, ok := s.hubs[id]
	return hub, ok
}

func (s *Server) removeHub(id int) {
	s.hubsLock.Lock()
	delete(s.hubs, id)
	s.hubsLock.Unlock()
}

func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/rooms", s.roomHandler).Methods(http.MethodGet)
	router.HandleFunc("/master", s.masterHandler).Methods(http.MethodGet)
	return router
}

// roomHandler upgrades the connection and waits for a handshake. A handshake
// naming an unknown room, or a room with no empty slot, terminates the
// connection without a response payload.
func (s *Server) roomHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade error", "error", err)
		return
	}
	addr := remoteAddr(r, s.cfg.ServerConfig.ReverseProxy)
	client := NewClient(conn, addr)
	s.log.Info("received room connection", "conn", client.ID, "addr", addr)

	msg, err := client.ReadOne(handshakeWait)
	if err != nil {
		s.log.Info("no handshake received", "conn", client.ID, "error", err)
		client.Close()
		return
	}
	cmd, err := types.DecodeRoomCommand(msg)
	if err != nil {
		s.log.Warn("could not decode handshake", "conn", client.ID, "error", err)
		client.Close()
		return
	}
	hs, ok := cmd.(types.HandshakeCommand)
	if !ok {
		s.log.Warn("first message is not a handshake", "conn", client.ID, "event", msg.Event)
		client.Close()
		return
	}
	s.log.Info("received handshake", "conn", client.ID, "game", hs.GameID, "name", hs.Name)

	hub, ok := s.hub(hs.GameID)
	if !ok {
		s.log.Info("handshake for non-existent room", "conn", client.ID, "game", hs.GameID)
		client.Close()
		return
	}
	playerID, err := hub.Join(client, hs)
	if err != nil {
		s.log.Info("join rejected", "conn", client.ID, "game", hs.GameID, "error", err)
		client.Close()
		return
	}

	client.Add(2)
	go client.WriteLoop()
	client.ReadLoop(func(msg types.WebsocketMessage) error {
		cmd, err := types.DecodeRoomCommand(msg)
		if err != nil {
			return err
		}
		if _, ok := cmd.(types.HandshakeCommand); ok {
			return fmt.Errorf("repeated handshake from player %d", playerID)
		}
		hub.Dispatch(playerID, cmd)
		return nil
	})
	hub.Disconnect(playerID)
	client.Wait()
}

// masterHandler upgrades the connection and registers it as a directory
// subscriber. The snapshot is pushed by the master hub on registration.
func (s *Server) masterHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade error", "error", err)
		return
	}
	addr := remoteAddr(r, s.cfg.ServerConfig.ReverseProxy)
	client := NewClient(conn, addr)
	s.log.Info("received directory connection", "conn", client.ID, "addr", addr)

	s.Master.Register <- client

	client.Add(2)
	go client.WriteLoop()
	client.ReadLoop(func(msg types.WebsocketMessage) error {
		cmd, err := types.DecodeMasterCommand(msg)
		if err != nil {
			return err
		}
		s.Master.Inbound <- masterInbound{client: client, cmd: cmd}
		return nil
	})
	s.Master.Unregister <- client
	client.Wait()
}

// remoteAddr extracts the connection's remote address. Behind a reverse proxy
// the last entry of x-forwarded-for is the address the proxy actually saw.
func remoteAddr(r *http.Request, reverseProxy bool) string {
	if reverseProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			addrs := strings.Split(fwd, ", ")
			return addrs[len(addrs)-1]
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
