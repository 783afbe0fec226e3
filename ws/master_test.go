package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rwe-net/lobby-server/config"
	"github.com/rwe-net/lobby-server/game"
	"github.com/rwe-net/lobby-server/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvMasterEvent(t *testing.T, c *Client) types.MasterEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		msg := types.WebsocketMessage{}
		require.NoError(t, json.Unmarshal(data, &msg))
		ev, err := types.DecodeMasterEvent(msg)
		require.NoError(t, err)
		return ev
	case <-time.After(eventWait):
		t.Fatal("timed out waiting for directory event")
		return nil
	}
}

func startMaster(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Master.Run(ctx)
}

func subscribe(t *testing.T, s *Server) *Client {
	t.Helper()
	c := NewClient(nil, "10.0.0.9")
	s.Master.Register <- c
	return c
}

func TestSnapshotPushedOnRegister(t *testing.T) {
	s := testServer(t)
	startMaster(t, s)

	c := subscribe(t, s)
	snap, ok := recvMasterEvent(t, c).(*types.GetGamesResponsePayload)
	require.True(t, ok)
	assert.Empty(t, snap.Games)
}

func TestCreateGameViaDirectory(t *testing.T) {
	s := testServer(t)
	startMaster(t, s)

	creator := subscribe(t, s)
	recvMasterEvent(t, creator) // empty snapshot
	watcher := subscribe(t, s)
	recvMasterEvent(t, watcher)

	s.Master.Inbound <- masterInbound{client: creator, cmd: types.CreateGameCommand{Description: "my game", MaxPlayers: 4}}

	// the admin key goes to the creator only
	resp, ok := recvMasterEvent(t, creator).(*types.CreateGameResponsePayload)
	require.True(t, ok)
	assert.Regexp(t, `^[0-9a-f]{32}$`, resp.AdminKey)

	created, ok := recvMasterEvent(t, creator).(*types.GameCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, resp.GameID, created.GameID)
	assert.Equal(t, types.GameEntry{Description: "my game", Players: 0, MaxPlayers: 4}, created.Game)

	// the watcher sees the advertisement but never the key
	createdW, ok := recvMasterEvent(t, watcher).(*types.GameCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, created.GameID, createdW.GameID)

	// the room and its hub are live
	room, ok := s.registry.Room(resp.GameID)
	require.True(t, ok)
	assert.Len(t, room.Slots, 4)
	_, ok = s.hub(resp.GameID)
	assert.True(t, ok)
}

func TestCreateGameClampsCapacity(t *testing.T) {
	s := testServer(t)
	startMaster(t, s)

	c := subscribe(t, s)
	recvMasterEvent(t, c)

	s.Master.Inbound <- masterInbound{client: c, cmd: types.CreateGameCommand{Description: "huge", MaxPlayers: 5000}}
	resp, ok := recvMasterEvent(t, c).(*types.CreateGameResponsePayload)
	require.True(t, ok)
	created, ok := recvMasterEvent(t, c).(*types.GameCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, s.cfg.ServerConfig.MaxRoomCapacity, created.Game.MaxPlayers)

	s.Master.Inbound <- masterInbound{client: c, cmd: types.CreateGameCommand{Description: "degenerate", MaxPlayers: 0}}
	resp2, ok := recvMasterEvent(t, c).(*types.CreateGameResponsePayload)
	require.True(t, ok)
	assert.NotEqual(t, resp.GameID, resp2.GameID)
	created2, ok := recvMasterEvent(t, c).(*types.GameCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, 1, created2.Game.MaxPlayers)
}

func TestGameLifecycleEvents(t *testing.T) {
	s := testServer(t)
	startMaster(t, s)

	c := subscribe(t, s)
	recvMasterEvent(t, c)

	room, _ := s.CreateGame("room", 2)
	hub, _ := s.hub(room.ID)

	player := NewClient(nil, "10.0.0.1")
	playerID := joinPlayer(t, hub, player, types.HandshakeCommand{Name: "Alice"})

	// join bumps the player count
	updated, ok := recvMasterEvent(t, c).(*types.GameCreatedPayload)
	require.True(t, ok, "a directly-created room is first advertised on its join update")
	assert.Equal(t, room.ID, updated.GameID)
	assert.Equal(t, 1, updated.Game.Players)

	// last leave deletes the room and retracts the advertisement
	hub.Disconnect(playerID)
	deleted, ok := recvMasterEvent(t, c).(*types.GameDeletedPayload)
	require.True(t, ok)
	assert.Equal(t, room.ID, deleted.GameID)

	// a later snapshot no longer lists it
	s.Master.Inbound <- masterInbound{client: c, cmd: types.GetGamesCommand{}}
	snap, ok := recvMasterEvent(t, c).(*types.GetGamesResponsePayload)
	require.True(t, ok)
	assert.Empty(t, snap.Games)
}

// A room whose final join update is still queued when it is deleted must not
// come back: the directory has to digest the stale update strictly before the
// delete, no matter how far its loop is behind.
func TestDeletedRoomNotResurrectedByStaleUpdate(t *testing.T) {
	s := testServer(t)
	room, _ := s.registry.CreateRoom("doomed", 2)
	_, err := room.Join("A", "h", "", "", nil)
	require.NoError(t, err)

	// both events are queued before the directory loop even starts
	s.registry.NotifyUpdated(room)
	require.True(t, s.registry.DeleteRoom(room.ID))

	startMaster(t, s)

	// wait for the loop to drain the queue; the unbuffered register below is
	// then received strictly after both handlers ran, update before delete
	deadline := time.Now().Add(eventWait)
	for len(s.registry.Events()) > 0 {
		require.True(t, time.Now().Before(deadline), "directory loop did not drain")
		time.Sleep(time.Millisecond)
	}

	c := subscribe(t, s)
	snap, ok := recvMasterEvent(t, c).(*types.GetGamesResponsePayload)
	require.True(t, ok)
	assert.Empty(t, snap.Games, "deleted room is still advertised")
}

func TestSnapshotSortedByID(t *testing.T) {
	s := testServer(t)

	// rooms created before the master starts are seeded from the registry
	s.CreateGame("first", 2)
	s.CreateGame("second", 4)
	startMaster(t, s)

	c := subscribe(t, s)
	snap, ok := recvMasterEvent(t, c).(*types.GetGamesResponsePayload)
	require.True(t, ok)
	require.Len(t, snap.Games, 2)
	assert.Equal(t, 1, snap.Games[0].ID)
	assert.Equal(t, "first", snap.Games[0].Game.Description)
	assert.Equal(t, 2, snap.Games[1].ID)
	assert.Equal(t, "second", snap.Games[1].Game.Description)
}

func TestAdvertisementFilter(t *testing.T) {
	cfg := &config.Config{
		ServerConfig:    config.ServerConfig{MaxRoomCapacity: 10},
		DirectoryConfig: config.DirectoryConfig{Filter: "Players > 0"},
	}
	s := NewServer(cfg, game.NewRegistry())
	startMaster(t, s)

	c := subscribe(t, s)
	recvMasterEvent(t, c)

	// an empty room does not match the filter, so creating it only answers
	// the creator
	s.Master.Inbound <- masterInbound{client: c, cmd: types.CreateGameCommand{Description: "hidden", MaxPlayers: 2}}
	resp, ok := recvMasterEvent(t, c).(*types.CreateGameResponsePayload)
	require.True(t, ok)

	s.Master.Inbound <- masterInbound{client: c, cmd: types.GetGamesCommand{}}
	snap, ok := recvMasterEvent(t, c).(*types.GetGamesResponsePayload)
	require.True(t, ok)
	assert.Empty(t, snap.Games)

	// the first player makes it match; subscribers see it appear as created
	hub, _ := s.hub(resp.GameID)
	player := NewClient(nil, "10.0.0.1")
	playerID := joinPlayer(t, hub, player, types.HandshakeCommand{Name: "Alice"})
	created, ok := recvMasterEvent(t, c).(*types.GameCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, resp.GameID, created.GameID)
	assert.Equal(t, 1, created.Game.Players)

	// dropping back below the threshold retracts it
	hub.Disconnect(playerID)
	deleted, ok := recvMasterEvent(t, c).(*types.GameDeletedPayload)
	require.True(t, ok)
	assert.Equal(t, resp.GameID, deleted.GameID)
}
