package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rwe-net/lobby-server/globals"
	"github.com/rwe-net/lobby-server/types"
)

const (
	maxMessageSize  = 4096
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	handshakeWait   = 30 * time.Second
	sendChannelSize = 256
)

// Client is a middleman between one websocket connection and a hub (either a
// room hub or the master hub).
type Client struct {
	// connection id, only used for logging
	ID string

	conn *websocket.Conn

	// Buffered channel of outbound messages. The channel is never closed;
	// once both loops have exited it is left to the garbage collector, which
	// avoids any locking around late writers.
	Send chan []byte

	remoteAddr string

	doneChan chan struct{}

	// WaitGroup which keeps track of running read/write loops. If the
	// WaitGroup is done, both loops have exited and the connection is dead.
	sync.WaitGroup
}

func NewClient(conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		ID:         uuid.NewString(),
		conn:       conn,
		Send:       make(chan []byte, sendChannelSize),
		remoteAddr: remoteAddr,
		doneChan:   make(chan struct{}),
	}
}

// RemoteAddr is the transport-observed remote address, with any reverse-proxy
// forwarding already resolved.
func (c *Client) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// ReadOne reads and parses a single message, used for the handshake before
// the client is attached to a room.
func (c *Client) ReadOne(timeout time.Duration) (types.WebsocketMessage, error) {
	msg := types.WebsocketMessage{}
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return msg, err
	}
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return msg, err
	}
	err = json.Unmarshal(raw, &msg)
	return msg, err
}

// ReadLoop pumps messages from the websocket connection to the handler.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine. A handler error terminates the connection.
func (c *Client) ReadLoop(handle func(msg types.WebsocketMessage) error) {
	defer func() {
		c.conn.Close()
		close(c.doneChan)
		c.Done()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Info("ws closed unexpectedly", "conn", c.ID, "error", err)
			}
			return
		}
		msg := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			globals.AppLogger.Warn("could not unmarshal ws message", "conn", c.ID, "error", err)
			return
		}
		if err := handle(msg); err != nil {
			globals.AppLogger.Warn("closing connection", "conn", c.ID, "error", err)
			return
		}
	}
}

// WriteLoop pumps messages from the Send channel to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.Done()
	}()
	for {
		select {
		case message := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				globals.AppLogger.Info("could not send ping message, exiting write loop", "conn", c.ID)
				return
			}

		case <-c.doneChan:
			return
		}
	}
}

// trySend queues a message without blocking. A client whose buffer is full is
// not allowed to stall a hub loop; the message is dropped and the transport
// keep-alive will eventually reap the dead connection.
func (c *Client) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
		globals.AppLogger.Warn("send buffer full, dropping message", "conn", c.ID)
	}
}
