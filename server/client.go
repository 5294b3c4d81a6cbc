package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/222caleb/stinkyman-game/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer = 16
)

// client is one websocket connection. Which room and seat it holds is
// established by the first createRoom/joinRoom/reconnect command.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan protocol.Envelope

	mu         sync.Mutex
	roomCode   string
	playerID   string
	playerName string
	spectator  bool

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:  hub,
		conn: conn,
		send: make(chan protocol.Envelope, sendBuffer),
	}
}

// seat returns the client's room membership as one consistent read
func (c *client) seat() (roomCode, playerID, playerName string, spectator bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode, c.playerID, c.playerName, c.spectator
}

func (c *client) setSeat(roomCode, playerID, playerName string, spectator bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.playerID = playerID
	c.playerName = playerName
	c.spectator = spectator
}

// enqueue drops the message if the client's buffer is full rather
// than blocking the hub
func (c *client) enqueue(env protocol.Envelope) {
	select {
	case c.send <- env:
	default:
		c.hub.logger.WithField("room", c.roomCode).Warn("dropping message to slow client")
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
		c.close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.hub.dispatch(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
