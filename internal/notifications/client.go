package notifications

import (
	"log/slog"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Inbound frames are only control traffic.
	maxMessageSize = 512

	// Events queued per client before new ones are dropped.
	sendBuffer = 64
)

// Client is one subscribed websocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	filter Filter
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint, filter Filter) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		filter: filter,
		send:   make(chan []byte, sendBuffer),
	}
}

// Serve streams events to the peer until either side closes, then
// unregisters the client. It blocks for the life of the connection.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) logAttrs() slog.Attr {
	return slog.Uint64("user_id", uint64(c.userID))
}

func (c *Client) extendRead() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// readLoop only exists to service pongs and notice disconnects.
func (c *Client) readLoop() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.extendRead()
	c.conn.SetPongHandler(func(string) error {
		c.extendRead()
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			middleware.Logger.Debug("websocket read failed", c.logAttrs(), slog.String("error", err.Error()))
		}
		return
	}
}

func (c *Client) write(kind int, payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, payload)
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, msg)
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// offer queues msg without blocking. A full or closed buffer drops it.
func (c *Client) offer(msg []byte) {
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		}
	}()

	select {
	case c.send <- msg:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		middleware.Logger.Debug("client buffer full, dropped event", c.logAttrs())
	}
}
