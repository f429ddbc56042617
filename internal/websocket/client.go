package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client bridges one websocket connection to one session's broadcaster.
type Client struct {
	Conn      *websocket.Conn
	SessionID uuid.UUID

	// Buffered channel of outbound messages.
	Send chan []byte

	// Closed when writePump exits, so relay never blocks on a dead queue.
	writerDone chan struct{}

	cancel func() // unsubscribes from the broadcaster
	logger logger.ILogger
}

// relay marshals broadcast events into the send queue. It exits when the
// subscription channel closes (client unsubscribed or session deleted) or
// when the writer is gone.
func (c *Client) relay(events <-chan broadcast.Event) {
	defer close(c.Send)
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			c.logger.Warn("Websocket", "Failed to marshal event", map[string]interface{}{
				"session_id": c.SessionID,
				"error":      err.Error(),
			})
			continue
		}
		select {
		case c.Send <- data:
		case <-c.writerDone:
			return
		}
	}
}

// readPump drains the connection so ping/pong keepalive works; inbound
// frames carry no commands. It blocks until the peer disconnects.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("Websocket", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			break
		}
	}
}

// writePump pumps queued messages onto the connection and keeps the peer
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		close(c.writerDone)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Subscription ended; say goodbye.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush any queued events into the same frame.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
