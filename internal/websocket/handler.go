package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
)

// ServeWs attaches a websocket connection to a session's event stream.
// The subscriber sees only events published after this point; there is no
// backlog replay.
func ServeWs(conn *websocket.Conn, sessionID uuid.UUID, b *broadcast.Broadcaster, log logger.ILogger) {
	events, cancel := b.Subscribe()
	client := &Client{
		Conn:       conn,
		SessionID:  sessionID,
		Send:       make(chan []byte, 256),
		writerDone: make(chan struct{}),
		cancel:     cancel,
		logger:     log,
	}

	hello, _ := json.Marshal(broadcast.Event{
		Type:      broadcast.EventConnected,
		SessionID: sessionID.String(),
		Timestamp: time.Now(),
	})
	client.Send <- hello

	go client.relay(events)
	go client.writePump()
	client.readPump()
}
