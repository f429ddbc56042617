package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yesahmedyes/lecture-assistant/internal/pkg/logger"
	"github.com/yesahmedyes/lecture-assistant/pkg/broadcast"
)

func newRelayClient(sendCap int) *Client {
	return &Client{
		SessionID:  uuid.New(),
		Send:       make(chan []byte, sendCap),
		writerDone: make(chan struct{}),
		cancel:     func() {},
		logger:     logger.NewNopLogger(),
	}
}

func TestRelayForwardsEventsUntilSubscriptionCloses(t *testing.T) {
	client := newRelayClient(4)
	events := make(chan broadcast.Event, 2)
	events <- broadcast.Event{Type: broadcast.EventStageStarted, Stage: "input"}
	events <- broadcast.Event{Type: broadcast.EventSessionCompleted}
	close(events)

	client.relay(events)

	got := make([]string, 0, 2)
	for data := range client.Send {
		got = append(got, string(data))
	}
	require.Len(t, got, 2)
	assert.Contains(t, got[0], string(broadcast.EventStageStarted))
	assert.Contains(t, got[1], string(broadcast.EventSessionCompleted))
}

func TestRelayExitsWhenWriterIsGoneAndQueueIsFull(t *testing.T) {
	client := newRelayClient(1)
	client.Send <- []byte("queued")

	b := broadcast.New()
	events, cancel := b.Subscribe()
	defer cancel()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		client.relay(events)
		close(done)
	}()

	// Queue is full and nothing drains it; relay must not wedge once the
	// writer has gone away.
	b.Publish(broadcast.Event{Type: broadcast.EventStageStarted, Stage: "input"})
	close(client.writerDone)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not exit after the writer stopped")
	}
}
