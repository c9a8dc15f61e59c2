package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"jobpilot/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToEventOwnerOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	alice, bob := uuid.New(), uuid.New()
	ca := &Client{hub: hub, send: make(chan []byte, 4), userID: alice}
	cb := &Client{hub: hub, send: make(chan []byte, 4), userID: bob}
	hub.Register(ca)
	hub.Register(cb)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Notify(ctx, notify.NewEvent(notify.OpportunityFound, alice, map[string]any{"title": "React Dev"})))

	select {
	case raw := <-ca.send:
		var e notify.Event
		require.NoError(t, json.Unmarshal(raw, &e))
		assert.Equal(t, notify.OpportunityFound, e.Type)
		assert.Equal(t, "React Dev", e.Data["title"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	select {
	case <-cb.send:
		t.Fatal("event leaked to another user")
	case <-time.After(50 * time.Millisecond):
	}

	hub.Unregister(ca)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() { hub.Run(ctx); close(done) }()

	c := &Client{hub: hub, send: make(chan []byte, 1), userID: uuid.New()}
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	_, open := <-c.send
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount())
}

func TestNilHubIsSafe(t *testing.T) {
	var h *Hub
	assert.NoError(t, h.Notify(context.Background(), notify.Event{}))
	assert.Zero(t, h.ClientCount())
}
