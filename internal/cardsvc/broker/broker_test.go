package broker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abenezer/gymcard-services/internal/comm"
)

func receiveFrame(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case frame, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func eventType(t *testing.T, frame []byte) (string, map[string]any) {
	t.Helper()
	var ev struct {
		Type string         `json:"type"`
		Card map[string]any `json:"card"`
	}
	require.NoError(t, json.Unmarshal(frame, &ev))
	return ev.Type, ev.Card
}

func TestPublishOrderingAcrossSubscribers(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	const n = 10
	for i := 0; i < n; i++ {
		hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: int64(i)}})
	}

	for _, sub := range []*Subscriber{a, b} {
		for i := 0; i < n; i++ {
			_, card := eventType(t, receiveFrame(t, sub))
			assert.Equal(t, float64(i), card["id"], "subscriber %s out of order", sub.ID)
		}
	}
}

func TestNoReplayBeforeSubscribe(t *testing.T) {
	hub := NewHub()

	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 1}})
	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 2}})

	sub := hub.Subscribe()
	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 3}})

	_, card := eventType(t, receiveFrame(t, sub))
	assert.Equal(t, float64(3), card["id"], "history must not be replayed")
	assert.Empty(t, sub.C())
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()
	require.Equal(t, 1, hub.Len())

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
	assert.Equal(t, 0, hub.Len())

	_, ok := <-sub.C()
	assert.False(t, ok, "channel should be closed")

	// Publishing after removal must not panic or deliver.
	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 1}})
}

func TestDeadSubscriberDoesNotAffectOthers(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 1}})
	hub.Unsubscribe(b)
	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 2}})

	_, card := eventType(t, receiveFrame(t, a))
	assert.Equal(t, float64(1), card["id"])
	_, card = eventType(t, receiveFrame(t, a))
	assert.Equal(t, float64(2), card["id"])
}

func TestSlowSubscriberNeverBlocksWriter(t *testing.T) {
	hub := NewHub()
	slow := hub.Subscribe()

	// Nobody drains slow; publishing past its buffer must not block and
	// must only cost the overflowing frames.
	total := subscriberBuffer + 5
	finished := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: int64(i)}})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The slow subscriber kept the oldest frames it had room for, in order.
	assert.Len(t, slow.ch, subscriberBuffer)
	_, card := eventType(t, receiveFrame(t, slow))
	assert.Equal(t, float64(0), card["id"])
}

func TestEncodeFailureDropsSingleEvent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()

	// Channels are not JSON-encodable.
	hub.Publish(comm.Event{Type: comm.EventCardUpdate, Card: make(chan int)})
	hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: 7}})

	typ, card := eventType(t, receiveFrame(t, sub))
	assert.Equal(t, comm.EventDelete, typ)
	assert.Equal(t, float64(7), card["id"])
}

func TestBroadcastRawFrame(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	b := hub.Subscribe()

	raw := []byte(`{"type":"refresh"}`)
	hub.Broadcast(raw)

	assert.Equal(t, raw, receiveFrame(t, a))
	assert.Equal(t, raw, receiveFrame(t, b))
}

func TestConcurrentSubscribePublish(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s := hub.Subscribe()
			hub.Unsubscribe(s)
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		hub.Publish(comm.Event{Type: comm.EventDelete, Card: comm.IDPayload{ID: int64(i)}})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("connect/disconnect churn deadlocked with %d subscribers", hub.Len())
	}
}
