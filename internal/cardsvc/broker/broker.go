package broker

import (
	"encoding/json"
	"sync"

	"github.com/abenezer/gymcard-services/internal/comm"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// subscriberBuffer bounds how many undelivered frames a slow viewer may
// hold before it starts losing frames. Writers never block on it.
const subscriberBuffer = 32

// Subscriber is a live handle on the gym_cards group. Frames arrive on C
// already encoded, in publish order. C is closed by Unsubscribe.
type Subscriber struct {
	ID string

	ch      chan []byte
	dropped int
}

func (s *Subscriber) C() <-chan []byte {
	return s.ch
}

// Hub fans every published lifecycle event out to all current subscribers.
// It is constructed once at startup and passed by reference to every writer
// and every connection handler.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new group member. The handle receives every event
// published after this call; nothing published earlier is replayed.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ID: uuid.New().String(),
		ch: make(chan []byte, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	log.Infof("subscriber %s joined gym_cards group", s.ID)
	return s
}

// Unsubscribe removes s from the group and closes its channel. Safe to call
// more than once and after the underlying connection is already gone.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.subs[s]
	if ok {
		delete(h.subs, s)
		close(s.ch)
	}
	h.mu.Unlock()

	if ok {
		log.Infof("subscriber %s left gym_cards group", s.ID)
	}
}

// Publish encodes ev once and hands the frame to every subscriber in a
// single critical section, so all group members observe the same event
// order. A subscriber with a full buffer loses the frame alone; the writer
// is never blocked and other subscribers are unaffected.
func (h *Hub) Publish(ev comm.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("failed to encode %s event, dropping: %v", ev.Type, err)
		return
	}

	h.Broadcast(frame)
}

// Broadcast delivers one pre-encoded frame to the whole group. Client
// control messages are re-broadcast through here untouched.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	for s := range h.subs {
		select {
		case s.ch <- frame:
		default:
			s.dropped++
			log.Warnf("subscriber %s too slow, dropped frame (%d total)", s.ID, s.dropped)
		}
	}
	h.mu.Unlock()
}

// Len reports the current group size.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
