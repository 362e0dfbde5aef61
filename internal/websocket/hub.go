// Package websocket delivers live notification pushes to connected users.
//
// Each frame is one JSON-encoded event with no envelope. The Hub maps a user
// id to zero or more subscriptions. Publishing never blocks: each
// subscription owns a bounded buffer and frames that do not fit are dropped.
// Persisted notifications remain the source of truth.
package websocket

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription is one live connection's inbound queue.
type Subscription struct {
	UserID primitive.ObjectID
	send   chan []byte
	once   sync.Once
}

// C returns the channel of encoded messages. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan []byte {
	return s.send
}

type Hub struct {
	mu         sync.RWMutex
	clients    map[primitive.ObjectID]map[*Subscription]struct{}
	bufferSize int
	closed     bool
	log        *logrus.Entry
}

func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{
		clients:    make(map[primitive.ObjectID]map[*Subscription]struct{}),
		bufferSize: bufferSize,
		log:        logrus.WithField("component", "ws_hub"),
	}
}

// Subscribe registers a new subscription for userID.
func (h *Hub) Subscribe(userID primitive.ObjectID) *Subscription {
	sub := &Subscription{
		UserID: userID,
		send:   make(chan []byte, h.bufferSize),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(sub.send) })
		return sub
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Subscription]struct{})
	}
	h.clients[userID][sub] = struct{}{}

	h.log.WithField("user_id", userID.Hex()).Debug("Subscriber registered")
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.clients[sub.UserID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.clients, sub.UserID)
		}
	}
	sub.once.Do(func() { close(sub.send) })

	h.log.WithField("user_id", sub.UserID.Hex()).Debug("Subscriber unregistered")
}

// Publish encodes event as JSON and offers the frame to every subscription
// of userID. It returns the number of subscriptions that accepted it; zero
// when the user is offline or every buffer is full.
func (h *Hub) Publish(userID primitive.ObjectID, event interface{}) int {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode push message")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.clients[userID] {
		select {
		case sub.send <- payload:
			delivered++
		default:
			h.log.WithField("user_id", userID.Hex()).Warn("Subscriber buffer full, dropping push")
		}
	}
	return delivered
}

func (h *Hub) ConnectionsCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.clients {
		count += len(subs)
	}
	return count
}

func (h *Hub) OnlineUsersCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Closed reports whether Shutdown has been called.
func (h *Hub) Closed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// Shutdown closes every subscription; later Subscribe calls get a closed channel.
// Connected clients see a going-away close frame.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, subs := range h.clients {
		for sub := range subs {
			sub.once.Do(func() { close(sub.send) })
		}
		delete(h.clients, userID)
	}
	h.closed = true
}
