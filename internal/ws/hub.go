package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub is the live-connection registry: at most one channel per identity.
// The mutex serializes map access between the lifecycle loop, the
// readPump dispatch goroutines and HTTP-side pushes.
type Hub struct {
	mu sync.RWMutex

	// All open connections, bound to an identity or not.
	clients map[*Client]bool

	// Identity name -> current live channel.
	byName map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	handlers map[string]func(*Client, inboundFrame)
}

func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		byName:     make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
	h.handlers = map[string]func(*Client, inboundFrame){
		TypeRegister:        h.handleRegister,
		TypeRequestAccepted: h.handleRequestAccepted,
	}
	return h
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Remove only this client's binding. A binding already
				// replaced by a reconnect must survive the stale close.
				if client.name != "" && h.byName[client.name] == client {
					delete(h.byName, client.name)
				}
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// dispatch routes an inbound channel frame to its handler by type tag.
func (h *Hub) dispatch(client *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("Invalid channel frame: %v", err)
		return
	}

	handler, ok := h.handlers[frame.Type]
	if !ok {
		log.Printf("Unknown channel frame type %q", frame.Type)
		return
	}
	handler(client, frame)
}

// handleRegister binds an identity to this channel, silently replacing
// any prior binding for the same name.
func (h *Hub) handleRegister(client *Client, frame inboundFrame) {
	if frame.Name == "" {
		return
	}
	h.mu.Lock()
	client.name = frame.Name
	h.byName[frame.Name] = client
	h.mu.Unlock()
}

// handleRequestAccepted relays the accepting user's public key back to
// the original requester. The requester's channel is looked up freshly
// by name so a reconnect under the same identity still gets the key.
func (h *Hub) handleRequestAccepted(client *Client, frame inboundFrame) {
	h.SendToUser(frame.Requester, RequestAccepted{
		Type:      TypeRequestAccepted,
		Friend:    frame.Username,
		PublicKey: frame.PublicKey,
	})
}

// SendToUser pushes a payload to the named identity's live channel, if
// any. Best-effort: a missing binding or a full send buffer drops the
// payload and reports false.
func (h *Hub) SendToUser(name string, payload interface{}) bool {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling push payload: %v", err)
		return false
	}

	// The lock must be held across the send: the Run loop closes
	// client.send under the write lock, so releasing after the lookup
	// would let a concurrent disconnect close the channel mid-push.
	// trySend never blocks, so holding the read lock here is safe.
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.byName[name]
	if !ok {
		return false
	}
	return client.trySend(msg)
}

// Broadcast pushes a payload to every open channel, bound or not.
func (h *Hub) Broadcast(payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling broadcast payload: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.trySend(msg)
	}
}

// IsOnline reports whether the named identity has a live channel.
func (h *Hub) IsOnline(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byName[name]
	return ok
}
