package ws

import (
	"log"
	"sync"
)

// Hub is the room registry: it maps conversation ids to the connections
// subscribed to them and each connection to its joined rooms. Rooms are
// runtime-only; membership here is independent of the durable participant
// set, which is enforced by the messaging service on send/read.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	clients map[*Client]map[string]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		clients: make(map[*Client]map[string]bool),
	}
}

// Register adds a connection with no room memberships.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = make(map[string]bool)
}

// Unregister removes the connection from every room and discards it. Safe
// to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	rooms, ok := h.clients[client]
	if ok {
		for room := range rooms {
			h.removeFromRoom(room, client)
		}
		delete(h.clients, client)
	}
	h.mu.Unlock()

	if ok {
		client.close()
	}
}

// Join subscribes the connection to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.clients[client]
	if !ok {
		return
	}
	rooms[room] = true
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

// Leave removes the connection from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rooms, ok := h.clients[client]; ok {
		delete(rooms, room)
	}
	h.removeFromRoom(room, client)
}

func (h *Hub) removeFromRoom(room string, client *Client) {
	if conns, ok := h.rooms[room]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast sends the payload to every connection in the room, including
// the sender when it has joined.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.deliver(room, nil, payload)
}

// BroadcastExcept sends the payload to everyone in the room but the given
// connection.
func (h *Hub) BroadcastExcept(room string, except *Client, payload []byte) {
	h.deliver(room, except, payload)
}

func (h *Hub) deliver(room string, except *Client, payload []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		if client != except {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(payload) {
			log.Printf("websocket send buffer full, dropping connection conn=%s user=%s", client.ID, client.UserID)
			h.Unregister(client)
		}
	}
}

// RoomSize reports how many connections are subscribed to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// RoomsOf lists the rooms a connection has joined.
func (h *Hub) RoomsOf(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(h.clients[client]))
	for room := range h.clients[client] {
		rooms = append(rooms, room)
	}
	return rooms
}
