package app

import (
	"encoding/json"
	"sync"

	"secure_chat_service/internal/chat/domain"
	"secure_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// Peer one authenticated realtime connection
type Peer interface {
	ID() string
	Session() domain.Session
	// Write must be safe for concurrent use
	Write(frame []byte) error
}

// Registry room membership and fan-out used by the use cases
type Registry interface {
	Broadcast(roomID string, action domain.Action, data interface{}) int
	BroadcastExcept(roomID, exceptConnID string, action domain.Action, data interface{}) int
	RoomsOf(connID string) []string
	CloseRoom(roomID string)
}

// Hub 連線與房間對照表, 只存在記憶體
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]Peer
	rooms  map[string]map[string]Peer
	joined map[string]map[string]struct{}
}

// NewHub create an empty Hub
func NewHub() *Hub {
	return &Hub{
		peers:  make(map[string]Peer),
		rooms:  make(map[string]map[string]Peer),
		joined: make(map[string]map[string]struct{}),
	}
}

// Register add a connection without any room
func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.ID()] = p
	if _, ok := h.joined[p.ID()]; !ok {
		h.joined[p.ID()] = make(map[string]struct{})
	}
}

// Join add connID to roomID, false if the connection is unknown
func (h *Hub) Join(connID, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.peers[connID]
	if !ok {
		return false
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]Peer)
		h.rooms[roomID] = members
	}
	members[connID] = p
	h.joined[connID][roomID] = struct{}{}
	return true
}

// Leave remove connID from roomID, leaving a room never joined is a no-op
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(connID, roomID)
}

func (h *Hub) leaveLocked(connID, roomID string) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if rooms, ok := h.joined[connID]; ok {
		delete(rooms, roomID)
	}
}

// RoomsOf rooms currently joined by connID
func (h *Hub) RoomsOf(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(h.joined[connID]))
	for r := range h.joined[connID] {
		rooms = append(rooms, r)
	}
	return rooms
}

// Unregister drop the connection from every room and return those rooms
func (h *Hub) Unregister(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := make([]string, 0, len(h.joined[connID]))
	for r := range h.joined[connID] {
		rooms = append(rooms, r)
		h.leaveLocked(connID, r)
	}
	delete(h.joined, connID)
	delete(h.peers, connID)
	return rooms
}

// CloseRoom remove every member of roomID
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.rooms[roomID] {
		if rooms, ok := h.joined[connID]; ok {
			delete(rooms, roomID)
		}
	}
	delete(h.rooms, roomID)
}

// HubStats connection / room counters for the health endpoint
type HubStats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Stats snapshot of the registry size
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{Connections: len(h.peers), Rooms: len(h.rooms)}
}

// MemberCount number of connections joined to roomID
func (h *Hub) MemberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast deliver an event to every connection in roomID, sender included
func (h *Hub) Broadcast(roomID string, action domain.Action, data interface{}) int {
	return h.BroadcastExcept(roomID, "", action, data)
}

// BroadcastExcept deliver an event to every connection in roomID but exceptConnID
func (h *Hub) BroadcastExcept(roomID, exceptConnID string, action domain.Action, data interface{}) int {
	frame, err := json.Marshal(domain.WSResponse{Action: action, Data: data})
	if err != nil {
		logger.Log.Error("broadcast marshal", zap.String("roomID", roomID), zap.Error(err))
		return 0
	}

	// 先取 snapshot 再送, 避免持鎖寫 socket
	targets := h.snapshot(roomID, exceptConnID)

	sent := 0
	for _, p := range targets {
		if err := p.Write(frame); err != nil {
			logger.Log.Warn("broadcast write failed",
				zap.String("roomID", roomID),
				zap.String("connID", p.ID()),
				zap.String("action", string(action)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func (h *Hub) snapshot(roomID, exceptConnID string) []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	out := make([]Peer, 0, len(members))
	for id, p := range members {
		if id == exceptConnID {
			continue
		}
		out = append(out, p)
	}
	return out
}
