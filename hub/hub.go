package hub

import (
	"log/slog"
	"sync"

	"roomrelay/domain"
)

type roomKey struct {
	orgID  string
	roomID string
}

type record struct {
	conn    domain.Connection
	orgID   string
	roomIDs map[string]struct{}
}

// Hub is the connection registry. Records are keyed by connection ID and
// every subscription is mirrored in an (org, room) index so broadcast only
// touches actual subscribers.
type Hub struct {
	records map[string]*record
	rooms   map[roomKey]map[string]domain.Connection
	mu      sync.RWMutex
}

func New() *Hub {
	return &Hub{
		records: make(map[string]*record),
		rooms:   make(map[roomKey]map[string]domain.Connection),
	}
}

// Register creates an empty record for conn under orgID. An existing record
// for the same connection is replaced, dropping its subscriptions.
func (h *Hub) Register(conn domain.Connection, orgID string) {
	h.mu.Lock()
	if old, exists := h.records[conn.ID()]; exists {
		h.dropLocked(old)
	}
	h.records[conn.ID()] = &record{
		conn:    conn,
		orgID:   orgID,
		roomIDs: make(map[string]struct{}),
	}
	count := len(h.records)
	h.mu.Unlock()

	slog.Info("client registered", "clientId", conn.ID(), "orgId", orgID, "clients", count)
}

func (h *Hub) Unregister(conn domain.Connection) {
	h.mu.Lock()
	rec, exists := h.records[conn.ID()]
	if !exists {
		h.mu.Unlock()
		return
	}
	h.dropLocked(rec)
	delete(h.records, conn.ID())
	count := len(h.records)
	h.mu.Unlock()

	slog.Info("client unregistered", "clientId", conn.ID(), "orgId", rec.orgID, "clients", count)
}

func (h *Hub) dropLocked(rec *record) {
	id := rec.conn.ID()
	for roomID := range rec.roomIDs {
		h.removeFromRoomLocked(roomKey{orgID: rec.orgID, roomID: roomID}, id)
	}
}

func (h *Hub) removeFromRoomLocked(key roomKey, connID string) {
	members, exists := h.rooms[key]
	if !exists {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, key)
	}
}

// Subscribe adds roomID to the connection's set. It reports false, and
// changes nothing, when the connection was never registered.
func (h *Hub) Subscribe(conn domain.Connection, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, exists := h.records[conn.ID()]
	if !exists {
		return false
	}
	rec.roomIDs[roomID] = struct{}{}

	key := roomKey{orgID: rec.orgID, roomID: roomID}
	members, ok := h.rooms[key]
	if !ok {
		members = make(map[string]domain.Connection)
		h.rooms[key] = members
	}
	members[conn.ID()] = rec.conn
	return true
}

func (h *Hub) Unsubscribe(conn domain.Connection, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, exists := h.records[conn.ID()]
	if !exists {
		return
	}
	if _, subscribed := rec.roomIDs[roomID]; !subscribed {
		return
	}
	delete(rec.roomIDs, roomID)
	h.removeFromRoomLocked(roomKey{orgID: rec.orgID, roomID: roomID}, conn.ID())
}

func (h *Hub) Count(orgID, roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey{orgID: orgID, roomID: roomID}])
}

// Broadcast sends data to every connection subscribed to roomID within
// orgID. The read lock is held across the sends, so a connection removed by
// Unregister is never written to afterwards. Send does not block; a
// connection that cannot accept the data is skipped.
func (h *Hub) Broadcast(orgID, roomID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, conn := range h.rooms[roomKey{orgID: orgID, roomID: roomID}] {
		if err := conn.Send(data); err != nil {
			slog.Debug("delivery skipped", "clientId", id, "orgId", orgID, "roomId", roomID, "error", err)
		}
	}
}

// Stats reports registered connections and total room subscriptions.
func (h *Hub) Stats() (connections, subscriptions int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	connections = len(h.records)
	for _, members := range h.rooms {
		subscriptions += len(members)
	}
	return connections, subscriptions
}
