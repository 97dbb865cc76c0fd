package realtime

import (
	"errors"
	"slices"
	"sync"

	"workshop/pkg/claims"
)

var (
	ErrReservedRoom   = errors.New("user id collides with a shared room name")
	ErrRegistryClosed = errors.New("registry closed")
)

// Peer is the delivery side of a live connection.
type Peer interface {
	// Send enqueues msg without blocking and reports whether it was accepted.
	Send(msg []byte) bool
	Close()
}

type member struct {
	identity claims.Identity
	peer     Peer
	rooms    []string
}

// Registry is the in-process table of authenticated connections and their
// room memberships. All mutations hold the write lock; readers get copies.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*member
	rooms  map[string]map[string]struct{}
	closed bool
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*member),
		rooms: make(map[string]map[string]struct{}),
	}
}

func roomsFor(id claims.Identity) []string {
	rooms := []string{id.UserID}
	if id.Role.Elevated() {
		rooms = append(rooms, RoomManagers)
	}
	return rooms
}

// Register puts connID into the personal room of id.UserID and, for elevated
// roles, into RoomManagers. Registering an id that is already present is a no-op.
func (r *Registry) Register(connID string, id claims.Identity, peer Peer) error {
	if id.UserID == RoomManagers {
		return ErrReservedRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, ok := r.conns[connID]; ok {
		return nil
	}

	m := &member{identity: id, peer: peer, rooms: roomsFor(id)}
	r.conns[connID] = m
	for _, room := range m.rooms {
		set, ok := r.rooms[room]
		if !ok {
			set = make(map[string]struct{})
			r.rooms[room] = set
		}
		set[connID] = struct{}{}
	}
	return nil
}

func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.conns[connID]
	if !ok {
		return
	}
	for _, room := range m.rooms {
		set := r.rooms[room]
		delete(set, connID)
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.conns, connID)
}

// MembersOf returns the sorted connection ids in room; unknown rooms are empty.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.conns[connID]
	if !ok {
		return nil
	}
	return slices.Clone(m.rooms)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) peersIn(room string) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		peers = append(peers, r.conns[id].peer)
	}
	return peers
}

func (r *Registry) allPeers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.conns))
	for _, m := range r.conns {
		peers = append(peers, m.peer)
	}
	return peers
}

// CloseAll refuses further registrations and closes every live peer. Peers
// unregister themselves as they close.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	for _, p := range r.allPeers() {
		p.Close()
	}
}
