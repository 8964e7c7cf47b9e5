package presence

import (
	"errors"
	"sync"

	"github.com/Fozu7916/AlekseyBook-sub000/pkg/metrics"
)

var (
	ErrTooManyConnections = errors.New("connection limit reached for user")
	ErrConnectionClaimed  = errors.New("connection already registered to another user")
)

// ConnectionRegistry tracks which physical connections belong to which
// user. A user with several open tabs or devices has several entries in
// their set; the user counts as online while the set is non-empty.
type ConnectionRegistry struct {
	mu          sync.Mutex
	connections map[string]map[string]struct{} // userID -> set of connection IDs
	owners      map[string]string              // connection ID -> userID
	maxPerUser  int
}

// NewConnectionRegistry creates an empty registry. maxPerUser 0 means
// no per-user connection limit.
func NewConnectionRegistry(maxPerUser int) *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]map[string]struct{}),
		owners:      make(map[string]string),
		maxPerUser:  maxPerUser,
	}
}

// Add registers connID under userID and reports whether it was the
// user's first connection. Adding the same pair twice is a no-op; a
// connection ID already owned by a different user is rejected so every
// connection has exactly one owner.
func (r *ConnectionRegistry) Add(userID, connID string) (first bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, claimed := r.owners[connID]; claimed {
		if owner == userID {
			return false, nil
		}
		return false, ErrConnectionClaimed
	}

	set, exists := r.connections[userID]
	if !exists {
		set = make(map[string]struct{})
		r.connections[userID] = set
		metrics.OnlineUsers.Inc()
	}
	if r.maxPerUser > 0 && len(set) >= r.maxPerUser {
		if !exists {
			delete(r.connections, userID)
			metrics.OnlineUsers.Dec()
		}
		return false, ErrTooManyConnections
	}

	set[connID] = struct{}{}
	r.owners[connID] = userID
	metrics.ActiveConnections.Inc()
	return !exists, nil
}

// Remove unregisters connID from userID and reports whether it was the
// user's last connection. Unknown users or connections are a no-op.
func (r *ConnectionRegistry) Remove(userID, connID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(userID, connID)
}

func (r *ConnectionRegistry) removeLocked(userID, connID string) (last bool) {
	set, exists := r.connections[userID]
	if !exists {
		return false
	}
	if _, ok := set[connID]; !ok {
		return false
	}

	delete(set, connID)
	delete(r.owners, connID)
	metrics.ActiveConnections.Dec()

	if len(set) == 0 {
		delete(r.connections, userID)
		metrics.OnlineUsers.Dec()
		return true
	}
	return false
}

// ConnectionsFor returns a snapshot copy of the user's connection IDs.
func (r *ConnectionRegistry) ConnectionsFor(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.connections[userID]
	if !exists {
		return nil
	}

	conns := make([]string, 0, len(set))
	for connID := range set {
		conns = append(conns, connID)
	}
	return conns
}

// AllConnections returns a snapshot of every live connection ID.
func (r *ConnectionRegistry) AllConnections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]string, 0, len(r.owners))
	for connID := range r.owners {
		conns = append(conns, connID)
	}
	return conns
}

// OnlineUsers returns a snapshot of every user with at least one
// connection.
func (r *ConnectionRegistry) OnlineUsers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := make([]string, 0, len(r.connections))
	for userID := range r.connections {
		users = append(users, userID)
	}
	return users
}

func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections[userID]) > 0
}

// OwnerOf resolves the user owning a connection.
func (r *ConnectionRegistry) OwnerOf(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.owners[connID]
	return userID, ok
}

func (r *ConnectionRegistry) ConnectionCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections[userID])
}
