package chat

import (
	"sync"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/metrics"
)

// GroupFanout resolves logical recipients to live connections. A group
// key is usually a bare user ID, which resolves through the registry so
// every open device of that user is included; conversation views join
// explicit groups on top of that.
type GroupFanout struct {
	registry  *presence.ConnectionRegistry
	transport Transport

	mu     sync.Mutex
	groups map[string]map[string]struct{} // group key -> set of connection IDs
}

func NewGroupFanout(registry *presence.ConnectionRegistry, transport Transport) *GroupFanout {
	return &GroupFanout{
		registry:  registry,
		transport: transport,
		groups:    make(map[string]map[string]struct{}),
	}
}

func (f *GroupFanout) Join(group, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.groups[group]
	if !ok {
		set = make(map[string]struct{})
		f.groups[group] = set
	}
	set[connID] = struct{}{}
}

func (f *GroupFanout) Leave(group, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if set, ok := f.groups[group]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(f.groups, group)
		}
	}
}

// LeaveAll removes the connection from every explicit group, used on
// disconnect so dead connection IDs do not linger in room sets.
func (f *GroupFanout) LeaveAll(connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for group, set := range f.groups {
		delete(set, connID)
		if len(set) == 0 {
			delete(f.groups, group)
		}
	}
}

// Resolve returns the live connections behind a group key: explicit
// members plus, when the key is a user ID, every connection of that
// user.
func (f *GroupFanout) Resolve(group string) []string {
	seen := make(map[string]struct{})

	f.mu.Lock()
	for connID := range f.groups[group] {
		seen[connID] = struct{}{}
	}
	f.mu.Unlock()

	for _, connID := range f.registry.ConnectionsFor(group) {
		seen[connID] = struct{}{}
	}

	conns := make([]string, 0, len(seen))
	for connID := range seen {
		conns = append(conns, connID)
	}
	return conns
}

// Broadcast sends the event to the union of all groups' connections,
// exactly once per connection. Groups that resolve to nothing are
// skipped silently; individual send failures are logged and do not
// abort the rest of the fan-out.
func (f *GroupFanout) Broadcast(groups []string, event string, payload interface{}) {
	seen := make(map[string]struct{})
	var targets []string
	for _, group := range groups {
		for _, connID := range f.Resolve(group) {
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			targets = append(targets, connID)
		}
	}

	f.send(targets, event, payload)
}

// BroadcastAll sends the event to every live connection.
func (f *GroupFanout) BroadcastAll(event string, payload interface{}) {
	f.send(f.registry.AllConnections(), event, payload)
}

func (f *GroupFanout) send(targets []string, event string, payload interface{}) {
	if len(targets) == 0 {
		return
	}
	metrics.BroadcastsTotal.WithLabelValues(event).Inc()

	for _, connID := range targets {
		if err := f.transport.Send(connID, event, payload); err != nil {
			metrics.SendFailuresTotal.Inc()
			logger.Debug("Send of %s to connection %s failed: %v", event, connID, err)
		}
	}
}
