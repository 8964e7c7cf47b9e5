package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/pkg/logger"
	"github.com/Fozu7916/AlekseyBook-sub000/pkg/metrics"
)

type TransitionKind int

const (
	WentOnline TransitionKind = iota
	WentOffline
)

// Transition is emitted only when a user crosses the 0<->1 connection
// boundary. Additional connections for an already-online user are silent.
// For WentOffline, Connections lists the connection IDs that were torn
// down so downstream layers can drop their own references to them.
type Transition struct {
	UserID      string
	Kind        TransitionKind
	LastSeen    time.Time
	Connections []string
}

// TransitionHandler receives online/offline transitions. Handlers run
// outside the tracker's lock; an error is logged and does not stop the
// caller.
type TransitionHandler func(t Transition) error

// PresenceTracker derives online/offline transitions from registry
// mutations and evicts connections whose owners have gone quiet without
// a clean close.
//
// All mutations (connect, disconnect, sweep) are serialized by one
// mutex, so a reconnect racing the sweep can never be evicted on stale
// data.
type PresenceTracker struct {
	registry *ConnectionRegistry

	mu       sync.Mutex
	activity map[string]time.Time // userID -> last activity, keys only for online users

	now       func() time.Time
	interval  time.Duration
	threshold time.Duration
	handler   TransitionHandler

	started  atomic.Bool
	sweeping atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewPresenceTracker(registry *ConnectionRegistry, interval, threshold time.Duration) *PresenceTracker {
	return &PresenceTracker{
		registry:  registry,
		activity:  make(map[string]time.Time),
		now:       time.Now,
		interval:  interval,
		threshold: threshold,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetClock overrides the time source, for tests.
func (t *PresenceTracker) SetClock(now func() time.Time) {
	t.now = now
}

// OnTransition registers the handler invoked for sweep-driven
// transitions and available to callers of OnConnect/OnDisconnect.
func (t *PresenceTracker) OnTransition(h TransitionHandler) {
	t.handler = h
}

// OnConnect records a new connection and returns a WentOnline
// transition if it is the user's first.
func (t *PresenceTracker) OnConnect(userID, connID string) (*Transition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	first, err := t.registry.Add(userID, connID)
	if err != nil {
		return nil, err
	}

	t.activity[userID] = t.now()
	if !first {
		return nil, nil
	}
	return &Transition{UserID: userID, Kind: WentOnline, LastSeen: t.now()}, nil
}

// OnDisconnect removes a connection and returns a WentOffline
// transition carrying the last-seen timestamp if it was the user's
// last. Unknown pairs are a no-op.
func (t *PresenceTracker) OnDisconnect(userID, connID string) *Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last := t.registry.Remove(userID, connID); !last {
		return nil
	}

	delete(t.activity, userID)
	return &Transition{UserID: userID, Kind: WentOffline, LastSeen: t.now(), Connections: []string{connID}}
}

// Touch refreshes the user's activity timestamp. Ignored for users with
// no open connection, so the activity map never outgrows the registry.
func (t *PresenceTracker) Touch(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.registry.IsOnline(userID) {
		return
	}
	t.activity[userID] = t.now()
}

// SweepInactive force-disconnects every user whose last activity is
// older than threshold, compensating for transports that die without a
// close event. It returns the resulting WentOffline transitions.
func (t *PresenceTracker) SweepInactive(threshold time.Duration) []Transition {
	t.mu.Lock()

	now := t.now()
	var evicted []Transition
	for userID, lastSeen := range t.activity {
		if now.Sub(lastSeen) <= threshold {
			continue
		}
		connIDs := t.registry.ConnectionsFor(userID)
		for _, connID := range connIDs {
			t.registry.Remove(userID, connID)
		}
		delete(t.activity, userID)
		evicted = append(evicted, Transition{UserID: userID, Kind: WentOffline, LastSeen: lastSeen, Connections: connIDs})
		metrics.SweepEvictionsTotal.Inc()
	}
	t.mu.Unlock()

	return evicted
}

// Start launches the periodic sweep. Repeated calls are a no-op.
func (t *PresenceTracker) Start(ctx context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for it to exit. Safe to call
// from multiple goroutines.
func (t *PresenceTracker) Stop() {
	if !t.started.Load() {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// Sweep runs one eviction pass and feeds the resulting transitions to
// the registered handler, unless the previous pass is still going, so a
// slow handler cannot pile up overlapping sweeps.
func (t *PresenceTracker) Sweep() {
	if !t.sweeping.CompareAndSwap(false, true) {
		logger.Debug("Skipping sweep tick, previous sweep still running")
		return
	}
	defer t.sweeping.Store(false)

	evicted := t.SweepInactive(t.threshold)
	for _, tr := range evicted {
		logger.Info("Evicted inactive user %s (last seen %s)", tr.UserID, tr.LastSeen.Format(time.RFC3339))
		if t.handler == nil {
			continue
		}
		if err := t.handler(tr); err != nil {
			logger.Error("Presence transition handler failed for user %s: %v", tr.UserID, err)
		}
	}
}
