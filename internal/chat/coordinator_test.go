package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/models"
	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
)

// stubUserRepo records SetLastSeen calls; the coordinator needs nothing
// else from the user store.
type stubUserRepo struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	fail     bool
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{lastSeen: make(map[string]time.Time)}
}

func (s *stubUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserRepo) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUserRepo) SetLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.lastSeen[userID] = lastSeen
	return nil
}

func newTestCoordinator() (*SessionCoordinator, *presence.ConnectionRegistry, *recordingTransport, *stubUserRepo) {
	registry := presence.NewConnectionRegistry(0)
	tracker := presence.NewPresenceTracker(registry, 30*time.Second, 5*time.Minute)
	transport := newRecordingTransport()
	fanout := NewGroupFanout(registry, transport)
	users := newStubUserRepo()
	coordinator := NewSessionCoordinator(registry, tracker, fanout, users)
	return coordinator, registry, transport, users
}

func eventsOfType(transport *recordingTransport, event string) []sentEvent {
	transport.mu.Lock()
	defer transport.mu.Unlock()
	var out []sentEvent
	for _, s := range transport.sends {
		if s.Event == event {
			out = append(out, s)
		}
	}
	return out
}

func TestSessionCoordinator_Connect(t *testing.T) {
	t.Run("rejects missing identity without touching state", func(t *testing.T) {
		coordinator, registry, transport, _ := newTestCoordinator()

		err := coordinator.Connect(context.Background(), "", "conn-1")
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("err = %v, want ErrUnauthenticated", err)
		}
		if transport.count() != 0 {
			t.Error("no events should be sent for a rejected connection")
		}
		if len(registry.AllConnections()) != 0 {
			t.Error("registry must stay empty")
		}
	})

	t.Run("first device broadcasts went-online to everyone", func(t *testing.T) {
		coordinator, _, transport, _ := newTestCoordinator()

		if err := coordinator.Connect(context.Background(), "watcher", "w1"); err != nil {
			t.Fatalf("Connect error: %v", err)
		}
		transport.reset()

		if err := coordinator.Connect(context.Background(), "user-1", "c1"); err != nil {
			t.Fatalf("Connect error: %v", err)
		}

		events := eventsOfType(transport, models.EventPresenceChanged)
		if len(events) != 2 {
			t.Fatalf("presence events = %d, want 2 (watcher and new connection)", len(events))
		}
		payload := events[0].Payload.(models.PresenceChangedPayload)
		if payload.UserID != "user-1" || !payload.IsOnline {
			t.Errorf("payload = %+v, want user-1 online", payload)
		}
	})

	t.Run("second device is silent", func(t *testing.T) {
		coordinator, _, transport, _ := newTestCoordinator()

		coordinator.Connect(context.Background(), "user-1", "c1")
		transport.reset()

		coordinator.Connect(context.Background(), "user-1", "c2")
		if got := eventsOfType(transport, models.EventPresenceChanged); len(got) != 0 {
			t.Errorf("presence events = %d, want 0 for an already-online user", len(got))
		}
	})
}

func TestSessionCoordinator_Disconnect(t *testing.T) {
	t.Run("last device broadcasts went-offline and persists last seen", func(t *testing.T) {
		coordinator, registry, transport, users := newTestCoordinator()

		coordinator.Connect(context.Background(), "watcher", "w1")
		coordinator.Connect(context.Background(), "user-1", "c1")
		coordinator.Connect(context.Background(), "user-1", "c2")
		transport.reset()

		coordinator.Disconnect(context.Background(), "c1")
		if got := eventsOfType(transport, models.EventPresenceChanged); len(got) != 0 {
			t.Fatalf("presence events after non-final disconnect = %d, want 0", len(got))
		}

		coordinator.Disconnect(context.Background(), "c2")
		events := eventsOfType(transport, models.EventPresenceChanged)
		if len(events) == 0 {
			t.Fatal("expected a presence event after the final disconnect")
		}
		payload := events[0].Payload.(models.PresenceChangedPayload)
		if payload.IsOnline || payload.LastSeen == nil {
			t.Errorf("payload = %+v, want offline with last seen", payload)
		}

		users.mu.Lock()
		_, persisted := users.lastSeen["user-1"]
		users.mu.Unlock()
		if !persisted {
			t.Error("last seen should be persisted on went-offline")
		}
		if registry.IsOnline("user-1") {
			t.Error("user should be offline")
		}
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		coordinator, _, transport, _ := newTestCoordinator()

		coordinator.Disconnect(context.Background(), "never-connected")
		if transport.count() != 0 {
			t.Error("no events expected for an unknown connection")
		}
	})

	t.Run("cleanup completes even when persistence fails", func(t *testing.T) {
		coordinator, registry, _, users := newTestCoordinator()

		coordinator.Connect(context.Background(), "user-1", "c1")
		users.fail = true

		coordinator.Disconnect(context.Background(), "c1")
		if registry.IsOnline("user-1") {
			t.Error("registry cleanup must not depend on the store")
		}
	})
}

// newSweepableCoordinator wires a coordinator whose tracker runs on a
// manual clock, so tests can age connections past the threshold.
func newSweepableCoordinator() (*SessionCoordinator, *presence.PresenceTracker, *GroupFanout, *recordingTransport, func(time.Duration)) {
	registry := presence.NewConnectionRegistry(0)
	tracker := presence.NewPresenceTracker(registry, 30*time.Second, 5*time.Minute)
	transport := newRecordingTransport()
	fanout := NewGroupFanout(registry, transport)
	coordinator := NewSessionCoordinator(registry, tracker, fanout, newStubUserRepo())

	var mu sync.Mutex
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}
	return coordinator, tracker, fanout, transport, advance
}

func TestSessionCoordinator_SweepEviction(t *testing.T) {
	t.Run("evicted connections stop receiving group broadcasts", func(t *testing.T) {
		coordinator, tracker, fanout, transport, advance := newSweepableCoordinator()

		coordinator.Connect(context.Background(), "idler", "c1")
		coordinator.JoinConversation("c1", "friend")
		advance(10 * time.Minute)

		tracker.Sweep()
		transport.reset()

		fanout.Broadcast([]string{"friend"}, models.EventTypingStatus, nil)
		fanout.Broadcast([]string{"idler"}, models.EventNotification, nil)
		if transport.count() != 0 {
			t.Errorf("sends = %d, want 0 after eviction", transport.count())
		}
	})

	t.Run("close arriving after eviction still clears groups", func(t *testing.T) {
		coordinator, tracker, fanout, transport, advance := newSweepableCoordinator()

		coordinator.Connect(context.Background(), "idler", "c1")
		coordinator.JoinConversation("c1", "friend")
		advance(10 * time.Minute)

		// The registry drops the connection before the transport
		// notices the close.
		tracker.SweepInactive(5 * time.Minute)
		coordinator.Disconnect(context.Background(), "c1")
		transport.reset()

		fanout.Broadcast([]string{"friend"}, models.EventTypingStatus, nil)
		if transport.count() != 0 {
			t.Errorf("sends = %d, want 0 after the late close", transport.count())
		}
	})
}

func TestSessionCoordinator_RelayTyping(t *testing.T) {
	t.Run("reaches only the recipient", func(t *testing.T) {
		coordinator, _, transport, _ := newTestCoordinator()

		coordinator.Connect(context.Background(), "user-1", "sender-conn")
		coordinator.Connect(context.Background(), "user-2", "recv-a")
		coordinator.Connect(context.Background(), "user-2", "recv-b")
		transport.reset()

		coordinator.RelayTyping("sender-conn", "user-2", true)

		events := eventsOfType(transport, models.EventTypingStatus)
		if len(events) != 2 {
			t.Fatalf("typing events = %d, want 2 (both recipient devices)", len(events))
		}
		for _, e := range events {
			if e.ConnID == "sender-conn" {
				t.Error("typing indicator must not echo to the sender")
			}
			payload := e.Payload.(models.TypingStatusPayload)
			if payload.FromUserID != "user-1" || !payload.IsTyping {
				t.Errorf("payload = %+v, want from user-1, typing", payload)
			}
		}
	})

	t.Run("unregistered connection is dropped", func(t *testing.T) {
		coordinator, _, transport, _ := newTestCoordinator()

		coordinator.Connect(context.Background(), "user-2", "recv-a")
		transport.reset()

		coordinator.RelayTyping("stranger-conn", "user-2", true)
		if transport.count() != 0 {
			t.Errorf("sends = %d, want 0 for an unregistered sender", transport.count())
		}
	})
}

func TestSessionCoordinator_DispatchMessage(t *testing.T) {
	coordinator, _, transport, _ := newTestCoordinator()

	coordinator.Connect(context.Background(), "sender", "s1")
	coordinator.Connect(context.Background(), "receiver", "r1")
	coordinator.Connect(context.Background(), "receiver", "r2")
	transport.reset()

	msg := &models.Message{ID: "m1", SenderID: "sender", ReceiverID: "receiver", Content: "hello"}
	coordinator.DispatchMessage(msg)

	delivered := eventsOfType(transport, models.EventMessageReceived)
	if len(delivered) != 3 {
		t.Fatalf("message events = %d, want 3 (every device of both parties)", len(delivered))
	}

	refresh := eventsOfType(transport, models.EventChatListRefresh)
	if len(refresh) != 2 {
		t.Fatalf("chat list events = %d, want 2 (receiver devices only)", len(refresh))
	}
	for _, e := range refresh {
		if e.ConnID == "s1" {
			t.Error("chat list refresh must not go to the sender")
		}
	}
}

func TestSessionCoordinator_PropagateReadReceipt(t *testing.T) {
	coordinator, _, transport, _ := newTestCoordinator()

	coordinator.Connect(context.Background(), "reader", "rd1")
	coordinator.Connect(context.Background(), "author", "au1")
	transport.reset()

	coordinator.PropagateReadReceipt("reader", "author")

	events := eventsOfType(transport, models.EventMessageStatusUpdate)
	if len(events) != 2 {
		t.Fatalf("status events = %d, want 2", len(events))
	}
	payload := events[0].Payload.(models.MessageStatusPayload)
	if payload.SenderID != "author" || payload.ReceiverID != "reader" || !payload.IsRead {
		t.Errorf("payload = %+v, want author->reader read", payload)
	}
}

func TestSessionCoordinator_Conversations(t *testing.T) {
	coordinator, _, transport, _ := newTestCoordinator()

	coordinator.Connect(context.Background(), "viewer", "v1")
	coordinator.Connect(context.Background(), "typist", "t1")
	transport.reset()

	// Before joining the conversation the viewer still gets events
	// addressed to their own user ID, which is how typing reaches them.
	coordinator.JoinConversation("v1", "typist")
	coordinator.RelayTyping("t1", "viewer", true)

	events := eventsOfType(transport, models.EventTypingStatus)
	if len(events) != 1 || events[0].ConnID != "v1" {
		t.Fatalf("typing events = %+v, want exactly one to v1", events)
	}

	transport.reset()
	coordinator.LeaveConversation("v1", "typist")
	coordinator.RelayTyping("t1", "viewer", false)
	events = eventsOfType(transport, models.EventTypingStatus)
	if len(events) != 1 {
		t.Errorf("typing events after leave = %d, want 1 (personal group still applies)", len(events))
	}
}

func TestSessionCoordinator_NotifyUser(t *testing.T) {
	coordinator, _, transport, _ := newTestCoordinator()

	coordinator.Connect(context.Background(), "user-1", "c1")
	transport.reset()

	coordinator.NotifyUser("user-1", &models.Notification{ID: "n1", UserID: "user-1", Type: "friend_added"})

	events := eventsOfType(transport, models.EventNotification)
	if len(events) != 1 {
		t.Fatalf("notification events = %d, want 1", len(events))
	}

	transport.reset()
	coordinator.NotifyUser("offline-user", &models.Notification{ID: "n2", UserID: "offline-user"})
	if transport.count() != 0 {
		t.Error("notifying an offline user must be a silent no-op")
	}
}
