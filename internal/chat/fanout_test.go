package chat

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/Fozu7916/AlekseyBook-sub000/internal/presence"
)

type sentEvent struct {
	ConnID  string
	Event   string
	Payload interface{}
}

// recordingTransport captures sends and can simulate per-connection
// failures.
type recordingTransport struct {
	mu    sync.Mutex
	sends []sentEvent
	fail  map[string]bool
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{fail: make(map[string]bool)}
}

func (t *recordingTransport) Send(connID, event string, payload interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail[connID] {
		return errors.New("connection gone")
	}
	t.sends = append(t.sends, sentEvent{ConnID: connID, Event: event, Payload: payload})
	return nil
}

func (t *recordingTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var conns []string
	for _, s := range t.sends {
		conns = append(conns, s.ConnID)
	}
	sort.Strings(conns)
	return conns
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func (t *recordingTransport) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = nil
}

func newTestFanout() (*GroupFanout, *presence.ConnectionRegistry, *recordingTransport) {
	registry := presence.NewConnectionRegistry(0)
	transport := newRecordingTransport()
	return NewGroupFanout(registry, transport), registry, transport
}

func TestGroupFanout_BroadcastDeduplicates(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("user-5", "c1")
	registry.Add("user-5", "c2")

	// The same group listed twice must still deliver once per connection.
	fanout.Broadcast([]string{"user-5", "user-5"}, "message_received", "hi")

	got := transport.recipients()
	want := []string{"c1", "c2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("recipients = %v, want %v", got, want)
	}
}

func TestGroupFanout_SenderInBothGroupsGetsOneCopy(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("sender", "s1")
	registry.Add("receiver", "r1")
	// A connection viewing the conversation is joined to the other
	// party's group as well as living in its own.
	fanout.Join("receiver", "s1")

	fanout.Broadcast([]string{"receiver", "sender"}, "message_received", "hi")

	got := transport.recipients()
	want := []string{"r1", "s1"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("recipients = %v, want %v", got, want)
	}
}

func TestGroupFanout_OfflineGroupIsSilentNoop(t *testing.T) {
	fanout, _, transport := newTestFanout()

	fanout.Broadcast([]string{"nobody-home"}, "message_received", "hi")

	if transport.count() != 0 {
		t.Errorf("sends = %d, want 0 for an unresolvable group", transport.count())
	}
}

func TestGroupFanout_SendFailureDoesNotAbortBroadcast(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("user-1", "dead")
	registry.Add("user-1", "alive")
	transport.fail["dead"] = true

	fanout.Broadcast([]string{"user-1"}, "message_received", "hi")

	got := transport.recipients()
	if len(got) != 1 || got[0] != "alive" {
		t.Errorf("recipients = %v, want [alive]", got)
	}
}

func TestGroupFanout_ExplicitGroups(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("viewer", "v1")
	registry.Add("other", "o1")

	fanout.Join("room-key", "v1")
	fanout.Broadcast([]string{"room-key"}, "typing_status", nil)
	if got := transport.recipients(); len(got) != 1 || got[0] != "v1" {
		t.Fatalf("recipients = %v, want [v1]", got)
	}

	transport.reset()
	fanout.Leave("room-key", "v1")
	fanout.Broadcast([]string{"room-key"}, "typing_status", nil)
	if transport.count() != 0 {
		t.Errorf("sends after leave = %d, want 0", transport.count())
	}
}

func TestGroupFanout_LeaveAll(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("viewer", "v1")

	fanout.Join("room-a", "v1")
	fanout.Join("room-b", "v1")
	fanout.LeaveAll("v1")

	fanout.Broadcast([]string{"room-a", "room-b"}, "typing_status", nil)
	if transport.count() != 0 {
		t.Errorf("sends = %d, want 0 after LeaveAll", transport.count())
	}
}

func TestGroupFanout_BroadcastAll(t *testing.T) {
	fanout, registry, transport := newTestFanout()
	registry.Add("user-1", "c1")
	registry.Add("user-2", "c2")
	registry.Add("user-2", "c3")

	fanout.BroadcastAll("presence_changed", nil)

	if transport.count() != 3 {
		t.Errorf("sends = %d, want 3", transport.count())
	}
}
