package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/extkit/event"
	"github.com/kbukum/extkit/extension"
	"github.com/kbukum/extkit/logger"
	"github.com/kbukum/extkit/metadata"
	"github.com/kbukum/extkit/observability"
)

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.Events():
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestClientMatches(t *testing.T) {
	tests := []struct {
		filter    string
		extension string
		want      bool
	}{
		{"", "acme.stripe", true},
		{"*", "acme.stripe", true},
		{"acme.*", "acme.stripe", true},
		{"acme.*", "other.stripe", false},
		{"acme.stripe", "acme.stripe", true},
		{"[", "acme.stripe", false},
	}
	for _, tc := range tests {
		t.Run(tc.filter+"/"+tc.extension, func(t *testing.T) {
			if got := NewClient("c", tc.filter).Matches(tc.extension); got != tc.want {
				t.Errorf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHubBroadcastRespectsFilters(t *testing.T) {
	hub := startHub(t)
	all := NewClient("all", "")
	acme := NewClient("acme", "acme.*")
	other := NewClient("other", "other.*")
	for _, c := range []*Client{all, acme, other} {
		if !hub.Register(c) {
			t.Fatal("register failed")
		}
	}

	hub.Broadcast(Message{Extension: "acme.stripe", Event: EventTypeInstantiated, Data: []byte(`{}`)})

	for _, c := range []*Client{all, acme} {
		msg, ok := receive(t, c)
		if !ok || msg.Extension != "acme.stripe" {
			t.Errorf("client %s: unexpected message %+v", c.ID(), msg)
		}
	}
	select {
	case msg := <-other.Events():
		t.Errorf("filtered client received %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	if n := hub.ClientCount(); n != 3 {
		t.Errorf("expected 3 clients, got %d", n)
	}
}

func TestHubUnregisterClosesClient(t *testing.T) {
	hub := startHub(t)
	c := NewClient("c", "")
	hub.Register(c)
	hub.Unregister(c)

	if _, ok := receive(t, c); ok {
		t.Error("expected closed channel")
	}
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("expected 0 clients, got %d", n)
	}
}

func TestHubReusedClientID(t *testing.T) {
	hub := startHub(t)
	first := NewClient("same-id", "")
	second := NewClient("same-id", "")
	hub.Register(first)
	hub.Register(second)

	if _, ok := receive(t, first); ok {
		t.Error("earlier client with the same id should be closed")
	}

	// The earlier stream's deferred Unregister must not drop the live one.
	hub.Unregister(first)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Broadcast(Message{Extension: "acme.stripe", Event: EventTypeInstantiated, Data: []byte(`{}`)})
	if msg, ok := receive(t, second); !ok || msg.Extension != "acme.stripe" {
		t.Errorf("live client missed the broadcast: %+v ok=%v", msg, ok)
	}
}

func TestHubCheckHealth(t *testing.T) {
	hub := startHub(t)
	c := NewClient("c", "")
	hub.Register(c)
	hub.Broadcast(Message{Extension: "acme.stripe"})
	receive(t, c)
	if h := hub.CheckHealth(context.Background()); h.Status != observability.HealthStatusUp || h.Details["clients"] != "1" {
		t.Errorf("unexpected health %+v", h)
	}
	hub.Stop()
	if h := hub.CheckHealth(context.Background()); h.Status != observability.HealthStatusDown {
		t.Errorf("expected down after stop, got %s", h.Status)
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub()
	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()

	c := NewClient("c", "")
	hub.Register(c)
	hub.Stop()
	hub.Stop()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if _, ok := receive(t, c); ok {
		t.Error("expected client channel closed on stop")
	}
	if hub.Register(NewClient("late", "")) {
		t.Error("expected Register to fail after Stop")
	}
	hub.Broadcast(Message{Extension: "acme.stripe"})
	hub.Unregister(c)
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingBroadcaster) Broadcast(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

type widget struct{}

func newWidgetStore(t *testing.T, events *event.Dispatcher) *extension.Store {
	t.Helper()
	table := metadata.NewTable()
	if err := table.DefinePoint("ui.widget", metadata.PointSpec{}); err != nil {
		t.Fatal(err)
	}
	if err := table.DefineExtension("acme.clock", metadata.ExtensionSpec{
		Annotations: []metadata.Annotation{{Point: "ui.widget", Metadata: extension.Metadata{Name: "Clock", Version: "1.2.0"}}},
	}); err != nil {
		t.Fatal(err)
	}

	inst := extension.InstantiatorFunc(func(context.Context, string, map[string]any) (any, error) {
		return &widget{}, nil
	})
	store := extension.New(table, inst, extension.WithLogger(logger.Nop()), extension.WithNotifier(events))
	if err := store.Types().Register("ui.widget"); err != nil {
		t.Fatal(err)
	}
	if err := store.Registry().Register(context.Background(), "ui.widget", "acme.clock"); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestForwardPublishesInstantiatedEvents(t *testing.T) {
	events := event.NewDispatcher()
	rec := &recordingBroadcaster{}
	events.Listen("*", Forward(rec))
	store := newWidgetStore(t, events)

	if _, err := store.Create(context.Background(), "acme.clock", nil); err != nil {
		t.Fatal(err)
	}
	if err := events.Dispatch(context.Background(), event.NewBase("other.kind")); err != nil {
		t.Fatal(err)
	}

	if len(rec.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(rec.msgs))
	}
	msg := rec.msgs[0]
	if msg.Extension != "acme.clock" || msg.Event != EventTypeInstantiated {
		t.Errorf("unexpected message %+v", msg)
	}
	var payload InstantiatedPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Point != "ui.widget" || payload.Name != "Clock" || payload.Version != "1.2.0" {
		t.Errorf("unexpected payload %+v", payload)
	}
	if payload.InstanceType != "*sse.widget" || payload.ID == "" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestServeSSEStreamsMessages(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(hub, w, r, "test-client", r.URL.Query().Get("extension"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?extension=acme.*", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
		return name, data
	}

	name, data := readEvent()
	if name != EventTypeConnected || !strings.Contains(data, `"filter":"acme.*"`) {
		t.Fatalf("unexpected first event %q %q", name, data)
	}

	hub.Broadcast(Message{Extension: "other.thing", Event: EventTypeInstantiated, Data: []byte(`"skip"`)})
	hub.Broadcast(Message{Extension: "acme.clock", Event: EventTypeInstantiated, Data: []byte(`"hit"`)})

	name, data = readEvent()
	if name != EventTypeInstantiated || data != `"hit"` {
		t.Errorf("unexpected event %q %q", name, data)
	}
}

func TestServeSSEAfterStop(t *testing.T) {
	hub := NewHub()
	hub.Stop()

	w := httptest.NewRecorder()
	ServeSSE(hub, w, httptest.NewRequest(http.MethodGet, "/events", nil), "c", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
