package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/atimics/matrixbot-sub000/internal/config"
	"github.com/atimics/matrixbot-sub000/internal/journal"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

func newTestServer(t *testing.T) (*Server, *world.State, *journal.Journal) {
	t.Helper()
	state := world.NewState(world.Limits{})
	j, err := journal.Open(filepath.Join(t.TempDir(), "botd.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	cfg := config.Default()
	cfg.AI.APIKey = "secret-key"
	return &Server{World: state, Journal: j, Config: cfg, StartedAt: time.Now().UTC()}, state, j
}

func get(t *testing.T, handler http.Handler, path string, into any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if into != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestStateAndChannelEndpoints(t *testing.T) {
	srv, state, _ := newTestServer(t)
	state.AddMessage("c1", world.Message{
		ID: "m1", ChannelType: "matrix",
		Sender:    world.Sender{PlatformID: "@a:x", Username: "a"},
		Content:   "hi",
		Timestamp: time.Now().UTC(),
	})
	handler := srv.Handler()

	var snap world.Snapshot
	if code := get(t, handler, "/api/state", &snap); code != http.StatusOK {
		t.Fatalf("/api/state = %d", code)
	}
	if len(snap.Channels) != 1 || snap.Channels[0].ID != "c1" {
		t.Fatalf("snapshot missing channel: %+v", snap.Channels)
	}

	var ch world.Channel
	if code := get(t, handler, "/api/channels/c1", &ch); code != http.StatusOK {
		t.Fatalf("/api/channels/c1 failed")
	}
	if len(ch.Messages) != 1 {
		t.Fatalf("channel detail missing messages")
	}
	if code := get(t, handler, "/api/channels/nope", nil); code != http.StatusNotFound {
		t.Fatalf("missing channel should 404, got %d", code)
	}
}

func TestActionsEndpointPrefersJournal(t *testing.T) {
	srv, _, j := newTestServer(t)
	now := time.Now().UTC()
	if err := j.AppendAction(context.Background(), world.Action{
		ID: "act-1", Type: "wait",
		Result:    map[string]any{"status": "success"},
		Timestamp: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	var actions []world.Action
	if code := get(t, srv.Handler(), "/api/actions", &actions); code != http.StatusOK {
		t.Fatalf("/api/actions failed")
	}
	if len(actions) != 1 || actions[0].ID != "act-1" {
		t.Fatalf("journal actions not served: %+v", actions)
	}
}

func TestInvitesEndpoint(t *testing.T) {
	srv, state, _ := newTestServer(t)
	state.AddPendingInvite(world.Invite{RoomID: "!r:x", Inviter: "@a:x"})

	var invites []world.Invite
	if code := get(t, srv.Handler(), "/api/invites", &invites); code != http.StatusOK {
		t.Fatalf("/api/invites failed")
	}
	if len(invites) != 1 || invites[0].RoomID != "!r:x" {
		t.Fatalf("invites not served: %+v", invites)
	}
}

func TestConfigEndpointRedactsKey(t *testing.T) {
	srv, _, _ := newTestServer(t)
	var cfg config.Config
	if code := get(t, srv.Handler(), "/api/config", &cfg); code != http.StatusOK {
		t.Fatalf("/api/config failed")
	}
	if cfg.AI.APIKey != "[redacted]" {
		t.Fatalf("api key leaked: %q", cfg.AI.APIKey)
	}
}

func TestReadOnlySurface(t *testing.T) {
	srv, _, _ := newTestServer(t)
	handler := srv.Handler()
	for _, path := range []string{"/api/state", "/api/channels", "/api/actions", "/api/invites", "/api/config"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s = %d, want 405", path, rec.Code)
		}
	}
}

// fakeWSWriter captures frames the stream would push over the socket.
type fakeWSWriter struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeWSWriter) Write(ctx context.Context, msgType websocket.MessageType, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeWSWriter) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestStreamEventsForwardsJournalFeed(t *testing.T) {
	_, _, j := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	writer := &fakeWSWriter{}
	done := make(chan error, 1)
	go func() { done <- streamEvents(ctx, j, []string{"cycle"}, writer) }()

	time.Sleep(20 * time.Millisecond)
	if _, err := j.AppendEvent(ctx, "cycle", "wait", "idle", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(writer.Frames()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	frames := writer.Frames()
	if len(frames) != 1 {
		t.Fatalf("expected one streamed frame, got %d", len(frames))
	}
	var evt journal.Event
	if err := json.Unmarshal(frames[0], &evt); err != nil {
		t.Fatalf("frame not JSON: %v", err)
	}
	if evt.Kind != "cycle" {
		t.Fatalf("wrong event streamed: %+v", evt)
	}
}
