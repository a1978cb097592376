package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/world"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "botd.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndListActions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"act-1", "act-2", "act-3"} {
		err := j.AppendAction(ctx, world.Action{
			ID:         id,
			Type:       "like_cast",
			Parameters: map[string]any{"cast_hash": id},
			Result:     map[string]any{"status": "success"},
			Target:     id,
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			UpdatedAt:  now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	actions, err := j.ListActions(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("limit not applied, got %d", len(actions))
	}
	if actions[0].ID != "act-3" {
		t.Fatalf("newest-first ordering broken, got %s", actions[0].ID)
	}
	if actions[0].Parameters["cast_hash"] != "act-3" {
		t.Fatalf("parameters not round-tripped: %v", actions[0].Parameters)
	}
}

func TestUpdateAction(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := j.AppendAction(ctx, world.Action{
		ID: "act-1", Type: "send_message",
		Result:    map[string]any{"status": "pending"},
		Timestamp: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := j.UpdateAction(ctx, "act-1", map[string]any{"status": "success", "event_id": "$e1"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := j.UpdateAction(ctx, "act-missing", nil); err == nil {
		t.Fatalf("updating a missing action should error")
	}

	actions, err := j.ListActions(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if actions[0].Result["event_id"] != "$e1" {
		t.Fatalf("update not persisted: %v", actions[0].Result)
	}
}

func TestEventsAndSubscribe(t *testing.T) {
	j := openTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := j.Subscribe(ctx, []string{"cycle"})

	if _, err := j.AppendEvent(ctx, "cycle", "wait", "idle cycle", map[string]any{"cycle": 1}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if _, err := j.AppendEvent(ctx, "observer_error", "matrix", "timeout", nil); err != nil {
		t.Fatalf("append event: %v", err)
	}

	select {
	case evt := <-sub:
		if evt.Kind != "cycle" {
			t.Fatalf("subscriber got unfiltered kind %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive the cycle event")
	}

	// The observer_error event was filtered out; nothing else pending.
	select {
	case evt := <-sub:
		t.Fatalf("unexpected event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	events, err := j.ListEvents(ctx, "", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected both events stored, got %d", len(events))
	}
	filtered, err := j.ListEvents(ctx, "cycle", 10)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Kind != "cycle" {
		t.Fatalf("kind filter broken: %+v", filtered)
	}

	cancel()
	// Channel closes after unsubscribe.
	for {
		if _, ok := <-sub; !ok {
			break
		}
	}
}
