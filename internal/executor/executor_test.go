package executor

import (
	"context"
	"testing"

	"github.com/atimics/matrixbot-sub000/internal/ai"
	"github.com/atimics/matrixbot-sub000/internal/tool"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

func newExecutor(t *testing.T, defs ...tool.Definition) (*Executor, *world.State) {
	t.Helper()
	registry := tool.NewRegistry()
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			t.Fatalf("register %s: %v", def.Name, err)
		}
	}
	state := world.NewState(world.Limits{MaxActionHistory: 10})
	return &Executor{
		Registry: registry,
		World:    state,
		Tools:    &tool.Context{World: state},
	}, state
}

func decision(toolName string, params map[string]any) ai.Decision {
	return ai.Decision{Action: ai.ActionCall{Tool: toolName, Parameters: params}}
}

func TestExecuteUnknownTool(t *testing.T) {
	calls := 0
	exec, state := newExecutor(t, tool.Definition{
		Name:   "real",
		Schema: tool.Object(nil),
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			calls++
			return tool.Success("ok", nil)
		},
	})

	out := exec.Execute(context.Background(), decision("imaginary", nil))
	if out.Result.Status != tool.StatusFailure {
		t.Fatalf("unknown tool must record a failure, got %s", out.Result.Status)
	}
	if calls != 0 {
		t.Fatalf("no handler may run for an unknown tool")
	}

	actions := state.Actions()
	if len(actions) != 1 {
		t.Fatalf("exactly one failure entry expected, got %d", len(actions))
	}
	if actions[0].Result["status"] != tool.StatusFailure {
		t.Fatalf("recorded entry not a failure: %v", actions[0].Result)
	}
}

func TestExecuteInvalidParameters(t *testing.T) {
	calls := 0
	exec, state := newExecutor(t, tool.Definition{
		Name: "send_message",
		Schema: tool.Object(map[string]tool.Property{
			"channel_id": {Type: "string"},
			"content":    {Type: "string"},
		}, "channel_id", "content"),
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			calls++
			return tool.Success("sent", nil)
		},
	})

	out := exec.Execute(context.Background(), decision("send_message", map[string]any{"channel_id": 42}))
	if out.Result.Status != tool.StatusFailure {
		t.Fatalf("schema violation must fail, got %s", out.Result.Status)
	}
	if calls != 0 {
		t.Fatalf("handler must not run on invalid parameters")
	}
	if len(state.Actions()) != 1 {
		t.Fatalf("failure must still be recorded")
	}
}

func TestExecuteDedupShortCircuit(t *testing.T) {
	platformCalls := 0
	exec, state := newExecutor(t, tool.Definition{
		Name: "like_cast",
		Schema: tool.Object(map[string]tool.Property{
			"cast_hash": {Type: "string"},
		}, "cast_hash"),
		Target: func(params map[string]any) string {
			s, _ := params["cast_hash"].(string)
			return s
		},
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			platformCalls++
			return tool.Success("liked", nil)
		},
	})

	params := map[string]any{"cast_hash": "0xdeadbeef"}
	first := exec.Execute(context.Background(), decision("like_cast", params))
	second := exec.Execute(context.Background(), decision("like_cast", params))

	if platformCalls != 1 {
		t.Fatalf("platform call must happen exactly once, got %d", platformCalls)
	}
	if first.Result.Status != tool.StatusSuccess || first.Deduped {
		t.Fatalf("first call should execute: %+v", first)
	}
	if second.Result.Status != tool.StatusSkipped || !second.Deduped {
		t.Fatalf("second call should short-circuit: %+v", second)
	}

	actions := state.Actions()
	if len(actions) != 2 {
		t.Fatalf("both attempts are recorded, got %d entries", len(actions))
	}

	// A different target executes again.
	third := exec.Execute(context.Background(), decision("like_cast", map[string]any{"cast_hash": "0xother"}))
	if third.Deduped || platformCalls != 2 {
		t.Fatalf("different target must not be deduped")
	}
}

func TestExecuteFailureNotDeduped(t *testing.T) {
	attempt := 0
	exec, _ := newExecutor(t, tool.Definition{
		Name:   "flaky",
		Schema: tool.Object(map[string]tool.Property{"id": {Type: "string"}}, "id"),
		Target: func(params map[string]any) string {
			s, _ := params["id"].(string)
			return s
		},
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			attempt++
			if attempt == 1 {
				return tool.Errorf("transient platform error")
			}
			return tool.Success("done", nil)
		},
	})

	params := map[string]any{"id": "t1"}
	first := exec.Execute(context.Background(), decision("flaky", params))
	if first.Result.Status != tool.StatusFailure {
		t.Fatalf("first attempt should fail")
	}
	second := exec.Execute(context.Background(), decision("flaky", params))
	if second.Deduped {
		t.Fatalf("a failed attempt must stay retryable")
	}
	if second.Result.Status != tool.StatusSuccess {
		t.Fatalf("retry should execute, got %s", second.Result.Status)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	exec, state := newExecutor(t, tool.Definition{
		Name:   "boom",
		Schema: tool.Object(nil),
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			panic("handler bug")
		},
	})

	out := exec.Execute(context.Background(), decision("boom", nil))
	if out.Result.Status != tool.StatusFailure {
		t.Fatalf("panic must convert to a recorded failure, got %s", out.Result.Status)
	}
	if len(state.Actions()) != 1 {
		t.Fatalf("panic outcome must be recorded")
	}
}

func TestConfirmAction(t *testing.T) {
	exec, state := newExecutor(t, tool.Definition{
		Name:      "send_message",
		Schema:    tool.Object(nil),
		Updatable: true,
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			return tool.Success("sent", nil)
		},
	})

	out := exec.Execute(context.Background(), decision("send_message", nil))
	if !exec.ConfirmAction(context.Background(), out.ActionID, map[string]any{"event_id": "$evt9"}) {
		t.Fatalf("confirm of existing action should succeed")
	}
	if exec.ConfirmAction(context.Background(), "act-nope", nil) {
		t.Fatalf("confirm of unknown action should fail")
	}
	if state.Actions()[0].Result["event_id"] != "$evt9" {
		t.Fatalf("confirmation not merged into result")
	}
}
