// Package executor validates AI decisions against the tool registry,
// executes them at most once per social target, and records the outcome in
// the world state and the journal.
package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/atimics/matrixbot-sub000/internal/ai"
	"github.com/atimics/matrixbot-sub000/internal/journal"
	"github.com/atimics/matrixbot-sub000/internal/tool"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

type Executor struct {
	Registry *tool.Registry
	World    *world.State
	Tools    *tool.Context
	Journal  *journal.Journal // optional; writes are best-effort
}

// Outcome summarizes one executed (or rejected) decision.
type Outcome struct {
	ActionID string      `json:"action_id"`
	Tool     string      `json:"tool"`
	Result   tool.Result `json:"result"`
	Deduped  bool        `json:"deduped,omitempty"`
}

// Execute runs a decision through validation, the dedup guard, the tool
// handler, and recording. Malformed decisions produce a recorded failure and
// never an error: the cycle always proceeds.
func (e *Executor) Execute(ctx context.Context, d ai.Decision) Outcome {
	name := d.Action.Tool
	params := d.Action.Parameters
	if params == nil {
		params = map[string]any{}
	}

	def, ok := e.Registry.Get(name)
	if !ok {
		return e.record(ctx, name, params, "", false, false,
			tool.Errorf("unknown tool %q", name))
	}

	if err := def.Schema.Validate(params); err != nil {
		return e.record(ctx, name, params, "", false, false,
			tool.Errorf("invalid parameters: %v", err))
	}

	target := ""
	if def.Target != nil {
		target = def.Target(params)
	}
	if target != "" && e.World.HasPerformed(name, target) {
		return e.record(ctx, name, params, target, def.Updatable, true,
			tool.Skipped(fmt.Sprintf("%s already performed for %s", name, target)))
	}

	res := e.invoke(ctx, def, params)
	return e.record(ctx, name, params, target, def.Updatable, false, res)
}

// invoke shields the cycle from a misbehaving handler.
func (e *Executor) invoke(ctx context.Context, def *tool.Definition, params map[string]any) (res tool.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = tool.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, params, e.Tools)
}

func (e *Executor) record(ctx context.Context, name string, params map[string]any, target string, updatable, deduped bool, res tool.Result) Outcome {
	// A failed attempt must stay retryable: only non-failures feed the
	// performed index.
	if res.Status == tool.StatusFailure {
		target = ""
	}
	id := e.World.AddActionResult(world.ActionInput{
		Type:       name,
		Parameters: params,
		Result:     res.Map(),
		Target:     target,
		Updatable:  updatable,
	})
	e.journalAction(ctx, id)
	return Outcome{ActionID: id, Tool: name, Result: res, Deduped: deduped}
}

// ConfirmAction applies an async platform confirmation to an existing action
// in both the world state and the journal.
func (e *Executor) ConfirmAction(ctx context.Context, actionID string, extra map[string]any) bool {
	if !e.World.UpdateActionResult(actionID, nil, extra) {
		return false
	}
	e.journalAction(ctx, actionID)
	return true
}

func (e *Executor) journalAction(ctx context.Context, actionID string) {
	if e.Journal == nil {
		return
	}
	for _, act := range e.World.Actions() {
		if act.ID == actionID {
			if err := e.Journal.AppendAction(ctx, act); err != nil {
				log.Printf("journal action %s: %v", actionID, err)
			}
			return
		}
	}
}
