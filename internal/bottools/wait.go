package bottools

import (
	"context"

	"github.com/atimics/matrixbot-sub000/internal/tool"
)

// WaitTool explicitly does nothing for one cycle. It is also the fallback
// the orchestrator records when the decision step fails.
func WaitTool() tool.Definition {
	return tool.Definition{
		Name:        "wait",
		Description: "Do nothing this cycle and keep observing",
		Schema: tool.Object(map[string]tool.Property{
			"reason": {Type: "string", Description: "Optional note about why the agent is idling"},
		}),
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			return tool.Success("waiting", map[string]any{
				"reason": str(params, "reason"),
			})
		},
	}
}
