package ai

import (
	"strings"
	"testing"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/payload"
	"github.com/atimics/matrixbot-sub000/internal/tool"
)

func TestRenderPromptDeterministic(t *testing.T) {
	p := payload.Payload{
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Primary: &payload.PrimaryChannel{
			ID: "c1",
			Messages: []payload.MessageView{
				{ID: "m1", Sender: "alice", Content: "hello", Timestamp: time.Date(2026, 8, 1, 11, 59, 0, 0, time.UTC)},
			},
		},
	}
	tools := []tool.Description{
		{Name: "wait", Description: "do nothing", Schema: tool.Object(nil)},
		{Name: "like_cast", Description: "like a cast", Schema: tool.Object(map[string]tool.Property{
			"cast_hash": {Type: "string"},
		}, "cast_hash")},
	}

	first, err := RenderPrompt(p, tools)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := RenderPrompt(p, tools)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs must render identical prompts")
	}

	// Tool listing preserves registration order.
	if strings.Index(first, "- wait:") > strings.Index(first, "- like_cast:") {
		t.Fatalf("tool order not preserved in prompt")
	}
	if !strings.Contains(first, `"content": "hello"`) {
		t.Fatalf("payload JSON missing from prompt:\n%s", first)
	}
}
