// Package ai turns a payload and the tool capability listing into a
// structured decision via an OpenAI-compatible chat completion endpoint.
package ai

import (
	"encoding/json"
	"strings"
)

// WaitTool is the built-in no-op the cycle falls back to whenever the model
// output cannot be used.
const WaitTool = "wait"

// Decision is the structured AI response. Reasoning is optional; unknown
// extra fields in the raw JSON are ignored.
type Decision struct {
	Reasoning string     `json:"reasoning,omitempty"`
	Action    ActionCall `json:"action"`
}

type ActionCall struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Wait returns the default no-op decision.
func Wait(reason string) Decision {
	return Decision{
		Reasoning: reason,
		Action:    ActionCall{Tool: WaitTool, Parameters: map[string]any{}},
	}
}

// ParseDecision reads a model response leniently: markdown fences are
// stripped, text around the outermost JSON object is ignored, and anything
// that still fails to yield a tool name degrades to a wait decision. The
// second return reports whether the raw text parsed cleanly.
func ParseDecision(raw string) (Decision, bool) {
	text := extractJSON(raw)
	if text == "" {
		return Wait("unparseable model output"), false
	}
	var d Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Wait("unparseable model output"), false
	}
	if strings.TrimSpace(d.Action.Tool) == "" {
		return Wait("model output missing action.tool"), false
	}
	d.Action.Tool = strings.TrimSpace(d.Action.Tool)
	if d.Action.Parameters == nil {
		d.Action.Parameters = map[string]any{}
	}
	return d, true
}

// extractJSON returns the outermost {...} object in text, tolerating code
// fences and prose before or after it.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
