package tool

import "fmt"

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusSkipped = "skipped"
)

// Result is a tool execution outcome in the shape recorded into the action
// history: a status, a human-readable message, and optional structured data.
type Result struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

func Success(message string, data map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

func Errorf(format string, args ...any) Result {
	return Result{Status: StatusFailure, Message: fmt.Sprintf(format, args...)}
}

func Error(err error) Result {
	return Result{Status: StatusFailure, Message: err.Error()}
}

// Skipped marks a short-circuited no-op, e.g. a social action already
// performed against the same target.
func Skipped(message string) Result {
	return Result{Status: StatusSkipped, Message: message}
}

// Map flattens the result for storage in an action history entry.
func (r Result) Map() map[string]any {
	out := map[string]any{"status": r.Status}
	if r.Message != "" {
		out["message"] = r.Message
	}
	for k, v := range r.Data {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}
