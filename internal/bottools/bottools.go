// Package bottools provides the built-in actions the agent can take:
// waiting, messaging, Farcaster social actions, and Matrix invite handling.
// Every tool is a plain definition; the executor owns validation and
// recording.
package bottools

import (
	"strings"

	"github.com/atimics/matrixbot-sub000/internal/tool"
)

// All returns every built-in tool in a fixed order. Wait is first so the
// capability listing always opens with the safe default.
func All() []tool.Definition {
	return []tool.Definition{
		WaitTool(),
		SendMessageTool(),
		LikeCastTool(),
		ReplyCastTool(),
		FollowUserTool(),
		AcceptInviteTool(),
		DeclineInviteTool(),
		LeaveRoomTool(),
	}
}

func str(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}
