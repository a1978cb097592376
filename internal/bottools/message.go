package bottools

import (
	"context"

	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/tool"
)

// SendMessageTool posts a message into a channel the bot already knows. The
// channel record decides which platform observer delivers it.
func SendMessageTool() tool.Definition {
	return tool.Definition{
		Name:        "send_message",
		Description: "Send a message to a channel the bot is a member of",
		Schema: tool.Object(map[string]tool.Property{
			"channel_id": {Type: "string", Description: "Target channel or room id"},
			"content":    {Type: "string", Description: "Message text"},
			"reply_to":   {Type: "string", Description: "Optional id of the message being replied to"},
		}, "channel_id", "content"),
		Updatable: true,
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			channelID := str(params, "channel_id")
			content := str(params, "content")
			if content == "" {
				return tool.Errorf("content is empty")
			}

			ch, ok := tc.World.Channel(channelID)
			if !ok {
				return tool.Errorf("unknown channel %q", channelID)
			}
			obs, err := tc.ObserverFor(ch.Type)
			if err != nil {
				return tool.Error(err)
			}

			res, err := obs.SendAction(ctx, observer.ActionRequest{
				Kind:      "send",
				ChannelID: channelID,
				Content:   content,
				TargetID:  str(params, "reply_to"),
			})
			if err != nil {
				return tool.Errorf("send to %s failed: %v", channelID, err)
			}
			return tool.Success("message sent", map[string]any{
				"channel_id":  channelID,
				"platform_id": res.PlatformID,
			})
		},
	}
}
