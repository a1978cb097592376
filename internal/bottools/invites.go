package bottools

import (
	"context"

	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/tool"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

const matrix = "matrix"

// AcceptInviteTool joins a Matrix room the bot was invited to, clears the
// pending invite, and marks the channel active.
func AcceptInviteTool() tool.Definition {
	return tool.Definition{
		Name:        "accept_invite",
		Description: "Accept a pending Matrix room invite",
		Schema: tool.Object(map[string]tool.Property{
			"room_id": {Type: "string", Description: "Room id of the pending invite"},
		}, "room_id"),
		Target: func(params map[string]any) string { return str(params, "room_id") },
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			roomID := str(params, "room_id")
			obs, err := tc.ObserverFor(matrix)
			if err != nil {
				return tool.Error(err)
			}
			if _, err := obs.SendAction(ctx, observer.ActionRequest{Kind: "join", ChannelID: roomID}); err != nil {
				return tool.Errorf("join %s failed: %v", roomID, err)
			}
			tc.World.RemovePendingInvite(roomID)
			tc.World.UpdateChannelStatus(roomID, world.StatusActive)
			return tool.Success("invite accepted", map[string]any{"room_id": roomID})
		},
	}
}

// DeclineInviteTool rejects a pending invite and clears it.
func DeclineInviteTool() tool.Definition {
	return tool.Definition{
		Name:        "decline_invite",
		Description: "Decline a pending Matrix room invite",
		Schema: tool.Object(map[string]tool.Property{
			"room_id": {Type: "string", Description: "Room id of the pending invite"},
		}, "room_id"),
		Target: func(params map[string]any) string { return str(params, "room_id") },
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			roomID := str(params, "room_id")
			obs, err := tc.ObserverFor(matrix)
			if err != nil {
				return tool.Error(err)
			}
			if _, err := obs.SendAction(ctx, observer.ActionRequest{Kind: "decline_invite", ChannelID: roomID}); err != nil {
				return tool.Errorf("decline %s failed: %v", roomID, err)
			}
			tc.World.RemovePendingInvite(roomID)
			return tool.Success("invite declined", map[string]any{"room_id": roomID})
		},
	}
}

// LeaveRoomTool leaves a room the bot is in and records the status change.
func LeaveRoomTool() tool.Definition {
	return tool.Definition{
		Name:        "leave_room",
		Description: "Leave a Matrix room the bot is a member of",
		Schema: tool.Object(map[string]tool.Property{
			"room_id": {Type: "string", Description: "Room id to leave"},
		}, "room_id"),
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			roomID := str(params, "room_id")
			obs, err := tc.ObserverFor(matrix)
			if err != nil {
				return tool.Error(err)
			}
			if _, err := obs.SendAction(ctx, observer.ActionRequest{Kind: "leave", ChannelID: roomID}); err != nil {
				return tool.Errorf("leave %s failed: %v", roomID, err)
			}
			tc.World.UpdateChannelStatus(roomID, world.StatusLeftByBot)
			return tool.Success("room left", map[string]any{"room_id": roomID})
		},
	}
}
