package bottools

import (
	"context"

	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/tool"
)

const farcaster = "farcaster"

// LikeCastTool reacts to a Farcaster cast. The cast hash is the dedup
// target: liking the same cast twice short-circuits before the platform
// call.
func LikeCastTool() tool.Definition {
	return tool.Definition{
		Name:        "like_cast",
		Description: "Like a Farcaster cast by hash",
		Schema: tool.Object(map[string]tool.Property{
			"cast_hash": {Type: "string", Description: "Hash of the cast to like"},
		}, "cast_hash"),
		Target: func(params map[string]any) string { return str(params, "cast_hash") },
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			hash := str(params, "cast_hash")
			if hash == "" {
				return tool.Errorf("cast_hash is empty")
			}
			obs, err := tc.ObserverFor(farcaster)
			if err != nil {
				return tool.Error(err)
			}
			if _, err := obs.SendAction(ctx, observer.ActionRequest{Kind: "like", TargetID: hash}); err != nil {
				return tool.Errorf("like %s failed: %v", hash, err)
			}
			return tool.Success("cast liked", map[string]any{"cast_hash": hash})
		},
	}
}

// ReplyCastTool replies to a cast; one reply per cast hash.
func ReplyCastTool() tool.Definition {
	return tool.Definition{
		Name:        "reply_cast",
		Description: "Reply to a Farcaster cast",
		Schema: tool.Object(map[string]tool.Property{
			"cast_hash": {Type: "string", Description: "Hash of the cast to reply to"},
			"content":   {Type: "string", Description: "Reply text"},
		}, "cast_hash", "content"),
		Target:    func(params map[string]any) string { return str(params, "cast_hash") },
		Updatable: true,
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			hash := str(params, "cast_hash")
			content := str(params, "content")
			if content == "" {
				return tool.Errorf("content is empty")
			}
			obs, err := tc.ObserverFor(farcaster)
			if err != nil {
				return tool.Error(err)
			}
			res, err := obs.SendAction(ctx, observer.ActionRequest{
				Kind:     "reply",
				TargetID: hash,
				Content:  content,
			})
			if err != nil {
				return tool.Errorf("reply to %s failed: %v", hash, err)
			}
			return tool.Success("reply posted", map[string]any{
				"cast_hash":   hash,
				"platform_id": res.PlatformID,
			})
		},
	}
}

// FollowUserTool follows a Farcaster user; one follow per FID.
func FollowUserTool() tool.Definition {
	return tool.Definition{
		Name:        "follow_user",
		Description: "Follow a Farcaster user by FID",
		Schema: tool.Object(map[string]tool.Property{
			"fid": {Type: "string", Description: "Numeric Farcaster id of the user, as a string"},
		}, "fid"),
		Target: func(params map[string]any) string { return str(params, "fid") },
		Handler: func(ctx context.Context, params map[string]any, tc *tool.Context) tool.Result {
			fid := str(params, "fid")
			if fid == "" {
				return tool.Errorf("fid is empty")
			}
			obs, err := tc.ObserverFor(farcaster)
			if err != nil {
				return tool.Error(err)
			}
			if _, err := obs.SendAction(ctx, observer.ActionRequest{Kind: "follow", TargetID: fid}); err != nil {
				return tool.Errorf("follow %s failed: %v", fid, err)
			}
			return tool.Success("user followed", map[string]any{"fid": fid})
		},
	}
}
