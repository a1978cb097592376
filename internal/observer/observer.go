// Package observer defines the contract between the observation cycle and
// the concrete platform clients (Matrix, Farcaster). The cycle only depends
// on this shape; the platform specifics live outside the core.
package observer

import (
	"context"

	"github.com/atimics/matrixbot-sub000/internal/world"
)

type EventKind string

const (
	KindMessage    EventKind = "message"
	KindInvite     EventKind = "invite"
	KindMembership EventKind = "membership"
)

// Event is one platform occurrence surfaced by PollEvents. Exactly one of
// Message, Invite, Membership is set, matching Kind.
type Event struct {
	Kind       EventKind
	Platform   string
	Message    *world.Message
	Invite     *world.Invite
	Membership *MembershipChange
}

// MembershipChange reports the bot's standing in a channel changing (joined,
// kicked, banned, left).
type MembershipChange struct {
	ChannelID string
	Status    world.ChannelStatus
}

// ActionRequest asks the platform to perform an externally visible action.
// Kind names the platform operation ("send", "like", "reply", "follow",
// "join", "leave", "decline_invite"); the other fields are filled as the
// operation requires.
type ActionRequest struct {
	Kind      string
	ChannelID string
	TargetID  string // cast hash, user id or FID, event id
	Content   string
	Extra     map[string]any
}

// ActionResult is the platform's answer, including any identifier it minted
// (message event id, cast hash) so the action history can reference it.
type ActionResult struct {
	PlatformID string
	Data       map[string]any
}

// Observer is a platform client as seen by the cycle. PollEvents drains
// events accumulated since the previous poll; it must be safe to call
// repeatedly and return quickly when nothing is pending.
type Observer interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	PollEvents(ctx context.Context) ([]Event, error)
	SendAction(ctx context.Context, req ActionRequest) (ActionResult, error)
}
