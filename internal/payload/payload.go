// Package payload projects the world state into a size-bounded snapshot for
// the AI decision call. Given identical inputs the output is deterministic,
// so decision prompts are reproducible in tests.
package payload

import (
	"encoding/json"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/world"
)

// Options bound the projection. Zero values fall back to defaults.
type Options struct {
	MaxMessagesPerChannel int
	MaxActionHistory      int
	MaxOtherChannels      int
	SnippetLength         int
	IncludeProfiles       bool
	// BotSenderID marks the bot's own messages; they stay in the primary
	// transcript for bookkeeping but never appear in secondary snippets.
	BotSenderID string
	// MaxBytes caps the serialized payload. Secondary channels, then action
	// history, then pending invites, then the primary transcript are trimmed
	// until it fits.
	MaxBytes int
}

func (o Options) withDefaults() Options {
	if o.MaxMessagesPerChannel <= 0 {
		o.MaxMessagesPerChannel = 10
	}
	if o.MaxActionHistory <= 0 {
		o.MaxActionHistory = 5
	}
	if o.MaxOtherChannels <= 0 {
		o.MaxOtherChannels = 3
	}
	if o.SnippetLength <= 0 {
		o.SnippetLength = 70
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = 16384
	}
	return o
}

type Payload struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Primary     *PrimaryChannel  `json:"primary_channel,omitempty"`
	Others      []ChannelSummary `json:"other_channels,omitempty"`
	Actions     []ActionEntry    `json:"recent_actions,omitempty"`
	Invites     []InviteEntry    `json:"pending_invites,omitempty"`
}

type PrimaryChannel struct {
	ID       string        `json:"id"`
	Type     string        `json:"type,omitempty"`
	Name     string        `json:"name,omitempty"`
	Status   string        `json:"status,omitempty"`
	Messages []MessageView `json:"messages"`
}

type MessageView struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name,omitempty"`
	Followers int       `json:"followers,omitempty"`
	Content   string    `json:"content"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	FromBot   bool      `json:"from_bot,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ChannelSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	MessageCount int       `json:"message_count"`
	LastActive   time.Time `json:"last_active"`
	Snippets     []string  `json:"snippets,omitempty"`
}

type ActionEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status,omitempty"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type InviteEntry struct {
	RoomID     string    `json:"room_id"`
	Inviter    string    `json:"inviter,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Build projects a snapshot around the given primary channel. Missing or
// partial data never fails the build: absent fields are omitted.
func Build(snap world.Snapshot, primaryChannelID string, opts Options) Payload {
	opts = opts.withDefaults()
	p := Payload{GeneratedAt: snap.TakenAt}

	var primary *world.Channel
	others := make([]world.Channel, 0, len(snap.Channels))
	for i := range snap.Channels {
		ch := snap.Channels[i]
		if ch.ID == primaryChannelID {
			primary = &snap.Channels[i]
			continue
		}
		if len(ch.Messages) > 0 {
			others = append(others, ch)
		}
	}

	if primary != nil {
		p.Primary = buildPrimary(*primary, opts)
	}
	p.Others = buildOthers(others, opts)
	p.Actions = buildActions(snap.Actions, opts.MaxActionHistory)
	for _, inv := range snap.Invites {
		p.Invites = append(p.Invites, InviteEntry{
			RoomID:     inv.RoomID,
			Inviter:    inv.Inviter,
			ReceivedAt: inv.ReceivedAt,
		})
	}

	return shrinkToFit(p, opts.MaxBytes)
}

func buildPrimary(ch world.Channel, opts Options) *PrimaryChannel {
	out := &PrimaryChannel{
		ID:     ch.ID,
		Type:   ch.Type,
		Name:   ch.Name,
		Status: string(ch.Status),
	}
	msgs := ch.Messages
	if len(msgs) > opts.MaxMessagesPerChannel {
		msgs = msgs[len(msgs)-opts.MaxMessagesPerChannel:]
	}
	out.Messages = make([]MessageView, 0, len(msgs))
	for _, msg := range msgs {
		view := MessageView{
			ID:        msg.ID,
			Sender:    msg.Sender.Username,
			Content:   Truncate(msg.Content, maxPrimaryContentRunes),
			ReplyTo:   msg.ReplyTo,
			FromBot:   opts.BotSenderID != "" && msg.Sender.PlatformID == opts.BotSenderID,
			Timestamp: msg.Timestamp,
		}
		if view.Sender == "" {
			view.Sender = msg.Sender.PlatformID
		}
		if opts.IncludeProfiles {
			view.Name = msg.Sender.DisplayName
			view.Followers = msg.Sender.FollowerCount
		}
		out.Messages = append(out.Messages, view)
	}
	return out
}

// buildOthers summarizes secondary channels, most recently active first,
// capped to MaxOtherChannels. Ties break on ascending channel id; the input
// is already id-sorted, so a stable sort preserves that ordering.
func buildOthers(channels []world.Channel, opts Options) []ChannelSummary {
	sortChannelsByActivity(channels)
	if len(channels) > opts.MaxOtherChannels {
		channels = channels[:opts.MaxOtherChannels]
	}
	var out []ChannelSummary
	for _, ch := range channels {
		summary := ChannelSummary{
			ID:           ch.ID,
			Name:         ch.Name,
			MessageCount: len(ch.Messages),
			LastActive:   ch.LastActive,
		}
		// Last few non-bot messages as snippets, oldest-first.
		const maxSnippets = 3
		for _, msg := range ch.Messages {
			if opts.BotSenderID != "" && msg.Sender.PlatformID == opts.BotSenderID {
				continue
			}
			summary.Snippets = append(summary.Snippets, Truncate(msg.Content, opts.SnippetLength))
		}
		if len(summary.Snippets) > maxSnippets {
			summary.Snippets = summary.Snippets[len(summary.Snippets)-maxSnippets:]
		}
		out = append(out, summary)
	}
	return out
}

func buildActions(actions []world.Action, limit int) []ActionEntry {
	if len(actions) > limit {
		actions = actions[len(actions)-limit:]
	}
	var out []ActionEntry
	for _, act := range actions {
		entry := ActionEntry{
			ID:        act.ID,
			Type:      act.Type,
			Target:    act.Target,
			Timestamp: act.Timestamp,
		}
		if status, ok := act.Result["status"].(string); ok {
			entry.Status = status
		}
		out = append(out, entry)
	}
	return out
}

// maxPrimaryContentRunes caps a single primary message before the shrink
// pass, so one pasted wall of text cannot dominate the payload.
const maxPrimaryContentRunes = 2000

// shrinkToFit drops detail until the serialized payload fits maxBytes:
// secondary channels first, then action history, then pending invites, then
// the oldest primary messages. The primary channel's newest message is never
// dropped; as a last resort its content is halved repeatedly, so the ceiling
// holds for any input and only the JSON envelope itself is irreducible.
func shrinkToFit(p Payload, maxBytes int) Payload {
	for {
		if EncodedSize(p) <= maxBytes {
			return p
		}
		switch {
		case len(p.Others) > 0:
			p.Others = p.Others[:len(p.Others)-1]
		case len(p.Actions) > 1:
			p.Actions = p.Actions[1:]
		case len(p.Invites) > 1:
			p.Invites = p.Invites[:len(p.Invites)-1]
		case p.Primary != nil && len(p.Primary.Messages) > 1:
			p.Primary.Messages = p.Primary.Messages[1:]
		case len(p.Actions) > 0:
			p.Actions = nil
		case len(p.Invites) > 0:
			p.Invites = nil
		case p.Primary != nil && len(p.Primary.Messages) == 1 && p.Primary.Messages[0].Content != "":
			m := &p.Primary.Messages[0]
			if half := len([]rune(m.Content)) / 2; half > 0 {
				m.Content = Truncate(m.Content, half)
			} else {
				m.Content = ""
			}
		default:
			return p
		}
	}
}

// EncodedSize reports the JSON-serialized size of the payload in bytes.
func EncodedSize(p Payload) int {
	data, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(data)
}
