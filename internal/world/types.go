package world

import "time"

type ChannelStatus string

const (
	StatusActive    ChannelStatus = "active"
	StatusInvited   ChannelStatus = "invited"
	StatusLeftByBot ChannelStatus = "left_by_bot"
	StatusKicked    ChannelStatus = "kicked"
	StatusBanned    ChannelStatus = "banned"
)

// Sender carries the platform identity of a message author. PlatformID is the
// Matrix user id or Farcaster FID as a string, depending on the channel type.
type Sender struct {
	PlatformID    string `json:"platform_id"`
	Username      string `json:"username,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	FollowerCount int    `json:"follower_count,omitempty"`
}

// Message is immutable once stored. Identity is (channel_id, id).
type Message struct {
	ID          string         `json:"id"`
	ChannelID   string         `json:"channel_id"`
	ChannelType string         `json:"channel_type"`
	Sender      Sender         `json:"sender"`
	Content     string         `json:"content"`
	ReplyTo     string         `json:"reply_to,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Channel is one platform room or feed. Messages is newest-last and bounded
// by the state's MaxMessagesPerChannel limit.
type Channel struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	Name             string         `json:"name,omitempty"`
	Status           ChannelStatus  `json:"status"`
	Messages         []Message      `json:"recent_messages"`
	LastActive       time.Time      `json:"last_active"`
	LastStatusUpdate time.Time      `json:"last_status_update"`
	LastChecked      time.Time      `json:"last_checked"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Action is a history entry for a dispatched action. It is the only entity
// that may be mutated after creation: an async platform confirmation updates
// the entry in place under the same id.
type Action struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Target     string         `json:"target,omitempty"`
	Updatable  bool           `json:"updatable,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Invite is a pending room invite, keyed by RoomID. A repeat invite for the
// same room refreshes the existing entry instead of duplicating it.
type Invite struct {
	RoomID     string         `json:"room_id"`
	Inviter    string         `json:"inviter"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Limits bound the in-memory collections. Zero values fall back to defaults.
type Limits struct {
	MaxMessagesPerChannel int
	MaxActionHistory      int
}

const (
	defaultMaxMessagesPerChannel = 10
	defaultMaxActionHistory      = 5
)

func (l Limits) withDefaults() Limits {
	if l.MaxMessagesPerChannel <= 0 {
		l.MaxMessagesPerChannel = defaultMaxMessagesPerChannel
	}
	if l.MaxActionHistory <= 0 {
		l.MaxActionHistory = defaultMaxActionHistory
	}
	return l
}
