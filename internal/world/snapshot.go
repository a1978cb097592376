package world

import (
	"sort"
	"time"
)

// Snapshot is a deep copy of the world state taken under a read lock. It is
// safe to hold and serialize while the cycle keeps mutating the live state.
type Snapshot struct {
	Channels []Channel `json:"channels"`
	Actions  []Action  `json:"actions"` // oldest-first, dispatch order
	Invites  []Invite  `json:"pending_invites,omitempty"`
	TakenAt  time.Time `json:"taken_at"`
}

// Snapshot copies channels (sorted by id), the action history, and pending
// invites. Nested maps are copied one level deep, which covers every mutation
// path the state exposes.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{TakenAt: time.Now().UTC()}

	snap.Channels = make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		snap.Channels = append(snap.Channels, copyChannel(ch))
	}
	sort.Slice(snap.Channels, func(i, j int) bool {
		return snap.Channels[i].ID < snap.Channels[j].ID
	})

	snap.Actions = make([]Action, 0, len(s.actions))
	for _, act := range s.actions {
		snap.Actions = append(snap.Actions, copyAction(act))
	}

	for _, inv := range s.invites {
		snap.Invites = append(snap.Invites, copyInvite(inv))
	}
	sort.Slice(snap.Invites, func(i, j int) bool {
		return snap.Invites[i].RoomID < snap.Invites[j].RoomID
	})

	return snap
}

// Channel returns a copy of one channel record.
func (s *State) Channel(channelID string) (Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return Channel{}, false
	}
	return copyChannel(ch), true
}

// Actions returns a copy of the history, oldest-first.
func (s *State) Actions() []Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Action, 0, len(s.actions))
	for _, act := range s.actions {
		out = append(out, copyAction(act))
	}
	return out
}

func copyChannel(ch *Channel) Channel {
	out := *ch
	out.Messages = make([]Message, len(ch.Messages))
	for i, msg := range ch.Messages {
		out.Messages[i] = msg
		out.Messages[i].Metadata = copyMap(msg.Metadata)
	}
	out.Metadata = copyMap(ch.Metadata)
	return out
}

func copyAction(act *Action) Action {
	out := *act
	out.Parameters = copyMap(act.Parameters)
	out.Result = copyMap(act.Result)
	return out
}

func copyInvite(inv Invite) Invite {
	inv.Metadata = copyMap(inv.Metadata)
	return inv
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
