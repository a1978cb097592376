package world

import (
	"sort"
	"sync"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/idgen"
)

// State is the in-memory world model the orchestrator reasons over. There is
// a single writer (the observation cycle); external readers take snapshots
// under a read lock and never block the writer for longer than a copy.
type State struct {
	mu     sync.RWMutex
	limits Limits

	channels map[string]*Channel
	dedup    map[string]*dedupWindow // per-channel message id window

	actions   []*Action
	byID      map[string]*Action
	performed map[string]string // (type, target) -> action id

	invites map[string]Invite
}

func NewState(limits Limits) *State {
	return &State{
		limits:    limits.withDefaults(),
		channels:  map[string]*Channel{},
		dedup:     map[string]*dedupWindow{},
		byID:      map[string]*Action{},
		performed: map[string]string{},
		invites:   map[string]Invite{},
	}
}

// dedupWindow remembers recently seen message ids for one channel. It holds
// several multiples of the channel's retention cap so ids evicted from
// recent_messages still reject re-delivery from observers that re-offer a
// trailing window of platform history, while total memory stays bounded.
type dedupWindow struct {
	cap   int
	ids   map[string]struct{}
	order []string
}

func newDedupWindow(messageCap int) *dedupWindow {
	return &dedupWindow{cap: 8 * messageCap, ids: map[string]struct{}{}}
}

// admit returns false when the id was seen before, true (and records the id)
// otherwise.
func (w *dedupWindow) admit(id string) bool {
	if _, dup := w.ids[id]; dup {
		return false
	}
	w.ids[id] = struct{}{}
	w.order = append(w.order, id)
	for len(w.order) > w.cap {
		delete(w.ids, w.order[0])
		w.order = w.order[1:]
	}
	return true
}

func performedKey(actionType, target string) string {
	return actionType + "\x00" + target
}

// AddMessage stores a message in its channel, creating the channel record if
// absent. It returns false and mutates nothing when the (channel_id, id) pair
// is a duplicate. When the channel bound is exceeded the oldest message is
// evicted first.
func (s *State) AddMessage(channelID string, msg Message) bool {
	if channelID == "" || msg.ID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	win, ok := s.dedup[channelID]
	if !ok {
		win = newDedupWindow(s.limits.MaxMessagesPerChannel)
		s.dedup[channelID] = win
	}
	if !win.admit(msg.ID) {
		return false
	}

	ch := s.channelLocked(channelID, msg.ChannelType)
	msg.ChannelID = channelID
	ch.Messages = append(ch.Messages, msg)
	if n := len(ch.Messages); n > s.limits.MaxMessagesPerChannel {
		ch.Messages = ch.Messages[n-s.limits.MaxMessagesPerChannel:]
	}
	if msg.Timestamp.After(ch.LastActive) {
		ch.LastActive = msg.Timestamp
	}
	ch.LastChecked = time.Now().UTC()
	return true
}

// channelLocked returns the channel record, creating it lazily. Callers hold
// the write lock.
func (s *State) channelLocked(channelID, channelType string) *Channel {
	if ch, ok := s.channels[channelID]; ok {
		if ch.Type == "" {
			ch.Type = channelType
		}
		return ch
	}
	ch := &Channel{
		ID:     channelID,
		Type:   channelType,
		Status: StatusActive,
	}
	s.channels[channelID] = ch
	return ch
}

// ActionInput describes a history entry to record. An empty ID gets a fresh
// one assigned; Target feeds the has-performed index for social actions.
type ActionInput struct {
	ID         string
	Type       string
	Parameters map[string]any
	Result     map[string]any
	Target     string
	Updatable  bool
}

// AddActionResult appends an entry to the bounded action history and returns
// its id. The oldest entry is evicted on overflow, together with its rows in
// the id and performed indexes.
func (s *State) AddActionResult(in ActionInput) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := in.ID
	if id == "" {
		id = idgen.Action()
	}
	now := time.Now().UTC()
	act := &Action{
		ID:         id,
		Type:       in.Type,
		Parameters: in.Parameters,
		Result:     in.Result,
		Target:     in.Target,
		Updatable:  in.Updatable,
		Timestamp:  now,
		UpdatedAt:  now,
	}
	s.actions = append(s.actions, act)
	s.byID[id] = act
	if in.Target != "" {
		s.performed[performedKey(in.Type, in.Target)] = id
	}

	for len(s.actions) > s.limits.MaxActionHistory {
		old := s.actions[0]
		s.actions = s.actions[1:]
		delete(s.byID, old.ID)
		if old.Target != "" {
			key := performedKey(old.Type, old.Target)
			if s.performed[key] == old.ID {
				delete(s.performed, key)
			}
		}
	}
	return id
}

// UpdateActionResult mutates an existing history entry in place; this is the
// only post-creation mutation path for actions. Extra keys are merged into
// the result. Returns false when the id is unknown (e.g. already evicted).
func (s *State) UpdateActionResult(actionID string, result map[string]any, extra map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	act, ok := s.byID[actionID]
	if !ok {
		return false
	}
	if result != nil {
		act.Result = result
	}
	if len(extra) > 0 {
		if act.Result == nil {
			act.Result = map[string]any{}
		}
		for k, v := range extra {
			act.Result[k] = v
		}
	}
	act.UpdatedAt = time.Now().UTC()
	return true
}

// HasPerformed reports whether an action of the given type was already
// recorded against the given target (cast hash, user id, ...). Lookup is a
// single map probe; the index is pruned in step with history eviction.
func (s *State) HasPerformed(actionType, target string) bool {
	if target == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.performed[performedKey(actionType, target)]
	return ok
}

// AddPendingInvite records an invite, deduplicating by room id: a repeat
// invite refreshes the stored metadata and timestamp instead of duplicating.
func (s *State) AddPendingInvite(inv Invite) {
	if inv.RoomID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ReceivedAt.IsZero() {
		inv.ReceivedAt = time.Now().UTC()
	}
	s.invites[inv.RoomID] = inv
}

func (s *State) RemovePendingInvite(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invites[roomID]; !ok {
		return false
	}
	delete(s.invites, roomID)
	return true
}

// PendingInvites returns invites ordered oldest-first, ties broken by room id.
func (s *State) PendingInvites() []Invite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Invite, 0, len(s.invites))
	for _, inv := range s.invites {
		out = append(out, copyInvite(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].ReceivedAt.Before(out[j].ReceivedAt)
	})
	return out
}

// ExpireInvites removes pending invites received more than maxAge ago and
// reports how many were dropped. A stale invite the bot never acted on is not
// worth surfacing forever; the platform rejects the join anyway once the
// invite lapses server-side.
func (s *State) ExpireInvites(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxAge)
	n := 0
	for roomID, inv := range s.invites {
		if inv.ReceivedAt.Before(cutoff) {
			delete(s.invites, roomID)
			n++
		}
	}
	return n
}

// UpdateChannelStatus sets a channel's membership status, creating the record
// if needed. It is idempotent: re-applying the current status does not bump
// the status timestamp.
func (s *State) UpdateChannelStatus(channelID string, status ChannelStatus) {
	if channelID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.channelLocked(channelID, "")
	if ch.Status == status {
		return
	}
	ch.Status = status
	ch.LastStatusUpdate = time.Now().UTC()
}

// SetChannelName records a display name for the channel without touching
// activity timestamps.
func (s *State) SetChannelName(channelID, name string) {
	if channelID == "" || name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelLocked(channelID, "").Name = name
}

// MostActiveChannel returns the channel with the most recent message
// activity. Ties break on ascending channel id so selection is deterministic.
func (s *State) MostActiveChannel() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	best := ""
	var bestAt time.Time
	for id, ch := range s.channels {
		if len(ch.Messages) == 0 {
			continue
		}
		if best == "" || ch.LastActive.After(bestAt) ||
			(ch.LastActive.Equal(bestAt) && id < best) {
			best = id
			bestAt = ch.LastActive
		}
	}
	return best, best != ""
}
