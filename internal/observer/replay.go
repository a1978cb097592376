package observer

import (
	"context"
	"sync"
)

// Replay is a scripted observer: each PollEvents call returns the next
// queued batch. It records every SendAction request, which makes it the
// standard fake for cycle and tool tests, and backs the demo wiring.
type Replay struct {
	name string

	mu      sync.Mutex
	batches [][]Event
	sent    []ActionRequest
	started bool
}

func NewReplay(name string, batches ...[]Event) *Replay {
	return &Replay{name: name, batches: batches}
}

func (r *Replay) Name() string { return r.name }

func (r *Replay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	return nil
}

func (r *Replay) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	return nil
}

// Enqueue appends another batch for a later poll.
func (r *Replay) Enqueue(batch []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *Replay) PollEvents(ctx context.Context) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil, nil
	}
	batch := r.batches[0]
	r.batches = r.batches[1:]
	return batch, nil
}

func (r *Replay) SendAction(ctx context.Context, req ActionRequest) (ActionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, req)
	return ActionResult{PlatformID: "replay-" + req.Kind}, nil
}

// Sent returns a copy of every action request seen so far.
func (r *Replay) Sent() []ActionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ActionRequest, len(r.sent))
	copy(out, r.sent)
	return out
}
