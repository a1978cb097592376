// Package orchestrator drives the observation cycle: collect platform
// events, fold them into the world state, build the AI payload, ask for a
// decision, execute it, throttle, repeat. All world mutation happens on this
// one goroutine.
package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/atimics/matrixbot-sub000/internal/ai"
	"github.com/atimics/matrixbot-sub000/internal/executor"
	"github.com/atimics/matrixbot-sub000/internal/journal"
	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/payload"
	"github.com/atimics/matrixbot-sub000/internal/tool"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

type Orchestrator struct {
	World     *world.State
	Observers []observer.Observer
	Registry  *tool.Registry
	Decider   ai.Decider
	Executor  *executor.Executor
	Journal   *journal.Journal // optional
	Limiter   *Limiter

	// PayloadOptions bound the AI payload; PrimaryChannelID pins the primary
	// channel, otherwise the most recently active one is chosen per cycle.
	PayloadOptions   payload.Options
	PrimaryChannelID string

	// DecideTimeout bounds the AI call; CollectTimeout bounds each observer
	// poll. Zero values get defaults.
	DecideTimeout  time.Duration
	CollectTimeout time.Duration

	// InviteTTL expires pending invites the bot never acted on; zero keeps
	// them until accepted or declined.
	InviteTTL time.Duration

	cycle int64
}

// Report summarizes one completed cycle for logs and the event feed.
type Report struct {
	Cycle      int64            `json:"cycle"`
	Collected  int              `json:"collected"`
	Duplicates int              `json:"duplicates"`
	Invalid    int              `json:"invalid,omitempty"`
	Primary    string           `json:"primary_channel,omitempty"`
	Decision   ai.Decision      `json:"decision"`
	Outcome    executor.Outcome `json:"outcome"`
	Elapsed    time.Duration    `json:"elapsed"`
}

const (
	defaultDecideTimeout  = 90 * time.Second
	defaultCollectTimeout = 30 * time.Second
)

// Run starts the observers and loops until ctx is cancelled. Cancellation is
// honored between steps, so the world state is never left mid-mutation.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, obs := range o.Observers {
		if err := obs.Start(ctx); err != nil {
			return err
		}
	}
	defer o.stopObservers()

	for {
		if delay := o.Limiter.Delay(); delay > 0 {
			if !sleep(ctx, delay) {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		o.Limiter.Record()

		report := o.RunCycle(ctx)
		log.Printf("cycle %d: events=%d dups=%d invalid=%d tool=%s status=%s",
			report.Cycle, report.Collected, report.Duplicates, report.Invalid,
			report.Outcome.Tool, report.Outcome.Result.Status)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (o *Orchestrator) stopObservers() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, obs := range o.Observers {
		if err := obs.Stop(ctx); err != nil {
			log.Printf("stop observer %s: %v", obs.Name(), err)
		}
	}
}

// RunCycle performs one COLLECT → UPDATE_STATE → BUILD_PAYLOAD → DECIDE →
// EXECUTE pass. Every failure inside the cycle degrades (dropped event, wait
// decision, recorded failure); nothing aborts the loop.
func (o *Orchestrator) RunCycle(ctx context.Context) Report {
	start := time.Now()
	o.cycle++
	report := Report{Cycle: o.cycle}

	events := o.collect(ctx)
	report.Collected = len(events)
	report.Duplicates, report.Invalid = o.updateState(events)

	if o.InviteTTL > 0 {
		if n := o.World.ExpireInvites(o.InviteTTL); n > 0 {
			log.Printf("expired %d stale invites", n)
		}
	}

	primary := o.PrimaryChannelID
	if primary == "" {
		primary, _ = o.World.MostActiveChannel()
	}
	report.Primary = primary
	p := payload.Build(o.World.Snapshot(), primary, o.PayloadOptions)

	report.Decision = o.decide(ctx, p)
	report.Outcome = o.Executor.Execute(ctx, report.Decision)
	report.Elapsed = time.Since(start)

	o.journalEvent(ctx, "cycle", report.Outcome.Tool, report.Decision.Reasoning, map[string]any{
		"cycle":      report.Cycle,
		"collected":  report.Collected,
		"duplicates": report.Duplicates,
		"invalid":    report.Invalid,
		"primary":    report.Primary,
		"tool":       report.Outcome.Tool,
		"status":     report.Outcome.Result.Status,
		"action_id":  report.Outcome.ActionID,
		"elapsed_ms": report.Elapsed.Milliseconds(),
	})
	return report
}

func (o *Orchestrator) collect(ctx context.Context) []observer.Event {
	timeout := o.CollectTimeout
	if timeout <= 0 {
		timeout = defaultCollectTimeout
	}
	var events []observer.Event
	for _, obs := range o.Observers {
		pollCtx, cancel := context.WithTimeout(ctx, timeout)
		batch, err := obs.PollEvents(pollCtx)
		cancel()
		if err != nil {
			log.Printf("poll %s: %v", obs.Name(), err)
			o.journalEvent(ctx, "observer_error", obs.Name(), err.Error(), nil)
			continue
		}
		events = append(events, batch...)
	}
	return events
}

// updateState folds events into the world state. Duplicate messages and
// malformed events (nil payload, unknown kind) are dropped silently by
// contract; the two kinds of drop are counted apart.
func (o *Orchestrator) updateState(events []observer.Event) (duplicates, invalid int) {
	for _, evt := range events {
		switch evt.Kind {
		case observer.KindMessage:
			if evt.Message == nil {
				invalid++
				continue
			}
			if !o.World.AddMessage(evt.Message.ChannelID, *evt.Message) {
				duplicates++
			}
		case observer.KindInvite:
			if evt.Invite == nil {
				invalid++
				continue
			}
			o.World.AddPendingInvite(*evt.Invite)
			o.World.UpdateChannelStatus(evt.Invite.RoomID, world.StatusInvited)
		case observer.KindMembership:
			if evt.Membership == nil {
				invalid++
				continue
			}
			o.World.UpdateChannelStatus(evt.Membership.ChannelID, evt.Membership.Status)
		default:
			invalid++
		}
	}
	return duplicates, invalid
}

// decide asks the AI for an action. Transport or parse trouble falls back to
// a wait decision; the cycle always has something to execute.
func (o *Orchestrator) decide(ctx context.Context, p payload.Payload) ai.Decision {
	if o.Decider == nil {
		return ai.Wait("no decider configured")
	}
	timeout := o.DecideTimeout
	if timeout <= 0 {
		timeout = defaultDecideTimeout
	}
	decideCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d, err := o.Decider.Decide(decideCtx, p, o.Registry.DescribeAll())
	if err != nil {
		log.Printf("decide: %v", err)
		o.journalEvent(ctx, "decide_error", "", err.Error(), nil)
		return ai.Wait("decision step failed")
	}
	return d
}

func (o *Orchestrator) journalEvent(ctx context.Context, kind, subject, body string, data map[string]any) {
	if o.Journal == nil {
		return
	}
	if _, err := o.Journal.AppendEvent(ctx, kind, subject, body, data); err != nil {
		log.Printf("journal event %s: %v", kind, err)
	}
}

// sleep waits for d or until ctx is done; it reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
