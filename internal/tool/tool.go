// Package tool holds the registry of actions the AI may select, each with a
// JSON-Schema-style parameter description validated before dispatch.
package tool

import (
	"context"
	"fmt"

	"github.com/atimics/matrixbot-sub000/internal/observer"
	"github.com/atimics/matrixbot-sub000/internal/world"
)

// Context is what a tool handler gets to act with: read/write access to the
// world state and the platform observers, keyed by observer name. Handlers
// run on the cycle goroutine, so world access needs no extra coordination.
type Context struct {
	World     *world.State
	Observers map[string]observer.Observer
}

// ObserverFor returns the observer for a channel type ("matrix",
// "farcaster"), or an error naming what is missing.
func (c *Context) ObserverFor(platform string) (observer.Observer, error) {
	obs, ok := c.Observers[platform]
	if !ok || obs == nil {
		return nil, fmt.Errorf("no observer registered for platform %q", platform)
	}
	return obs, nil
}

// Handler executes a validated tool call. Parameters have already passed
// schema validation; handlers still own semantic checks (unknown channel,
// empty content after trimming, ...).
type Handler func(ctx context.Context, params map[string]any, tc *Context) Result

// Definition is one registered tool. Target, when set, extracts the dedup
// key for externally visible social actions so a like/follow/reply is never
// repeated against the same target.
type Definition struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
	Target      func(params map[string]any) string
	// Updatable marks actions whose recorded result may later be amended in
	// place by an async platform confirmation.
	Updatable bool
}

// Description is the AI-facing view of a tool.
type Description struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"parameters"`
}
