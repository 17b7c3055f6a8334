// Package interrupt implements the turn engine's pause/resume signal
// feature (spec §3 supplemented): a Controller the orchestrator polls at
// every turn boundary, letting an external caller suspend a run between
// turns and inject additional messages on resume. This is a plain
// Go-channel-based generalization of a Temporal-signal controller — the
// in-memory orchestrator.Orchestrator uses this implementation directly.
// The Temporal-backed temporalengine.RunWorkflow does not use it and takes
// no pause/resume signals.
package interrupt

import (
	"context"
	"errors"

	"github.com/loopforge/agentturn/agent"
)

// PauseRequest carries metadata attached to a pause request.
type PauseRequest struct {
	Reason      string
	RequestedBy string
	Metadata    map[string]any
}

// ResumeRequest carries metadata attached to a resume request. Additional
// lets a human or policy actor inject new seed messages before the turn
// loop resumes.
type ResumeRequest struct {
	Notes       string
	RequestedBy string
	Additional  *agent.SeedMessages
}

// Controller drains pause/resume requests for one run. A Controller is
// single-run-scoped and not safe to share across concurrent runs; callers
// construct one per orchestrator.Run invocation.
type Controller struct {
	pauseCh  chan PauseRequest
	resumeCh chan ResumeRequest
}

// NewController builds a ready-to-use Controller with single-slot buffering
// on each channel: at most one pause and one resume request may be pending
// at a time, matching the orchestrator's turn-boundary polling (a run is
// either running or paused, never both).
func NewController() *Controller {
	return &Controller{
		pauseCh:  make(chan PauseRequest, 1),
		resumeCh: make(chan ResumeRequest, 1),
	}
}

// Pause enqueues a pause request for the orchestrator to observe at its
// next turn boundary. Returns false if a pause request is already pending.
func (c *Controller) Pause(req PauseRequest) bool {
	if c == nil {
		return false
	}
	select {
	case c.pauseCh <- req:
		return true
	default:
		return false
	}
}

// PollPause dequeues a pending pause request without blocking.
func (c *Controller) PollPause() (PauseRequest, bool) {
	if c == nil {
		return PauseRequest{}, false
	}
	select {
	case req := <-c.pauseCh:
		return req, true
	default:
		return PauseRequest{}, false
	}
}

// Resume enqueues a resume request. Returns false if one is already
// pending (the caller should not resume a run twice before it observes the
// first resume).
func (c *Controller) Resume(req ResumeRequest) bool {
	if c == nil {
		return false
	}
	select {
	case c.resumeCh <- req:
		return true
	default:
		return false
	}
}

// WaitResume blocks until a resume request is delivered or ctx is done.
func (c *Controller) WaitResume(ctx context.Context) (ResumeRequest, error) {
	if c == nil {
		return ResumeRequest{}, errors.New("interrupt: controller unavailable")
	}
	select {
	case req := <-c.resumeCh:
		return req, nil
	case <-ctx.Done():
		return ResumeRequest{}, ctx.Err()
	}
}
