package orchestrator

import (
	"context"
)

// State is a step of request execution.
type State string

const (
	StateResolving         State = "resolving"
	StatePoolAcquired      State = "pool_acquired"
	StatePermissionChecked State = "permission_checked"
	StateExecuting         State = "executing"
	StateCommitted         State = "committed"
	StateRolledBack        State = "rolled_back"
	StateReleased          State = "released"
)

// Transition is a move between two states. Err is set on the final transition
// of a failed request.
type Transition struct {
	From          State
	To            State
	CorrelationID string
	Err           error
}

// TransitionHook observes state transitions. Hooks run synchronously on the
// request goroutine and must not block.
type TransitionHook func(ctx context.Context, t Transition)

type run struct {
	ctx           context.Context
	hooks         []TransitionHook
	state         State
	correlationID string
}

func (r *run) advance(to State, err error) {
	t := Transition{From: r.state, To: to, CorrelationID: r.correlationID, Err: err}
	r.state = to
	for _, hook := range r.hooks {
		hook(r.ctx, t)
	}
}
