package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning callback to fsm.Callback. A non-nil
// error is recorded on the event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// IsInvalidTransition reports whether err was returned because the event is
// not allowed from the current state.
func IsInvalidTransition(err error) bool {
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	return errors.As(err, &invalid) || errors.As(err, &noTransition)
}
