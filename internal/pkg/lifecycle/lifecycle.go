// Package lifecycle tracks start/stop state of long-lived components and
// sequences nested components inside a composite.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	fsmutil "github.com/autopeer-io/commhub/internal/pkg/util/fsm"
	"github.com/autopeer-io/commhub/pkg/log"
)

// State is the lifecycle state of a component.
type State string

const (
	StateStopped  State = "Stopped"
	StateStarting State = "Starting"
	StateStarted  State = "Started"
	StateStopping State = "Stopping"
	StateError    State = "Error"
)

const (
	eventStart   = "start"
	eventStarted = "started"
	eventStop    = "stop"
	eventStopped = "stopped"
	eventFail    = "fail"
)

// ErrInvalidTransition is returned when Start or Stop is called from a state
// that does not allow it.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Component is anything with setup and teardown.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Tracker records the state of a single component across Start and Stop calls.
type Tracker struct {
	name string
	mu   sync.Mutex
	fsm  *fsm.FSM
}

// NewTracker returns a tracker in StateStopped.
func NewTracker(name string) *Tracker {
	t := &Tracker{name: name}

	events := fsm.Events{
		{Name: eventStart, Src: []string{string(StateStopped), string(StateError)}, Dst: string(StateStarting)},
		{Name: eventStarted, Src: []string{string(StateStarting)}, Dst: string(StateStarted)},
		{Name: eventStop, Src: []string{string(StateStarted), string(StateStarting), string(StateError)}, Dst: string(StateStopping)},
		{Name: eventStopped, Src: []string{string(StateStopping)}, Dst: string(StateStopped)},
		{Name: eventFail, Src: []string{string(StateStarting), string(StateStopping)}, Dst: string(StateError)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(t.onEnterState),
	}

	t.fsm = fsm.NewFSM(string(StateStopped), events, callbacks)
	return t
}

// Name returns the tracked component name.
func (t *Tracker) Name() string {
	return t.name
}

// State returns the current state.
func (t *Tracker) State() State {
	return State(t.fsm.Current())
}

// Start moves to Starting, runs fn and settles in Started or Error.
func (t *Tracker) Start(ctx context.Context, fn func(context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.fire(ctx, eventStart); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = t.fire(ctx, eventFail)
		return err
	}
	return t.fire(ctx, eventStarted)
}

// Stop moves to Stopping, runs fn and settles in Stopped or Error.
// Stopping a stopped component is a no-op.
func (t *Tracker) Stop(ctx context.Context, fn func(context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.State() == StateStopped {
		return nil
	}
	if err := t.fire(ctx, eventStop); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = t.fire(ctx, eventFail)
		return err
	}
	return t.fire(ctx, eventStopped)
}

func (t *Tracker) fire(ctx context.Context, event string) error {
	if err := t.fsm.Event(ctx, event); err != nil {
		if fsmutil.IsInvalidTransition(err) {
			return fmt.Errorf("%w: %s cannot %s from %s", ErrInvalidTransition, t.name, event, t.fsm.Current())
		}
		return err
	}
	return nil
}

func (t *Tracker) onEnterState(_ context.Context, e *fsm.Event) error {
	log.Debug("Lifecycle state changed", "component", t.name, "from", e.Src, "to", e.Dst)
	return nil
}
