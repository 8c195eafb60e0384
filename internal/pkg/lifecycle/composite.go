package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/autopeer-io/commhub/pkg/log"
)

// ErrNotConfigured is returned when a required nested component is missing.
var ErrNotConfigured = errors.New("required component not configured")

// Nested is one entry in a composite's start order.
type Nested struct {
	// Name identifies the entry in logs and errors; it is used when Component is nil.
	Name      string
	Component Component
	// Required entries must be configured and must start successfully.
	// A failed optional entry is logged and skipped.
	Required bool
}

// ComponentState is a point-in-time view of a nested component.
type ComponentState struct {
	Name  string `json:"name"`
	State State  `json:"state"`
}

type entry struct {
	component Component
	tracker   *Tracker
}

// Composite starts nested components in order and stops them in reverse.
// Start is fail-fast for required entries and unwinds what it already
// started; Stop is best-effort and aggregates errors.
type Composite struct {
	name   string
	logger log.Logger

	mu      sync.Mutex
	entries []*entry
}

// NewComposite returns an empty composite.
func NewComposite(name string) *Composite {
	return &Composite{name: name, logger: log.WithName(name)}
}

// Start starts nested in order.
func (c *Composite) Start(ctx context.Context, nested []Nested) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) > 0 {
		return fmt.Errorf("%w: %s is already running", ErrInvalidTransition, c.name)
	}

	var missing []error
	for _, n := range nested {
		if n.Required && n.Component == nil {
			missing = append(missing, fmt.Errorf("%w: %s", ErrNotConfigured, n.Name))
		}
	}
	if len(missing) > 0 {
		return utilerrors.NewAggregate(missing)
	}

	for _, n := range nested {
		if n.Component == nil {
			continue
		}

		e := &entry{component: n.Component, tracker: NewTracker(n.Component.Name())}
		c.entries = append(c.entries, e)

		c.logger.Debug("Starting nested component", "component", e.tracker.Name())
		if err := e.tracker.Start(ctx, n.Component.Start); err != nil {
			if !n.Required {
				c.logger.Error(err, "Optional component failed to start, continuing", "component", e.tracker.Name())
				continue
			}

			c.logger.Error(err, "Required component failed to start, unwinding", "component", e.tracker.Name())
			if stopErr := c.stopLocked(ctx); stopErr != nil {
				c.logger.Error(stopErr, "Errors while unwinding partial start")
			}
			return fmt.Errorf("failed to start %s: %w", e.tracker.Name(), err)
		}
	}

	return nil
}

// Stop stops every attempted component in reverse start order. A failure
// never prevents the remaining components from being stopped.
func (c *Composite) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stopLocked(ctx)
}

func (c *Composite) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		c.logger.Debug("Stopping nested component", "component", e.tracker.Name())
		if err := e.tracker.Stop(ctx, e.component.Stop); err != nil {
			c.logger.Error(err, "Failed to stop component", "component", e.tracker.Name())
			errs = append(errs, fmt.Errorf("%s: %w", e.tracker.Name(), err))
		}
	}
	c.entries = nil
	return utilerrors.NewAggregate(errs)
}

// States reports the nested components in start order.
func (c *Composite) States() []ComponentState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ComponentState, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, ComponentState{Name: e.tracker.Name(), State: e.tracker.State()})
	}
	return out
}
