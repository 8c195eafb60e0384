package communication

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/router"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
)

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

type base struct {
	name     string
	j        *journal
	startErr error
	stopErr  error
}

func (b *base) Name() string { return b.name }

func (b *base) Start(context.Context) error {
	b.j.add("start " + b.name)
	return b.startErr
}

func (b *base) Stop(context.Context) error {
	b.j.add("stop " + b.name)
	return b.stopErr
}

type fakeStrategy struct {
	base
	delivered []string
}

func (f *fakeStrategy) DeliverCommand(_ context.Context, inv *model.CommandInvocation) error {
	f.delivered = append(f.delivered, inv.ID)
	return nil
}

func (f *fakeStrategy) DeliverSystemCommand(context.Context, string, *model.SystemCommand) error {
	return nil
}

type fakeDestination struct{ base }

func (f *fakeDestination) DestinationID() string { return f.name }

func (f *fakeDestination) DeliverCommand(context.Context, *model.CommandExecution, *model.NestingContext, *model.DeviceAssignment) error {
	return nil
}

func (f *fakeDestination) DeliverSystemCommand(context.Context, *model.SystemCommand, *model.NestingContext, *model.DeviceAssignment) error {
	return nil
}

type fakeOutbound struct {
	base
	invocations []string
}

func (f *fakeOutbound) NotifyCommandInvocationRecorded(inv *model.CommandInvocation) {
	f.invocations = append(f.invocations, inv.ID)
}

func (f *fakeOutbound) NotifyBatchOperationRecorded(*model.BatchOperation) {}

type fakeRegistration struct{ base }

func (f *fakeRegistration) HandleRegistration(context.Context, *model.RegistrationRequest) error {
	return nil
}

type fakeBatch struct{ base }

func (f *fakeBatch) Process(context.Context, *model.BatchOperation) error { return nil }

type fakeInbound struct{ base }

func (f *fakeInbound) ProcessRegistration(context.Context, *model.RegistrationRequest) error {
	return nil
}

func (f *fakeInbound) ProcessCommandResponse(context.Context, *model.CommandResponse) error {
	return nil
}

type fakeSource struct{ base }

func (f *fakeSource) SourceID() string { return f.name }

type parts struct {
	j        *journal
	strategy *fakeStrategy
	dests    []*fakeDestination
	outbound *fakeOutbound
	reg      *fakeRegistration
	batch    *fakeBatch
	inbound  *fakeInbound
	source   *fakeSource
}

func newParts() *parts {
	j := &journal{}
	return &parts{
		j:        j,
		strategy: &fakeStrategy{base: base{name: "strategy", j: j}},
		dests: []*fakeDestination{
			{base{name: "mqtt", j: j}},
			{base{name: "s3", j: j}},
		},
		outbound: &fakeOutbound{base: base{name: "outbound", j: j}},
		reg:      &fakeRegistration{base{name: "registration", j: j}},
		batch:    &fakeBatch{base{name: "batch", j: j}},
		inbound:  &fakeInbound{base{name: "inbound", j: j}},
		source:   &fakeSource{base{name: "source", j: j}},
	}
}

func (p *parts) config() Config {
	dests := make([]core.CommandDestination, 0, len(p.dests))
	for _, d := range p.dests {
		dests = append(dests, d)
	}
	return Config{
		ProcessingStrategy:  p.strategy,
		Destinations:        dests,
		Router:              router.NewSingleChoice("mqtt"),
		OutboundStrategy:    p.outbound,
		RegistrationManager: p.reg,
		BatchManager:        p.batch,
		InboundStrategy:     p.inbound,
		InboundSources:      []core.InboundEventSource{p.source},
	}
}

func TestStartAndStopOrder(t *testing.T) {
	ctx := context.Background()
	p := newParts()
	s := NewSubsystem(p.config())

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, lifecycle.StateStarted, s.State())
	assert.Equal(t, []string{
		"start strategy", "start mqtt", "start s3", "start outbound",
		"start registration", "start batch", "start inbound", "start source",
	}, p.j.all())

	states := s.States()
	require.Len(t, states, 9)
	assert.Equal(t, "single-choice-router", states[3].Name)
	for _, st := range states {
		assert.Equal(t, lifecycle.StateStarted, st.State, st.Name)
	}

	p.j.events = nil
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, lifecycle.StateStopped, s.State())
	assert.Equal(t, []string{
		"stop source", "stop inbound", "stop batch", "stop registration",
		"stop outbound", "stop s3", "stop mqtt", "stop strategy",
	}, p.j.all())
}

func TestMissingRequiredComponentStartsNothing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"strategy", func(c *Config) { c.ProcessingStrategy = nil }},
		{"router", func(c *Config) { c.Router = nil }},
		{"outbound", func(c *Config) { c.OutboundStrategy = nil }},
		{"registration", func(c *Config) { c.RegistrationManager = nil }},
		{"batch", func(c *Config) { c.BatchManager = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newParts()
			cfg := p.config()
			tt.mutate(&cfg)

			s := NewSubsystem(cfg)
			err := s.Start(context.Background())

			assert.ErrorIs(t, err, core.ErrNotConfigured)
			assert.Empty(t, p.j.all())
			assert.Empty(t, s.States())
			assert.Equal(t, lifecycle.StateError, s.State())
		})
	}
}

func TestDestinationFailureAbortsStart(t *testing.T) {
	p := newParts()
	boom := errors.New("broker unreachable")
	p.dests[1].startErr = boom

	s := NewSubsystem(p.config())
	err := s.Start(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"start strategy", "start mqtt", "start s3", "stop s3", "stop mqtt", "stop strategy"}, p.j.all())
	assert.Empty(t, s.States())
}

func TestDuplicateDestinationIDs(t *testing.T) {
	p := newParts()
	p.dests[1].name = "mqtt"

	err := NewSubsystem(p.config()).Start(context.Background())
	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Empty(t, p.j.all())
}

func TestRouterInitializedWithDestinations(t *testing.T) {
	p := newParts()
	cfg := p.config()
	cfg.Router = router.NewSingleChoice("coap")

	err := NewSubsystem(cfg).Start(context.Background())
	assert.ErrorIs(t, err, core.ErrNoMatchingDestination)
}

func TestStopAttemptsEveryComponent(t *testing.T) {
	ctx := context.Background()
	p := newParts()
	p.batch.stopErr = errors.New("batch stuck")
	p.dests[0].stopErr = errors.New("mqtt stuck")

	s := NewSubsystem(p.config())
	require.NoError(t, s.Start(ctx))
	p.j.events = nil

	err := s.Stop(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch stuck")
	assert.Contains(t, err.Error(), "mqtt stuck")
	assert.Equal(t, []string{
		"stop source", "stop inbound", "stop batch", "stop registration",
		"stop outbound", "stop s3", "stop mqtt", "stop strategy",
	}, p.j.all())
}

func TestDeliveryRequiresRunningSubsystem(t *testing.T) {
	ctx := context.Background()
	p := newParts()
	s := NewSubsystem(p.config())

	inv := &model.CommandInvocation{ID: "inv-1"}
	assert.ErrorIs(t, s.DeliverCommand(ctx, inv), core.ErrNotRunning)
	assert.ErrorIs(t, s.DeliverSystemCommand(ctx, "dev", &model.SystemCommand{}), core.ErrNotRunning)
	s.NotifyCommandInvocationRecorded(inv)
	assert.Empty(t, p.outbound.invocations)

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.DeliverCommand(ctx, inv))
	s.NotifyCommandInvocationRecorded(inv)
	assert.Equal(t, []string{"inv-1"}, p.strategy.delivered)
	assert.Equal(t, []string{"inv-1"}, p.outbound.invocations)

	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.DeliverCommand(ctx, inv), core.ErrNotRunning)
}

func TestOptionalSourceFailureDoesNotAbortStart(t *testing.T) {
	p := newParts()
	p.source.startErr = errors.New("ingress broker down")

	s := NewSubsystem(p.config())
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, lifecycle.StateStarted, s.State())

	states := s.States()
	assert.Equal(t, lifecycle.StateError, states[len(states)-1].State)
}
