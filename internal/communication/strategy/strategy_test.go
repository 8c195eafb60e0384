package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/execution"
	"github.com/autopeer-io/commhub/internal/communication/router"
	"github.com/autopeer-io/commhub/internal/communication/store"
)

type recordingDestination struct {
	id  string
	err error

	executions []*model.CommandExecution
	system     []*model.SystemCommand
	nesting    []*model.NestingContext
	assigned   []*model.DeviceAssignment
}

func (d *recordingDestination) Name() string                { return d.id }
func (d *recordingDestination) Start(context.Context) error { return nil }
func (d *recordingDestination) Stop(context.Context) error  { return nil }
func (d *recordingDestination) DestinationID() string       { return d.id }

func (d *recordingDestination) DeliverCommand(_ context.Context, exec *model.CommandExecution, nc *model.NestingContext, asg *model.DeviceAssignment) error {
	d.executions = append(d.executions, exec)
	d.nesting = append(d.nesting, nc)
	d.assigned = append(d.assigned, asg)
	return d.err
}

func (d *recordingDestination) DeliverSystemCommand(_ context.Context, cmd *model.SystemCommand, nc *model.NestingContext, asg *model.DeviceAssignment) error {
	d.system = append(d.system, cmd)
	d.nesting = append(d.nesting, nc)
	d.assigned = append(d.assigned, asg)
	return d.err
}

type fixture struct {
	repo     *store.Memory
	mqtt     *recordingDestination
	mailbox  *recordingDestination
	strategy *Strategy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := store.NewMemory()
	require.NoError(t, repo.CreateDevice(ctx, &model.Device{HardwareID: "gw-1", SpecificationToken: "gateway"}))
	require.NoError(t, repo.CreateDevice(ctx, &model.Device{HardwareID: "sensor-1", SpecificationToken: "tracker", ParentHardwareID: "gw-1", MappingPath: "/bus/3"}))
	require.NoError(t, repo.CreateAssignment(ctx, &model.DeviceAssignment{Token: "asg-gw", HardwareID: "gw-1"}))
	require.NoError(t, repo.CreateAssignment(ctx, &model.DeviceAssignment{Token: "asg-sensor", HardwareID: "sensor-1"}))
	require.NoError(t, repo.CreateCommand(ctx, &model.DeviceCommand{
		Token:      "set-interval",
		Name:       "setInterval",
		Parameters: []model.CommandParameter{{Name: "seconds", Type: model.ParameterTypeInt32, Required: true}},
	}))

	mqtt := &recordingDestination{id: "mqtt"}
	mailbox := &recordingDestination{id: "mailbox"}
	dests := []core.CommandDestination{mqtt, mailbox}

	r := router.NewSpecificationMapping(map[string]string{"tracker": "mailbox"}, "mqtt")
	require.NoError(t, r.Initialize(dests))

	s := New(repo, execution.NewBuilder(), r, dests)
	require.NoError(t, s.Start(ctx))

	return &fixture{repo: repo, mqtt: mqtt, mailbox: mailbox, strategy: s}
}

func TestDeliverCommandRoutesNestedDevice(t *testing.T) {
	f := newFixture(t)

	err := f.strategy.DeliverCommand(context.Background(), &model.CommandInvocation{
		ID:              "inv-1",
		CommandToken:    "set-interval",
		AssignmentToken: "asg-sensor",
		ParameterValues: map[string]string{"seconds": "30"},
	})
	require.NoError(t, err)

	assert.Empty(t, f.mqtt.executions)
	require.Len(t, f.mailbox.executions, 1)
	assert.Equal(t, int32(30), f.mailbox.executions[0].Parameters["seconds"])

	nc := f.mailbox.nesting[0]
	assert.Equal(t, "sensor-1", nc.Nested.HardwareID)
	require.NotNil(t, nc.Gateway)
	assert.Equal(t, "gw-1", nc.Gateway.HardwareID)
	assert.Equal(t, "/bus/3", nc.Path)
	assert.Equal(t, "asg-sensor", f.mailbox.assigned[0].Token)
}

func TestDeliverCommandPropagatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		invocation *model.CommandInvocation
		want       error
	}{
		{
			name:       "unknown command",
			invocation: &model.CommandInvocation{CommandToken: "nope", AssignmentToken: "asg-gw"},
			want:       core.ErrNotFound,
		},
		{
			name:       "missing parameter",
			invocation: &model.CommandInvocation{CommandToken: "set-interval", AssignmentToken: "asg-gw"},
			want:       core.ErrMissingRequiredParameter,
		},
		{
			name: "conversion",
			invocation: &model.CommandInvocation{
				CommandToken: "set-interval", AssignmentToken: "asg-gw",
				ParameterValues: map[string]string{"seconds": "soon"},
			},
			want: core.ErrParameterConversionFailed,
		},
		{
			name: "unknown assignment",
			invocation: &model.CommandInvocation{
				CommandToken: "set-interval", AssignmentToken: "nope",
				ParameterValues: map[string]string{"seconds": "1"},
			},
			want: core.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, f.strategy.DeliverCommand(ctx, tt.invocation), tt.want)
		})
	}
	assert.Empty(t, f.mqtt.executions)
	assert.Empty(t, f.mailbox.executions)
}

func TestDeliverCommandReturnsDestinationError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("broker gone")
	f.mqtt.err = boom

	err := f.strategy.DeliverCommand(context.Background(), &model.CommandInvocation{
		CommandToken: "set-interval", AssignmentToken: "asg-gw",
		ParameterValues: map[string]string{"seconds": "5"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestDeliverSystemCommand(t *testing.T) {
	f := newFixture(t)
	ack := &model.SystemCommand{Type: model.SystemCommandRegistrationAck, Reason: model.ReasonAlreadyRegistered}

	require.NoError(t, f.strategy.DeliverSystemCommand(context.Background(), "gw-1", ack))
	require.Len(t, f.mqtt.system, 1)
	assert.Equal(t, "asg-gw", f.mqtt.assigned[0].Token)
	assert.Nil(t, f.mqtt.nesting[0].Gateway)
}

func TestDeliverSystemCommandToUnknownDevice(t *testing.T) {
	f := newFixture(t)
	failure := &model.SystemCommand{Type: model.SystemCommandRegistrationFailure, ErrorType: model.ErrorTypeNewDevicesNotAllowed}

	require.NoError(t, f.strategy.DeliverSystemCommand(context.Background(), "stranger", failure))
	require.Len(t, f.mqtt.system, 1)
	assert.Nil(t, f.mqtt.assigned[0])
	assert.Equal(t, "stranger", f.mqtt.nesting[0].Nested.HardwareID)
}

func TestStartRejectsDuplicateDestinations(t *testing.T) {
	a := &recordingDestination{id: "same"}
	b := &recordingDestination{id: "same"}

	s := New(store.NewMemory(), execution.NewBuilder(), router.NewSingleChoice("same"), []core.CommandDestination{a, b})
	assert.ErrorIs(t, s.Start(context.Background()), core.ErrNotConfigured)
}

func TestStartRequiresCollaborators(t *testing.T) {
	err := New(nil, nil, nil, nil).Start(context.Background())
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}
