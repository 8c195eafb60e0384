package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/communication/store"
	pkgmqtt "github.com/autopeer-io/commhub/pkg/mqtt"
	"github.com/autopeer-io/commhub/pkg/mqtt/topic"
)

type fakeClient struct {
	pkgmqtt.Client

	awaitErr     error
	handlers     map[string]pkgmqtt.MessageHandler
	unsubscribed []string
	disconnected bool
}

func (f *fakeClient) Start(context.Context) error           { return nil }
func (f *fakeClient) AwaitConnection(context.Context) error { return f.awaitErr }
func (f *fakeClient) Disconnect(context.Context)            { f.disconnected = true }

func (f *fakeClient) Subscribe(_ context.Context, filter string, _ int, h pkgmqtt.MessageHandler) error {
	if f.handlers == nil {
		f.handlers = make(map[string]pkgmqtt.MessageHandler)
	}
	f.handlers[filter] = h
	return nil
}

func (f *fakeClient) Unsubscribe(_ context.Context, filter string) error {
	f.unsubscribed = append(f.unsubscribed, filter)
	return nil
}

type fakeRegistration struct {
	core.RegistrationManager
	requests []*model.RegistrationRequest
}

func (f *fakeRegistration) HandleRegistration(_ context.Context, req *model.RegistrationRequest) error {
	f.requests = append(f.requests, req)
	return nil
}

func TestMQTTSourceSubscribesAndDispatches(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	inv := &model.CommandInvocation{CommandToken: "c", AssignmentToken: "a"}
	require.NoError(t, repo.CreateInvocation(ctx, inv))

	reg := &fakeRegistration{}
	strategy := NewStrategy(reg, repo)
	require.NoError(t, strategy.Start(ctx))

	client := &fakeClient{}
	src := NewMQTTSource(client, topic.NewBuilder("devices/v1"), strategy, MQTTSourceOptions{SharedGroup: "commhub", QoS: 1})
	require.NoError(t, src.Start(ctx))
	assert.Equal(t, "mqtt", src.SourceID())

	registerFilter := "$share/commhub/devices/v1/register/+"
	ackFilter := "$share/commhub/devices/v1/command/ack/+"
	require.Contains(t, client.handlers, registerFilter)
	require.Contains(t, client.handlers, ackFilter)

	client.handlers[registerFilter](ctx, "devices/v1/register/dev-1", []byte(`{"specificationToken":"tracker"}`))
	require.Len(t, reg.requests, 1)
	assert.Equal(t, "dev-1", reg.requests[0].HardwareID)
	assert.Equal(t, "tracker", reg.requests[0].SpecificationToken)

	client.handlers[registerFilter](ctx, "devices/v1/register/dev-2", []byte(`not json`))
	assert.Len(t, reg.requests, 1)

	client.handlers[ackFilter](ctx, "devices/v1/command/ack/dev-1", []byte(`{"invocationId":"`+inv.ID+`","response":"done"}`))
	responses, err := repo.ListCommandResponses(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "dev-1", responses[0].HardwareID)
	assert.Equal(t, "done", responses[0].Response)

	require.NoError(t, src.Stop(ctx))
	assert.ElementsMatch(t, []string{registerFilter, ackFilter}, client.unsubscribed)
	assert.True(t, client.disconnected)
}

func TestMQTTSourceStartFailsWithoutBroker(t *testing.T) {
	client := &fakeClient{awaitErr: context.DeadlineExceeded}
	src := NewMQTTSource(client, topic.NewBuilder("devices"), NewStrategy(&fakeRegistration{}, store.NewMemory()), MQTTSourceOptions{})

	err := src.Start(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, client.handlers)
}

func TestProcessCommandResponseValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStrategy(&fakeRegistration{}, store.NewMemory())

	assert.ErrorIs(t, s.ProcessCommandResponse(ctx, &model.CommandResponse{}), core.ErrMissingRequiredParameter)
	assert.ErrorIs(t, s.ProcessCommandResponse(ctx, &model.CommandResponse{InvocationID: "missing"}), core.ErrNotFound)
}

func TestStrategyStartRequiresCollaborators(t *testing.T) {
	assert.ErrorIs(t, NewStrategy(nil, store.NewMemory()).Start(context.Background()), core.ErrNotConfigured)
	assert.ErrorIs(t, NewStrategy(&fakeRegistration{}, nil).Start(context.Background()), core.ErrNotConfigured)
}
