package delivery

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	pkgmqtt "github.com/autopeer-io/commhub/pkg/mqtt"
	"github.com/autopeer-io/commhub/pkg/mqtt/topic"
)

type mockClient struct{ mock.Mock }

func (m *mockClient) Start(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockClient) Disconnect(ctx context.Context)  { m.Called(ctx) }
func (m *mockClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	return m.Called(ctx, topic, qos, retain, payload).Error(0)
}
func (m *mockClient) Subscribe(ctx context.Context, topic string, qos int, handler pkgmqtt.MessageHandler) error {
	return m.Called(ctx, topic, qos, handler).Error(0)
}
func (m *mockClient) Unsubscribe(ctx context.Context, topic string) error {
	return m.Called(ctx, topic).Error(0)
}
func (m *mockClient) AwaitConnection(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockClient) IsConnected() bool                         { return m.Called().Bool(0) }

type mockStore struct{ mock.Mock }

func (m *mockStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}
func (m *mockStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}
func (m *mockStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(ctx, bucket, key, string(body), size, opts)
	return minio.UploadInfo{ETag: "etag"}, args.Error(0)
}

func nested() *model.NestingContext {
	return &model.NestingContext{
		Nested:  &model.Device{HardwareID: "sensor-1"},
		Gateway: &model.Device{HardwareID: "gw-1"},
	}
}

func exec() *model.CommandExecution {
	return &model.CommandExecution{
		Command:    &model.DeviceCommand{Token: "reboot", Name: "reboot"},
		Invocation: &model.CommandInvocation{ID: "inv-9"},
	}
}

func TestMQTTParameterExtractorAddressesGateway(t *testing.T) {
	x := NewMQTTParameterExtractor(topic.NewBuilder("devices/v1"))

	params, err := x.Extract(nested(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "devices/v1/command/gw-1", params.CommandTopic)
	assert.Equal(t, "devices/v1/system/gw-1", params.SystemTopic)

	params, err = x.Extract(&model.NestingContext{Nested: &model.Device{HardwareID: "dev-2"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "devices/v1/command/dev-2", params.CommandTopic)

	_, err = x.Extract(&model.NestingContext{}, nil, nil)
	assert.Error(t, err)
}

func TestMQTTProviderLifecycle(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	client.On("Start", ctx).Return(nil)
	client.On("AwaitConnection", mock.Anything).Return(nil)
	client.On("Disconnect", ctx).Return()

	p := NewMQTTProvider(client, MQTTProviderOptions{QoS: 1})
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(ctx))

	client.AssertExpectations(t)
}

func TestMQTTProviderStartFailsWhenBrokerUnreachable(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	client.On("Start", ctx).Return(nil)
	client.On("AwaitConnection", mock.Anything).Return(context.DeadlineExceeded)

	err := NewMQTTProvider(client, MQTTProviderOptions{}).Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMQTTProviderPublishes(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	client.On("Publish", ctx, "devices/v1/command/gw-1", 1, true, []byte("cmd")).Return(nil)
	client.On("Publish", ctx, "devices/v1/system/gw-1", 1, false, []byte("ack")).Return(nil)

	p := NewMQTTProvider(client, MQTTProviderOptions{QoS: 1, Retain: true})
	params := MQTTParameters{CommandTopic: "devices/v1/command/gw-1", SystemTopic: "devices/v1/system/gw-1"}

	require.NoError(t, p.Deliver(ctx, nested(), nil, exec(), []byte("cmd"), params))
	require.NoError(t, p.DeliverSystemCommand(ctx, nested(), nil, []byte("ack"), params))
	client.AssertExpectations(t)
}

func TestMQTTProviderPropagatesPublishError(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	boom := errors.New("not connected")
	client.On("Publish", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(boom)

	err := NewMQTTProvider(client, MQTTProviderOptions{}).Deliver(ctx, nested(), nil, exec(), []byte("x"), MQTTParameters{CommandTopic: "t"})
	assert.ErrorIs(t, err, boom)
}

func TestS3ParameterExtractor(t *testing.T) {
	x := NewS3ParameterExtractor("mailbox", ".json")

	params, err := x.Extract(nested(), nil, exec())
	require.NoError(t, err)
	assert.Equal(t, "mailbox/gw-1/commands/inv-9.json", params.Key)

	params, err = x.Extract(nested(), nil, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params.Key, "mailbox/gw-1/system/"))
	assert.True(t, strings.HasSuffix(params.Key, ".json"))
}

func TestS3ProviderStartCreatesBucket(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("BucketExists", ctx, "commands").Return(false, nil)
	store.On("MakeBucket", ctx, "commands", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil)

	p := NewS3Provider(store, S3ProviderOptions{Bucket: "commands", Region: "eu-west-1", CreateBucket: true})
	require.NoError(t, p.Start(ctx))
	store.AssertExpectations(t)
}

func TestS3ProviderStartFailsOnMissingBucket(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("BucketExists", ctx, "commands").Return(false, nil)

	err := NewS3Provider(store, S3ProviderOptions{Bucket: "commands"}).Start(ctx)
	assert.Error(t, err)
	store.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func TestS3ProviderDeliverPutsObject(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("PutObject", ctx, "commands", "mailbox/gw-1/commands/inv-9.json", "payload", int64(7),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "application/json" &&
				o.UserMetadata["invocation"] == "inv-9" &&
				o.UserMetadata["hardware-id"] == "sensor-1"
		})).Return(nil)

	p := NewS3Provider(store, S3ProviderOptions{Bucket: "commands", ContentType: "application/json"})
	err := p.Deliver(ctx, nested(), nil, exec(), []byte("payload"), ObjectParameters{Key: "mailbox/gw-1/commands/inv-9.json"})

	require.NoError(t, err)
	store.AssertExpectations(t)
}
