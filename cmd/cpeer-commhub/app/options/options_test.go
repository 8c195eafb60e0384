package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/pkg/options"
)

func TestDefaultsAreValid(t *testing.T) {
	o := NewCommHubOptions()
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	require.Len(t, o.DestinationsOptions.Items, 1)
	assert.Equal(t, "default", o.DestinationsOptions.Items[0].ID)
	assert.Equal(t, options.TransportMQTT, o.DestinationsOptions.Items[0].Transport)

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.MqttOptions, cfg.MqttOptions)
}

func TestValidateAggregatesErrors(t *testing.T) {
	o := NewCommHubOptions()
	o.HttpOptions.Addr = "nope"
	o.DispatchOptions.NumThreads = 0
	o.RouterOptions.Type = "random"
	require.NoError(t, o.Complete())

	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http.addr")
	assert.Contains(t, err.Error(), "router.type")
}

func TestS3OptionsOnlyValidatedWhenUsed(t *testing.T) {
	o := NewCommHubOptions()
	o.S3Options.BucketName = ""
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	o.DestinationsOptions.Items = append(o.DestinationsOptions.Items,
		options.DestinationOptions{ID: "mailbox", Transport: options.TransportS3, Encoder: options.EncoderJSON})
	err := o.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3.bucket-name")
}

func TestFlagsRegisterEveryGroup(t *testing.T) {
	fss := NewCommHubOptions().Flags()
	for _, name := range []string{"http.addr", "grpc.reflection", "mqtt.broker", "s3.bucket-name", "dispatch.num-threads",
		"router.mappings", "destination.transport", "registration.auto-register", "batch.concurrency", "log.level"} {
		found := false
		for _, fs := range fss.FlagSets {
			if fs.Lookup(name) != nil {
				found = true
				break
			}
		}
		assert.True(t, found, name)
	}
}
