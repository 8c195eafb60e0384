package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/commhub/cmd/cpeer-commhub/app/options"
	pkgoptions "github.com/autopeer-io/commhub/pkg/options"
)

const testConfig = `
mqtt:
  broker: mqtt://broker.internal:1883
  qos: 2
router:
  type: specification
  default-destination: mqtt
  mappings:
    tracker: mailbox
destinations:
  items:
    - id: mqtt
      transport: mqtt
    - id: mailbox
      transport: s3
      encoder: protobuf
dispatch:
  num-threads: 3
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func TestLoadConfigFileWithFlagOverride(t *testing.T) {
	cmd := NewCommHubCommand(t.Context())
	fs := cmd.PersistentFlags()

	require.NoError(t, fs.Parse([]string{"--dispatch.num-threads=7"}))

	loaded := options.NewCommHubOptions()
	require.NoError(t, loadConfig(fs, writeConfig(t), loaded))

	assert.Equal(t, "mqtt://broker.internal:1883", loaded.MqttOptions.Broker)
	assert.Equal(t, 2, loaded.MqttOptions.QoS)
	assert.Equal(t, pkgoptions.RouterSpecification, loaded.RouterOptions.Type)
	assert.Equal(t, map[string]string{"tracker": "mailbox"}, loaded.RouterOptions.Mappings)
	require.Len(t, loaded.DestinationsOptions.Items, 2)
	assert.Equal(t, "mailbox", loaded.DestinationsOptions.Items[1].ID)
	assert.Equal(t, 7, loaded.DispatchOptions.NumThreads)
	// untouched groups keep their defaults
	assert.Equal(t, "0.0.0.0:8080", loaded.HttpOptions.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := NewCommHubCommand(t.Context())
	err := loadConfig(cmd.PersistentFlags(), filepath.Join(t.TempDir(), "missing.yaml"), options.NewCommHubOptions())
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestDestinationsTable(t *testing.T) {
	opts := options.NewCommHubOptions()
	opts.RouterOptions.Type = pkgoptions.RouterSpecification
	opts.RouterOptions.DefaultDestination = "mqtt"
	opts.RouterOptions.Mappings = map[string]string{"tracker": "mailbox", "meter": "mailbox"}
	opts.DestinationsOptions.Items = []pkgoptions.DestinationOptions{
		{ID: "mqtt", Transport: pkgoptions.TransportMQTT, Encoder: pkgoptions.EncoderJSON},
		{ID: "mailbox", Transport: pkgoptions.TransportS3, Encoder: pkgoptions.EncoderProtobuf},
	}

	lines := strings.Split(destinationsTable(opts).String(), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TRANSPORT")
	assert.Regexp(t, `^mqtt\s+mqtt\s+json\s+\*$`, strings.TrimSpace(lines[1]))
	assert.Regexp(t, `^mailbox\s+s3\s+protobuf\s+meter,tracker$`, strings.TrimSpace(lines[2]))
}
