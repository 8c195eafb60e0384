package log

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Format = "xml"
	o.Level = "loud"
	o.CallerSkip = -1
	assert.Len(t, o.Validate(), 3)
}

func TestOptionsAddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=json"}))
	assert.Equal(t, "debug", o.Level)
	assert.Equal(t, "json", o.Format)
}

func TestSetLevel(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { _ = SetLevel(prev) })

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, "debug", Level())

	assert.Error(t, SetLevel("chatty"))
	assert.Equal(t, "debug", Level())
}
