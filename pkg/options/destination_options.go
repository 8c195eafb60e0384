package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	TransportMQTT = "mqtt"
	TransportS3   = "s3"

	EncoderJSON     = "json"
	EncoderProtobuf = "protobuf"
)

// DestinationOptions describe one command destination.
type DestinationOptions struct {
	ID        string `json:"id" mapstructure:"id"`
	Transport string `json:"transport" mapstructure:"transport"`
	Encoder   string `json:"encoder" mapstructure:"encoder"`
}

var _ IOptions = (*DestinationsOptions)(nil)

// DestinationsOptions is the destination list. It is only read from the
// config file; a single default destination is registered by flags.
type DestinationsOptions struct {
	Items []DestinationOptions `json:"items" mapstructure:"items"`

	defaultTransport string
	defaultEncoder   string
}

func NewDestinationsOptions() *DestinationsOptions {
	return &DestinationsOptions{defaultTransport: TransportMQTT, defaultEncoder: EncoderJSON}
}

// Complete adds a "default" destination when none is configured.
func (o *DestinationsOptions) Complete() {
	if len(o.Items) == 0 {
		o.Items = []DestinationOptions{{ID: "default", Transport: o.defaultTransport, Encoder: o.defaultEncoder}}
	}
	for i := range o.Items {
		if o.Items[i].Encoder == "" {
			o.Items[i].Encoder = EncoderJSON
		}
	}
}

// Uses reports whether any destination uses transport.
func (o *DestinationsOptions) Uses(transport string) bool {
	for _, d := range o.Items {
		if d.Transport == transport {
			return true
		}
	}
	return false
}

func (o *DestinationsOptions) Validate() []error {
	var errs []error
	seen := make(map[string]struct{}, len(o.Items))
	for i, d := range o.Items {
		if d.ID == "" {
			errs = append(errs, fmt.Errorf("destinations[%d]: id must not be empty", i))
		} else if _, dup := seen[d.ID]; dup {
			errs = append(errs, fmt.Errorf("destinations[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = struct{}{}

		switch d.Transport {
		case TransportMQTT, TransportS3:
		default:
			errs = append(errs, fmt.Errorf("destinations[%d]: unknown transport %q", i, d.Transport))
		}
		switch d.Encoder {
		case EncoderJSON, EncoderProtobuf, "":
		default:
			errs = append(errs, fmt.Errorf("destinations[%d]: unknown encoder %q", i, d.Encoder))
		}
	}
	return errs
}

// AddFlags registers the transport and encoder of the default destination.
func (o *DestinationsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.defaultTransport, flagName("destination", prefixes, "transport"), o.defaultTransport,
		"Transport of the default destination (mqtt or s3). Ignored when destinations are listed in the config file.")
	fs.StringVar(&o.defaultEncoder, flagName("destination", prefixes, "encoder"), o.defaultEncoder,
		"Encoder of the default destination (json or protobuf).")
}
