package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/commhub/internal/commhub"
	"github.com/autopeer-io/commhub/pkg/log"
	"github.com/autopeer-io/commhub/pkg/options"
)

type CommHubOptions struct {
	HttpOptions         *options.HttpOptions         `json:"http" mapstructure:"http"`
	GrpcOptions         *options.GrpcOptions         `json:"grpc" mapstructure:"grpc"`
	MqttOptions         *options.MqttOptions         `json:"mqtt" mapstructure:"mqtt"`
	S3Options           *options.S3Options           `json:"s3" mapstructure:"s3"`
	DispatchOptions     *options.DispatchOptions     `json:"dispatch" mapstructure:"dispatch"`
	RouterOptions       *options.RouterOptions       `json:"router" mapstructure:"router"`
	DestinationsOptions *options.DestinationsOptions `json:"destinations" mapstructure:"destinations"`
	RegistrationOptions *options.RegistrationOptions `json:"registration" mapstructure:"registration"`
	BatchOptions        *options.BatchOptions        `json:"batch" mapstructure:"batch"`
	Log                 *log.Options                 `json:"log" mapstructure:"log"`
}

func NewCommHubOptions() *CommHubOptions {
	return &CommHubOptions{
		HttpOptions:         options.NewHttpOptions(),
		GrpcOptions:         options.NewGrpcOptions(),
		MqttOptions:         options.NewMqttOptions(),
		S3Options:           options.NewS3Options(),
		DispatchOptions:     options.NewDispatchOptions(),
		RouterOptions:       options.NewRouterOptions(),
		DestinationsOptions: options.NewDestinationsOptions(),
		RegistrationOptions: options.NewRegistrationOptions(),
		BatchOptions:        options.NewBatchOptions(),
		Log:                 log.NewOptions(),
	}
}

func (o *CommHubOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.GrpcOptions.AddFlags(fss.FlagSet("grpc"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.DispatchOptions.AddFlags(fss.FlagSet("dispatch"))
	o.RouterOptions.AddFlags(fss.FlagSet("router"))
	o.DestinationsOptions.AddFlags(fss.FlagSet("destinations"))
	o.RegistrationOptions.AddFlags(fss.FlagSet("registration"))
	o.BatchOptions.AddFlags(fss.FlagSet("batch"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *CommHubOptions) Complete() error {
	o.DestinationsOptions.Complete()
	return nil
}

func (o *CommHubOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.GrpcOptions.Validate()...)
	errs = append(errs, o.DispatchOptions.Validate()...)
	errs = append(errs, o.RouterOptions.Validate()...)
	errs = append(errs, o.DestinationsOptions.Validate()...)
	errs = append(errs, o.RegistrationOptions.Validate()...)
	errs = append(errs, o.BatchOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	// Transport options only matter when something uses them.
	if o.MqttOptions.Inbound || o.DestinationsOptions.Uses(options.TransportMQTT) {
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	if o.DestinationsOptions.Uses(options.TransportS3) {
		errs = append(errs, o.S3Options.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

func (o *CommHubOptions) Config() (*commhub.Config, error) {
	return &commhub.Config{
		HttpOptions:         o.HttpOptions,
		GrpcOptions:         o.GrpcOptions,
		MqttOptions:         o.MqttOptions,
		S3Options:           o.S3Options,
		DispatchOptions:     o.DispatchOptions,
		RouterOptions:       o.RouterOptions,
		DestinationsOptions: o.DestinationsOptions,
		RegistrationOptions: o.RegistrationOptions,
		BatchOptions:        o.BatchOptions,
	}, nil
}
