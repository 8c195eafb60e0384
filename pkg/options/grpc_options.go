package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GrpcOptions)(nil)

// GrpcOptions configure the gRPC health endpoint.
type GrpcOptions struct {
	// Network with server network.
	Network string `json:"network" mapstructure:"network"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Timeout bounds unary calls.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Reflection registers the server reflection service.
	Reflection bool `json:"reflection" mapstructure:"reflection"`
}

// NewGrpcOptions returns the default gRPC options.
func NewGrpcOptions() *GrpcOptions {
	return &GrpcOptions{
		Network:    "tcp",
		Addr:       "0.0.0.0:9090",
		Timeout:    30 * time.Second,
		Reflection: true,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *GrpcOptions) Validate() []error {
	var errors []error

	if err := ValidateAddress(o.Addr); err != nil {
		errors = append(errors, fmt.Errorf("grpc.addr: %w", err))
	}

	return errors
}

// AddFlags adds flags for the gRPC server to the specified FlagSet.
func (o *GrpcOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Network, flagName("grpc", prefixes, "network"), o.Network, "Specify the network for the gRPC server.")
	fs.StringVar(&o.Addr, flagName("grpc", prefixes, "addr"), o.Addr, "Specify the gRPC server bind address and port.")
	fs.DurationVar(&o.Timeout, flagName("grpc", prefixes, "timeout"), o.Timeout, "Timeout for unary calls.")
	fs.BoolVar(&o.Reflection, flagName("grpc", prefixes, "reflection"), o.Reflection, "Register the gRPC server reflection service.")
}
