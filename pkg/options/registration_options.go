package options

import (
	"errors"
	"slices"

	"github.com/spf13/pflag"
)

var _ IOptions = (*RegistrationOptions)(nil)

// RegistrationOptions control device self-registration.
type RegistrationOptions struct {
	AutoRegister          bool     `json:"auto-register" mapstructure:"auto-register"`
	DefaultSpecification  string   `json:"default-specification" mapstructure:"default-specification"`
	AllowedSpecifications []string `json:"allowed-specifications" mapstructure:"allowed-specifications"`
}

func NewRegistrationOptions() *RegistrationOptions {
	return &RegistrationOptions{AutoRegister: true}
}

func (o *RegistrationOptions) Validate() []error {
	var errs []error
	if o.DefaultSpecification != "" && len(o.AllowedSpecifications) > 0 &&
		!slices.Contains(o.AllowedSpecifications, o.DefaultSpecification) {
		errs = append(errs, errors.New("registration.default-specification is not in registration.allowed-specifications"))
	}
	return errs
}

func (o *RegistrationOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.AutoRegister, flagName("registration", prefixes, "auto-register"), o.AutoRegister, "Register unknown devices that announce themselves.")
	fs.StringVar(&o.DefaultSpecification, flagName("registration", prefixes, "default-specification"), o.DefaultSpecification,
		"Specification assigned to devices that register without one.")
	fs.StringSliceVar(&o.AllowedSpecifications, flagName("registration", prefixes, "allowed-specifications"), o.AllowedSpecifications,
		"Specifications new devices may register with. Empty allows any.")
}
