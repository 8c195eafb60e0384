package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

const (
	RouterSingle        = "single"
	RouterSpecification = "specification"
)

var _ IOptions = (*RouterOptions)(nil)

// RouterOptions select the outbound command router.
type RouterOptions struct {
	// Type is "single" or "specification".
	Type               string `json:"type" mapstructure:"type"`
	DefaultDestination string `json:"default-destination" mapstructure:"default-destination"`
	// Mappings maps specification tokens to destination ids.
	Mappings map[string]string `json:"mappings" mapstructure:"mappings"`
}

func NewRouterOptions() *RouterOptions {
	return &RouterOptions{Type: RouterSingle, Mappings: map[string]string{}}
}

// Validate checks the router type. Destination references are checked by
// the router itself when it is initialized.
func (o *RouterOptions) Validate() []error {
	var errs []error
	switch o.Type {
	case RouterSingle:
		if len(o.Mappings) > 0 {
			errs = append(errs, fmt.Errorf("router.mappings require router.type=%s", RouterSpecification))
		}
	case RouterSpecification:
	default:
		errs = append(errs, fmt.Errorf("unknown router.type %q, want %q or %q", o.Type, RouterSingle, RouterSpecification))
	}
	return errs
}

func (o *RouterOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Type, flagName("router", prefixes, "type"), o.Type, "Router type: single or specification.")
	fs.StringVar(&o.DefaultDestination, flagName("router", prefixes, "default-destination"), o.DefaultDestination,
		"Destination for commands no mapping matches. The single router uses it as its only destination.")
	fs.StringToStringVar(&o.Mappings, flagName("router", prefixes, "mappings"), o.Mappings,
		"Specification token to destination id, e.g. tracker=mailbox,thermostat=mqtt.")
}
