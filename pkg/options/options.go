// Package options holds the reusable flag groups of commhub binaries.
package options

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option group.
type IOptions interface {
	// Validate returns every problem found, not just the first.
	Validate() []error

	// AddFlags registers the group's flags. prefixes replace the default
	// group name, so one group type can be registered twice.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks that addr is a host:port pair with a valid port.
func ValidateAddress(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not a valid address: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("%q is not a valid port", port)
	}
	return nil
}

// flagName joins the group prefix and name: "mqtt.broker".
func flagName(def string, prefixes []string, name string) string {
	prefix := def
	if len(prefixes) > 0 && prefixes[0] != "" {
		prefix = strings.TrimSuffix(prefixes[0], ".")
	}
	return prefix + "." + name
}
