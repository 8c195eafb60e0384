package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DispatchOptions)(nil)

// DispatchOptions size the async dispatch worker pool.
type DispatchOptions struct {
	NumThreads int `json:"num-threads" mapstructure:"num-threads"`
	QueueSize  int `json:"queue-size" mapstructure:"queue-size"`
}

func NewDispatchOptions() *DispatchOptions {
	return &DispatchOptions{
		NumThreads: 10,
		QueueSize:  10000,
	}
}

func (o *DispatchOptions) Validate() []error {
	var errs []error
	if o.NumThreads < 1 {
		errs = append(errs, fmt.Errorf("dispatch.num-threads must be at least 1, got %d", o.NumThreads))
	}
	if o.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("dispatch.queue-size must be at least 1, got %d", o.QueueSize))
	}
	return errs
}

func (o *DispatchOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.NumThreads, flagName("dispatch", prefixes, "num-threads"), o.NumThreads, "Number of command processor workers.")
	fs.IntVar(&o.QueueSize, flagName("dispatch", prefixes, "queue-size"), o.QueueSize, "Work items buffered before notifications are dropped.")
}
