package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BatchOptions)(nil)

// BatchOptions tune batch operation processing.
type BatchOptions struct {
	// Concurrency is the number of elements of one batch delivered at once.
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
}

func NewBatchOptions() *BatchOptions {
	return &BatchOptions{Concurrency: 4}
}

func (o *BatchOptions) Validate() []error {
	if o.Concurrency < 1 {
		return []error{fmt.Errorf("batch.concurrency must be at least 1, got %d", o.Concurrency)}
	}
	return nil
}

func (o *BatchOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.Concurrency, flagName("batch", prefixes, "concurrency"), o.Concurrency, "Batch elements delivered concurrently.")
}
