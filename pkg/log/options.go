// Copyright 2025 The Autopeer Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// Options configures the process-wide logger. Every field maps to a
// "log."-prefixed flag and to the "log" section of the config file.
type Options struct {
	Name   string `json:"name,omitempty" mapstructure:"name"`
	Level  string `json:"level,omitempty" mapstructure:"level"`
	Format string `json:"format,omitempty" mapstructure:"format"` // json or console

	EnableColor   bool `json:"enable-color,omitempty" mapstructure:"enable-color"`
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`
	// CallerSkip is the number of wrapper frames between the call site and zap.
	CallerSkip int `json:"caller-skip,omitempty" mapstructure:"caller-skip"`

	OutputPaths      []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
	ErrorOutputPaths []string `json:"error-output-paths,omitempty" mapstructure:"error-output-paths"`
}

// NewOptions returns console logging at info level to stdout.
func NewOptions() *Options {
	return &Options{
		Level:            "info",
		Format:           "console",
		EnableColor:      true,
		CallerSkip:       2, // package-level helpers add one frame on top of zapLogger
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
}

func (o *Options) Validate() []error {
	var errs []error

	switch o.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format: unsupported format %q", o.Format))
	}
	if _, err := zapcore.ParseLevel(o.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if o.CallerSkip < 0 {
		errs = append(errs, fmt.Errorf("log.caller-skip: %d is negative", o.CallerSkip))
	}
	return errs
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "Name attached to every log entry.")
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum level: debug, info, warn or error. Can be changed at runtime through the config file.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Entry encoding: json or console.")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Colorize levels in console format.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the file:line caller field.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "Wrapper frames to skip when resolving the caller.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Destinations for log entries (stdout, stderr or file paths).")
	fs.StringSliceVar(&o.ErrorOutputPaths, "log.error-output-paths", o.ErrorOutputPaths, "Destinations for internal logger errors.")
}
