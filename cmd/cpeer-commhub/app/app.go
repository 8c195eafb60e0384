package app

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"k8s.io/component-base/cli/globalflag"

	"github.com/autopeer-io/commhub/cmd/cpeer-commhub/app/options"
	"github.com/autopeer-io/commhub/pkg/log"
	pkgoptions "github.com/autopeer-io/commhub/pkg/options"
)

const (
	commandName = "cpeer-commhub"
	commandDesc = `The Autopeer CommHub delivers device commands. It resolves each command
invocation to a typed execution, routes it to a destination by device
specification and hands it to the destination's transport (MQTT topics or an
S3 mailbox). It also answers device registrations with system commands and
processes batch command operations.`
)

func NewCommHubCommand(ctx context.Context) *cobra.Command {
	opts := options.NewCommHubOptions()
	var configFile string

	cmd := &cobra.Command{
		Use:          commandName,
		Long:         commandDesc,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd.Flags(), configFile, opts); err != nil {
				return err
			}
			if err := opts.Complete(); err != nil {
				return err
			}
			return opts.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Init(opts.Log)
			defer log.Sync() //nolint:errcheck

			if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
				log.Info(fmt.Sprintf(format, args...))
			})); err != nil {
				log.Error(err, "failed to set GOMAXPROCS")
			}

			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			hub, err := cfg.New()
			if err != nil {
				log.Error(err, "failed to create commhub")
				return err
			}

			return hub.Run(ctx)
		},
	}

	cmd.AddCommand(newDestinationsCommand(opts))

	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	fs := cmd.PersistentFlags()
	fs.StringVarP(&configFile, "config", "c", "", "Path to a YAML/JSON config file. Flags set explicitly take precedence.")
	namedfs := opts.Flags()
	globalflag.AddGlobalFlags(namedfs.FlagSet("global"), cmd.Name())
	for _, f := range namedfs.FlagSets {
		fs.AddFlagSet(f)
	}

	return cmd
}

// loadConfig overlays configFile onto opts. Flags keep their defaults unless
// the file sets them, and explicitly set flags always win.
func loadConfig(fs *pflag.FlagSet, configFile string, opts *options.CommHubOptions) error {
	if configFile == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", configFile, err)
	}

	// Only the log level is applied live. Destinations, router and
	// transports are wired once at start.
	v.OnConfigChange(func(e fsnotify.Event) {
		if lvl := v.GetString("log.level"); lvl != "" && lvl != log.Level() {
			if err := log.SetLevel(lvl); err != nil {
				log.Error(err, "Ignoring log level from config file", "file", e.Name)
			} else {
				log.Info("Log level changed", "level", lvl)
			}
		}
		log.Warn("Config file changed, restart cpeer-commhub to apply other settings", "file", e.Name, "op", e.Op.String())
	})
	v.WatchConfig()
	return nil
}

func newDestinationsCommand(opts *options.CommHubOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destinations",
		Short: "Print the configured command destinations and the routes to them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), destinationsTable(opts))
			return nil
		},
	}
}

func destinationsTable(opts *options.CommHubOptions) *uitable.Table {
	routes := map[string][]string{}
	for spec, id := range opts.RouterOptions.Mappings {
		routes[id] = append(routes[id], spec)
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("ID", "TRANSPORT", "ENCODER", "SPECIFICATIONS")
	for _, d := range opts.DestinationsOptions.Items {
		specs := routes[d.ID]
		sort.Strings(specs)
		if isDefault(opts, d.ID) {
			specs = append(specs, "*")
		}
		table.AddRow(d.ID, d.Transport, d.Encoder, strings.Join(specs, ","))
	}
	return table
}

func isDefault(opts *options.CommHubOptions, id string) bool {
	if opts.RouterOptions.DefaultDestination != "" {
		return opts.RouterOptions.DefaultDestination == id
	}
	return opts.RouterOptions.Type == pkgoptions.RouterSingle && len(opts.DestinationsOptions.Items) == 1
}
