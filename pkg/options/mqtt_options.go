package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/autopeer-io/commhub/pkg/mqtt"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions contains configuration for MQTT clients and topics.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// Client behavior
	KeepAlive        time.Duration `json:"keep-alive" mapstructure:"keep-alive"`
	ConnectTimeout   time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ReconnectBackoff time.Duration `json:"reconnect-backoff" mapstructure:"reconnect-backoff"`
	SessionExpiry    uint32        `json:"session-expiry" mapstructure:"session-expiry"`
	CleanStart       bool          `json:"clean-start" mapstructure:"clean-start"`

	// InsecureSkipVerify controls whether a client verifies the server's certificate chain and host name.
	// This should be used only for testing.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`

	// TopicRoot prefixes every topic: {TopicRoot}/command/{hardwareId}.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	QoS    int  `json:"qos" mapstructure:"qos"`
	Retain bool `json:"retain" mapstructure:"retain"`

	// Inbound enables the registration and command ack subscriptions.
	Inbound bool `json:"inbound" mapstructure:"inbound"`

	// SharedGroup is the $share group used by inbound subscriptions.
	SharedGroup string `json:"shared-group" mapstructure:"shared-group"`
}

// NewMqttOptions creates a new MqttOptions with default values.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		Broker:           "mqtt://localhost:1883",
		ClientID:         "cpeer-commhub",
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   5 * time.Second,
		ReconnectBackoff: 3 * time.Second,
		SessionExpiry:    60,
		CleanStart:       true,
		TopicRoot:        "devices/v1",
		QoS:              1,
		Inbound:          true,
		SharedGroup:      "commhub",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *MqttOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if err := o.ToClientConfig("").Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mqtt: %w", err))
	}
	if o.TopicRoot == "" {
		errs = append(errs, errors.New("mqtt.topic-root must not be empty"))
	}
	if o.QoS < 0 || o.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", o.QoS))
	}

	return errs
}

// AddFlags adds flags for MqttOptions to the specified FlagSet.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	name := func(n string) string { return flagName("mqtt", prefixes, n) }

	fs.StringVar(&o.Broker, name("broker"), o.Broker, "The URL of the MQTT broker.")
	fs.StringVar(&o.Username, name("username"), o.Username, "The username for MQTT authentication.")
	fs.StringVar(&o.Password, name("password"), o.Password, "The password for MQTT authentication.")
	fs.StringVar(&o.ClientID, name("client-id"), o.ClientID, "Base client ID. Each connection appends its role.")

	fs.DurationVar(&o.KeepAlive, name("keep-alive"), o.KeepAlive, "MQTT Keep Alive interval.")
	fs.DurationVar(&o.ConnectTimeout, name("connect-timeout"), o.ConnectTimeout, "Timeout for establishing MQTT connection.")
	fs.DurationVar(&o.ReconnectBackoff, name("reconnect-backoff"), o.ReconnectBackoff, "Delay between MQTT reconnect attempts.")
	fs.Uint32Var(&o.SessionExpiry, name("session-expiry"), o.SessionExpiry, "MQTT Session Expiry Interval in seconds.")
	fs.BoolVar(&o.CleanStart, name("clean-start"), o.CleanStart, "Start a clean MQTT session on connect.")
	fs.BoolVar(&o.InsecureSkipVerify, name("insecure-skip-verify"), o.InsecureSkipVerify, "If true, skips the TLS certificate verification.")

	fs.StringVar(&o.TopicRoot, name("topic-root"), o.TopicRoot, "Topic prefix for commands, system commands, registrations and acks.")
	fs.IntVar(&o.QoS, name("qos"), o.QoS, "QoS used to publish commands and subscribe to device traffic.")
	fs.BoolVar(&o.Retain, name("retain"), o.Retain, "Publish commands with the retain flag.")
	fs.BoolVar(&o.Inbound, name("inbound"), o.Inbound, "Subscribe to device registrations and command acks.")
	fs.StringVar(&o.SharedGroup, name("shared-group"), o.SharedGroup, "Shared subscription group for inbound topics. Empty disables sharing.")
}

// ToClientConfig returns the client configuration for one connection. role
// is appended to the client ID so egress and ingress connections never
// share a session.
func (o *MqttOptions) ToClientConfig(role string) *mqtt.ClientConfig {
	clientID := o.ClientID
	if role != "" && clientID != "" {
		clientID += "-" + role
	}
	return &mqtt.ClientConfig{
		BrokerURL:          o.Broker,
		Username:           o.Username,
		Password:           o.Password,
		ClientID:           clientID,
		KeepAlive:          uint16(o.KeepAlive.Seconds()),
		SessionExpiry:      o.SessionExpiry,
		ConnectTimeout:     o.ConnectTimeout,
		ReconnectBackoff:   o.ReconnectBackoff,
		CleanStart:         o.CleanStart,
		InsecureSkipVerify: o.InsecureSkipVerify,
	}
}
