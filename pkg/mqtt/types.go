package mqtt

import (
	"context"
)

// MessageHandler processes a message received on a subscribed topic.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the MQTT surface used by delivery providers and inbound sources.
// It hides the paho autopaho connection manager.
type Client interface {
	// Start initiates the connection to the broker. It returns immediately;
	// use AwaitConnection to wait for the first successful connect.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions are
	// replayed automatically after a reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected or ctx is done.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports the last known connection state.
	IsConnected() bool
}
