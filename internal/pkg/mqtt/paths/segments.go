// Package paths holds the topic segments shared by the platform and devices.
// Changing a value breaks every deployed device.
package paths

// Downstream: platform -> device.
const (
	// Command carries encoded command executions.
	// Pattern: {root}/command/{hardwareID}
	Command = "command"

	// System carries system commands such as registration acknowledgements.
	// Pattern: {root}/system/{hardwareID}
	System = "system"
)

// Upstream: device -> platform.
const (
	// Register is where devices announce themselves.
	// Pattern: {root}/register/{hardwareID}
	Register = "register"

	// CommandAck carries command responses.
	// Pattern: {root}/command/ack/{hardwareID}
	CommandAck = "command/ack"
)
