package model

// Device is a registered piece of hardware.
type Device struct {
	HardwareID         string            `json:"hardwareId"`
	SpecificationToken string            `json:"specificationToken"`
	AssignmentToken    string            `json:"assignmentToken,omitempty"`
	ParentHardwareID   string            `json:"parentHardwareId,omitempty"`
	MappingPath        string            `json:"mappingPath,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// AssignmentStatus is the state of a device assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "Active"
	AssignmentStatusReleased AssignmentStatus = "Released"
)

// DeviceAssignment binds a device to its current use. SpecificationToken is
// copied from the device so routers need no extra lookups.
type DeviceAssignment struct {
	Token              string            `json:"token"`
	HardwareID         string            `json:"hardwareId"`
	SpecificationToken string            `json:"specificationToken,omitempty"`
	Status             AssignmentStatus  `json:"status,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// NestingContext describes where a device sits below a gateway.
// Gateway is nil for devices that are addressed directly.
type NestingContext struct {
	Nested  *Device
	Gateway *Device
	Path    string
}

// Target returns the device that actually receives transport traffic.
func (n *NestingContext) Target() *Device {
	if n == nil {
		return nil
	}
	if n.Gateway != nil {
		return n.Gateway
	}
	return n.Nested
}

// RegistrationRequest is sent by a device announcing itself.
type RegistrationRequest struct {
	HardwareID         string            `json:"hardwareId"`
	SpecificationToken string            `json:"specificationToken,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}
