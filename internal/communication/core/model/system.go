package model

// SystemCommandType distinguishes platform-originated commands.
type SystemCommandType string

const (
	SystemCommandRegistrationAck     SystemCommandType = "RegistrationAck"
	SystemCommandRegistrationFailure SystemCommandType = "RegistrationFailure"
	SystemCommandDeviceMappingAck    SystemCommandType = "DeviceMappingAck"
)

// RegistrationAckReason explains a successful registration ack.
type RegistrationAckReason string

const (
	ReasonNewRegistration   RegistrationAckReason = "NewRegistration"
	ReasonAlreadyRegistered RegistrationAckReason = "AlreadyRegistered"
)

// RegistrationErrorType explains a registration failure.
type RegistrationErrorType string

const (
	ErrorTypeInvalidSpecification RegistrationErrorType = "InvalidSpecification"
	ErrorTypeNewDevicesNotAllowed RegistrationErrorType = "NewDevicesNotAllowed"
)

// SystemCommand is sent by the platform itself rather than on behalf of a user.
type SystemCommand struct {
	Type         SystemCommandType     `json:"type"`
	Reason       RegistrationAckReason `json:"reason,omitempty"`
	ErrorType    RegistrationErrorType `json:"errorType,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
}
