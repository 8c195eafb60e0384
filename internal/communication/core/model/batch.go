package model

import "time"

// BatchOperationStatus is the processing status of a batch operation.
type BatchOperationStatus string

const (
	BatchUnprocessed     BatchOperationStatus = "Unprocessed"
	BatchProcessing      BatchOperationStatus = "Processing"
	BatchSucceeded       BatchOperationStatus = "Succeeded"
	BatchFailedPartially BatchOperationStatus = "FailedPartially"
	BatchFailed          BatchOperationStatus = "Failed"
)

// BatchOperationType selects what a batch does for each element.
type BatchOperationType string

const (
	BatchInvokeCommand BatchOperationType = "InvokeCommand"
)

// ParamCommandToken is the batch parameter naming the command to invoke.
const ParamCommandToken = "commandToken"

// BatchOperation applies one operation to many devices.
type BatchOperation struct {
	Token                 string               `json:"token"`
	OperationType         BatchOperationType   `json:"operationType"`
	Parameters            map[string]string    `json:"parameters,omitempty"`
	ParameterValues       map[string]string    `json:"parameterValues,omitempty"`
	HardwareIDs           []string             `json:"hardwareIds"`
	ProcessingStatus      BatchOperationStatus `json:"processingStatus"`
	ProcessingStartedDate *time.Time           `json:"processingStartedDate,omitempty"`
	ProcessingEndedDate   *time.Time           `json:"processingEndedDate,omitempty"`
	CreatedDate           time.Time            `json:"createdDate"`
	Metadata              map[string]string    `json:"metadata,omitempty"`
}

// BatchOperationUpdate changes the mutable fields of a batch operation.
// Nil or empty fields are left untouched; Metadata entries are merged.
type BatchOperationUpdate struct {
	ProcessingStatus      BatchOperationStatus `json:"processingStatus,omitempty"`
	ProcessingStartedDate *time.Time           `json:"processingStartedDate,omitempty"`
	ProcessingEndedDate   *time.Time           `json:"processingEndedDate,omitempty"`
	Metadata              map[string]string    `json:"metadata,omitempty"`
}

// ElementStatus is the processing status of a single batch element.
type ElementStatus string

const (
	ElementUnprocessed ElementStatus = "Unprocessed"
	ElementProcessing  ElementStatus = "Processing"
	ElementSucceeded   ElementStatus = "Succeeded"
	ElementFailed      ElementStatus = "Failed"
)

// BatchElement tracks one device inside a batch operation.
type BatchElement struct {
	BatchToken       string            `json:"batchToken"`
	HardwareID       string            `json:"hardwareId"`
	Index            int               `json:"index"`
	ProcessingStatus ElementStatus     `json:"processingStatus"`
	ProcessedDate    *time.Time        `json:"processedDate,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}
