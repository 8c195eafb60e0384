package core

import (
	"errors"
	"fmt"

	"github.com/autopeer-io/commhub/internal/communication/core/model"
	"github.com/autopeer-io/commhub/internal/pkg/lifecycle"
)

var (
	// ErrNotConfigured marks a missing required collaborator at start.
	ErrNotConfigured = lifecycle.ErrNotConfigured

	ErrMissingRequiredParameter  = errors.New("missing required parameter")
	ErrUnsupportedParameterType  = errors.New("unsupported parameter type")
	ErrParameterConversionFailed = errors.New("parameter conversion failed")
	ErrNoMatchingDestination     = errors.New("no matching destination")
	ErrDeliveryFailed            = errors.New("delivery failed")
	ErrUnsupportedOperation      = errors.New("unsupported batch operation type")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotRunning    = errors.New("not running")

	// ErrUnexpected wraps recovered panics and other unclassifiable failures.
	ErrUnexpected = errors.New("unexpected error")
)

// ParameterError reports a parameter that could not be turned into a typed value.
type ParameterError struct {
	Parameter string
	Type      model.ParameterType
	// Err is one of the parameter sentinels.
	Err error
	// Cause is the underlying parse error, if any.
	Cause error
}

func (e *ParameterError) Error() string {
	msg := fmt.Sprintf("%v: parameter %q", e.Err, e.Parameter)
	if e.Type != "" {
		msg += fmt.Sprintf(" (type %s)", e.Type)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParameterError) Unwrap() []error {
	errs := []error{e.Err}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ErrorKind classifies an error for logs and metrics.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindConversion    ErrorKind = "conversion"
	KindRouting       ErrorKind = "routing"
	KindNotFound      ErrorKind = "not_found"
	KindDelivery      ErrorKind = "delivery"
	KindNotRunning    ErrorKind = "not_running"
	KindUnexpected    ErrorKind = "unexpected"
)

// KindOf maps err onto the dispatch error taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnexpected):
		return KindUnexpected
	case errors.Is(err, ErrNotConfigured):
		return KindConfiguration
	case errors.Is(err, ErrMissingRequiredParameter), errors.Is(err, ErrUnsupportedParameterType),
		errors.Is(err, ErrUnsupportedOperation):
		return KindValidation
	case errors.Is(err, ErrParameterConversionFailed):
		return KindConversion
	case errors.Is(err, ErrNoMatchingDestination):
		return KindRouting
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotRunning):
		return KindNotRunning
	case errors.Is(err, ErrDeliveryFailed):
		return KindDelivery
	default:
		return KindUnexpected
	}
}
