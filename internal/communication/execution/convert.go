package execution

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/autopeer-io/commhub/internal/communication/core"
	"github.com/autopeer-io/commhub/internal/communication/core/model"
)

// Convert turns the raw string value of parameter p into its typed form:
//
//	Double                          float64
//	Float                           float32
//	Int32, UInt32, SInt32, ...32    int32
//	Int64, UInt64, SInt64, ...64    int64
//	Bool                            bool (only "true", any case, is true)
//	String                          string
//	Bytes                           []byte of raw
func Convert(p model.CommandParameter, raw string) (any, error) {
	switch p.Type {
	case model.ParameterTypeDouble:
		v, err := parseFinite(raw, 64)
		if err != nil {
			return nil, conversionError(p, err)
		}
		return v, nil

	case model.ParameterTypeFloat:
		v, err := parseFinite(raw, 32)
		if err != nil {
			return nil, conversionError(p, err)
		}
		return float32(v), nil

	case model.ParameterTypeInt32, model.ParameterTypeUInt32, model.ParameterTypeSInt32,
		model.ParameterTypeFixed32, model.ParameterTypeSFixed32:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, conversionError(p, err)
		}
		return int32(v), nil

	case model.ParameterTypeInt64, model.ParameterTypeUInt64, model.ParameterTypeSInt64,
		model.ParameterTypeFixed64, model.ParameterTypeSFixed64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, conversionError(p, err)
		}
		return v, nil

	case model.ParameterTypeBool:
		return strings.EqualFold(raw, "true"), nil

	case model.ParameterTypeString:
		return raw, nil

	case model.ParameterTypeBytes:
		return []byte(raw), nil

	default:
		return nil, &core.ParameterError{Parameter: p.Name, Type: p.Type, Err: core.ErrUnsupportedParameterType}
	}
}

var errNotFinite = errors.New("value is not a finite number")

// parseFinite rejects NaN and infinities, which no payload encoding can carry.
func parseFinite(raw string, bitSize int) (float64, error) {
	v, err := strconv.ParseFloat(raw, bitSize)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func conversionError(p model.CommandParameter, cause error) error {
	return &core.ParameterError{
		Parameter: p.Name,
		Type:      p.Type,
		Err:       core.ErrParameterConversionFailed,
		Cause:     cause,
	}
}
