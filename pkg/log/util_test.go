package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name string
		in   []any
		keys []string
	}{
		{"empty input", []any{}, nil},
		{"string-int-bool", []any{"a", "x", "b", 123, "c", true}, []string{"a", "b", "c"}},
		{"time type", []any{"t", now}, []string{"t"}},
		{"duration", []any{"d", time.Second}, []string{"d"}},
		{"bytes", []any{"data", []byte("xyz")}, []string{"data"}},
		{"error only", []any{err}, []string{"error"}},
		{"named error", []any{"cause", err}, []string{"cause"}},
		{"passthrough field", []any{"msg", "ok", zap.String("x", "y"), "num", 42}, []string{"msg", "x", "num"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"nil values", []any{"a", nil, "b", (*int)(nil)}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.in...)

			keys := make([]string, 0, len(fields))
			for _, f := range fields {
				keys = append(keys, f.Key)
			}
			if len(tt.keys) == 0 {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.keys, keys)
		})
	}
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Std(), FromContext(context.Background()))

	l := NewNopLogger().WithName("worker")
	ctx := NewContext(context.Background(), l)
	assert.Equal(t, l, FromContext(ctx))
}
