// verdict/pkg/logging/errors_test.go

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	tests := []struct {
		name        string
		errType     ErrorType
		message     string
		err         error
		fields      map[string]interface{}
		expectedMsg string
	}{
		{
			name:        "Parse error",
			errType:     ErrorTypeParse,
			message:     "Failed to parse document",
			err:         errors.New("yaml: line 3: mapping values are not allowed"),
			fields:      map[string]interface{}{"path": "rules/velocity.yaml"},
			expectedMsg: "PARSE: Failed to parse document",
		},
		{
			name:        "Compile error",
			errType:     ErrorTypeCompile,
			message:     "Failed to compile ruleset",
			err:         nil,
			fields:      nil,
			expectedMsg: "COMPILE: Failed to compile ruleset",
		},
		{
			name:        "Adapter error",
			errType:     ErrorTypeAdapter,
			message:     "List lookup failed",
			err:         errors.New("connection refused"),
			fields:      map[string]interface{}{"list": "blocked_countries"},
			expectedMsg: "ADAPTER: List lookup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := NewError(tt.errType, tt.message, tt.err, tt.fields)

			assert.Equal(t, tt.errType, verr.Type)
			assert.Equal(t, tt.message, verr.Message)
			assert.Equal(t, tt.err, verr.Err)
			assert.Equal(t, tt.fields, verr.Fields)
			assert.Equal(t, tt.expectedMsg, verr.Error())

			if tt.err != nil {
				assert.Equal(t, tt.err, verr.Unwrap())
			} else {
				assert.Nil(t, verr.Unwrap())
			}
		})
	}
}

func TestLogError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected map[string]interface{}
	}{
		{
			name: "VerdictError with all fields",
			err: &VerdictError{
				Type:    ErrorTypeRuntime,
				Message: "Test error",
				Err:     errors.New("underlying error"),
				Fields: map[string]interface{}{
					"pipeline": "transaction_flow",
					"step":     42,
				},
			},
			expected: map[string]interface{}{
				"error":      "underlying error",
				"error_type": "RUNTIME",
				"message":    "Test error",
				"pipeline":   "transaction_flow",
				"step":       float64(42),
				"level":      "error",
			},
		},
		{
			name: "VerdictError without underlying error",
			err: &VerdictError{
				Type:    ErrorTypeResolve,
				Message: "Import not found",
				Fields: map[string]interface{}{
					"path": "shared/common.yaml",
				},
			},
			expected: map[string]interface{}{
				"error_type": "RESOLVE",
				"message":    "Import not found",
				"path":       "shared/common.yaml",
				"level":      "error",
			},
		},
		{
			name: "Standard error",
			err:  errors.New("standard error"),
			expected: map[string]interface{}{
				"error":   "standard error",
				"message": "standard error",
				"level":   "error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mockLogger := zerolog.New(&buf)

			LogError(mockLogger, tt.err)

			var logged map[string]interface{}
			err := json.Unmarshal(buf.Bytes(), &logged)
			assert.NoError(t, err)

			for k, v := range tt.expected {
				assert.Equal(t, v, logged[k], "Mismatch for key %s", k)
			}

			for k := range logged {
				_, expected := tt.expected[k]
				if !expected && k != "time" {
					t.Errorf("Unexpected key in logged data: %s", k)
				}
			}
		})
	}
}
