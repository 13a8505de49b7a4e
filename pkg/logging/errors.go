// verdict/pkg/logging/errors.go

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorType string

const (
	ErrorTypeParse   ErrorType = "PARSE"
	ErrorTypeResolve ErrorType = "RESOLVE"
	ErrorTypeCompile ErrorType = "COMPILE"
	ErrorTypeRuntime ErrorType = "RUNTIME"
	ErrorTypeAdapter ErrorType = "ADAPTER"
	ErrorTypeStore   ErrorType = "STORE"
)

// VerdictError is the structured error wrapper used across the engine.
// Fields carry the identifier/path detail needed to locate the offending
// declaration or request.
type VerdictError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *VerdictError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *VerdictError) Unwrap() error {
	return e.Err
}

func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *VerdictError {
	return &VerdictError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// LogError logs a VerdictError with its structured fields, or any other
// error plainly.
func LogError(logger zerolog.Logger, err error) {
	verr, ok := err.(*VerdictError)
	if !ok {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(verr.Err).
		Str("error_type", string(verr.Type)).
		Str("message", verr.Message)

	for k, v := range verr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(verr.Message)
}
