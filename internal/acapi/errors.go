package acapi

import (
	"errors"
	"fmt"
)

// ErrInvalidPort is returned when port input is not a usable integer.
var ErrInvalidPort = errors.New("invalid port")

// TransportError reports a failed exchange where no response envelope was obtained.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Reason
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is not valid JSON.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: response is not valid JSON"
	}
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// APIError is the structured failure Archicad reports with succeeded=false.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// MalformedResultError reports a result missing a field the caller requires.
type MalformedResultError struct {
	Field string
}

func (e *MalformedResultError) Error() string {
	return fmt.Sprintf("malformed result: missing %q", e.Field)
}
