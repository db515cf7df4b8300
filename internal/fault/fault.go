// Package fault holds the error classes shared by the miner's collaborators.
package fault

import (
	"errors"
	"fmt"
)

// ErrUninitializedTemplate is returned by a template read before the first
// successful refresh. It marks the Idle state rather than a failure.
var ErrUninitializedTemplate = errors.New("no block template installed yet")

// TransportError is a network failure while talking to the node.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a reply the node sent but that could not be used: a non-200
// status, an undecodable body or an error-flagged RPC result.
type ProtocolError struct {
	Op      string
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: protocol error %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: protocol error: %s", e.Op, e.Message)
}

// MalformedTemplateError reports a template field with bad hex or length.
type MalformedTemplateError struct {
	Field string
	Err   error
}

func (e *MalformedTemplateError) Error() string {
	return fmt.Sprintf("malformed template field %s: %v", e.Field, e.Err)
}
func (e *MalformedTemplateError) Unwrap() error { return e.Err }

// Malformed wraps err as a MalformedTemplateError for field.
func Malformed(field string, err error) error {
	return &MalformedTemplateError{Field: field, Err: err}
}

// determine the class of an error
func IsErrTransport(e error) bool {
	var t *TransportError
	return errors.As(e, &t)
}

func IsErrProtocol(e error) bool {
	var p *ProtocolError
	return errors.As(e, &p)
}

func IsErrMalformed(e error) bool {
	var m *MalformedTemplateError
	return errors.As(e, &m)
}

func IsErrUninitialized(e error) bool { return errors.Is(e, ErrUninitializedTemplate) }
