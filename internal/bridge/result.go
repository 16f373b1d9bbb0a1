// Package bridge routes host method calls to platform collaborators and fans
// collaborator events back out to the host's subscribed listeners.
package bridge

import (
	"errors"
	"fmt"
)

// Command is one named host request with its argument bag.
type Command struct {
	Name      string
	Arguments map[string]any
}

// ErrorKind is the error taxonomy surfaced to the host.
type ErrorKind string

const (
	// KindInvalidArguments reports a failed precondition; no collaborator ran.
	KindInvalidArguments ErrorKind = "INVALID_ARGUMENTS"
	// KindException reports a collaborator or platform fault.
	KindException ErrorKind = "EXCEPTION"
)

// Error is the error variant of a Result.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Result is the single outcome produced for one Command.
type Result struct {
	Value          any
	Err            *Error
	NotImplemented bool
}

// OK reports whether the result is a success value.
func (r Result) OK() bool {
	return r.Err == nil && !r.NotImplemented
}

// Success wraps a handler value.
func Success(value any) Result {
	return Result{Value: value}
}

// Failure builds an error result.
func Failure(kind ErrorKind, message string) Result {
	return Result{Err: &Error{Kind: kind, Message: message}}
}

// NotImplemented is the result for command names outside the method surface.
func NotImplemented() Result {
	return Result{NotImplemented: true}
}

// invalidArguments builds a precondition error that passes through the
// dispatch boundary unchanged.
func invalidArguments(message string) error {
	return &Error{Kind: KindInvalidArguments, Message: message}
}

// toResult converts a handler outcome into the two-kind result taxonomy.
func toResult(method string, value any, err error) Result {
	if err == nil {
		return Success(value)
	}
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return Result{Err: bridgeErr}
	}
	return Failure(KindException, fmt.Sprintf("Error calling %s: %v", method, err))
}

// stringArg reads a string argument; values of any other type count as absent.
func stringArg(args map[string]any, key string) (string, bool) {
	if args == nil {
		return "", false
	}
	value, ok := args[key].(string)
	return value, ok
}
