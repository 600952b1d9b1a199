// Package syserr defines the error taxonomy shared across the supervision
// engine, registry, and IPC layer. Errors are compared with errors.Is/As,
// not string matching.
package syserr

import (
	"errors"
	"fmt"
)

// Code identifies the taxonomy bucket an error belongs to. It maps directly
// to an IPC response code.
type Code int

const (
	CodeUnknown Code = iota
	CodeDaemonNotFound
	CodeDaemonAlreadyExists
	CodeInvalidTransition
	CodeProcess
	CodeHealthCheck
	CodeIPC
	CodeRegistry
	CodeConfig
	CodeScheduler
	CodeIO
	CodeSerialization
	CodeDatabase
	CodeTimeout
)

// IPCStatus returns the numeric wire code for a Code, per the external
// interface contract: 400 config/serialization, 404 not found, 409
// conflict/invalid transition, 500 driver/registry/IPC/scheduler, 504 timeout.
func (c Code) IPCStatus() int {
	switch c {
	case CodeConfig, CodeSerialization:
		return 400
	case CodeDaemonNotFound:
		return 404
	case CodeDaemonAlreadyExists, CodeInvalidTransition:
		return 409
	case CodeTimeout:
		return 504
	case CodeProcess, CodeHealthCheck, CodeIPC, CodeRegistry, CodeScheduler, CodeIO, CodeDatabase:
		return 500
	default:
		return 500
	}
}

// Error is a taxonomy-tagged error. Wrap is nil for leaf errors.
type Error struct {
	Code Code
	Msg  string
	Wrap error
}

func (e *Error) Error() string {
	if e.Wrap != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Wrap)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Wrap }

func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func Wrap(code Code, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Wrap: err}
}

// DaemonNotFound builds the standard "daemon '<name>' not found" error.
func DaemonNotFound(name string) error {
	return New(CodeDaemonNotFound, fmt.Sprintf("daemon %q not found", name))
}

// DaemonAlreadyExists builds the standard "daemon '<name>' already exists" error.
func DaemonAlreadyExists(name string) error {
	return New(CodeDaemonAlreadyExists, fmt.Sprintf("daemon %q already exists", name))
}

// InvalidTransition builds the standard lifecycle transition-rejected error.
func InvalidTransition(from, to string) error {
	return New(CodeInvalidTransition, fmt.Sprintf("invalid state transition from %s to %s", from, to))
}

// CodeOf extracts the Code from err, walking the Unwrap chain; returns
// CodeUnknown if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
