// SPDX-License-Identifier: MIT

package ilcore

import (
	"errors"
	"fmt"
)

// ErrorCode mirrors the subset of OMX_ERRORTYPE the core inspects by
// value (guards, fatal-error classification, cancellation detection).
// It is not an exhaustive rendering of the OMX 1.2 error enum.
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorInsufficientResources
	ErrorBadParameter
	ErrorIncorrectStateTransition
	ErrorIncorrectStateOperation
	ErrorInvalidState
	ErrorPortUnpopulated
	ErrorStreamCorruptFatal
	ErrorFormatNotDetected
	ErrorCommandCanceled
	ErrorTimeout
	ErrorUnspecified
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "OK"
	case ErrorInsufficientResources:
		return "InsufficientResources"
	case ErrorBadParameter:
		return "BadParameter"
	case ErrorIncorrectStateTransition:
		return "IncorrectStateTransition"
	case ErrorIncorrectStateOperation:
		return "IncorrectStateOperation"
	case ErrorInvalidState:
		return "InvalidState"
	case ErrorPortUnpopulated:
		return "PortUnpopulated"
	case ErrorStreamCorruptFatal:
		return "StreamCorruptFatal"
	case ErrorFormatNotDetected:
		return "FormatNotDetected"
	case ErrorCommandCanceled:
		return "CommandCanceled"
	case ErrorTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Unspecified(%d)", int(e))
	}
}

// Err adapts an ErrorCode to the standard error interface so callers
// that want a plain Go error (tests, probes) can use errors.Is/As
// against it; ops additionally keeps the sticky (code, message) slot
// described in spec section 4.4.
type Err struct {
	Code ErrorCode
	Msg  string
}

func (e *Err) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// IsOK reports whether err represents ErrorNone (nil or a wrapped
// *Err with Code == ErrorNone).
func IsOK(err error) bool {
	if err == nil {
		return true
	}
	var e *Err
	if errors.As(err, &e) {
		return e.Code == ErrorNone
	}
	return false
}

// CodeOf extracts the ErrorCode carried by err, or ErrorUnspecified if
// err is not (or does not wrap) an *Err.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorNone
	}
	var e *Err
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorUnspecified
}
