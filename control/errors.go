package control

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the command could not be exchanged with
	// the modem at all, for example on a write failure or a timeout. The
	// Sender's own error is wrapped alongside it.
	ErrTransport = errors.New("transport failure")

	// ErrProtocol is returned when the modem answered but did not signal
	// success (ERROR, +CME ERROR, ...).
	ErrProtocol = errors.New("protocol failure")

	// ErrCapabilityDenied is returned when an operation is attempted that
	// the control was not configured for.
	ErrCapabilityDenied = errors.New("capability denied")

	// ErrNotReadable is returned by reads on a control built without read
	// access. No command is sent.
	ErrNotReadable = fmt.Errorf("%w: control is not readable", ErrCapabilityDenied)

	// ErrNotWriteable is returned by writes on a control built without write
	// access. No command is sent.
	ErrNotWriteable = fmt.Errorf("%w: control is not writeable", ErrCapabilityDenied)

	// ErrNotImplemented is returned by operations that exist for interface
	// compatibility only. It classifies as FailureUnknown.
	ErrNotImplemented = errors.New("not implemented")

	// ErrDecode is returned when the response lacks the expected line or
	// field. Malformed numbers are not an error; they decode as 0.
	ErrDecode = errors.New("decode failure")

	// ErrNoBands is returned when setting an empty band list.
	ErrNoBands = errors.New("no bands given")
)

// FailureKind classifies an error returned by a control.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureTransport
	FailureProtocol
	FailureCapability
	FailureDecode
	FailureInvalid
	FailureUnknown
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureProtocol:
		return "protocol"
	case FailureCapability:
		return "capability"
	case FailureDecode:
		return "decode"
	case FailureInvalid:
		return "invalid"
	}
	return "unknown"
}

// Failure reports which kind of failure err represents.
func Failure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrTransport):
		return FailureTransport
	case errors.Is(err, ErrProtocol):
		return FailureProtocol
	case errors.Is(err, ErrCapabilityDenied):
		return FailureCapability
	case errors.Is(err, ErrDecode):
		return FailureDecode
	case errors.Is(err, ErrNoBands):
		return FailureInvalid
	}
	return FailureUnknown
}
