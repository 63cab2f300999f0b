package rpc

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAuthFlavor is returned when a credential of a flavor this
// client cannot encode is requested. It is a caller or configuration error,
// never a network error.
var ErrUnsupportedAuthFlavor = errors.New("unsupported auth flavor")

// ProtocolError reports malformed framing or an unexpected message on the
// wire. The connection it was read from must be considered unusable.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "rpc protocol error: " + e.Reason
}

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// MismatchError is returned when the server denied the call because it does
// not support the requested RPC protocol version. Low and High are the
// versions the server does support.
type MismatchError struct {
	Low  uint32
	High uint32
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("rpc version mismatch: server supports %d-%d", e.Low, e.High)
}

// AuthError is returned when the server denied the call because it rejected
// the credential or verifier.
type AuthError struct {
	Stat AuthStat
}

// Reason returns the human readable rejection reason.
func (e *AuthError) Reason() string {
	return e.Stat.Reason()
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("rpc auth error: %s (auth_stat=%d)", e.Reason(), uint32(e.Stat))
}

// AcceptError is returned when the server accepted the call but did not
// execute it successfully (PROG_UNAVAIL, PROG_MISMATCH, PROC_UNAVAIL,
// GARBAGE_ARGS, SYSTEM_ERR). For PROG_MISMATCH, Low and High hold the
// program versions the server supports.
type AcceptError struct {
	Stat AcceptStat
	Low  uint32
	High uint32
}

func (e *AcceptError) Error() string {
	if e.Stat == ProgMismatch {
		return fmt.Sprintf("rpc call not executed: %s (supported versions %d-%d)", e.Stat, e.Low, e.High)
	}
	return fmt.Sprintf("rpc call not executed: %s", e.Stat)
}
