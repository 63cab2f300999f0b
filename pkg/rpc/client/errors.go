package client

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrPortBindExhausted is matched (errors.Is) by every *PortBindError.
var ErrPortBindExhausted = errors.New("no privileged local port available")

// ErrConnBroken is the cause of the *NetworkError returned by requests on a
// connection that already failed with a network or protocol error.
var ErrConnBroken = errors.New("connection is broken by an earlier failure")

// ConnectError reports that the TCP connection to the server could not be
// established (refused, unreachable, name resolution failure, dial timeout).
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Timeout reports whether the dial timed out.
func (e *ConnectError) Timeout() bool {
	return isTimeout(e.Err)
}

// PortBindError reports that no local port in [Low, High] could be bound
// within the allowed number of attempts.
type PortBindError struct {
	Attempts int
	Low      int
	High     int

	// Last is the failure of the final attempt.
	Last error
}

func (e *PortBindError) Error() string {
	return fmt.Sprintf("bind local port in [%d, %d]: %d attempts failed, last: %v",
		e.Low, e.High, e.Attempts, e.Last)
}

func (e *PortBindError) Is(target error) bool {
	return target == ErrPortBindExhausted
}

func (e *PortBindError) Unwrap() error { return e.Last }

// NetworkError reports an I/O failure on an established connection: short
// write, reset, EOF before a complete record, or deadline exceeded.
// The connection is unusable afterwards.
type NetworkError struct {
	// Op is "write" or "read".
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline (request timeout or
// context deadline).
func (e *NetworkError) Timeout() bool {
	return isTimeout(e.Err)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
