package metrics

import (
	"time"
)

// Call outcomes reported through RPCMetrics.RecordCall.
const (
	OutcomeSuccess       = "success"
	OutcomeEncodeError   = "encode_error"
	OutcomeNetworkError  = "network_error"
	OutcomeProtocolError = "protocol_error"
	OutcomeRPCMismatch   = "rpc_mismatch"
	OutcomeAuthError     = "auth_error"
	OutcomeAcceptError   = "accept_error"
)

// Byte directions reported through RPCMetrics.RecordBytes.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// RPCMetrics provides observability for the ONC RPC client.
//
// Implementations collect metrics about calls, wire traffic, privileged port
// binding and connection lifecycle. This interface is optional - pass nil to
// disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewRPCMetrics(reg)
//	conn, err := client.Dial(ctx, host, 2049, client.Options{Metrics: m})
//
//	// Without metrics
//	conn, err := client.Dial(ctx, host, 2049, client.Options{})
type RPCMetrics interface {
	// RecordCall records a completed request.
	//
	// Parameters:
	//   - program: RPC program number (e.g., 100003 for NFS)
	//   - procedure: procedure number within the program
	//   - duration: time from encoding the call to classifying the reply
	//   - outcome: one of the Outcome* constants
	RecordCall(program, procedure uint32, duration time.Duration, outcome string)

	// RecordBytes records bytes put on or taken off the wire, record marking
	// included.
	//
	// Parameters:
	//   - direction: DirectionSent or DirectionReceived
	//   - n: number of bytes
	RecordBytes(direction string, n int)

	// RecordBindAttempt records one attempt to bind a local privileged port.
	RecordBindAttempt(success bool)

	// RecordConnectionOpened increments the opened connections counter and
	// the open connections gauge.
	RecordConnectionOpened()

	// RecordConnectionClosed increments the closed connections counter and
	// decrements the open connections gauge.
	RecordConnectionClosed()
}
