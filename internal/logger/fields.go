package logger

import (
	"fmt"
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// RPC Call
	// ========================================================================
	KeyXID       = "xid"       // Transaction id, hex formatted
	KeyProgram   = "program"   // RPC program number
	KeyVersion   = "version"   // Program version
	KeyProcedure = "procedure" // Procedure number
	KeyAuth      = "auth"      // Credential flavor
	KeyOutcome   = "outcome"   // Call outcome (success, auth_error, ...)

	// ========================================================================
	// Connection
	// ========================================================================
	KeyConnID     = "conn_id"     // Connection identifier
	KeyLocalPort  = "local_port"  // Local source port
	KeyRemoteAddr = "remote_addr" // Server address (host:port)
	KeyAttempt    = "attempt"     // Port bind attempt number
	KeyPortPolicy = "port_policy" // privileged or any

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyBytes      = "bytes"       // Bytes on the wire
	KeyCount      = "count"       // Number of items affected
	KeyError      = "error"       // Error message
)

// FormatXID renders a transaction id the way it appears in packet captures.
func FormatXID(xid uint32) string {
	return fmt.Sprintf("0x%08x", xid)
}

// ============================================================================
// Field constructors
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

func XID(xid uint32) slog.Attr {
	return slog.String(KeyXID, FormatXID(xid))
}

func Program(prog uint32) slog.Attr {
	return slog.Any(KeyProgram, prog)
}

func Version(vers uint32) slog.Attr {
	return slog.Any(KeyVersion, vers)
}

func Procedure(proc uint32) slog.Attr {
	return slog.Any(KeyProcedure, proc)
}

// Auth returns a slog.Attr for a credential flavor name (AUTH_NONE, AUTH_UNIX).
func Auth(flavor string) slog.Attr {
	return slog.String(KeyAuth, flavor)
}

func Outcome(outcome string) slog.Attr {
	return slog.String(KeyOutcome, outcome)
}

func ConnID(id string) slog.Attr {
	return slog.String(KeyConnID, id)
}

func LocalPort(port int) slog.Attr {
	return slog.Int(KeyLocalPort, port)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String(KeyRemoteAddr, addr)
}

// Attempt returns a slog.Attr for a 1-based attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

func PortPolicy(policy string) slog.Attr {
	return slog.String(KeyPortPolicy, policy)
}

// DurationMs returns a slog.Attr for the time elapsed since start, in
// milliseconds with microsecond precision.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(time.Since(start).Microseconds())/1000.0)
}

func Bytes(n int) slog.Attr {
	return slog.Int(KeyBytes, n)
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Err returns a slog.Attr for an error. A nil error yields an empty Attr,
// which handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
