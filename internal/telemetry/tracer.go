package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for RPC client spans.
const (
	AttrRPCXID       = "rpc.xid"
	AttrRPCProgram   = "rpc.program"
	AttrRPCVersion   = "rpc.version"
	AttrRPCProcedure = "rpc.procedure"
	AttrRPCAuthType  = "rpc.auth_type"
	AttrRPCOutcome   = "rpc.outcome"

	AttrServerAddr = "server.address"
	AttrLocalPort  = "network.local.port"
	AttrConnID     = "rpc.conn_id"

	AttrBytesSent     = "rpc.bytes_sent"
	AttrBytesReceived = "rpc.bytes_received"
)

// Span names.
const (
	SpanRPCCall = "rpc.call"
	SpanRPCDial = "rpc.dial"
)

func RPCXID(xid uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCXID, int64(xid))
}

func RPCProgram(prog uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCProgram, int64(prog))
}

func RPCVersion(vers uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCVersion, int64(vers))
}

func RPCProcedure(proc uint32) attribute.KeyValue {
	return attribute.Int64(AttrRPCProcedure, int64(proc))
}

// RPCAuthType returns an attribute for a credential flavor name.
func RPCAuthType(flavor string) attribute.KeyValue {
	return attribute.String(AttrRPCAuthType, flavor)
}

func RPCOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrRPCOutcome, outcome)
}

func ServerAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrServerAddr, addr)
}

func LocalPort(port int) attribute.KeyValue {
	return attribute.Int(AttrLocalPort, port)
}

func ConnID(id string) attribute.KeyValue {
	return attribute.String(AttrConnID, id)
}

func BytesSent(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesSent, n)
}

func BytesReceived(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesReceived, n)
}

// StartRPCSpan starts a client span for one RPC call.
func StartRPCSpan(ctx context.Context, xid, program, version, procedure uint32, authType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		RPCXID(xid),
		RPCProgram(program),
		RPCVersion(version),
		RPCProcedure(procedure),
		RPCAuthType(authType),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanRPCCall,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(allAttrs...),
	)
}

// StartDialSpan starts a client span covering connection setup.
func StartDialSpan(ctx context.Context, addr string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{ServerAddr(addr)}, attrs...)

	return StartSpan(ctx, SpanRPCDial,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(allAttrs...),
	)
}
