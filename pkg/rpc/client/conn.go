// Package client is an ONC RPC client over TCP.
//
// A Conn carries one request at a time: Request sends a record-marked call
// and blocks until the complete reply has been read and classified. Procedure
// arguments and results are opaque bytes; encoding them is the caller's
// business.
//
//	conn, err := client.Dial(ctx, "nfs.example.com", 2049, client.Options{
//		Credential: rpc.NewAuthUnix("client", 1000, 1000, nil),
//	})
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	result, err := conn.Request(ctx, rpc.ProgramNFS, 3, rpc.ProcNull, nil)
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/oncrpc/internal/logger"
	"github.com/marmos91/oncrpc/internal/telemetry"
	"github.com/marmos91/oncrpc/pkg/metrics"
	"github.com/marmos91/oncrpc/pkg/rpc"
)

// Conn is a connection to an RPC server.
//
// Requests on one Conn are serialized. After a *NetworkError or
// *rpc.ProtocolError the byte stream position is unknown and every further
// request fails with a *NetworkError wrapping ErrConnBroken; close the Conn
// and dial again.
type Conn struct {
	id         string
	nc         net.Conn
	tr         transport
	opts       Options
	remoteAddr string
	localPort  int
	lc         *logger.LogContext

	// mu serializes requests and guards broken.
	mu     sync.Mutex
	broken error

	closed  atomic.Bool
	onClose func(*Conn)
}

// Dial connects to host:port.
//
// With PortPrivileged (the default) the local port is taken from
// [PortLow, PortHigh]; see Options. Errors are *ConnectError or
// *PortBindError, or a validation error for bad options.
func Dial(ctx context.Context, host string, port int, opts Options) (*Conn, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts = opts.withDefaults()
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, span := telemetry.StartDialSpan(ctx, addr)
	defer span.End()

	start := time.Now()
	nc, err := dial(ctx, addr, opts)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.Debug("connect failed",
			logger.RemoteAddr(addr), logger.PortPolicy(opts.PortPolicy.String()), logger.Err(err))
		return nil, err
	}

	c := newConn(nc, addr, opts)
	span.SetAttributes(telemetry.ConnID(c.id), telemetry.LocalPort(c.localPort))

	if opts.Metrics != nil {
		opts.Metrics.RecordConnectionOpened()
	}

	logger.Debug("connected",
		logger.ConnID(c.id), logger.RemoteAddr(addr), logger.LocalPort(c.localPort), logger.DurationMs(start))

	return c, nil
}

func newConn(nc net.Conn, addr string, opts Options) *Conn {
	id := uuid.NewString()

	localPort := 0
	if tcp, ok := nc.LocalAddr().(*net.TCPAddr); ok {
		localPort = tcp.Port
	}

	return &Conn{
		id:         id,
		nc:         nc,
		tr:         transport{conn: nc, maxRecord: opts.MaxRecordSize},
		opts:       opts,
		remoteAddr: addr,
		localPort:  localPort,
		lc:         logger.NewLogContext(id, addr),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// LocalPort returns the local source port.
func (c *Conn) LocalPort() int { return c.localPort }

// RemoteAddr returns the server address as host:port.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Options returns the effective options, defaults applied.
func (c *Conn) Options() Options { return c.opts }

// Request sends one call and returns the procedure result bytes of the
// reply, exactly as received.
//
// The request is bounded by Options.Timeout and by ctx; cancelling ctx
// interrupts blocked I/O. Errors:
//   - encoding failures (bad credential): plain errors, connection still usable
//   - *NetworkError: I/O failure or deadline; connection broken
//   - *rpc.ProtocolError: malformed reply; connection broken
//   - *rpc.MismatchError, *rpc.AuthError, *rpc.AcceptError: server refused
//     or failed the call; connection still usable
func (c *Conn) Request(ctx context.Context, program, version, procedure uint32, payload []byte, opts ...CallOption) ([]byte, error) {
	co := callOptions{
		cred:       c.opts.Credential,
		msgType:    rpc.MsgCall,
		rpcVersion: rpc.RPCVersion,
	}
	for _, opt := range opts {
		opt(&co)
	}
	if co.cred == nil {
		co.cred = rpc.AuthNone{}
	}

	hdr := rpc.NewCallHeader(program, version, procedure)
	hdr.MsgType = co.msgType
	hdr.RPCVersion = co.rpcVersion

	ctx, span := telemetry.StartRPCSpan(ctx, hdr.XID, program, version, procedure,
		co.cred.Flavor().String(), telemetry.ConnID(c.id))
	defer span.End()

	ctx = logger.WithContext(ctx, c.lc.
		WithCall(hdr.XID, program, version, procedure).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx)))

	start := time.Now()
	result, err := c.roundTrip(ctx, hdr, co.cred, payload)
	outcome := outcomeOf(err)

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordCall(program, procedure, time.Since(start), outcome)
	}
	telemetry.SetAttributes(ctx, telemetry.RPCOutcome(outcome))

	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "rpc call failed", logger.Auth(co.cred.Flavor().String()), logger.Outcome(outcome), logger.DurationMs(start), logger.Err(err))
		return nil, err
	}

	logger.DebugCtx(ctx, "rpc call completed", logger.Bytes(len(result)), logger.DurationMs(start))
	return result, nil
}

func (c *Conn) roundTrip(ctx context.Context, hdr rpc.CallHeader, cred rpc.Credential, payload []byte) ([]byte, error) {
	msg, err := rpc.EncodeCall(hdr, cred, payload)
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, &NetworkError{Op: "write", Err: net.ErrClosed}
	}
	if c.broken != nil {
		return nil, &NetworkError{Op: "write", Err: fmt.Errorf("%w: %w", ErrConnBroken, c.broken)}
	}
	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{Op: "write", Err: err}
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.nc.SetDeadline(deadline); err != nil {
		return nil, c.fail(ctx, &NetworkError{Op: "write", Err: err})
	}

	// Cancelling ctx pulls the deadline in so blocked I/O returns at once.
	// The callback must be finished before the next request sets its own
	// deadline.
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		_ = c.nc.SetDeadline(time.Now())
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
	}()

	n, err := c.tr.send(msg)
	c.recordBytes(metrics.DirectionSent, n)
	telemetry.SetAttributes(ctx, telemetry.BytesSent(n))
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	record, n, err := c.tr.receive()
	c.recordBytes(metrics.DirectionReceived, n)
	telemetry.SetAttributes(ctx, telemetry.BytesReceived(n))
	if err != nil {
		return nil, c.fail(ctx, err)
	}

	reply, err := rpc.ParseReply(record)
	if err != nil {
		var perr *rpc.ProtocolError
		if errors.As(err, &perr) {
			c.broken = err
		}
		return nil, err
	}

	if reply.XID != hdr.XID {
		// One call is in flight per connection, so the reply belongs to
		// this call whatever its xid says.
		logger.WarnCtx(ctx, "reply xid does not match call", "reply_xid", logger.FormatXID(reply.XID))
	}

	return reply.Result, nil
}

// fail marks the connection broken. An I/O error caused by ctx ending is
// reported with the context error as cause.
func (c *Conn) fail(ctx context.Context, err error) error {
	var nerr *NetworkError
	if errors.As(err, &nerr) {
		if cause := contextCause(ctx, nerr); cause != nil && !errors.Is(nerr.Err, cause) {
			err = &NetworkError{Op: nerr.Op, Err: fmt.Errorf("%w (%v)", cause, nerr.Err)}
		}
	}
	c.broken = err
	return err
}

// contextCause returns the context error behind an I/O failure. The socket
// deadline may fire just before the context's own timer does.
func contextCause(ctx context.Context, nerr *NetworkError) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok && nerr.Timeout() && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return nil
}

func (c *Conn) recordBytes(direction string, n int) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordBytes(direction, n)
	}
}

// Close closes the connection. A request blocked on it fails with a
// *NetworkError. Closing an already closed Conn returns net.ErrClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return net.ErrClosed
	}

	err := c.nc.Close()

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordConnectionClosed()
	}
	if c.onClose != nil {
		c.onClose(c)
	}

	logger.Debug("connection closed", logger.ConnID(c.id), logger.RemoteAddr(c.remoteAddr), logger.Err(err))
	return err
}

// outcomeOf maps a Request error to a metrics outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}

	var (
		nerr *NetworkError
		perr *rpc.ProtocolError
		merr *rpc.MismatchError
		aerr *rpc.AuthError
		xerr *rpc.AcceptError
	)
	switch {
	case errors.As(err, &nerr):
		return metrics.OutcomeNetworkError
	case errors.As(err, &perr):
		return metrics.OutcomeProtocolError
	case errors.As(err, &merr):
		return metrics.OutcomeRPCMismatch
	case errors.As(err, &aerr):
		return metrics.OutcomeAuthError
	case errors.As(err, &xerr):
		return metrics.OutcomeAcceptError
	default:
		return metrics.OutcomeEncodeError
	}
}
