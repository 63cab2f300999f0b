package client

import (
	"context"
	"math/rand"
	"net"

	"github.com/marmos91/oncrpc/internal/logger"
	"github.com/marmos91/oncrpc/internal/telemetry"
)

// dial connects to addr according to opts.PortPolicy. opts must have
// defaults applied.
func dial(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	if opts.PortPolicy == PortAny {
		d := net.Dialer{Timeout: opts.Timeout}
		conn, err := d.DialContext(ctx, opts.Network, addr)
		if err != nil {
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		return conn, nil
	}
	return dialPrivileged(ctx, addr, opts)
}

// dialPrivileged binds a random port in [opts.PortLow, opts.PortHigh] and
// connects from it. A bind-class failure (port in use, not permitted, not
// available) moves on to another random port; anything else is a
// *ConnectError. After opts.BindAttempts bind failures it gives up with a
// *PortBindError.
func dialPrivileged(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	var last error

	for attempt := 1; attempt <= opts.BindAttempts; attempt++ {
		port := opts.PortLow + rand.Intn(opts.PortHigh-opts.PortLow+1)

		d := net.Dialer{
			Timeout:   opts.Timeout,
			LocalAddr: &net.TCPAddr{Port: port},
		}
		conn, err := d.DialContext(ctx, opts.Network, addr)
		if err == nil {
			recordBindAttempt(opts, true)
			return conn, nil
		}

		if !isBindError(err) {
			return nil, &ConnectError{Addr: addr, Err: err}
		}

		recordBindAttempt(opts, false)
		telemetry.AddEvent(ctx, "local port in use", telemetry.LocalPort(port))
		logger.Debug("local port bind failed",
			logger.RemoteAddr(addr), logger.LocalPort(port), logger.Attempt(attempt), logger.Err(err))
		last = err

		if ctx.Err() != nil {
			return nil, &ConnectError{Addr: addr, Err: ctx.Err()}
		}
	}

	return nil, &PortBindError{
		Attempts: opts.BindAttempts,
		Low:      opts.PortLow,
		High:     opts.PortHigh,
		Last:     last,
	}
}

func recordBindAttempt(opts Options, success bool) {
	if opts.Metrics != nil {
		opts.Metrics.RecordBindAttempt(success)
	}
}
