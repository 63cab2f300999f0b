package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Options Tests
// ============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, PortPrivileged, opts.PortPolicy)
	assert.Equal(t, DefaultBindAttempts, opts.BindAttempts)
	assert.Equal(t, 500, opts.PortLow)
	assert.Equal(t, 1023, opts.PortHigh)
	assert.Equal(t, rpc.DefaultMaxRecordSize, opts.MaxRecordSize)
	assert.Equal(t, "tcp", opts.Network)
	assert.Equal(t, rpc.AuthNone{}, opts.Credential)
	assert.Nil(t, opts.Metrics)
}

func TestOptionsWithDefaultsKeepsValues(t *testing.T) {
	opts := Options{
		Timeout:      time.Second,
		PortPolicy:   PortAny,
		BindAttempts: 2,
		PortLow:      600,
		PortHigh:     700,
		Network:      "tcp6",
	}.withDefaults()

	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, PortAny, opts.PortPolicy)
	assert.Equal(t, 2, opts.BindAttempts)
	assert.Equal(t, 600, opts.PortLow)
	assert.Equal(t, 700, opts.PortHigh)
	assert.Equal(t, "tcp6", opts.Network)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"Zero", Options{}, ""},
		{"TCP4", Options{Network: "tcp4"}, ""},
		{"UDP", Options{Network: "udp"}, "unsupported network"},
		{"UnknownPolicy", Options{PortPolicy: 7}, "unknown port policy"},
		{"InvertedRange", Options{PortLow: 900, PortHigh: 800}, "invalid port range"},
		{"OnlyHigh", Options{PortHigh: 800}, "invalid port range"},
		{"TooHigh", Options{PortLow: 1, PortHigh: 70000}, "invalid port range"},
		{"SinglePort", Options{PortLow: 800, PortHigh: 800}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParsePortPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PortPolicy
		wantErr bool
	}{
		{"privileged", PortPrivileged, false},
		{"Secure", PortPrivileged, false},
		{"any", PortAny, false},
		{"EPHEMERAL", PortAny, false},
		{"random", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePortPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParse(t, got.String()))
		})
	}
}

func mustParse(t *testing.T, s string) PortPolicy {
	t.Helper()
	p, err := ParsePortPolicy(s)
	require.NoError(t, err)
	return p
}

// ============================================================================
// Error Type Tests
// ============================================================================

func TestPortBindError(t *testing.T) {
	last := errors.New("address already in use")
	err := error(&PortBindError{Attempts: 16, Low: 500, High: 1023, Last: last})

	assert.ErrorIs(t, err, ErrPortBindExhausted)
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "[500, 1023]")
	assert.Contains(t, err.Error(), "16 attempts")

	wrapped := fmt.Errorf("mount: %w", err)
	assert.ErrorIs(t, wrapped, ErrPortBindExhausted)
}

func TestNetworkErrorTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Deadline", os.ErrDeadlineExceeded, true},
		{"OpDeadline", &net.OpError{Op: "read", Err: os.ErrDeadlineExceeded}, true},
		{"EOF", io.EOF, false},
		{"Closed", net.ErrClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nerr := &NetworkError{Op: "read", Err: tt.err}
			assert.Equal(t, tt.want, nerr.Timeout())
			assert.ErrorIs(t, nerr, tt.err)
		})
	}
}

func TestConnectError(t *testing.T) {
	err := &ConnectError{Addr: "10.0.0.1:2049", Err: os.ErrDeadlineExceeded}

	assert.True(t, err.Timeout())
	assert.Contains(t, err.Error(), "10.0.0.1:2049")
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}
