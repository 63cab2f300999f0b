//go:build unix

package client

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"

	"github.com/marmos91/oncrpc/pkg/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestDialPortBindExhausted(t *testing.T) {
	srv := rpctest.NewServer(t, rpctest.Echo)

	// Occupy the only port in range so every bind fails with EADDRINUSE.
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()
	port := occupied.Addr().(*net.TCPAddr).Port

	_, err = Dial(context.Background(), srv.Host(), srv.Port(), Options{
		PortLow:      port,
		PortHigh:     port,
		BindAttempts: 3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPortBindExhausted)
	assert.ErrorIs(t, err, unix.EADDRINUSE)

	var berr *PortBindError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, 3, berr.Attempts)
	assert.Equal(t, port, berr.Low)
	assert.Equal(t, port, berr.High)
	assert.Empty(t, srv.Peers())
}

func TestIsBindError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"AddrInUse", unix.EADDRINUSE, true},
		{"AddrNotAvail", unix.EADDRNOTAVAIL, true},
		{"Access", unix.EACCES, true},
		{"Perm", unix.EPERM, true},
		{"Wrapped", &net.OpError{Op: "dial", Err: &net.AddrError{}}, false},
		{"WrappedErrno", &net.OpError{Op: "dial", Err: os.NewSyscallError("bind", unix.EADDRINUSE)}, true},
		{"Refused", unix.ECONNREFUSED, false},
		{"Other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBindError(tt.err))
		})
	}
}
