package client

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/marmos91/oncrpc/pkg/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCloser counts Close calls and optionally fails them.
type fakeCloser struct {
	closed atomic.Int32
	err    error
}

func (f *fakeCloser) Close() error {
	f.closed.Add(1)
	return f.err
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegistry(t *testing.T) {
	t.Run("RegisterAndDeregister", func(t *testing.T) {
		reg := NewRegistry()

		id := reg.Register(&fakeCloser{})
		assert.NotEmpty(t, id)
		assert.Equal(t, 1, reg.Len())

		assert.True(t, reg.Deregister(id))
		assert.False(t, reg.Deregister(id))
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("DistinctIDs", func(t *testing.T) {
		reg := NewRegistry()

		a := reg.Register(&fakeCloser{})
		b := reg.Register(&fakeCloser{})
		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("CloseAllCountsSuccesses", func(t *testing.T) {
		reg := NewRegistry()

		var all []*fakeCloser
		for i := 0; i < 5; i++ {
			fc := &fakeCloser{}
			if i%2 == 0 {
				fc.err = errors.New("close failed")
			}
			all = append(all, fc)
			reg.Register(fc)
		}

		// 5 registered, 3 failing
		assert.Equal(t, 2, reg.CloseAll())
		assert.Equal(t, 0, reg.Len())
		for _, fc := range all {
			assert.Equal(t, int32(1), fc.closed.Load(), "every entry is closed once")
		}
	})

	t.Run("CloseAllSkipsClosedConn", func(t *testing.T) {
		buf := captureLogs(t)
		srv := rpctest.NewServer(t, rpctest.Echo)
		reg := NewRegistry()

		stale := dialAny(t, srv, Options{})
		live := dialAny(t, srv, Options{})
		reg.Register(stale)
		reg.Register(live)
		require.NoError(t, stale.Close())

		assert.Equal(t, 1, reg.CloseAll())
		assert.Equal(t, 0, reg.Len())
		assert.NotContains(t, buf.String(), "close failed")
		assert.ErrorIs(t, live.Close(), net.ErrClosed)
	})

	t.Run("CloseAllEmpty", func(t *testing.T) {
		assert.Equal(t, 0, NewRegistry().CloseAll())
	})

	t.Run("ConnIsKeyedByID", func(t *testing.T) {
		srv := rpctest.NewServer(t, rpctest.Echo)
		c := dialAny(t, srv, Options{})

		reg := NewRegistry()
		assert.Equal(t, c.ID(), reg.Register(c))
	})
}

// ============================================================================
// Manager Tests
// ============================================================================

func TestManager(t *testing.T) {
	srv := rpctest.NewServer(t, rpctest.Echo)
	m := NewManager(Options{PortPolicy: PortAny})
	t.Cleanup(func() { m.CloseAll() })

	var conns []*Conn
	for i := 0; i < 3; i++ {
		c, err := m.Dial(context.Background(), srv.Host(), srv.Port())
		require.NoError(t, err)
		conns = append(conns, c)
	}
	assert.Equal(t, 3, m.Len())

	require.NoError(t, conns[0].Close())
	assert.Equal(t, 2, m.Len(), "closing a conn deregisters it")

	assert.Equal(t, 2, m.CloseAll())
	assert.Equal(t, 0, m.Len())

	for _, c := range conns {
		assert.ErrorIs(t, c.Close(), net.ErrClosed)
	}
}

func TestManagerDialFailureIsNotRegistered(t *testing.T) {
	m := NewManager(Options{PortPolicy: PortAny})

	_, err := m.Dial(context.Background(), "127.0.0.1", freePort(t))
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, PortAny, m.Options().PortPolicy)
}
