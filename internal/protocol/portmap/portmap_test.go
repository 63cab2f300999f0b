package portmap

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
	"github.com/marmos91/oncrpc/pkg/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// portmapper answers GETPORT and DUMP from a fixed table.
func portmapper(t *testing.T, table []Mapping) *rpctest.Server {
	t.Helper()

	return rpctest.NewServer(t, func(call *rpctest.Call) []byte {
		xid := call.Header.XID
		if call.Header.Program != rpc.ProgramPortmap {
			return rpctest.Frame(rpctest.AcceptErrorReply(xid, rpc.ProgUnavail))
		}

		switch call.Header.Procedure {
		case ProcGetport:
			want, err := DecodeMapping(call.Args)
			if err != nil {
				return rpctest.Frame(rpctest.AcceptErrorReply(xid, rpc.GarbageArgs))
			}
			var port uint32
			for _, m := range table {
				if m.Prog == want.Prog && m.Vers == want.Vers && m.Prot == want.Prot {
					port = m.Port
				}
			}
			return rpctest.Frame(rpctest.SuccessReply(xid, binary.BigEndian.AppendUint32(nil, port)))
		case ProcDump:
			var out []byte
			for _, m := range table {
				out = binary.BigEndian.AppendUint32(out, 1)
				out = append(out, EncodeMapping(m)...)
			}
			out = binary.BigEndian.AppendUint32(out, 0)
			return rpctest.Frame(rpctest.SuccessReply(xid, out))
		default:
			return rpctest.Frame(rpctest.AcceptErrorReply(xid, rpc.ProcUnavail))
		}
	})
}

func anyPortOptions() client.Options {
	opts := client.DefaultOptions()
	opts.PortPolicy = client.PortAny
	return opts
}

func dialPortmapper(t *testing.T, srv *rpctest.Server) *client.Conn {
	t.Helper()

	conn, err := client.Dial(context.Background(), srv.Host(), srv.Port(), anyPortOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

var nfsTable = []Mapping{
	{Prog: rpc.ProgramPortmap, Vers: 2, Prot: ProtoTCP, Port: Port},
	{Prog: rpc.ProgramNFS, Vers: 3, Prot: ProtoTCP, Port: 2049},
	{Prog: rpc.ProgramMount, Vers: 3, Prot: ProtoTCP, Port: 20048},
	{Prog: rpc.ProgramMount, Vers: 3, Prot: ProtoUDP, Port: 20049},
}

// ============================================================================
// Mapping Codec Tests
// ============================================================================

func TestMappingCodec(t *testing.T) {
	m := Mapping{Prog: 100003, Vers: 3, Prot: ProtoTCP, Port: 2049}

	data := EncodeMapping(m)
	require.Len(t, data, MappingSize)
	assert.Equal(t, []byte{0, 1, 0x86, 0xa3, 0, 0, 0, 3, 0, 0, 0, 6, 0, 0, 0x08, 0x01}, data)

	got, err := DecodeMapping(append(data, 0xff))
	require.NoError(t, err)
	assert.Equal(t, m, got)

	_, err = DecodeMapping(data[:15])
	assert.ErrorContains(t, err, "too short")
}

func TestMappingString(t *testing.T) {
	assert.Equal(t, "program 100005 version 3 udp port 20049", nfsTable[3].String())
	assert.Equal(t, "program 1 version 1 proto(99) port 0", Mapping{Prog: 1, Vers: 1, Prot: 99}.String())
}

func TestDecodeDump(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		got, err := decodeDump([]byte{0, 0, 0, 0})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("MissingTerminator", func(t *testing.T) {
		data := append([]byte{0, 0, 0, 1}, EncodeMapping(nfsTable[1])...)
		_, err := decodeDump(data)
		assert.ErrorContains(t, err, "truncated after 1 entries")
	})

	t.Run("ShortEntry", func(t *testing.T) {
		_, err := decodeDump([]byte{0, 0, 0, 1, 0, 0, 0, 1})
		assert.ErrorContains(t, err, "entry 0")
	})
}

// ============================================================================
// Client Tests
// ============================================================================

func TestGetport(t *testing.T) {
	srv := portmapper(t, nfsTable)
	conn := dialPortmapper(t, srv)
	ctx := context.Background()

	t.Run("Registered", func(t *testing.T) {
		port, err := Getport(ctx, conn, rpc.ProgramMount, 3)
		require.NoError(t, err)
		assert.Equal(t, 20048, port, "tcp mapping wins over udp")
	})

	t.Run("NotRegistered", func(t *testing.T) {
		_, err := Getport(ctx, conn, rpc.ProgramNLM, 4)
		require.ErrorIs(t, err, ErrNotRegistered)
		assert.Contains(t, err.Error(), "program 100021 version 4")
	})

	t.Run("ConnectionStaysUsable", func(t *testing.T) {
		port, err := Getport(ctx, conn, rpc.ProgramNFS, 3)
		require.NoError(t, err)
		assert.Equal(t, 2049, port)
		assert.Len(t, srv.Peers(), 1)
	})
}

func TestGetportServerErrors(t *testing.T) {
	t.Run("ProgUnavail", func(t *testing.T) {
		srv := rpctest.NewServer(t, func(call *rpctest.Call) []byte {
			return rpctest.Frame(rpctest.AcceptErrorReply(call.Header.XID, rpc.ProgUnavail))
		})

		_, err := Getport(context.Background(), dialPortmapper(t, srv), rpc.ProgramNFS, 3)
		var aerr *rpc.AcceptError
		require.ErrorAs(t, err, &aerr)
		assert.Equal(t, rpc.ProgUnavail, aerr.Stat)
	})

	t.Run("ShortResult", func(t *testing.T) {
		srv := rpctest.NewServer(t, func(call *rpctest.Call) []byte {
			return rpctest.Frame(rpctest.SuccessReply(call.Header.XID, []byte{0, 0}))
		})

		_, err := Getport(context.Background(), dialPortmapper(t, srv), rpc.ProgramNFS, 3)
		assert.ErrorContains(t, err, "result too short")
	})
}

func TestDump(t *testing.T) {
	srv := portmapper(t, nfsTable)

	got, err := Dump(context.Background(), dialPortmapper(t, srv))
	require.NoError(t, err)
	assert.Equal(t, nfsTable, got)
}

func TestResolve(t *testing.T) {
	srv := portmapper(t, nfsTable)

	port, err := resolve(context.Background(), srv.Host(), srv.Port(), rpc.ProgramNFS, 3, anyPortOptions())
	require.NoError(t, err)
	assert.Equal(t, 2049, port)

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(Version2), calls[0].Header.Version)
	assert.Equal(t, uint32(ProcGetport), calls[0].Header.Procedure)
}
