package portmap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/client"
)

// Requester sends one RPC call and returns the result bytes.
// *client.Conn satisfies it.
type Requester interface {
	Request(ctx context.Context, program, version, procedure uint32, payload []byte, opts ...client.CallOption) ([]byte, error)
}

// ErrNotRegistered is returned by Getport when the portmapper has no
// mapping for the program.
var ErrNotRegistered = errors.New("program not registered with portmapper")

// Getport asks the portmapper behind r which TCP port serves prog/vers.
func Getport(ctx context.Context, r Requester, prog, vers uint32) (int, error) {
	args := EncodeMapping(Mapping{Prog: prog, Vers: vers, Prot: ProtoTCP})

	result, err := r.Request(ctx, rpc.ProgramPortmap, Version2, ProcGetport, args)
	if err != nil {
		return 0, fmt.Errorf("portmap GETPORT: %w", err)
	}
	if len(result) < 4 {
		return 0, fmt.Errorf("portmap GETPORT: result too short: %d bytes", len(result))
	}

	port := binary.BigEndian.Uint32(result[0:4])
	if port == 0 {
		return 0, fmt.Errorf("program %d version %d: %w", prog, vers, ErrNotRegistered)
	}
	if port > 65535 {
		return 0, fmt.Errorf("portmap GETPORT: invalid port %d", port)
	}
	return int(port), nil
}

// Dump lists every mapping registered with the portmapper behind r.
func Dump(ctx context.Context, r Requester) ([]Mapping, error) {
	result, err := r.Request(ctx, rpc.ProgramPortmap, Version2, ProcDump, nil)
	if err != nil {
		return nil, fmt.Errorf("portmap DUMP: %w", err)
	}
	return decodeDump(result)
}

// Resolve dials the portmapper on host, looks up prog/vers and closes the
// portmapper connection. The lookup uses the same options as the caller's
// connections, so it too comes from a privileged port unless told otherwise.
func Resolve(ctx context.Context, host string, prog, vers uint32, opts client.Options) (int, error) {
	return resolve(ctx, host, Port, prog, vers, opts)
}

func resolve(ctx context.Context, host string, pmapPort int, prog, vers uint32, opts client.Options) (int, error) {
	conn, err := client.Dial(ctx, host, pmapPort, opts)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	return Getport(ctx, conn, prog, vers)
}
