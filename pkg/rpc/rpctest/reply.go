// Package rpctest provides server-side helpers for testing ONC RPC clients:
// reply builders, a call decoder and a loopback TCP server.
package rpctest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/oncrpc/internal/protocol/xdr"
	"github.com/marmos91/oncrpc/pkg/rpc"
)

// ============================================================================
// Reply Builders
// ============================================================================
//
// Builders return the reply record WITHOUT record marking. Use Frame or
// Fragments to put it on the wire.

// SuccessReply builds an accepted SUCCESS reply with an AUTH_NONE verifier
// followed by result verbatim.
func SuccessReply(xid uint32, result []byte) []byte {
	buf := acceptedHeader(xid, rpc.Success)
	_, _ = buf.Write(result)
	return buf.Bytes()
}

// AcceptErrorReply builds an accepted reply with a non-SUCCESS accept_stat.
func AcceptErrorReply(xid uint32, stat rpc.AcceptStat) []byte {
	return acceptedHeader(xid, stat).Bytes()
}

// ProgMismatchReply builds an accepted PROG_MISMATCH reply with version bounds.
func ProgMismatchReply(xid uint32, low, high uint32) []byte {
	buf := acceptedHeader(xid, rpc.ProgMismatch)
	_ = xdr.WriteUint32(buf, low)
	_ = xdr.WriteUint32(buf, high)
	return buf.Bytes()
}

// MismatchReply builds a denied RPC_MISMATCH reply.
func MismatchReply(xid uint32, low, high uint32) []byte {
	buf := deniedHeader(xid, rpc.RejectRPCMismatch)
	_ = xdr.WriteUint32(buf, low)
	_ = xdr.WriteUint32(buf, high)
	return buf.Bytes()
}

// AuthErrorReply builds a denied AUTH_ERROR reply.
func AuthErrorReply(xid uint32, stat rpc.AuthStat) []byte {
	buf := deniedHeader(xid, rpc.RejectAuthError)
	_ = xdr.WriteUint32(buf, uint32(stat))
	return buf.Bytes()
}

func acceptedHeader(xid uint32, stat rpc.AcceptStat) *bytes.Buffer {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, xid)
	_ = xdr.WriteUint32(&buf, uint32(rpc.MsgReply))
	_ = xdr.WriteUint32(&buf, rpc.MsgAccepted)
	_ = xdr.WriteUint32(&buf, uint32(rpc.AuthNull))
	_ = xdr.WriteUint32(&buf, 0)
	_ = xdr.WriteUint32(&buf, uint32(stat))
	return &buf
}

func deniedHeader(xid uint32, rejectStat uint32) *bytes.Buffer {
	var buf bytes.Buffer
	_ = xdr.WriteUint32(&buf, xid)
	_ = xdr.WriteUint32(&buf, uint32(rpc.MsgReply))
	_ = xdr.WriteUint32(&buf, rpc.MsgDenied)
	_ = xdr.WriteUint32(&buf, rejectStat)
	return &buf
}

// ============================================================================
// Record Marking
// ============================================================================

// Frame wraps record in a single last fragment.
func Frame(record []byte) []byte {
	framed, err := rpc.AddRecordMark(record, true)
	if err != nil {
		panic(err)
	}
	return framed
}

// Fragments splits record into fragments of the given body sizes; the
// remainder (if any) goes into a final fragment. Only the final fragment
// carries the last-fragment flag.
func Fragments(record []byte, sizes ...int) []byte {
	var out []byte
	rest := record
	for _, size := range sizes {
		if size > len(rest) {
			size = len(rest)
		}
		out = appendFragment(out, rest[:size], false)
		rest = rest[size:]
	}
	return appendFragment(out, rest, true)
}

func appendFragment(out, body []byte, last bool) []byte {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], rpc.FragmentHeader{Last: last, Length: uint32(len(body))}.Encode())
	out = append(out, header[:]...)
	return append(out, body...)
}

// ============================================================================
// Call Decoding
// ============================================================================

// Call is a decoded RPC call as seen by a server.
type Call struct {
	Header     rpc.CallHeader
	CredFlavor rpc.AuthFlavor
	CredBody   []byte
	VerfFlavor rpc.AuthFlavor
	VerfBody   []byte

	// Args holds the procedure arguments that follow the verifier.
	Args []byte
}

// ParseCall decodes a call record (without record marking).
func ParseCall(record []byte) (*Call, error) {
	reader := bytes.NewReader(record)

	fields := make([]uint32, 6)
	for i := range fields {
		v, err := xdr.DecodeUint32(reader)
		if err != nil {
			return nil, fmt.Errorf("decode call header field %d: %w", i, err)
		}
		fields[i] = v
	}

	call := &Call{
		Header: rpc.CallHeader{
			XID:        fields[0],
			MsgType:    rpc.MsgType(fields[1]),
			RPCVersion: fields[2],
			Program:    fields[3],
			Version:    fields[4],
			Procedure:  fields[5],
		},
	}

	flavor, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, fmt.Errorf("decode credential flavor: %w", err)
	}
	call.CredFlavor = rpc.AuthFlavor(flavor)
	if call.CredBody, err = xdr.DecodeOpaque(reader, rpc.MaxAuthBodyLength); err != nil {
		return nil, fmt.Errorf("decode credential body: %w", err)
	}

	if flavor, err = xdr.DecodeUint32(reader); err != nil {
		return nil, fmt.Errorf("decode verifier flavor: %w", err)
	}
	call.VerfFlavor = rpc.AuthFlavor(flavor)
	if call.VerfBody, err = xdr.DecodeOpaque(reader, rpc.MaxAuthBodyLength); err != nil {
		return nil, fmt.Errorf("decode verifier body: %w", err)
	}

	call.Args = make([]byte, reader.Len())
	_, _ = reader.Read(call.Args)

	return call, nil
}
