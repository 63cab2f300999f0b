package rpc

import (
	"bytes"
	"fmt"
	"time"

	"github.com/marmos91/oncrpc/internal/protocol/xdr"
)

// CallHeader is the fixed part of an RPC call message.
//
// Wire Format (XDR encoding):
//   - XID:        4 bytes (transaction identifier)
//   - MsgType:    4 bytes (0 for CALL)
//   - RPCVersion: 4 bytes (2)
//   - Program:    4 bytes
//   - Version:    4 bytes (program version)
//   - Procedure:  4 bytes
//   - Cred:       variable (flavor + length + body)
//   - Verf:       variable (always AUTH_NONE here)
//   - [procedure-specific arguments follow]
//
// Reference: RFC 5531 Section 9
type CallHeader struct {
	// XID correlates the call with its reply. It is derived from the clock
	// and is not guaranteed unique; correlation relies on one call being in
	// flight per connection.
	XID uint32

	// MsgType is MsgCall for every request. It is configurable only so callers
	// can exercise servers with malformed messages.
	MsgType MsgType

	// RPCVersion is 2 for every real server.
	RPCVersion uint32

	Program   uint32
	Version   uint32
	Procedure uint32
}

// NewCallHeader returns a CALL header with a fresh XID and RPC version 2.
func NewCallHeader(program, version, procedure uint32) CallHeader {
	return CallHeader{
		XID:        NewXID(),
		MsgType:    MsgCall,
		RPCVersion: RPCVersion,
		Program:    program,
		Version:    version,
		Procedure:  procedure,
	}
}

// NewXID derives a transaction id from the current time truncated to 32 bits.
func NewXID() uint32 {
	return uint32(time.Now().UnixNano() & 0xFFFFFFFF)
}

// EncodeCall builds a complete record-marked RPC call: fragment header,
// call header, credential, AUTH_NONE verifier and the caller's payload
// appended verbatim.
//
// The message is always sent as a single fragment with the last-fragment
// bit set. A nil credential is encoded as AUTH_NONE.
func EncodeCall(hdr CallHeader, cred Credential, payload []byte) ([]byte, error) {
	if cred == nil {
		cred = AuthNone{}
	}

	body, err := cred.Body()
	if err != nil {
		return nil, fmt.Errorf("encode %s credential: %w", cred.Flavor(), err)
	}
	if len(body) > MaxAuthBodyLength {
		return nil, fmt.Errorf("%s credential body too large: %d bytes (max %d)",
			cred.Flavor(), len(body), MaxAuthBodyLength)
	}

	// Record mark placeholder (4) + header (24) + cred (8 + body) + verf (8)
	size := 4 + 24 + 8 + len(body) + int(xdr.Padding(uint32(len(body)))) + 8 + len(payload)
	buf := bytes.NewBuffer(make([]byte, 0, size))

	// Placeholder for the fragment header, filled in once the length is known.
	_ = xdr.WriteUint32(buf, 0)

	// RPC header fields (writes to bytes.Buffer never fail)
	_ = xdr.WriteUint32(buf, hdr.XID)
	_ = xdr.WriteUint32(buf, uint32(hdr.MsgType))
	_ = xdr.WriteUint32(buf, hdr.RPCVersion)
	_ = xdr.WriteUint32(buf, hdr.Program)
	_ = xdr.WriteUint32(buf, hdr.Version)
	_ = xdr.WriteUint32(buf, hdr.Procedure)

	// Credential: flavor + opaque body
	_ = xdr.WriteUint32(buf, uint32(cred.Flavor()))
	_ = xdr.WriteOpaque(buf, body)

	// Verifier: AUTH_NONE (flavor=0, length=0)
	_ = xdr.WriteUint32(buf, uint32(AuthNull))
	_ = xdr.WriteUint32(buf, 0)

	_, _ = buf.Write(payload)

	msg := buf.Bytes()
	if err := putRecordMark(msg, true); err != nil {
		return nil, err
	}

	return msg, nil
}
