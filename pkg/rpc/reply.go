package rpc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/marmos91/oncrpc/internal/protocol/xdr"
	goxdr "github.com/rasky/go-xdr/xdr2"
)

// OpaqueAuth is an authentication flavor with its raw body, as carried by
// reply verifiers.
type OpaqueAuth struct {
	Flavor AuthFlavor
	Body   []byte
}

// replyHeader is the part shared by every reply.
type replyHeader struct {
	XID        uint32
	MsgType    uint32
	ReplyState uint32
}

// Reply is a successfully classified RPC reply.
//
// Wire Format (XDR encoding) of an accepted reply:
//   - XID:        4 bytes
//   - MsgType:    4 bytes (1 for REPLY)
//   - ReplyState: 4 bytes (0 for MSG_ACCEPTED)
//   - Verf:       flavor + opaque body (8 bytes when empty)
//   - AcceptStat: 4 bytes (0 for SUCCESS)
//   - [procedure results follow]
//
// With the usual empty verifier the results start at byte 24.
type Reply struct {
	// XID as sent by the server. It is not checked against the call.
	XID uint32

	// Verifier is the server's verifier. It is decoded but never validated.
	Verifier OpaqueAuth

	// Result holds the procedure results exactly as received.
	Result []byte
}

// ParseReply classifies a reassembled reply record.
//
// Only an accepted reply with accept_stat SUCCESS yields a *Reply. Every
// other outcome is an error:
//   - msg_type other than REPLY, unknown states, truncation: *ProtocolError
//   - denied, RPC_MISMATCH: *MismatchError
//   - denied, AUTH_ERROR: *AuthError
//   - accepted, accept_stat != SUCCESS: *AcceptError
func ParseReply(record []byte) (*Reply, error) {
	if len(record) < 12 {
		return nil, protocolErrorf("reply too short: %d bytes", len(record))
	}

	reader := bytes.NewReader(record)

	var hdr replyHeader
	if _, err := goxdr.Unmarshal(reader, &hdr); err != nil {
		return nil, protocolErrorf("decode reply header: %v", err)
	}

	if MsgType(hdr.MsgType) != MsgReply {
		return nil, protocolErrorf("expected REPLY (%d), got message type %d", MsgReply, hdr.MsgType)
	}

	switch hdr.ReplyState {
	case MsgAccepted:
		return parseAccepted(hdr.XID, reader)
	case MsgDenied:
		return nil, parseDenied(reader)
	default:
		return nil, protocolErrorf("unknown reply state %d", hdr.ReplyState)
	}
}

// parseDenied decodes rejected_reply and returns the matching error.
func parseDenied(reader io.Reader) error {
	rejectStat, err := xdr.DecodeUint32(reader)
	if err != nil {
		return protocolErrorf("decode reject status: %v", err)
	}

	switch rejectStat {
	case RejectRPCMismatch:
		low, err := xdr.DecodeUint32(reader)
		if err != nil {
			return protocolErrorf("decode mismatch low bound: %v", err)
		}
		high, err := xdr.DecodeUint32(reader)
		if err != nil {
			return protocolErrorf("decode mismatch high bound: %v", err)
		}
		return &MismatchError{Low: low, High: high}

	case RejectAuthError:
		stat, err := xdr.DecodeUint32(reader)
		if err != nil {
			return protocolErrorf("decode auth status: %v", err)
		}
		return &AuthError{Stat: AuthStat(stat)}

	default:
		return protocolErrorf("unknown reject status %d", rejectStat)
	}
}

// parseAccepted decodes accepted_reply; reader is positioned at the verifier.
func parseAccepted(xid uint32, reader *bytes.Reader) (*Reply, error) {
	flavor, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, protocolErrorf("decode verifier flavor: %v", err)
	}
	body, err := xdr.DecodeOpaque(reader, MaxAuthBodyLength)
	if err != nil {
		return nil, protocolErrorf("decode verifier body: %v", err)
	}

	stat, err := xdr.DecodeUint32(reader)
	if err != nil {
		return nil, protocolErrorf("decode accept status: %v", err)
	}

	switch AcceptStat(stat) {
	case Success:
		// The rest of the record is the procedure result, untouched.
		result := make([]byte, reader.Len())
		_, _ = reader.Read(result)
		return &Reply{
			XID:      xid,
			Verifier: OpaqueAuth{Flavor: AuthFlavor(flavor), Body: body},
			Result:   result,
		}, nil

	case ProgMismatch:
		low, err := xdr.DecodeUint32(reader)
		if err != nil {
			return nil, protocolErrorf("decode program mismatch low bound: %v", err)
		}
		high, err := xdr.DecodeUint32(reader)
		if err != nil {
			return nil, protocolErrorf("decode program mismatch high bound: %v", err)
		}
		return nil, &AcceptError{Stat: ProgMismatch, Low: low, High: high}

	default:
		return nil, &AcceptError{Stat: AcceptStat(stat)}
	}
}

// String returns a short description for logging.
func (r *Reply) String() string {
	return fmt.Sprintf("Reply{xid=0x%08x verf=%s result=%d bytes}", r.XID, r.Verifier.Flavor, len(r.Result))
}
