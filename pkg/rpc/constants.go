package rpc

// RPC Program Numbers
//
// Well-known programs spoken over this transport. The core never interprets
// program numbers; these exist for callers and the diagnostic CLI.
//
// Reference: RFC 1833 (portmapper), RFC 1813 (NFS v3 and MOUNT)
const (
	// ProgramPortmap is the port mapper program number (RFC 1833).
	ProgramPortmap = 100000

	// ProgramNFS is the NFS program number (RFC 1813, RFC 7530).
	ProgramNFS = 100003

	// ProgramMount is the Mount protocol program number (RFC 1813 Appendix I).
	ProgramMount = 100005

	// ProgramNLM is the Network Lock Manager program number.
	ProgramNLM = 100021
)

// RPCVersion is the only ONC RPC protocol version defined (RFC 5531).
const RPCVersion = 2

// ProcNull is procedure 0 of every RPC program: no arguments, no results.
// It is used as a ping.
const ProcNull = 0

// MsgType identifies whether an RPC message is a call or a reply.
//
// Reference: RFC 5531 Section 9
type MsgType uint32

const (
	// MsgCall is a request from the client to the server.
	MsgCall MsgType = 0

	// MsgReply is a response from the server to the client.
	MsgReply MsgType = 1
)

// Reply states (reply_stat).
const (
	// MsgAccepted means the server recognized the program and attempted the call.
	MsgAccepted = 0

	// MsgDenied means the server rejected the call before dispatching it,
	// either for an RPC version mismatch or an authentication failure.
	MsgDenied = 1
)

// AcceptStat is the accept_stat of an accepted reply.
type AcceptStat uint32

const (
	Success      AcceptStat = 0 // RPC executed successfully
	ProgUnavail  AcceptStat = 1 // remote hasn't exported the program
	ProgMismatch AcceptStat = 2 // remote can't support the version
	ProcUnavail  AcceptStat = 3 // program can't support the procedure
	GarbageArgs  AcceptStat = 4 // procedure can't decode its arguments
	SystemErr    AcceptStat = 5 // memory allocation failure, etc.
)

func (s AcceptStat) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case ProgUnavail:
		return "PROG_UNAVAIL"
	case ProgMismatch:
		return "PROG_MISMATCH"
	case ProcUnavail:
		return "PROC_UNAVAIL"
	case GarbageArgs:
		return "GARBAGE_ARGS"
	case SystemErr:
		return "SYSTEM_ERR"
	default:
		return "UNKNOWN"
	}
}

// Reject statuses (reject_stat) of a denied reply.
const (
	// RejectRPCMismatch means the RPC version is not 2; low/high bounds follow.
	RejectRPCMismatch = 0

	// RejectAuthError means the server could not authenticate the caller;
	// an auth_stat follows.
	RejectAuthError = 1
)

// AuthFlavor identifies an authentication scheme (opaque_auth flavor).
type AuthFlavor uint32

const (
	// AuthNull carries no authentication data.
	AuthNull AuthFlavor = 0

	// AuthUnix carries a host identity (uid, gid, aux gids) without proof.
	// Also known as AUTH_SYS.
	AuthUnix AuthFlavor = 1

	// AuthShort is a server-issued shorthand for a prior AUTH_UNIX credential.
	// Not supported by this client.
	AuthShort AuthFlavor = 2

	// AuthDES is DES based authentication. Not supported by this client.
	AuthDES AuthFlavor = 3
)

func (f AuthFlavor) String() string {
	switch f {
	case AuthNull:
		return "AUTH_NONE"
	case AuthUnix:
		return "AUTH_UNIX"
	case AuthShort:
		return "AUTH_SHORT"
	case AuthDES:
		return "AUTH_DES"
	default:
		return "UNKNOWN"
	}
}

// AuthStat is the auth_stat carried by an AUTH_ERROR rejection.
type AuthStat uint32

const (
	AuthOK           AuthStat = 0 // success
	AuthBadCred      AuthStat = 1 // bad credential (seal broken)
	AuthRejectedCred AuthStat = 2 // client must begin new session
	AuthBadVerf      AuthStat = 3 // bad verifier (seal broken)
	AuthRejectedVerf AuthStat = 4 // verifier expired or replayed
	AuthTooWeak      AuthStat = 5 // rejected for security reasons
	AuthInvalidResp  AuthStat = 6 // bogus response verifier
	AuthFailed       AuthStat = 7 // reason unknown
)

// authReasons maps auth_stat values to human readable reasons.
var authReasons = map[AuthStat]string{
	AuthOK:           "ok",
	AuthBadCred:      "bad credential",
	AuthRejectedCred: "rejected credential",
	AuthBadVerf:      "bad verifier",
	AuthRejectedVerf: "rejected verifier",
	AuthTooWeak:      "too weak",
	AuthInvalidResp:  "invalid response",
	AuthFailed:       "failed",
}

// Reason returns the human readable reason for the auth status.
// Unknown codes map to "unknown".
func (s AuthStat) Reason() string {
	if r, ok := authReasons[s]; ok {
		return r
	}
	return "unknown"
}

// MaxAuthBodyLength is the maximum size of an opaque_auth body (RFC 5531).
const MaxAuthBodyLength = 400

// MaxMachineNameLength is the maximum machine name length in an AUTH_UNIX
// credential (RFC 5531 Appendix A).
const MaxMachineNameLength = 255

// MaxAuxGIDs is the maximum number of auxiliary gids in an AUTH_UNIX credential.
const MaxAuxGIDs = 16
