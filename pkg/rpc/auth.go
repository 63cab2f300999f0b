package rpc

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// Credential is the authentication data carried in every RPC call.
//
// The set of implementations is closed: AuthNone and *AuthUnixCred. Use
// NewCredential to build one from configuration, which rejects flavors this
// client cannot encode before any request is attempted.
type Credential interface {
	// Flavor returns the opaque_auth flavor tag.
	Flavor() AuthFlavor

	// Body returns the XDR encoded credential body (without flavor and length).
	Body() ([]byte, error)

	credential()
}

// AuthNone is the AUTH_NONE (AUTH_NULL) credential: flavor 0, empty body.
type AuthNone struct{}

func (AuthNone) Flavor() AuthFlavor { return AuthNull }

func (AuthNone) Body() ([]byte, error) { return nil, nil }

func (AuthNone) credential() {}

// AuthUnixCred is the AUTH_UNIX (AUTH_SYS) credential.
//
// Wire Format (XDR encoding):
//   - Stamp:       4 bytes
//   - MachineName: 4 bytes length + name + zero padding to 4 bytes
//   - UID:         4 bytes
//   - GID:         4 bytes
//   - AuxGIDs:     4 bytes count + 4 bytes per gid
//
// Reference: RFC 5531 Appendix A
type AuthUnixCred struct {
	// Stamp is an arbitrary id generated by the caller's machine.
	Stamp uint32

	// MachineName is the caller's host name.
	MachineName string

	UID uint32
	GID uint32

	// AuxGIDs are the supplementary groups of the caller.
	//
	// The list exactly [0] is encoded as an empty list. Callers that mean
	// "root's supplementary group 0" must not rely on it being sent.
	AuxGIDs []uint32
}

// authUnixBody mirrors the AUTH_UNIX wire layout for XDR (un)marshaling.
type authUnixBody struct {
	Stamp       uint32
	MachineName string
	UID         uint32
	GID         uint32
	GIDs        []uint32
}

// NewAuthUnix builds an AUTH_UNIX credential stamped from the current time.
func NewAuthUnix(machineName string, uid, gid uint32, auxGIDs []uint32) *AuthUnixCred {
	return &AuthUnixCred{
		Stamp:       uint32(time.Now().Unix() & 0xffff),
		MachineName: machineName,
		UID:         uid,
		GID:         gid,
		AuxGIDs:     auxGIDs,
	}
}

func (a *AuthUnixCred) Flavor() AuthFlavor { return AuthUnix }

func (a *AuthUnixCred) credential() {}

// wireGIDs returns the aux gid list as it goes on the wire.
func (a *AuthUnixCred) wireGIDs() []uint32 {
	if a.AuxGIDs == nil || (len(a.AuxGIDs) == 1 && a.AuxGIDs[0] == 0) {
		return []uint32{}
	}
	return a.AuxGIDs
}

// Body encodes the credential body.
func (a *AuthUnixCred) Body() ([]byte, error) {
	if len(a.MachineName) > MaxMachineNameLength {
		return nil, fmt.Errorf("machine name too long: %d bytes (max %d)", len(a.MachineName), MaxMachineNameLength)
	}

	gids := a.wireGIDs()
	if len(gids) > MaxAuxGIDs {
		return nil, fmt.Errorf("too many gids: %d (max %d)", len(gids), MaxAuxGIDs)
	}

	var buf bytes.Buffer
	body := authUnixBody{
		Stamp:       a.Stamp,
		MachineName: a.MachineName,
		UID:         a.UID,
		GID:         a.GID,
		GIDs:        gids,
	}
	if _, err := xdr.Marshal(&buf, &body); err != nil {
		return nil, fmt.Errorf("marshal AUTH_UNIX body: %w", err)
	}

	return buf.Bytes(), nil
}

// String returns a human readable representation for logging.
func (a *AuthUnixCred) String() string {
	return fmt.Sprintf("AUTH_UNIX{machine=%s uid=%d gid=%d gids=%v}",
		a.MachineName, a.UID, a.GID, a.AuxGIDs)
}

// ParseAuthUnix decodes an AUTH_UNIX credential body.
//
// The client never receives credentials; this exists for servers and tests
// that need to inspect what was sent.
func ParseAuthUnix(body []byte) (*AuthUnixCred, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty AUTH_UNIX body")
	}

	var decoded authUnixBody
	if _, err := xdr.Unmarshal(bytes.NewReader(body), &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal AUTH_UNIX body: %w", err)
	}

	if len(decoded.MachineName) > MaxMachineNameLength {
		return nil, fmt.Errorf("machine name too long: %d bytes", len(decoded.MachineName))
	}
	if len(decoded.GIDs) > MaxAuxGIDs {
		return nil, fmt.Errorf("too many gids: %d", len(decoded.GIDs))
	}

	return &AuthUnixCred{
		Stamp:       decoded.Stamp,
		MachineName: decoded.MachineName,
		UID:         decoded.UID,
		GID:         decoded.GID,
		AuxGIDs:     decoded.GIDs,
	}, nil
}

// NewCredential builds the credential variant for flavor.
//
// machineName, uid, gid and auxGIDs are only used for AUTH_UNIX. Any flavor
// other than AUTH_NONE and AUTH_UNIX fails with ErrUnsupportedAuthFlavor.
func NewCredential(flavor AuthFlavor, machineName string, uid, gid uint32, auxGIDs []uint32) (Credential, error) {
	switch flavor {
	case AuthNull:
		return AuthNone{}, nil
	case AuthUnix:
		return NewAuthUnix(machineName, uid, gid, auxGIDs), nil
	default:
		return nil, fmt.Errorf("%w: %s (%d)", ErrUnsupportedAuthFlavor, flavor, uint32(flavor))
	}
}

// ParseAuthFlavor maps a configuration name to a flavor.
// Accepted names are "none"/"null" and "unix"/"sys", case-insensitive.
func ParseAuthFlavor(name string) (AuthFlavor, error) {
	switch strings.ToLower(name) {
	case "none", "null", "auth_none", "auth_null":
		return AuthNull, nil
	case "unix", "sys", "auth_unix", "auth_sys":
		return AuthUnix, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAuthFlavor, name)
	}
}
