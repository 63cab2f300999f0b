package rpc

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func word(b []byte, i int) uint32 {
	return binary.BigEndian.Uint32(b[i*4 : i*4+4])
}

// ============================================================================
// Call Header Tests
// ============================================================================

func TestNewCallHeader(t *testing.T) {
	hdr := NewCallHeader(ProgramNFS, 3, ProcNull)

	assert.Equal(t, MsgCall, hdr.MsgType)
	assert.Equal(t, uint32(RPCVersion), hdr.RPCVersion)
	assert.Equal(t, uint32(ProgramNFS), hdr.Program)
	assert.Equal(t, uint32(3), hdr.Version)
	assert.Equal(t, uint32(ProcNull), hdr.Procedure)
}

// ============================================================================
// EncodeCall Tests
// ============================================================================

func TestEncodeCall(t *testing.T) {
	t.Run("HeaderLayout", func(t *testing.T) {
		hdr := CallHeader{
			XID:        0xdeadbeef,
			MsgType:    MsgCall,
			RPCVersion: 2,
			Program:    100003,
			Version:    3,
			Procedure:  0,
		}

		msg, err := EncodeCall(hdr, AuthNone{}, nil)
		require.NoError(t, err)

		// mark + 6 header words + cred (2 words) + verf (2 words)
		require.Len(t, msg, 4+24+8+8)
		assert.Equal(t, uint32(0xdeadbeef), word(msg, 1))
		assert.Equal(t, uint32(0), word(msg, 2))
		assert.Equal(t, uint32(2), word(msg, 3))
		assert.Equal(t, uint32(100003), word(msg, 4))
		assert.Equal(t, uint32(3), word(msg, 5))
		assert.Equal(t, uint32(0), word(msg, 6))

		// AUTH_NONE credential and verifier
		assert.Equal(t, []uint32{0, 0, 0, 0}, []uint32{word(msg, 7), word(msg, 8), word(msg, 9), word(msg, 10)})
	})

	t.Run("RecordMarkCoversRestOfMessage", func(t *testing.T) {
		payloads := [][]byte{nil, {1}, {1, 2, 3, 4}, make([]byte, 1000)}

		for _, payload := range payloads {
			msg, err := EncodeCall(NewCallHeader(100005, 3, 1), NewAuthUnix("host", 0, 0, nil), payload)
			require.NoError(t, err)

			mark := word(msg, 0)
			assert.Equal(t, uint32(LastFragmentFlag)|uint32(len(msg)-4), mark)
			assert.True(t, ParseFragmentHeader(mark).Last)
		}
	})

	t.Run("PayloadAppendedVerbatim", func(t *testing.T) {
		// Payloads are not re-aligned; odd lengths go out as given.
		payload := []byte{0xca, 0xfe, 0xba}

		msg, err := EncodeCall(NewCallHeader(1, 1, 1), nil, payload)
		require.NoError(t, err)
		assert.Equal(t, payload, msg[len(msg)-len(payload):])
		assert.Len(t, msg, 4+24+8+8+3)
	})

	t.Run("NilCredentialIsAuthNone", func(t *testing.T) {
		hdr := NewCallHeader(1, 1, 1)

		withNil, err := EncodeCall(hdr, nil, nil)
		require.NoError(t, err)
		withNone, err := EncodeCall(hdr, AuthNone{}, nil)
		require.NoError(t, err)
		assert.Equal(t, withNone, withNil)
	})

	t.Run("AuthUnixCredentialInline", func(t *testing.T) {
		cred := &AuthUnixCred{Stamp: 7, MachineName: "client", UID: 1000, GID: 100, AuxGIDs: []uint32{10, 20}}
		body, err := cred.Body()
		require.NoError(t, err)

		msg, err := EncodeCall(NewCallHeader(100003, 3, 1), cred, nil)
		require.NoError(t, err)

		assert.Equal(t, uint32(AuthUnix), word(msg, 7))
		assert.Equal(t, uint32(len(body)), word(msg, 8))
		assert.Equal(t, body, msg[36:36+len(body)])

		// Verifier follows the credential body.
		verf := msg[36+len(body):]
		assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, verf)
	})

	t.Run("CustomMessageTypeAndVersion", func(t *testing.T) {
		hdr := NewCallHeader(1, 1, 1)
		hdr.MsgType = MsgReply
		hdr.RPCVersion = 3

		msg, err := EncodeCall(hdr, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), word(msg, 2))
		assert.Equal(t, uint32(3), word(msg, 3))
	})

	t.Run("RejectsInvalidCredential", func(t *testing.T) {
		cred := &AuthUnixCred{AuxGIDs: make([]uint32, MaxAuxGIDs+1)}

		_, err := EncodeCall(NewCallHeader(1, 1, 1), cred, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "AUTH_UNIX")
	})
}
