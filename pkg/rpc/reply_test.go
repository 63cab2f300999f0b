package rpc_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/marmos91/oncrpc/pkg/rpc"
	"github.com/marmos91/oncrpc/pkg/rpc/rpctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Accepted Reply Tests
// ============================================================================

func TestParseReplySuccess(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00, 0x00, 0x00, 0x01},
		[]byte("odd-length result"),
		bytes.Repeat([]byte{0xab}, 4096),
	}

	for _, payload := range payloads {
		reply, err := rpc.ParseReply(rpctest.SuccessReply(0x1234, payload))
		require.NoError(t, err)
		assert.Equal(t, uint32(0x1234), reply.XID)
		assert.Equal(t, rpc.AuthNull, reply.Verifier.Flavor)
		assert.Equal(t, payload, reply.Result)
	}
}

func TestParseReplySuccessThroughFragments(t *testing.T) {
	payload := []byte("a result spread over several fragments")
	stream := rpctest.Fragments(rpctest.SuccessReply(9, payload), 3, 10, 7)

	record, err := rpc.ReadRecord(bytes.NewReader(stream), rpc.DefaultMaxRecordSize)
	require.NoError(t, err)

	reply, err := rpc.ParseReply(record)
	require.NoError(t, err)
	assert.Equal(t, payload, reply.Result)
}

func TestParseReplyNonEmptyVerifier(t *testing.T) {
	var record []byte
	for _, w := range []uint32{7, uint32(rpc.MsgReply), rpc.MsgAccepted, uint32(rpc.AuthShort), 4, 0xfeedface, uint32(rpc.Success), 42} {
		record = binary.BigEndian.AppendUint32(record, w)
	}

	reply, err := rpc.ParseReply(record)
	require.NoError(t, err)
	assert.Equal(t, rpc.AuthShort, reply.Verifier.Flavor)
	assert.Equal(t, []byte{0xfe, 0xed, 0xfa, 0xce}, reply.Verifier.Body)
	assert.Equal(t, []byte{0, 0, 0, 42}, reply.Result)
}

func TestParseReplyAcceptErrors(t *testing.T) {
	stats := []rpc.AcceptStat{rpc.ProgUnavail, rpc.ProcUnavail, rpc.GarbageArgs, rpc.SystemErr}

	for _, stat := range stats {
		t.Run(stat.String(), func(t *testing.T) {
			_, err := rpc.ParseReply(rpctest.AcceptErrorReply(1, stat))

			var aerr *rpc.AcceptError
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, stat, aerr.Stat)
			assert.Contains(t, err.Error(), stat.String())
		})
	}

	t.Run("ProgMismatch", func(t *testing.T) {
		_, err := rpc.ParseReply(rpctest.ProgMismatchReply(1, 2, 4))

		var aerr *rpc.AcceptError
		require.True(t, errors.As(err, &aerr))
		assert.Equal(t, rpc.ProgMismatch, aerr.Stat)
		assert.Equal(t, uint32(2), aerr.Low)
		assert.Equal(t, uint32(4), aerr.High)
	})
}

// ============================================================================
// Denied Reply Tests
// ============================================================================

func TestParseReplyRPCMismatch(t *testing.T) {
	_, err := rpc.ParseReply(rpctest.MismatchReply(1, 2, 2))
	require.Error(t, err)

	var merr *rpc.MismatchError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, uint32(2), merr.Low)
	assert.Equal(t, uint32(2), merr.High)
}

func TestParseReplyAuthError(t *testing.T) {
	tests := []struct {
		stat   rpc.AuthStat
		reason string
	}{
		{rpc.AuthOK, "ok"},
		{rpc.AuthBadCred, "bad credential"},
		{rpc.AuthRejectedCred, "rejected credential"},
		{rpc.AuthBadVerf, "bad verifier"},
		{rpc.AuthRejectedVerf, "rejected verifier"},
		{rpc.AuthTooWeak, "too weak"},
		{rpc.AuthInvalidResp, "invalid response"},
		{rpc.AuthFailed, "failed"},
		{rpc.AuthStat(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			_, err := rpc.ParseReply(rpctest.AuthErrorReply(1, tt.stat))

			var aerr *rpc.AuthError
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, tt.stat, aerr.Stat)
			assert.Equal(t, tt.reason, aerr.Reason())
		})
	}
}

// ============================================================================
// Malformed Reply Tests
// ============================================================================

func TestParseReplyMalformed(t *testing.T) {
	words := func(ws ...uint32) []byte {
		var b []byte
		for _, w := range ws {
			b = binary.BigEndian.AppendUint32(b, w)
		}
		return b
	}

	tests := []struct {
		name   string
		record []byte
	}{
		{"Empty", nil},
		{"ShortHeader", words(1, 1)},
		{"CallMessageType", words(1, uint32(rpc.MsgCall), rpc.MsgAccepted, 0, 0, 0)},
		{"UnknownMessageType", words(1, 7, rpc.MsgAccepted, 0, 0, 0)},
		{"UnknownReplyState", words(1, uint32(rpc.MsgReply), 2)},
		{"UnknownRejectStat", words(1, uint32(rpc.MsgReply), rpc.MsgDenied, 5)},
		{"TruncatedMismatch", words(1, uint32(rpc.MsgReply), rpc.MsgDenied, rpc.RejectRPCMismatch, 2)},
		{"TruncatedVerifier", words(1, uint32(rpc.MsgReply), rpc.MsgAccepted, 0)},
		{"OversizedVerifier", words(1, uint32(rpc.MsgReply), rpc.MsgAccepted, 0, 1000)},
		{"MissingAcceptStat", words(1, uint32(rpc.MsgReply), rpc.MsgAccepted, 0, 0)},
		{"TruncatedProgMismatch", words(1, uint32(rpc.MsgReply), rpc.MsgAccepted, 0, 0, uint32(rpc.ProgMismatch), 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := rpc.ParseReply(tt.record)
			assert.Nil(t, reply)

			var perr *rpc.ProtocolError
			require.True(t, errors.As(err, &perr), "got %v", err)
		})
	}
}
