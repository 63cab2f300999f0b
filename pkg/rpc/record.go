package rpc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Record marking (RFC 5531 Section 11).
//
// On stream transports an RPC message is sent as one or more fragments. Each
// fragment is preceded by a 4-byte big-endian header:
//   - bit 31: last fragment flag (1 = final fragment of the record)
//   - bits 0-30: fragment length in bytes
//
// Example: 0x80000064 is the last fragment, 100 bytes long.
const (
	// LastFragmentFlag marks the final fragment of a record.
	LastFragmentFlag = 0x80000000

	// FragmentLengthMask extracts the fragment length from a header.
	FragmentLengthMask = 0x7FFFFFFF

	// MaxFragmentLength is the largest payload a single fragment can carry.
	MaxFragmentLength = FragmentLengthMask

	// DefaultMaxRecordSize bounds a reassembled reply. NFS READ replies top
	// out around 1MB; 4MB leaves headroom for READDIRPLUS and v4 compounds.
	DefaultMaxRecordSize = 4 * 1024 * 1024
)

// FragmentHeader is a decoded record marking header.
type FragmentHeader struct {
	Last   bool
	Length uint32
}

// ParseFragmentHeader splits a raw header into its flag and length.
func ParseFragmentHeader(raw uint32) FragmentHeader {
	return FragmentHeader{
		Last:   raw&LastFragmentFlag != 0,
		Length: raw & FragmentLengthMask,
	}
}

// Encode returns the raw 32-bit header.
func (h FragmentHeader) Encode() uint32 {
	raw := h.Length & FragmentLengthMask
	if h.Last {
		raw |= LastFragmentFlag
	}
	return raw
}

// AddRecordMark prefixes msg with a fragment header.
func AddRecordMark(msg []byte, last bool) ([]byte, error) {
	if len(msg) > MaxFragmentLength {
		return nil, fmt.Errorf("fragment too large: %d bytes", len(msg))
	}

	result := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(result[0:4], FragmentHeader{Last: last, Length: uint32(len(msg))}.Encode())
	copy(result[4:], msg)

	return result, nil
}

// putRecordMark fills the 4-byte placeholder at the start of buf with the
// header describing the rest of buf.
func putRecordMark(buf []byte, last bool) error {
	n := len(buf) - 4
	if n > MaxFragmentLength {
		return fmt.Errorf("fragment too large: %d bytes", n)
	}

	binary.BigEndian.PutUint32(buf[0:4], FragmentHeader{Last: last, Length: uint32(n)}.Encode())
	return nil
}

// ReadFragment reads one record-marked fragment.
//
// The 4-byte header must arrive whole: a stream that ends inside it yields a
// *ProtocolError. Any other reader failure is returned wrapped, so callers
// can tell stream failures (timeouts, resets, EOF) from malformed framing
// with errors.As(err, new(*ProtocolError)).
func ReadFragment(r io.Reader) (FragmentHeader, []byte, error) {
	header, err := readFragmentHeader(r)
	if err != nil {
		return FragmentHeader{}, nil, err
	}

	body := make([]byte, header.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return header, nil, fmt.Errorf("read fragment body (%d bytes): %w", header.Length, err)
	}

	return header, body, nil
}

func readFragmentHeader(r io.Reader) (FragmentHeader, error) {
	var headerBuf [4]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return FragmentHeader{}, protocolErrorf("truncated fragment header")
		}
		return FragmentHeader{}, fmt.Errorf("read fragment header: %w", err)
	}
	return ParseFragmentHeader(binary.BigEndian.Uint32(headerBuf[:])), nil
}

// ReadRecord reads fragments until one carries the last-fragment flag and
// returns their bodies concatenated in order.
//
// maxSize bounds the reassembled record; 0 disables the check. A fragment
// that would push the record past maxSize is rejected before its body is
// read, so a corrupt length cannot force a large allocation.
func ReadRecord(r io.Reader, maxSize int) ([]byte, error) {
	var record []byte

	for {
		header, err := readFragmentHeader(r)
		if err != nil {
			return nil, err
		}

		if maxSize > 0 && len(record)+int(header.Length) > maxSize {
			return nil, protocolErrorf("record exceeds %d bytes", maxSize)
		}

		start := len(record)
		record = append(record, make([]byte, header.Length)...)
		if _, err := io.ReadFull(r, record[start:]); err != nil {
			return nil, fmt.Errorf("read fragment body (%d bytes): %w", header.Length, err)
		}

		if header.Last {
			return record, nil
		}
	}
}
