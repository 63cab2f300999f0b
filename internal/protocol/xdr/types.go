// Package xdr provides generic XDR (External Data Representation) encoding and
// decoding primitives per RFC 4506.
//
// XDR is the serialization format of every ONC RPC message. This package only
// carries the primitives the RPC envelope needs; procedure payloads are
// encoded by callers.
//
// Key characteristics of XDR:
//   - Big-endian byte order for all multi-byte integers
//   - 4-byte alignment for all data types
//   - Variable-length data is preceded by a 4-byte length
//   - Strings and opaque data are padded to 4-byte boundaries
//
// Reference: RFC 4506 - XDR: External Data Representation Standard
package xdr

// Padding returns the number of zero bytes that follow n bytes of variable
// length data to reach the next 4-byte boundary: (4 - n%4) % 4.
func Padding(n uint32) uint32 {
	return (4 - (n % 4)) % 4
}
