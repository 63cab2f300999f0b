// Package portmap implements the client side of the portmapper protocol
// (RFC 1833 version 2): asking a host which port serves a program.
package portmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/marmos91/oncrpc/internal/protocol/xdr"
)

// Portmap version 2 procedures used by the client.
const (
	Version2    = 2
	ProcGetport = 3
	ProcDump    = 4

	// Port is the well known portmapper port.
	Port = 111
)

// Transport protocol numbers carried in a mapping.
const (
	ProtoTCP = 6
	ProtoUDP = 17
)

// MappingSize is the XDR size of a mapping: four uint32 fields.
const MappingSize = 16

// Mapping is a (program, version, protocol) -> port entry.
type Mapping struct {
	Prog uint32
	Vers uint32
	Prot uint32
	Port uint32
}

// String returns a string representation of the mapping.
func (m Mapping) String() string {
	proto := fmt.Sprintf("proto(%d)", m.Prot)
	switch m.Prot {
	case ProtoTCP:
		proto = "tcp"
	case ProtoUDP:
		proto = "udp"
	}
	return fmt.Sprintf("program %d version %d %s port %d", m.Prog, m.Vers, proto, m.Port)
}

// EncodeMapping encodes a mapping as GETPORT arguments.
//
// Wire format: [prog:uint32][vers:uint32][prot:uint32][port:uint32]
func EncodeMapping(m Mapping) []byte {
	var buf bytes.Buffer
	buf.Grow(MappingSize)
	_ = xdr.WriteUint32(&buf, m.Prog)
	_ = xdr.WriteUint32(&buf, m.Vers)
	_ = xdr.WriteUint32(&buf, m.Prot)
	_ = xdr.WriteUint32(&buf, m.Port)
	return buf.Bytes()
}

// DecodeMapping decodes a mapping from XDR bytes. Trailing bytes are ignored.
func DecodeMapping(data []byte) (Mapping, error) {
	if len(data) < MappingSize {
		return Mapping{}, fmt.Errorf("portmap mapping too short: got %d bytes, need %d", len(data), MappingSize)
	}

	return Mapping{
		Prog: binary.BigEndian.Uint32(data[0:4]),
		Vers: binary.BigEndian.Uint32(data[4:8]),
		Prot: binary.BigEndian.Uint32(data[8:12]),
		Port: binary.BigEndian.Uint32(data[12:16]),
	}, nil
}

// decodeDump decodes a DUMP result: an XDR optional-data list where each
// entry is preceded by a value_follows boolean.
func decodeDump(data []byte) ([]Mapping, error) {
	var out []Mapping
	for {
		if len(data) < 4 {
			return nil, fmt.Errorf("portmap dump truncated after %d entries", len(out))
		}
		follows := binary.BigEndian.Uint32(data[0:4])
		data = data[4:]
		if follows == 0 {
			return out, nil
		}

		m, err := DecodeMapping(data)
		if err != nil {
			return nil, fmt.Errorf("portmap dump entry %d: %w", len(out), err)
		}
		out = append(out, m)
		data = data[MappingSize:]
	}
}
