package eventlog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"time"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)
//
// The header of a mutation record is the 8-byte big-endian append timestamp
// in unix nanoseconds, so time lookups never decode payloads.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorrupt is returned when a stored record fails framing or checksum.
var ErrCorrupt = errors.New("eventlog: corrupt record")

const headerLen = 8

func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(header)+len(payload)+4)
	out = binary.AppendUvarint(out, uint64(len(header)))
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

type Decoded struct {
	Header  []byte
	Payload []byte
}

// DecodeRecord verifies and splits a stored value. The returned slices are
// copies and safe to retain.
func DecodeRecord(b []byte) (Decoded, error) {
	if len(b) < 1+4 {
		return Decoded{}, ErrCorrupt
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || hlen > uint64(len(b)) {
		return Decoded{}, ErrCorrupt
	}
	if n+int(hlen)+4 > len(b) {
		return Decoded{}, ErrCorrupt
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return Decoded{}, ErrCorrupt
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, nil
}

func encodeHeader(ts time.Time) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, headerLen), uint64(ts.UnixNano()))
}

func headerNanos(h []byte) (int64, bool) {
	if len(h) < headerLen {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(h[:headerLen])), true
}
