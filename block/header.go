// Package block implements the unit of immutability and I/O: a fixed
// 40-byte header followed by per-series compressed column payloads.
package block

import (
	"encoding/binary"

	"github.com/arloliu/tsdbcore/errs"
)

// Magic identifies a valid block header.
const Magic uint64 = 0x4253445354534254

// Version is the only header version this package understands.
const Version uint32 = 1

// Header flag bits.
const (
	FlagCompressed uint32 = 1 << 0
	FlagSorted     uint32 = 1 << 1
	FlagChecksum   uint32 = 1 << 2
)

// HeaderSize is the fixed, little-endian on-disk header layout:
//
//	off  size  field
//	0    8     magic
//	8    4     version
//	12   4     flags
//	16   4     crc32 over payload
//	20   8     start_time (ms)
//	28   8     end_time (ms)
//	36   4     reserved
const HeaderSize = 40

// Header is the fixed-size block header.
type Header struct {
	Magic     uint64
	Version   uint32
	Flags     uint32
	CRC32     uint32
	StartTime int64
	EndTime   int64
}

// NewHeader creates a header for a block starting at startTime, with no
// flags and a zero CRC (set by Seal).
func NewHeader(startTime int64) Header {
	return Header{
		Magic:     Magic,
		Version:   Version,
		StartTime: startTime,
		EndTime:   startTime,
	}
}

// Valid reports whether the header's magic and version match.
func (h Header) Valid() bool {
	return h.Magic == Magic && h.Version == Version
}

// HasFlag reports whether bit is set in Flags.
func (h Header) HasFlag(bit uint32) bool { return h.Flags&bit != 0 }

// Bytes serializes the header to its fixed on-disk layout.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(b[0:8], h.Magic)
	binary.LittleEndian.PutUint32(b[8:12], h.Version)
	binary.LittleEndian.PutUint32(b[12:16], h.Flags)
	binary.LittleEndian.PutUint32(b[16:20], h.CRC32)
	binary.LittleEndian.PutUint64(b[20:28], uint64(h.StartTime))
	binary.LittleEndian.PutUint64(b[28:36], uint64(h.EndTime))
	// bytes 36:40 reserved, left zero

	return b
}

// ParseHeader decodes a Header from the first HeaderSize bytes of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, errs.ErrDecodeTruncated
	}

	h := Header{
		Magic:     binary.LittleEndian.Uint64(data[0:8]),
		Version:   binary.LittleEndian.Uint32(data[8:12]),
		Flags:     binary.LittleEndian.Uint32(data[12:16]),
		CRC32:     binary.LittleEndian.Uint32(data[16:20]),
		StartTime: int64(binary.LittleEndian.Uint64(data[20:28])), //nolint:gosec
		EndTime:   int64(binary.LittleEndian.Uint64(data[28:36])), //nolint:gosec
	}

	if !h.Valid() {
		return Header{}, errs.ErrCorrupt
	}

	return h, nil
}
