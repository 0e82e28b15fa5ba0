package encoding

import (
	"encoding/binary"

	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/internal/pool"
)

// LabelDict is a per-block monotonic string->uint32 dictionary.
// Compressed labels become a sequence of (nameID, valueID) pairs
// referencing entries in this table. The dictionary is serialized inside the
// block payload's fields section; the block header does not record its size.
type LabelDict struct {
	strings []string
	index   map[string]uint32
}

// NewLabelDict creates an empty dictionary.
func NewLabelDict() *LabelDict {
	return &LabelDict{index: make(map[string]uint32)}
}

// Intern returns the ID for s, assigning the next sequential ID the first
// time s is seen.
func (d *LabelDict) Intern(s string) uint32 {
	if id, ok := d.index[s]; ok {
		return id
	}

	id := uint32(len(d.strings)) //nolint:gosec
	d.strings = append(d.strings, s)
	d.index[s] = id

	return id
}

// String returns the string for id, or "" and false if id is out of range.
func (d *LabelDict) String(id uint32) (string, bool) {
	if int(id) >= len(d.strings) {
		return "", false
	}

	return d.strings[id], true
}

// Len returns the number of distinct strings interned.
func (d *LabelDict) Len() int { return len(d.strings) }

// Bytes serializes the dictionary as a length-prefixed string table:
// uint32 count, then for each string a uint32 length followed by the
// string bytes.
func (d *LabelDict) Bytes() []byte {
	buf := pool.GetBlobBuffer()
	defer pool.PutBlobBuffer(buf)

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(d.strings))) //nolint:gosec
	buf.MustWrite(hdr[:])

	for _, s := range d.strings {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s))) //nolint:gosec
		buf.MustWrite(lenBuf[:])
		buf.MustWrite([]byte(s))
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out
}

// ParseLabelDict deserializes a dictionary previously produced by Bytes.
func ParseLabelDict(data []byte) (*LabelDict, error) {
	if len(data) == 0 {
		return NewLabelDict(), nil
	}

	if len(data) < 4 {
		return nil, errs.ErrDecodeTruncated
	}

	count := binary.LittleEndian.Uint32(data[:4])
	offset := 4
	d := NewLabelDict()

	for i := uint32(0); i < count; i++ {
		if offset+4 > len(data) {
			return nil, errs.ErrDecodeTruncated
		}
		strLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
		offset += 4

		if offset+strLen > len(data) {
			return nil, errs.ErrDecodeTruncated
		}
		s := string(data[offset : offset+strLen])
		offset += strLen
		d.Intern(s)
	}

	return d, nil
}

// LabelPair is a compressed label reference: (nameID, valueID) into a
// LabelDict.
type LabelPair struct {
	NameID  uint32
	ValueID uint32
}

// EncodeLabelPairs serializes pairs as a flat uint32 array (nameID,
// valueID, nameID, valueID, ...).
func EncodeLabelPairs(pairs []LabelPair) []byte {
	out := make([]byte, len(pairs)*8)
	for i, p := range pairs {
		binary.LittleEndian.PutUint32(out[i*8:], p.NameID)
		binary.LittleEndian.PutUint32(out[i*8+4:], p.ValueID)
	}

	return out
}

// DecodeLabelPairs parses the output of EncodeLabelPairs.
func DecodeLabelPairs(data []byte) ([]LabelPair, error) {
	if len(data)%8 != 0 {
		return nil, errs.ErrDecodeTruncated
	}

	n := len(data) / 8
	out := make([]LabelPair, n)
	for i := 0; i < n; i++ {
		out[i] = LabelPair{
			NameID:  binary.LittleEndian.Uint32(data[i*8:]),
			ValueID: binary.LittleEndian.Uint32(data[i*8+4:]),
		}
	}

	return out, nil
}
