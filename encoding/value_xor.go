package encoding

import (
	"iter"
	"math"

	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/internal/pool"
)

// XOR length classes. Each class names how many of the XOR
// result's significant bytes were written after the class tag.
const (
	xorClassZero   = 0 // xor == 0, no payload bytes
	xorClassNarrow = 1 // payload fits in 1 byte
	xorClassMedium = 2 // payload fits in 2 bytes
	xorClassWide   = 3 // payload fits in 4 bytes
	xorClassFull   = 4 // payload needs all 8 bytes
)

// ValueXOREncoder implements the value codec: each
// float64 is XORed against the previous value's bit pattern, and the
// result is written as a one-byte length class followed by only the
// significant bytes of the XOR, least-significant byte first.
//
// This is a byte-aligned sibling of Facebook's bit-packed Gorilla scheme:
// it trades a few bits of compression ratio for simplicity and branch-free
// decode, while preserving the same "XOR against previous value" core.
type ValueXOREncoder struct {
	prevBits uint64
	buf      *pool.ByteBuffer
	count    int
}

var _ ColumnarEncoder[float64] = (*ValueXOREncoder)(nil)

// NewValueXOREncoder creates a new XOR/Gorilla-class value encoder.
func NewValueXOREncoder() *ValueXOREncoder {
	return &ValueXOREncoder{buf: pool.GetBlobBuffer()}
}

func xorClass(xor uint64) (class int, width int) {
	switch {
	case xor == 0:
		return xorClassZero, 0
	case xor>>8 == 0:
		return xorClassNarrow, 1
	case xor>>16 == 0:
		return xorClassMedium, 2
	case xor>>32 == 0:
		return xorClassWide, 4
	default:
		return xorClassFull, 8
	}
}

// Write encodes a single float64 value.
func (e *ValueXOREncoder) Write(v float64) {
	bits := math.Float64bits(v)
	e.count++

	if e.count == 1 {
		e.buf.Grow(9)
		e.buf.MustWrite([]byte{xorClassFull})
		var tmp [8]byte
		putUint64LE(tmp[:], bits)
		e.buf.MustWrite(tmp[:])
		e.prevBits = bits

		return
	}

	e.writeXOR(bits)
}

// WriteSlice encodes a batch of float64 values.
func (e *ValueXOREncoder) WriteSlice(values []float64) {
	for _, v := range values {
		e.Write(v)
	}
}

func (e *ValueXOREncoder) writeXOR(valBits uint64) {
	xor := valBits ^ e.prevBits
	e.prevBits = valBits

	class, width := xorClass(xor)
	e.buf.Grow(1 + width)
	e.buf.MustWrite([]byte{byte(class)})

	if width == 0 {
		return
	}

	var tmp [8]byte
	putUint64LE(tmp[:], xor)
	e.buf.MustWrite(tmp[:width])
}

func putUint64LE(b []byte, v uint64) {
	for i := range 8 {
		b[i] = byte(v >> (8 * i))
	}
}

func (e *ValueXOREncoder) Bytes() []byte { return e.buf.Bytes() }
func (e *ValueXOREncoder) Len() int      { return e.count }
func (e *ValueXOREncoder) Size() int     { return e.buf.Len() }

func (e *ValueXOREncoder) Reset() {
	e.prevBits = 0
	e.count = 0
}

func (e *ValueXOREncoder) Finish() {
	if e.buf == nil {
		return
	}
	pool.PutBlobBuffer(e.buf)
	e.buf = nil
}

// ValueXORDecoder decodes payloads produced by ValueXOREncoder.
type ValueXORDecoder struct{}

var _ ColumnarDecoder[float64] = ValueXORDecoder{}

// NewValueXORDecoder creates a stateless XOR value decoder.
func NewValueXORDecoder() ValueXORDecoder { return ValueXORDecoder{} }

func (d ValueXORDecoder) decodeAt(data []byte, count int, yield func(int, float64) bool) error {
	offset := 0
	var prevBits uint64

	for i := 0; i < count; i++ {
		if offset >= len(data) {
			return errs.ErrDecodeTruncated
		}
		class := int(data[offset])
		offset++

		var width int
		switch class {
		case xorClassZero:
			width = 0
		case xorClassNarrow:
			width = 1
		case xorClassMedium:
			width = 2
		case xorClassWide:
			width = 4
		case xorClassFull:
			width = 8
		default:
			return errs.ErrDecodeInvalid
		}

		if offset+width > len(data) {
			return errs.ErrDecodeTruncated
		}

		var xor uint64
		for j := 0; j < width; j++ {
			xor |= uint64(data[offset+j]) << (8 * j)
		}
		offset += width

		var curBits uint64
		if i == 0 {
			curBits = xor
		} else {
			curBits = prevBits ^ xor
		}
		prevBits = curBits

		if !yield(i, math.Float64frombits(curBits)) {
			return nil
		}
	}

	return nil
}

// All returns an iterator over all decoded values.
func (d ValueXORDecoder) All(data []byte, count int) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		_ = d.decodeAt(data, count, func(_ int, v float64) bool { return yield(v) })
	}
}

// At decodes only the value at index, decoding sequentially from the start
// since the XOR chain has no random-access structure.
func (d ValueXORDecoder) At(data []byte, index int, count int) (float64, bool) {
	if index < 0 || index >= count {
		return 0, false
	}

	var result float64
	found := false
	_ = d.decodeAt(data, count, func(i int, v float64) bool {
		if i == index {
			result = v
			found = true

			return false
		}

		return true
	})

	return result, found
}
