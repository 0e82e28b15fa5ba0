package encoding

import (
	"iter"

	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/internal/pool"
)

// maxRLERun is the largest run length a single (value, count) chunk can
// represent; longer runs are split into multiple chunks.
const maxRLERun = 255

// RLEEncoder implements the general byte-level run-length codec that the
// block package uses for per-sample field-pair counts: (value byte, count
// byte) pairs, count capped at maxRLERun with overflow split across chunks.
type RLEEncoder struct {
	buf      *pool.ByteBuffer
	pending  byte
	runLen   int
	hasRun   bool
	count    int
}

var _ ColumnarEncoder[byte] = (*RLEEncoder)(nil)

// NewRLEEncoder creates a new RLE byte encoder.
func NewRLEEncoder() *RLEEncoder {
	return &RLEEncoder{buf: pool.GetBlobBuffer()}
}

func (e *RLEEncoder) Write(v byte) {
	e.count++

	if !e.hasRun {
		e.pending = v
		e.runLen = 1
		e.hasRun = true

		return
	}

	if v == e.pending && e.runLen < maxRLERun {
		e.runLen++

		return
	}

	e.flushRun()
	e.pending = v
	e.runLen = 1
}

func (e *RLEEncoder) WriteSlice(values []byte) {
	for _, v := range values {
		e.Write(v)
	}
}

func (e *RLEEncoder) flushRun() {
	if !e.hasRun {
		return
	}
	e.buf.Grow(2)
	e.buf.MustWrite([]byte{e.pending, byte(e.runLen)})
}

func (e *RLEEncoder) Bytes() []byte {
	e.flushRun()
	e.hasRun = false

	return e.buf.Bytes()
}

func (e *RLEEncoder) Len() int  { return e.count }
func (e *RLEEncoder) Size() int { return e.buf.Len() }

func (e *RLEEncoder) Reset() {
	e.pending = 0
	e.runLen = 0
	e.hasRun = false
	e.count = 0
}

func (e *RLEEncoder) Finish() {
	if e.buf == nil {
		return
	}
	pool.PutBlobBuffer(e.buf)
	e.buf = nil
}

// RLEDecoder decodes payloads produced by RLEEncoder.
type RLEDecoder struct{}

var _ ColumnarDecoder[byte] = RLEDecoder{}

// NewRLEDecoder creates a stateless RLE byte decoder.
func NewRLEDecoder() RLEDecoder { return RLEDecoder{} }

func (d RLEDecoder) decode(data []byte, count int, yield func(byte) bool) error {
	if len(data) == 0 {
		if count == 0 {
			return nil
		}

		return errs.ErrDecodeTruncated
	}

	yielded := 0
	offset := 0
	for offset < len(data) && yielded < count {
		if offset+2 > len(data) {
			return errs.ErrDecodeTruncated
		}
		value := data[offset]
		runLen := int(data[offset+1])
		offset += 2

		for i := 0; i < runLen && yielded < count; i++ {
			yielded++
			if !yield(value) {
				return nil
			}
		}
	}

	if yielded < count {
		return errs.ErrDecodeTruncated
	}

	return nil
}

// All returns an iterator over all decoded bytes.
func (d RLEDecoder) All(data []byte, count int) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		_ = d.decode(data, count, yield)
	}
}

// At decodes the byte at index, scanning runs sequentially from the start.
func (d RLEDecoder) At(data []byte, index int, count int) (byte, bool) {
	if index < 0 || index >= count {
		return 0, false
	}

	var result byte
	found := false
	i := 0
	_ = d.decode(data, count, func(v byte) bool {
		if i == index {
			result = v
			found = true

			return false
		}
		i++

		return true
	})

	return result, found
}
