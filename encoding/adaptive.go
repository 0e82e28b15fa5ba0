package encoding

import (
	"encoding/binary"
	"iter"
	"math"

	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/format"
	"github.com/arloliu/tsdbcore/internal/pool"
)

// Adaptive classification thresholds.
const (
	thetaCounter = 0.95 // monotone non-decreasing fraction required for COUNTER
	thetaConst   = 0.99 // equal-value fraction required for CONSTANT
	cvLow        = 0.5  // histogram coefficient-of-variation band, low bound
	cvHigh       = 1.5  // histogram coefficient-of-variation band, high bound
)

// ClassifyWindow inspects a window of values and returns the SampleClass the
// AdaptiveSelector would route it to. Exported so block-building code can
// make the same decision outside of a full encode pass (e.g. for metrics or
// pre-flight sizing).
func ClassifyWindow(values []float64) format.SampleClass {
	n := len(values)
	if n == 0 {
		return format.ClassGauge
	}

	first := values[0]
	equalCount := 0
	nonDecreasing := 0
	allNonNegative := true
	var sum, sumSq float64

	for i, v := range values {
		if v == first {
			equalCount++
		}
		if i > 0 && v >= values[i-1] {
			nonDecreasing++
		}
		if v < 0 {
			allNonNegative = false
		}
		sum += v
		sumSq += v * v
	}

	if n > 1 && float64(equalCount)/float64(n) >= thetaConst {
		return format.ClassConstant
	}

	if n > 1 && float64(nonDecreasing)/float64(n-1) >= thetaCounter {
		return format.ClassCounter
	}

	if allNonNegative {
		mean := sum / float64(n)
		if mean > 0 {
			variance := sumSq/float64(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			stddev := math.Sqrt(variance)
			cv := stddev / mean
			if cv >= cvLow && cv <= cvHigh {
				return format.ClassHistogram
			}
		}
	}

	return format.ClassGauge
}

// AdaptiveEncoder classifies a value window and routes it to the matching
// sub-codec, prefixing the output with a one-byte SampleClass tag:
//
//   - CONSTANT: tag + single float64 value. Used only when every value in
//     the window is identical; a window that classifies as CONSTANT with
//     any differing value is encoded as GAUGE instead.
//   - COUNTER:  tag + uint32 LE length + ValueXOREncoder payload (lossless).
//     Counters are not delta/LEB128 encoded.
//   - HISTOGRAM: tag + min (float64) + range (float64) + 16-bit quantized
//     samples.
//   - GAUGE: tag + uint32 LE length + ValueXOREncoder payload (lossless).
//     Gauge values are not quantized.
type AdaptiveEncoder struct {
	buf   *pool.ByteBuffer
	count int

	// classCounts tracks how many values each WriteSlice call routed to
	// each of the four SampleClass sub-codecs, purely for diagnostics.
	classCounts [4]int64
}

var _ ColumnarEncoder[float64] = (*AdaptiveEncoder)(nil)

// NewAdaptiveEncoder creates a new class-adaptive value encoder.
func NewAdaptiveEncoder() *AdaptiveEncoder {
	return &AdaptiveEncoder{buf: pool.GetBlobBuffer()}
}

// Write is not supported; AdaptiveEncoder classifies over a full window and
// must be driven through WriteSlice.
func (e *AdaptiveEncoder) Write(float64) {
	panic("encoding: AdaptiveEncoder requires WriteSlice, values cannot be classified one at a time")
}

// WriteSlice classifies values and encodes them using the matching
// sub-codec. Calling WriteSlice more than once on the same encoder appends
// another independently-classified window.
func (e *AdaptiveEncoder) WriteSlice(values []float64) {
	e.count += len(values)
	class := ClassifyWindow(values)
	if class == format.ClassConstant {
		// The constant sub-codec stores a single value, so a window that is
		// only mostly constant goes through the lossless gauge path.
		for _, v := range values {
			if math.Float64bits(v) != math.Float64bits(values[0]) {
				class = format.ClassGauge
				break
			}
		}
	}

	e.buf.Grow(1)
	e.buf.MustWrite([]byte{byte(class)})
	e.classCounts[class] += int64(len(values))

	switch class {
	case format.ClassConstant:
		e.encodeConstant(values)
	case format.ClassCounter:
		e.encodeCounter(values)
	case format.ClassHistogram:
		e.encodeHistogram(values)
	default:
		e.encodeGauge(values)
	}
}

func (e *AdaptiveEncoder) encodeConstant(values []float64) {
	var v float64
	if len(values) > 0 {
		v = values[0]
	}

	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
	e.buf.Grow(8)
	e.buf.MustWrite(tmp[:])
}

func (e *AdaptiveEncoder) encodeCounter(values []float64) {
	sub := NewValueXOREncoder()
	sub.WriteSlice(values)
	defer sub.Finish()

	e.writeLenPrefixed(sub.Bytes())
}

func (e *AdaptiveEncoder) encodeGauge(values []float64) {
	sub := NewValueXOREncoder()
	sub.WriteSlice(values)
	defer sub.Finish()

	e.writeLenPrefixed(sub.Bytes())
}

// encodeHistogram stores min, range and per-sample 16-bit quantization
// levels, trading precision for density on non-negative, moderately
// dispersed distributions.
func (e *AdaptiveEncoder) encodeHistogram(values []float64) {
	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	rangeV := maxV - minV

	var hdr [16]byte
	binary.LittleEndian.PutUint64(hdr[0:8], math.Float64bits(minV))
	binary.LittleEndian.PutUint64(hdr[8:16], math.Float64bits(rangeV))
	e.buf.Grow(16 + 2*len(values))
	e.buf.MustWrite(hdr[:])

	var tmp [2]byte
	for _, v := range values {
		var level uint16
		if rangeV > 0 {
			level = uint16(math.Round((v - minV) / rangeV * math.MaxUint16))
		}
		binary.LittleEndian.PutUint16(tmp[:], level)
		e.buf.MustWrite(tmp[:])
	}
}

func (e *AdaptiveEncoder) writeLenPrefixed(payload []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload))) //nolint:gosec
	e.buf.Grow(4 + len(payload))
	e.buf.MustWrite(lenBuf[:])
	e.buf.MustWrite(payload)
}

func (e *AdaptiveEncoder) Bytes() []byte { return e.buf.Bytes() }
func (e *AdaptiveEncoder) Len() int      { return e.count }
func (e *AdaptiveEncoder) Size() int     { return e.buf.Len() }

func (e *AdaptiveEncoder) Reset() { e.count = 0 }

// ClassCounts returns how many values each SampleClass (indexed by its
// numeric value) has been routed to across every WriteSlice call so far.
func (e *AdaptiveEncoder) ClassCounts() [4]int64 { return e.classCounts }

func (e *AdaptiveEncoder) Finish() {
	if e.buf == nil {
		return
	}
	pool.PutBlobBuffer(e.buf)
	e.buf = nil
}

// AdaptiveDecoder decodes payloads produced by AdaptiveEncoder. Because the
// class tag determines both the sub-codec and how many values follow, the
// caller must supply the same count used at encode time.
type AdaptiveDecoder struct{}

var _ ColumnarDecoder[float64] = AdaptiveDecoder{}

// NewAdaptiveDecoder creates a stateless adaptive value decoder.
func NewAdaptiveDecoder() AdaptiveDecoder { return AdaptiveDecoder{} }

func (d AdaptiveDecoder) decode(data []byte, count int) ([]float64, error) {
	if len(data) < 1 {
		if count == 0 {
			return nil, nil
		}

		return nil, errs.ErrDecodeTruncated
	}

	class := format.SampleClass(data[0])
	rest := data[1:]

	switch class {
	case format.ClassConstant:
		if len(rest) < 8 {
			return nil, errs.ErrDecodeTruncated
		}
		v := math.Float64frombits(binary.LittleEndian.Uint64(rest[:8]))
		out := make([]float64, count)
		for i := range out {
			out[i] = v
		}

		return out, nil

	case format.ClassCounter, format.ClassGauge:
		payload, err := readLenPrefixed(rest)
		if err != nil {
			return nil, err
		}
		sub := NewValueXORDecoder()
		out := make([]float64, 0, count)
		for v := range sub.All(payload, count) {
			out = append(out, v)
		}

		return out, nil

	case format.ClassHistogram:
		if len(rest) < 16 {
			return nil, errs.ErrDecodeTruncated
		}
		minV := math.Float64frombits(binary.LittleEndian.Uint64(rest[0:8]))
		rangeV := math.Float64frombits(binary.LittleEndian.Uint64(rest[8:16]))
		levels := rest[16:]
		if len(levels) < 2*count {
			return nil, errs.ErrDecodeTruncated
		}

		out := make([]float64, count)
		for i := range count {
			level := binary.LittleEndian.Uint16(levels[i*2:])
			out[i] = minV + rangeV*(float64(level)/math.MaxUint16)
		}

		return out, nil

	default:
		return nil, errs.ErrDecodeInvalid
	}
}

func readLenPrefixed(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errs.ErrDecodeTruncated
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	if n < 0 || 4+n > len(data) {
		return nil, errs.ErrDecodeTruncated
	}

	return data[4 : 4+n], nil
}

// All returns an iterator over all decoded values.
func (d AdaptiveDecoder) All(data []byte, count int) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		values, err := d.decode(data, count)
		if err != nil {
			return
		}
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	}
}

// At decodes the full window and returns the value at index. AdaptiveDecoder
// has no random-access structure cheaper than a full decode.
func (d AdaptiveDecoder) At(data []byte, index int, count int) (float64, bool) {
	if index < 0 || index >= count {
		return 0, false
	}

	values, err := d.decode(data, count)
	if err != nil || index >= len(values) {
		return 0, false
	}

	return values[index], true
}
