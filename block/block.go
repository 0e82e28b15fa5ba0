package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/arloliu/tsdbcore/compress"
	"github.com/arloliu/tsdbcore/encoding"
	"github.com/arloliu/tsdbcore/errs"
	"github.com/arloliu/tsdbcore/format"
	"github.com/arloliu/tsdbcore/model"
)

// crc32 is computed with the stdlib IEEE polynomial: the algorithm is fixed
// by the wire format and every Go implementation of IEEE CRC32 is
// identical, so hash/crc32 needs no third-party replacement.
//
// RotationLimits bounds the three seal predicates evaluated on the write
// path.
type RotationLimits struct {
	MaxBlockSize    int
	MaxBlockRecords int
	BlockDurationMS int64
}

// Block is the unit of immutability and I/O for one series over a time
// range: header, timestamp column, value column, and an optional per-sample
// fields column. A Series owns an ordered list of Blocks; a Block does not
// span series.
type Block struct {
	header Header

	seriesID model.SeriesID
	labels   model.LabelSet

	timestamps []int64
	values     []float64
	fields     []map[string]string // parallel to timestamps; nil entries are common

	sealed  bool
	encoded []byte // set on Seal: header bytes + compressed payload
	codec   format.CompressionType

	codecStats CodecStats // set on Seal, from the column codecs' own diagnostics
}

// CodecStats carries the per-codec diagnostics a block's timestamp and
// value encoders collect while sealing, purely informational and never
// consulted to decode the block: the delta-of-delta irregularity shape
// TimestampDeltaEncoder observed, and how many values each of the four
// adaptive value classes encoded (indexed by format.SampleClass).
type CodecStats struct {
	TimestampBlocksProcessed int64
	TimestampIrregularCount  int64
	TimestampSumAbsDD        int64
	TimestampDDSamples       int64
	ClassCounts              [4]int64

	// RawBytes/EncodedBytes give the timestamp+value columns' compression
	// ratio: RawBytes is what an 8-byte-per-field raw encoding would have
	// used, EncodedBytes is what TimestampDeltaEncoder/AdaptiveEncoder
	// actually produced.
	RawBytes     int64
	EncodedBytes int64
}

// TimestampMeanAbsDD returns the mean absolute delta-of-delta across every
// timestamp encoded, or 0 if none have been.
func (c CodecStats) TimestampMeanAbsDD() float64 {
	if c.TimestampDDSamples == 0 {
		return 0
	}

	return float64(c.TimestampSumAbsDD) / float64(c.TimestampDDSamples)
}

// CompressionRatio returns EncodedBytes/RawBytes, or 0 if no columns have
// been sealed yet. A ratio below 1 means the encoders saved space.
func (c CodecStats) CompressionRatio() float64 {
	if c.RawBytes == 0 {
		return 0
	}

	return float64(c.EncodedBytes) / float64(c.RawBytes)
}

// Add folds other's counts into c in place.
func (c *CodecStats) Add(other CodecStats) {
	c.TimestampBlocksProcessed += other.TimestampBlocksProcessed
	c.TimestampIrregularCount += other.TimestampIrregularCount
	c.TimestampSumAbsDD += other.TimestampSumAbsDD
	c.TimestampDDSamples += other.TimestampDDSamples
	c.RawBytes += other.RawBytes
	c.EncodedBytes += other.EncodedBytes
	for i := range c.ClassCounts {
		c.ClassCounts[i] += other.ClassCounts[i]
	}
}

// CodecStats returns the diagnostics captured when the block was sealed.
// Zero value before Seal.
func (b *Block) CodecStats() CodecStats { return b.codecStats }

// New creates an open block for seriesID/labels starting at startTime.
func New(seriesID model.SeriesID, labels model.LabelSet, startTime int64, codec format.CompressionType) *Block {
	return &Block{
		header:   NewHeader(startTime),
		seriesID: seriesID,
		labels:   labels,
		codec:    codec,
	}
}

// SeriesID returns the block's owning series.
func (b *Block) SeriesID() model.SeriesID { return b.seriesID }

// Labels returns the block's series labels.
func (b *Block) Labels() model.LabelSet { return b.labels }

// Append adds a sample to the open block. The timestamp must be strictly
// greater than the last appended timestamp.
func (b *Block) Append(s model.Sample) error {
	if b.sealed {
		return errs.ErrInvalidArgument
	}
	if len(b.timestamps) > 0 && s.Timestamp <= b.timestamps[len(b.timestamps)-1] {
		return errs.ErrOrdering
	}

	b.timestamps = append(b.timestamps, s.Timestamp)
	b.values = append(b.values, s.Value)
	b.fields = append(b.fields, s.Fields)

	if len(b.timestamps) == 1 {
		b.header.StartTime = s.Timestamp
	}
	b.header.EndTime = s.Timestamp

	return nil
}

// Samples returns the block's samples directly from in-memory state,
// without requiring Seal first. Used by the write path to read back an
// still-open block's contents (e.g. to serve a query that overlaps the
// active block).
func (b *Block) Samples() []model.Sample {
	out := make([]model.Sample, len(b.timestamps))
	for i := range b.timestamps {
		out[i] = model.Sample{Timestamp: b.timestamps[i], Value: b.values[i], Fields: b.fields[i]}
	}

	return out
}

// NumSamples returns the number of appended samples.
func (b *Block) NumSamples() int { return len(b.timestamps) }

// StartTime returns the block's start time in ms.
func (b *Block) StartTime() int64 { return b.header.StartTime }

// EndTime returns the block's end time in ms.
func (b *Block) EndTime() int64 { return b.header.EndTime }

// Sealed reports whether the block is immutable.
func (b *Block) Sealed() bool { return b.sealed }

// EstimatedSize estimates the in-memory byte footprint of the open block,
// used for the size-based rotation predicate before encoding makes an exact
// figure available.
func (b *Block) EstimatedSize() int {
	size := len(b.timestamps)*16 + HeaderSize
	for _, f := range b.fields {
		for k, v := range f {
			size += len(k) + len(v) + 8
		}
	}

	return size
}

// ShouldSeal evaluates the three rotation predicates: size, record count,
// or wall-clock duration since start.
func (b *Block) ShouldSeal(limits RotationLimits, nowMS int64) bool {
	if b.sealed {
		return false
	}
	if limits.MaxBlockSize > 0 && b.EstimatedSize() >= limits.MaxBlockSize {
		return true
	}
	if limits.MaxBlockRecords > 0 && len(b.timestamps) >= limits.MaxBlockRecords {
		return true
	}
	if limits.BlockDurationMS > 0 && len(b.timestamps) > 0 && nowMS-b.header.StartTime >= limits.BlockDurationMS {
		return true
	}

	return false
}

// Seal finalizes the block's columns, computes the CRC32 over the encoded
// payload, and marks the block immutable. Seal is idempotent.
func (b *Block) Seal() error {
	if b.sealed {
		return nil
	}

	payload, err := b.encodeColumns()
	if err != nil {
		return err
	}

	// The checksum covers the encoded columns before compression, which is
	// what Open verifies after decompressing.
	crc := crc32.ChecksumIEEE(payload)

	flags := FlagChecksum
	if b.codec != format.CompressionNone {
		flags |= FlagCompressed

		cdc, err := compress.GetCodec(b.codec)
		if err != nil {
			return err
		}
		compressed, err := cdc.Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
	}

	b.header.Flags = flags
	b.header.CRC32 = crc

	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, b.header.Bytes()...)
	out = append(out, payload...)
	b.encoded = out
	b.sealed = true

	return nil
}

// column layout inside the (possibly compressed) payload: a uint32 LE
// sample count, then three length-prefixed (uint32 LE) sections, in order:
// timestamps, values, fields (itself field-counts, field-dict, pairs).
func (b *Block) encodeColumns() ([]byte, error) {
	tsEnc := encoding.NewTimestampDeltaEncoder()
	defer tsEnc.Finish()
	tsEnc.WriteSlice(b.timestamps)

	valEnc := encoding.NewAdaptiveEncoder()
	defer valEnc.Finish()
	valEnc.WriteSlice(b.values)

	tsStats := tsEnc.Stats()
	classCounts := valEnc.ClassCounts()
	b.codecStats = CodecStats{
		TimestampBlocksProcessed: tsStats.BlocksProcessed,
		TimestampIrregularCount:  tsStats.IrregularCount,
		TimestampSumAbsDD:        tsStats.SumAbsDD(),
		TimestampDDSamples:       tsStats.DDSamples(),
		ClassCounts:              classCounts,
		RawBytes:                 int64(len(b.timestamps)+len(b.values)) * 8,
		EncodedBytes:             int64(tsEnc.Size() + valEnc.Size()),
	}

	fieldsPayload := b.encodeFields()

	out := make([]byte, 0, tsEnc.Size()+valEnc.Size()+len(fieldsPayload)+20)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(b.timestamps))) //nolint:gosec
	out = append(out, countBuf[:]...)

	out = appendSection(out, tsEnc.Bytes())
	out = appendSection(out, valEnc.Bytes())
	out = appendSection(out, fieldsPayload)

	return out, nil
}

func (b *Block) encodeFields() []byte {
	dict := encoding.NewLabelDict()
	countEnc := encoding.NewRLEEncoder()
	defer countEnc.Finish()
	var pairs []encoding.LabelPair

	for _, f := range b.fields {
		n := len(f)
		if n > 255 {
			n = 255
		}
		countEnc.Write(byte(n))

		written := 0
		for k, v := range f {
			if written >= n {
				break
			}
			pairs = append(pairs, encoding.LabelPair{
				NameID:  dict.Intern(k),
				ValueID: dict.Intern(v),
			})
			written++
		}
	}

	counts := countEnc.Bytes()
	dictBytes := dict.Bytes()
	pairBytes := encoding.EncodeLabelPairs(pairs)

	out := make([]byte, 0, len(counts)+len(dictBytes)+len(pairBytes)+12)
	out = appendSection(out, counts)
	out = appendSection(out, dictBytes)
	out = appendSection(out, pairBytes)

	return out
}

func appendSection(dst, section []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(section))) //nolint:gosec
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, section...)

	return dst
}

func readSection(data []byte) (section, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, errs.ErrDecodeTruncated
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	data = data[4:]
	if n < 0 || n > len(data) {
		return nil, nil, errs.ErrDecodeTruncated
	}

	return data[:n], data[n:], nil
}

// Bytes returns the sealed, on-disk representation (header + payload).
// Returns nil if the block is not yet sealed.
func (b *Block) Bytes() []byte { return b.encoded }

// Read decodes and returns all samples in the block, in append order.
// Requires the block to be sealed.
func (b *Block) Read() ([]model.Sample, error) {
	if !b.sealed {
		return nil, errs.ErrInvalidArgument
	}

	return decodeSamples(b.encoded, b.header, b.codec)
}

// Open parses a previously sealed block from its on-disk bytes, verifying
// the header and CRC32 but not decoding the columns.
func Open(data []byte, seriesID model.SeriesID, labels model.LabelSet, codec format.CompressionType) (*Block, error) {
	hdr, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	payload := data[HeaderSize:]
	if hdr.HasFlag(FlagCompressed) {
		cdc, err := compress.GetCodec(codec)
		if err != nil {
			return nil, err
		}
		decompressed, err := cdc.Decompress(payload)
		if err != nil {
			return nil, errs.ErrCorrupt
		}
		payload = decompressed
	}

	if hdr.HasFlag(FlagChecksum) && crc32.ChecksumIEEE(payload) != hdr.CRC32 {
		return nil, errs.ErrCorrupt
	}

	return &Block{
		header:   hdr,
		seriesID: seriesID,
		labels:   labels,
		sealed:   true,
		encoded:  data,
		codec:    codec,
	}, nil
}

func decodeSamples(data []byte, hdr Header, codec format.CompressionType) ([]model.Sample, error) {
	payload := data[HeaderSize:]
	if hdr.HasFlag(FlagCompressed) {
		cdc, err := compress.GetCodec(codec)
		if err != nil {
			return nil, err
		}
		decompressed, err := cdc.Decompress(payload)
		if err != nil {
			return nil, errs.ErrCorrupt
		}
		payload = decompressed
	}

	if len(payload) < 4 {
		return nil, errs.ErrDecodeTruncated
	}
	n := int(binary.LittleEndian.Uint32(payload[:4]))
	payload = payload[4:]

	tsSection, rest, err := readSection(payload)
	if err != nil {
		return nil, err
	}
	valSection, rest, err := readSection(rest)
	if err != nil {
		return nil, err
	}
	fieldsSection, _, err := readSection(rest)
	if err != nil {
		return nil, err
	}

	tsDec := encoding.NewTimestampDeltaDecoder()
	timestamps := make([]int64, 0, n)
	for ts := range tsDec.All(tsSection, n) {
		timestamps = append(timestamps, ts)
	}
	if len(timestamps) != n {
		return nil, errs.ErrCorrupt
	}

	valDec := encoding.NewAdaptiveDecoder()
	values := make([]float64, 0, n)
	for v := range valDec.All(valSection, n) {
		values = append(values, v)
	}
	if len(values) != n {
		return nil, errs.ErrCorrupt
	}

	fieldMaps, err := decodeFields(fieldsSection, n)
	if err != nil {
		return nil, err
	}

	samples := make([]model.Sample, n)
	for i := 0; i < n; i++ {
		samples[i] = model.Sample{Timestamp: timestamps[i], Value: values[i], Fields: fieldMaps[i]}
	}

	return samples, nil
}

func decodeFields(data []byte, n int) ([]map[string]string, error) {
	out := make([]map[string]string, n)
	if len(data) == 0 {
		return out, nil
	}

	countSection, rest, err := readSection(data)
	if err != nil {
		return nil, err
	}
	dictSection, rest, err := readSection(rest)
	if err != nil {
		return nil, err
	}
	pairSection, _, err := readSection(rest)
	if err != nil {
		return nil, err
	}

	dict, err := encoding.ParseLabelDict(dictSection)
	if err != nil {
		return nil, err
	}
	pairs, err := encoding.DecodeLabelPairs(pairSection)
	if err != nil {
		return nil, err
	}

	countDec := encoding.NewRLEDecoder()
	pairIdx := 0
	i := 0
	for cnt := range countDec.All(countSection, n) {
		if i >= n {
			break
		}
		if cnt > 0 {
			m := make(map[string]string, cnt)
			for j := 0; j < int(cnt) && pairIdx < len(pairs); j++ {
				p := pairs[pairIdx]
				pairIdx++
				name, _ := dict.String(p.NameID)
				value, _ := dict.String(p.ValueID)
				m[name] = value
			}
			out[i] = m
		}
		i++
	}

	return out, nil
}

// Query returns the block's samples in [tLo, tHi] if its series labels
// satisfy every matcher, or ok=false if the block's series does not match.
func (b *Block) Query(matchers []model.Matcher, tLo, tHi int64) (samples []model.Sample, ok bool, err error) {
	if !model.MatchesLabelSet(matchers, b.labels) {
		return nil, false, nil
	}

	all, err := b.Read()
	if err != nil {
		return nil, false, err
	}

	filtered := all[:0]
	for _, s := range all {
		if s.Timestamp >= tLo && s.Timestamp <= tHi {
			filtered = append(filtered, s)
		}
	}

	return filtered, true, nil
}
