package format

type (
	EncodingType    uint8
	CompressionType uint8
)

const (
	TypeRaw        EncodingType = 0x1 // TypeRaw represents raw data with no format.
	TypeDelta      EncodingType = 0x2 // TypeDelta represents delta-of-delta encoding.
	TypeGorilla    EncodingType = 0x3 // TypeGorilla represents Gorilla encoding.
	TypeDictionary EncodingType = 0x4 // TypeDictionary represents label dictionary encoding.
	TypeRLE        EncodingType = 0x5 // TypeRLE represents run-length encoding.
	TypeAdaptive   EncodingType = 0x6 // TypeAdaptive represents class-adaptive value encoding.

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.

)

// SampleClass is the adaptive selector's detected shape for a value
// window. It is written as a single prefix byte ahead of the chosen
// sub-codec's payload.
type SampleClass uint8

const (
	ClassGauge     SampleClass = 0x0
	ClassCounter   SampleClass = 0x1
	ClassConstant  SampleClass = 0x2
	ClassHistogram SampleClass = 0x3
)

func (c SampleClass) String() string {
	switch c {
	case ClassCounter:
		return "Counter"
	case ClassConstant:
		return "Constant"
	case ClassHistogram:
		return "Histogram"
	case ClassGauge:
		return "Gauge"
	default:
		return "Unknown"
	}
}

func (e EncodingType) String() string {
	switch e {
	case TypeRaw:
		return "Raw"
	case TypeDelta:
		return "Delta"
	case TypeGorilla:
		return "Gorilla"
	case TypeDictionary:
		return "Dictionary"
	case TypeRLE:
		return "RLE"
	case TypeAdaptive:
		return "Adaptive"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
