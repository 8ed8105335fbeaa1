// Package audio holds the encoding vocabulary shared by the capture and
// playback backends and the speech collaborators.
package audio

type encodingFormat string

const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
)

func (e encodingFormat) Name() string { return string(e) }

// ByteSize returns the size of one sample in bytes, or -1 for an unknown
// format.
func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

// EncodingInfo describes the raw audio format flowing between a device and a
// speech collaborator.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// SilenceValue is the sample byte that renders as silence in the format.
func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}
	return 0
}
