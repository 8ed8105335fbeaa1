package deepgram

import (
	"fmt"

	"github.com/chatpot/chatpot-core/core/audio"
)

type encodingParams struct {
	SampleRate int
	Encoding   string
}

// queryEncoding maps the capture encoding onto the query parameters the
// prerecorded endpoint needs for raw (containerless) audio buffers.
func queryEncoding(encoding audio.EncodingInfo) (*encodingParams, error) {
	params := encodingParams{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		params.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("unsupported sample rate")
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		params.Encoding = "linear16"
	case audio.EncodingALaw:
		params.Encoding = "alaw"
		if params.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for alaw encoding")
		}
	case audio.EncodingMulaw:
		params.Encoding = "mulaw"
		if params.SampleRate != 8000 {
			return nil, fmt.Errorf("unsupported sample rate for mulaw encoding")
		}
	default:
		return nil, fmt.Errorf("unsupported encoding")
	}

	return &params, nil
}
