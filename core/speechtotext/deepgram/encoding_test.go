package deepgram

import (
	"testing"

	"github.com/chatpot/chatpot-core/core/audio"
)

func TestQueryEncodingAcceptsDefaultCaptureFormat(t *testing.T) {
	params, err := queryEncoding(audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("expected default encoding accepted, got %v", err)
	}
	if params.Encoding != "linear16" {
		t.Fatalf("expected linear16, got %q", params.Encoding)
	}
	if params.SampleRate != audio.DefaultSampleRate {
		t.Fatalf("expected sample rate %d, got %d", audio.DefaultSampleRate, params.SampleRate)
	}
}

func TestQueryEncodingRejectsUnsupportedSampleRate(t *testing.T) {
	if _, err := queryEncoding(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected unsupported sample rate to be rejected")
	}
}

func TestQueryEncodingRestrictsCompandedFormats(t *testing.T) {
	if _, err := queryEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw above 8kHz to be rejected")
	}
	params, err := queryEncoding(audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingALaw})
	if err != nil {
		t.Fatalf("expected alaw at 8kHz accepted, got %v", err)
	}
	if params.Encoding != "alaw" {
		t.Fatalf("expected alaw, got %q", params.Encoding)
	}
}
