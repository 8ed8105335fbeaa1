// Package texttospeech defines the synthesis collaborator boundary: the
// finalized assistant text goes in, one binary audio buffer with a declared
// MIME type comes back.
package texttospeech

import (
	"context"
	"errors"
	"fmt"
)

// Synthesis is the collaborator's result for one piece of text.
type Synthesis struct {
	Audio    []byte
	MIMEType string
}

// Synthesizer is one synthesis provider.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...SynthesisOption) (*Synthesis, error)
}

// Provider selects which registered synthesizer handles a request.
type Provider string

const (
	ProviderDeepgram   Provider = "deepgram"
	ProviderElevenLabs Provider = "elevenlabs"
)

type SynthesisOptions struct {
	// Voice is a provider-specific voice identifier.
	Voice string
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Voice = voice
	}
}

// ErrUnknownProvider is returned by a registry lookup for a provider no
// synthesizer was registered under.
var ErrUnknownProvider = errors.New("unknown synthesis provider")

// Registry dispatches synthesis requests to the provider named in the
// request, falling back to a configured default.
type Registry struct {
	synthesizers    map[Provider]Synthesizer
	defaultProvider Provider
}

func NewRegistry(defaultProvider Provider) *Registry {
	return &Registry{
		synthesizers:    map[Provider]Synthesizer{},
		defaultProvider: defaultProvider,
	}
}

func (r *Registry) Register(provider Provider, synthesizer Synthesizer) {
	r.synthesizers[provider] = synthesizer
}

// Synthesize dispatches to the named provider, or to the default when
// provider is empty.
func (r *Registry) Synthesize(ctx context.Context, provider Provider, text string, opts ...SynthesisOption) (*Synthesis, error) {
	if provider == "" {
		provider = r.defaultProvider
	}
	synthesizer, ok := r.synthesizers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return synthesizer.Synthesize(ctx, text, opts...)
}
