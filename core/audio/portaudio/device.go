// Package portaudio is the alternate audio backend, for platforms where the
// default backend misbehaves. It implements the same capture and playback
// device contracts as the miniaudio package.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	coreaudio "github.com/chatpot/chatpot-core/core/audio"
)

const defaultBufferSize = 512

// CaptureDevice records from the default input stream. PortAudio exposes a
// blocking read API, so Start runs a reader goroutine that Stop terminates.
type CaptureDevice struct {
	bufferSize int

	mu     sync.Mutex
	stream *portaudio.Stream
	in     []int16
	stop   chan struct{}
	done   chan struct{}
}

func NewCaptureDevice() *CaptureDevice {
	return &CaptureDevice{bufferSize: defaultBufferSize}
}

func (d *CaptureDevice) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		return fmt.Errorf("capture device already acquired")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	in := make([]int16, d.bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(coreaudio.DefaultSampleRate), d.bufferSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open capture stream: %w", err)
	}

	d.stream = stream
	d.in = in
	return nil
}

func (d *CaptureDevice) Start(onAudio func(chunk []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return fmt.Errorf("capture device not acquired")
	}
	if d.stop != nil {
		return nil
	}

	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.read(d.stop, d.done, onAudio)
	return nil
}

func (d *CaptureDevice) read(stop, done chan struct{}, onAudio func(chunk []byte)) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := d.stream.Read(); err != nil {
			return
		}

		chunk := bytes.Buffer{}
		if err := binary.Write(&chunk, binary.LittleEndian, d.in); err != nil {
			return
		}
		if onAudio != nil {
			onAudio(chunk.Bytes())
		}
	}
}

func (d *CaptureDevice) Stop() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done

	if err := d.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture stream: %w", err)
	}
	return nil
}

func (d *CaptureDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	if terminateErr := portaudio.Terminate(); err == nil {
		err = terminateErr
	}
	if err != nil {
		return fmt.Errorf("failed to release capture device: %w", err)
	}
	return nil
}

func (d *CaptureDevice) EncodingInfo() coreaudio.EncodingInfo {
	return coreaudio.GetDefaultEncodingInfo()
}

// PlaybackDevice writes to the default output stream in fixed-size segments,
// checking for cancellation between writes.
type PlaybackDevice struct {
	bufferSize int

	mu      sync.Mutex
	stream  *portaudio.Stream
	out     []int16
	stopped bool
}

func NewPlaybackDevice() *PlaybackDevice {
	return &PlaybackDevice{bufferSize: defaultBufferSize}
}

func (d *PlaybackDevice) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream != nil {
		return fmt.Errorf("playback device already acquired")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	out := make([]int16, d.bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(coreaudio.DefaultSampleRate), d.bufferSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("failed to start playback stream: %w", err)
	}

	d.stream = stream
	d.out = out
	d.stopped = false
	return nil
}

func (d *PlaybackDevice) Play(ctx context.Context, buffer []byte) error {
	segmentBytes := d.bufferSize * 2

	for offset := 0; offset < len(buffer); offset += segmentBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		d.mu.Lock()
		if d.stopped || d.stream == nil {
			d.mu.Unlock()
			return nil
		}

		segment := buffer[offset:min(offset+segmentBytes, len(buffer))]
		for i := range d.out {
			d.out[i] = 0
		}
		if err := binary.Read(bytes.NewReader(segment), binary.LittleEndian, d.out[:len(segment)/2]); err != nil {
			d.mu.Unlock()
			return fmt.Errorf("failed to frame playback audio: %w", err)
		}
		err := d.stream.Write()
		d.mu.Unlock()

		if err != nil {
			return fmt.Errorf("failed to write playback audio: %w", err)
		}
	}
	return nil
}

func (d *PlaybackDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

func (d *PlaybackDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	d.stream = nil
	if terminateErr := portaudio.Terminate(); err == nil {
		err = terminateErr
	}
	if err != nil {
		return fmt.Errorf("failed to release playback device: %w", err)
	}
	return nil
}

func (d *PlaybackDevice) EncodingInfo() coreaudio.EncodingInfo {
	return coreaudio.GetDefaultEncodingInfo()
}
