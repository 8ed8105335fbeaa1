package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	coreaudio "github.com/chatpot/chatpot-core/core/audio"
)

// PlaybackDevice is a speaker device. Play feeds one buffer through the
// backend's pull callback and blocks until the buffer drains, the context is
// cancelled, or Stop is called.
type PlaybackDevice struct {
	mu           sync.Mutex
	audioContext *malgo.AllocatedContext
	device       *malgo.Device

	pending []byte
	drained chan struct{}
	stopped bool
}

func NewPlaybackDevice() *PlaybackDevice {
	return &PlaybackDevice{}
}

func (d *PlaybackDevice) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("playback device already acquired")
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	encodingInfo := d.encodingInfo()
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Playback.Format = format
	config.Playback.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encodingInfo.SampleRate) / 10
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			d.fill(pOutput, int(frameCount)*bytesPerFrame, encodingInfo.SilenceValue())
		},
	})
	if err != nil {
		_ = audioContext.Uninit()
		audioContext.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = audioContext.Uninit()
		audioContext.Free()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	d.audioContext = audioContext
	d.device = device
	d.stopped = false
	return nil
}

// fill copies pending audio into the backend's output buffer, padding with
// silence, and signals the waiting Play call when the buffer runs dry.
func (d *PlaybackDevice) fill(pOutput []byte, need int, silence byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := copy(pOutput, d.pending)
	d.pending = d.pending[n:]
	for i := n; i < need && i < len(pOutput); i++ {
		pOutput[i] = silence
	}

	if len(d.pending) == 0 && d.drained != nil {
		close(d.drained)
		d.drained = nil
	}
}

func (d *PlaybackDevice) Play(ctx context.Context, buffer []byte) error {
	d.mu.Lock()
	if d.device == nil {
		d.mu.Unlock()
		return fmt.Errorf("playback device not acquired")
	}
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	if d.drained != nil {
		d.mu.Unlock()
		return fmt.Errorf("playback already in progress")
	}

	drained := make(chan struct{})
	d.pending = append([]byte(nil), buffer...)
	d.drained = drained
	d.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		d.clear()
		return ctx.Err()
	}
}

// Stop aborts an in-flight Play and discards whatever is still buffered.
func (d *PlaybackDevice) Stop() error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.clear()
	return nil
}

func (d *PlaybackDevice) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = nil
	if d.drained != nil {
		close(d.drained)
		d.drained = nil
	}
}

func (d *PlaybackDevice) Release() error {
	d.clear()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		if d.device.IsStarted() {
			_ = d.device.Stop()
		}
		d.device.Uninit()
		d.device = nil
	}
	if d.audioContext != nil {
		err := d.audioContext.Uninit()
		d.audioContext.Free()
		d.audioContext = nil
		if err != nil {
			return fmt.Errorf("failed to release audio backend: %w", err)
		}
	}
	return nil
}

func (d *PlaybackDevice) EncodingInfo() coreaudio.EncodingInfo {
	return d.encodingInfo()
}

func (d *PlaybackDevice) encodingInfo() coreaudio.EncodingInfo {
	return coreaudio.GetDefaultEncodingInfo()
}
