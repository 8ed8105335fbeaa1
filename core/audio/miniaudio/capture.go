// Package miniaudio backs the pipeline's capture and playback device
// contracts with malgo. Each device owns its own malgo context so capture
// and playback can be acquired and released independently.
package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	coreaudio "github.com/chatpot/chatpot-core/core/audio"
)

// CaptureDevice is a microphone device. Acquire initializes the backend,
// Start begins delivering chunks to the registered callback, Release returns
// the hardware to the platform.
type CaptureDevice struct {
	mu           sync.Mutex
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	onAudio      func(chunk []byte)
}

func NewCaptureDevice() *CaptureDevice {
	return &CaptureDevice{}
}

func (d *CaptureDevice) Acquire(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("capture device already acquired")
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	encodingInfo := d.encodingInfo()
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = 480
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}

			d.mu.Lock()
			onAudio := d.onAudio
			d.mu.Unlock()
			if onAudio != nil {
				onAudio(pInput[:n])
			}
		},
	})
	if err != nil {
		_ = audioContext.Uninit()
		audioContext.Free()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	d.audioContext = audioContext
	d.device = device
	return nil
}

func (d *CaptureDevice) Start(onAudio func(chunk []byte)) error {
	d.mu.Lock()
	if d.device == nil {
		d.mu.Unlock()
		return fmt.Errorf("capture device not acquired")
	}
	d.onAudio = onAudio
	device := d.device
	d.mu.Unlock()

	if device.IsStarted() {
		return nil
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *CaptureDevice) Stop() error {
	d.mu.Lock()
	device := d.device
	d.onAudio = nil
	d.mu.Unlock()

	if device == nil || !device.IsStarted() {
		return nil
	}
	if err := device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (d *CaptureDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
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

func (d *CaptureDevice) EncodingInfo() coreaudio.EncodingInfo {
	return d.encodingInfo()
}

func (d *CaptureDevice) encodingInfo() coreaudio.EncodingInfo {
	return coreaudio.GetDefaultEncodingInfo()
}
