package audio

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// MicSource captures the default input device with malgo and fans the
// frames out through an embedded PipeSource.
type MicSource struct {
	*PipeSource
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMicSource opens the default capture device at the given rate, mono
// signed 16-bit, 20 ms periods.
func NewMicSource(sampleRate int) (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &MicSource{
		PipeSource: NewPipeSource(sampleRate),
		ctx:        ctx,
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	onRecv := func(_, input []byte, _ uint32) {
		if len(input) == 0 {
			return
		}
		m.Push(PCM16ToFloat32(PCM16BytesLE(input)))
	}

	device, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	m.device = device
	return m, nil
}

// Stop halts capture, releases the device and closes subscribers.
func (m *MicSource) Stop() {
	if m.Stopped() {
		return
	}
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
	m.PipeSource.Stop()
}
