//go:build !linux

package audio

import (
	"encoding/hex"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"interview/errors"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "initializing audio backend")
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "listing capture devices")
	}
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceInfo{ID: hex.EncodeToString(d.ID.Pointer()[:]), Name: d.Name()})
	}
	return out, nil
}

func deviceID(info *DeviceInfo) (malgo.DeviceID, error) {
	var id malgo.DeviceID
	raw, err := hex.DecodeString(info.ID)
	if err != nil {
		return id, errors.Wrapf(err, "device %q has a malformed id", info.Name)
	}
	copy(id[:], raw)
	return id, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = config.Channels
	cfg.SampleRate = config.SampleRate
	if device != nil {
		id, err := deviceID(device)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = id.Pointer()
	}
	if config.Gain == 0 {
		config.Gain = 1
	}

	c := &malgoCapture{device: device, gain: config.Gain}
	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{Data: c.deliver})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", c.DeviceName())
	}
	c.dev = dev
	return c, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	dev      *malgo.Device
	device   *DeviceInfo
	gain     float64
	callback atomic.Pointer[DataCallback]
}

// deliver runs on the audio thread; data is reused after it returns.
func (c *malgoCapture) deliver(_, data []byte, frameCount uint32) {
	cb := c.callback.Load()
	if cb == nil {
		return
	}
	pcm := make([]byte, len(data))
	copy(pcm, data)
	applyGain(pcm, c.gain)
	(*cb)(pcm, frameCount)
}

func (c *malgoCapture) Start() error {
	if err := c.dev.Start(); err != nil {
		return errors.Wrapf(err, "starting %s", c.DeviceName())
	}
	return nil
}

func (c *malgoCapture) Stop() { c.dev.Stop() }

func (c *malgoCapture) Close() { c.dev.Uninit() }

func (c *malgoCapture) SetCallback(cb DataCallback) { c.callback.Store(&cb) }

func (c *malgoCapture) ClearCallback() { c.callback.Store(nil) }

func (c *malgoCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
