// Package audio enumerates microphones and captures 16-bit PCM from them.
package audio

import (
	"encoding/binary"
	"math"

	"interview/encoder"
)

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	// Gain scales every sample before it reaches the callback. Zero selects
	// the backend's default.
	Gain float64
}

// DefaultCaptureConfig is the PCM layout the interview backend expects.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// FindDevice returns the device called name, or nil when name is empty or
// not present.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// applyGain scales little-endian PCM16 in place, clipping to int16.
func applyGain(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		v := math.Round(float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) * gain)
		v = max(math.MinInt16, min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}
