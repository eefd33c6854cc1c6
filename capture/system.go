package capture

import (
	"context"
	"sync"

	"interview/audio"
	"interview/errors"
)

// SystemDevice opens the host microphone through an audio.Context. There is
// no camera backend, so video requests always fail with ErrNoCamera.
type SystemDevice struct {
	ctx    audio.Context
	device string
	config audio.CaptureConfig
}

// NewSystemDevice uses the microphone called deviceName, or the system
// default when deviceName is empty or not connected.
func NewSystemDevice(ctx audio.Context, deviceName string, config audio.CaptureConfig) *SystemDevice {
	return &SystemDevice{ctx: ctx, device: deviceName, config: config}
}

func (d *SystemDevice) Open(_ context.Context, c Constraints) (MediaSource, error) {
	if c.Video {
		return nil, ErrNoCamera
	}
	if !c.Audio {
		return nil, errors.New("nothing to capture")
	}

	info, err := audio.FindDevice(d.ctx, d.device)
	if err != nil {
		return nil, errors.Wrap(err, "enumerating microphones")
	}
	dev, err := d.ctx.NewCapture(info, d.config)
	if err != nil {
		return nil, errors.Wrap(err, "opening microphone")
	}
	return &audioSource{dev: dev}, nil
}

type audioSource struct {
	dev audio.CaptureDevice

	mu      sync.Mutex
	started bool
}

func (s *audioSource) Name() string   { return s.dev.DeviceName() }
func (s *audioSource) HasVideo() bool { return false }
func (s *audioSource) HasAudio() bool { return true }

func (s *audioSource) SetCallback(cb func(pcm []byte)) {
	s.dev.SetCallback(func(data []byte, _ uint32) { cb(data) })
}

func (s *audioSource) ClearCallback() { s.dev.ClearCallback() }

func (s *audioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.dev.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *audioSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.dev.Stop()
	s.started = false
}

func (s *audioSource) Close() {
	s.Stop()
	s.dev.ClearCallback()
	s.dev.Close()
}
