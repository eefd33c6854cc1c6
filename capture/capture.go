// Package capture negotiates which local media the interview records:
// video with audio when a camera is available, audio alone otherwise.
package capture

import (
	"context"

	"interview/errors"
	"interview/log"
)

var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrNoCamera         = errors.New("no camera available")
)

type Mode int

const (
	ModeNone Mode = iota
	ModeAudioOnly
	ModeVideoAudio
)

func (m Mode) String() string {
	switch m {
	case ModeAudioOnly:
		return "audio-only"
	case ModeVideoAudio:
		return "video+audio"
	default:
		return "none"
	}
}

type Constraints struct {
	Video bool
	Audio bool
}

// MediaSource is a live capture. Audio reaches the callback as
// little-endian PCM16 while the source is started.
type MediaSource interface {
	Name() string
	HasVideo() bool
	HasAudio() bool
	SetCallback(cb func(pcm []byte))
	ClearCallback()
	Start() error
	Stop()
	Close()
}

type Device interface {
	Open(ctx context.Context, c Constraints) (MediaSource, error)
}

type Negotiator struct {
	device Device
}

func NewNegotiator(device Device) *Negotiator {
	return &Negotiator{device: device}
}

// Acquire tries video+audio, then audio alone. When both tiers fail the
// error matches ErrPermissionDenied and carries both causes.
func (n *Negotiator) Acquire(ctx context.Context) (MediaSource, Mode, error) {
	src, err := n.device.Open(ctx, Constraints{Video: true, Audio: true})
	if err == nil {
		return src, ModeVideoAudio, nil
	}
	log.Infof("video+audio capture unavailable, falling back to audio-only: %v", err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ModeNone, ctxErr
	}

	src, audioErr := n.device.Open(ctx, Constraints{Audio: true})
	if audioErr == nil {
		return src, ModeAudioOnly, nil
	}
	log.Warnf("audio-only capture unavailable: %v", audioErr)

	denied := errors.Mark(errors.Combine(
		errors.Wrap(audioErr, "audio-only capture"),
		errors.Wrap(err, "video+audio capture"),
	), ErrPermissionDenied)
	return nil, ModeNone, errors.WithHint(denied, "allow microphone access or pick another device with --setup")
}
