//go:build !linux

package playback

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"interview/log"
)

const cueDuration = 0.05

var (
	cueOnce sync.Once
	cueCtx  *malgo.AllocatedContext
	cueDev  *malgo.Device
	cueMu   sync.Mutex

	// read from the device callback
	cueBuf atomic.Pointer[[]byte]
	cuePos atomic.Uint32
)

func initCueDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = cueRate
	dev, err := malgo.InitDevice(cueCtx.Context, cfg, malgo.DeviceCallbacks{Data: fillCue})
	if err != nil {
		return err
	}
	cueDev = dev
	return nil
}

func initCues() {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	cueCtx = ctx
	if err := initCueDevice(); err != nil {
		log.Warnf("cue playback: %v", err)
		cueCtx.Uninit()
		cueCtx = nil
	}
}

func fillCue(out, _ []byte, frames uint32) {
	clear(out)
	buf := cueBuf.Load()
	if buf == nil {
		return
	}
	pos := cuePos.Load()
	remaining := uint32(len(*buf)) - pos
	if remaining == 0 {
		cueBuf.Store(nil)
		return
	}
	n := min(frames*2, remaining)
	copy(out[:n], (*buf)[pos:pos+n])
	cuePos.Store(pos + n)
}

func playTone(render func() []int16) {
	cueOnce.Do(initCues)
	if cueCtx == nil {
		return
	}
	samples := render()
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	cueMu.Lock()
	defer cueMu.Unlock()
	cueDev.Stop()
	cuePos.Store(0)
	cueBuf.Store(&pcm)
	if err := cueDev.Start(); err != nil {
		// devices can vanish across sleep/wake; rebuild once
		cueDev.Uninit()
		if err := initCueDevice(); err != nil {
			cueBuf.Store(nil)
			return
		}
		if err := cueDev.Start(); err != nil {
			cueBuf.Store(nil)
		}
	}
}
