// Package recorder turns a media source into the audio payloads sent to the
// interviewer, either one payload per spoken answer or a steady stream of
// fixed-interval slices.
package recorder

import (
	"sync"
	"time"

	"interview/capture"
	"interview/encoder"
	"interview/errors"
	"interview/log"
)

var ErrRecorderUnavailable = errors.New("recorder unavailable")

const DefaultInterval = time.Second

type Mode int

const (
	// ModeUtterance buffers everything between start and stop and emits it
	// as a single payload on stop.
	ModeUtterance Mode = iota
	// ModeStreaming emits whatever was captured during each interval as
	// soon as the interval ends.
	ModeStreaming
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "utterance"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "utterance":
		return ModeUtterance, nil
	case "streaming":
		return ModeStreaming, nil
	default:
		return 0, errors.Newf("unknown recording mode %q (use utterance or streaming)", s)
	}
}

type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

type Config struct {
	Mode     Mode
	Interval time.Duration // streaming slice length; DefaultInterval when zero
	Format   string        // utterance payload format, encoder.FormatPCM when empty
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

type Recorder struct {
	src       capture.MediaSource
	cfg       Config
	newTicker func(time.Duration) ticker

	// emitMu serializes chunk delivery with Abort so nothing is emitted
	// once Abort returns.
	emitMu  sync.Mutex
	onChunk func([]byte)

	mu      sync.Mutex
	state   State
	buf     []byte
	aborted bool
	tickEnd chan struct{}
	tickWG  sync.WaitGroup
}

func New(src capture.MediaSource, cfg Config) (*Recorder, error) {
	if src == nil || !src.HasAudio() {
		return nil, errors.Wrap(ErrRecorderUnavailable, "media source has no audio track")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Format == "" {
		cfg.Format = encoder.FormatPCM
	}
	if !encoder.ValidFormat(cfg.Format) {
		return nil, errors.Wrapf(ErrRecorderUnavailable, "unsupported format %q", cfg.Format)
	}
	r := &Recorder{
		src: src,
		cfg: cfg,
		newTicker: func(d time.Duration) ticker {
			return timeTicker{time.NewTicker(d)}
		},
	}
	src.SetCallback(r.feed)
	return r, nil
}

func (r *Recorder) Mode() Mode { return r.cfg.Mode }

// OnChunk registers the single consumer of emitted payloads.
func (r *Recorder) OnChunk(cb func([]byte)) {
	r.emitMu.Lock()
	r.onChunk = cb
	r.emitMu.Unlock()
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Toggle flips Idle and Recording. Stopping flushes whatever the mode still
// holds before it returns.
func (r *Recorder) Toggle() (State, error) {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return Idle, errors.Wrap(ErrRecorderUnavailable, "recorder was shut down")
	}
	if r.state == Idle {
		err := r.startLocked()
		state := r.state
		r.mu.Unlock()
		return state, err
	}
	tail := r.stopLocked()
	r.mu.Unlock()

	r.src.Stop()
	r.tickWG.Wait()
	r.flush(tail, r.cfg.Mode == ModeUtterance)
	return Idle, nil
}

func (r *Recorder) startLocked() error {
	r.buf = nil
	if err := r.src.Start(); err != nil {
		return errors.Mark(errors.Wrap(err, "starting capture"), ErrRecorderUnavailable)
	}
	r.state = Recording
	if r.cfg.Mode == ModeStreaming {
		r.tickEnd = make(chan struct{})
		t := r.newTicker(r.cfg.Interval)
		r.tickWG.Add(1)
		go r.runSlicer(t, r.tickEnd)
	}
	return nil
}

// stopLocked ends the recording and hands back the unsent buffer. The
// caller stops the source after releasing mu, since the source may be
// blocked delivering to feed.
func (r *Recorder) stopLocked() []byte {
	r.state = Idle
	if r.tickEnd != nil {
		close(r.tickEnd)
		r.tickEnd = nil
	}
	tail := r.buf
	r.buf = nil
	return tail
}

// Abort forces Idle and discards buffered audio. No chunk is emitted after
// it returns and later Toggle calls fail.
func (r *Recorder) Abort() {
	r.mu.Lock()
	if r.aborted {
		r.mu.Unlock()
		return
	}
	r.aborted = true
	wasRecording := r.state == Recording
	if wasRecording {
		r.stopLocked()
	}
	r.buf = nil
	r.mu.Unlock()

	if wasRecording {
		r.src.Stop()
	}
	r.src.ClearCallback()
	r.tickWG.Wait()

	r.emitMu.Lock()
	r.onChunk = nil
	r.emitMu.Unlock()
}

func (r *Recorder) feed(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Recording || r.aborted {
		return
	}
	r.buf = append(r.buf, pcm...)
}

func (r *Recorder) runSlicer(t ticker, end <-chan struct{}) {
	defer r.tickWG.Done()
	defer t.Stop()
	for {
		select {
		case <-end:
			return
		case <-t.C():
		}
		r.mu.Lock()
		if r.state != Recording || r.aborted {
			r.mu.Unlock()
			return
		}
		slice := r.buf
		r.buf = nil
		r.mu.Unlock()
		r.flush(slice, false)
	}
}

// flush emits one payload. Empty payloads are dropped.
func (r *Recorder) flush(pcm []byte, pack bool) {
	if len(pcm) == 0 {
		return
	}
	payload := pcm
	if pack {
		packed, err := encoder.Pack(r.cfg.Format, pcm)
		if err != nil {
			log.Errorf("packing utterance as %s: %v", r.cfg.Format, err)
			return
		}
		payload = packed
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()
	r.mu.Lock()
	aborted := r.aborted
	r.mu.Unlock()
	if aborted || r.onChunk == nil {
		return
	}
	r.onChunk(payload)
}
