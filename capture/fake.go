package capture

import (
	"context"
	"sync"
)

// FakeDevice grants or refuses each capture tier on demand and hands out
// FakeSources whose audio is pushed by the caller.
type FakeDevice struct {
	mu       sync.Mutex
	videoErr error
	audioErr error
	requests []Constraints
	sources  []*FakeSource
}

func NewFakeDevice(videoErr, audioErr error) *FakeDevice {
	return &FakeDevice{videoErr: videoErr, audioErr: audioErr}
}

func (f *FakeDevice) Open(ctx context.Context, c Constraints) (MediaSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Video && f.videoErr != nil {
		return nil, f.videoErr
	}
	if c.Audio && f.audioErr != nil {
		return nil, f.audioErr
	}
	src := &FakeSource{video: c.Video, audio: c.Audio}
	f.sources = append(f.sources, src)
	return src, nil
}

func (f *FakeDevice) Requests() []Constraints {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Constraints(nil), f.requests...)
}

func (f *FakeDevice) Sources() []*FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeSource(nil), f.sources...)
}

// Last returns the most recently opened source, or nil.
func (f *FakeDevice) Last() *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sources) == 0 {
		return nil
	}
	return f.sources[len(f.sources)-1]
}

type FakeSource struct {
	video bool
	audio bool

	mu       sync.Mutex
	cb       func([]byte)
	started  bool
	closed   bool
	startErr error
}

// NewFakeSource builds a source directly, without a FakeDevice.
func NewFakeSource(video, audio bool) *FakeSource {
	return &FakeSource{video: video, audio: audio}
}

func (s *FakeSource) Name() string   { return "fake" }
func (s *FakeSource) HasVideo() bool { return s.video }
func (s *FakeSource) HasAudio() bool { return s.audio }

func (s *FakeSource) SetCallback(cb func([]byte)) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

func (s *FakeSource) ClearCallback() {
	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()
}

// FailStart makes the next Start calls return err.
func (s *FakeSource) FailStart(err error) {
	s.mu.Lock()
	s.startErr = err
	s.mu.Unlock()
}

func (s *FakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *FakeSource) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *FakeSource) Close() {
	s.mu.Lock()
	s.started = false
	s.closed = true
	s.cb = nil
	s.mu.Unlock()
}

// Push delivers pcm to the callback if the source is started. It reports
// whether anything received it.
func (s *FakeSource) Push(pcm []byte) bool {
	s.mu.Lock()
	cb := s.cb
	live := s.started && !s.closed
	s.mu.Unlock()
	if !live || cb == nil {
		return false
	}
	cb(pcm)
	return true
}

func (s *FakeSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *FakeSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
