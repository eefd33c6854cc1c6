package recorder

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview/capture"
	"interview/encoder"
	"interview/errors"
)

type manualTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

// tick blocks until the slicer has taken the tick.
func (t *manualTicker) tick(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Now():
	case <-time.After(2 * time.Second):
		tb.Fatal("slicer never took the tick")
	}
}

type chunkLog struct {
	mu     sync.Mutex
	chunks [][]byte
	got    chan struct{}
}

func newChunkLog() *chunkLog { return &chunkLog{got: make(chan struct{}, 64)} }

func (c *chunkLog) add(b []byte) {
	c.mu.Lock()
	c.chunks = append(c.chunks, append([]byte(nil), b...))
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *chunkLog) wait(tb testing.TB) {
	tb.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		tb.Fatal("no chunk emitted")
	}
}

func (c *chunkLog) all() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.chunks...)
}

func fill(n int, b byte) []byte { return bytes.Repeat([]byte{b}, n) }

func TestNewRequiresAudio(t *testing.T) {
	_, err := New(nil, Config{})
	assert.True(t, errors.Is(err, ErrRecorderUnavailable))

	_, err = New(capture.NewFakeSource(true, false), Config{})
	assert.True(t, errors.Is(err, ErrRecorderUnavailable))

	_, err = New(capture.NewFakeSource(false, true), Config{Format: "ogg"})
	assert.True(t, errors.Is(err, ErrRecorderUnavailable))
}

func TestUtteranceSingleFlush(t *testing.T) {
	src := capture.NewFakeSource(false, true)
	r, err := New(src, Config{Mode: ModeUtterance})
	require.NoError(t, err)
	out := newChunkLog()
	r.OnChunk(out.add)

	state, err := r.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Recording, state)
	assert.True(t, src.Started())

	src.Push(nil)
	src.Push(fill(500, 1))
	src.Push(fill(300, 2))

	state, err = r.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Idle, state)
	assert.False(t, src.Started())

	chunks := out.all()
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 800)
	assert.Equal(t, fill(500, 1), chunks[0][:500])
}

func TestUtteranceEmptyEmitsNothing(t *testing.T) {
	src := capture.NewFakeSource(false, true)
	r, err := New(src, Config{})
	require.NoError(t, err)
	out := newChunkLog()
	r.OnChunk(out.add)

	_, err = r.Toggle()
	require.NoError(t, err)
	_, err = r.Toggle()
	require.NoError(t, err)
	assert.Empty(t, out.all())
}

func TestUtteranceFLAC(t *testing.T) {
	src := capture.NewFakeSource(true, true)
	r, err := New(src, Config{Format: encoder.FormatFLAC})
	require.NoError(t, err)
	out := newChunkLog()
	r.OnChunk(out.add)

	_, err = r.Toggle()
	require.NoError(t, err)
	src.Push(make([]byte, encoder.BlockSize*2))
	_, err = r.Toggle()
	require.NoError(t, err)

	chunks := out.all()
	require.Len(t, chunks, 1)
	assert.Equal(t, []byte("fLaC"), chunks[0][:4])
}

func TestStreamingSlicesPerTick(t *testing.T) {
	src := capture.NewFakeSource(false, true)
	r, err := New(src, Config{Mode: ModeStreaming, Interval: time.Hour})
	require.NoError(t, err)
	tk := newManualTicker()
	r.newTicker = func(time.Duration) ticker { return tk }
	out := newChunkLog()
	r.OnChunk(out.add)

	_, err = r.Toggle()
	require.NoError(t, err)

	src.Push(fill(100, 1))
	tk.tick(t)
	out.wait(t)

	src.Push(fill(40, 2))
	src.Push(fill(60, 3))
	tk.tick(t)
	out.wait(t)

	src.Push(fill(7, 4))
	_, err = r.Toggle()
	require.NoError(t, err)

	chunks := out.all()
	require.Len(t, chunks, 3)
	assert.Equal(t, fill(100, 1), chunks[0])
	assert.Equal(t, append(fill(40, 2), fill(60, 3)...), chunks[1])
	assert.Equal(t, fill(7, 4), chunks[2])

	select {
	case <-tk.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker not stopped")
	}
}

func TestAbortWhileRecording(t *testing.T) {
	src := capture.NewFakeSource(false, true)
	r, err := New(src, Config{Mode: ModeStreaming, Interval: time.Hour})
	require.NoError(t, err)
	tk := newManualTicker()
	r.newTicker = func(time.Duration) ticker { return tk }
	out := newChunkLog()
	r.OnChunk(out.add)

	_, err = r.Toggle()
	require.NoError(t, err)
	src.Push(fill(64, 9))

	r.Abort()
	assert.Equal(t, Idle, r.State())
	assert.False(t, src.Started())
	assert.False(t, src.Push(fill(64, 9)))
	assert.Empty(t, out.all())

	_, err = r.Toggle()
	assert.True(t, errors.Is(err, ErrRecorderUnavailable))
	r.Abort()
}

func TestStartFailure(t *testing.T) {
	src := capture.NewFakeSource(false, true)
	src.FailStart(errors.New("device busy"))
	r, err := New(src, Config{})
	require.NoError(t, err)

	state, err := r.Toggle()
	assert.Equal(t, Idle, state)
	assert.True(t, errors.Is(err, ErrRecorderUnavailable))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("streaming")
	require.NoError(t, err)
	assert.Equal(t, ModeStreaming, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeUtterance, m)
	_, err = ParseMode("batch")
	assert.Error(t, err)
	assert.Equal(t, "streaming", ModeStreaming.String())
}

// deliveringSource hands one more buffer to the callback while stopping, as
// a capture thread draining its last period does.
type deliveringSource struct {
	*capture.FakeSource
}

func (s deliveringSource) Stop() {
	s.Push(fill(2, 9))
	s.FakeSource.Stop()
}

func TestStopDoesNotDeadlockWithLateDelivery(t *testing.T) {
	src := deliveringSource{capture.NewFakeSource(false, true)}
	r, err := New(src, Config{Mode: ModeUtterance})
	require.NoError(t, err)
	out := newChunkLog()
	r.OnChunk(out.add)

	_, err = r.Toggle()
	require.NoError(t, err)
	src.Push(fill(4, 1))

	done := make(chan struct{})
	go func() {
		r.Toggle()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Toggle blocked while the source delivered on stop")
	}
	out.wait(t)
	assert.Equal(t, [][]byte{fill(4, 1)}, out.all())
}
