package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	mu      sync.Mutex
	calls   [][]string
	stopped []string
}

func (f *fakePlayer) start(ctx context.Context, name string, args ...string) (func() error, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	url := args[len(args)-1]
	return func() error {
		<-ctx.Done()
		f.mu.Lock()
		f.stopped = append(f.stopped, url)
		f.mu.Unlock()
		return ctx.Err()
	}, nil
}

func (f *fakePlayer) snapshot() ([][]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...), append([]string(nil), f.stopped...)
}

func TestCommandNewestReplacesCurrent(t *testing.T) {
	fp := &fakePlayer{}
	c := &Command{name: "mpv", args: []string{"--no-video"}, start: fp.start}

	c.Play("http://x/a.mp3")
	c.Play("")
	c.Play("http://x/b.mp3")

	require.Eventually(t, func() bool {
		_, stopped := fp.snapshot()
		return len(stopped) == 1
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	calls, stopped := fp.snapshot()
	assert.Equal(t, [][]string{
		{"mpv", "--no-video", "http://x/a.mp3"},
		{"mpv", "--no-video", "http://x/b.mp3"},
	}, calls)
	assert.Equal(t, []string{"http://x/a.mp3", "http://x/b.mp3"}, stopped)
}

func TestNewFallsBackToLog(t *testing.T) {
	assert.IsType(t, Log{}, New(""))
	assert.IsType(t, Log{}, New("definitely-not-a-player-binary --flag"))
	Log{}.Play("http://x/a.mp3")
}

func TestNewCommandRejectsEmpty(t *testing.T) {
	_, err := NewCommand("   ")
	assert.Error(t, err)
}

func TestNewCommandQuoting(t *testing.T) {
	c, err := NewCommand(`sh -c 'exec cat "$0"'`)
	require.NoError(t, err)
	assert.Equal(t, "sh", c.name)
	assert.Equal(t, []string{"-c", `exec cat "$0"`}, c.args)

	_, err = NewCommand(`mpv "--title=unterminated`)
	assert.Error(t, err)
}

func TestTones(t *testing.T) {
	start := tick(cueRate, startFreq, 0.1, startVolume, startDecay)
	assert.Len(t, start, cueRate/10)
	assert.Equal(t, int16(0), start[0])

	var peak int16
	for _, s := range start {
		peak = max(peak, s)
	}
	assert.Greater(t, peak, int16(1000))
	assert.LessOrEqual(t, float64(peak), 32767*startVolume)

	double := doubleTick(cueRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	single := tick(cueRate, errorFreq, 0.08, errorVolume, errorDecay)
	gap := int(float64(cueRate) * 0.05)
	require.Len(t, double, len(single)*2+gap)
	assert.Equal(t, single, double[len(single)+gap:])
}
