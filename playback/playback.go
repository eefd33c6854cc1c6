// Package playback plays the interviewer's audio and the short cues that mark
// recording start and stop.
package playback

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/kballard/go-shellquote"

	"interview/errors"
	"interview/log"
)

// Sink plays one audio URL. Play must not block.
type Sink interface {
	Play(url string)
}

// Log records URLs without playing them.
type Log struct{}

func (Log) Play(url string) {
	if url != "" {
		log.Infof("interviewer audio: %s", url)
	}
}

// Command plays each URL with an external player. A new URL stops whatever
// is still playing.
type Command struct {
	name string
	args []string

	start func(ctx context.Context, name string, args ...string) (wait func() error, err error)

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

// NewCommand parses a player command line such as "mpv --no-video" with
// shell quoting rules. The URL is appended as the last argument.
func NewCommand(cmdline string) (*Command, error) {
	fields, err := shellquote.Split(cmdline)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing playback command %q", cmdline)
	}
	if len(fields) == 0 {
		return nil, errors.New("empty playback command")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, errors.WithHintf(errors.Wrapf(err, "playback command %q", fields[0]),
			"install %s or set playback.command", fields[0])
	}
	return &Command{name: fields[0], args: fields[1:], start: startProcess}, nil
}

func startProcess(ctx context.Context, name string, args ...string) (func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd.Wait, nil
}

func (c *Command) Play(url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	wait, err := c.start(ctx, c.name, append(append([]string(nil), c.args...), url)...)
	if err != nil {
		log.Warnf("playback %s: %v", url, err)
		cancel()
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := wait()
		if err != nil && ctx.Err() == nil {
			log.Warnf("playback %s: %v", url, err)
		}
		c.mu.Lock()
		if c.gen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()
}

// Stop ends the current playback and waits for the player to exit.
func (c *Command) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// New picks a Command sink for cmdline, or Log when it is empty or the
// player cannot be found.
func New(cmdline string) Sink {
	if strings.TrimSpace(cmdline) == "" {
		return Log{}
	}
	cmd, err := NewCommand(cmdline)
	if err != nil {
		log.Warn(errors.UserMessage(err))
		return Log{}
	}
	return cmd
}
