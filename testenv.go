package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"interview/audio"
	"interview/config"
	"interview/errors"
	"interview/job"
	"interview/log"
	"interview/playback"
	"interview/session"
	"interview/transcript"
)

const waitTimeout = 10 * time.Second

var errUnknownState = errors.New("unknown session state")

// headlessSink prints controller notifications as one line each and lets
// the command driver wait for a state.
type headlessSink struct {
	mu      sync.Mutex
	out     io.Writer
	state   session.State
	changed chan struct{}
}

func newHeadlessSink(out io.Writer) *headlessSink {
	return &headlessSink{out: out, changed: make(chan struct{})}
}

func (s *headlessSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *headlessSink) StateChanged(st session.State) {
	s.mu.Lock()
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
	fmt.Fprintf(s.out, "STATE %s\n", st)
	s.mu.Unlock()
}

func (s *headlessSink) Status(msg string, err error) {
	if err != nil {
		s.printf("ERROR %s", msg)
		return
	}
	s.printf("STATUS %s", msg)
}

func (s *headlessSink) UtteranceAdded(u transcript.Utterance) {
	s.printf("UTTERANCE %s %q %s", u.Speaker, u.Text, u.AudioURL)
}

func (s *headlessSink) RecordingChanged(on, enabled bool) {
	s.printf("RECORDING on=%t enabled=%t", on, enabled)
}

func (s *headlessSink) wait(target session.State, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		s.mu.Lock()
		st, ch := s.state, s.changed
		s.mu.Unlock()
		if st == target {
			return nil
		}
		select {
		case <-ch:
		case <-deadline:
			return errors.Newf("timed out waiting for %s (state %s)", target, st)
		}
	}
}

func parseState(name string) (session.State, error) {
	for st := session.Idle; st <= session.Closed; st++ {
		if strings.EqualFold(st.String(), name) {
			return st, nil
		}
	}
	return 0, errors.Wrapf(errUnknownState, "%q", name)
}

// runTestMode drives one controller from line commands on in, using actx in
// place of the microphone:
//
//	SEARCH [keyword]   list jobs
//	SELECT n           pick the nth listed job (1-based)
//	START | TOGGLE | END
//	WAIT state         block until the session reaches state
//	SLEEP ms
//	QUIT
func runTestMode(ctx context.Context, cfg *config.Config, actx audio.Context, in io.Reader, out io.Writer) error {
	playback.DisableCues()
	sink := newHeadlessSink(out)
	a := newApp(cfg, actx, sink)

	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		a.run(ctx)
		close(done)
	}()
	defer func() {
		stop()
		<-done
		if n := a.ctrl.Transcript().Len(); n > 0 {
			sink.printf("TRANSCRIPT %d", n)
		}
	}()

	var jobs []job.Job
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToUpper(cmd) {
		case "SEARCH":
			keyword := cfg.Search.Keyword
			if arg != "" {
				keyword = arg
			}
			found, err := a.api.SearchJobs(ctx, keyword)
			if err != nil {
				sink.printf("ERROR %s", errors.UserMessage(err))
				continue
			}
			jobs = found
			for i, j := range jobs {
				sink.printf("JOB %d %s", i+1, j.Label())
			}
		case "SELECT":
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 || n > len(jobs) {
				sink.printf("ERROR no job %q", arg)
				continue
			}
			a.ctrl.SelectJob(jobs[n-1])
		case "START":
			if err := a.ctrl.Start(ctx); err != nil {
				log.Warnf("start: %v", err)
			}
		case "TOGGLE":
			a.ctrl.ToggleRecording()
		case "END":
			a.ctrl.End()
		case "WAIT":
			st, err := parseState(arg)
			if err != nil {
				return err
			}
			if err := sink.wait(st, waitTimeout); err != nil {
				return err
			}
		case "SLEEP":
			if ms, err := strconv.Atoi(arg); err == nil {
				select {
				case <-time.After(time.Duration(ms) * time.Millisecond):
				case <-ctx.Done():
				}
			}
		case "QUIT":
			return nil
		default:
			sink.printf("ERROR unknown command %q", cmd)
		}
	}
	return scanner.Err()
}
