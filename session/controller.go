package session

import (
	"context"
	"fmt"
	"sync"

	"interview/capture"
	"interview/errors"
	"interview/job"
	"interview/log"
	"interview/playback"
	"interview/recorder"
	"interview/transcript"
	"interview/transport"
)

type Controller struct {
	neg    Negotiator
	dialer Dialer
	api    Interviewer
	player playback.Sink
	sink   Sink
	cfg    Config
	q      *queue

	done     chan struct{}
	doneOnce sync.Once

	// owned by the loop
	runCtx    context.Context
	state     State
	job       *job.Job
	gen       uint64
	actx      context.Context
	cancel    context.CancelFunc
	src       capture.MediaSource
	mode      capture.Mode
	conn      Conn
	rec       *recorder.Recorder
	script    *transcript.Model
	sessionID string

	// copies for the accessors
	mu       sync.Mutex
	pubState State
	pubJob   *job.Job
	pubMode  capture.Mode
	pubModel *transcript.Model
}

func New(deps Deps, cfg Config) *Controller {
	c := &Controller{
		neg:      deps.Negotiator,
		dialer:   deps.Dialer,
		api:      deps.Interviewer,
		player:   deps.Player,
		sink:     deps.Sink,
		cfg:      cfg,
		q:        newQueue(),
		done:     make(chan struct{}),
		script:   &transcript.Model{},
	}
	if c.sink == nil {
		c.sink = nopSink{}
	}
	if c.player == nil {
		c.player = playback.Log{}
	}
	if c.cfg.Resolve == nil {
		c.cfg.Resolve = func(u string) string { return u }
	}
	c.pubModel = c.script
	return c
}

// Run processes operations until ctx is cancelled, then tears down any live
// attempt.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer c.doneOnce.Do(func() { close(c.done) })
	c.q.drain(ctx)
	if c.state.Live() {
		c.teardown("shutdown")
	}
}

// SelectJob replaces the active job. It takes effect for the next Start.
func (c *Controller) SelectJob(j job.Job) {
	c.q.post(func() {
		c.job = &j
		c.mu.Lock()
		c.pubJob = &j
		c.mu.Unlock()
		c.sink.Status("selected "+j.Label(), nil)
	})
}

// Start begins a new attempt from Idle or Closed. It returns once the loop
// has accepted or rejected the request; a start while an attempt is in
// flight is ignored and returns nil.
func (c *Controller) Start(ctx context.Context) error {
	reply := make(chan error, 1)
	c.q.post(func() { reply <- c.start() })
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// ToggleRecording starts or stops the recorder of the active session.
func (c *Controller) ToggleRecording() {
	c.q.post(c.toggle)
}

// End closes the current attempt, if any.
func (c *Controller) End() {
	c.q.post(func() {
		if c.state.Live() {
			c.sink.Status("interview ended", nil)
			c.teardown("ended by user")
		}
	})
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubState
}

// Job returns the selected job, if any.
func (c *Controller) Job() (job.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pubJob == nil {
		return job.Job{}, false
	}
	return *c.pubJob, true
}

func (c *Controller) Mode() capture.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubMode
}

// Transcript returns the transcript of the current or most recent attempt.
func (c *Controller) Transcript() *transcript.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubModel
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.mu.Lock()
	c.pubState = s
	c.pubMode = c.mode
	c.mu.Unlock()
	log.SessionState(c.sessionID, s.String())
	c.sink.StateChanged(s)
}

func (c *Controller) fail(msg string, err error) {
	log.Errorf("%s: %v", msg, err)
	c.sink.Status(msg+": "+errors.UserMessage(err), err)
}

func (c *Controller) start() error {
	if c.job == nil {
		c.sink.Status("select a job before starting the interview", ErrNoJobSelected)
		return ErrNoJobSelected
	}
	if c.state.Live() {
		log.Infof("start ignored while %s", c.state)
		return nil
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.runCtx)
	c.actx, c.cancel = ctx, cancel
	c.mode = capture.ModeNone
	c.sessionID = ""
	c.script = &transcript.Model{}
	c.mu.Lock()
	c.pubModel = c.script
	c.mu.Unlock()
	c.setState(Negotiating)
	c.sink.Status("requesting camera and microphone", nil)

	go func() {
		src, mode, err := c.neg.Acquire(ctx)
		c.q.post(func() { c.acquired(gen, src, mode, err) })
	}()
	return nil
}

func (c *Controller) stale(gen uint64) bool {
	return gen != c.gen
}

func (c *Controller) acquired(gen uint64, src capture.MediaSource, mode capture.Mode, err error) {
	if c.stale(gen) || c.state != Negotiating {
		if src != nil {
			src.Close()
		}
		return
	}
	if err != nil {
		c.cancel()
		c.actx, c.cancel = nil, nil
		c.fail("cannot start interview", err)
		c.setState(Idle)
		return
	}
	c.src = src
	c.mode = mode
	c.setState(Connecting)
	c.sink.Status(fmt.Sprintf("capturing %s, connecting", mode), nil)

	ctx := c.actx
	go func() {
		conn, err := c.dialer.Open(ctx)
		c.q.post(func() { c.connected(gen, conn, err) })
	}()
}

func (c *Controller) connected(gen uint64, conn Conn, err error) {
	if c.stale(gen) || c.state != Connecting {
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		c.fail("cannot reach the interviewer", errors.Mark(err, transport.ErrConnectionFailed))
		c.teardown("connect failed")
		return
	}
	c.conn = conn
	c.sessionID = conn.ID()
	conn.OnClose(func(cl transport.Closure) {
		c.q.post(func() { c.closed(gen, cl) })
	})
	log.SessionStart(c.sessionID, c.job.Label(), c.mode.String())
	c.setState(AwaitingFirstQuestion)
	c.sink.Status("waiting for the first question", nil)

	j := *c.job
	ctx := c.actx
	go func() {
		op, err := c.api.StartInterview(ctx, j)
		c.q.post(func() { c.opened(gen, op.Text, op.AudioURL, err) })
	}()
}

func (c *Controller) opened(gen uint64, text, audioURL string, err error) {
	if c.stale(gen) || c.state != AwaitingFirstQuestion {
		return
	}
	if err != nil {
		c.fail("could not get the opening question", err)
		c.teardown("opening question failed")
		return
	}
	c.appendUtterance(transcript.Utterance{Speaker: transcript.Interviewer, Text: text, AudioURL: audioURL})

	rec, err := recorder.New(c.src, c.cfg.Recorder)
	if err != nil {
		c.fail("recording disabled", err)
		c.sink.RecordingChanged(false, false)
	} else {
		c.rec = rec
		rec.OnChunk(func(b []byte) {
			c.q.post(func() { c.chunk(gen, b) })
		})
		c.sink.RecordingChanged(false, true)
	}

	c.conn.OnEvent(func(ev transport.Event) {
		c.q.post(func() { c.event(gen, ev) })
	})
	c.setState(Active)
	if c.rec != nil {
		c.sink.Status("interview started, press space to answer", nil)
	}
}

func (c *Controller) event(gen uint64, ev transport.Event) {
	if c.stale(gen) || c.state != Active || ev.Empty() {
		return
	}
	speaker := transcript.Interviewer
	if ev.FromUser() {
		speaker = transcript.User
	}
	c.appendUtterance(transcript.Utterance{Speaker: speaker, Text: ev.Text, AudioURL: ev.AudioURL})
}

func (c *Controller) appendUtterance(u transcript.Utterance) {
	if u.Text == "" && u.AudioURL == "" {
		return
	}
	c.script.Append(u)
	if u.Text != "" {
		log.TranscriptLine(u.Speaker.String(), u.Text)
	}
	c.sink.UtteranceAdded(u)
	if u.AudioURL != "" {
		c.player.Play(c.cfg.Resolve(u.AudioURL))
	}
}

func (c *Controller) chunk(gen uint64, b []byte) {
	if c.stale(gen) {
		return
	}
	if c.conn == nil || c.conn.State() != transport.Open {
		log.Warnf("dropping %d byte audio chunk: connection not open", len(b))
		return
	}
	if err := c.conn.Send(b); err != nil {
		log.Warnf("dropping %d byte audio chunk: %v", len(b), err)
		return
	}
	if c.cfg.Placeholder != "" && c.rec != nil && c.rec.Mode() == recorder.ModeUtterance {
		c.appendUtterance(transcript.Utterance{Speaker: transcript.User, Text: c.cfg.Placeholder})
	}
}

func (c *Controller) toggle() {
	if c.state != Active || c.rec == nil {
		c.sink.Status("recording is not available", errors.Wrap(recorder.ErrRecorderUnavailable, c.state.String()))
		return
	}
	st, err := c.rec.Toggle()
	if err != nil {
		c.rec.Abort()
		c.rec = nil
		c.sink.RecordingChanged(false, false)
		c.fail("recording disabled", err)
		return
	}
	c.sink.RecordingChanged(st == recorder.Recording, true)
}

func (c *Controller) closed(gen uint64, cl transport.Closure) {
	if c.stale(gen) || !c.state.Live() {
		return
	}
	switch cl.Cause {
	case transport.CauseNormal:
		c.sink.Status("the interviewer closed the session", nil)
	case transport.CauseError:
		c.fail("connection lost", errors.Mark(cl.Err, transport.ErrConnectionFailed))
	}
	c.teardown("connection closed: " + cl.Cause.String())
}

// teardown stops the recorder and closes the connection before returning,
// then moves to Closed. Callbacks from the torn down attempt become stale.
func (c *Controller) teardown(reason string) {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.actx, c.cancel = nil, nil
	}
	if c.rec != nil {
		c.rec.Abort()
		c.rec = nil
		c.sink.RecordingChanged(false, false)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.src != nil {
		c.src.Close()
		c.src = nil
	}
	log.Infof("session %s torn down: %s", c.sessionID, reason)
	if c.sessionID != "" {
		log.SessionEnd(c.sessionID, c.script.Len())
	}
	c.setState(Closed)
}
