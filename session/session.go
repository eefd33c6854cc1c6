// Package session drives one mock interview at a time: capture negotiation,
// the live connection, the opening question, recording and the transcript.
//
// Every state change happens on the goroutine running Controller.Run.
// Public methods and all device, network and recorder callbacks only post
// work to that loop; anything that blocks runs on its own goroutine and
// posts its result back.
package session

import (
	"context"

	"interview/backend"
	"interview/capture"
	"interview/errors"
	"interview/job"
	"interview/playback"
	"interview/recorder"
	"interview/transcript"
	"interview/transport"
)

var (
	ErrNoJobSelected = errors.New("no job selected")
	ErrStopped       = errors.New("session controller stopped")
)

type State int

const (
	Idle State = iota
	Negotiating
	Connecting
	AwaitingFirstQuestion
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Negotiating:
		return "negotiating"
	case Connecting:
		return "connecting"
	case AwaitingFirstQuestion:
		return "awaiting-first-question"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Live reports whether an attempt is in flight.
func (s State) Live() bool {
	return s != Idle && s != Closed
}

type Negotiator interface {
	Acquire(ctx context.Context) (capture.MediaSource, capture.Mode, error)
}

// Conn is the part of a transport connection the controller drives.
type Conn interface {
	ID() string
	State() transport.State
	Send(payload []byte) error
	OnEvent(func(transport.Event))
	OnClose(func(transport.Closure))
	Close()
}

type Dialer interface {
	Open(ctx context.Context) (Conn, error)
}

// DialFunc adapts a function to Dialer.
type DialFunc func(ctx context.Context) (Conn, error)

func (f DialFunc) Open(ctx context.Context) (Conn, error) { return f(ctx) }

// TransportDialer opens connections with a transport client.
func TransportDialer(c *transport.Client) Dialer {
	return DialFunc(func(ctx context.Context) (Conn, error) {
		conn, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

type Interviewer interface {
	StartInterview(ctx context.Context, j job.Job) (backend.Opening, error)
}

// Sink receives notifications from the loop goroutine. Implementations must
// not block and must not call back into the Controller synchronously.
type Sink interface {
	StateChanged(State)
	// Status carries a user-facing message; err is the underlying failure,
	// nil for informational messages.
	Status(msg string, err error)
	UtteranceAdded(transcript.Utterance)
	// RecordingChanged reports whether the recorder is running and whether
	// the toggle is usable at all.
	RecordingChanged(recording, enabled bool)
}

type nopSink struct{}

func (nopSink) StateChanged(State)                  {}
func (nopSink) Status(string, error)                {}
func (nopSink) UtteranceAdded(transcript.Utterance) {}
func (nopSink) RecordingChanged(bool, bool)         {}

type Config struct {
	Recorder recorder.Config
	// Placeholder, when set, is appended as a User utterance each time an
	// utterance-mode recording is sent.
	Placeholder string
	// Resolve maps audio URLs before they reach the player. Identity when nil.
	Resolve func(string) string
}

type Deps struct {
	Negotiator  Negotiator
	Dialer      Dialer
	Interviewer Interviewer
	Player      playback.Sink
	Sink        Sink
}
