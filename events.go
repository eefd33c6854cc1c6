package main

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"interview/job"
	"interview/playback"
	"interview/session"
	"interview/transcript"
)

// TUI message types
type stateMsg struct{ State session.State }
type statusMsg struct {
	Text  string
	Error bool
}
type utteranceMsg struct{ Utterance transcript.Utterance }
type recordingMsg struct{ On, Enabled bool }
type jobsMsg struct {
	Jobs []job.Job
	Err  error
}
type startResultMsg struct{ Err error }

// uiSink queues controller notifications for the bubbletea program and
// plays the recording cues. Notifications never wait on the program; forward
// delivers them in order.
type uiSink struct {
	mu        sync.Mutex
	pending   []tea.Msg
	wake      chan struct{}
	recording bool
}

func newUISink() *uiSink {
	return &uiSink{wake: make(chan struct{}, 1)}
}

func (s *uiSink) post(m tea.Msg) {
	s.mu.Lock()
	s.pending = append(s.pending, m)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// forward hands queued messages to send until ctx is done.
func (s *uiSink) forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, m := range batch {
			send(m)
		}
	}
}

func (s *uiSink) StateChanged(st session.State) { s.post(stateMsg{st}) }

func (s *uiSink) Status(msg string, err error) {
	if err != nil {
		playback.CueError()
	}
	s.post(statusMsg{Text: msg, Error: err != nil})
}

func (s *uiSink) UtteranceAdded(u transcript.Utterance) { s.post(utteranceMsg{u}) }

func (s *uiSink) RecordingChanged(on, enabled bool) {
	switch {
	case on && !s.recording:
		playback.CueStart()
	case !on && s.recording && enabled:
		playback.CueStop()
	}
	s.recording = on
	s.post(recordingMsg{On: on, Enabled: enabled})
}
