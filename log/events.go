package log

import (
	"fmt"
	"time"
)

// RequestMetrics is the timing breakdown of one backend HTTP call.
type RequestMetrics struct {
	Method     string
	Path       string
	Status     int
	DNSMs      float64
	ConnMs     float64
	TLSMs      float64
	ServerMs   float64
	TotalMs    float64
	ConnReused bool
}

// StreamStats summarizes one live interview connection.
type StreamStats struct {
	SessionID    string
	ConnectMs    float64
	SentFrames   int
	SentKB       float64
	RecvMessages int
	Dropped      int
	TotalMs      float64
	Cause        string
}

func Request(m RequestMetrics) {
	conn := "new"
	if m.ConnReused {
		conn = "reused"
	}
	with(func(f *files) {
		f.logger.Info().
			Str("method", m.Method).
			Str("path", m.Path).
			Int("status", m.Status).
			Str("conn", conn).
			Float64("dns_ms", m.DNSMs).
			Float64("conn_ms", m.ConnMs).
			Float64("tls_ms", m.TLSMs).
			Float64("server_ms", m.ServerMs).
			Float64("total_ms", m.TotalMs).
			Msg("request")
	})
}

func Stream(s StreamStats) {
	with(func(f *files) {
		f.logger.Info().
			Str("session", s.SessionID).
			Float64("connect_ms", s.ConnectMs).
			Int("sent_frames", s.SentFrames).
			Float64("sent_kb", s.SentKB).
			Int("recv_messages", s.RecvMessages).
			Int("dropped", s.Dropped).
			Float64("total_ms", s.TotalMs).
			Str("cause", s.Cause).
			Msg("stream_stats")
	})
}

// TranscriptLine appends one utterance to transcript_log.txt.
func TranscriptLine(speaker, text string) {
	with(func(f *files) {
		fmt.Fprintf(f.transcript, "%s\t[%d]\t%s\t%s\n", time.Now().Format(timeFormat), f.pid, speaker, text)
	})
}

func SessionStart(sessionID, job, mode string) {
	with(func(f *files) {
		f.logger.Info().Str("session", sessionID).Str("job", job).Str("capture", mode).Msg("session_start")
	})
}

func SessionState(sessionID, state string) {
	with(func(f *files) {
		f.logger.Debug().Str("session", sessionID).Str("state", state).Msg("session_state")
	})
}

func SessionEnd(sessionID string, utterances int) {
	with(func(f *files) {
		f.logger.Info().Str("session", sessionID).Int("utterances", utterances).Msg("session_end")
	})
}
