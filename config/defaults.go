package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultBaseURL     = "http://127.0.0.1:8001"
	DefaultWSURL       = "ws://127.0.0.1:8001/ws/interview"
	DefaultKeyword     = "前端工程師"
	DefaultPlaceholder = "(processing your speech...)"
)

// SetDefaults registers a default for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", DefaultBaseURL)
	v.SetDefault("backend.ws_url", DefaultWSURL)
	v.SetDefault("backend.timeout", 30*time.Second)

	v.SetDefault("search.keyword", DefaultKeyword)

	v.SetDefault("recording.mode", "utterance")
	v.SetDefault("recording.interval", time.Second) // streaming slice length
	v.SetDefault("recording.format", "pcm")

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.gain", 0.0)

	v.SetDefault("playback.command", "")

	v.SetDefault("session.placeholder", DefaultPlaceholder)

	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
}
