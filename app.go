package main

import (
	"context"

	"interview/audio"
	"interview/backend"
	"interview/capture"
	"interview/config"
	"interview/playback"
	"interview/session"
	"interview/transport"
)

// app wires the controller to the real backend, websocket and microphone.
type app struct {
	api    *backend.Client
	ctrl   *session.Controller
	player playback.Sink
}

func newApp(cfg *config.Config, actx audio.Context, sink session.Sink) *app {
	api := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	capCfg := audio.DefaultCaptureConfig()
	capCfg.SampleRate = uint32(cfg.Audio.SampleRate)
	capCfg.Gain = cfg.Audio.Gain
	device := capture.NewSystemDevice(actx, cfg.Audio.Device, capCfg)

	player := playback.New(cfg.Playback.Command)
	ctrl := session.New(session.Deps{
		Negotiator:  capture.NewNegotiator(device),
		Dialer:      session.TransportDialer(transport.NewClient(cfg.Backend.WSURL)),
		Interviewer: api,
		Player:      player,
		Sink:        sink,
	}, session.Config{
		Recorder:    cfg.RecorderConfig(),
		Placeholder: cfg.Session.Placeholder,
		Resolve:     api.ResolveURL,
	})
	return &app{api: api, ctrl: ctrl, player: player}
}

// run drives the controller until ctx is done and then stops playback.
func (a *app) run(ctx context.Context) {
	a.ctrl.Run(ctx)
	if c, ok := a.player.(*playback.Command); ok {
		c.Stop()
	}
}
