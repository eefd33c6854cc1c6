package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"interview/audio"
	"interview/config"
	"interview/errors"
	"interview/log"
	"interview/shutdown"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserMessage(err))
		os.Exit(1)
	}
}

type options struct {
	setup   bool
	testWAV string
	version bool
}

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"keyword":  "search.keyword",
	"mode":     "recording.mode",
	"format":   "recording.format",
	"device":   "audio.device",
	"logpath":  "log.path",
	"loglevel": "log.level",
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "interview",
		Short:         "Practice job interviews against an AI interviewer",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.String("keyword", "", "job search keyword")
	f.String("mode", "", "recording mode: utterance or streaming")
	f.String("format", "", "utterance format: pcm or flac")
	f.String("device", "", "use named microphone device")
	f.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	f.String("loglevel", "", "diagnostics log level: debug, info, warn or error")
	f.BoolVar(&opts.setup, "setup", false, "select microphone device interactively")
	f.StringVar(&opts.testWAV, "test", "", "headless mode: capture from a WAV file, commands on stdin")
	f.BoolVar(&opts.version, "version", false, "print version and exit")
	return cmd
}

func run(cmd *cobra.Command, opts options) error {
	if opts.version {
		fmt.Printf("interview %s\n", version)
		return nil
	}

	cfg, err := config.Load(config.Options{Flags: cmd.Flags(), FlagKeys: flagKeys})
	if err != nil {
		return err
	}

	if err := setupLogging(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	if opts.testWAV != "" {
		fake, err := audio.NewFakeContext(opts.testWAV, true)
		if err != nil {
			return errors.Wrap(err, "loading WAV")
		}
		return runTestMode(ctx, cfg, fake, os.Stdin, os.Stdout)
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		return errors.Wrap(err, "initializing audio")
	}
	defer actx.Close()

	if opts.setup && cfg.Audio.Device == "" {
		dev, err := audio.SelectDevice(actx)
		switch {
		case errors.Is(err, audio.ErrSelectionCancelled):
			return nil
		case err != nil:
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		case dev != nil:
			cfg.Audio.Device = dev.Name
		}
	}

	return runTUI(ctx, cfg, actx)
}

func setupLogging(cfg config.Log) error {
	if err := log.SetLevel(cfg.Level); err != nil {
		return err
	}
	dir, err := log.ResolveDir(cfg.Path)
	if err != nil {
		return err
	}
	log.SetDir(dir)
	if err := log.EnsureDir(); err != nil {
		return err
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if f, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(f, debug.CrashOptions{})
	}
	return log.Init()
}
