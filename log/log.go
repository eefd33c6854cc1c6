// Package log writes two files under one directory: diagnostics_log.txt, a
// zerolog console-format stream of events and metrics, and
// transcript_log.txt, one line per interview utterance. Every function is a
// no-op until Init succeeds.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"interview/errors"
)

const (
	diagnosticsFile = "diagnostics_log.txt"
	transcriptsFile = "transcript_log.txt"
	timeFormat      = "2006-01-02 15:04:05"
)

type files struct {
	diag       *os.File
	transcript *os.File
	logger     zerolog.Logger
	pid        int
}

var (
	mu    sync.Mutex
	out   *files
	dir   string
	level = zerolog.InfoLevel
)

func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("INTERVIEW_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", errors.Wrapf(err, "resolving log path %q", p)
	}
	return abs, nil
}

func SetDir(d string) {
	mu.Lock()
	dir = d
	mu.Unlock()
}

func Dir() string {
	mu.Lock()
	defer mu.Unlock()
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return errors.Wrap(err, "creating log directory")
	}
	return nil
}

// SetLevel sets the minimum diagnostics level by zerolog name ("debug",
// "info", "warn", "error"). Empty keeps the current level.
func SetLevel(name string) error {
	if name == "" {
		return nil
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return errors.Wrapf(err, "log level %q", name)
	}
	mu.Lock()
	defer mu.Unlock()
	level = l
	if out != nil {
		out.logger = out.logger.Level(l)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Init() error {
	if err := EnsureDir(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		return nil
	}

	diag, err := openAppend(diagnosticsFile)
	if err != nil {
		return errors.Wrap(err, "opening diagnostics log")
	}
	transcript, err := openAppend(transcriptsFile)
	if err != nil {
		diag.Close()
		return errors.Wrap(err, "opening transcript log")
	}

	pid := os.Getpid()
	w := zerolog.ConsoleWriter{Out: diag, TimeFormat: timeFormat, NoColor: true}
	out = &files{
		diag:       diag,
		transcript: transcript,
		logger:     zerolog.New(w).Level(level).With().Timestamp().Int("pid", pid).Logger(),
		pid:        pid,
	}
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	out.diag.Close()
	out.transcript.Close()
	out = nil
}

// with runs fn with the open files, if any.
func with(fn func(f *files)) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		fn(out)
	}
}

func emit(l zerolog.Level, msg string) {
	with(func(f *files) { f.logger.WithLevel(l).Msg(msg) })
}

func Debugf(format string, args ...any) { emit(zerolog.DebugLevel, fmt.Sprintf(format, args...)) }

func Info(msg string)                  { emit(zerolog.InfoLevel, msg) }
func Infof(format string, args ...any) { emit(zerolog.InfoLevel, fmt.Sprintf(format, args...)) }

func Warn(msg string)                  { emit(zerolog.WarnLevel, msg) }
func Warnf(format string, args ...any) { emit(zerolog.WarnLevel, fmt.Sprintf(format, args...)) }

func Error(msg string)                  { emit(zerolog.ErrorLevel, msg) }
func Errorf(format string, args ...any) { emit(zerolog.ErrorLevel, fmt.Sprintf(format, args...)) }
