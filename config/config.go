// Package config layers defaults, interview.toml, .env, INTERVIEW_*
// environment variables and command-line flags into one Config.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"interview/encoder"
	"interview/errors"
	"interview/recorder"
)

const (
	EnvPrefix = "INTERVIEW"
	FileName  = "interview.toml"
)

type Config struct {
	Backend   Backend   `mapstructure:"backend"`
	Search    Search    `mapstructure:"search"`
	Recording Recording `mapstructure:"recording"`
	Audio     Audio     `mapstructure:"audio"`
	Playback  Playback  `mapstructure:"playback"`
	Session   Session   `mapstructure:"session"`
	Log       Log       `mapstructure:"log"`
}

type Backend struct {
	BaseURL string        `mapstructure:"base_url"`
	WSURL   string        `mapstructure:"ws_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Search struct {
	Keyword string `mapstructure:"keyword"`
}

type Recording struct {
	Mode     string        `mapstructure:"mode"`
	Interval time.Duration `mapstructure:"interval"`
	Format   string        `mapstructure:"format"`
}

type Audio struct {
	Device     string  `mapstructure:"device"`
	SampleRate int     `mapstructure:"sample_rate"`
	Gain       float64 `mapstructure:"gain"` // 0 uses the backend default
}

type Playback struct {
	Command string `mapstructure:"command"` // empty logs audio URLs instead
}

type Session struct {
	Placeholder string `mapstructure:"placeholder"`
}

type Log struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

// Options controls where Load looks for files. Zero values use the working
// directory and ~/.config/interview.
type Options struct {
	Dirs    []string // searched lowest precedence first
	EnvFile string
	Flags   *pflag.FlagSet
	// FlagKeys maps flag names to config keys.
	FlagKeys map[string]string
}

func (o Options) dirs() []string {
	if len(o.Dirs) > 0 {
		return o.Dirs
	}
	var dirs []string
	if cfg, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfg, "interview"))
	}
	return append(dirs, ".")
}

func (o Options) envFile() string {
	if o.EnvFile != "" {
		return o.EnvFile
	}
	return ".env"
}

// NewViper builds the layered viper instance without decoding it.
func NewViper(opts Options) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	for _, dir := range opts.dirs() {
		if err := mergeFile(v, filepath.Join(dir, FileName)); err != nil {
			return nil, err
		}
	}
	if err := mergeEnvFile(v, opts.envFile()); err != nil {
		return nil, err
	}

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				return nil, errors.Newf("unknown flag %q for %s", name, key)
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "binding --%s", name)
			}
		}
	}
	return v, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	tmp := viper.New()
	tmp.SetConfigFile(path)
	tmp.SetConfigType("toml")
	if err := tmp.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	if err := v.MergeConfigMap(tmp.AllSettings()); err != nil {
		return errors.Wrapf(err, "merging %s", path)
	}
	return nil
}

// mergeEnvFile folds INTERVIEW_* entries of a dotenv file into the file
// layer, so real environment variables still win over it.
func mergeEnvFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}
	settings := map[string]any{}
	for _, key := range v.AllKeys() {
		val, ok := vars[EnvName(key)]
		if !ok {
			continue
		}
		section, leaf, _ := strings.Cut(key, ".")
		m, _ := settings[section].(map[string]any)
		if m == nil {
			m = map[string]any{}
			settings[section] = m
		}
		m[leaf] = val
	}
	if len(settings) == 0 {
		return nil
	}
	return v.MergeConfigMap(settings)
}

// EnvName is the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func Load(opts Options) (*Config, error) {
	v, err := NewViper(opts)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := checkURL("backend.base_url", c.Backend.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("backend.ws_url", c.Backend.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Backend.Timeout <= 0 {
		return errors.Newf("backend.timeout must be > 0, got %s", c.Backend.Timeout)
	}
	if _, err := recorder.ParseMode(c.Recording.Mode); err != nil {
		return errors.Wrap(err, "recording.mode")
	}
	if c.Recording.Interval <= 0 {
		return errors.Newf("recording.interval must be > 0, got %s", c.Recording.Interval)
	}
	if !encoder.ValidFormat(c.Recording.Format) {
		return errors.Newf("recording.format must be pcm or flac, got %q", c.Recording.Format)
	}
	if c.Audio.SampleRate <= 0 {
		return errors.Newf("audio.sample_rate must be > 0, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Gain < 0 {
		return errors.Newf("audio.gain must be >= 0, got %g", c.Audio.Gain)
	}
	if c.Recording.Format == encoder.FormatFLAC && c.Audio.SampleRate != encoder.SampleRate {
		return errors.Newf("recording.format flac needs audio.sample_rate %d, got %d", encoder.SampleRate, c.Audio.SampleRate)
	}
	if c.Log.Level != "" {
		if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
			return errors.Wrap(err, "log.level")
		}
	}
	return nil
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return errors.Newf("%s must be a %s URL, got %q", key, strings.Join(schemes, "/"), raw)
}

// RecorderConfig converts the recording section. Validate has already
// checked the mode.
func (c *Config) RecorderConfig() recorder.Config {
	mode, _ := recorder.ParseMode(c.Recording.Mode)
	return recorder.Config{
		Mode:     mode,
		Interval: c.Recording.Interval,
		Format:   c.Recording.Format,
	}
}
