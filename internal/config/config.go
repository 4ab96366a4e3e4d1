package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "300ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Hotkeys  HotkeyConfig   `yaml:"hotkeys"`
	Audio    AudioConfig    `yaml:"audio"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Model    ModelConfig    `yaml:"model"`
	Feed     FeedConfig     `yaml:"feed"`
	IPC      IPCConfig      `yaml:"ipc"`
	Log      LogConfig      `yaml:"log"`
}

// HotkeyConfig names the two recording keys. Both are single characters
// and are combined with the Option/Alt modifier by the listener.
type HotkeyConfig struct {
	PushToTalk string `yaml:"push_to_talk"`
	Toggle     string `yaml:"toggle"`
}

type AudioConfig struct {
	SampleRate   int        `yaml:"sample_rate"`
	MinRecording Duration   `yaml:"min_recording"`
	MaxRecording Duration   `yaml:"max_recording"`
	DumpDir      string     `yaml:"dump_dir"`
	Duck         DuckConfig `yaml:"duck"`
}

// DuckConfig controls fading other audio output down while recording.
type DuckConfig struct {
	Enabled bool     `yaml:"enabled"`
	Volume  int      `yaml:"volume"`
	Fade    Duration `yaml:"fade"`
}

// FeedbackConfig controls the transition tones. Volume is a pointer so
// an explicit 0 (beeps disabled) can be told apart from an absent field.
type FeedbackConfig struct {
	Volume   *float64 `yaml:"volume"`
	Duration Duration `yaml:"duration"`
}

// Level returns the configured volume in [0, 1].
func (f FeedbackConfig) Level() float64 {
	if f.Volume == nil {
		return 0
	}
	return *f.Volume
}

type ModelConfig struct {
	Path      string `yaml:"path"`
	URL       string `yaml:"url"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
	Translate bool   `yaml:"translate"`
}

type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type IPCConfig struct {
	Socket string `yaml:"socket"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads the config file, expands ${VAR} references and applies
// defaults. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Hotkeys.PushToTalk == "" {
		c.Hotkeys.PushToTalk = "r"
	}
	if c.Hotkeys.Toggle == "" {
		c.Hotkeys.Toggle = "t"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.MinRecording == 0 {
		c.Audio.MinRecording = Duration(300 * time.Millisecond)
	}
	if c.Audio.MaxRecording == 0 {
		c.Audio.MaxRecording = Duration(2 * time.Minute)
	}
	if c.Audio.Duck.Volume == 0 {
		c.Audio.Duck.Volume = 20
	}
	if c.Audio.Duck.Fade == 0 {
		c.Audio.Duck.Fade = Duration(150 * time.Millisecond)
	}
	if c.Feedback.Volume == nil {
		v := 0.3
		c.Feedback.Volume = &v
	}
	if c.Feedback.Duration == 0 {
		c.Feedback.Duration = Duration(100 * time.Millisecond)
	}
	if c.Model.URL == "" {
		c.Model.URL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin"
	}
	if c.Model.Language == "" {
		c.Model.Language = "en"
	}
	if c.Feed.Addr == "" {
		c.Feed.Addr = "127.0.0.1:8093"
	}
	if c.IPC.Socket == "" {
		c.IPC.Socket = "/tmp/speak.sock"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if err := validateKey("hotkeys.push_to_talk", c.Hotkeys.PushToTalk); err != nil {
		return err
	}
	if err := validateKey("hotkeys.toggle", c.Hotkeys.Toggle); err != nil {
		return err
	}
	if c.Hotkeys.PushToTalk == c.Hotkeys.Toggle {
		return fmt.Errorf("hotkeys: push_to_talk and toggle must differ")
	}
	if c.Audio.SampleRate != 16000 {
		return fmt.Errorf("audio.sample_rate: whisper requires 16000, got %d", c.Audio.SampleRate)
	}
	if *c.Feedback.Volume < 0 {
		*c.Feedback.Volume = 0
	}
	if *c.Feedback.Volume > 1 {
		*c.Feedback.Volume = 1
	}
	if c.Audio.Duck.Volume < 0 {
		c.Audio.Duck.Volume = 0
	}
	if c.Audio.Duck.Volume > 100 {
		c.Audio.Duck.Volume = 100
	}
	return nil
}

func validateKey(field, key string) error {
	if len(key) != 1 {
		return fmt.Errorf("%s: want a single character, got %q", field, key)
	}
	ch := key[0]
	if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') {
		return fmt.Errorf("%s: %q is not a lowercase letter or digit", field, key)
	}
	return nil
}
