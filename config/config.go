// Package config holds runtime settings. Values come from defaults, then
// CADENCE_* environment variables, then command-line flags.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"cadence/schedule"
	"cadence/transcriber"
)

type Config struct {
	SampleRate     int
	BufferSeconds  float64
	FeatureTick    time.Duration
	ClockTick      time.Duration
	SignalTick     time.Duration
	WhisperURL     string
	WhisperModel   string
	Language       string
	APIKey         string
	RequestTimeout time.Duration
	DBPath         string
	SaveData       bool
	MemoryGB       float64
	LogPath        string
	Device         string
	Zoom           string
	TUI            bool
}

func Load() *Config {
	return &Config{
		SampleRate:     getEnvInt("CADENCE_SAMPLE_RATE", 16000),
		BufferSeconds:  getEnvFloat("CADENCE_BUFFER_SECONDS", 12),
		FeatureTick:    getEnvDuration("CADENCE_FEATURE_TICK", 50*time.Millisecond),
		ClockTick:      getEnvDuration("CADENCE_CLOCK_TICK", 500*time.Millisecond),
		SignalTick:     getEnvDuration("CADENCE_SIGNAL_TICK", time.Second),
		WhisperURL:     getEnv("CADENCE_WHISPER_URL", transcriber.DefaultWhisperURL),
		WhisperModel:   getEnv("CADENCE_WHISPER_MODEL", "whisper-1"),
		Language:       getEnv("CADENCE_LANGUAGE", "en"),
		APIKey:         getEnv("CADENCE_WHISPER_API_KEY", ""),
		RequestTimeout: getEnvDuration("CADENCE_REQUEST_TIMEOUT", 30*time.Second),
		DBPath:         getEnv("CADENCE_DB_PATH", ""),
		SaveData:       getEnvBool("CADENCE_SAVE_DATA", false),
		MemoryGB:       getEnvFloat("CADENCE_DEVICE_MEMORY_GB", 0),
		LogPath:        getEnv("CADENCE_LOG_PATH", ""),
		Device:         getEnv("CADENCE_DEVICE", ""),
		Zoom:           getEnv("CADENCE_ZOOM", "full"),
		TUI:            getEnvBool("CADENCE_TUI", true),
	}
}

// BindFlags registers a flag for every field, using the current values as
// defaults so that flags override the environment.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.SampleRate, "rate", c.SampleRate, "Capture sample rate in Hz")
	fs.Float64Var(&c.BufferSeconds, "buffer", c.BufferSeconds, "Ring buffer length in seconds")
	fs.DurationVar(&c.FeatureTick, "feature-tick", c.FeatureTick, "Feature extraction interval")
	fs.DurationVar(&c.ClockTick, "clock-tick", c.ClockTick, "Inference interval")
	fs.DurationVar(&c.SignalTick, "signal-tick", c.SignalTick, "Signal sampling interval")
	fs.StringVar(&c.WhisperURL, "whisper", c.WhisperURL, "Whisper-compatible transcription endpoint")
	fs.StringVar(&c.WhisperModel, "model", c.WhisperModel, "Transcription model name")
	fs.StringVar(&c.Language, "lang", c.Language, "Language code for transcription. Empty = auto-detect")
	fs.DurationVar(&c.RequestTimeout, "timeout", c.RequestTimeout, "Transcription request timeout")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path (default: user config dir)")
	fs.BoolVar(&c.SaveData, "savedata", c.SaveData, "Force the low-power transcription profile")
	fs.Float64Var(&c.MemoryGB, "memory", c.MemoryGB, "Override detected device memory in GB")
	fs.StringVar(&c.LogPath, "logpath", c.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
	fs.StringVar(&c.Device, "device", c.Device, "Use named microphone device")
	fs.StringVar(&c.Zoom, "zoom", c.Zoom, "Timeline zoom: 1m, 5m or full")
	fs.BoolVar(&c.TUI, "tui", c.TUI, "Run with terminal UI")
}

// Whisper returns the adapter settings. The API key never comes from a flag.
func (c *Config) Whisper() transcriber.WhisperConfig {
	return transcriber.WhisperConfig{
		URL:      c.WhisperURL,
		Model:    c.WhisperModel,
		Language: c.Language,
		APIKey:   c.APIKey,
		Timeout:  c.RequestTimeout,
	}
}

// Capabilities is the detected device description with the save-data and
// memory settings applied on top.
func (c *Config) Capabilities() schedule.Capabilities {
	caps := schedule.DetectCapabilities()
	if c.MemoryGB > 0 {
		caps.MemoryGB = c.MemoryGB
	}
	caps.SaveData = caps.SaveData || c.SaveData
	return caps
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
