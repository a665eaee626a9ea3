// Package log writes the diagnostics log. It records timings, counts and
// event types only; audio and transcript text are never written.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	FileName = "diagnostics_log.txt"
	appName  = "cadence"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	dir      string
)

// ResolveDir picks the log directory: the -logpath flag, then
// CADENCE_LOG_PATH, then the OS default. Relative paths are resolved
// against the working directory.
func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("CADENCE_LOG_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	diagFile = f

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", os.Getpid()).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(sessionID, adapter, profile string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Str("adapter", adapter).
		Str("profile", profile).
		Msg("session_start")
}

func SessionEnd(sessionID string, events int, elapsed time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", sessionID).
		Int("events", events).
		Float64("elapsed_s", elapsed.Seconds()).
		Msg("session_end")
}

// Event records an emitted event by type and source. Payloads are not
// logged.
func Event(typ, source string, t, confidence float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("type", typ).
		Str("source", source).
		Float64("t", t).
		Float64("confidence", confidence).
		Msg("event")
}

type TranscriptionMetrics struct {
	Adapter    string
	WindowS    float64
	LatencyMs  float64
	TTFBMs     float64
	ConnReused bool
	Chars      int
	Intents    int
	Stale      bool
}

// Transcription records one transcription pass. Chars is the length of the
// returned text, which is otherwise discarded.
func Transcription(m TranscriptionMetrics) {
	if !logReady {
		return
	}
	conn := "new"
	if m.ConnReused {
		conn = "reused"
	}
	diagLog.Info().
		Str("adapter", m.Adapter).
		Str("conn", conn).
		Float64("window_s", m.WindowS).
		Float64("latency_ms", m.LatencyMs).
		Float64("ttfb_ms", m.TTFBMs).
		Int("chars", m.Chars).
		Int("intents", m.Intents).
		Bool("stale", m.Stale).
		Msg("transcription")
}

func Profile(name string, window, step time.Duration, lowPower bool, cores int, memoryGB float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("profile", name).
		Dur("window", window).
		Dur("step", step).
		Bool("low_power", lowPower).
		Int("cores", cores).
		Float64("memory_gb", memoryGB).
		Msg("profile")
}
