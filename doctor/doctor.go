// Package doctor runs interactive checks of the hotkey, microphone,
// transcription endpoint, database and clipboard.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cadence/audio"
	"cadence/clipboard"
	"cadence/dsp"
	"cadence/event"
	"cadence/hotkey"
	"cadence/intent"
	"cadence/shutdown"
	"cadence/store"
	"cadence/transcriber"
)

type Options struct {
	Whisper    transcriber.WhisperConfig
	DBPath     string
	Device     string
	SampleRate int
}

type check struct {
	name string
	run  func() bool
}

// Run executes the checks in order and returns an exit code (0=all pass,
// 1=any fail). Later checks still run after a failure.
func Run(opts Options) int {
	saveTerminal()
	defer resetTerminal()
	setupInterruptHandler()

	fmt.Println("cadence doctor - interactive system diagnostics")
	fmt.Println("===============================================")

	w := transcriber.NewWhisper(opts.Whisper)
	var samples []float32

	checks := []check{
		{"Hotkey detection", checkHotkey},
		{"Microphone level", func() bool {
			var ok bool
			samples, ok = checkMic(opts)
			return ok
		}},
		{"Transcription endpoint", func() bool { return checkAdapter(w, samples, opts.SampleRate) }},
		{"Event database", func() bool { return report(checkStore(context.Background(), opts.DBPath)) }},
		{"Clipboard export", checkClipboard},
	}

	allPass := true
	for i, c := range checks {
		fmt.Println()
		fmt.Printf("[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.run() {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func report(msg string, err error) bool {
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		resetTerminal()
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkHotkey() bool {
	msg, err := hotkey.Diagnose()
	if err != nil {
		return report("", err)
	}
	fmt.Printf("  %s\n", msg)
	fmt.Printf("Press %s...\n", hotkey.Label)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMic(opts Options) ([]float32, bool) {
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return nil, false
	}
	defer ctx.Close()

	device, err := audio.FindDevice(ctx, opts.Device)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	name := "system default"
	if device != nil {
		name = device.Name
	}
	fmt.Printf("Using device: %s\n", name)
	if audio.IsBluetooth(name) {
		fmt.Println("  Warning: Bluetooth headsets flatten the level envelope; a wired or built-in mic works better")
	}

	fmt.Print("Press Enter and say \"stop\" a few times over 3 seconds...")
	bufio.NewReader(os.Stdin).ReadString('\n')

	samples, err := record(ctx, device, opts.SampleRate, 3*time.Second)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return nil, false
	}
	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}

	level := dsp.RMS(samples)
	fmt.Printf("  Captured %.1fs, level %.4f\n", float64(len(samples))/float64(opts.SampleRate), level)
	if dsp.IsSilence(level, dsp.SilenceThreshold) {
		fmt.Println("  FAIL: level is below the silence threshold; check the input gain")
		return samples, false
	}
	fmt.Println("  PASS: microphone level above silence threshold")
	return samples, true
}

func record(ctx audio.Context, device *audio.DeviceInfo, sampleRate int, d time.Duration) ([]float32, error) {
	dev, err := ctx.NewCapture(device, audio.CaptureConfig{SampleRate: uint32(sampleRate), Channels: 1})
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	var mu sync.Mutex
	var buf []float32
	dev.SetCallback(func(s []float32) {
		mu.Lock()
		buf = append(buf, s...)
		mu.Unlock()
	})
	if err := dev.Start(); err != nil {
		return nil, err
	}

	fmt.Print("  Recording")
	deadline := time.After(d)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-deadline:
			break wait
		case <-ticker.C:
			fmt.Print(".")
		}
	}
	dev.ClearCallback()
	dev.Stop()
	fmt.Println(" done")

	mu.Lock()
	defer mu.Unlock()
	return buf, nil
}

// checkAdapter warms the connection and, when a recording is available,
// classifies it. Only the detected intents are shown.
func checkAdapter(w *transcriber.Whisper, samples []float32, sampleRate int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Endpoint: %s\n", w.URL())
	rtt, err := w.Warm(ctx)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Start a whisper.cpp server or set CADENCE_WHISPER_URL")
		return false
	}
	fmt.Printf("  Connected in %dms\n", rtt.Milliseconds())

	if len(samples) == 0 {
		fmt.Println("  PASS: endpoint reachable (no recording to transcribe)")
		return true
	}

	matches, chars, err := classify(ctx, w, samples, sampleRate)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	if m := w.LastMetrics(); m != nil {
		fmt.Printf("  Request %dms (ttfb %dms, conn %s)\n", m.Total.Milliseconds(), m.TTFB.Milliseconds(), connLabel(m.ConnReused))
	}
	fmt.Printf("  Transcribed %d characters, intents: %s\n", chars, intentList(matches))
	fmt.Println("  PASS: transcription round trip")
	return true
}

func classify(ctx context.Context, a transcriber.Adapter, samples []float32, sampleRate int) ([]intent.Match, int, error) {
	text, err := a.Transcribe(ctx, samples, sampleRate)
	if err != nil {
		return nil, 0, err
	}
	return intent.Classify(text), len(text), nil
}

func connLabel(reused bool) string {
	if reused {
		return "reused"
	}
	return "new"
}

func intentList(matches []intent.Match) string {
	if len(matches) == 0 {
		return "none"
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("%s (%.2f)", m.Type, m.Confidence)
	}
	return strings.Join(parts, ", ")
}

// checkStore writes a probe session to the database at path, reads it
// back and deletes it again.
func checkStore(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = store.DefaultPath()
	}
	s, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	id := "doctor-" + uuid.NewString()
	if err := s.UpsertSession(ctx, store.Session{ID: id, CreatedAt: time.Now(), Status: event.StatusEnded}); err != nil {
		return "", err
	}
	defer s.DeleteSession(ctx, id)

	if err := s.AppendEvent(event.New(id, 0, event.SessionStart, event.SourceUser, 1)); err != nil {
		return "", err
	}
	events, err := s.Events(ctx, id)
	if err != nil {
		return "", err
	}
	if len(events) != 1 {
		return "", fmt.Errorf("probe event not read back (got %d)", len(events))
	}
	if err := s.DeleteSession(ctx, id); err != nil {
		return "", err
	}
	return fmt.Sprintf("read/write/delete ok at %s", path), nil
}

func checkClipboard() bool {
	if !clipboard.Available() {
		fmt.Println("  FAIL: no clipboard backend (install xclip, xsel or wl-clipboard)")
		return false
	}
	prev, _ := clipboard.Read()
	const probe = "cadence-doctor-test"
	if err := clipboard.Copy(probe); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	clipboard.Copy(prev)
	if err != nil || got != probe {
		fmt.Printf("  FAIL: clipboard read back %q (err %v)\n", got, err)
		return false
	}
	fmt.Println("  PASS: clipboard copy verified")
	return true
}
