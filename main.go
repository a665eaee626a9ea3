package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"cadence/audio"
	"cadence/clipboard"
	"cadence/config"
	"cadence/cue"
	"cadence/doctor"
	"cadence/event"
	"cadence/hotkey"
	"cadence/log"
	"cadence/pipeline"
	"cadence/schedule"
	"cadence/session"
	"cadence/shutdown"
	"cadence/store"
	"cadence/timeline"
	"cadence/transcriber"
)

var version = "dev"

var crashFile *os.File

// initCrashLog sends runtime crash output to crash_log.txt next to the
// diagnostics log, so panics inside cgo audio callbacks are not lost.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
	crashFile = f
}

func run() {
	cfg := config.Load()
	cfg.BindFlags(flag.CommandLine)
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	replayFlag := flag.String("replay", "", "Run a session headless from a WAV file instead of the microphone")
	offlineFlag := flag.Bool("offline", false, "Skip transcription (replay and live)")
	exportFlag := flag.String("export", "", "Write a stored session as JSON to stdout and exit")
	deleteFlag := flag.String("delete", "", "Delete a stored session and exit")
	timelineFlag := flag.String("timeline", "", "Print the timeline of a stored session (\"latest\" for the newest) and exit")
	copyFlag := flag.Bool("copy", false, "Copy the timeline summary to the clipboard when the session ends")
	longPressFlag := flag.Duration("longpress", 800*time.Millisecond, "Hold the hotkey this long to end the session")
	quietFlag := flag.Bool("quiet", false, "Disable audible cues on start, pause, resume and end")
	flag.Parse()

	if *quietFlag {
		cue.Disable()
	}

	if *versionFlag {
		fmt.Printf("cadence %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Options{
			Whisper:    cfg.Whisper(),
			DBPath:     cfg.DBPath,
			Device:     cfg.Device,
			SampleRate: cfg.SampleRate,
		}))
	}

	zoom, err := timeline.ParseZoom(cfg.Zoom)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = store.DefaultPath()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		log.Errorf("store open error: %v", err)
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	switch {
	case *exportFlag != "":
		os.Exit(exitCode(st.ExportJSON(context.Background(), *exportFlag, os.Stdout)))
	case *deleteFlag != "":
		os.Exit(exitCode(st.DeleteSession(context.Background(), *deleteFlag)))
	case *timelineFlag != "":
		os.Exit(exitCode(printStored(st, *timelineFlag, zoom)))
	}

	caps := cfg.Capabilities()
	profile := schedule.SelectProfile(caps)
	log.Profile(profile.Name, profile.Window, profile.Step, profile.LowPower, caps.Cores, caps.MemoryGB)

	var adapter transcriber.Adapter
	if !*offlineFlag {
		w := transcriber.NewWhisper(cfg.Whisper())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := w.Warm(ctx); err != nil {
				log.Warnf("warm: %v", err)
			}
		}()
		adapter = w
	}

	if *replayFlag != "" {
		os.Exit(exitCode(runReplay(replayOptions{
			Path:    *replayFlag,
			Profile: profile,
			Adapter: adapter,
			Store:   st,
			Zoom:    zoom,
			Out:     os.Stdout,
		})))
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	if *setupFlag && cfg.Device == "" {
		device, err = audio.SelectDevice(actx)
	} else {
		device, err = audio.FindDevice(actx, cfg.Device)
	}
	if err != nil {
		log.Warnf("device selection failed: %v", err)
		fmt.Printf("Warning: %v, falling back to default device\n", err)
		device = nil
	}

	capture, err := actx.NewCapture(device, audio.CaptureConfig{SampleRate: uint32(cfg.SampleRate), Channels: 1})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	log.Info("recording_device: " + capture.DeviceName())

	var out display
	if !cfg.TUI {
		out.plain = os.Stdout
	}

	sessionID := uuid.NewString()
	clock := session.NewClock()
	engine := pipeline.New(pipeline.Config{
		SessionID:     sessionID,
		SampleRate:    cfg.SampleRate,
		BufferSeconds: cfg.BufferSeconds,
		FeatureTick:   cfg.FeatureTick,
		ClockTick:     cfg.ClockTick,
		SignalTick:    cfg.SignalTick,
		Profile:       profile,
	}, clock, adapter, st, out)

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	if err := engine.Attach(capture); err != nil {
		log.Errorf("capture start error: %v", err)
		fmt.Printf("Error starting capture: %v\n", err)
		os.Exit(1)
	}
	saveSession(st, sessionID, clock)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.Run(ctx)
	}()

	actions := make(chan hotkey.Action, 1)
	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Warnf("hotkey register error: %v", err)
		fmt.Printf("Warning: global hotkey unavailable (%v); use the terminal keys\n", err)
	} else {
		defer hk.Unregister()
		ctl := hotkey.NewControl(hk, *longPressFlag)
		defer ctl.Close()
		go func() {
			for a := range ctl.Actions() {
				actions <- a
			}
		}()
	}

	deviceName := capture.DeviceName()
	if cfg.TUI {
		startTUI(tuiConfig{
			Engine:  engine,
			Zoom:    zoom,
			Device:  deviceName,
			BT:      audio.IsBluetooth(deviceName),
			Actions: actions,
			Quit:    cancel,
		})
	} else {
		fmt.Printf("cadence %s: session %s on %s. %s taps pause/resume, hold ends.\n", version, sessionID, deviceName, hotkey.Label)
	}

	clock.Start()
	cue.Play(cue.Start)
	log.SessionStart(sessionID, adapterName(adapter), profile.Name)
	saveSession(st, sessionID, clock)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case a := <-actions:
			log.Info("hotkey_" + a.String())
			prev := clock.Status()
			ended := apply(clock, a)
			if k, ok := cue.ForStatus(prev, clock.Status()); ok {
				cue.Play(k)
			}
			if ended {
				cancel()
				break loop
			}
			saveSession(st, sessionID, clock)
		}
	}

	wg.Wait()
	clock.End()
	engine.Finish(context.Background())
	saveSession(st, sessionID, clock)
	stopTUI()

	result := engine.Timeline(zoom)
	log.SessionEnd(sessionID, engine.History().Len(), clock.Elapsed())
	fmt.Print(timeline.Summary(result))
	if *copyFlag {
		if err := clipboard.CopyTimeline(sessionID, result); err != nil {
			log.Warnf("clipboard copy: %v", err)
		}
	}
}

// apply maps a control action onto the clock. It reports whether the
// session has ended.
func apply(clock *session.Clock, a hotkey.Action) bool {
	switch a {
	case hotkey.ActionEnd:
		clock.End()
		return true
	default:
		if clock.Status() == event.StatusIdle {
			clock.Start()
		} else {
			clock.Toggle()
		}
		return clock.Status() == event.StatusEnded
	}
}

func saveSession(st *store.Store, id string, clock *session.Clock) {
	sess := store.Session{
		ID:          id,
		CreatedAt:   clock.StartedAt(),
		Status:      clock.Status(),
		TotalPaused: clock.TotalPaused(),
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	if sess.Status == event.StatusEnded {
		now := time.Now()
		sess.EndedAt = &now
	}
	if err := st.UpsertSession(context.Background(), sess); err != nil {
		log.Warnf("save session: %v", err)
	}
}

func printStored(st *store.Store, id string, zoom timeline.Zoom) error {
	ctx := context.Background()
	if id == "latest" {
		sess, err := st.LatestSession(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			return fmt.Errorf("no stored sessions")
		}
		id = sess.ID
	}
	events, err := st.Events(ctx, id)
	if err != nil {
		return err
	}
	signals, err := st.Signals(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("session %s\n", id)
	fmt.Print(timeline.Summary(timeline.Build(events, signals, zoom)))
	return nil
}

func adapterName(a transcriber.Adapter) string {
	if a == nil {
		return "none"
	}
	return a.Name()
}

func exitCode(err error) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
