// Package pipeline runs the per-session tick loop: capture samples land in
// the ring buffer, features are extracted on the feature tick, inference
// and transcription scheduling run on the clock tick, and signals are
// sampled on the signal tick.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cadence/audio"
	"cadence/dsp"
	"cadence/event"
	"cadence/inference"
	"cadence/intent"
	"cadence/log"
	"cadence/ringbuf"
	"cadence/schedule"
	"cadence/timeline"
	"cadence/transcriber"
)

// rmsWindow is the number of trailing samples each level reading covers.
const rmsWindow = 2048

type StatusSource interface {
	Status() event.Status
}

// Clock is the session clock. Elapsed must stand still while paused.
type Clock interface {
	StatusSource
	Elapsed() time.Duration
}

type Config struct {
	SessionID     string
	SampleRate    int
	BufferSeconds float64
	FeatureTick   time.Duration
	ClockTick     time.Duration
	SignalTick    time.Duration
	Profile       schedule.Profile

	// Visible reports whether the user is looking at the session. It
	// only matters for low-power profiles; nil means always visible.
	Visible func() bool
}

func (c *Config) defaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FeatureTick <= 0 {
		c.FeatureTick = 50 * time.Millisecond
	}
	if c.ClockTick <= 0 {
		c.ClockTick = 500 * time.Millisecond
	}
	if c.SignalTick <= 0 {
		c.SignalTick = time.Second
	}
	if c.Profile.Window <= 0 {
		c.Profile = schedule.DefaultProfile
	}
	if w := c.Profile.Window.Seconds(); c.BufferSeconds < w {
		c.BufferSeconds = w
	}
}

// Snapshot is the live state shown by the terminal UI.
type Snapshot struct {
	Status     event.Status
	Elapsed    time.Duration
	Features   dsp.SignalState
	Phase      inference.PhaseState
	Events     int
	InFlight   bool
	Profile    string
	Adapter    string
	AdapterErr string
}

type result struct {
	gen     uint64
	text    string
	err     error
	window  time.Duration
	latency time.Duration
}

// Engine owns every piece of per-session state. Ticks serialize on mu; the
// capture callback only touches the ring buffer under bufMu.
type Engine struct {
	cfg        Config
	clock      Clock
	adapter    transcriber.Adapter
	classifier *intent.Classifier
	history    *event.Log
	sinks      event.Tee

	bufMu sync.Mutex
	buf   *ringbuf.Buffer

	mu         sync.Mutex
	capture    audio.CaptureDevice
	extractor  *dsp.Extractor
	sched      *schedule.Scheduler
	machines   *inference.Set
	features   dsp.SignalState
	lastStatus event.Status
	rhythmOn   bool

	gen     atomic.Uint64
	results chan result
}

// New builds an engine. Every emitted event and signal goes to the
// in-memory history first and then to each extra sink.
func New(cfg Config, clock Clock, adapter transcriber.Adapter, sinks ...event.Sink) *Engine {
	cfg.defaults()
	history := event.NewLog()
	return &Engine{
		cfg:        cfg,
		clock:      clock,
		adapter:    adapter,
		classifier: intent.Default,
		history:    history,
		sinks:      append(event.Tee{history}, sinks...),
		buf:        ringbuf.New(cfg.BufferSeconds, cfg.SampleRate),
		extractor:  dsp.NewExtractor(),
		sched:      schedule.New(cfg.Profile),
		machines:   inference.NewSet(),
		lastStatus: event.StatusIdle,
		results:    make(chan result, 1),
	}
}

func (e *Engine) SessionID() string   { return e.cfg.SessionID }
func (e *Engine) History() *event.Log { return e.history }

// Attach routes a capture device into the ring buffer and starts it.
func (e *Engine) Attach(dev audio.CaptureDevice) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture != nil {
		e.capture.ClearCallback()
		e.capture.Stop()
	}
	e.capture = dev
	dev.SetCallback(e.Write)
	return dev.Start()
}

// Write appends captured samples. It is safe to call from the capture
// thread.
func (e *Engine) Write(samples []float32) {
	e.bufMu.Lock()
	e.buf.Write(samples)
	e.bufMu.Unlock()
}

func (e *Engine) latest(n int) []float32 {
	e.bufMu.Lock()
	defer e.bufMu.Unlock()
	return e.buf.Latest(n)
}

// Stop detaches capture and drops the signal-derived state. A transcription
// still in flight is discarded when it returns. The event history and the
// inference progress are kept, so a later Attach continues the session
// without replaying consumed requests or re-entering a phase.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capture != nil {
		e.capture.ClearCallback()
		e.capture.Stop()
		e.capture = nil
	}
	e.bufMu.Lock()
	e.buf.Clear()
	e.bufMu.Unlock()

	e.gen.Add(1)
	e.extractor.Reset()
	e.sched.Reset()
	e.machines.Interrupt(e.history.Len())
	e.features = dsp.SignalState{}
	e.rhythmOn = false
}

// Finish runs one last clock and signal tick, so that an ended session
// gets its SESSION_END and closing phase events, and then stops.
func (e *Engine) Finish(ctx context.Context) {
	e.clockTick(ctx)
	e.signalTick()
	e.Stop()
}

// Run drives the three tickers until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	featureTicker := time.NewTicker(e.cfg.FeatureTick)
	defer featureTicker.Stop()
	clockTicker := time.NewTicker(e.cfg.ClockTick)
	defer clockTicker.Stop()
	signalTicker := time.NewTicker(e.cfg.SignalTick)
	defer signalTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-featureTicker.C:
			e.featureTick()
		case <-clockTicker.C:
			e.clockTick(ctx)
		case <-signalTicker.C:
			e.signalTick()
		case r := <-e.results:
			e.handleResult(r)
		}
	}
}

func (e *Engine) featureTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Elapsed()
	active := e.clock.Status() == event.StatusActive
	e.features = e.extractor.Update(dsp.RMS(e.latest(rmsWindow)), now, active)

	if on := e.features.Rhythm.Active; on != e.rhythmOn {
		e.rhythmOn = on
		typ := event.RhythmStop
		if on {
			typ = event.RhythmStart
		}
		e.emit(event.New(e.cfg.SessionID, now.Seconds(), typ, event.SourceAudio, e.features.Rhythm.Strength), nil)
	}
}

// clockTick emits status edges, runs inference and, when the scheduler
// allows, starts a transcription pass. It reports whether a pass started.
func (e *Engine) clockTick(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Elapsed()
	status := e.clock.Status()
	e.statusEdge(status, now)

	outs := e.machines.Update(inference.Input{
		Status:   status,
		Features: e.features,
		Events:   e.history.Events(),
		Now:      now,
	})
	for _, o := range outs {
		e.emit(event.New(e.cfg.SessionID, now.Seconds(), o.Type, event.SourceInference, o.Confidence), o.Payload)
	}

	// the adapter may still be busy with a pass discarded by Stop
	if status != event.StatusActive || e.adapter == nil || !e.adapter.Ready() {
		return false
	}
	run := e.sched.Decide(schedule.Tick{
		Now:           now,
		RMS:           e.features.RMS,
		SilenceActive: e.features.SilenceActive,
		Visible:       e.visible(),
	})
	if !run {
		return false
	}
	e.transcribe(ctx)
	return true
}

func (e *Engine) visible() bool {
	return e.cfg.Visible == nil || e.cfg.Visible()
}

func (e *Engine) statusEdge(status event.Status, now time.Duration) {
	prev := e.lastStatus
	if status == prev {
		return
	}
	e.lastStatus = status

	var typ event.Type
	switch {
	case status == event.StatusActive && prev == event.StatusIdle:
		typ = event.SessionStart
	case status == event.StatusActive && prev == event.StatusPaused:
		typ = event.SessionResume
	case status == event.StatusPaused:
		typ = event.SessionPause
	case status == event.StatusEnded:
		typ = event.SessionEnd
	default:
		return
	}
	e.emit(event.New(e.cfg.SessionID, now.Seconds(), typ, event.SourceUser, 1), nil)
}

func (e *Engine) transcribe(ctx context.Context) {
	samples := e.latest(int(e.sched.Profile().Window.Seconds() * float64(e.cfg.SampleRate)))
	gen := e.gen.Load()
	rate := e.cfg.SampleRate
	window := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))

	go func() {
		start := time.Now()
		text, err := e.adapter.Transcribe(ctx, samples, rate)
		r := result{gen: gen, text: text, err: err, window: window, latency: time.Since(start)}
		select {
		case e.results <- r:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) handleResult(r result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := log.TranscriptionMetrics{
		Adapter:   e.adapter.Name(),
		WindowS:   r.window.Seconds(),
		LatencyMs: float64(r.latency.Milliseconds()),
		Chars:     len(r.text),
	}
	if tm, ok := e.adapter.(interface {
		LastMetrics() *transcriber.NetworkMetrics
	}); ok {
		if nm := tm.LastMetrics(); nm != nil {
			m.TTFBMs = float64(nm.TTFB.Milliseconds())
			m.ConnReused = nm.ConnReused
		}
	}

	if r.gen != e.gen.Load() {
		m.Stale = true
		log.Transcription(m)
		return
	}
	if r.err != nil {
		e.sched.Fail(r.err)
		log.Warnf("transcription failed: %v", r.err)
		return
	}

	now := e.clock.Elapsed()
	kept := e.sched.Complete(now, e.classifier.Classify(r.text))
	m.Intents = len(kept)
	log.Transcription(m)

	for _, k := range kept {
		e.emit(event.New(e.cfg.SessionID, now.Seconds(), k.Type, event.SourceSpeech, k.Confidence), nil)
	}
}

func (e *Engine) signalTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.clock.Status() != event.StatusActive {
		return
	}
	t := e.clock.Elapsed().Seconds()
	silence := 0.0
	if e.features.SilenceActive {
		silence = 1
	}
	for _, s := range []event.Signal{
		{SessionID: e.cfg.SessionID, T: t, Type: event.SignalIntensity, Value: e.features.RMS},
		{SessionID: e.cfg.SessionID, T: t, Type: event.SignalRhythm, Value: e.features.Rhythm.Strength},
		{SessionID: e.cfg.SessionID, T: t, Type: event.SignalSilence, Value: silence},
	} {
		if err := e.sinks.AppendSignal(s); err != nil {
			log.Warnf("append signal: %v", err)
		}
	}
}

func (e *Engine) emit(ev event.Event, payload map[string]any) {
	ev.Payload = payload
	if err := e.sinks.AppendEvent(ev); err != nil {
		log.Warnf("append event %s: %v", ev.Type, err)
	}
	log.Event(string(ev.Type), string(ev.Source), ev.T, ev.Confidence)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Status:     e.clock.Status(),
		Elapsed:    e.clock.Elapsed(),
		Features:   e.features,
		Phase:      e.machines.Phase.State(),
		Events:     e.history.Len(),
		InFlight:   e.sched.InFlight(),
		Profile:    e.sched.Profile().Name,
		AdapterErr: e.sched.LastError(),
	}
	if e.adapter != nil {
		s.Adapter = e.adapter.Name()
	}
	return s
}

// Timeline builds the timeline of everything recorded so far.
func (e *Engine) Timeline(zoom timeline.Zoom) timeline.Result {
	return timeline.Build(e.history.Events(), e.history.Signals(), zoom)
}
