package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"cadence/audio"
	"cadence/event"
	"cadence/inference"
	"cadence/timeline"
	"cadence/transcriber"
)

const rate = 16000

type testClock struct {
	status  event.Status
	elapsed time.Duration
}

func (c *testClock) Status() event.Status    { return c.status }
func (c *testClock) Elapsed() time.Duration  { return c.elapsed }
func (c *testClock) advance(d time.Duration) { c.elapsed += d }

func newEngine(adapter transcriber.Adapter) (*Engine, *testClock) {
	clk := &testClock{status: event.StatusIdle}
	e := New(Config{SessionID: "s1", SampleRate: rate}, clk, adapter)
	return e, clk
}

func types(events []event.Event) []event.Type {
	var out []event.Type
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func loud(d time.Duration) []float32 {
	return audio.Synthesize(rate, 7, audio.SynthSegment{Kind: audio.SynthNoise, Duration: d, Level: 0.3})
}

func TestStatusEdgesEmitSessionEvents(t *testing.T) {
	e, clk := newEngine(nil)
	ctx := context.Background()

	e.clockTick(ctx)
	if e.History().Len() != 0 {
		t.Fatalf("idle tick emitted %v", types(e.History().Events()))
	}

	for _, st := range []event.Status{event.StatusActive, event.StatusActive, event.StatusPaused, event.StatusActive, event.StatusEnded, event.StatusEnded} {
		clk.status = st
		clk.advance(500 * time.Millisecond)
		e.clockTick(ctx)
	}

	want := []event.Type{
		event.SessionStart, event.PhaseStartForeplay,
		event.SessionPause, event.SessionResume,
		event.SessionEnd, event.PhaseStartCooldown,
	}
	got := e.History().Events()
	if !slices.Equal(types(got), want) {
		t.Fatalf("got %v, want %v", types(got), want)
	}
	if got[0].Source != event.SourceUser || got[1].Source != event.SourceInference {
		t.Errorf("sources = %s, %s", got[0].Source, got[1].Source)
	}
	if got[0].T != 0.5 {
		t.Errorf("session start at %v, want 0.5", got[0].T)
	}
	if e.Snapshot().Phase != inference.PhaseCooldown {
		t.Errorf("phase = %s", e.Snapshot().Phase)
	}
}

func TestSpeechIntentsBecomeEvents(t *testing.T) {
	fake := transcriber.NewFake("please stop", "change position now")
	e, clk := newEngine(fake)
	ctx := context.Background()
	clk.status = event.StatusActive

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	if !e.clockTick(ctx) {
		t.Fatal("expected a transcription pass once a step has elapsed")
	}
	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	if !e.clockTick(ctx) {
		t.Fatal("expected a second pass")
	}
	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}

	clk.advance(500 * time.Millisecond)
	if e.clockTick(ctx) {
		t.Fatal("pass started before the step elapsed")
	}

	var speech []event.Event
	var changes []event.Event
	for _, ev := range e.History().Events() {
		switch {
		case ev.Source == event.SourceSpeech:
			speech = append(speech, ev)
		case ev.Type == event.PositionChange:
			changes = append(changes, ev)
		}
	}
	if got := types(speech); !slices.Equal(got, []event.Type{event.Stop, event.PositionChangeRequest}) {
		t.Fatalf("speech events = %v", got)
	}
	if speech[0].T != 3 || speech[0].Confidence <= 0 {
		t.Errorf("stop event = %+v", speech[0])
	}
	if len(changes) != 1 || changes[0].Payload["trigger"] != "speech" {
		t.Fatalf("position changes = %+v", changes)
	}
	if fake.Calls() != 2 {
		t.Errorf("calls = %d", fake.Calls())
	}
}

func TestStaleResultIsDiscarded(t *testing.T) {
	fake := transcriber.NewFake("stop")
	fake.Delay = 20 * time.Millisecond
	e, clk := newEngine(fake)
	ctx := context.Background()
	clk.status = event.StatusActive

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	if !e.clockTick(ctx) {
		t.Fatal("expected a pass")
	}
	e.Stop()
	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}

	for _, ev := range e.History().Events() {
		if ev.Source == event.SourceSpeech {
			t.Fatalf("stale result produced %s", ev.Type)
		}
	}
	if e.Snapshot().InFlight {
		t.Error("scheduler still in flight after stop")
	}
	if n := len(e.latest(rate)); n != 0 {
		t.Errorf("ring buffer holds %d samples after stop", n)
	}
}

func count(events []event.Event, typ event.Type) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func TestStopKeepsInferenceProgress(t *testing.T) {
	e, clk := newEngine(nil)
	ctx := context.Background()
	clk.status = event.StatusActive

	e.clockTick(ctx)
	e.emit(event.New("s1", clk.elapsed.Seconds(), event.PositionChangeRequest, event.SourceSpeech, 0.9), nil)
	clk.advance(500 * time.Millisecond)
	e.clockTick(ctx)

	e.Stop()
	clk.advance(500 * time.Millisecond)
	e.clockTick(ctx)

	got := e.History().Events()
	if n := count(got, event.PositionChange); n != 1 {
		t.Fatalf("POSITION_CHANGE x%d after stop: %v", n, types(got))
	}
	if n := count(got, event.PhaseStartForeplay); n != 1 {
		t.Fatalf("PHASE_START_FOREPLAY x%d after stop: %v", n, types(got))
	}
	if e.Snapshot().Phase != inference.PhaseForeplay {
		t.Errorf("phase = %s", e.Snapshot().Phase)
	}

	e.emit(event.New("s1", clk.elapsed.Seconds(), event.PositionChangeRequest, event.SourceSpeech, 0.8), nil)
	clk.advance(500 * time.Millisecond)
	e.clockTick(ctx)
	if n := count(e.History().Events(), event.PositionChange); n != 2 {
		t.Fatalf("request after restart produced %d changes in total", n)
	}
}

func TestBusyAdapterBlocksNextPass(t *testing.T) {
	fake := transcriber.NewFake("", "")
	fake.Delay = 300 * time.Millisecond
	e, clk := newEngine(fake)
	ctx := context.Background()
	clk.status = event.StatusActive

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	if !e.clockTick(ctx) {
		t.Fatal("expected a pass")
	}
	e.Stop()

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	if e.clockTick(ctx) {
		t.Fatal("second pass started while the adapter was busy")
	}

	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}
	clk.advance(500 * time.Millisecond)
	if !e.clockTick(ctx) {
		t.Fatal("expected a pass once the adapter is ready")
	}
	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}
	if snap := e.Snapshot(); snap.AdapterErr != "" {
		t.Errorf("adapter error = %q", snap.AdapterErr)
	}
	if fake.Calls() != 2 {
		t.Errorf("calls = %d", fake.Calls())
	}
}

func TestAdapterErrorSurfacesWithoutEvents(t *testing.T) {
	fake := transcriber.NewFake("stop")
	fake.Err = errors.New("connection refused")
	e, clk := newEngine(fake)
	ctx := context.Background()
	clk.status = event.StatusActive

	e.Write(loud(3 * time.Second))
	clk.advance(3 * time.Second)
	e.featureTick()
	e.clockTick(ctx)
	if err := e.await(ctx); err != nil {
		t.Fatal(err)
	}

	snap := e.Snapshot()
	if !strings.Contains(snap.AdapterErr, "connection refused") {
		t.Errorf("adapter error = %q", snap.AdapterErr)
	}
	if snap.InFlight {
		t.Error("failed pass left scheduler in flight")
	}
	for _, ev := range e.History().Events() {
		if ev.Source == event.SourceSpeech {
			t.Fatalf("failed pass produced %s", ev.Type)
		}
	}
}

func TestQuietWindowSkipsTranscription(t *testing.T) {
	fake := transcriber.NewFake("stop")
	e, clk := newEngine(fake)
	clk.status = event.StatusActive

	e.Write(make([]float32, 3*rate))
	clk.advance(3 * time.Second)
	e.featureTick()
	if e.clockTick(context.Background()) {
		t.Fatal("silent window should not be transcribed")
	}
	if fake.Calls() != 0 {
		t.Errorf("calls = %d", fake.Calls())
	}
}

func TestSignalTickOnlyWhileActive(t *testing.T) {
	e, clk := newEngine(nil)

	clk.status = event.StatusPaused
	e.signalTick()
	if n := len(e.History().Signals()); n != 0 {
		t.Fatalf("paused tick wrote %d signals", n)
	}

	clk.status = event.StatusActive
	clk.advance(2 * time.Second)
	e.Write(loud(200 * time.Millisecond))
	e.featureTick()
	e.signalTick()

	sigs := e.History().Signals()
	var got []event.SignalType
	for _, s := range sigs {
		got = append(got, s.Type)
		if s.T != 2 || s.SessionID != "s1" {
			t.Errorf("signal %+v", s)
		}
	}
	want := []event.SignalType{event.SignalIntensity, event.SignalRhythm, event.SignalSilence}
	if !slices.Equal(got, want) {
		t.Fatalf("signal types = %v", got)
	}
	if sigs[0].Value <= 0.01 {
		t.Errorf("intensity = %v", sigs[0].Value)
	}
}

type failingSink struct{ events int }

func (f *failingSink) AppendEvent(event.Event) error {
	f.events++
	return errors.New("disk full")
}
func (f *failingSink) AppendSignal(event.Signal) error { return errors.New("disk full") }

func TestSinkErrorsDoNotStopTheEngine(t *testing.T) {
	sink := &failingSink{}
	clk := &testClock{status: event.StatusActive}
	e := New(Config{SessionID: "s1", SampleRate: rate}, clk, nil, sink)

	clk.advance(time.Second)
	e.clockTick(context.Background())
	e.signalTick()

	if e.History().Len() != 2 || sink.events != 2 {
		t.Fatalf("history=%d sink=%d", e.History().Len(), sink.events)
	}
	if len(e.History().Signals()) != 3 {
		t.Error("history missed signals")
	}
}

func TestReplayRhythmSession(t *testing.T) {
	lead := make([]float32, 2*rate)
	tail := make([]float32, 20*rate)
	body := audio.Synthesize(rate, 3, audio.SynthSegment{Kind: audio.SynthRhythm, Duration: 14 * time.Second, BPM: 90, Level: 0.5})
	samples := slices.Concat(lead, body, tail)

	e, clk := newEngine(nil)
	clk.status = event.StatusActive
	if err := e.Replay(context.Background(), samples, clk.advance); err != nil {
		t.Fatal(err)
	}
	if clk.elapsed != 36*time.Second {
		t.Fatalf("elapsed = %v", clk.elapsed)
	}

	got := types(e.History().Events())
	for _, want := range []event.Type{event.SessionStart, event.RhythmStart, event.RhythmStop, event.PhaseStartIntercourse} {
		if !slices.Contains(got, want) {
			t.Errorf("missing %s in %v", want, got)
		}
	}
	fore := slices.Index(got, event.PhaseStartForeplay)
	inter := slices.Index(got, event.PhaseStartIntercourse)
	cool := slices.Index(got, event.PhaseStartCooldown)
	if fore < 0 || inter < fore || cool < inter {
		t.Errorf("phase order wrong: %v", got)
	}

	if n := len(e.History().Signals()); n != 3*36 {
		t.Errorf("signals = %d, want %d", n, 3*36)
	}

	res := e.Timeline(timeline.ZoomFull)
	if res.Duration <= 0 || len(res.Primitives) == 0 {
		t.Fatalf("empty timeline: %+v", res)
	}
	var tracks []timeline.TrackID
	for _, p := range res.Primitives {
		if !slices.Contains(tracks, p.Track) {
			tracks = append(tracks, p.Track)
		}
	}
	for _, want := range []timeline.TrackID{timeline.TrackSession, timeline.TrackPhases, timeline.TrackRhythm, timeline.TrackIntensity} {
		if !slices.Contains(tracks, want) {
			t.Errorf("timeline missing track %s", want)
		}
	}
}

func TestAttachRoutesCaptureIntoBuffer(t *testing.T) {
	e, _ := newEngine(nil)
	dev, err := audio.NewFakeContext(loud(time.Second), rate, 0).NewCapture(nil, audio.CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Attach(dev); err != nil {
		t.Fatal(err)
	}
	<-dev.(*audio.FakeCapture).AudioDone()
	if n := len(e.latest(2 * rate)); n != rate {
		t.Fatalf("buffered %d samples, want %d", n, rate)
	}
	e.Stop()
	if n := len(e.latest(2 * rate)); n != 0 {
		t.Fatalf("buffered %d samples after stop", n)
	}
}

func TestFinishEmitsSessionEnd(t *testing.T) {
	e, clk := newEngine(nil)
	ctx := context.Background()
	clk.status = event.StatusActive
	e.clockTick(ctx)

	clk.advance(90 * time.Second)
	clk.status = event.StatusEnded
	e.Finish(ctx)

	got := types(e.History().Events())
	want := []event.Type{event.SessionStart, event.PhaseStartForeplay, event.SessionEnd, event.PhaseStartCooldown}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if last := e.History().Events()[2]; last.T != 90 {
		t.Errorf("session end at %v", last.T)
	}
}
