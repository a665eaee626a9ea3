package timeline

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cadence/event"
)

func ev(id string, seq int64, t float64, typ event.Type) event.Event {
	return event.Event{ID: id, SessionID: "s1", T: t, Seq: seq, Type: typ, Source: event.SourceInference, Confidence: 1}
}

func at(v float64) *float64 { return &v }

func sampleEvents() []event.Event {
	return []event.Event{
		ev("e1", 1, 0, event.SessionStart),
		ev("e2", 2, 0, event.PhaseStartForeplay),
		ev("e3", 3, 5, event.RhythmStart),
		ev("e4", 4, 10, event.RhythmStop),
		ev("e5", 5, 12, event.PositionChange),
		ev("e6", 6, 20, event.SessionEnd),
	}
}

func TestBuildSample(t *testing.T) {
	got := Build(sampleEvents(), nil, ZoomFull)
	want := Result{
		Duration: 20,
		Primitives: []Primitive{
			{ID: "session-e1", Track: TrackSession, Kind: KindSegment, TStart: 0, TEnd: at(20), Label: "Session"},
			{ID: "phase-PHASE_START_FOREPLAY-e2", Track: TrackPhases, Kind: KindSegment, TStart: 0, TEnd: at(20), Label: "Foreplay"},
			{ID: "position-1", Track: TrackPositions, Kind: KindSegment, TStart: 0, TEnd: at(12), Label: "Position 1"},
			{ID: "position-2", Track: TrackPositions, Kind: KindSegment, TStart: 12, TEnd: at(20), Label: "Position 2"},
			{ID: "rhythm-e4", Track: TrackRhythm, Kind: KindSegment, TStart: 5, TEnd: at(10), Label: "Rhythm"},
			{ID: "silence-open", Track: TrackSilence, Kind: KindSegment, TStart: 10, TEnd: at(20), Label: "Silence"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildIdempotentAndPure(t *testing.T) {
	events := sampleEvents()
	slices.Reverse(events)
	signals := []event.Signal{
		{SessionID: "s1", T: 2, Type: event.SignalIntensity, Value: 0.2},
		{SessionID: "s1", T: 1, Type: event.SignalSilence, Value: 1},
	}
	before := slices.Clone(events)
	beforeSignals := slices.Clone(signals)

	first := Build(events, signals, ZoomFull)
	second := Build(events, signals, ZoomFull)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated builds differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, events); diff != "" {
		t.Errorf("events mutated:\n%s", diff)
	}
	if diff := cmp.Diff(beforeSignals, signals); diff != "" {
		t.Errorf("signals mutated:\n%s", diff)
	}
}

func TestBuildEmpty(t *testing.T) {
	got := Build(nil, nil, ZoomFull)
	if got.Duration != 0 || len(got.Primitives) != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestBuildPhases(t *testing.T) {
	events := []event.Event{
		ev("a", 1, 0, event.PhaseStartForeplay),
		ev("b", 2, 30, event.PhaseEndForeplay),
		ev("c", 3, 30, event.PhaseStartIntercourse),
		ev("d", 4, 60, event.PhaseStartCooldown),
		ev("e", 5, 80, event.SessionEnd),
	}
	var got []Primitive
	for _, p := range Build(events, nil, ZoomFull).Primitives {
		if p.Track == TrackPhases {
			got = append(got, p)
		}
	}
	want := []Primitive{
		{ID: "phase-PHASE_START_FOREPLAY-a", Track: TrackPhases, Kind: KindSegment, TStart: 0, TEnd: at(30), Label: "Foreplay"},
		{ID: "phase-PHASE_START_INTERCOURSE-c", Track: TrackPhases, Kind: KindSegment, TStart: 30, TEnd: at(60), Label: "Intercourse"},
		{ID: "phase-PHASE_START_COOLDOWN-d", Track: TrackPhases, Kind: KindSegment, TStart: 60, TEnd: at(80), Label: "Cooldown"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("phases (-want +got):\n%s", diff)
	}
}

func TestBuildTieBreakBySeq(t *testing.T) {
	events := []event.Event{
		ev("stop", 2, 3, event.Stop),
		ev("go", 1, 3, event.Go),
	}
	r := Build(events, nil, ZoomFull)
	var labels []string
	for _, p := range r.Primitives {
		if p.Track == TrackSpeech {
			labels = append(labels, p.Label)
		}
	}
	if diff := cmp.Diff([]string{"GO", "STOP"}, labels); diff != "" {
		t.Errorf("marker order (-want +got):\n%s", diff)
	}
}

func TestBuildZoom(t *testing.T) {
	events := []event.Event{
		ev("start", 1, 0, event.SessionStart),
		ev("p1", 2, 100, event.PositionChange),
		ev("p2", 3, 150, event.PositionChange),
		ev("stop", 4, 170, event.Stop),
		ev("end", 5, 200, event.SessionEnd),
	}
	r := Build(events, nil, Zoom1m)
	if r.Duration != 200 {
		t.Fatalf("duration = %v", r.Duration)
	}
	want := []Primitive{
		{ID: "position-1", Track: TrackPositions, Kind: KindSegment, TStart: 140, TEnd: at(150), Label: "Position 1"},
		{ID: "position-2", Track: TrackPositions, Kind: KindSegment, TStart: 150, TEnd: at(200), Label: "Position 2"},
		{ID: "speech-stop", Track: TrackSpeech, Kind: KindMarker, TStart: 170, Label: "STOP", Payload: map[string]any{"eventId": "stop"}},
	}
	if diff := cmp.Diff(want, r.Primitives); diff != "" {
		t.Errorf("zoomed (-want +got):\n%s", diff)
	}

	if full := Build(events, nil, Zoom5m); full.Primitives[0].Track != TrackSession {
		t.Error("5m window should still contain the session start")
	}
}

func silenceSegments(r Result) []Primitive {
	var out []Primitive
	for _, p := range r.Primitives {
		if p.Track == TrackSilence && p.Kind == KindSegment {
			out = append(out, p)
		}
	}
	return out
}

func TestBuildSilenceFromSignals(t *testing.T) {
	events := []event.Event{ev("s", 1, 0, event.SessionStart), ev("e", 2, 10, event.SessionEnd)}
	var signals []event.Signal
	for i, v := range []float64{0, 1, 1, 1, 0, 1, 1} {
		signals = append(signals, event.Signal{T: float64(i), Type: event.SignalSilence, Value: v})
	}
	want := []Primitive{
		{ID: "silence-1-4", Track: TrackSilence, Kind: KindSegment, TStart: 1, TEnd: at(4), Label: "Silence"},
		{ID: "silence-open", Track: TrackSilence, Kind: KindSegment, TStart: 5, TEnd: at(10), Label: "Silence"},
	}
	if diff := cmp.Diff(want, silenceSegments(Build(events, signals, ZoomFull))); diff != "" {
		t.Errorf("silence (-want +got):\n%s", diff)
	}
}

func TestBuildSilenceGapSplits(t *testing.T) {
	events := []event.Event{ev("e", 1, 10, event.SessionEnd)}
	signals := []event.Signal{
		{T: 1, Type: event.SignalSilence, Value: 1},
		{T: 2, Type: event.SignalSilence, Value: 1},
		{T: 6, Type: event.SignalSilence, Value: 1},
	}
	want := []Primitive{
		{ID: "silence-1-6", Track: TrackSilence, Kind: KindSegment, TStart: 1, TEnd: at(6), Label: "Silence"},
		{ID: "silence-open", Track: TrackSilence, Kind: KindSegment, TStart: 6, TEnd: at(10), Label: "Silence"},
	}
	if diff := cmp.Diff(want, silenceSegments(Build(events, signals, ZoomFull))); diff != "" {
		t.Errorf("silence (-want +got):\n%s", diff)
	}
}

func TestBuildSeries(t *testing.T) {
	signals := []event.Signal{
		{T: 0, Type: event.SignalPitchProxy, Value: 0.3},
		{T: 0, Type: event.SignalIntensity, Value: 0.1},
		{T: 1, Type: event.SignalIntensity, Value: 0.2},
		{T: 1, Type: event.SignalRhythm, Value: 0.5},
	}
	r := Build([]event.Event{ev("e", 1, 4, event.SessionEnd)}, signals, ZoomFull)

	var ids []string
	var tracks []TrackID
	for _, p := range r.Primitives {
		if p.Kind == KindSeries {
			ids = append(ids, p.ID)
			tracks = append(tracks, p.Track)
		}
	}
	if diff := cmp.Diff([]string{"series-pitch_proxy", "series-intensity", "series-rhythm"}, ids); diff != "" {
		t.Errorf("series order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]TrackID{TrackIntensity, TrackIntensity, TrackRhythm}, tracks); diff != "" {
		t.Errorf("series tracks (-want +got):\n%s", diff)
	}
}

func TestParseZoom(t *testing.T) {
	for in, want := range map[string]Zoom{"": ZoomFull, "1m": Zoom1m, "5m": Zoom5m, "full": ZoomFull} {
		got, err := ParseZoom(in)
		if err != nil || got != want {
			t.Errorf("ParseZoom(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseZoom("10m"); err == nil {
		t.Error("expected error for unknown zoom")
	}
}

func TestSummary(t *testing.T) {
	s := Summary(Build(sampleEvents(), nil, ZoomFull))
	for _, want := range []string{"duration 0:20", "Position 2", "0:12 - 0:20", "Foreplay"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
