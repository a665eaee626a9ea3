package timeline

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"cadence/event"
)

type Zoom string

const (
	Zoom1m   Zoom = "1m"
	Zoom5m   Zoom = "5m"
	ZoomFull Zoom = "full"
)

func ParseZoom(s string) (Zoom, error) {
	switch z := Zoom(s); z {
	case Zoom1m, Zoom5m, ZoomFull:
		return z, nil
	case "":
		return ZoomFull, nil
	}
	return "", fmt.Errorf("unknown zoom %q (want 1m, 5m or full)", s)
}

// window returns the length of the visible window in seconds, 0 for full.
func (z Zoom) window() float64 {
	switch z {
	case Zoom1m:
		return 60
	case Zoom5m:
		return 300
	}
	return 0
}

type Primitive struct {
	ID      string         `json:"id"`
	Track   TrackID        `json:"track"`
	Kind    Kind           `json:"kind"`
	TStart  float64        `json:"tStart"`
	TEnd    *float64       `json:"tEnd,omitempty"`
	Label   string         `json:"label,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type Result struct {
	Duration   float64     `json:"duration"`
	Primitives []Primitive `json:"primitives"`
}

const (
	silentValue = 0.5
	silenceGap  = 2.0
)

var phaseLabels = []struct {
	typ   event.Type
	label string
}{
	{event.PhaseStartForeplay, "Foreplay"},
	{event.PhaseStartIntercourse, "Intercourse"},
	{event.PhaseStartCooldown, "Cooldown"},
}

// Build recomputes every primitive from scratch. Inputs are not modified
// and equal inputs give equal results.
func Build(events []event.Event, signals []event.Signal, zoom Zoom) Result {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b event.Event) int {
		if c := cmp.Compare(a.T, b.T); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	var duration float64
	if len(ordered) > 0 {
		duration = ordered[len(ordered)-1].T
	}

	var start float64
	if w := zoom.window(); w > 0 {
		start = max(0, duration-w)
		i := 0
		for i < len(ordered) && ordered[i].T < start {
			i++
		}
		ordered = ordered[i:]
	}

	b := &builder{events: ordered, duration: duration}
	b.session()
	b.phases()
	b.positions(start)
	b.markers()
	b.rhythm()
	b.silence(signals)
	b.series(signals)

	slices.SortStableFunc(b.out, func(x, y Primitive) int {
		if c := cmp.Compare(trackRank(x.Track), trackRank(y.Track)); c != 0 {
			return c
		}
		return cmp.Compare(x.TStart, y.TStart)
	})
	return Result{Duration: duration, Primitives: b.out}
}

type builder struct {
	events   []event.Event
	duration float64
	out      []Primitive
}

func (b *builder) segment(id string, track TrackID, from, to float64, label string) {
	b.out = append(b.out, Primitive{ID: id, Track: track, Kind: KindSegment, TStart: from, TEnd: &to, Label: label})
}

func (b *builder) find(match func(event.Event) bool) (event.Event, bool) {
	for _, e := range b.events {
		if match(e) {
			return e, true
		}
	}
	return event.Event{}, false
}

func is(t event.Type) func(event.Event) bool {
	return func(e event.Event) bool { return e.Type == t }
}

func (b *builder) session() {
	s, ok := b.find(is(event.SessionStart))
	if !ok {
		return
	}
	end := b.duration
	if e, ok := b.find(is(event.SessionEnd)); ok {
		end = e.T
	}
	b.segment("session-"+s.ID, TrackSession, s.T, end, "Session")
}

func (b *builder) phases() {
	for _, ph := range phaseLabels {
		s, ok := b.find(is(ph.typ))
		if !ok {
			continue
		}
		end := b.duration
		if e, ok := b.find(func(e event.Event) bool { return e.T > s.T && e.Type.IsPhaseStart() }); ok {
			end = e.T
		}
		b.segment(fmt.Sprintf("phase-%s-%s", ph.typ, s.ID), TrackPhases, s.T, end, ph.label)
	}
}

// positions partitions [from, duration] at each POSITION_CHANGE.
func (b *builder) positions(from float64) {
	n := 1
	for _, e := range b.events {
		if e.Type != event.PositionChange {
			continue
		}
		b.segment(fmt.Sprintf("position-%d", n), TrackPositions, from, e.T, fmt.Sprintf("Position %d", n))
		from = e.T
		n++
	}
	if b.duration > from {
		b.segment(fmt.Sprintf("position-%d", n), TrackPositions, from, b.duration, fmt.Sprintf("Position %d", n))
	}
}

func (b *builder) markers() {
	for _, e := range b.events {
		switch {
		case e.Type.IsSpeech():
			b.out = append(b.out, Primitive{ID: "speech-" + e.ID, Track: TrackSpeech, Kind: KindMarker,
				TStart: e.T, Label: string(e.Type), Payload: map[string]any{"eventId": e.ID}})
		case e.Type == event.OrgasmEvent:
			b.out = append(b.out, Primitive{ID: "orgasm-" + e.ID, Track: TrackOrgasm, Kind: KindMarker,
				TStart: e.T, Label: "ORGASM", Payload: map[string]any{"eventId": e.ID}})
		}
	}
}

// pairs emits a segment for every open event followed by a close event. A
// trailing open extends to the end of the timeline.
func (b *builder) pairs(open, shut event.Type, prefix string, track TrackID, label string) {
	var at *float64
	for _, e := range b.events {
		switch e.Type {
		case open:
			t := e.T
			at = &t
		case shut:
			if at != nil {
				b.segment(prefix+"-"+e.ID, track, *at, e.T, label)
				at = nil
			}
		}
	}
	if at != nil {
		b.segment(prefix+"-open", track, *at, b.duration, label)
	}
}

func (b *builder) rhythm() {
	b.pairs(event.RhythmStart, event.RhythmStop, "rhythm", TrackRhythm, "Rhythm")
}

func (b *builder) silence(signals []event.Signal) {
	var points []event.Signal
	for _, s := range signals {
		if s.Type == event.SignalSilence {
			points = append(points, s)
		}
	}
	if len(points) == 0 {
		b.pairs(event.RhythmStop, event.RhythmStart, "silence", TrackSilence, "Silence")
		return
	}
	slices.SortStableFunc(points, func(x, y event.Signal) int { return cmp.Compare(x.T, y.T) })

	var at *float64
	last := points[0].T
	for _, p := range points {
		silent := p.Value >= silentValue
		gap := p.T - last
		last = p.T
		if at == nil {
			if silent {
				t := p.T
				at = &t
			}
			continue
		}
		if !silent || gap > silenceGap {
			b.segment("silence-"+ftoa(*at)+"-"+ftoa(p.T), TrackSilence, *at, p.T, "Silence")
			at = nil
			if silent {
				t := p.T
				at = &t
			}
		}
	}
	if at != nil {
		b.segment("silence-open", TrackSilence, *at, b.duration, "Silence")
	}
}

// series emits one primitive per signal type, in order of first appearance.
func (b *builder) series(signals []event.Signal) {
	var order []event.SignalType
	byType := make(map[event.SignalType][]event.Signal)
	for _, s := range signals {
		if _, ok := byType[s.Type]; !ok {
			order = append(order, s.Type)
		}
		byType[s.Type] = append(byType[s.Type], s)
	}
	for _, t := range order {
		end := b.duration
		b.out = append(b.out, Primitive{
			ID:      "series-" + string(t),
			Track:   seriesTrack(t),
			Kind:    KindSeries,
			TStart:  0,
			TEnd:    &end,
			Label:   string(t),
			Payload: map[string]any{"points": byType[t]},
		})
	}
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
