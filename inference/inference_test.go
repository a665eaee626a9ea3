package inference

import (
	"slices"
	"testing"
	"time"

	"cadence/dsp"
	"cadence/event"
)

const tick = 500 * time.Millisecond

func features(rhythmActive bool, strength float64) dsp.SignalState {
	return dsp.SignalState{RMS: 0.1, Rhythm: dsp.RhythmState{Active: rhythmActive, Strength: strength, BPM: 90}}
}

func outTypes(out []Output) []event.Type {
	var ts []event.Type
	for _, o := range out {
		ts = append(ts, o.Type)
	}
	return ts
}

func TestPhaseFullSequence(t *testing.T) {
	p := NewPhase()
	var got []event.Type
	now := time.Duration(0)
	step := func(status event.Status, rhythm bool, n int) {
		for range n {
			got = append(got, outTypes(p.Update(Input{Status: status, Features: features(rhythm, 0.7), Now: now}))...)
			now += tick
		}
	}

	step(event.StatusIdle, false, 2)
	step(event.StatusActive, false, 4)
	step(event.StatusActive, true, 12)
	if p.State() != PhaseIntercourse {
		t.Fatalf("expected intercourse after sustained rhythm, got %s", p.State())
	}
	step(event.StatusActive, false, 12)
	step(event.StatusEnded, false, 3)

	want := []event.Type{event.PhaseStartForeplay, event.PhaseEndForeplay, event.PhaseStartIntercourse, event.PhaseStartCooldown}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPhaseOnsetNeedsContinuousRhythm(t *testing.T) {
	p := NewPhase()
	now := time.Duration(0)
	p.Update(Input{Status: event.StatusActive, Now: now})

	// 3.5s of rhythm, one gap, then rhythm again: the onset timer restarts.
	for range 8 {
		now += tick
		if out := p.Update(Input{Status: event.StatusActive, Features: features(true, 0.6), Now: now}); len(out) > 0 {
			t.Fatalf("premature transition at %v", now)
		}
	}
	now += tick
	p.Update(Input{Status: event.StatusActive, Features: features(false, 0.1), Now: now})

	restart := now + tick
	var fired time.Duration
	for now = restart; now < restart+10*time.Second; now += tick {
		if out := p.Update(Input{Status: event.StatusActive, Features: features(true, 0.6), Now: now}); len(out) > 0 {
			fired = now
			break
		}
	}
	if fired-restart != RhythmOnset {
		t.Fatalf("transition %v after rhythm resumed, want %v", fired-restart, RhythmOnset)
	}
}

func TestPhaseEndFromForeplay(t *testing.T) {
	p := NewPhase()
	p.Update(Input{Status: event.StatusActive})
	out := p.Update(Input{Status: event.StatusEnded, Now: tick})
	if !slices.Equal(outTypes(out), []event.Type{event.PhaseStartCooldown}) {
		t.Fatalf("got %v", outTypes(out))
	}
	if out := p.Update(Input{Status: event.StatusEnded, Now: 2 * tick}); len(out) != 0 {
		t.Fatalf("duplicate cooldown: %v", outTypes(out))
	}
	// cooldown is terminal, a new active status does not restart foreplay
	if out := p.Update(Input{Status: event.StatusActive, Now: 3 * tick}); len(out) != 0 {
		t.Fatalf("transition out of cooldown: %v", outTypes(out))
	}
}

func TestPhaseForeplayOnlyOnce(t *testing.T) {
	p := NewPhase()
	p.Update(Input{Status: event.StatusActive})
	p.Update(Input{Status: event.StatusPaused, Now: tick})
	if out := p.Update(Input{Status: event.StatusActive, Now: 2 * tick}); len(out) != 0 {
		t.Fatalf("resume re-entered foreplay: %v", outTypes(out))
	}
	p.Reset()
	if out := p.Update(Input{Status: event.StatusActive}); len(out) != 1 {
		t.Fatal("reset should allow foreplay again")
	}
}

func TestPositionSpeechRequests(t *testing.T) {
	p := NewPosition()
	req := event.New("s", 1, event.PositionChangeRequest, event.SourceSpeech, 0.7)
	log := []event.Event{event.New("s", 0, event.SessionStart, event.SourceUser, 1), req}

	out := p.Update(Input{Status: event.StatusActive, Events: log})
	if len(out) != 1 || out[0].Type != event.PositionChange || out[0].Confidence != 0.7 {
		t.Fatalf("got %+v", out)
	}
	if out := p.Update(Input{Status: event.StatusActive, Events: log, Now: tick}); len(out) != 0 {
		t.Fatalf("request consumed twice: %+v", out)
	}
}

func TestPositionIgnoresRequestsWhilePaused(t *testing.T) {
	p := NewPosition()
	log := []event.Event{event.New("s", 1, event.PositionChangeRequest, event.SourceSpeech, 0.7)}
	if out := p.Update(Input{Status: event.StatusPaused, Events: log}); out != nil {
		t.Fatalf("got %+v while paused", out)
	}
	if out := p.Update(Input{Status: event.StatusActive, Events: log, Now: tick}); len(out) != 0 {
		t.Fatalf("paused request replayed: %+v", out)
	}
}

func TestPositionRhythmFallingEdge(t *testing.T) {
	p := NewPosition()
	p.Update(Input{Status: event.StatusActive, Features: features(true, 0.5)})
	p.Update(Input{Status: event.StatusActive, Features: features(true, 0.5), Now: tick})
	out := p.Update(Input{Status: event.StatusActive, Features: features(false, 0.3), Now: 2 * tick})
	if len(out) != 1 || out[0].Payload["trigger"] != "rhythm_edge" {
		t.Fatalf("got %+v", out)
	}
}

func TestPositionFirstTickOnlyPrimes(t *testing.T) {
	p := NewPosition()
	if out := p.Update(Input{Status: event.StatusActive, Features: features(false, 0.9)}); len(out) != 0 {
		t.Fatalf("first tick fired %+v", out)
	}
}

func TestPositionStrengthDeltaCooldown(t *testing.T) {
	p := NewPosition()
	run := func(now time.Duration, strength float64) []Output {
		return p.Update(Input{Status: event.StatusActive, Features: features(true, strength), Now: now})
	}
	run(0, 0.4)
	if out := run(tick, 0.8); len(out) != 1 || out[0].Payload["trigger"] != "strength_delta" {
		t.Fatalf("expected delta trigger, got %+v", out)
	}
	if out := run(2*tick, 0.4); len(out) != 0 {
		t.Fatalf("delta inside cooldown fired: %+v", out)
	}
	if out := run(tick+PositionChangeCooldown, 0.8); len(out) != 1 {
		t.Fatalf("expected delta trigger after cooldown, got %+v", out)
	}
}

func TestPositionInactiveStatus(t *testing.T) {
	p := NewPosition()
	for _, st := range []event.Status{event.StatusIdle, event.StatusPaused, event.StatusEnded} {
		if out := p.Update(Input{Status: st, Features: features(false, 0)}); out != nil {
			t.Errorf("%s: got %+v", st, out)
		}
	}
}

func orgasmInput(now time.Duration, rms, strength float64, silent bool) Input {
	return Input{
		Status: event.StatusActive,
		Now:    now,
		Features: dsp.SignalState{
			RMS:           rms,
			SilenceActive: silent,
			Rhythm:        dsp.RhythmState{Active: strength >= dsp.RhythmThreshold, Strength: strength},
		},
	}
}

func TestOrgasmSpikeThenSilence(t *testing.T) {
	o := NewOrgasm()
	var got []Output
	feed := func(in Input) { got = append(got, o.Update(in)...) }

	feed(orgasmInput(0, 0.1, 0.8, false))
	feed(orgasmInput(tick, 0.3, 0.8, false)) // spike
	feed(orgasmInput(2*tick, 0.005, 0.2, false))
	feed(orgasmInput(6*time.Second, 0.005, 0.1, true))

	if len(got) != 1 || got[0].Type != event.OrgasmEvent {
		t.Fatalf("got %+v, want one ORGASM_EVENT", got)
	}
	if want := 0.5*0.8 + 0.5*1.0; got[0].Confidence != want {
		t.Errorf("confidence = %v, want %v", got[0].Confidence, want)
	}

	// a second spike and silence inside the cooldown window yields nothing
	feed(orgasmInput(20*time.Second, 0.1, 0.8, false))
	feed(orgasmInput(20*time.Second+tick, 0.3, 0.8, false))
	feed(orgasmInput(25*time.Second, 0.005, 0.1, true))
	if len(got) != 1 {
		t.Fatalf("emitted inside cooldown: %+v", got)
	}
}

func TestOrgasmSilenceTooLate(t *testing.T) {
	o := NewOrgasm()
	o.Update(orgasmInput(0, 0.1, 0.8, false))
	o.Update(orgasmInput(tick, 0.3, 0.8, false))
	if out := o.Update(orgasmInput(tick+ConfirmWindow, 0.005, 0.1, true)); len(out) != 0 {
		t.Fatalf("confirmed after window: %+v", out)
	}
}

func TestOrgasmSpikeNeedsRhythm(t *testing.T) {
	o := NewOrgasm()
	o.Update(orgasmInput(0, 0.1, 0.2, false))
	o.Update(orgasmInput(tick, 0.3, 0.2, false))
	if out := o.Update(orgasmInput(3*time.Second, 0.005, 0.1, true)); len(out) != 0 {
		t.Fatalf("weak rhythm spike confirmed: %+v", out)
	}
}

func TestOrgasmAfterCooldown(t *testing.T) {
	o := NewOrgasm()
	spikeAndSilence := func(at time.Duration) []Output {
		o.Update(orgasmInput(at, 0.1, 0.8, false))
		o.Update(orgasmInput(at+tick, 0.3, 0.8, false))
		return o.Update(orgasmInput(at+5*time.Second, 0.005, 0.1, true))
	}
	if len(spikeAndSilence(0)) != 1 {
		t.Fatal("first episode not detected")
	}
	if len(spikeAndSilence(OrgasmCooldown+time.Second)) != 1 {
		t.Fatal("episode after cooldown not detected")
	}
}

func TestOrgasmRequiresActive(t *testing.T) {
	o := NewOrgasm()
	in := orgasmInput(tick, 0.3, 0.8, false)
	in.Status = event.StatusPaused
	if out := o.Update(in); out != nil {
		t.Fatalf("got %+v", out)
	}
}

func TestSetResetsAll(t *testing.T) {
	s := NewSet()
	s.Update(Input{Status: event.StatusActive, Features: features(true, 0.5)})
	if s.Phase.State() != PhaseForeplay {
		t.Fatal("set did not drive phase")
	}
	s.Reset()
	if s.Phase.State() != PhaseNone {
		t.Error("phase not reset")
	}
	if out := s.Position.Update(Input{Status: event.StatusActive, Features: features(false, 0)}); len(out) != 0 {
		t.Error("position not re-primed after reset")
	}
}
