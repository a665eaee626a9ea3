package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"cadence/audio"
	"cadence/audio/wav"
	"cadence/event"
	"cadence/hotkey"
	"cadence/schedule"
	"cadence/session"
	"cadence/store"
	"cadence/timeline"
	"cadence/transcriber"
)

func writeWAV(t *testing.T, segments ...audio.SynthSegment) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.wav")
	samples := audio.Synthesize(16000, 11, segments...)
	if err := os.WriteFile(path, wav.Encode(samples, 16000), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunReplayOffline(t *testing.T) {
	path := writeWAV(t,
		audio.SynthSegment{Kind: audio.SynthSilence, Duration: 2 * time.Second},
		audio.SynthSegment{Kind: audio.SynthRhythm, Duration: 14 * time.Second, BPM: 90, Level: 0.5},
		audio.SynthSegment{Kind: audio.SynthSilence, Duration: 20 * time.Second},
	)
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	var out bytes.Buffer
	err = runReplay(replayOptions{
		Path:    path,
		Profile: schedule.DefaultProfile,
		Store:   st,
		Zoom:    timeline.ZoomFull,
		Out:     &out,
	})
	if err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []event.Type{event.SessionStart, event.RhythmStart, event.PhaseStartIntercourse, event.SessionEnd} {
		if !strings.Contains(text, string(want)) {
			t.Errorf("output missing %s:\n%s", want, text)
		}
	}
	if !strings.Contains(text, "duration 0:36") {
		t.Errorf("summary missing duration:\n%s", text)
	}

	ctx := context.Background()
	sess, err := st.LatestSession(ctx)
	if err != nil || sess == nil {
		t.Fatalf("latest session = %v, %v", sess, err)
	}
	if sess.Status != event.StatusEnded || sess.EndedAt == nil {
		t.Errorf("stored session = %+v", sess)
	}
	events, err := st.Events(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 || events[0].Type != event.SessionStart {
		t.Fatalf("stored events start with %v", events)
	}
}

func TestRunReplayTranscribes(t *testing.T) {
	path := writeWAV(t, audio.SynthSegment{Kind: audio.SynthNoise, Duration: 8 * time.Second, Level: 0.3})
	fake := transcriber.NewFake("stop stop", "keep going")

	var out bytes.Buffer
	err := runReplay(replayOptions{
		Path:    path,
		Profile: schedule.DefaultProfile,
		Adapter: fake,
		Zoom:    timeline.ZoomFull,
		Out:     &out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fake.Calls() == 0 {
		t.Fatal("adapter never called")
	}
	if !strings.Contains(out.String(), string(event.Stop)) {
		t.Errorf("no STOP in output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "stop stop") {
		t.Error("transcript text leaked into output")
	}
}

func TestRunReplayRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	os.WriteFile(path, []byte("not audio at all"), 0644)
	err := runReplay(replayOptions{Path: path, Profile: schedule.DefaultProfile, Out: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "RIFF") {
		t.Fatalf("err = %v", err)
	}
}

func TestApply(t *testing.T) {
	clock := session.NewClock()

	if apply(clock, hotkey.ActionToggle) || clock.Status() != event.StatusActive {
		t.Fatalf("first tap: %s", clock.Status())
	}
	if apply(clock, hotkey.ActionToggle) || clock.Status() != event.StatusPaused {
		t.Fatalf("second tap: %s", clock.Status())
	}
	if apply(clock, hotkey.ActionToggle) || clock.Status() != event.StatusActive {
		t.Fatalf("third tap: %s", clock.Status())
	}
	if !apply(clock, hotkey.ActionEnd) || clock.Status() != event.StatusEnded {
		t.Fatalf("hold: %s", clock.Status())
	}
}

func TestTUIKeys(t *testing.T) {
	actions := make(chan hotkey.Action, 4)
	var m tea.Model = newTUIModel(tuiConfig{Zoom: timeline.ZoomFull, Actions: actions})

	press := func(k string) {
		var msg tea.KeyMsg
		if k == " " {
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m, _ = m.Update(msg)
	}

	press(" ")
	press("e")
	press("z")
	press("t")

	var got []hotkey.Action
	for len(actions) > 0 {
		got = append(got, <-actions)
	}
	if !slices.Equal(got, []hotkey.Action{hotkey.ActionToggle, hotkey.ActionEnd}) {
		t.Errorf("actions = %v", got)
	}
	tm := m.(tuiModel)
	if tm.zoom != timeline.Zoom1m || !tm.showTimeline {
		t.Errorf("zoom=%s timeline=%v", tm.zoom, tm.showTimeline)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not return tea.Quit")
	}
}

func TestTUIKeepsRecentEvents(t *testing.T) {
	var m tea.Model = newTUIModel(tuiConfig{})
	for i := range recentEvents + 3 {
		m, _ = m.Update(EventMsg{Event: event.New("s", float64(i), event.Go, event.SourceSpeech, 1)})
	}
	tm := m.(tuiModel)
	if len(tm.events) != recentEvents || tm.events[0].T != 3 {
		t.Fatalf("events = %d, first at %v", len(tm.events), tm.events[0].T)
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if view := m.View(); !strings.Contains(view, "GO") || !strings.Contains(view, "READY") {
		t.Errorf("view missing events or status:\n%s", view)
	}
}

func TestNextZoomCycles(t *testing.T) {
	z := timeline.ZoomFull
	var seen []timeline.Zoom
	for range 3 {
		z = nextZoom(z)
		seen = append(seen, z)
	}
	if !slices.Equal(seen, []timeline.Zoom{timeline.Zoom1m, timeline.Zoom5m, timeline.ZoomFull}) {
		t.Errorf("zoom cycle = %v", seen)
	}
}
