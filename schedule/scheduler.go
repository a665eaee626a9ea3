package schedule

import (
	"time"

	"cadence/event"
	"cadence/intent"
)

// SpeechRMSThreshold is the level below which a window is assumed to hold
// no speech.
const SpeechRMSThreshold = 0.015

type Tick struct {
	Now           time.Duration
	RMS           float64
	SilenceActive bool
	Visible       bool
}

// Scheduler gates the transcription pass. It is owned by the tick loop and
// is not safe for concurrent use.
type Scheduler struct {
	profile Profile

	lastRun     time.Duration
	lastSilence bool
	edgePending bool
	inFlight    bool
	lastIntent  map[event.Type]time.Duration
	lastErr     string
}

func New(p Profile) *Scheduler {
	return &Scheduler{profile: p, lastIntent: make(map[event.Type]time.Duration)}
}

func (s *Scheduler) Profile() Profile { return s.profile }
func (s *Scheduler) InFlight() bool   { return s.inFlight }

// LastError is the message of the most recent failed pass, cleared by the
// next successful one.
func (s *Scheduler) LastError() string { return s.lastErr }

// Decide reports whether a pass should start now. A true result marks the
// pass as in flight until Complete or Fail is called.
func (s *Scheduler) Decide(t Tick) bool {
	if s.lastSilence && !t.SilenceActive {
		s.edgePending = true
	}
	s.lastSilence = t.SilenceActive
	edge := s.edgePending

	due := t.Now-s.lastRun >= s.profile.Step
	if !due && !edge {
		return false
	}
	if s.profile.LowPower && !t.Visible {
		return false
	}
	if t.RMS < SpeechRMSThreshold && !edge {
		return false
	}
	if s.inFlight {
		return false
	}
	s.lastRun = t.Now
	s.inFlight = true
	s.edgePending = false
	return true
}

// Complete ends the in-flight pass and returns the matches that were not
// already emitted within the profile window.
func (s *Scheduler) Complete(now time.Duration, matches []intent.Match) []intent.Match {
	s.inFlight = false
	s.lastErr = ""

	var out []intent.Match
	for _, m := range matches {
		if at, ok := s.lastIntent[m.Type]; ok && now-at < s.profile.Window {
			continue
		}
		s.lastIntent[m.Type] = now
		out = append(out, m)
	}
	return out
}

// Fail ends the in-flight pass without consuming any intents.
func (s *Scheduler) Fail(err error) {
	s.inFlight = false
	if err != nil {
		s.lastErr = err.Error()
	}
}

func (s *Scheduler) Reset() {
	s.lastRun = 0
	s.lastSilence = false
	s.edgePending = false
	s.inFlight = false
	s.lastErr = ""
	clear(s.lastIntent)
}
