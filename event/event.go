// Package event defines the session event and signal vocabulary shared by
// every stage of the pipeline.
package event

import (
	"github.com/google/uuid"
)

type Type string

const (
	SessionStart          Type = "SESSION_START"
	SessionEnd            Type = "SESSION_END"
	SessionPause          Type = "SESSION_PAUSE"
	SessionResume         Type = "SESSION_RESUME"
	PhaseStartForeplay    Type = "PHASE_START_FOREPLAY"
	PhaseEndForeplay      Type = "PHASE_END_FOREPLAY"
	PhaseStartIntercourse Type = "PHASE_START_INTERCOURSE"
	PhaseStartCooldown    Type = "PHASE_START_COOLDOWN"
	Stop                  Type = "STOP"
	Go                    Type = "GO"
	PositiveFeedback      Type = "POSITIVE_FEEDBACK"
	NegativeFeedback      Type = "NEGATIVE_FEEDBACK"
	PositionChangeRequest Type = "POSITION_CHANGE_REQUEST"
	PaceChangeRequest     Type = "PACE_CHANGE_REQUEST"
	PositionChange        Type = "POSITION_CHANGE"
	RhythmStart           Type = "RHYTHM_START"
	RhythmStop            Type = "RHYTHM_STOP"
	OrgasmEvent           Type = "ORGASM_EVENT"
)

// Types lists the full vocabulary in declaration order.
var Types = []Type{
	SessionStart, SessionEnd, SessionPause, SessionResume,
	PhaseStartForeplay, PhaseEndForeplay, PhaseStartIntercourse, PhaseStartCooldown,
	Stop, Go, PositiveFeedback, NegativeFeedback,
	PositionChangeRequest, PaceChangeRequest, PositionChange,
	RhythmStart, RhythmStop, OrgasmEvent,
}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// IsSpeech reports whether t is produced by the intent classifier.
func (t Type) IsSpeech() bool {
	switch t {
	case Stop, Go, PositiveFeedback, NegativeFeedback, PositionChangeRequest, PaceChangeRequest:
		return true
	}
	return false
}

// IsPhaseStart reports whether t opens a phase segment.
func (t Type) IsPhaseStart() bool {
	switch t {
	case PhaseStartForeplay, PhaseStartIntercourse, PhaseStartCooldown:
		return true
	}
	return false
}

type Source string

const (
	SourceAudio     Source = "audio"
	SourceSpeech    Source = "speech"
	SourceMotion    Source = "motion"
	SourceInference Source = "inference"
	SourceUser      Source = "user"
)

type Status string

const (
	StatusIdle   Status = "idle"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// Event is immutable once appended. T is seconds since session start; Seq
// is the insertion sequence assigned by a Log and breaks ties on T.
type Event struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"sessionId"`
	T          float64        `json:"t"`
	Seq        int64          `json:"seq"`
	Type       Type           `json:"type"`
	Source     Source         `json:"source"`
	Confidence float64        `json:"confidence"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// New builds an event with a fresh ID and confidence clamped to [0,1].
func New(sessionID string, t float64, typ Type, src Source, confidence float64) Event {
	return Event{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		T:          t,
		Type:       typ,
		Source:     src,
		Confidence: clamp01(confidence),
	}
}

type SignalType string

const (
	SignalIntensity  SignalType = "intensity"
	SignalRhythm     SignalType = "rhythm"
	SignalSilence    SignalType = "silence"
	SignalPitchProxy SignalType = "pitch_proxy"
	SignalMotion     SignalType = "motion"
)

type Signal struct {
	SessionID string     `json:"sessionId"`
	T         float64    `json:"t"`
	Type      SignalType `json:"type"`
	Value     float64    `json:"value"`
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
