// Package timeline projects an event and signal history into renderable
// segments, markers and series.
package timeline

import "cadence/event"

type TrackID string

const (
	TrackSession   TrackID = "session"
	TrackPhases    TrackID = "phases"
	TrackPositions TrackID = "positions"
	TrackSpeech    TrackID = "speech"
	TrackOrgasm    TrackID = "orgasm"
	TrackIntensity TrackID = "intensity"
	TrackRhythm    TrackID = "rhythm"
	TrackSilence   TrackID = "silence"
)

type Kind string

const (
	KindSegment Kind = "segment"
	KindMarker  Kind = "marker"
	KindSeries  Kind = "series"
)

type Track struct {
	ID    TrackID
	Label string
	Kind  Kind
}

// Tracks is the display order.
var Tracks = []Track{
	{TrackSession, "Session", KindSegment},
	{TrackPhases, "Phases", KindSegment},
	{TrackPositions, "Positions", KindSegment},
	{TrackSpeech, "Speech", KindMarker},
	{TrackOrgasm, "Orgasm", KindMarker},
	{TrackIntensity, "Intensity", KindSeries},
	{TrackRhythm, "Rhythm", KindSeries},
	{TrackSilence, "Silence", KindSegment},
}

func trackRank(id TrackID) int {
	for i, t := range Tracks {
		if t.ID == id {
			return i
		}
	}
	return len(Tracks)
}

// seriesTrack maps a signal type to the track its series is drawn on.
func seriesTrack(t event.SignalType) TrackID {
	switch t {
	case event.SignalRhythm:
		return TrackRhythm
	case event.SignalSilence:
		return TrackSilence
	}
	return TrackIntensity
}
