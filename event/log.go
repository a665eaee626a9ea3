package event

import (
	"slices"
	"sync"
)

// Sink receives appended events and signals. Implementations must not
// retain or mutate the Payload map after returning.
type Sink interface {
	AppendEvent(e Event) error
	AppendSignal(s Signal) error
}

// Log is the in-memory append-only history for one session. The engine
// reads it back for position inference and timeline builds; other
// goroutines may take snapshots concurrently.
type Log struct {
	mu      sync.RWMutex
	events  []Event
	signals []Signal
	seq     int64
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) AppendEvent(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
	return nil
}

func (l *Log) AppendSignal(s Signal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.signals = append(l.signals, s)
	return nil
}

// Events returns a copy of the events in insertion order.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.events)
}

// Signals returns a copy of the signals in insertion order.
func (l *Log) Signals() []Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.signals)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
	l.signals = nil
	l.seq = 0
}

// Tee fans appends out to several sinks. The first error is returned after
// every sink has been tried.
type Tee []Sink

func (t Tee) AppendEvent(e Event) error {
	var first error
	for _, s := range t {
		if err := s.AppendEvent(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t Tee) AppendSignal(sig Signal) error {
	var first error
	for _, s := range t {
		if err := s.AppendSignal(sig); err != nil && first == nil {
			first = err
		}
	}
	return first
}
