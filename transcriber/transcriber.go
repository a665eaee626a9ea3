// Package transcriber turns short audio windows into text for the intent
// classifier. Text never leaves this package except as a return value.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Adapter transcribes one window of mono float32 samples. Ready reports
// whether a call can start now; adapters allow one call at a time.
type Adapter interface {
	Name() string
	Ready() bool
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

var ErrBusy = errors.New("transcription already in flight")

// Error is returned by adapters for any failed call.
type Error struct {
	Adapter string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Adapter, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
