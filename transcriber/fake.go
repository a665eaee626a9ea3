package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake returns scripted texts in order, one per call, then empty strings.
// A non-nil Err fails every call.
type Fake struct {
	Delay time.Duration
	Err   error

	mu    sync.Mutex
	texts []string
	calls int
	busy  bool
}

func NewFake(texts ...string) *Fake {
	return &Fake{texts: texts}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.busy
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Transcribe(ctx context.Context, samples []float32, _ int) (string, error) {
	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return "", &Error{Adapter: f.Name(), Op: "transcribe", Err: ErrBusy}
	}
	f.busy = true
	f.calls++
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", &Error{Adapter: f.Name(), Op: "transcribe", Err: ctx.Err()}
		}
	}
	if f.Err != nil {
		return "", &Error{Adapter: f.Name(), Op: "transcribe", Err: f.Err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return "", nil
	}
	text := f.texts[0]
	f.texts = f.texts[1:]
	return text, nil
}
