package audio

import (
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"cadence/audio/wav"
)

// 50 ms at 16 kHz
const fakeChunk = 800

// FakeContext replays a fixed sample buffer instead of a microphone.
type FakeContext struct {
	samples    []float32
	sampleRate int
	speed      float64
}

// NewFakeContext replays samples. speed 1 paces chunks in real time, 2
// twice as fast; 0 delivers everything synchronously inside Start.
func NewFakeContext(samples []float32, sampleRate int, speed float64) *FakeContext {
	return &FakeContext{samples: samples, sampleRate: sampleRate, speed: speed}
}

func NewWAVContext(path string, speed float64) (*FakeContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	samples, rate, err := wav.Decode(data)
	if err != nil {
		return nil, err
	}
	return NewFakeContext(samples, rate, speed), nil
}

func (f *FakeContext) SampleRate() int { return f.sampleRate }

func (f *FakeContext) Duration() time.Duration {
	return time.Duration(float64(len(f.samples)) / float64(f.sampleRate) * float64(time.Second))
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{ctx: f, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	ctx       *FakeContext
	audioDone chan struct{}

	mu       sync.Mutex
	cb       SampleCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once every sample has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb SampleCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() SampleCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(pos int) int {
	end := min(pos+fakeChunk, len(f.ctx.samples))
	if cb := f.callback(); cb != nil {
		chunk := make([]float32, end-pos)
		copy(chunk, f.ctx.samples[pos:end])
		cb(chunk)
	}
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	if f.ctx.speed <= 0 {
		for pos := 0; pos < len(f.ctx.samples); {
			pos = f.feedChunk(pos)
		}
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	perChunk := float64(fakeChunk) / float64(f.ctx.sampleRate) / f.ctx.speed
	interval := time.Duration(perChunk * float64(time.Second))
	go func() {
		defer close(f.feedDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for pos := 0; pos < len(f.ctx.samples); {
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
				pos = f.feedChunk(pos)
			}
		}
		close(f.audioDone)
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() { f.Stop() }

type SynthKind int

const (
	SynthSilence SynthKind = iota
	SynthRhythm
	SynthNoise
)

// SynthSegment is one stretch of synthetic input. Rhythm segments pulse a
// 220 Hz tone at BPM; Level is the peak amplitude.
type SynthSegment struct {
	Kind     SynthKind
	Duration time.Duration
	BPM      float64
	Level    float64
}

// Synthesize renders segments back to back. The output is deterministic
// for a given seed.
func Synthesize(sampleRate int, seed uint64, segments ...SynthSegment) []float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var out []float32
	for _, seg := range segments {
		n := int(seg.Duration.Seconds() * float64(sampleRate))
		for i := range n {
			t := float64(i) / float64(sampleRate)
			var v float64
			switch seg.Kind {
			case SynthSilence:
				v = rng.NormFloat64() * 0.0005
			case SynthRhythm:
				env := 0.5 + 0.5*math.Cos(2*math.Pi*seg.BPM/60*t)
				v = seg.Level * env * env * math.Sin(2*math.Pi*220*t)
			case SynthNoise:
				v = seg.Level * rng.NormFloat64() / 3
			}
			out = append(out, float32(max(-1, min(1, v))))
		}
	}
	return out
}
