package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cadence/audio/wav"
)

// DefaultWhisperURL is a local whisper.cpp server.
const DefaultWhisperURL = "http://127.0.0.1:8080/inference"

type WhisperConfig struct {
	URL      string
	Model    string
	Language string
	APIKey   string
	Timeout  time.Duration
}

// Whisper posts each window as a WAV upload to a whisper.cpp server or an
// OpenAI-compatible /audio/transcriptions endpoint.
type Whisper struct {
	client *TracedClient
	cfg    WhisperConfig
	busy   atomic.Bool

	mu        sync.Mutex
	metrics   *NetworkMetrics
	rateLimit string
}

func NewWhisper(cfg WhisperConfig) *Whisper {
	if cfg.URL == "" {
		cfg.URL = DefaultWhisperURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Whisper{client: NewTracedClient(cfg.Timeout), cfg: cfg}
}

func (w *Whisper) Name() string { return "whisper" }
func (w *Whisper) Ready() bool  { return !w.busy.Load() }
func (w *Whisper) URL() string  { return w.cfg.URL }

// LastMetrics returns the timings of the last successful request.
func (w *Whisper) LastMetrics() *NetworkMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// RateLimit is "remaining/limit" as reported by hosted endpoints, "?/?"
// for local servers.
func (w *Whisper) RateLimit() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rateLimit
}

func (w *Whisper) Warm(ctx context.Context) (time.Duration, error) {
	d, err := w.client.Warm(ctx, w.cfg.URL)
	if err != nil {
		return 0, &Error{Adapter: w.Name(), Op: "warm", Err: err}
	}
	return d, nil
}

type whisperResponse struct {
	Text string `json:"text"`
}

// annotations whisper emits for non-speech, e.g. [BLANK_AUDIO] or (music)
var annotation = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)

func (w *Whisper) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if !w.busy.CompareAndSwap(false, true) {
		return "", &Error{Adapter: w.Name(), Op: "transcribe", Err: ErrBusy}
	}
	defer w.busy.Store(false)

	body, contentType, err := w.form(wav.Encode(samples, sampleRate))
	if err != nil {
		return "", &Error{Adapter: w.Name(), Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, body)
	if err != nil {
		return "", &Error{Adapter: w.Name(), Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	if w.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", &Error{Adapter: w.Name(), Op: "request", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		// response bodies of failed calls are not echoed: they may quote input
		return "", &Error{Adapter: w.Name(), Op: "request", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var wr whisperResponse
	if err := json.Unmarshal(resp.Body, &wr); err != nil {
		return "", &Error{Adapter: w.Name(), Op: "decode", Err: err}
	}

	w.mu.Lock()
	w.metrics = resp.Metrics
	w.rateLimit = firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests") + "/" +
		firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")
	w.mu.Unlock()

	return strings.TrimSpace(annotation.ReplaceAllString(wr.Text, "")), nil
}

func (w *Whisper) form(audio []byte) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "window.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if w.cfg.Model != "" {
		mw.WriteField("model", w.cfg.Model)
	}
	mw.WriteField("response_format", "json")
	mw.WriteField("temperature", "0")
	if w.cfg.Language != "" {
		mw.WriteField("language", w.cfg.Language)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}
