package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"cadence/audio/wav"
	"cadence/event"
	"cadence/log"
	"cadence/pipeline"
	"cadence/schedule"
	"cadence/session"
	"cadence/store"
	"cadence/timeline"
	"cadence/transcriber"
)

type replayOptions struct {
	Path    string
	Profile schedule.Profile
	Adapter transcriber.Adapter
	Store   *store.Store // optional
	Zoom    timeline.Zoom
	Out     io.Writer
}

// runReplay plays a WAV recording through a full session on a simulated
// clock: started at the first sample, ended after the last. Events are
// printed as they are emitted, followed by the timeline summary.
func runReplay(opts replayOptions) error {
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return err
	}
	samples, rate, err := wav.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.Path, err)
	}

	now := time.Unix(0, 0)
	clock := session.NewClock().WithNow(func() time.Time { return now })
	advance := func(d time.Duration) { now = now.Add(d) }

	sessionID := uuid.NewString()
	sinks := []event.Sink{display{plain: opts.Out}}
	if opts.Store != nil {
		sinks = append(sinks, opts.Store)
	}
	engine := pipeline.New(pipeline.Config{
		SessionID:  sessionID,
		SampleRate: rate,
		Profile:    opts.Profile,
	}, clock, opts.Adapter, sinks...)

	ctx := context.Background()
	clock.Start()
	log.SessionStart(sessionID, adapterName(opts.Adapter), opts.Profile.Name)
	if opts.Store != nil {
		saveSession(opts.Store, sessionID, clock)
	}
	if err := engine.Replay(ctx, samples, advance); err != nil {
		return err
	}
	clock.End()
	engine.Finish(ctx)
	if opts.Store != nil {
		saveSession(opts.Store, sessionID, clock)
	}
	log.SessionEnd(sessionID, engine.History().Len(), clock.Elapsed())

	fmt.Fprintf(opts.Out, "\nsession %s\n", sessionID)
	fmt.Fprint(opts.Out, timeline.Summary(engine.Timeline(opts.Zoom)))
	return nil
}
