package pipeline

import (
	"context"
	"time"
)

// Replay pushes samples through the engine on a simulated clock, one
// feature tick at a time, as fast as the adapter allows. advance must move
// the engine's clock forward by the given duration. Each transcription
// pass is waited for before the next tick, so a replay is deterministic
// for a deterministic adapter.
func (e *Engine) Replay(ctx context.Context, samples []float32, advance func(time.Duration)) error {
	step := e.cfg.FeatureTick
	chunk := max(1, int(step.Seconds()*float64(e.cfg.SampleRate)))
	clockEvery := max(1, int(e.cfg.ClockTick/step))
	signalEvery := max(1, int(e.cfg.SignalTick/step))

	for tick, pos := 1, 0; pos < len(samples); tick++ {
		end := min(pos+chunk, len(samples))
		e.Write(samples[pos:end])
		pos = end

		advance(step)
		e.featureTick()
		if tick%clockEvery == 0 && e.clockTick(ctx) {
			if err := e.await(ctx); err != nil {
				return err
			}
		}
		if tick%signalEvery == 0 {
			e.signalTick()
		}
	}
	return nil
}

func (e *Engine) await(ctx context.Context) error {
	select {
	case r := <-e.results:
		e.handleResult(r)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
