package synth

import (
	"context"
	"time"

	"github.com/obsidian-neural/loop-service/internal/pkg/wav"
)

// Stub is the test-mode Synthesizer. It returns silence of the requested
// duration after a short delay, so the admission controller is exercised
// without touching the GPU pipeline.
type Stub struct {
	// Delay simulates generation latency. Zero means return immediately.
	Delay time.Duration
}

// Generate returns a silent WAV payload.
func (s *Stub) Generate(ctx context.Context, prompt string, bpm float64, duration float64, sampleRate int) ([]byte, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return wav.Silence(time.Duration(duration*float64(time.Second)), sampleRate), nil
}
