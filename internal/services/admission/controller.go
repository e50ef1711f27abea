// Package admission serializes access to the single shared generation
// resource. The GPU-bound synthesis pipeline cannot serve two requests at
// once, so every generation must hold the one process-wide slot for the
// duration of the expensive work. This is coarse admission control with
// capacity one, not a work queue: callers that cannot acquire simply wait.
package admission

import (
	"context"
	"time"

	domainerrors "github.com/obsidian-neural/loop-service/internal/domain/errors"
)

// Controller guards the single generation slot.
type Controller struct {
	slot        chan struct{}
	waitTimeout time.Duration
}

// NewController creates a new admission controller. waitTimeout bounds how
// long Acquire waits for the slot; zero means wait until the context is
// cancelled.
func NewController(waitTimeout time.Duration) *Controller {
	return &Controller{
		slot:        make(chan struct{}, 1),
		waitTimeout: waitTimeout,
	}
}

// Acquire blocks until the caller is the sole holder of the slot. It
// returns a RESOURCE_UNAVAILABLE error when the configured wait bound
// elapses, or the context error when the caller goes away first.
func (c *Controller) Acquire(ctx context.Context) error {
	wait := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}

	select {
	case c.slot <- struct{}{}:
		return nil
	case <-wait.Done():
		// A deadline or cancellation the caller brought is theirs to see
		// as-is; only the configured wait bound maps to a capacity error.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domainerrors.NewResourceUnavailableError(wait.Err())
	}
}

// Release relinquishes the slot. It must be called exactly once per
// successful Acquire, on every exit path of the guarded work.
func (c *Controller) Release() {
	select {
	case <-c.slot:
	default:
		panic("admission: release without acquire")
	}
}

// InFlight reports whether the slot is currently held.
func (c *Controller) InFlight() bool {
	return len(c.slot) == 1
}
