// Package playback owns the single active audio slot of a voice session.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/observability"
)

// ErrStopped is passed to completion callbacks when playback was cancelled
var ErrStopped = errors.New("playback stopped")

// Sink renders a resource somewhere (a process, a file, a client connection).
// Play blocks until the clip finished or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, res *Resource) error
}

type activePlayback struct {
	res    *Resource
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller plays at most one resource at a time
type Controller struct {
	sink   Sink
	logger zerolog.Logger

	// opMu serialises Play and Stop so a stop-then-start is atomic
	opMu sync.Mutex

	mu      sync.Mutex
	current *activePlayback
}

// NewController creates a playback controller writing to sink
func NewController(sink Sink) *Controller {
	return &Controller{
		sink:   sink,
		logger: observability.Component("playback"),
	}
}

// Play stops and releases whatever is playing, then starts res in the background.
// onDone runs exactly once after res finished, failed or was stopped, and after res
// has been released. onDone must not call back into the controller synchronously
// with expectations about ordering relative to a concurrent Play.
func (c *Controller) Play(res *Resource, onDone func(error)) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	ap := &activePlayback{
		res:    res,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.current = ap
	c.mu.Unlock()

	observability.PlaybackStarted()
	c.logger.Debug().Str("resource_id", res.ID).Str("source", res.Source).Str("format", string(res.Format)).Msg("playback started")

	go c.run(ctx, ap, onDone)
}

func (c *Controller) run(ctx context.Context, ap *activePlayback, onDone func(error)) {
	err := c.sink.Play(ctx, ap.res)
	if ctx.Err() != nil {
		err = ErrStopped
	}

	ap.res.Release()
	ap.cancel()
	observability.PlaybackFinished()

	c.mu.Lock()
	if c.current == ap {
		c.current = nil
	}
	c.mu.Unlock()
	close(ap.done)

	if err != nil && !errors.Is(err, ErrStopped) {
		c.logger.Warn().Err(err).Str("resource_id", ap.res.ID).Msg("playback failed")
	}
	if onDone != nil {
		onDone(err)
	}
}

// Stop cancels the active playback and waits for its sink to return.
// Idempotent; a no-op when nothing is playing.
func (c *Controller) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	c.mu.Lock()
	ap := c.current
	c.mu.Unlock()

	if ap == nil {
		return
	}
	ap.cancel()
	<-ap.done
}

// Active reports whether a resource currently holds the slot
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Current returns the resource holding the slot, or nil
func (c *Controller) Current() *Resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.res
}
