// Package capture turns a speech recognition stream into a capture session with an
// append-only final transcript and a replaceable interim preview.
package capture

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/observability"
)

// Session is a snapshot of the capture state
type Session struct {
	State             State     `json:"state"`
	Listening         bool      `json:"listening"`
	FinalTranscript   string    `json:"final_transcript"`
	InterimTranscript string    `json:"interim_transcript"`
	Error             ErrorKind `json:"error,omitempty"`
	Supported         bool      `json:"supported"`
}

// Controller runs one capture session at a time over a recognizer
type Controller struct {
	recognizer Recognizer
	sampleRate int
	logger     zerolog.Logger

	notifyMu sync.Mutex

	mu          sync.Mutex
	session     Session
	epoch       uint64
	stream      Stream
	cancel      context.CancelFunc
	stopPending bool
	hints       []string
	listeners   []func(Session)
	handlers    []func(string)
}

// NewController wraps rec, which may be nil when no recognizer is available
func NewController(rec Recognizer, sampleRate int) *Controller {
	supported := rec != nil && rec.Supported()
	return &Controller{
		recognizer: rec,
		sampleRate: sampleRate,
		logger:     observability.Component("capture"),
		session: Session{
			State:     StateIdle,
			Supported: supported,
		},
	}
}

// OnChange registers a listener for every session change
func (c *Controller) OnChange(fn func(Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// OnTranscript registers a handler for the final transcript of each cleanly ended session
func (c *Controller) OnTranscript(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// SetHints sets the vocabulary passed to the recognizer from the next Start
func (c *Controller) SetHints(hints []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hints = slices.Clone(hints)
}

// Snapshot returns the current session
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start begins a capture session in languageCode. Without a recognizer the session
// records error=unsupported and Start returns nil. A second Start while listening
// returns ErrAlreadyListening and changes nothing.
func (c *Controller) Start(languageCode string) error {
	c.notifyMu.Lock()

	c.mu.Lock()
	if c.recognizer == nil || !c.recognizer.Supported() {
		c.session.Supported = false
		c.session.Error = ErrorUnsupported
		snap := c.snapshotLocked()
		c.mu.Unlock()

		observability.RecordCaptureError(string(ErrorUnsupported))
		c.publish(snap)
		c.notifyMu.Unlock()
		return nil
	}
	if c.session.Listening {
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return ErrAlreadyListening
	}

	// an errored stream may not have ended yet; its events are dropped by epoch
	prevStream, prevCancel := c.stream, c.cancel
	hints := c.hints

	to, _ := next(c.session.State, triggerStart)
	c.epoch++
	epoch := c.epoch
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.stream = nil
	c.stopPending = false
	c.session.State = to
	c.session.Listening = true
	c.session.FinalTranscript = ""
	c.session.InterimTranscript = ""
	c.session.Error = ErrorNone
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	c.notifyMu.Unlock()

	if prevStream != nil {
		_ = prevStream.Stop()
	}
	if prevCancel != nil {
		prevCancel()
	}

	opts := Options{
		Language:        languageCode,
		Continuous:      false,
		InterimResults:  true,
		MaxAlternatives: 1,
		SampleRate:      c.sampleRate,
		Hints:           hints,
	}
	c.logger.Debug().Str("recognizer", c.recognizer.Name()).Str("lang", languageCode).Uint64("epoch", epoch).Msg("capture starting")

	stream, err := c.recognizer.Start(ctx, opts)
	if err != nil {
		code := ""
		var pe *PlatformError
		if errors.As(err, &pe) {
			code = pe.Code
		}
		c.logger.Warn().Err(err).Msg("recognizer failed to start")
		c.apply(epoch, Event{Type: EventError, Code: code, Err: err})
		c.apply(epoch, Event{Type: EventEnd})
		return nil
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		_ = stream.Stop()
		return nil
	}
	c.stream = stream
	stopNow := c.stopPending
	c.mu.Unlock()

	go c.consume(epoch, stream)
	if stopNow {
		_ = stream.Stop()
	}
	return nil
}

// Stop asks the recognizer to finish. The session stops listening when the stream ends.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.session.Listening {
		c.mu.Unlock()
		return
	}
	stream := c.stream
	if stream == nil {
		c.stopPending = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := stream.Stop(); err != nil {
		c.logger.Debug().Err(err).Msg("stream stop")
	}
}

// Reset clears transcripts and error; listening is left as it is
func (c *Controller) Reset() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	c.session.FinalTranscript = ""
	c.session.InterimTranscript = ""
	if c.session.Supported {
		c.session.Error = ErrorNone
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// SendAudio forwards captured PCM to the active stream
func (c *Controller) SendAudio(pcm []byte) error {
	c.mu.Lock()
	stream := c.stream
	listening := c.session.Listening
	c.mu.Unlock()

	if !listening || stream == nil {
		return ErrNotListening
	}
	return stream.SendAudio(pcm)
}

// Close abandons any running stream
func (c *Controller) Close() {
	c.mu.Lock()
	stream := c.stream
	cancel := c.cancel
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) consume(epoch uint64, stream Stream) {
	ended := false
	for ev := range stream.Events() {
		c.apply(epoch, ev)
		if ev.Type == EventEnd {
			ended = true
		}
	}
	if !ended {
		c.apply(epoch, Event{Type: EventEnd})
	}
}

func (c *Controller) apply(epoch uint64, ev Event) {
	c.notifyMu.Lock()
	emit := c.applyLocked(epoch, ev)
	c.notifyMu.Unlock()

	if emit != nil {
		emit()
	}
}

// applyLocked runs with notifyMu held. The returned func, if any, delivers the final
// transcript and must run after notifyMu is released.
func (c *Controller) applyLocked(epoch uint64, ev Event) func() {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}

	var t trigger
	switch ev.Type {
	case EventResult:
		t = triggerResult
	case EventError:
		t = triggerError
	default:
		t = triggerEnd
	}

	from := c.session.State
	to, ok := next(from, t)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("state", string(from)).Str("trigger", string(t)).Msg("ignoring event")
		return nil
	}
	c.session.State = to

	var emit func()

	switch t {
	case triggerResult:
		var interim strings.Builder
		for _, seg := range ev.Segments {
			if seg.Final {
				c.session.FinalTranscript += seg.Text
			} else {
				interim.WriteString(seg.Text)
			}
		}
		c.session.InterimTranscript = interim.String()

	case triggerError:
		kind := MapPlatformError(ev.Code)
		c.session.Error = kind
		c.session.Listening = false
		observability.RecordCaptureError(string(kind))
		observability.RecordCaptureOutcome("errored")
		c.logger.Warn().Err(ev.Err).Str("code", ev.Code).Str("kind", string(kind)).Msg("capture error")

	case triggerEnd:
		wasListening := c.session.Listening
		c.session.Listening = false
		c.stream = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		if wasListening && to == StateFinalized {
			transcript := strings.TrimSpace(c.session.FinalTranscript)
			if transcript != "" {
				handlers := slices.Clone(c.handlers)
				emit = func() {
					for _, fn := range handlers {
						fn(transcript)
					}
				}
				observability.RecordCaptureOutcome("finalized")
			} else {
				observability.RecordCaptureOutcome("empty")
			}
		}
	}

	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return emit
}

func (c *Controller) snapshotLocked() Session {
	return c.session
}

// publish runs with notifyMu held so listeners see changes in order
func (c *Controller) publish(snap Session) {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
