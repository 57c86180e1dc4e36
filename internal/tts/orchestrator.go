// Package tts turns tutor text into audio through an ordered chain of rendering tiers.
package tts

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/playback"
	"github.com/lexiqai/voicetutor/internal/synthesis"
)

// Player owns the single active audio slot
type Player interface {
	Play(res *playback.Resource, onDone func(error))
	Stop()
}

// Orchestrator speaks one request at a time. The newest Speak or StopSpeaking wins;
// renders that finish after being superseded are released without playing.
type Orchestrator struct {
	player     Player
	strategies []Strategy
	logger     zerolog.Logger

	// notifyMu orders listener callbacks with state transitions
	notifyMu sync.Mutex

	mu         sync.Mutex
	generation uint64
	speaking   bool
	listeners  []func(speaking bool)
}

// NewOrchestrator tries strategies in order. Backend tiers should come first.
func NewOrchestrator(player Player, strategies ...Strategy) *Orchestrator {
	return &Orchestrator{
		player:     player,
		strategies: strategies,
		logger:     observability.Component("tts"),
	}
}

// OnSpeakingChange registers a listener called on every speaking transition
func (o *Orchestrator) OnSpeakingChange(fn func(speaking bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Speaking reports whether audio is being rendered or played
func (o *Orchestrator) Speaking() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speaking
}

// Speak stops anything already playing, then renders req through the first tier that
// succeeds and starts playback. Tier failures are logged and swallowed; a
// *SynthesisError is returned only when every eligible tier failed.
func (o *Orchestrator) Speak(ctx context.Context, req SpeechRequest) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, ErrEmptyText
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	o.player.Stop()
	o.transition(gen, true)

	logger := o.logger.With().Uint64("generation", gen).Str("lang", req.LanguageCode).Logger()

	var attempts []Attempt
	var lastTier Strategy
	for _, strategy := range o.strategies {
		if strategy.Backend() && !req.PreferBackend {
			continue
		}
		if !o.current(gen) {
			return superseded(attempts), nil
		}
		lastTier = strategy

		start := time.Now()
		res, err := strategy.Render(ctx, req)
		observability.RecordTTSAttempt(strategy.Name(), err == nil, time.Since(start))
		if err != nil {
			logger.Warn().Err(err).Str("tier", strategy.Name()).Msg("speech tier failed, trying next")
			attempts = append(attempts, Attempt{Tier: strategy.Name(), Err: err})
			continue
		}

		done, ok := o.start(gen, res)
		if !ok {
			logger.Debug().Str("tier", strategy.Name()).Msg("discarding superseded render")
			return superseded(attempts), nil
		}

		logger.Info().
			Str("tier", strategy.Name()).
			Bool("degraded", len(attempts) > 0).
			Msg("speaking")
		return Result{
			Tier:     strategy.Name(),
			Degraded: len(attempts) > 0,
			Attempts: attempts,
			Done:     done,
		}, nil
	}

	synthErr := &SynthesisError{Kind: classify(lastTier, attempts), Attempts: attempts}
	logger.Error().Err(synthErr).Msg("all speech tiers failed")
	o.transition(gen, false)
	return Result{}, synthErr
}

// start plays res if gen is still the newest request. The generation check and
// Play happen under mu so a concurrent StopSpeaking cannot slip between them.
func (o *Orchestrator) start(gen uint64, res *playback.Resource) (<-chan struct{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		res.Release()
		return nil, false
	}

	done := make(chan struct{})
	o.player.Play(res, func(err error) {
		if err != nil && !errors.Is(err, playback.ErrStopped) {
			o.logger.Warn().Err(err).Uint64("generation", gen).Msg("playback ended with error")
		}
		o.transition(gen, false)
		close(done)
	})
	return done, true
}

// StopSpeaking halts playback, invalidates in-flight renders and clears speaking.
// Safe to call at any time.
func (o *Orchestrator) StopSpeaking() {
	o.mu.Lock()
	o.generation++
	o.mu.Unlock()

	o.player.Stop()
	o.transition(0, false)
}

func (o *Orchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation
}

// transition sets speaking and notifies listeners when it changed. gen 0 applies
// unconditionally; otherwise only the newest request may change state.
func (o *Orchestrator) transition(gen uint64, speaking bool) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if (gen != 0 && gen != o.generation) || o.speaking == speaking {
		o.mu.Unlock()
		return
	}
	o.speaking = speaking
	listeners := slices.Clone(o.listeners)
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(speaking)
	}
}

func superseded(attempts []Attempt) Result {
	done := make(chan struct{})
	close(done)
	return Result{Superseded: true, Attempts: attempts, Done: done}
}

func classify(last Strategy, attempts []Attempt) ErrorKind {
	if last == nil || len(attempts) == 0 {
		return KindSynthesisUnsupported
	}
	if last.Backend() {
		return KindBackendUnavailable
	}
	if errors.Is(attempts[len(attempts)-1].Err, synthesis.ErrUnsupported) {
		return KindSynthesisUnsupported
	}
	return KindSynthesisError
}
