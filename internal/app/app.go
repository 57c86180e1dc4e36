// Package app wires configuration into the components shared by the server and CLI.
package app

import (
	"context"

	"github.com/lexiqai/voicetutor/internal/capture"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/session"
	"github.com/lexiqai/voicetutor/internal/synthesis"
	"github.com/lexiqai/voicetutor/internal/tts"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
)

// Components are the long-lived clients built from config
type Components struct {
	Config     *config.Config
	Tutor      *tutorapi.Client
	Engine     *synthesis.EspeakEngine
	Recognizer capture.Recognizer
	Strategies []tts.Strategy
}

// Build constructs every component. Tiers run in order: tutor backend, Cartesia
// when configured, then local synthesis.
func Build(cfg *config.Config) *Components {
	logger := observability.Component("app")

	tutor := tutorapi.NewClient(cfg)
	engine := synthesis.NewEspeakEngine(cfg.SynthCommand)

	strategies := []tts.Strategy{tts.NewBackendStrategy(tutor)}
	if cfg.CartesiaEnabled() {
		strategies = append(strategies, tts.NewCartesiaClient(cfg))
	}
	strategies = append(strategies, tts.NewSynthesisStrategy(engine))

	var deepgram capture.Recognizer
	if cfg.DeepgramEnabled() {
		deepgram = capture.NewDeepgramRecognizer(cfg)
	}
	recognizer := capture.FirstSupported(deepgram, capture.NewUploadRecognizer(tutor, cfg))

	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}
	logger.Info().
		Strs("speech_tiers", names).
		Bool("local_synthesis", engine.Supported()).
		Str("recognizer", recognizerName(recognizer)).
		Msg("components ready")

	return &Components{
		Config:     cfg,
		Tutor:      tutor,
		Engine:     engine,
		Recognizer: recognizer,
		Strategies: strategies,
	}
}

// Services returns the per-session dependencies. Audio is paced to play time so
// the speaking state tracks the student's speaker.
func (c *Components) Services() *session.Services {
	return &session.Services{
		Config:     c.Config,
		Tutor:      c.Tutor,
		Recognizer: c.Recognizer,
		Strategies: c.Strategies,
		PaceAudio:  true,
	}
}

// HealthChecks registers the tutor API always and optional dependencies only when configured
func (c *Components) HealthChecks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"tutor_api": c.Tutor.Health,
	}
	if c.Config.DeepgramEnabled() {
		checks["deepgram"] = func(ctx context.Context) (bool, error) {
			return c.Recognizer != nil && c.Recognizer.Supported(), nil
		}
	}
	return checks
}

func recognizerName(r capture.Recognizer) string {
	if r == nil {
		return "none"
	}
	return r.Name()
}
