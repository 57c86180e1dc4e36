package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/playback"
)

// SpeechRequest is one immutable speak invocation
type SpeechRequest struct {
	Text          string  `json:"text" yaml:"text"`
	LanguageCode  string  `json:"language_code" yaml:"language_code"`
	Rate          float64 `json:"rate" yaml:"rate"`
	Pitch         float64 `json:"pitch" yaml:"pitch"`
	Volume        float64 `json:"volume" yaml:"volume"`
	PreferBackend bool    `json:"prefer_backend" yaml:"prefer_backend"`
}

// NewSpeechRequest fills voice parameters from configuration
func NewSpeechRequest(cfg *config.Config, text, languageCode string) SpeechRequest {
	if languageCode == "" {
		languageCode = cfg.DefaultLanguage
	}
	return SpeechRequest{
		Text:          text,
		LanguageCode:  languageCode,
		Rate:          cfg.SpeechRate,
		Pitch:         cfg.SpeechPitch,
		Volume:        cfg.SpeechVolume,
		PreferBackend: cfg.PreferBackend,
	}
}

// Strategy is one rendering tier. Backend tiers only run when the request prefers them.
type Strategy interface {
	Name() string
	Backend() bool
	Render(ctx context.Context, req SpeechRequest) (*playback.Resource, error)
}

// ErrorKind classifies a speak call where every tier failed
type ErrorKind string

const (
	KindBackendUnavailable   ErrorKind = "backend-unavailable"
	KindSynthesisUnsupported ErrorKind = "synthesis-unsupported"
	KindSynthesisError       ErrorKind = "synthesis-error"
)

var (
	// ErrEmptyText is returned for requests with nothing to say
	ErrEmptyText = errors.New("nothing to speak")
	// ErrNoAudio means a backend answered without a usable clip
	ErrNoAudio = errors.New("backend returned no audio")
)

// Attempt records one tier failure
type Attempt struct {
	Tier string
	Err  error
}

// SynthesisError is returned only when every tier failed
type SynthesisError struct {
	Kind     ErrorKind
	Attempts []Attempt
}

func (e *SynthesisError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("speech output failed (%s): no tier available", e.Kind)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Tier+": "+a.Err.Error())
	}
	return fmt.Sprintf("speech output failed (%s): %s", e.Kind, strings.Join(parts, "; "))
}

// Unwrap exposes every tier failure to errors.Is / errors.As
func (e *SynthesisError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Result describes a successful (or superseded) speak call
type Result struct {
	// Tier that produced the audio
	Tier string
	// Degraded is true when an earlier tier failed first
	Degraded bool
	// Attempts lists the failures that preceded Tier
	Attempts []Attempt
	// Superseded is set when a newer Speak or StopSpeaking won the race; nothing was played
	Superseded bool
	// Done is closed when the audio finished, failed or was stopped
	Done <-chan struct{}
}
