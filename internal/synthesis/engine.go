// Package synthesis renders text locally when backend audio is unavailable.
package synthesis

import (
	"context"
	"errors"
	"strings"

	"github.com/lexiqai/voicetutor/internal/speechtext"
)

// ErrUnsupported means no synthesis capability exists on this host
var ErrUnsupported = errors.New("speech synthesis not supported")

// Voice is one installed synthesis voice
type Voice struct {
	Name    string `json:"name" yaml:"name"`
	Locale  string `json:"locale" yaml:"locale"`
	ID      string `json:"id" yaml:"id"`
	Default bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

// Utterance is one render request. Rate, Pitch and Volume are relative, 1.0 is normal.
type Utterance struct {
	Text   string
	Lang   string
	Voice  *Voice // nil selects the engine default
	Rate   float64
	Pitch  float64
	Volume float64
}

// Engine is a local text-to-speech capability
type Engine interface {
	// Supported reports whether the engine can render on this host
	Supported() bool
	// Voices lists installed voices
	Voices(ctx context.Context) ([]Voice, error)
	// Render returns a WAV clip for the utterance
	Render(ctx context.Context, u Utterance) ([]byte, error)
}

var qualityMarkers = []string{"google", "natural", "neural", "premium", "enhanced"}

// SelectVoice picks the voice for lang: a matching locale with a quality marker in its
// name first, then any matching locale, otherwise nil for the engine default.
func SelectVoice(voices []Voice, lang string) *Voice {
	prefix := speechtext.LocalePrefix(lang)
	if prefix == "" {
		return nil
	}

	var fallback *Voice
	for i := range voices {
		v := &voices[i]
		if speechtext.LocalePrefix(v.Locale) != prefix {
			continue
		}
		if hasQualityMarker(v.Name) {
			return v
		}
		if fallback == nil {
			fallback = v
		}
	}
	return fallback
}

func hasQualityMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range qualityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
