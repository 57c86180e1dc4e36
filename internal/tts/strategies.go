package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/playback"
	"github.com/lexiqai/voicetutor/internal/speechtext"
	"github.com/lexiqai/voicetutor/internal/synthesis"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
)

// TextToSpeechAPI is the tutor backend's render endpoint
type TextToSpeechAPI interface {
	TextToSpeech(ctx context.Context, text, languageCode string) (*tutorapi.TextToSpeechResponse, error)
}

// BackendStrategy renders through POST /api/text-to-speech
type BackendStrategy struct {
	api TextToSpeechAPI
}

// NewBackendStrategy wraps the tutor API client
func NewBackendStrategy(api TextToSpeechAPI) *BackendStrategy {
	return &BackendStrategy{api: api}
}

func (s *BackendStrategy) Name() string  { return "backend" }
func (s *BackendStrategy) Backend() bool { return true }

// Render decodes audio_content. Transport errors, missing audio and malformed payloads
// all fail the tier.
func (s *BackendStrategy) Render(ctx context.Context, req SpeechRequest) (*playback.Resource, error) {
	resp, err := s.api.TextToSpeech(ctx, req.Text, req.LanguageCode)
	if err != nil {
		return nil, err
	}
	if resp.AudioContent == "" {
		if resp.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoAudio, resp.Message)
		}
		return nil, ErrNoAudio
	}

	clip, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp.AudioContent))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrNoAudio, err)
	}
	if !audio.ValidatePayload(clip) {
		return nil, fmt.Errorf("%w: %d byte payload is not playable audio", ErrNoAudio, len(clip))
	}
	return playback.NewResource(clip, audio.DetectFormat(clip), s.Name(), nil), nil
}

// SynthesisStrategy renders on the local synthesis engine
type SynthesisStrategy struct {
	engine synthesis.Engine
}

// NewSynthesisStrategy wraps a local engine
func NewSynthesisStrategy(engine synthesis.Engine) *SynthesisStrategy {
	return &SynthesisStrategy{engine: engine}
}

func (s *SynthesisStrategy) Name() string  { return "synthesis" }
func (s *SynthesisStrategy) Backend() bool { return false }

// Render selects a voice for the request language and synthesizes cleaned-up text
func (s *SynthesisStrategy) Render(ctx context.Context, req SpeechRequest) (*playback.Resource, error) {
	if s.engine == nil || !s.engine.Supported() {
		return nil, synthesis.ErrUnsupported
	}

	text := speechtext.Prepare(req.Text, req.LanguageCode)
	if text == "" {
		return nil, ErrEmptyText
	}

	// A voice listing failure leaves the engine default in place
	voices, _ := s.engine.Voices(ctx)

	wav, err := s.engine.Render(ctx, synthesis.Utterance{
		Text:   text,
		Lang:   req.LanguageCode,
		Voice:  synthesis.SelectVoice(voices, req.LanguageCode),
		Rate:   req.Rate,
		Pitch:  req.Pitch,
		Volume: req.Volume,
	})
	if err != nil {
		return nil, err
	}
	return playback.NewResource(wav, audio.FormatWAV, s.Name(), nil), nil
}
