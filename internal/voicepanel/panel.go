// Package voicepanel puts capture and speech output behind one microphone control.
// Capture and playback are never active together.
package voicepanel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/capture"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/speechtext"
	"github.com/lexiqai/voicetutor/internal/tts"
)

var (
	// ErrMicDisabled is returned when the microphone cannot be used right now
	ErrMicDisabled = errors.New("microphone disabled")
	// ErrUnknownLanguage is returned for languages the selector does not offer
	ErrUnknownLanguage = errors.New("unsupported language")
)

// Capture is the speech input side
type Capture interface {
	Start(languageCode string) error
	Stop()
	Reset()
	SendAudio(pcm []byte) error
	Snapshot() capture.Session
	OnChange(fn func(capture.Session))
	OnTranscript(fn func(string))
}

// Speaker is the speech output side
type Speaker interface {
	Speak(ctx context.Context, req tts.SpeechRequest) (tts.Result, error)
	StopSpeaking()
	Speaking() bool
	OnSpeakingChange(fn func(bool))
}

// State is what the UI renders
type State struct {
	Language    string          `json:"language"`
	MicEnabled  bool            `json:"mic_enabled"`
	Listening   bool            `json:"listening"`
	Speaking    bool            `json:"speaking"`
	Supported   bool            `json:"supported"`
	Status      string          `json:"status"`
	Capture     capture.Session `json:"capture"`
	SpeechError tts.ErrorKind   `json:"speech_error,omitempty"`
}

// Panel composes a capture controller and a speech orchestrator
type Panel struct {
	cfg     *config.Config
	capture Capture
	speaker Speaker
	logger  zerolog.Logger

	mu          sync.Mutex
	language    string
	speechError tts.ErrorKind
	listeners   []func(State)
	handlers    []func(string)
}

// New wires the panel into both sides
func New(cfg *config.Config, c Capture, s Speaker) *Panel {
	p := &Panel{
		cfg:      cfg,
		capture:  c,
		speaker:  s,
		language: cfg.DefaultLanguage,
		logger:   observability.Component("voicepanel"),
	}
	c.OnChange(func(capture.Session) { p.publish() })
	c.OnTranscript(p.forwardTranscript)
	s.OnSpeakingChange(func(bool) { p.publish() })
	return p
}

// OnChange registers a UI listener
func (p *Panel) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// OnTranscript registers the consumer of final transcripts
func (p *Panel) OnTranscript(fn func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// Language returns the selected language tag
func (p *Panel) Language() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.language
}

// SetLanguage switches the selector. It applies from the next capture or speak call.
func (p *Panel) SetLanguage(code string) error {
	for _, lang := range speechtext.Supported().SpeechToText {
		if lang.Code == code {
			p.mu.Lock()
			p.language = code
			p.mu.Unlock()
			p.publish()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownLanguage, code)
}

// PressMic toggles capture. While speaking, or on a host without recognition,
// it returns ErrMicDisabled.
func (p *Panel) PressMic() error {
	snap := p.capture.Snapshot()
	if !snap.Supported {
		return ErrMicDisabled
	}
	if p.speaker.Speaking() {
		return ErrMicDisabled
	}
	if snap.Listening {
		p.capture.Stop()
		return nil
	}

	p.mu.Lock()
	p.speechError = ""
	lang := p.language
	p.mu.Unlock()

	return p.capture.Start(lang)
}

// Audio forwards captured PCM; audio arriving while the tutor speaks is dropped
func (p *Panel) Audio(pcm []byte) error {
	if p.speaker.Speaking() {
		return nil
	}
	return p.capture.SendAudio(pcm)
}

// StopMic ends listening. Unlike PressMic it works while the tutor speaks, so a
// capture that outlived the start of speech can still be closed.
func (p *Panel) StopMic() {
	p.capture.Stop()
}

// Speak stops capture and says text in the selected language
func (p *Panel) Speak(ctx context.Context, text string) (tts.Result, error) {
	return p.SpeakIn(ctx, text, p.Language())
}

// SpeakIn is Speak with an explicit language, used for Telugu explanations
func (p *Panel) SpeakIn(ctx context.Context, text, languageCode string) (tts.Result, error) {
	p.capture.Stop()

	req := tts.NewSpeechRequest(p.cfg, text, languageCode)
	result, err := p.speaker.Speak(ctx, req)

	p.mu.Lock()
	p.speechError = ""
	var synthErr *tts.SynthesisError
	if errors.As(err, &synthErr) {
		p.speechError = synthErr.Kind
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn().Err(err).Msg("speech output unavailable, text only")
	}
	p.publish()
	return result, err
}

// StopSpeaking cuts off speech output
func (p *Panel) StopSpeaking() {
	p.speaker.StopSpeaking()
}

// ResetTranscript clears the capture transcripts
func (p *Panel) ResetTranscript() {
	p.capture.Reset()
}

// Snapshot returns the current UI state
func (p *Panel) Snapshot() State {
	session := p.capture.Snapshot()
	speaking := p.speaker.Speaking()

	p.mu.Lock()
	lang := p.language
	speechErr := p.speechError
	p.mu.Unlock()

	st := State{
		Language:    lang,
		MicEnabled:  session.Supported && !speaking,
		Listening:   session.Listening,
		Speaking:    speaking,
		Supported:   session.Supported,
		Capture:     session,
		SpeechError: speechErr,
	}
	st.Status = statusLine(st)
	return st
}

func (p *Panel) publish() {
	st := p.Snapshot()

	p.mu.Lock()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (p *Panel) forwardTranscript(text string) {
	p.mu.Lock()
	handlers := slices.Clone(p.handlers)
	p.mu.Unlock()

	for _, fn := range handlers {
		fn(text)
	}
}

var captureErrorStatus = map[capture.ErrorKind]string{
	capture.ErrorNoSpeech:           "No speech detected. Tap the microphone and try again.",
	capture.ErrorAudioCaptureDenied: "No microphone was found.",
	capture.ErrorPermissionDenied:   "Microphone permission denied.",
	capture.ErrorNetwork:            "Network error during speech recognition.",
	capture.ErrorOther:              "Speech recognition failed. Tap the microphone to retry.",
}

func statusLine(st State) string {
	switch {
	case !st.Supported:
		return "Voice input is not supported here. Please type your message."
	case st.Speaking:
		return "Speaking..."
	case st.Listening && st.Capture.InterimTranscript != "":
		return "Listening: " + st.Capture.InterimTranscript
	case st.Listening:
		return "Listening..."
	}
	if msg, ok := captureErrorStatus[st.Capture.Error]; ok {
		return msg
	}
	if st.SpeechError != "" {
		return "Audio unavailable. Showing text only."
	}
	return "Tap the microphone to speak."
}
