package capture

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is a capture failure surfaced to the user
type ErrorKind string

const (
	ErrorNone               ErrorKind = ""
	ErrorUnsupported        ErrorKind = "unsupported"
	ErrorNoSpeech           ErrorKind = "no-speech"
	ErrorAudioCaptureDenied ErrorKind = "audio-capture-denied"
	ErrorPermissionDenied   ErrorKind = "permission-denied"
	ErrorNetwork            ErrorKind = "network"
	ErrorOther              ErrorKind = "other"
)

// Platform error codes reported by recognizers
const (
	CodeNoSpeech     = "no-speech"
	CodeAudioCapture = "audio-capture"
	CodeNotAllowed   = "not-allowed"
	CodeNetwork      = "network"
	CodeAborted      = "aborted"
)

var platformErrors = map[string]ErrorKind{
	CodeNoSpeech:     ErrorNoSpeech,
	CodeAudioCapture: ErrorAudioCaptureDenied,
	CodeNotAllowed:   ErrorPermissionDenied,
	CodeNetwork:      ErrorNetwork,
}

// MapPlatformError translates a recognizer error code; unknown codes become other
func MapPlatformError(code string) ErrorKind {
	if kind, ok := platformErrors[code]; ok {
		return kind
	}
	return ErrorOther
}

var (
	// ErrAlreadyListening is returned by Start during an active capture session
	ErrAlreadyListening = errors.New("already listening")
	// ErrNotListening is returned when audio arrives with no capture session
	ErrNotListening = errors.New("not listening")
	// ErrStreamClosed is returned by streams after they ended
	ErrStreamClosed = errors.New("recognition stream closed")
)

// PlatformError carries a recognizer error code out of Start
type PlatformError struct {
	Code string
	Err  error
}

func (e *PlatformError) Error() string {
	if e.Err == nil {
		return "recognizer error: " + e.Code
	}
	return fmt.Sprintf("recognizer error %s: %v", e.Code, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// Options configure one recognition stream
type Options struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
	SampleRate      int
	// Hints are words and phrases the recognizer should favour
	Hints []string
}

// Segment is one piece of recognized speech. Final segments are never revised.
type Segment struct {
	Text       string
	Final      bool
	Confidence float64
}

// EventType tags stream events
type EventType int

const (
	EventResult EventType = iota
	EventError
	EventEnd
)

// Event is delivered by a Stream. An EventResult carries every segment of one update;
// interim segments in it replace the previous preview entirely.
type Event struct {
	Type     EventType
	Segments []Segment
	Code     string
	Err      error
}

// Recognizer is a speech recognition capability
type Recognizer interface {
	Name() string
	Supported() bool
	Start(ctx context.Context, opts Options) (Stream, error)
}

// Stream is one running recognition. Events is closed after the EventEnd event.
type Stream interface {
	SendAudio(pcm []byte) error
	Events() <-chan Event
	Stop() error
}

// FirstSupported returns the first recognizer available on this host, or nil
func FirstSupported(recognizers ...Recognizer) Recognizer {
	for _, r := range recognizers {
		if r != nil && r.Supported() {
			return r
		}
	}
	return nil
}
