package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/resilience"
)

// DeepgramRecognizer streams linear16 PCM to Deepgram's live API
type DeepgramRecognizer struct {
	apiKey  string
	model   string
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewDeepgramRecognizer creates a recognizer; it is unsupported without an API key
func NewDeepgramRecognizer(cfg *config.Config) *DeepgramRecognizer {
	return &DeepgramRecognizer{
		apiKey: cfg.DeepgramAPIKey,
		model:  cfg.DeepgramModel,
		breaker: resilience.NewCircuitBreaker(
			"deepgram",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		).WithObserver(func(name string, state resilience.CircuitState, failed bool) {
			observability.UpdateCircuitBreakerState(name, int(state))
			if failed {
				observability.IncrementCircuitBreakerFailures(name)
			}
		}),
		logger: observability.Component("deepgram"),
	}
}

func (d *DeepgramRecognizer) Name() string { return "deepgram" }

// Supported reports whether an API key is configured
func (d *DeepgramRecognizer) Supported() bool {
	return d.apiKey != ""
}

// Start opens a live transcription socket
func (d *DeepgramRecognizer) Start(ctx context.Context, opts Options) (Stream, error) {
	s := newDeepgramStream(opts.Continuous, d.logger.With().Str("lang", opts.Language).Logger())

	tOptions := liveOptions(d.model, opts)

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		stream:                 s,
	}

	err := d.breaker.Call(func() error {
		client, err := listenClient.NewWSUsingCallback(ctx, d.apiKey, &interfaces.ClientOptions{}, tOptions, callback)
		if err != nil {
			return fmt.Errorf("failed to create Deepgram client: %w", err)
		}
		if client == nil {
			return fmt.Errorf("deepgram rejected the live transcription options")
		}
		if !client.Connect() {
			return fmt.Errorf("failed to connect to Deepgram")
		}
		s.conn = client
		return nil
	})
	if err != nil {
		return nil, &PlatformError{Code: CodeNetwork, Err: err}
	}

	d.logger.Info().Str("model", d.model).Str("lang", opts.Language).Msg("deepgram stream started")
	return s, nil
}

// liveOptions maps capture options onto a Deepgram live request. Hints become
// keywords so lesson vocabulary is favoured.
func liveOptions(model string, opts Options) *interfaces.LiveTranscriptionOptions {
	return &interfaces.LiveTranscriptionOptions{
		Keywords:       opts.Hints,
		Model:          model,
		Language:       opts.Language,
		Punctuate:      true,
		InterimResults: opts.InterimResults,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     opts.SampleRate,
	}
}

// messageCallbackHandler embeds the default handler and overrides what a capture
// session needs
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	stream *deepgramStream
}

func (m *messageCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	m.stream.handleMessage(msg)
	return nil
}

func (m *messageCallbackHandler) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	if !m.stream.continuous {
		go m.stream.Stop()
	}
	return nil
}

func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	m.stream.fail(CodeNetwork, fmt.Errorf("deepgram: %+v", errorResponse))
	return nil
}

func (m *messageCallbackHandler) Close(*msginterfaces.CloseResponse) error {
	m.stream.end()
	return nil
}

// finalizeTimeout bounds the wait for Deepgram to flush its last result after Stop
const finalizeTimeout = 2 * time.Second

// liveConn is the part of the Deepgram live client a stream drives
type liveConn interface {
	Write(p []byte) (int, error)
	Finalize() error
	Stop()
}

type deepgramStream struct {
	conn            liveConn
	continuous      bool
	finalizeTimeout time.Duration
	logger          zerolog.Logger

	mu       sync.Mutex
	events   chan Event
	stopping bool
	closed   bool
	finals   int
	flushed  chan struct{}
}

func newDeepgramStream(continuous bool, logger zerolog.Logger) *deepgramStream {
	return &deepgramStream{
		continuous:      continuous,
		finalizeTimeout: finalizeTimeout,
		logger:          logger,
		events:          make(chan Event, 64),
		flushed:         make(chan struct{}),
	}
}

func (s *deepgramStream) Events() <-chan Event { return s.events }

func (s *deepgramStream) SendAudio(pcm []byte) error {
	s.mu.Lock()
	done := s.closed || s.stopping
	s.mu.Unlock()
	if done {
		return ErrStreamClosed
	}

	if _, err := s.conn.Write(pcm); err != nil {
		return fmt.Errorf("failed to send audio to Deepgram: %w", err)
	}
	return nil
}

// Stop asks Deepgram to finalize buffered audio, then closes the socket once the
// finalize result arrives or finalizeTimeout passes. The stream ends from the
// socket's close callback, so results flushed before it are still delivered.
func (s *deepgramStream) Stop() error {
	s.mu.Lock()
	if s.closed || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	if err := s.conn.Finalize(); err != nil {
		s.logger.Debug().Err(err).Msg("finalize failed, closing stream")
		s.markFlushed()
	}
	go s.closeAfterFlush()
	return nil
}

func (s *deepgramStream) closeAfterFlush() {
	timer := time.NewTimer(s.finalizeTimeout)
	select {
	case <-s.flushed:
	case <-timer.C:
		s.logger.Debug().Msg("no finalize result before timeout")
	}
	timer.Stop()

	// sends CloseStream; the Close callback ends the stream
	s.conn.Stop()
	s.end()
}

func (s *deepgramStream) markFlushed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.flushed:
	default:
		close(s.flushed)
	}
}

func (s *deepgramStream) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return
	}
	alt := msg.Channel.Alternatives[0]

	s.mu.Lock()
	var segments []Segment
	if alt.Transcript != "" {
		text := alt.Transcript
		if msg.IsFinal {
			// Deepgram finals carry no separator between utterance chunks
			if s.finals > 0 {
				text = " " + text
			}
			s.finals++
		}
		segments = append(segments, Segment{Text: text, Final: msg.IsFinal, Confidence: alt.Confidence})
	}
	s.mu.Unlock()

	if len(segments) > 0 || !msg.IsFinal {
		s.emit(Event{Type: EventResult, Segments: segments})
	}

	if msg.FromFinalize {
		s.markFlushed()
	}

	if msg.SpeechFinal && !s.continuous {
		s.logger.Debug().Float64("duration", msg.Duration).Msg("speech final, ending stream")
		go s.Stop()
	}
}

func (s *deepgramStream) fail(code string, err error) {
	s.emit(Event{Type: EventError, Code: code, Err: err})
	s.end()
}

func (s *deepgramStream) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Msg("capture event channel full, dropping update")
	}
}

// end delivers EventEnd once and closes the channel
func (s *deepgramStream) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	select {
	case s.events <- Event{Type: EventEnd}:
	default:
	}
	close(s.events)
}
