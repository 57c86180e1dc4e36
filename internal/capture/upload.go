package capture

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
)

// SpeechToTextAPI is the tutor backend's transcription endpoint
type SpeechToTextAPI interface {
	SpeechToText(ctx context.Context, audio []byte, filename string) (*tutorapi.SpeechToTextResponse, error)
}

// UploadRecognizer buffers a whole utterance and transcribes it in one upload.
// It produces no interim results.
type UploadRecognizer struct {
	api        SpeechToTextAPI
	bufferSize int
	vad        audio.VADConfig
	logger     zerolog.Logger
}

// NewUploadRecognizer uses the configured buffer and VAD settings
func NewUploadRecognizer(api SpeechToTextAPI, cfg *config.Config) *UploadRecognizer {
	vad := *audio.DefaultVADConfig()
	vad.EnergyThreshold = cfg.VADEnergyThreshold
	vad.SilenceFrames = cfg.VADSilenceFrames
	vad.FrameSize = cfg.CaptureSampleRate / 50 // 20ms frames

	return &UploadRecognizer{
		api:        api,
		bufferSize: cfg.AudioBufferSize,
		vad:        vad,
		logger:     observability.Component("upload-stt"),
	}
}

func (u *UploadRecognizer) Name() string { return "upload" }

// Supported reports whether a transcription backend is wired
func (u *UploadRecognizer) Supported() bool { return u.api != nil }

// Start returns a stream that records until Stop or, in non-continuous mode, until
// the speaker pauses
func (u *UploadRecognizer) Start(ctx context.Context, opts Options) (Stream, error) {
	vad := u.vad
	return &uploadStream{
		ctx:    ctx,
		api:    u.api,
		opts:   opts,
		buffer: audio.NewRingBuffer(u.bufferSize),
		vad:    audio.NewVADDetector(&vad),
		events: make(chan Event, 4),
		logger: u.logger.With().Str("lang", opts.Language).Logger(),
	}, nil
}

type uploadStream struct {
	ctx    context.Context
	api    SpeechToTextAPI
	opts   Options
	buffer *audio.RingBuffer
	logger zerolog.Logger
	events chan Event

	mu       sync.Mutex
	vad      *audio.VADDetector
	stopping bool
	stopOnce sync.Once
}

func (s *uploadStream) Events() <-chan Event { return s.events }

func (s *uploadStream) SendAudio(pcm []byte) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	event := s.vad.Feed(pcm)
	s.mu.Unlock()

	if n := s.buffer.Write(pcm); n < len(pcm) {
		s.logger.Warn().Int64("dropped", s.buffer.Dropped()).Msg("capture buffer full")
	}

	if event == audio.VADSpeechEnded && !s.opts.Continuous {
		return s.Stop()
	}
	return nil
}

// Stop ends recording; transcription runs in the background
func (s *uploadStream) Stop() error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		go s.finish()
	})
	return nil
}

func (s *uploadStream) finish() {
	defer close(s.events)
	defer func() { s.events <- Event{Type: EventEnd} }()

	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	heard := s.vad.HeardSpeech()
	s.mu.Unlock()

	pcm := s.buffer.Drain()
	if !heard || len(pcm) == 0 {
		s.events <- Event{Type: EventError, Code: CodeNoSpeech}
		return
	}

	wav := audio.EncodeWAV(pcm, s.opts.SampleRate)
	s.logger.Debug().
		Int("bytes", len(wav)).
		Dur("duration", audio.PCMDuration(len(pcm), s.opts.SampleRate)).
		Msg("uploading utterance")

	resp, err := s.api.SpeechToText(s.ctx, wav, "recording.wav")
	if err != nil {
		s.events <- Event{Type: EventError, Code: CodeNetwork, Err: err}
		return
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		s.events <- Event{Type: EventError, Code: CodeNoSpeech}
		return
	}
	s.events <- Event{
		Type:     EventResult,
		Segments: []Segment{{Text: text, Final: true, Confidence: resp.Confidence}},
	}
}
