// Package session runs one voice tutoring conversation over a WebSocket: capture,
// tutor round trips and speech output for a single student.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/capture"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/playback"
	"github.com/lexiqai/voicetutor/internal/speechtext"
	"github.com/lexiqai/voicetutor/internal/tts"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
	"github.com/lexiqai/voicetutor/internal/voicepanel"
)

// teluguSpeech is the voice used for correction explanations
const teluguSpeech = "te-IN"

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 120 * time.Second
	readLimit    = 2 << 20
)

// TutorAPI is what a session needs from the tutoring backend
type TutorAPI interface {
	Chat(ctx context.Context, req tutorapi.ChatRequest) (*tutorapi.ChatResponse, error)
}

// Services are shared by every session
type Services struct {
	Config     *config.Config
	Tutor      TutorAPI
	Recognizer capture.Recognizer
	Strategies []tts.Strategy
	// PaceAudio holds the playback slot for each clip's duration
	PaceAudio bool
}

// Conn is the subset of *websocket.Conn a session uses
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is one connected student
type Session struct {
	id     string
	conn   Conn
	svc    *Services
	logger zerolog.Logger

	panel   *voicepanel.Panel
	capture *capture.Controller
	speaker *tts.Orchestrator
	player  *playback.Controller
	metrics *observability.SessionMetrics

	ctx    context.Context
	cancel context.CancelFunc

	outbound    chan ServerMessage
	transcripts chan string
	wg          sync.WaitGroup

	mu        sync.RWMutex
	studentID string
	lastReply *tutorapi.ChatResponse
}

// New assembles a session around conn
func New(conn Conn, svc *Services) *Session {
	id := observability.NewCorrelationID()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:          id,
		conn:        conn,
		svc:         svc,
		logger:      observability.WithCorrelationID(id).With().Str("component", "session").Logger(),
		ctx:         ctx,
		cancel:      cancel,
		outbound:    make(chan ServerMessage, 256),
		transcripts: make(chan string, 8),
		studentID:   svc.Config.DefaultStudentID,
		metrics:     observability.NewSessionMetrics(id),
	}

	s.player = playback.NewController(NewWebSocketSink(s.sendAudio, svc.PaceAudio))
	s.speaker = tts.NewOrchestrator(s.player, svc.Strategies...)
	s.capture = capture.NewController(svc.Recognizer, svc.Config.CaptureSampleRate)
	s.capture.SetHints(speechtext.RecognitionHints(""))
	s.panel = voicepanel.New(svc.Config, s.capture, s.speaker)

	s.panel.OnChange(func(st voicepanel.State) {
		s.trySend(ServerMessage{Type: TypeState, State: &st})
	})
	s.panel.OnTranscript(s.enqueueTranscript)

	return s
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Panel exposes the voice panel, mainly for tests
func (s *Session) Panel() *voicepanel.Panel { return s.panel }

// Run serves the connection until the client leaves or ctx ends
func (s *Session) Run(ctx context.Context) {
	defer s.close()

	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	s.wg.Add(2)
	go s.writeLoop()
	go s.processTranscripts()

	st := s.panel.Snapshot()
	s.trySend(ServerMessage{Type: TypeState, SessionID: s.id, State: &st})
	s.logger.Info().Bool("capture_supported", st.Supported).Msg("voice session started")

	s.readLoop()
}

func (s *Session) readLoop() {
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("websocket read error")
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(CodeBadMessage, "invalid JSON message")
			continue
		}
		s.handle(msg)

		if s.ctx.Err() != nil {
			return
		}
	}
}

func (s *Session) handle(msg ClientMessage) {
	switch msg.Type {
	case TypeStart:
		if id := strings.TrimSpace(msg.StudentID); id != "" {
			s.mu.Lock()
			s.studentID = id
			s.mu.Unlock()
		}
		if msg.Language != "" {
			s.setLanguage(msg.Language)
		}
		if msg.Context != "" {
			s.capture.SetHints(speechtext.RecognitionHints(msg.Context))
		}
		st := s.panel.Snapshot()
		s.trySend(ServerMessage{Type: TypeState, SessionID: s.id, State: &st})

	case TypeLanguage:
		s.setLanguage(msg.Language)

	case TypeMicStart:
		if s.panel.Snapshot().Listening {
			return
		}
		if err := s.panel.PressMic(); err != nil {
			s.sendError(CodeMicDisabled, err.Error())
		}

	case TypeMicStop:
		s.panel.StopMic()

	case TypeAudio:
		pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			s.sendError(CodeBadMessage, "audio must be base64 PCM16")
			return
		}
		s.metrics.RecordAudioBytes("in", len(pcm))
		if err := s.panel.Audio(pcm); err != nil && !errors.Is(err, capture.ErrNotListening) {
			s.logger.Debug().Err(err).Msg("audio dropped")
		}

	case TypeSpeak:
		s.speakAsync(msg.Text)

	case TypePronounce:
		if strings.TrimSpace(msg.Guide) != "" {
			s.speakAsync(speechtext.PronunciationGuideText(msg.Text, msg.Guide))
		} else {
			s.speakAsync(speechtext.PronunciationText(msg.Word))
		}

	case TypePractice:
		s.speakAsync(speechtext.PracticeText(msg.Sentences))

	case TypeBilingual:
		s.speakAsync(speechtext.BilingualText(msg.Text, msg.Telugu))

	case TypeExplain:
		s.mu.RLock()
		explanation := s.lastReply.TeluguExplanation()
		s.mu.RUnlock()
		if explanation == "" {
			s.sendError(CodeBadMessage, "no Telugu explanation to play")
			return
		}
		s.speakAsyncIn(explanation, teluguSpeech)

	case TypeStopSpeaking:
		s.panel.StopSpeaking()

	case TypeReset:
		s.panel.ResetTranscript()

	default:
		s.sendError(CodeBadMessage, "unknown message type "+msg.Type)
	}
}

func (s *Session) setLanguage(code string) {
	if err := s.panel.SetLanguage(code); err != nil {
		s.sendError(CodeUnknownLanguage, err.Error())
	}
}

func (s *Session) speakAsync(text string) {
	s.speakAsyncIn(text, "")
}

// speakAsyncIn speaks in lang, or the panel's language when lang is empty
func (s *Session) speakAsyncIn(text, lang string) {
	if strings.TrimSpace(text) == "" {
		s.sendError(CodeBadMessage, "nothing to speak")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.speakIn(text, lang)
	}()
}

func (s *Session) speak(text string) {
	s.speakIn(text, "")
}

func (s *Session) speakIn(text, lang string) {
	if lang == "" {
		lang = s.panel.Language()
	}
	result, err := s.panel.SpeakIn(s.ctx, text, lang)
	if err != nil {
		var synthErr *tts.SynthesisError
		if errors.As(err, &synthErr) {
			s.sendError(CodeSpeech, string(synthErr.Kind))
		}
		return
	}
	if result.Degraded {
		s.logger.Info().Str("tier", result.Tier).Int("failed_tiers", len(result.Attempts)).Msg("speech degraded")
	}
}

func (s *Session) enqueueTranscript(text string) {
	select {
	case s.transcripts <- text:
	case <-s.ctx.Done():
	default:
		s.logger.Warn().Str("transcript", text).Msg("transcript queue full, dropping")
	}
}

// processTranscripts sends each final transcript to the tutor and speaks the reply
func (s *Session) processTranscripts() {
	defer s.wg.Done()

	for {
		select {
		case text := <-s.transcripts:
			s.trySend(ServerMessage{Type: TypeTranscript, Transcript: text})
			s.askTutor(text)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) askTutor(text string) {
	if s.svc.Tutor == nil {
		return
	}

	s.mu.RLock()
	studentID := s.studentID
	s.mu.RUnlock()

	s.logger.Info().Str("student_id", studentID).Int("chars", len(text)).Msg("sending transcript to tutor")

	reply, err := s.svc.Tutor.Chat(s.ctx, tutorapi.ChatRequest{
		Message:   text,
		StudentID: studentID,
		IsVoice:   true,
	})
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("tutor chat failed")
			s.sendError(CodeTutorUnavailable, "the tutor is unavailable, please try again")
		}
		return
	}

	s.mu.Lock()
	s.lastReply = reply
	s.mu.Unlock()

	s.trySend(ServerMessage{Type: TypeTutorReply, Reply: reply})
	if spoken := reply.SpokenReply(); spoken != "" {
		s.speak(spoken)
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn().Err(err).Str("type", msg.Type).Msg("websocket write failed")
				s.cancel()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// sendAudio blocks until the chunk is queued, playback is cancelled or the session ends
func (s *Session) sendAudio(ctx context.Context, msg ServerMessage) error {
	select {
	case s.outbound <- msg:
		if msg.Audio != "" {
			s.metrics.RecordAudioBytes("out", base64.StdEncoding.DecodedLen(len(msg.Audio)))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// trySend queues a control message, blocking only while the session is alive
func (s *Session) trySend(msg ServerMessage) {
	select {
	case s.outbound <- msg:
	case <-s.ctx.Done():
	}
}

func (s *Session) sendError(code, message string) {
	s.trySend(ServerMessage{Type: TypeError, Code: code, Message: message})
}

func (s *Session) close() {
	s.cancel()
	s.panel.StopSpeaking()
	s.capture.Close()
	s.wg.Wait()
	_ = s.conn.Close()
	s.metrics.End()
	s.logger.Info().Msg("voice session ended")
}
