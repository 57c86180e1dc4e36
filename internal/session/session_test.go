package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/capture"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/playback"
	"github.com/lexiqai/voicetutor/internal/speechtext"
	"github.com/lexiqai/voicetutor/internal/tts"
	"github.com/lexiqai/voicetutor/internal/tutorapi"
)

// fakeConn feeds inbound frames from a channel and records outbound ones
type fakeConn struct {
	in     chan []byte
	out    chan ServerMessage
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan ServerMessage, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.out <- msg
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) send(t *testing.T, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.in <- data
}

// next returns the next outbound message of type typ, skipping others
func (c *fakeConn) next(t *testing.T, typ string) ServerMessage {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.out:
			if msg.Type == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q message", typ)
			return ServerMessage{}
		}
	}
}

type wavStrategy struct{}

func (wavStrategy) Name() string  { return "synthesis" }
func (wavStrategy) Backend() bool { return false }
func (wavStrategy) Render(ctx context.Context, req tts.SpeechRequest) (*playback.Resource, error) {
	pcm := make([]byte, 3200)
	return playback.NewResource(audio.EncodeWAV(pcm, 16000), audio.FormatWAV, "synthesis", nil), nil
}

// languageStrategy records what it is asked to speak
type languageStrategy struct {
	requests chan tts.SpeechRequest
}

func newLanguageStrategy() *languageStrategy {
	return &languageStrategy{requests: make(chan tts.SpeechRequest, 8)}
}

func (*languageStrategy) Name() string  { return "synthesis" }
func (*languageStrategy) Backend() bool { return false }
func (l *languageStrategy) Render(ctx context.Context, req tts.SpeechRequest) (*playback.Resource, error) {
	l.requests <- req
	return wavStrategy{}.Render(ctx, req)
}

func (l *languageStrategy) next(t *testing.T) tts.SpeechRequest {
	t.Helper()
	select {
	case req := <-l.requests:
		return req
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speech request")
		return tts.SpeechRequest{}
	}
}

type failingStrategy struct{}

func (failingStrategy) Name() string  { return "synthesis" }
func (failingStrategy) Backend() bool { return false }
func (failingStrategy) Render(ctx context.Context, req tts.SpeechRequest) (*playback.Resource, error) {
	return nil, errors.New("engine crashed")
}

// scriptedRecognizer finalizes "hello tutor" as soon as it receives audio
type scriptedRecognizer struct {
	mu   sync.Mutex
	opts []capture.Options
}

func (*scriptedRecognizer) Name() string    { return "scripted" }
func (*scriptedRecognizer) Supported() bool { return true }
func (r *scriptedRecognizer) Start(ctx context.Context, opts capture.Options) (capture.Stream, error) {
	r.mu.Lock()
	r.opts = append(r.opts, opts)
	r.mu.Unlock()
	return &scriptedStream{events: make(chan capture.Event, 4)}, nil
}

func (r *scriptedRecognizer) started() []capture.Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capture.Options(nil), r.opts...)
}

type scriptedStream struct {
	events chan capture.Event
	once   sync.Once
}

func (s *scriptedStream) SendAudio(pcm []byte) error {
	s.once.Do(func() {
		s.events <- capture.Event{Type: capture.EventResult, Segments: []capture.Segment{{Text: "hello tutor", Final: true}}}
		s.events <- capture.Event{Type: capture.EventEnd}
		close(s.events)
	})
	return nil
}

func (s *scriptedStream) Events() <-chan capture.Event { return s.events }

func (s *scriptedStream) Stop() error {
	s.once.Do(func() {
		s.events <- capture.Event{Type: capture.EventEnd}
		close(s.events)
	})
	return nil
}

type fakeTutor struct {
	mu       sync.Mutex
	requests []tutorapi.ChatRequest
	reply    *tutorapi.ChatResponse
	err      error
}

func (f *fakeTutor) Chat(ctx context.Context, req tutorapi.ChatRequest) (*tutorapi.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply, nil
	}
	return &tutorapi.ChatResponse{IsCorrect: true, Encouragement: "Great job"}, nil
}

func testServices(tutor TutorAPI, strategies ...tts.Strategy) *Services {
	return &Services{
		Config: &config.Config{
			DefaultLanguage:   "en-US",
			DefaultStudentID:  "guest",
			CaptureSampleRate: 16000,
			SpeechRate:        0.9,
			SpeechPitch:       1,
			SpeechVolume:      1,
		},
		Tutor:      tutor,
		Recognizer: &scriptedRecognizer{},
		Strategies: strategies,
	}
}

func runSession(t *testing.T, svc *Services) (*fakeConn, func()) {
	t.Helper()
	conn := newFakeConn()
	s := New(conn, svc)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	return conn, func() {
		close(conn.in)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("session did not shut down")
		}
	}
}

func TestSession_InitialState(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{}, wavStrategy{}))
	defer stop()

	msg := conn.next(t, TypeState)
	if msg.SessionID == "" {
		t.Error("expected session id on first state message")
	}
	if msg.State == nil || !msg.State.Supported || msg.State.Language != "en-US" {
		t.Errorf("unexpected initial state %+v", msg.State)
	}
}

func TestSession_SpeakStreamsAudio(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{}, wavStrategy{}))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeSpeak, Text: "Good morning"})

	chunk := conn.next(t, TypeAudio)
	if chunk.Format != string(audio.FormatWAV) || chunk.Mime != "audio/wav" || chunk.Seq != 1 {
		t.Errorf("unexpected chunk header %+v", chunk)
	}
	data, err := base64.StdEncoding.DecodeString(chunk.Audio)
	if err != nil {
		t.Fatalf("decode chunk: %v", err)
	}
	if audio.DetectFormat(data) != audio.FormatWAV {
		t.Error("chunk does not start with a WAV header")
	}

	end := conn.next(t, TypeAudioEnd)
	if end.ClipID != chunk.ClipID || end.Stopped {
		t.Errorf("unexpected audio_end %+v", end)
	}
}

func TestSession_SpeechFailureReported(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{}, failingStrategy{}))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeSpeak, Text: "Good morning"})

	msg := conn.next(t, TypeError)
	if msg.Code != CodeSpeech || msg.Message != string(tts.KindSynthesisError) {
		t.Errorf("got %s/%s", msg.Code, msg.Message)
	}
}

func TestSession_TranscriptRoundTrip(t *testing.T) {
	tutor := &fakeTutor{}
	conn, stop := runSession(t, testServices(tutor, wavStrategy{}))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeStart, StudentID: "student-7"})
	conn.send(t, ClientMessage{Type: TypeMicStart})
	conn.send(t, ClientMessage{Type: TypeAudio, Audio: base64.StdEncoding.EncodeToString(make([]byte, 640))})

	if got := conn.next(t, TypeTranscript).Transcript; got != "hello tutor" {
		t.Errorf("transcript = %q", got)
	}
	reply := conn.next(t, TypeTutorReply)
	if reply.Reply == nil || reply.Reply.Encouragement != "Great job" {
		t.Errorf("unexpected reply %+v", reply.Reply)
	}
	conn.next(t, TypeAudioEnd)

	tutor.mu.Lock()
	defer tutor.mu.Unlock()
	if len(tutor.requests) != 1 {
		t.Fatalf("expected 1 chat request, got %d", len(tutor.requests))
	}
	req := tutor.requests[0]
	if req.Message != "hello tutor" || req.StudentID != "student-7" || !req.IsVoice {
		t.Errorf("unexpected chat request %+v", req)
	}
}

func TestSession_TutorFailure(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{err: errors.New("503")}, wavStrategy{}))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeMicStart})
	conn.send(t, ClientMessage{Type: TypeAudio, Audio: base64.StdEncoding.EncodeToString(make([]byte, 640))})

	if msg := conn.next(t, TypeError); msg.Code != CodeTutorUnavailable {
		t.Errorf("code = %s", msg.Code)
	}
}

func TestSession_BadMessages(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{}, wavStrategy{}))
	defer stop()

	conn.in <- []byte("{not json")
	if msg := conn.next(t, TypeError); msg.Code != CodeBadMessage {
		t.Errorf("invalid json: code = %s", msg.Code)
	}

	conn.send(t, ClientMessage{Type: "dance"})
	if msg := conn.next(t, TypeError); !strings.Contains(msg.Message, "dance") {
		t.Errorf("unknown type: message = %s", msg.Message)
	}

	conn.send(t, ClientMessage{Type: TypeAudio, Audio: "***"})
	if msg := conn.next(t, TypeError); msg.Code != CodeBadMessage {
		t.Errorf("bad audio: code = %s", msg.Code)
	}

	conn.send(t, ClientMessage{Type: TypeLanguage, Language: "fr-FR"})
	if msg := conn.next(t, TypeError); msg.Code != CodeUnknownLanguage {
		t.Errorf("language: code = %s", msg.Code)
	}
}

func TestSession_ExplainSpeaksTeluguCorrections(t *testing.T) {
	tutor := &fakeTutor{reply: &tutorapi.ChatResponse{
		Encouragement: "Good try",
		Corrections:   []tutorapi.Correction{
			{OriginalText: "I goed", CorrectedText: "I went", ExplanationTelugu: "గత కాలం"},
		},
	}}
	voice := newLanguageStrategy()
	conn, stop := runSession(t, testServices(tutor, voice))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeExplain})
	if msg := conn.next(t, TypeError); msg.Code != CodeBadMessage {
		t.Errorf("explain before reply: code = %s", msg.Code)
	}

	conn.send(t, ClientMessage{Type: TypeMicStart})
	conn.send(t, ClientMessage{Type: TypeAudio, Audio: base64.StdEncoding.EncodeToString(make([]byte, 640))})
	conn.next(t, TypeTutorReply)
	if req := voice.next(t); req.Text != "Good try. Say: I went." || req.LanguageCode != "en-US" {
		t.Errorf("reply speech = %q in %s", req.Text, req.LanguageCode)
	}
	conn.next(t, TypeAudioEnd)

	conn.send(t, ClientMessage{Type: TypeExplain})
	req := voice.next(t)
	if req.Text != "గత కాలం" || req.LanguageCode != "te-IN" {
		t.Errorf("explanation speech = %q in %s", req.Text, req.LanguageCode)
	}
	conn.next(t, TypeAudioEnd)
}

func TestSession_BilingualSpeech(t *testing.T) {
	voice := newLanguageStrategy()
	conn, stop := runSession(t, testServices(&fakeTutor{}, voice))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeBilingual, Text: "I went home", Telugu: "నేను ఇంటికి వెళ్ళాను"})
	req := voice.next(t)
	if req.Text != "I went home. Telugu explanation: నేను ఇంటికి వెళ్ళాను" || req.LanguageCode != "en-US" {
		t.Errorf("bilingual speech = %q in %s", req.Text, req.LanguageCode)
	}

	conn.send(t, ClientMessage{Type: TypeBilingual})
	if msg := conn.next(t, TypeError); msg.Code != CodeBadMessage {
		t.Errorf("empty bilingual: code = %s", msg.Code)
	}
}

func TestSession_MicStopEndsListening(t *testing.T) {
	conn, stop := runSession(t, testServices(&fakeTutor{}, wavStrategy{}))
	defer stop()

	conn.send(t, ClientMessage{Type: TypeMicStart})
	for msg := conn.next(t, TypeState); !msg.State.Listening; msg = conn.next(t, TypeState) {
	}

	conn.send(t, ClientMessage{Type: TypeMicStop})
	for msg := conn.next(t, TypeState); msg.State.Listening; msg = conn.next(t, TypeState) {
	}
}

func TestSession_StartContextSetsHints(t *testing.T) {
	svc := testServices(&fakeTutor{}, wavStrategy{})
	rec := svc.Recognizer.(*scriptedRecognizer)
	conn, stop := runSession(t, svc)
	defer stop()

	conn.send(t, ClientMessage{Type: TypeStart, Context: "vocabulary lesson"})
	conn.next(t, TypeState)
	conn.send(t, ClientMessage{Type: TypeMicStart})
	for msg := conn.next(t, TypeState); !msg.State.Listening; msg = conn.next(t, TypeState) {
	}

	started := rec.started()
	if len(started) != 1 {
		t.Fatalf("expected 1 recognizer start, got %d", len(started))
	}
	want := speechtext.RecognitionHints("vocabulary lesson")
	if !slices.Equal(started[0].Hints, want) {
		t.Errorf("hints = %v, want %v", started[0].Hints, want)
	}
}

func TestWebSocketSink_StoppedMidClip(t *testing.T) {
	var mu sync.Mutex
	var sent []ServerMessage
	ctx, cancel := context.WithCancel(context.Background())

	sink := NewWebSocketSink(func(ctx context.Context, msg ServerMessage) error {
		mu.Lock()
		sent = append(sent, msg)
		mu.Unlock()
		if msg.Type == TypeAudio {
			cancel()
		}
		return nil
	}, true)

	// one second of audio so pacing would otherwise hold the slot
	res := playback.NewResource(audio.EncodeWAV(make([]byte, 32000), 16000), audio.FormatWAV, "synthesis", nil)
	err := sink.Play(ctx, res)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	last := sent[len(sent)-1]
	if last.Type != TypeAudioEnd || !last.Stopped {
		t.Errorf("expected stopped audio_end, got %+v", last)
	}
}

func TestClipDuration(t *testing.T) {
	wav := audio.EncodeWAV(make([]byte, 16000), 16000)
	if got := clipDuration(audio.FormatWAV, wav); got != 500*time.Millisecond {
		t.Errorf("wav duration = %v", got)
	}
	if got := clipDuration(audio.FormatMP3, make([]byte, 4000)); got != time.Second {
		t.Errorf("mp3 duration = %v", got)
	}
	if got := clipDuration(audio.FormatOgg, make([]byte, 4000)); got != 0 {
		t.Errorf("ogg duration = %v", got)
	}
}
