package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/config"
)

// fakeLiveConn stands in for the Deepgram socket. Stop mimics the SDK by firing the
// close callback.
type fakeLiveConn struct {
	mu        sync.Mutex
	written   int
	finalized int
	stopped   int
	onStop    func()
}

func (f *fakeLiveConn) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written += len(p)
	return len(p), nil
}

func (f *fakeLiveConn) Finalize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized++
	return nil
}

func (f *fakeLiveConn) Stop() {
	f.mu.Lock()
	f.stopped++
	onStop := f.onStop
	f.mu.Unlock()
	if onStop != nil {
		onStop()
	}
}

func (f *fakeLiveConn) counts() (finalized, stopped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized, f.stopped
}

func newTestDeepgramStream(continuous bool) (*deepgramStream, *fakeLiveConn) {
	s := newDeepgramStream(continuous, zerolog.Nop())
	s.finalizeTimeout = 500 * time.Millisecond
	conn := &fakeLiveConn{}
	handler := &messageCallbackHandler{stream: s}
	conn.onStop = func() { _ = handler.Close(&msginterfaces.CloseResponse{}) }
	s.conn = conn
	return s, conn
}

func deepgramResult(text string, final, speechFinal, fromFinalize bool) *msginterfaces.MessageResponse {
	return &msginterfaces.MessageResponse{
		Type:         "Results",
		IsFinal:      final,
		SpeechFinal:  speechFinal,
		FromFinalize: fromFinalize,
		Channel: msginterfaces.Channel{
			Alternatives: []msginterfaces.Alternative{{Transcript: text, Confidence: 0.93}},
		},
	}
}

func nextEvent(t *testing.T, s *deepgramStream) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestDeepgramStream_FinalsAreSpaced(t *testing.T) {
	s, _ := newTestDeepgramStream(true)

	s.handleMessage(deepgramResult("hello", true, false, false))
	s.handleMessage(deepgramResult("world", true, false, false))

	first := nextEvent(t, s)
	second := nextEvent(t, s)
	if got := first.Segments[0].Text; got != "hello" {
		t.Errorf("first final = %q", got)
	}
	if got := second.Segments[0].Text; got != " world" {
		t.Errorf("second final = %q, want leading space", got)
	}
	if !second.Segments[0].Final {
		t.Error("expected final segment")
	}
}

func TestDeepgramStream_EmptyInterimClearsPreview(t *testing.T) {
	s, _ := newTestDeepgramStream(true)

	s.handleMessage(deepgramResult("", false, false, false))
	ev := nextEvent(t, s)
	if ev.Type != EventResult || len(ev.Segments) != 0 {
		t.Errorf("expected empty result event, got %+v", ev)
	}

	// an empty final carries nothing to report
	s.handleMessage(deepgramResult("", true, false, false))
	select {
	case ev := <-s.Events():
		t.Errorf("unexpected event %+v", ev)
	default:
	}
}

func TestDeepgramStream_StopDeliversFlushedFinal(t *testing.T) {
	rec := &fakeRecognizer{supported: true}
	c := NewController(rec, 16000)
	var transcripts []string
	var mu sync.Mutex
	c.OnTranscript(func(text string) {
		mu.Lock()
		transcripts = append(transcripts, text)
		mu.Unlock()
	})

	s, conn := newTestDeepgramStream(false)
	rec.next = s
	if err := c.Start("en-US"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.handleMessage(deepgramResult("hello wor", false, false, false))
	c.Stop()

	if err := s.SendAudio([]byte{1, 2}); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("audio after stop: got %v, want ErrStreamClosed", err)
	}

	// Deepgram answers the finalize request after the mic is released
	s.handleMessage(deepgramResult("hello world", true, false, true))

	deadline := time.Now().Add(2 * time.Second)
	for c.Snapshot().Listening && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	snap := c.Snapshot()
	if snap.Listening || snap.State != StateFinalized {
		t.Fatalf("expected finalized session, got %+v", snap)
	}
	if snap.FinalTranscript != "hello world" || snap.InterimTranscript != "" {
		t.Errorf("final=%q interim=%q", snap.FinalTranscript, snap.InterimTranscript)
	}
	finalized, stopped := conn.counts()
	if finalized != 1 || stopped != 1 {
		t.Errorf("finalize=%d stop=%d, want 1 each", finalized, stopped)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transcripts) != 1 || transcripts[0] != "hello world" {
		t.Errorf("transcripts = %v", transcripts)
	}
}

func TestDeepgramStream_StopClosesAfterTimeout(t *testing.T) {
	s, conn := newTestDeepgramStream(true)
	s.finalizeTimeout = 20 * time.Millisecond

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	_ = s.Stop()

	events := collect(t, s)
	if len(events) != 1 || events[0].Type != EventEnd {
		t.Errorf("expected a single end event, got %+v", events)
	}
	if finalized, stopped := conn.counts(); finalized != 1 || stopped != 1 {
		t.Errorf("finalize=%d stop=%d, want 1 each", finalized, stopped)
	}
}

func TestDeepgramStream_AutoStop(t *testing.T) {
	tests := []struct {
		name       string
		continuous bool
		trigger    func(s *deepgramStream)
		wantStop   bool
	}{
		{"speech final", false, func(s *deepgramStream) { s.handleMessage(deepgramResult("hi", true, true, false)) }, true},
		{"utterance end", false, func(s *deepgramStream) {
			_ = (&messageCallbackHandler{stream: s}).UtteranceEnd(&msginterfaces.UtteranceEndResponse{})
		}, true},
		{"continuous ignores speech final", true, func(s *deepgramStream) { s.handleMessage(deepgramResult("hi", true, true, false)) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn := newTestDeepgramStream(tt.continuous)
			s.finalizeTimeout = 20 * time.Millisecond
			tt.trigger(s)

			time.Sleep(100 * time.Millisecond)
			finalized, _ := conn.counts()
			if (finalized == 1) != tt.wantStop {
				t.Errorf("finalize calls = %d, want stop=%v", finalized, tt.wantStop)
			}
		})
	}
}

func TestDeepgramStream_ErrorMapsToNetwork(t *testing.T) {
	s, _ := newTestDeepgramStream(false)
	handler := &messageCallbackHandler{stream: s}
	_ = handler.Error(&msginterfaces.ErrorResponse{Type: "Error", ErrMsg: "socket reset"})

	events := collect(t, s)
	if len(events) != 2 || events[0].Type != EventError || events[1].Type != EventEnd {
		t.Fatalf("unexpected events %+v", events)
	}
	if MapPlatformError(events[0].Code) != ErrorNetwork {
		t.Errorf("code %q maps to %q", events[0].Code, MapPlatformError(events[0].Code))
	}
}

func TestDeepgramRecognizer_StartWithKey(t *testing.T) {
	rec := NewDeepgramRecognizer(&config.Config{
		DeepgramAPIKey:             "dg-key",
		DeepgramModel:              "nova-2",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
	})
	if !rec.Supported() {
		t.Fatal("expected recognizer to be supported with a key")
	}

	// a cancelled context fails the connect without touching the network
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream, err := rec.Start(ctx, Options{Language: "en-US", InterimResults: true, SampleRate: 16000, Hints: []string{"tense"}})
	if stream != nil {
		t.Error("expected no stream")
	}
	var pe *PlatformError
	if !errors.As(err, &pe) || pe.Code != CodeNetwork {
		t.Errorf("expected network PlatformError, got %v", err)
	}
}

func TestLiveOptions(t *testing.T) {
	opts := liveOptions("nova-2", Options{
		Language:       "en-IN",
		InterimResults: true,
		SampleRate:     16000,
		Hints:          []string{"tense", "thank you"},
	})

	if opts.Model != "nova-2" || opts.Language != "en-IN" || opts.SampleRate != 16000 || opts.Encoding != "linear16" {
		t.Errorf("unexpected options %+v", opts)
	}
	if !opts.InterimResults || opts.UtteranceEndMs != "1000" || !opts.VadEvents {
		t.Errorf("expected interim results with utterance end events, got %+v", opts)
	}
	if len(opts.Keywords) != 2 || opts.Keywords[1] != "thank you" {
		t.Errorf("keywords = %v", opts.Keywords)
	}
}
