package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/resilience"
)

func cartesiaConfig() *config.Config {
	return &config.Config{
		CartesiaAPIKey:             "test-key",
		CartesiaVoiceID:            "voice-1",
		CartesiaModelID:            "sonic",
		TutorAPITimeout:            5,
		CircuitBreakerMaxFailures:  2,
		CircuitBreakerResetTimeout: 30,
	}
}

func TestCartesiaClient_Render(t *testing.T) {
	var got CartesiaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "test-key" {
			t.Errorf("Expected API key header, got %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Cartesia-Version") == "" {
			t.Error("Expected Cartesia-Version header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(audio.EncodeWAV(make([]byte, 480), cartesiaSampleRate))
	}))
	defer server.Close()

	client := NewCartesiaClient(cartesiaConfig())
	client.apiURL = server.URL

	res, err := client.Render(context.Background(), SpeechRequest{Text: "Good job!!", LanguageCode: "en-IN"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	defer res.Release()

	if res.Format != audio.FormatWAV {
		t.Errorf("Expected WAV clip, got %s", res.Format)
	}
	if got.Transcript != "Good job!" {
		t.Errorf("Expected prepared transcript, got %q", got.Transcript)
	}
	if got.Voice.ID != "voice-1" || got.ModelID != "sonic" || got.Language != "en" {
		t.Errorf("Unexpected request %+v", got)
	}
	if got.OutputFormat.Container != "wav" || got.OutputFormat.SampleRate != cartesiaSampleRate {
		t.Errorf("Unexpected output format %+v", got.OutputFormat)
	}
}

func TestCartesiaClient_WrapsRawPCM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 960))
	}))
	defer server.Close()

	client := NewCartesiaClient(cartesiaConfig())
	client.apiURL = server.URL

	res, err := client.Render(context.Background(), SpeechRequest{Text: "hello", LanguageCode: "en-US"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	info, err := audio.ParseWAV(res.Data())
	if err != nil {
		t.Fatalf("Expected WAV wrapper: %v", err)
	}
	if info.SampleRate != cartesiaSampleRate {
		t.Errorf("Expected %d Hz, got %d", cartesiaSampleRate, info.SampleRate)
	}
}

func TestCartesiaClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewCartesiaClient(cartesiaConfig())
	client.apiURL = server.URL

	for i := 0; i < 2; i++ {
		if _, err := client.Render(context.Background(), SpeechRequest{Text: "hi", LanguageCode: "en-US"}); err == nil {
			t.Fatal("Expected error from failing Cartesia")
		}
	}
	_, err := client.Render(context.Background(), SpeechRequest{Text: "hi", LanguageCode: "en-US"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after repeated failures, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 upstream calls, got %d", calls.Load())
	}
}
