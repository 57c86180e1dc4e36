package app

import (
	"testing"

	"github.com/lexiqai/voicetutor/internal/config"
)

func tierNames(c *Components) []string {
	names := make([]string, 0, len(c.Strategies))
	for _, s := range c.Strategies {
		names = append(names, s.Name())
	}
	return names
}

func TestBuild_TierOrder(t *testing.T) {
	tests := []struct {
		name     string
		cartesia string
		want     []string
	}{
		{"without cartesia", "", []string{"backend", "synthesis"}},
		{"with cartesia", "key", []string{"backend", "cartesia", "synthesis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				TutorAPIURL:       "http://localhost:8000",
				TutorAPITimeout:   5,
				CartesiaAPIKey:    tt.cartesia,
				SynthCommand:      "definitely-not-installed-synth",
				CaptureSampleRate: 16000,
			}
			got := tierNames(Build(cfg))
			if len(got) != len(tt.want) {
				t.Fatalf("tiers = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("tiers = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestBuild_RecognizerFallsBackToUpload(t *testing.T) {
	cfg := &config.Config{TutorAPIURL: "http://localhost:8000", TutorAPITimeout: 5, CaptureSampleRate: 16000}
	c := Build(cfg)

	if c.Recognizer == nil || c.Recognizer.Name() != "upload" {
		t.Fatalf("expected upload recognizer without a Deepgram key, got %v", c.Recognizer)
	}
	if _, ok := c.HealthChecks()["deepgram"]; ok {
		t.Error("deepgram check should only be registered when configured")
	}
	if !c.Services().PaceAudio {
		t.Error("server sessions should pace audio")
	}
}
