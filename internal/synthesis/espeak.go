package synthesis

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/observability"
)

const (
	espeakBaseWPM   = 175
	espeakBasePitch = 50
	espeakBaseAmp   = 100
)

// EspeakEngine renders speech with espeak-ng (or a compatible binary)
type EspeakEngine struct {
	binary string
	logger zerolog.Logger

	mu     sync.Mutex
	voices []Voice
}

// NewEspeakEngine uses binary, e.g. "espeak-ng" or "espeak"
func NewEspeakEngine(binary string) *EspeakEngine {
	if binary == "" {
		binary = "espeak-ng"
	}
	return &EspeakEngine{
		binary: binary,
		logger: observability.Component("synthesis"),
	}
}

// Supported reports whether the binary is on PATH
func (e *EspeakEngine) Supported() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// Voices lists installed voices; the result is cached after the first successful call
func (e *EspeakEngine) Voices(ctx context.Context) ([]Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.voices != nil {
		return e.voices, nil
	}
	if !e.Supported() {
		return nil, ErrUnsupported
	}

	out, err := exec.CommandContext(ctx, e.binary, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	e.voices = ParseEspeakVoices(out)
	return e.voices, nil
}

// Render synthesizes u to WAV
func (e *EspeakEngine) Render(ctx context.Context, u Utterance) ([]byte, error) {
	if !e.Supported() {
		return nil, ErrUnsupported
	}
	if strings.TrimSpace(u.Text) == "" {
		return nil, errors.New("empty utterance")
	}

	cmd := exec.CommandContext(ctx, e.binary, espeakArgs(u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", e.binary, err, strings.TrimSpace(stderr.String()))
	}

	wav := stdout.Bytes()
	if _, err := audio.ParseWAV(wav); err != nil {
		return nil, fmt.Errorf("%s produced unusable audio: %w", e.binary, err)
	}

	e.logger.Debug().
		Int("bytes", len(wav)).
		Str("lang", u.Lang).
		Msg("rendered utterance")
	return wav, nil
}

func espeakArgs(u Utterance) []string {
	voice := voiceArg(u)
	return []string{
		"--stdout",
		"--stdin",
		"-v", voice,
		"-s", strconv.Itoa(scale(u.Rate, espeakBaseWPM, 80, 450)),
		"-p", strconv.Itoa(scale(u.Pitch, espeakBasePitch, 0, 99)),
		"-a", strconv.Itoa(scale(u.Volume, espeakBaseAmp, 0, 200)),
	}
}

func voiceArg(u Utterance) string {
	if u.Voice != nil && u.Voice.ID != "" {
		return u.Voice.ID
	}
	if u.Lang != "" {
		return strings.ToLower(strings.ReplaceAll(u.Lang, "_", "-"))
	}
	return "en"
}

// scale maps a relative factor onto an engine range; zero means the engine default
func scale(factor float64, base, lo, hi int) int {
	if factor <= 0 {
		return base
	}
	v := int(math.Round(factor * float64(base)))
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 2)
func ParseEspeakVoices(out []byte) []Voice {
	voices := []Voice{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		voices = append(voices, Voice{
			Name:   strings.ReplaceAll(fields[3], "_", " "),
			Locale: fields[1],
			ID:     fields[1],
		})
	}
	return voices
}
