package tutorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/resilience"
)

const (
	endpointChat         = "/api/chat"
	endpointTextToSpeech = "/api/text-to-speech"
	endpointSpeechToText = "/api/speech-to-text"
	endpointHealth       = "/"

	maxErrorBody = 512
)

// StatusError is returned when the tutor API answers with a non-2xx status
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("tutor api %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("tutor api %s returned status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the tutoring backend over REST
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	breakers   map[string]*resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a tutor API client with one circuit breaker per endpoint
func NewClient(cfg *config.Config) *Client {
	reset := time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second
	breakers := make(map[string]*resilience.CircuitBreaker)
	for _, endpoint := range []string{endpointChat, endpointTextToSpeech, endpointSpeechToText, endpointHealth} {
		breakers[endpoint] = resilience.NewCircuitBreaker("tutorapi"+endpoint, cfg.CircuitBreakerMaxFailures, reset).
			WithObserver(publishBreakerState)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.TutorAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TutorAPITimeout) * time.Second,
		},
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		breakers: breakers,
		logger:   observability.Component("tutorapi"),
	}
}

func publishBreakerState(name string, state resilience.CircuitState, failed bool) {
	observability.UpdateCircuitBreakerState(name, int(state))
	if failed {
		observability.IncrementCircuitBreakerFailures(name)
	}
}

// BaseURL returns the backend root the client is bound to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TextToSpeech asks the backend to render text. A response without audio is not an
// error at this layer; callers decide whether to fall back. Not retried: the caller's
// fallback chain is the recovery path.
func (c *Client) TextToSpeech(ctx context.Context, text, languageCode string) (*TextToSpeechResponse, error) {
	body, err := json.Marshal(TextToSpeechRequest{Text: text, LanguageCode: languageCode})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out TextToSpeechResponse
	err = c.call(ctx, endpointTextToSpeech, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, endpointTextToSpeech, "application/json", body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SpeechToText uploads one captured audio clip as multipart field "audio"
func (c *Client) SpeechToText(ctx context.Context, audio []byte, filename string) (*SpeechToTextResponse, error) {
	if filename == "" {
		filename = "recording.wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	var out SpeechToTextResponse
	err = c.call(ctx, endpointSpeechToText, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, endpointSpeechToText, mw.FormDataContentType(), buf.Bytes(), &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends a student message and returns the tutor's reply. Transient failures are retried.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var out ChatResponse
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		return c.call(ctx, endpointChat, func(ctx context.Context) error {
			return c.doJSON(ctx, http.MethodPost, endpointChat, "application/json", body, &out)
		})
	}, c.retry, isRetryable)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health calls the backend root endpoint
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out HealthResponse
	err := c.call(ctx, endpointHealth, func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, endpointHealth, "", nil, &out)
	})
	if err != nil {
		return false, err
	}
	return out.Status == "healthy", nil
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return resilience.IsRetryableNetworkError(err)
}

// call runs fn behind the endpoint's breaker and records metrics
func (c *Client) call(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := c.breakers[endpoint].Call(func() error {
		return fn(ctx)
	})
	observability.RecordBackendRequest(endpoint, err == nil, time.Since(start))
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("tutor api call failed")
	}
	return err
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}
