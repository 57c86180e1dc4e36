// Package httpapi exposes the voice tutor over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voicetutor/internal/config"
	"github.com/lexiqai/voicetutor/internal/observability"
	"github.com/lexiqai/voicetutor/internal/session"
	"github.com/lexiqai/voicetutor/internal/speechtext"
	"github.com/lexiqai/voicetutor/internal/synthesis"
)

// Server exposes the tutor websocket alongside the speech and health endpoints
type Server struct {
	cfg      *config.Config
	services *session.Services
	engine   synthesis.Engine
	checks   map[string]observability.HealthCheckFunc
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	// ctx outlives requests; sessions end when it is cancelled
	ctx context.Context
}

// New builds the server. engine may be nil when local synthesis is not installed.
func New(ctx context.Context, services *session.Services, engine synthesis.Engine, checks map[string]observability.HealthCheckFunc) *Server {
	cfg := services.Config
	return &Server{
		cfg:      cfg,
		services: services,
		engine:   engine,
		checks:   checks,
		logger:   observability.Component("httpapi"),
		ctx:      ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only browsers on the same origin may drive a student's microphone session
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router mounts every route on a chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", observability.HealthCheckHandler())
	r.Get("/ready", observability.ReadinessHandler(s.checks))
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/api/languages", s.handleLanguages)
	r.Get("/api/voices", s.handleVoices)
	r.Get("/ws/voice", s.handleVoiceWS)

	return r
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, speechtext.Supported())
}

type voicesResponse struct {
	Supported bool              `json:"supported"`
	Voices    []synthesis.Voice `json:"voices"`
	Selected  *synthesis.Voice  `json:"selected,omitempty"`
}

// handleVoices lists local synthesis voices and the one chosen for ?lang=
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil || !s.engine.Supported() {
		respondJSON(w, http.StatusOK, voicesResponse{Voices: []synthesis.Voice{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	voices, err := s.engine.Voices(ctx)
	if err != nil {
		respondError(w, http.StatusBadGateway, "voices_unavailable", err.Error())
		return
	}

	lang := strings.TrimSpace(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = s.cfg.DefaultLanguage
	}
	respondJSON(w, http.StatusOK, voicesResponse{
		Supported: true,
		Voices:    voices,
		Selected:  synthesis.SelectVoice(voices, lang),
	})
}

func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	sess := session.New(conn, s.services)
	s.logger.Info().Str("session_id", sess.ID()).Str("remote", r.RemoteAddr).Msg("voice session connected")
	sess.Run(s.ctx)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
