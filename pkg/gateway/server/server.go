// Package server exposes the gateway HTTP API consumed by the exam
// client: session credentials, OCR, evaluation, transcription and
// result persistence.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/genai"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/gateway/config"
	"github.com/oralab/exo/pkg/gateway/store"
)

// Server routes gateway requests.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	store      store.Store
	httpClient *http.Client
	genai      *genai.Client
	mux        *http.ServeMux
}

// New builds a Server. The genai client is only created when an API
// key is configured; the evaluate and OCR endpoints answer 503 without
// one.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, st store.Store) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  st,
		httpClient: &http.Client{
			Timeout: cfg.WriteTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		mux: http.NewServeMux(),
	}
	if cfg.GenAIAPIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GenAIAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, err
		}
		s.genai = client
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /v1/realtime-token", s.handleRealtimeToken)
	s.mux.HandleFunc("GET /v1/agent-config", s.handleAgentConfig)
	s.mux.HandleFunc("POST /v1/ocr", s.handleOCR)
	s.mux.HandleFunc("POST /v1/evaluate", s.handleEvaluate)
	s.mux.HandleFunc("POST /v1/transcribe", s.handleTranscribe)
	s.mux.HandleFunc("POST /v1/results", s.handleSaveResult)
	s.mux.HandleFunc("GET /v1/results/history", s.handleHistory)
	s.mux.HandleFunc("GET /v1/results/{id}", s.handleGetResult)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.accessLog(instrument(s.mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *core.Error) {
	writeJSON(w, status, map[string]any{"error": err})
}
