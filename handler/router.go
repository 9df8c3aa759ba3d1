package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

type SpecialtyLister interface {
	ListSpecialties(ctx context.Context) ([]string, error)
}

// RouterConfig holds the HTTP surface dependencies. Metrics defaults to the
// global Prometheus handler.
type RouterConfig struct {
	Chat        ChatUseCase
	Specialties SpecialtyLister
	Metrics     http.Handler
	Logger      *slog.Logger
}

// NewRouter serves the chat turn and the read-only clinic endpoints.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	h, err := NewHandler(cfg.Chat)
	if err != nil {
		return nil, err
	}
	if cfg.Specialties == nil {
		return nil, errors.New("handler: specialty lister must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", h.serveChat)
		r.Get("/specialties", func(w http.ResponseWriter, req *http.Request) {
			specialties, err := cfg.Specialties.ListSpecialties(req.Context())
			if err != nil {
				logger.Error("list specialties failed", "err", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "INTERNAL_ERROR", Reason: "specialties_load_error"})
				return
			}
			writeJSON(w, http.StatusOK, map[string][]string{"specialties": specialties})
		})
	})
	return r, nil
}

func (h *Handler) serveChat(w http.ResponseWriter, r *http.Request) {
	correlationID := strings.TrimSpace(r.Header.Get(correlationHeader))
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	w.Header().Set(correlationHeader, correlationID)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "INVALID_INPUT", Reason: "invalid_body"})
		return
	}
	status, payload := h.process(r.Context(), correlationID, body)
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
