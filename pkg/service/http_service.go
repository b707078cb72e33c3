package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/worldcoin/posthog-ios/core/pkg/model"
	"github.com/worldcoin/posthog-ios/pkg/eval"
)

const shutdownTimeout = 5 * time.Second

type HTTPServiceConfiguration struct {
	Port int32
}

type HTTPService struct {
	HTTPServiceConfiguration *HTTPServiceConfiguration
}

type Server struct {
	eval eval.IEvaluator
}

type flagResponse struct {
	Key     string      `json:"key"`
	Value   model.Value `json:"value"`
	Enabled bool        `json:"enabled"`
}

type payloadResponse struct {
	Key     string      `json:"key"`
	Payload model.Value `json:"payload"`
}

type sessionReplayResponse struct {
	Active   bool   `json:"active"`
	Endpoint string `json:"endpoint,omitempty"`
}

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// NewHandler routes the evaluator's read API.
func NewHandler(evaluator eval.IEvaluator) http.Handler {
	s := Server{eval: evaluator}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/flags", s.GetFlags)
	r.Get("/stream", s.StreamFlags)
	r.Get("/flags/{key}", s.GetFlag)
	r.Get("/flags/{key}/payload", s.GetPayload)
	r.Get("/session-replay", s.GetSessionReplay)
	return r
}

func (s Server) GetFlags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eval.GetFeatureFlags())
}

func (s Server) GetFlag(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value, ok := s.eval.GetFeatureFlag(key)
	if !ok {
		handleError(w, model.FlagNotFoundErrorCode, fmt.Sprintf("flag %s not found", key))
		return
	}
	writeJSON(w, http.StatusOK, flagResponse{
		Key:     key,
		Value:   value,
		Enabled: s.eval.IsFeatureEnabled(key),
	})
}

func (s Server) GetPayload(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	payload, ok := s.eval.GetFeatureFlagPayload(key)
	if !ok {
		handleError(w, model.PayloadNotFoundErrorCode, fmt.Sprintf("no payload for flag %s", key))
		return
	}
	writeJSON(w, http.StatusOK, payloadResponse{Key: key, Payload: payload})
}

func (s Server) GetSessionReplay(w http.ResponseWriter, r *http.Request) {
	endpoint, _ := s.eval.SessionReplayEndpoint()
	writeJSON(w, http.StatusOK, sessionReplayResponse{
		Active:   s.eval.IsSessionReplayFlagActive(),
		Endpoint: endpoint,
	})
}

// StreamFlags sends the current snapshot and then every applied snapshot as server-sent events.
func (s Server) StreamFlags(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		handleError(w, model.GeneralErrorCode, "streaming unsupported")
		return
	}

	id := uuid.NewString()
	updates, current := s.eval.Subscribe(id)
	defer s.eval.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: %s\n\n", current.Flags)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-updates:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload.Flags)
			flusher.Flush()
		}
	}
}

func (h *HTTPService) Serve(ctx context.Context, eval eval.IEvaluator) error {
	if h.HTTPServiceConfiguration == nil {
		return errors.New("http service configuration has not been initialised")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", h.HTTPServiceConfiguration.Port),
		Handler:           NewHandler(eval),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("serving flags on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http service stopped: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("unable to shut down http service: %w", err)
		}
		return nil
	}
}

// some basic mapping of error codes from model to HTTP
func handleError(w http.ResponseWriter, code string, message string) {
	status := http.StatusInternalServerError
	switch code {
	case model.FlagNotFoundErrorCode, model.PayloadNotFoundErrorCode:
		status = http.StatusNotFound
	default:
		log.Error(message)
	}
	writeJSON(w, status, errorResponse{ErrorCode: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
