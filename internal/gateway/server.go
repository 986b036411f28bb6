// Package gateway exposes the operational HTTP surface: health,
// status, pending predictions and the bless override.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/scheduler"
	"github.com/wardenhq/warden/internal/trust"
	"github.com/wardenhq/warden/internal/version"
)

// Core is the runtime surface the gateway serves.
type Core interface {
	ListPending() []scheduler.Prediction
	Bless(ctx context.Context, predictionID, actor string) (scheduler.Prediction, error)
	DenialStats() drift.Stats
	IdentitySnapshot() trust.Identity
}

type Server struct {
	cfg        config.GatewayConfig
	core       Core
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, core Core) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18890
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:  cfg,
		core: core,
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	mux := NewHandler(s.cfg.Token, s.core)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, core Core) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if core == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "runtime core is not configured")
			return
		}
		identity := core.IdentitySnapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"identity": map[string]any{
				"sovereignty": identity.Sovereignty,
				"categories":  len(identity.Scores),
				"loaded_at":   identity.LoadedAt,
			},
			"denials":    core.DenialStats(),
			"pending":    len(core.ListPending()),
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if core == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "runtime core is not configured")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"predictions": core.ListPending(),
			"request_id":  requestID,
		})
	})
	mux.HandleFunc("/predictions/bless", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if core == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "runtime core is not configured")
			return
		}

		var req struct {
			ID    string `json:"id"`
			Actor string `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		id := strings.TrimSpace(req.ID)
		if id == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "id is required")
			return
		}
		actor := strings.TrimSpace(req.Actor)
		if actor == "" {
			actor = "api"
		}

		prediction, err := core.Bless(bus.WithRequestID(r.Context(), requestID), id, actor)
		if err != nil {
			if errors.Is(err, scheduler.ErrNotFound) {
				writeError(w, requestID, http.StatusNotFound, "not_found", "no pending prediction with that id")
				return
			}
			slog.Error("bless failed", "request_id", requestID, "prediction_id", id, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "bless failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"prediction": prediction,
			"request_id": requestID,
		})
	})
	return mux
}

func authorized(r *http.Request, expected string) bool {
	if strings.TrimSpace(expected) == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
