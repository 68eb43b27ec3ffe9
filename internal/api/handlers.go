package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/miplug-bridge/internal/accessory"
	"github.com/nerrad567/miplug-bridge/internal/auth"
	"github.com/nerrad567/miplug-bridge/internal/history"
)

const healthCheckTimeout = 3 * time.Second

// handleHealth reports the version and the status of each dependency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"components":     components,
	})
}

// AccessoryResponse describes the served accessory.
type AccessoryResponse struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Valid    bool              `json:"valid"`
	Services []ServiceResponse `json:"services"`
}

// ServiceResponse describes one service.
type ServiceResponse struct {
	Type            accessory.ServiceType          `json:"type"`
	Name            string                         `json:"name"`
	Characteristics []accessory.CharacteristicInfo `json:"characteristics"`
}

func (s *Server) handleGetAccessory(w http.ResponseWriter, _ *http.Request) {
	resp := AccessoryResponse{
		ID:    s.id,
		Type:  s.typeName,
		Valid: true,
	}
	if v, ok := s.accessory.(interface{ Valid() bool }); ok {
		resp.Valid = v.Valid()
	}
	for _, svc := range s.accessory.Services() {
		resp.Services = append(resp.Services, ServiceResponse{
			Type:            svc.Type,
			Name:            svc.Name,
			Characteristics: svc.Characteristics(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// OnStateResponse is the body of power state reads and writes.
type OnStateResponse struct {
	On bool `json:"on"`
}

type setOnRequest struct {
	On *bool `json:"on"`
}

func (s *Server) handleGetOn(w http.ResponseWriter, r *http.Request) {
	value, err := accessory.Read(r.Context(), s.accessory, accessory.Switch, accessory.On)
	if err != nil {
		writeAccessoryError(w, err)
		return
	}
	on, ok := value.(bool)
	if !ok {
		// nil: the accessory has nothing to report.
		writeError(w, http.StatusServiceUnavailable, ErrCodeConfigurationInvalid, "accessory configuration invalid")
		return
	}

	s.recorder.Observe(r.Context(), on, history.SourceAPI)
	writeJSON(w, http.StatusOK, OnStateResponse{On: on})
}

func (s *Server) handleSetOn(w http.ResponseWriter, r *http.Request) {
	var req setOnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.On == nil {
		writeBadRequest(w, `"on" is required`)
		return
	}

	confirmed, err := accessory.WriteBool(r.Context(), s.accessory, accessory.Switch, accessory.On, *req.On)
	if err != nil {
		writeAccessoryError(w, err)
		return
	}

	s.logger.Info("power state set over API",
		"on", confirmed,
		"subject", r.Context().Value(ctxKeySubject),
	)
	s.recorder.Observe(r.Context(), confirmed, history.SourceAPI)
	writeJSON(w, http.StatusOK, OnStateResponse{On: confirmed})
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	token, expires, err := s.auth.Login(req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, ErrCodeNotConfigured, "admin account not configured")
		return
	default:
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires.UTC(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.recorder.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing state history failed", "error", err)
		writeInternalError(w, "failed to list state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accessory_id": s.id,
		"entries":      entries,
	})
}
