// Package http implements the REST API for the Remedia engagement hub.
package http

import (
	"github.com/vote-vog/remedia-hub/internal/application/command"
	"github.com/vote-vog/remedia-hub/internal/application/query"
	"github.com/vote-vog/remedia-hub/internal/application/tracker"
	"github.com/vote-vog/remedia-hub/internal/domain/progress"
	"github.com/vote-vog/remedia-hub/internal/domain/shared"
	"github.com/vote-vog/remedia-hub/internal/infrastructure/persistence/kv"
	"github.com/vote-vog/remedia-hub/pkg/logger"
	"encoding/json"
	"errors"
	"net/http"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Remedia Engagement Hub API",
		"version":     "v1",
		"description": "REST API for the Remedia landing - progress, milestones and engagement",
		"endpoints": map[string]string{
			"health":        "/health",
			"progress":      "/api/v1/progress",
			"milestones":    "/api/v1/milestones",
			"referrals":     "/api/v1/referrals",
			"registrations": "/api/v1/registrations",
			"engagement":    "/api/v1/engagement",
			"counter":       "/api/v1/counter",
			"stats":         "/api/v1/stats",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// progressResponse is the wire shape of a visitor's progress.
type progressResponse struct {
	Record            *progress.Record `json:"record"`
	CompletionPercent int              `json:"completion_percent"`
	Restored          bool             `json:"restored,omitempty"`
}

// handleGetProgress handles GET /api/v1/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetProgressQuery{
		VisitorID:    getQueryParam(r, "visitor_id", ""),
		SessionToken: sessionToken(r),
	}

	result, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get progress", logger.Err(err), logger.VisitorID(q.VisitorID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get progress")
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Record:            result.Record,
		CompletionPercent: result.CompletionPercent,
		Restored:          result.Restored,
	})
}

// milestoneRequest is the body of POST /api/v1/milestones.
type milestoneRequest struct {
	VisitorID string `json:"visitor_id"`
	Step      string `json:"step"`
}

// milestoneResponse is the wire shape of a milestone completion.
type milestoneResponse struct {
	Record            *progress.Record `json:"record"`
	Changed           bool             `json:"changed"`
	CompletionPercent int              `json:"completion_percent"`
}

// handleCompleteMilestone handles POST /api/v1/milestones
func (s *Server) handleCompleteMilestone(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteMilestoneHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Milestone handler not configured")
		return
	}

	var req milestoneRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.CompleteMilestoneCommand{
		VisitorID:    req.VisitorID,
		SessionToken: sessionToken(r),
		Step:         req.Step,
	}

	result, err := s.deps.CompleteMilestoneHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err, "failed to complete milestone",
			logger.VisitorID(req.VisitorID), logger.Milestone(req.Step))
		return
	}

	writeJSON(w, http.StatusOK, milestoneResponse{
		Record:            result.Record,
		Changed:           result.Changed,
		CompletionPercent: result.CompletionPercent,
	})
}

// referralRequest is the body of POST /api/v1/referrals.
type referralRequest struct {
	VisitorID string `json:"visitor_id"`
}

// referralResponse is the wire shape of a referral registration.
type referralResponse struct {
	Record            *progress.Record `json:"record"`
	ReferralCount     int              `json:"referral_count"`
	CompletionPercent int              `json:"completion_percent"`
}

// handleRegisterReferral handles POST /api/v1/referrals
func (s *Server) handleRegisterReferral(w http.ResponseWriter, r *http.Request) {
	if s.deps.RegisterReferralHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Referral handler not configured")
		return
	}

	var req referralRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.RegisterReferralCommand{
		VisitorID:    req.VisitorID,
		SessionToken: sessionToken(r),
	}

	result, err := s.deps.RegisterReferralHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err, "failed to register referral", logger.VisitorID(req.VisitorID))
		return
	}

	writeJSON(w, http.StatusOK, referralResponse{
		Record:            result.Record,
		ReferralCount:     result.ReferralCount,
		CompletionPercent: result.CompletionPercent,
	})
}

// registrationRequest is the body of POST /api/v1/registrations.
type registrationRequest struct {
	VisitorID string                    `json:"visitor_id"`
	Form      progress.RegistrationForm `json:"form"`
}

// registrationResponse is the wire shape of a successful registration.
// SessionToken is the raw restore token, returned exactly once.
type registrationResponse struct {
	Record            *progress.Record `json:"record"`
	SessionToken      string           `json:"session_token"`
	ReferralCode      string           `json:"referral_code"`
	CompletionPercent int              `json:"completion_percent"`
}

// handleClaimRegistration handles POST /api/v1/registrations
func (s *Server) handleClaimRegistration(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClaimRegistrationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Registration handler not configured")
		return
	}

	var req registrationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.ClaimRegistrationCommand{
		VisitorID:    req.VisitorID,
		SessionToken: sessionToken(r),
		Form:         req.Form,
	}

	result, err := s.deps.ClaimRegistrationHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err, "failed to claim registration", logger.VisitorID(req.VisitorID))
		return
	}

	writeJSON(w, http.StatusCreated, registrationResponse{
		Record:            result.Record,
		SessionToken:      result.SessionToken,
		ReferralCode:      result.ReferralCode,
		CompletionPercent: result.CompletionPercent,
	})
}

// clearSessionRequest is the body of POST /api/v1/session/clear.
type clearSessionRequest struct {
	VisitorID string `json:"visitor_id"`
}

// handleClearSession handles POST /api/v1/session/clear
func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClearSessionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session handler not configured")
		return
	}

	var req clearSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := command.ClearSessionCommand{VisitorID: req.VisitorID}

	if err := s.deps.ClearSessionHandler.Handle(r.Context(), cmd); err != nil {
		s.writeDomainError(w, err, "failed to clear session", logger.VisitorID(req.VisitorID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT TRACKER HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// trackRequest is the body of POST /api/v1/engagement.
type trackRequest struct {
	SessionID string `json:"session_id"`
	VisitorID string `json:"visitor_id"`
	Action    string `json:"action"`
	EggID     string `json:"egg_id,omitempty"`
}

// handleTrack handles POST /api/v1/engagement
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tracker == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Tracker not configured")
		return
	}

	var req trackRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	cmd := tracker.TrackCommand{
		SessionID:    req.SessionID,
		VisitorID:    req.VisitorID,
		SessionToken: sessionToken(r),
		Action:       req.Action,
		EggID:        req.EggID,
	}

	result, err := s.deps.Tracker.Track(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, err, "failed to track engagement",
			logger.SessionID(req.SessionID), logger.VisitorID(req.VisitorID))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPLAY COUNTER & STATS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// counterResponse is the wire shape of the display counter.
type counterResponse struct {
	Count int64 `json:"count"`
}

// handleGetCounter handles GET /api/v1/counter
func (s *Server) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	if s.deps.Counter == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Counter backend not configured")
		return
	}

	count, err := s.deps.Counter.GetCounter(r.Context(), kv.CounterDisplay)
	if err != nil {
		s.logger.Error("failed to read display counter", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to read counter")
		return
	}

	writeJSON(w, http.StatusOK, counterResponse{Count: count})
}

// handleIncrementCounter handles POST /api/v1/counter
func (s *Server) handleIncrementCounter(w http.ResponseWriter, r *http.Request) {
	if s.deps.Counter == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Counter backend not configured")
		return
	}

	count, err := s.deps.Counter.Incr(r.Context(), kv.CounterDisplay, 1)
	if err != nil {
		s.logger.Error("failed to increment display counter", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to increment counter")
		return
	}

	writeJSON(w, http.StatusOK, counterResponse{Count: count})
}

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"server": map[string]interface{}{
			"uptime":  s.Uptime().String(),
			"running": s.IsRunning(),
		},
	}

	if s.deps.Tracker != nil {
		stats["engagement"] = map[string]interface{}{
			"active_sessions": s.deps.Tracker.Sessions(),
		}
	}

	if s.deps.Counter != nil {
		if count, err := s.deps.Counter.GetCounter(r.Context(), kv.CounterDisplay); err == nil {
			stats["counter"] = map[string]interface{}{
				"display": count,
			}
		}
	}

	writeJSON(w, http.StatusOK, stats)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING & ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body into dst. On failure it writes a
// 400 response and returns false.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP responses. Field-level
// validation failures become 422 with the field map; everything else
// degrades to the closest status class.
func (s *Server) writeDomainError(w http.ResponseWriter, err error, msg string, fields ...logger.Field) {
	var validationErrs shared.ValidationErrors
	if errors.As(err, &validationErrs) {
		writeJSONValidationError(w, validationErrs)
		return
	}

	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error(msg, append(fields, logger.Err(err))...)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}
