package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/whale-tracker/internal/models"
	"github.com/whale-tracker/internal/types"
)

// userID extracts the caller identity from the X-User-ID header
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// alertRequest is the request body for alert create and update
type alertRequest struct {
	Name       string                  `json:"name"`
	Conditions []models.AlertCondition `json:"conditions"`
	Channels   []types.ChannelType     `json:"channels"`
	WebhookURL string                  `json:"webhookUrl"`
	IsActive   *bool                   `json:"isActive"`
}

// handleCreateAlert creates a new alert rule for the calling user
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return
	}

	var req alertRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	alert := &models.Alert{
		UserID:     uid,
		Name:       req.Name,
		Conditions: req.Conditions,
		Channels:   req.Channels,
		WebhookURL: req.WebhookURL,
		IsActive:   true,
	}
	if req.IsActive != nil {
		alert.IsActive = *req.IsActive
	}

	if err := alert.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.alerts.Create(r.Context(), alert); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

// handleListAlerts returns the calling user's alert rules
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return
	}

	alerts, err := s.alerts.ListByUser(r.Context(), uid)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// loadOwnedAlert fetches an alert and enforces ownership. Writes the error
// response and returns nil when the alert cannot be used.
func (s *Server) loadOwnedAlert(w http.ResponseWriter, r *http.Request, uid string) *models.Alert {
	id := mux.Vars(r)["id"]

	alert, err := s.alerts.Get(r.Context(), id)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return nil
	}
	if alert == nil {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "Alert not found", nil)
		return nil
	}
	if alert.UserID != uid {
		respondError(w, http.StatusForbidden, ErrCodeForbidden, "Alert belongs to another user", nil)
		return nil
	}
	return alert
}

// handleUpdateAlert updates an alert rule owned by the calling user
func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return
	}

	alert := s.loadOwnedAlert(w, r, uid)
	if alert == nil {
		return
	}

	var req alertRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	if req.Name != "" {
		alert.Name = req.Name
	}
	if req.Conditions != nil {
		alert.Conditions = req.Conditions
	}
	if req.Channels != nil {
		alert.Channels = req.Channels
	}
	if req.WebhookURL != "" {
		alert.WebhookURL = req.WebhookURL
	}
	if req.IsActive != nil {
		alert.IsActive = *req.IsActive
	}

	if err := alert.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	if err := s.alerts.Update(r.Context(), alert); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// handleDeleteAlert deletes an alert rule owned by the calling user
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return
	}

	alert := s.loadOwnedAlert(w, r, uid)
	if alert == nil {
		return
	}

	if err := s.alerts.Delete(r.Context(), alert.ID); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleAlertHistory returns the calling user's recent alert deliveries
func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required", nil)
		return
	}

	limit := parseLimit(r, 50, 200)

	entries, err := s.history.ListByUser(r.Context(), uid, limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
		"count":   len(entries),
	})
}
