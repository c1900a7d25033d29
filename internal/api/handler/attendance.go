package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"workwatch.service/internal/core"
)

type AttendanceHandler struct {
	Service *core.AttendanceService
}

type PunchRequest struct {
	UserID string `json:"userId"`
}

func (h *AttendanceHandler) PunchIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodePunchRequest(w, r)
	if !ok {
		return
	}

	record, err := h.Service.PunchIn(r.Context(), userID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("Punch-in failed")
		http.Error(w, "Service error processing punch-in", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *AttendanceHandler) PunchOut(w http.ResponseWriter, r *http.Request) {
	userID, ok := decodePunchRequest(w, r)
	if !ok {
		return
	}

	record, err := h.Service.PunchOut(r.Context(), userID)
	if errors.Is(err, core.ErrNoAttendanceToday) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Attendance not found"})
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("Punch-out failed")
		http.Error(w, "Service error processing punch-out", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	records, err := h.Service.History(r.Context(), userID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("user_id", userID).Msg("History query failed")
		http.Error(w, "Service error fetching history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// AllAttendance serves the admin view of every employee's attendance.
func (h *AttendanceHandler) AllAttendance(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.AllAttendance(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Admin attendance query failed")
		http.Error(w, "Service error fetching attendance", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

func decodePunchRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return "", false
	}
	return req.UserID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
