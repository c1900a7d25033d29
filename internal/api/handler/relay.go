package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"workwatch.service/internal/core/relay"
)

// RelayHandler serves the polling fallback for viewers whose WebSocket
// channel is not delivering frames (NAT, proxies, corporate firewalls).
// It is a stateless read of the frame cache.
type RelayHandler struct {
	Cache *relay.FrameCache
}

type latestFrameResponse struct {
	Available bool            `json:"available"`
	Frame     json.RawMessage `json:"frame,omitempty"`
	AgeMs     int64           `json:"ageMs,omitempty"`
}

func (h *RelayHandler) LatestFrame(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["agentId"]
	if agentID == "" {
		http.Error(w, "agentId is required", http.StatusBadRequest)
		return
	}

	payload, age, ok := h.Cache.Latest(agentID)
	if !ok {
		writeJSON(w, http.StatusOK, latestFrameResponse{Available: false})
		return
	}

	writeJSON(w, http.StatusOK, latestFrameResponse{
		Available: true,
		Frame:     payload,
		AgeMs:     age.Milliseconds(),
	})
}
