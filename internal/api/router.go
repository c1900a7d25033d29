package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"workwatch.service/internal/api/handler"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(attendance *handler.AttendanceHandler, relayFallback *handler.RelayHandler, stream *handler.StreamHandler) *mux.Router {

	r := mux.NewRouter()

	// The relay channel lives outside the versioned API prefix; both the
	// desktop agent and the viewer frontend dial it directly.
	r.Handle("/ws", stream).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance/punch-in", attendance.PunchIn).Methods(http.MethodPost)
	api.HandleFunc("/attendance/punch-out", attendance.PunchOut).Methods(http.MethodPost)
	api.HandleFunc("/attendance/history", attendance.History).Methods(http.MethodGet)
	api.HandleFunc("/attendance/admin/all", attendance.AllAttendance).Methods(http.MethodGet)

	api.HandleFunc("/relay/frame/{agentId}", relayFallback.LatestFrame).Methods(http.MethodGet)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
