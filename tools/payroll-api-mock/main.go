package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// A simple struct to capture the incoming event data
type PunchOutEvent struct {
	UserID      string    `json:"userId"`
	Day         string    `json:"day"`
	PunchOut    time.Time `json:"punchOut"`
	HoursWorked float64   `json:"hoursWorked"`
}

func punchOutHandler(w http.ResponseWriter, r *http.Request) {
	var event PunchOutEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	log.Printf("Received work day for UserID: %s, Day: %s, Hours: %.2f", event.UserID, event.Day, event.HoursWorked)
	w.WriteHeader(http.StatusOK)
}

func main() {
	http.HandleFunc("/", punchOutHandler)
	log.Println("Payroll API mock server starting on port 8081...")
	log.Fatal(http.ListenAndServe(":8081", nil))
}
