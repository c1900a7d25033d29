package messaging

import "time"

// PunchOutEvent is the JSON payload published when a work session is
// closed. Both the notify and the payroll queues receive it.
type PunchOutEvent struct {
	UserID      string    `json:"userId"`
	Day         string    `json:"day"`
	PunchOut    time.Time `json:"punchOut"`
	HoursWorked float64   `json:"hoursWorked"`
	OccurredAt  time.Time `json:"occurredAt"`
}
