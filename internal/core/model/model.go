package model

import (
	"time"
)

// DayFormat is the calendar-day key for attendance records. Days are
// resolved in the server's local timezone.
const DayFormat = "2006-01-02"

// PresenceStatus is the last status an agent reported for the employee.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusIdle    PresenceStatus = "idle"
	StatusOffline PresenceStatus = "offline"
)

// NotifyStatus defines the state of the work-summary email processing.
type NotifyStatus string

const (
	StatusNotifyPending   NotifyStatus = "PENDING"
	StatusNotifyCompleted NotifyStatus = "COMPLETED"
	StatusNotifyFailed    NotifyStatus = "FAILED"
)

// PayrollStatus defines the state of the payroll sync processing.
type PayrollStatus string

const (
	StatusPayrollPending   PayrollStatus = "PENDING"
	StatusPayrollCompleted PayrollStatus = "COMPLETED"
	StatusPayrollFailed    PayrollStatus = "FAILED"
)

// Session is one contiguous punch-in/punch-out interval within a day.
// A nil Stopped means the session is still open.
type Session struct {
	Started time.Time  `json:"started"`
	Stopped *time.Time `json:"stopped,omitempty"`
}

// Break is a declared pause inside a work day.
type Break struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// AttendanceRecord is one employee's attendance for one calendar day.
// PunchIn and PunchOut are derived from Sessions on every read and are
// never stored; with multiple sessions per day a flat stored field is
// ambiguous.
type AttendanceRecord struct {
	UserID            string          `json:"userId"`
	Day               string          `json:"date"`
	Sessions          []Session       `json:"sessions"`
	Breaks            []Break         `json:"breaks"`
	Status            PresenceStatus  `json:"status"`
	PunchIn           *time.Time      `json:"punchIn,omitempty"`
	PunchOut          *time.Time      `json:"punchOut,omitempty"`
	NotifyStatus      NotifyStatus    `json:"notifyStatus,omitempty"`
	PayrollStatus     PayrollStatus   `json:"payrollStatus,omitempty"`
	NotifyRetryCount  int             `json:"notifyRetryCount"`
	PayrollRetryCount int             `json:"payrollRetryCount"`
}

// OpenSession returns the currently open session, or nil. At most one
// session may be open per record.
func (r *AttendanceRecord) OpenSession() *Session {
	if len(r.Sessions) == 0 {
		return nil
	}
	last := &r.Sessions[len(r.Sessions)-1]
	if last.Stopped == nil {
		return last
	}
	return nil
}

// Derive recomputes PunchIn and PunchOut from the session list.
// PunchIn is the first session's start. PunchOut is the last closed
// session's stop, or the last session's start if none is closed.
func (r *AttendanceRecord) Derive() {
	r.PunchIn, r.PunchOut = nil, nil
	if len(r.Sessions) == 0 {
		return
	}
	first := r.Sessions[0].Started
	r.PunchIn = &first

	for i := len(r.Sessions) - 1; i >= 0; i-- {
		if r.Sessions[i].Stopped != nil {
			r.PunchOut = r.Sessions[i].Stopped
			return
		}
	}
	last := r.Sessions[len(r.Sessions)-1].Started
	r.PunchOut = &last
}

// WorkedHours sums the durations of all closed sessions.
func (r *AttendanceRecord) WorkedHours() float64 {
	var total time.Duration
	for _, s := range r.Sessions {
		if s.Stopped != nil {
			total += s.Stopped.Sub(s.Started)
		}
	}
	return total.Hours()
}
