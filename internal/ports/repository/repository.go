package repository

import (
	"context"

	"workwatch.service/internal/core/model"
)

// Repository contract. Days are the calendar-day keys produced with
// model.DayFormat; GetForDay returns (nil, nil) when the employee has
// no record for that day.
type Repository interface {
	GetForDay(ctx context.Context, userID, day string) (*model.AttendanceRecord, error)
	Create(ctx context.Context, record *model.AttendanceRecord) error
	UpdateSessions(ctx context.Context, userID, day string, sessions []model.Session, status model.PresenceStatus) error
	ListByUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error)
	ListAll(ctx context.Context) ([]model.AttendanceRecord, error)
	UpdateNotifyStatus(ctx context.Context, userID, day string, status model.NotifyStatus, retryCount int) error
	UpdatePayrollStatus(ctx context.Context, userID, day string, status model.PayrollStatus, retryCount int) error
}
