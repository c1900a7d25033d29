package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"workwatch.service/internal/core/model"
)

// AttendanceRepository is the concrete implementation for a PostgreSQL
// database. One row per (user_id, day); the session and break lists are
// stored as JSONB.
type AttendanceRepository struct {
	DB *sql.DB
}

// NewAttendanceRepository create new instance
func NewAttendanceRepository(db *sql.DB) Repository {
	return &AttendanceRepository{DB: db}
}

// GetForDay fetches one employee's record for one calendar day.
func (r *AttendanceRepository) GetForDay(ctx context.Context, userID, day string) (*model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", userID))

	query := `SELECT user_id, to_char(day, 'YYYY-MM-DD'), sessions, breaks, status,
                     notify_status, notify_retry_count, payroll_status, payroll_retry_count
              FROM attendance
              WHERE user_id = $1 AND day = $2`

	record, err := scanRecord(r.DB.QueryRowContext(ctx, query, userID, day))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Create inserts the first record of the day for an employee.
func (r *AttendanceRepository) Create(ctx context.Context, record *model.AttendanceRecord) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", record.UserID))

	sessions, err := json.Marshal(record.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	breaks, err := json.Marshal(record.Breaks)
	if err != nil {
		return fmt.Errorf("failed to marshal breaks: %w", err)
	}

	query := `INSERT INTO attendance (user_id, day, sessions, breaks, status, notify_status, notify_retry_count, payroll_status, payroll_retry_count)
              VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 0)`

	_, err = r.DB.ExecContext(ctx, query, record.UserID, record.Day, sessions, breaks,
		record.Status, model.StatusNotifyPending, model.StatusPayrollPending)
	return err
}

// UpdateSessions replaces the session list and presence status for a
// day. The session list only ever grows or closes its last entry; the
// service serializes writers per user.
func (r *AttendanceRepository) UpdateSessions(ctx context.Context, userID, day string, sessions []model.Session, status model.PresenceStatus) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", userID))

	payload, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	query := `UPDATE attendance
              SET sessions = $1,
                  status = $2
              WHERE user_id = $3 AND day = $4`

	_, err = r.DB.ExecContext(ctx, query, payload, status, userID, day)
	return err
}

// ListByUser returns all of one employee's records, newest day first.
func (r *AttendanceRepository) ListByUser(ctx context.Context, userID string) ([]model.AttendanceRecord, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.user_id", userID))

	query := `SELECT user_id, to_char(day, 'YYYY-MM-DD'), sessions, breaks, status,
                     notify_status, notify_retry_count, payroll_status, payroll_retry_count
              FROM attendance
              WHERE user_id = $1
              ORDER BY day DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListAll returns every employee's records, newest day first.
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]model.AttendanceRecord, error) {
	query := `SELECT user_id, to_char(day, 'YYYY-MM-DD'), sessions, breaks, status,
                     notify_status, notify_retry_count, payroll_status, payroll_retry_count
              FROM attendance
              ORDER BY day DESC, user_id`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// UpdateNotifyStatus updates the status and retry count for an email job.
func (r *AttendanceRepository) UpdateNotifyStatus(ctx context.Context, userID, day string, status model.NotifyStatus, retryCount int) error {
	query := `UPDATE attendance
              SET notify_status = $1,
                  notify_retry_count = $2
              WHERE user_id = $3 AND day = $4`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, userID, day)
	return err
}

// UpdatePayrollStatus updates the status and retry count for a payroll sync job.
func (r *AttendanceRepository) UpdatePayrollStatus(ctx context.Context, userID, day string, status model.PayrollStatus, retryCount int) error {
	query := `UPDATE attendance
              SET payroll_status = $1,
                  payroll_retry_count = $2
              WHERE user_id = $3 AND day = $4`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, userID, day)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.AttendanceRecord, error) {
	var (
		record   model.AttendanceRecord
		sessions []byte
		breaks   []byte
	)
	err := row.Scan(&record.UserID, &record.Day, &sessions, &breaks, &record.Status,
		&record.NotifyStatus, &record.NotifyRetryCount, &record.PayrollStatus, &record.PayrollRetryCount)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sessions, &record.Sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}
	if err := json.Unmarshal(breaks, &record.Breaks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breaks: %w", err)
	}
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
