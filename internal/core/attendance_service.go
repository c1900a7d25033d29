package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"workwatch.service/internal/core/model"
	"workwatch.service/internal/ports/messaging"
	"workwatch.service/internal/ports/repository"
)

// ErrNoAttendanceToday is returned by PunchOut when the employee has no
// attendance record for the current day. A punch-out on an already
// closed session is not an error; only the missing record is.
var ErrNoAttendanceToday = errors.New("no attendance record for today")

type AttendanceService struct {
	repo     repository.Repository
	producer messaging.QueueProducer
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAttendanceService creates the attendance engine, wiring up the
// database repository and the message queue producer.
func NewAttendanceService(repo repository.Repository, p messaging.QueueProducer) *AttendanceService {
	return &AttendanceService{
		repo:     repo,
		producer: p,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock serializes punch operations per user. Two concurrent
// punch-ins must not both observe "no open session" and create two.
func (s *AttendanceService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// PunchIn starts a work session for userID on the current calendar day.
// First punch-in of the day creates the record; a punch-in after a
// punch-out appends a new session; a punch-in while a session is open
// leaves it untouched. The driving client retries and double-fires, so
// the duplicate case reports success.
func (s *AttendanceService) PunchIn(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	day := now.Format(model.DayFormat)

	record, err := s.repo.GetForDay(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance for day: %w", err)
	}

	if record == nil {
		record = &model.AttendanceRecord{
			UserID:        userID,
			Day:           day,
			Sessions:      []model.Session{{Started: now}},
			Status:        model.StatusOnline,
			NotifyStatus:  model.StatusNotifyPending,
			PayrollStatus: model.StatusPayrollPending,
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to create attendance record: %w", err)
		}
		record.Derive()
		return record, nil
	}

	if record.OpenSession() != nil {
		// Duplicate punch-in; the open session stands.
		log.Ctx(ctx).Debug().Str("user_id", userID).Msg("Duplicate punch-in ignored")
		record.Derive()
		return record, nil
	}

	record.Sessions = append(record.Sessions, model.Session{Started: now})
	record.Status = model.StatusOnline
	if err := s.repo.UpdateSessions(ctx, userID, day, record.Sessions, record.Status); err != nil {
		return nil, fmt.Errorf("failed to append session: %w", err)
	}
	record.Derive()
	return record, nil
}

// PunchOut closes the open work session for userID on the current day.
// With no record for today it returns ErrNoAttendanceToday; with no
// open session it succeeds without changing anything.
func (s *AttendanceService) PunchOut(ctx context.Context, userID string) (*model.AttendanceRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	day := now.Format(model.DayFormat)

	record, err := s.repo.GetForDay(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance for day: %w", err)
	}
	if record == nil {
		return nil, ErrNoAttendanceToday
	}

	open := record.OpenSession()
	if open == nil {
		// Duplicate punch-out; nothing to close.
		log.Ctx(ctx).Debug().Str("user_id", userID).Msg("Duplicate punch-out ignored")
		record.Derive()
		return record, nil
	}

	stopped := now
	open.Stopped = &stopped
	record.Status = model.StatusOffline
	if err := s.repo.UpdateSessions(ctx, userID, day, record.Sessions, record.Status); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	record.Derive()

	s.publishPunchOut(ctx, record, stopped)
	return record, nil
}

// publishPunchOut hands the closed day state to the notify and payroll
// queues. The punch-out itself already succeeded; a queue failure is
// logged and retried by redelivery, never surfaced to the employee.
func (s *AttendanceService) publishPunchOut(ctx context.Context, record *model.AttendanceRecord, punchOut time.Time) {
	ev := messaging.PunchOutEvent{
		UserID:      record.UserID,
		Day:         record.Day,
		PunchOut:    punchOut,
		HoursWorked: record.WorkedHours(),
		OccurredAt:  s.now(),
	}
	if err := s.producer.PublishNotify(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", record.UserID).Msg("Failed to publish notify event")
	}
	if err := s.producer.PublishPayroll(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", record.UserID).Msg("Failed to publish payroll event")
	}
}

// History returns userID's attendance, newest day first, derived fields
// synthesized from the session lists.
func (s *AttendanceService) History(ctx context.Context, userID string) ([]model.AttendanceRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance history: %w", err)
	}
	for i := range records {
		records[i].Derive()
	}
	return records, nil
}

// AllAttendance returns every employee's attendance for the admin view.
func (s *AttendanceService) AllAttendance(ctx context.Context) ([]model.AttendanceRecord, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query all attendance: %w", err)
	}
	for i := range records {
		records[i].Derive()
	}
	return records, nil
}

// UpdateNotifyStatus is a pass-through used by the notify worker to
// record email job progress.
func (s *AttendanceService) UpdateNotifyStatus(ctx context.Context, userID, day string, status model.NotifyStatus, retryCount int) error {
	return s.repo.UpdateNotifyStatus(ctx, userID, day, status, retryCount)
}
