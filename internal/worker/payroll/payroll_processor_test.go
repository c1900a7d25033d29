package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/sony/gobreaker"

	"workwatch.service/internal/core/model"
	"workwatch.service/internal/ports/messaging"
)

type fakePayrollAPI struct {
	calls int
	err   error
}

func (f *fakePayrollAPI) RecordWorkDay(context.Context, messaging.PunchOutEvent) error {
	f.calls++
	return f.err
}

type fakeRepo struct {
	record        *model.AttendanceRecord
	payrollStatus model.PayrollStatus
	retryCount    int
}

func (f *fakeRepo) GetForDay(context.Context, string, string) (*model.AttendanceRecord, error) {
	return f.record, nil
}

func (f *fakeRepo) Create(context.Context, *model.AttendanceRecord) error { return nil }

func (f *fakeRepo) UpdateSessions(context.Context, string, string, []model.Session, model.PresenceStatus) error {
	return nil
}

func (f *fakeRepo) ListByUser(context.Context, string) ([]model.AttendanceRecord, error) {
	return nil, nil
}

func (f *fakeRepo) ListAll(context.Context) ([]model.AttendanceRecord, error) { return nil, nil }

func (f *fakeRepo) UpdateNotifyStatus(context.Context, string, string, model.NotifyStatus, int) error {
	return nil
}

func (f *fakeRepo) UpdatePayrollStatus(_ context.Context, _, _ string, status model.PayrollStatus, retryCount int) error {
	f.payrollStatus = status
	f.retryCount = retryCount
	return nil
}

func punchOutMessage(t *testing.T, userID string) types.Message {
	t.Helper()
	b, err := json.Marshal(messaging.PunchOutEvent{
		UserID:      userID,
		Day:         "2026-08-30",
		PunchOut:    time.Date(2026, 8, 30, 17, 0, 0, 0, time.Local),
		HoursWorked: 8,
	})
	if err != nil {
		t.Fatal(err)
	}
	return types.Message{Body: aws.String(string(b))}
}

func pendingRecord() *model.AttendanceRecord {
	return &model.AttendanceRecord{UserID: "u1", Day: "2026-08-30", PayrollStatus: model.StatusPayrollPending}
}

func TestProcess_RecordsWorkDayAndMarksCompleted(t *testing.T) {
	api := &fakePayrollAPI{}
	repo := &fakeRepo{record: pendingRecord()}
	p := NewProcessor(repo, api)

	retry, _, err := p.Process(context.Background(), punchOutMessage(t, "u1"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if retry {
		t.Error("successful sync must not request a retry")
	}
	if api.calls != 1 {
		t.Errorf("api calls = %d, want 1", api.calls)
	}
	if repo.payrollStatus != model.StatusPayrollCompleted {
		t.Errorf("payroll status = %s, want COMPLETED", repo.payrollStatus)
	}
}

func TestProcess_AlreadyCompletedSkipsAPICall(t *testing.T) {
	api := &fakePayrollAPI{}
	repo := &fakeRepo{record: &model.AttendanceRecord{UserID: "u1", Day: "2026-08-30", PayrollStatus: model.StatusPayrollCompleted}}
	p := NewProcessor(repo, api)

	retry, _, err := p.Process(context.Background(), punchOutMessage(t, "u1"))
	if err != nil || retry {
		t.Fatalf("retry=%v err=%v, want clean skip", retry, err)
	}
	if api.calls != 0 {
		t.Error("redelivered message must not hit the legacy API again")
	}
}

func TestProcess_APIFailureRetriesWithBackoff(t *testing.T) {
	api := &fakePayrollAPI{err: errors.New("legacy api 500")}
	record := pendingRecord()
	record.PayrollRetryCount = 2
	repo := &fakeRepo{record: record}
	p := NewProcessor(repo, api)

	retry, delay, err := p.Process(context.Background(), punchOutMessage(t, "u1"))
	if err == nil || !retry {
		t.Fatalf("retry=%v err=%v, want retry with error", retry, err)
	}
	if repo.retryCount != 3 {
		t.Errorf("retry count = %d, want 3", repo.retryCount)
	}
	if delay != 80 { // 2^3 * 10
		t.Errorf("delay = %d, want 80", delay)
	}
}

func TestProcess_MalformedMessageIsNotRetried(t *testing.T) {
	p := NewProcessor(&fakeRepo{}, &fakePayrollAPI{})

	retry, _, err := p.Process(context.Background(), types.Message{Body: aws.String("not json")})
	if err == nil {
		t.Fatal("expected an error")
	}
	if retry {
		t.Error("malformed messages must not be retried")
	}
}

func TestProcess_OpenBreakerShortCircuitsButStillRetries(t *testing.T) {
	api := &fakePayrollAPI{err: errors.New("legacy api down")}
	repo := &fakeRepo{record: pendingRecord()}
	p := NewProcessor(repo, api)
	msg := punchOutMessage(t, "u1")

	// Ten straight failures trip the breaker.
	for i := 0; i < 10; i++ {
		if retry, _, err := p.Process(context.Background(), msg); err == nil || !retry {
			t.Fatalf("call %d: retry=%v err=%v, want failing retry", i, retry, err)
		}
	}
	callsBeforeOpen := api.calls

	retry, _, err := p.Process(context.Background(), msg)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err = %v, want the breaker's open-state error", err)
	}
	if !retry {
		t.Error("an open breaker still defers the message for a later retry")
	}
	if api.calls != callsBeforeOpen {
		t.Errorf("api calls = %d, want %d; an open breaker must not reach the legacy API", api.calls, callsBeforeOpen)
	}
}
