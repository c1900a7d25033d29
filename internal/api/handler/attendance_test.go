package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"workwatch.service/internal/core"
	"workwatch.service/internal/core/model"
)

type stubRepo struct {
	records map[string]*model.AttendanceRecord
	err     error
}

func newStubRepo() *stubRepo {
	return &stubRepo{records: make(map[string]*model.AttendanceRecord)}
}

func (r *stubRepo) GetForDay(_ context.Context, userID, day string) (*model.AttendanceRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	rec, ok := r.records[userID+"|"+day]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (r *stubRepo) Create(_ context.Context, rec *model.AttendanceRecord) error {
	c := *rec
	r.records[rec.UserID+"|"+rec.Day] = &c
	return nil
}

func (r *stubRepo) UpdateSessions(_ context.Context, userID, day string, sessions []model.Session, status model.PresenceStatus) error {
	if rec, ok := r.records[userID+"|"+day]; ok {
		rec.Sessions = sessions
		rec.Status = status
	}
	return nil
}

func (r *stubRepo) ListByUser(_ context.Context, userID string) ([]model.AttendanceRecord, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *stubRepo) ListAll(_ context.Context) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (r *stubRepo) UpdateNotifyStatus(_ context.Context, _, _ string, _ model.NotifyStatus, _ int) error {
	return nil
}

func (r *stubRepo) UpdatePayrollStatus(_ context.Context, _, _ string, _ model.PayrollStatus, _ int) error {
	return nil
}

type stubProducer struct{}

func (stubProducer) PublishNotify(context.Context, interface{}) error  { return nil }
func (stubProducer) PublishPayroll(context.Context, interface{}) error { return nil }

func newAttendanceHandler(repo *stubRepo) *AttendanceHandler {
	return &AttendanceHandler{Service: core.NewAttendanceService(repo, stubProducer{})}
}

func punchBody(userID string) *bytes.Buffer {
	b, _ := json.Marshal(PunchRequest{UserID: userID})
	return bytes.NewBuffer(b)
}

func TestPunchInHandler_ReturnsRecord(t *testing.T) {
	h := newAttendanceHandler(newStubRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-in", punchBody("u1"))
	rec := httptest.NewRecorder()
	h.PunchIn(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var record model.AttendanceRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.UserID != "u1" || len(record.Sessions) != 1 {
		t.Errorf("record = %+v, want u1 with one session", record)
	}
	if record.PunchIn == nil {
		t.Error("response should carry the derived punchIn")
	}
}

func TestPunchInHandler_MissingUserIDIsBadRequest(t *testing.T) {
	h := newAttendanceHandler(newStubRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-in", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	h.PunchIn(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPunchInHandler_MalformedBodyIsBadRequest(t *testing.T) {
	h := newAttendanceHandler(newStubRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-in", bytes.NewBufferString(`{"userId":`))
	rec := httptest.NewRecorder()
	h.PunchIn(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPunchOutHandler_NoRecordIsNotFound(t *testing.T) {
	h := newAttendanceHandler(newStubRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-out", punchBody("u1"))
	rec := httptest.NewRecorder()
	h.PunchOut(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "Attendance not found" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestPunchOutHandler_ClosesSession(t *testing.T) {
	repo := newStubRepo()
	h := newAttendanceHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-in", punchBody("u1"))
	h.PunchIn(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-out", punchBody("u1"))
	rec := httptest.NewRecorder()
	h.PunchOut(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var record model.AttendanceRecord
	json.Unmarshal(rec.Body.Bytes(), &record)
	if len(record.Sessions) != 1 || record.Sessions[0].Stopped == nil {
		t.Errorf("record = %+v, want one closed session", record)
	}
	if record.Status != model.StatusOffline {
		t.Errorf("status = %s, want offline", record.Status)
	}
}

func TestHistoryHandler_RequiresUserID(t *testing.T) {
	h := newAttendanceHandler(newStubRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/history", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryHandler_ReturnsUserRecords(t *testing.T) {
	repo := newStubRepo()
	h := newAttendanceHandler(repo)

	h.PunchIn(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", punchBody("u1")))
	h.PunchIn(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", punchBody("u2")))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance/history?userId=u1", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var records []model.AttendanceRecord
	json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 1 || records[0].UserID != "u1" {
		t.Errorf("records = %+v, want only u1", records)
	}
}

func TestPunchOutHandler_RepoFailureIsServerError(t *testing.T) {
	repo := newStubRepo()
	repo.err = errors.New("db down")
	h := newAttendanceHandler(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/punch-out", punchBody("u1"))
	rec := httptest.NewRecorder()
	h.PunchOut(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
