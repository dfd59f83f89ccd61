package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/http/middleware"
)

func TestScans_CreateAndListNewestFirst(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"first", "second"} {
		w := e.do(t, http.MethodPost, "/scans", map[string]any{"name": name, "confidence": 80}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("create %s = %d body=%s", name, w.Code, w.Body.String())
		}
		if got := decode[ScanResponse](t, w); !got.Success || got.Scan.ID == "" {
			t.Fatalf("unexpected create response: %+v", got)
		}
	}

	w := e.do(t, http.MethodGet, "/scans", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	scans := decode[[]domain.Scan](t, w)
	if len(scans) != 2 || scans[0].PatientName != "second" || scans[1].PatientName != "first" {
		t.Fatalf("want newest first, got %+v", scans)
	}

	w = e.do(t, http.MethodGet, "/scans?limit=1", nil, nil)
	if got := decode[[]domain.Scan](t, w); len(got) != 1 {
		t.Fatalf("limit=1 returned %d scans", len(got))
	}
}

func TestScans_EmptyListIsArray(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/scans", nil, nil)
	if w.Body.String() != "[]" {
		t.Fatalf("body = %q; want []", w.Body.String())
	}
}

func TestScans_DuplicateIDConflicts(t *testing.T) {
	e := newEnv(t)
	body := map[string]any{"id": "job-1", "name": "a"}
	if w := e.do(t, http.MethodPost, "/scans", body, nil); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	w := e.do(t, http.MethodPost, "/scans", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create = %d; want 409", w.Code)
	}
	if got := decode[ErrorResponse](t, w); got.Code != ErrCodeConflict {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestScans_ConfidenceOutOfRangeIs400(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/scans", map[string]any{"confidence": 140}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestScans_Update(t *testing.T) {
	e := newEnv(t)
	created := decode[ScanResponse](t, e.do(t, http.MethodPost, "/scans", map[string]any{"status": "Anomaly Detected"}, nil))

	w := e.do(t, http.MethodPut, "/scans/"+created.Scan.ID, map[string]any{"status": "Reviewed"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[ScanResponse](t, w); got.Scan.Status != "Reviewed" {
		t.Fatalf("status not updated: %+v", got.Scan)
	}

	if w := e.do(t, http.MethodPut, "/scans/missing", map[string]any{"status": "x"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing scan update = %d; want 404", w.Code)
	}
}

func TestList_ETagAndNotModified(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/scans", map[string]any{"name": "a"}, nil)

	w := e.do(t, http.MethodGet, "/scans", nil, nil)
	etag := w.Header().Get("ETag")
	if etag == "" || etag[:2] != "W/" {
		t.Fatalf("expected weak ETag, got %q", etag)
	}

	w = e.do(t, http.MethodGet, "/scans", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("If-None-Match = %d; want 304", w.Code)
	}

	// A different filter never shares the tag.
	w = e.do(t, http.MethodGet, "/scans?status=x", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("filtered list = %d; want 200", w.Code)
	}

	e.do(t, http.MethodPost, "/scans", map[string]any{"name": "b"}, nil)
	w = e.do(t, http.MethodGet, "/scans", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("after create = %d; want 200", w.Code)
	}
	if w.Header().Get("ETag") == etag {
		t.Fatalf("ETag did not change after create")
	}
}

func TestAppointments_CreateDefaultsAndUpdate(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/appointments", map[string]any{"date": "2024-02-15", "time": "10:00 AM"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	created := decode[AppointmentResponse](t, w)
	a := created.Appointment
	if created.Message != "Appointment requested successfully" {
		t.Fatalf("message = %q", created.Message)
	}
	if a.PatientName != "Anonymous" || a.DoctorID != "DOC-001" || a.Status != domain.AppointmentPending {
		t.Fatalf("defaults not applied: %+v", a)
	}

	w = e.do(t, http.MethodPut, "/appointments/"+a.ID, map[string]any{"status": "rescheduled", "newDate": "2024-03-01", "newTime": "9:00 AM"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d body=%s", w.Code, w.Body.String())
	}
	upd := decode[AppointmentResponse](t, w)
	if upd.Message != "Appointment updated" || upd.Appointment.Status != domain.AppointmentRescheduled ||
		upd.Appointment.Date != "2024-03-01" || upd.Appointment.Time != "9:00 AM" {
		t.Fatalf("unexpected update: %+v", upd)
	}

	// Same status again through the body-id form is a no-op.
	w = e.do(t, http.MethodPut, "/appointments", map[string]any{"id": a.ID, "status": "rescheduled"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("repeat update = %d", w.Code)
	}
	again := decode[AppointmentResponse](t, w)
	if !again.Appointment.UpdatedAt.Equal(upd.Appointment.UpdatedAt) {
		t.Fatalf("repeat status bumped UpdatedAt: %v -> %v", upd.Appointment.UpdatedAt, again.Appointment.UpdatedAt)
	}

	lst := decode[ListAppointmentsResponse](t, e.do(t, http.MethodGet, "/appointments", nil, nil))
	if len(lst.Appointments) != 1 {
		t.Fatalf("list len = %d", len(lst.Appointments))
	}
}

func TestAppointments_UpdateErrors(t *testing.T) {
	e := newEnv(t)
	a := decode[AppointmentResponse](t, e.do(t, http.MethodPost, "/appointments", map[string]any{}, nil)).Appointment

	if w := e.do(t, http.MethodPut, "/appointments/"+a.ID, map[string]any{"status": "cancelled"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus status = %d; want 400", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/appointments/nope", map[string]any{"status": "confirmed"}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing = %d; want 404", w.Code)
	}
	if w := e.do(t, http.MethodPut, "/appointments", map[string]any{"status": "confirmed"}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("no id = %d; want 400", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/appointments?status=cancelled", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bogus filter = %d; want 400", w.Code)
	}
}

func TestMessages_RequiredFields(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/messages", map[string]any{"senderId": "DOC-001", "content": "hi"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing recipient = %d; want 400", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/messages", "{", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed json = %d; want 400", w.Code)
	}
}

func TestMessages_FilterByPatientAndMarkRead(t *testing.T) {
	e := newEnv(t)
	send := func(sender, recipient, patient, content string) domain.Message {
		t.Helper()
		w := e.do(t, http.MethodPost, "/messages", map[string]any{
			"senderId": sender, "recipientId": recipient, "patientId": patient, "content": content,
		}, nil)
		if w.Code != http.StatusCreated {
			t.Fatalf("send = %d body=%s", w.Code, w.Body.String())
		}
		return *decode[MessageResponse](t, w).Message
	}
	m1 := send("DOC-001", "PAT-1", "PAT-1", "Results are in.\r\n\r\n\r\n\r\nCall me.")
	send("PAT-1", "DOC-001", "", "Thanks")
	send("DOC-001", "PAT-2", "PAT-2", "Hello")

	if m1.Content != "Results are in.\n\nCall me." {
		t.Fatalf("content not normalized: %q", m1.Content)
	}
	if m1.Read {
		t.Fatalf("new message should be unread")
	}

	lst := decode[ListMessagesResponse](t, e.do(t, http.MethodGet, "/messages?patientId=PAT-1", nil, nil))
	if len(lst.Messages) != 2 || lst.Messages[0].ID != m1.ID {
		t.Fatalf("patient filter: %+v", lst.Messages)
	}

	w := e.do(t, http.MethodPut, "/messages/"+m1.ID, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("mark read = %d body=%s", w.Code, w.Body.String())
	}
	if got := decode[MessageResponse](t, w); !got.Message.Read {
		t.Fatalf("empty body should mark read")
	}
	w = e.do(t, http.MethodPut, "/messages/"+m1.ID, map[string]any{"read": false}, nil)
	if got := decode[MessageResponse](t, w); got.Message.Read {
		t.Fatalf("read=false not applied")
	}
	if w := e.do(t, http.MethodPut, "/messages/missing", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing message = %d; want 404", w.Code)
	}
}

func TestMessages_IdempotentReplay(t *testing.T) {
	e := newEnv(t)
	body := map[string]any{"senderId": "DOC-001", "recipientId": "PAT-1", "content": "once"}
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "send-1"}

	first := e.do(t, http.MethodPost, "/messages", body, hdr)
	if first.Code != http.StatusCreated {
		t.Fatalf("first = %d", first.Code)
	}
	second := e.do(t, http.MethodPost, "/messages", body, hdr)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay = %d; want original 201", second.Code)
	}
	if second.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay header missing")
	}
	a, b := decode[MessageResponse](t, first), decode[MessageResponse](t, second)
	if a.Message.ID != b.Message.ID {
		t.Fatalf("replay returned a different message: %s vs %s", a.Message.ID, b.Message.ID)
	}

	lst := decode[ListMessagesResponse](t, e.do(t, http.MethodGet, "/messages", nil, nil))
	if len(lst.Messages) != 1 {
		t.Fatalf("replay stored a second message: %d", len(lst.Messages))
	}

	// The same key on another collection is independent.
	w := e.do(t, http.MethodPost, "/scans", map[string]any{"name": "x"}, hdr)
	if w.Code != http.StatusCreated || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("scan with reused key: code=%d replayed=%q", w.Code, w.Header().Get(middleware.HeaderIdempotencyReplayed))
	}
}

func TestSanitizeContent(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  hi  ", "hi"},
		{"a\r\nb\rc", "a\nb\nc"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"cafe\u0301", "caf\u00e9"},
	}
	for _, tc := range cases {
		if got := sanitizeContent(tc.in); got != tc.want {
			t.Fatalf("sanitizeContent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}
