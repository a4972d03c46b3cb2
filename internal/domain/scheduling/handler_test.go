package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/payment"
	"github.com/clinic/clinic/internal/platform/validate"
)

const testWebhookSecret = "whsec_test"

func newTestRouter() (*echo.Echo, *fixture) {
	f := newFixture()
	e := echo.New()
	e.Validator = validate.New()
	e.Use(auth.DevAuthMiddleware(auth.JWTConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/api/v1/payments/callback" },
	}))
	NewHandler(f.svc, testWebhookSecret).RegisterRoutes(e.Group("/api/v1"))
	return e, f
}

func do(e *echo.Echo, method, path, body string, who auth.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if who.ID != uuid.Nil {
		req.Header.Set(auth.DevUserHeader, who.ID.String())
		req.Header.Set(auth.DevRoleHeader, string(who.Role))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func patientIdentity() auth.Identity {
	return auth.Identity{ID: uuid.New(), Role: auth.RolePatient}
}

func TestHandler_TimeSlots(t *testing.T) {
	e, f := newTestRouter()
	who := patientIdentity()

	body := fmt.Sprintf(`{"doctorId":%q,"date":"2030-03-04"}`, f.doc.ID)
	rec := do(e, http.MethodPost, "/api/v1/appointments/time-slots", body, who)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status             string     `json:"status"`
		Results            int        `json:"results"`
		AvailableTimeSlots []TimeSlot `json:"availableTimeSlots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "success" || resp.Results != 8 || len(resp.AvailableTimeSlots) != 8 {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.AvailableTimeSlots[0].StartTime.Equal(slot(0)) {
		t.Errorf("expected first slot %v, got %v", slot(0), resp.AvailableTimeSlots[0].StartTime)
	}

	// Doctor taken from the path.
	rec = do(e, http.MethodPost, "/api/v1/doctors/"+f.doc.ID.String()+"/appointments/time-slots", `{"appointmentDate":"2030-03-04"}`, who)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for path variant, got %d", rec.Code)
	}
}

func TestHandler_TimeSlots_Errors(t *testing.T) {
	e, f := newTestRouter()
	who := patientIdentity()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"past date", fmt.Sprintf(`{"doctorId":%q,"date":"2020-01-01"}`, f.doc.ID), http.StatusBadRequest},
		{"garbage date", fmt.Sprintf(`{"doctorId":%q,"date":"soon"}`, f.doc.ID), http.StatusBadRequest},
		{"missing date", fmt.Sprintf(`{"doctorId":%q}`, f.doc.ID), http.StatusBadRequest},
		{"day off", fmt.Sprintf(`{"doctorId":%q,"date":"2030-03-09"}`, f.doc.ID), http.StatusBadRequest},
		{"unknown doctor", fmt.Sprintf(`{"doctorId":%q,"date":"2030-03-04"}`, uuid.New()), http.StatusNotFound},
		{"missing doctor", `{"date":"2030-03-04"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/v1/appointments/time-slots", tt.body, who)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_TimeSlots_RequiresPatient(t *testing.T) {
	e, f := newTestRouter()
	body := fmt.Sprintf(`{"doctorId":%q,"date":"2030-03-04"}`, f.doc.ID)
	rec := do(e, http.MethodPost, "/api/v1/appointments/time-slots", body, auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_BookAndCancel(t *testing.T) {
	e, f := newTestRouter()
	who := patientIdentity()
	start := slot(2).Format("2006-01-02T15:04:05.000Z07:00")

	body := fmt.Sprintf(`{"doctor":%q,"appointmentDate":%q,"reason":"rash"}`, f.doc.ID, start)
	rec := do(e, http.MethodPost, "/api/v1/appointments", body, who)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var appt Appointment
	json.Unmarshal(rec.Body.Bytes(), &appt)
	if appt.PatientID != who.ID || appt.DoctorID != f.doc.ID || appt.Status != StatusPending {
		t.Errorf("unexpected appointment %+v", appt)
	}

	rec = do(e, http.MethodPost, "/api/v1/doctors/"+f.doc.ID.String()+"/appointments", fmt.Sprintf(`{"appointmentDate":%q}`, start), patientIdentity())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a taken slot, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/v1/appointments/cancel/"+appt.ID.String(), "", patientIdentity())
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another patient, got %d", rec.Code)
	}

	rec = do(e, http.MethodPost, "/api/v1/appointments/cancel/"+appt.ID.String(), "", who)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status        string        `json:"status"`
		RefundDetails RefundSummary `json:"refundDetails"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "success" || resp.RefundDetails.Status != RefundProcessing || resp.RefundDetails.Amount != 9900 {
		t.Errorf("unexpected cancel response %+v", resp)
	}

	rec = do(e, http.MethodPost, "/api/v1/appointments/cancel/"+uuid.NewString(), "", who)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Book_Validation(t *testing.T) {
	e, f := newTestRouter()
	rec := do(e, http.MethodPost, "/api/v1/appointments", fmt.Sprintf(`{"doctorId":%q}`, f.doc.ID), patientIdentity())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without appointmentDate, got %d", rec.Code)
	}
}

func TestHandler_Upcoming(t *testing.T) {
	e, f := newTestRouter()
	who := patientIdentity()
	f.book(t, who.ID, slot(1))
	f.book(t, uuid.New(), slot(3))

	var resp struct {
		Results int `json:"results"`
	}
	rec := do(e, http.MethodGet, "/api/v1/appointments/upcoming", "", who)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Results != 1 {
		t.Errorf("expected 1 upcoming for the patient, got %d (%d)", resp.Results, rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/appointments/upcoming", "", auth.Identity{ID: f.doc.ID, Role: auth.RoleDoctor})
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusOK || resp.Results != 2 {
		t.Errorf("expected 2 upcoming for the doctor, got %d (%d)", resp.Results, rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/v1/appointments/upcoming", "", auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin})
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin, got %d", rec.Code)
	}
}

func TestHandler_DoctorOwnAppointments(t *testing.T) {
	e, f := newTestRouter()
	appt := f.book(t, uuid.New(), slot(0))
	me := auth.Identity{ID: f.doc.ID, Role: auth.RoleDoctor}

	rec := do(e, http.MethodGet, "/api/v1/doctors/me/appointments", "", me)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("unexpected listing %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/api/v1/doctors/me/appointments/"+appt.ID.String(), "", me)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	other := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	rec = do(e, http.MethodGet, "/api/v1/doctors/me/appointments/"+appt.ID.String(), "", other)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another doctor, got %d", rec.Code)
	}
}

func TestHandler_CheckoutSession(t *testing.T) {
	e, f := newTestRouter()
	who := patientIdentity()
	appt := f.book(t, who.ID, slot(0))
	path := "/api/v1/appointments/" + appt.ID.String() + "/checkout-session"

	rec := do(e, http.MethodPost, path, "", who)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a gateway, got %d", rec.Code)
	}

	gw := &fakeGateway{}
	f.svc.SetPaymentGateway(gw)
	rec = do(e, http.MethodPost, path, "", who)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cs_test_1") {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasSuffix(gw.last.SuccessURL, "?appointmentId="+appt.ID.String()) {
		t.Errorf("unexpected success url %q", gw.last.SuccessURL)
	}
}

func TestHandler_PaymentCallback(t *testing.T) {
	e, f := newTestRouter()
	appt := f.book(t, uuid.New(), slot(0))
	body := fmt.Sprintf(`{"appointmentId":%q,"status":"paid"}`, appt.ID)

	rec := do(e, http.MethodPost, "/api/v1/payments/callback", body, auth.Identity{})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without the secret, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(auth.WebhookSecretHeader, testWebhookSecret)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := f.repo.items[appt.ID]; got.Status != StatusScheduled || got.PaymentStatus != PaymentPaid {
		t.Errorf("expected scheduled/paid, got %s/%s", got.Status, got.PaymentStatus)
	}
}

func TestHandler_Admin(t *testing.T) {
	e, f := newTestRouter()
	appt := f.book(t, uuid.New(), slot(0))
	admin := auth.Identity{ID: uuid.New(), Role: auth.RoleAdmin}
	path := "/api/v1/appointments/" + appt.ID.String()

	if rec := do(e, http.MethodGet, "/api/v1/appointments", "", admin); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/v1/appointments", "", patientIdentity()); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a patient, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPatch, path, `{"status":"completed"}`, admin); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodPatch, path, `{"status":"archived"}`, admin); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown status, got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, path, "", admin); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, path, "", admin); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidDate, http.StatusBadRequest},
		{ErrSlotUnavailable, http.StatusBadRequest},
		{ErrCancellationWindowExpired, http.StatusBadRequest},
		{fmt.Errorf("%w: duration 0", ErrInvalidConfiguration), http.StatusUnprocessableEntity},
		{ErrNotFound, http.StatusNotFound},
		{doctor.ErrNotFound, http.StatusNotFound},
		{ErrForbidden, http.StatusForbidden},
		{payment.ErrGatewayDisabled, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: boom", ErrPersistenceFailure), http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var he *echo.HTTPError
		if !errors.As(httpError(tt.err), &he) || he.Code != tt.want {
			t.Errorf("%v: expected %d, got %v", tt.err, tt.want, he)
		}
	}
}
