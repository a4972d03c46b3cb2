package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/payment"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc           *Service
	webhookSecret string
}

func NewHandler(svc *Service, webhookSecret string) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	patient := auth.RequireRole(auth.RolePatient)
	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	admin := auth.RequireRole(auth.RoleAdmin)

	// Booking flow
	api.POST("/appointments/time-slots", h.AvailableSlots, patient)
	api.POST("/doctors/:id/appointments/time-slots", h.AvailableSlots, patient)
	api.POST("/appointments", h.BookAppointment, patient)
	api.POST("/doctors/:id/appointments", h.BookAppointment, patient)
	api.POST("/appointments/cancel/:id", h.CancelAppointment, patient)
	api.POST("/appointments/:id/checkout-session", h.CreateCheckoutSession, patient)
	api.GET("/appointments/upcoming", h.UpcomingAppointments, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))

	// Doctor's own book
	api.GET("/doctors/me/appointments", h.ListMyAppointments, doctorOnly)
	api.GET("/doctors/me/appointments/:id", h.GetMyAppointment, doctorOnly)

	// Payment provider callback
	api.POST("/payments/callback", h.PaymentCallback, auth.RequireWebhookSecret(h.webhookSecret))

	// Administration
	api.GET("/appointments", h.ListAppointments, admin)
	api.GET("/appointments/:id", h.GetAppointment, admin)
	api.PATCH("/appointments/:id", h.UpdateAppointment, admin)
	api.DELETE("/appointments/:id", h.DeleteAppointment, admin)
}

type timeSlotsRequest struct {
	DoctorID        string `json:"doctorId"`
	Doctor          string `json:"doctor"`
	Date            string `json:"date"`
	AppointmentDate string `json:"appointmentDate"`
}

type bookingRequest struct {
	DoctorID        string    `json:"doctorId"`
	Doctor          string    `json:"doctor"`
	AppointmentDate time.Time `json:"appointmentDate" validate:"required"`
	Reason          *string   `json:"reason" validate:"omitempty,max=1000"`
	Notes           *string   `json:"notes" validate:"omitempty,max=2000"`
}

type paymentCallbackRequest struct {
	AppointmentID uuid.UUID     `json:"appointmentId" validate:"required"`
	Status        PaymentStatus `json:"status" validate:"required,oneof=paid failed"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required,oneof=pending scheduled completed cancelled"`
}

// doctorID prefers the :id path parameter, then doctorId, then doctor.
func doctorID(c echo.Context, fromBody ...string) (uuid.UUID, error) {
	candidates := append([]string{c.Param("id")}, fromBody...)
	for _, v := range candidates {
		if v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
			}
			return id, nil
		}
	}
	return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "doctorId is required")
}

// parseDate reads a bare calendar date in loc, or a full RFC 3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, ErrInvalidDate
}

func caller(c echo.Context) auth.Identity {
	id, _ := auth.IdentityFromContext(c.Request().Context())
	return id
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Booking flow --

func (h *Handler) AvailableSlots(c echo.Context) error {
	var req timeSlotsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	raw := req.AppointmentDate
	if raw == "" {
		raw = req.Date
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "date is required")
	}
	date, err := parseDate(raw, h.svc.Location())
	if err != nil {
		return httpError(err)
	}
	docID, err := doctorID(c, req.DoctorID, req.Doctor)
	if err != nil {
		return err
	}

	slots, err := h.svc.AvailableSlots(c.Request().Context(), docID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":             "success",
		"results":            len(slots),
		"availableTimeSlots": slots,
	})
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	docID, err := doctorID(c, req.DoctorID, req.Doctor)
	if err != nil {
		return err
	}

	appt, err := h.svc.BookAppointment(c.Request().Context(), BookingRequest{
		DoctorID:        docID,
		PatientID:       caller(c).ID,
		AppointmentDate: req.AppointmentDate,
		Reason:          req.Reason,
		Notes:           req.Notes,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	summary, err := h.svc.CancelAppointment(c.Request().Context(), id, caller(c).ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "success",
		"message":       "You have successfully cancelled the appointment.",
		"refundDetails": summary,
	})
}

func (h *Handler) UpcomingAppointments(c echo.Context) error {
	who := caller(c)
	party := PartyPatient
	if who.Role == auth.RoleDoctor {
		party = PartyDoctor
	}
	items, err := h.svc.UpcomingAppointments(c.Request().Context(), party, who.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "success",
		"results":      len(items),
		"appointments": items,
	})
}

func (h *Handler) CreateCheckoutSession(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	base := fmt.Sprintf("%s://%s/", c.Scheme(), c.Request().Host)
	session, err := h.svc.CreateCheckoutSession(c.Request().Context(), id, caller(c).ID,
		base+"?appointmentId="+id.String(), base)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"session": session,
	})
}

func (h *Handler) PaymentCallback(c echo.Context) error {
	var req paymentCallbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	appt, err := h.svc.RecordPayment(c.Request().Context(), req.AppointmentID, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Doctor's own book --

func (h *Handler) ListMyAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctorAppointments(c.Request().Context(), caller(c).ID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL.Path))
}

func (h *Handler) GetMyAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.GetDoctorAppointment(c.Request().Context(), caller(c).ID, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

// -- Administration --

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAppointments(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL.Path))
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	appt, err := h.svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrDoctorUnavailable),
		errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrCancellationWindowExpired),
		errors.Is(err, ErrPastAppointment),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrAlreadyPaid),
		errors.Is(err, ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidConfiguration):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, doctor.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, payment.ErrGatewayDisabled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrPersistenceFailure):
		return echo.NewHTTPError(http.StatusInternalServerError, ErrPersistenceFailure.Error()).SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
