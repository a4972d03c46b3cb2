package doctor

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.POST("/doctors", h.CreateDoctor, auth.RequireRole(auth.RoleAdmin))
	api.PUT("/doctors/:id/availability", h.UpdateAvailability, auth.RequireRole(auth.RoleDoctor, auth.RoleAdmin))
}

type createDoctorRequest struct {
	ID                   *uuid.UUID           `json:"id"`
	FullName             string               `json:"fullName" validate:"required,max=200"`
	Specialization       string               `json:"specialization" validate:"max=200"`
	AvailabilitySchedule AvailabilitySchedule `json:"availabilitySchedule" validate:"dive"`
	AppointmentDuration  int                  `json:"appointmentDuration" validate:"required,gt=0,lte=1440"`
	AppointmentFee       int64                `json:"appointmentFee" validate:"gte=0"`
}

type availabilityRequest struct {
	AvailabilitySchedule AvailabilitySchedule `json:"availabilitySchedule" validate:"dive"`
	AppointmentDuration  int                  `json:"appointmentDuration" validate:"required,gt=0,lte=1440"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req createDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	d := &Doctor{
		FullName:             req.FullName,
		Specialization:       req.Specialization,
		AvailabilitySchedule: req.AvailabilitySchedule,
		AppointmentDuration:  req.AppointmentDuration,
		AppointmentFee:       req.AppointmentFee,
	}
	// Doctors log in with their own user id, so admins may pin it.
	if req.ID != nil {
		d.ID = *req.ID
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL.Path))
}

func (h *Handler) UpdateAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	caller, _ := auth.IdentityFromContext(c.Request().Context())
	if caller.Role != auth.RoleAdmin && caller.ID != id {
		return echo.NewHTTPError(http.StatusForbidden, "doctors may only change their own availability")
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	d, err := h.svc.UpdateAvailability(c.Request().Context(), id, req.AvailabilitySchedule, req.AppointmentDuration)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidSchedule):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidDoctor):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
