package prescription

import (
	"errors"
	"net/http"
	"time"

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
	doctorOnly := auth.RequireRole(auth.RoleDoctor)
	anyone := auth.RequireRole(auth.RoleDoctor, auth.RolePatient, auth.RoleAdmin)

	api.POST("/prescriptions", h.Issue, doctorOnly)
	api.GET("/prescriptions", h.List, anyone)
	api.GET("/prescriptions/:id", h.Get, anyone)
	api.PATCH("/prescriptions/:id/status", h.UpdateStatus, doctorOnly)

	api.GET("/doctors/me/prescriptions", h.List, doctorOnly)
	api.GET("/doctors/me/prescriptions/:patientId", h.ListForPatient, doctorOnly)
}

type issueRequest struct {
	AppointmentID uuid.UUID    `json:"appointment" validate:"required"`
	Medications   []Medication `json:"medications" validate:"required,min=1,dive"`
	Diagnosis     string       `json:"diagnosis" validate:"required,max=2000"`
	Notes         string       `json:"notes" validate:"max=2000"`
	FollowUpDate  *time.Time   `json:"followUpDate"`
}

type statusRequest struct {
	Status Status `json:"status" validate:"required,oneof=issued revoked completed"`
}

func caller(c echo.Context) auth.Identity {
	who, _ := auth.IdentityFromContext(c.Request().Context())
	return who
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Issue(c echo.Context) error {
	var req issueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	p, err := h.svc.Issue(c.Request().Context(), caller(c).ID, IssueRequest{
		AppointmentID: req.AppointmentID,
		Medications:   req.Medications,
		Diagnosis:     req.Diagnosis,
		Notes:         req.Notes,
		FollowUpDate:  req.FollowUpDate,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	for name, dst := range map[string]**uuid.UUID{"doctorId": &f.DoctorID, "patientId": &f.PatientID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &id
		}
	}
	return h.list(c, f)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	patientID, err := uuidParam(c, "patientId")
	if err != nil {
		return err
	}
	return h.list(c, Filter{PatientID: &patientID})
}

func (h *Handler) list(c echo.Context, f Filter) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), caller(c), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c.Request().URL.Path))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), caller(c), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuidParam(c, "id")
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
	p, err := h.svc.UpdateStatus(c.Request().Context(), caller(c).ID, id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidPrescription), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
