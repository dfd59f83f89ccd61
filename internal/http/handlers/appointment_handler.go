// Appointment HTTP handlers.
//
//   - GET  /appointments        (insertion order; filters status, doctorId, limit)
//   - POST /appointments        (request an appointment)
//   - PUT  /appointments/{id}   (confirm, complete or reschedule)
//   - PUT  /appointments        (same, with the id in the body)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/services"
)

// CreateAppointmentRequest is the payload for POST /appointments. Missing
// patient and doctor fall back to store defaults.
type CreateAppointmentRequest struct {
	PatientName string `json:"patientName" example:"John Doe"`
	DoctorID    string `json:"doctorId" example:"DOC-001"`
	Date        string `json:"date" example:"2024-02-15"`
	Time        string `json:"time" example:"10:00 AM"`
	Reason      string `json:"reason" example:"Follow-up on liver scan"`
}

// UpdateAppointmentRequest changes an appointment's status and/or slot. ID
// is only read when the path carries none.
type UpdateAppointmentRequest struct {
	ID      string                    `json:"id"`
	Status  *domain.AppointmentStatus `json:"status" swaggertype:"string" enums:"pending,confirmed,rescheduled,completed"`
	NewDate *string                   `json:"newDate"`
	NewTime *string                   `json:"newTime"`
	Reason  *string                   `json:"reason"`
}

// AppointmentResponse wraps one appointment with a human-readable note.
type AppointmentResponse struct {
	Message     string              `json:"message"`
	Appointment *domain.Appointment `json:"appointment"`
}

// ListAppointmentsResponse wraps the appointment list.
type ListAppointmentsResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
}

// ListAppointments godoc
// @ID          listAppointments
// @Summary     List appointments
// @Tags        Appointments
// @Produce     json
// @Param       status    query  string  false  "Filter by status"  Enums(pending,confirmed,rescheduled,completed)
// @Param       doctorId  query  string  false  "Filter by doctor"
// @Param       limit     query  int     false  "Maximum number of appointments"  maximum(500)
// @Success     200  {object}  handlers.ListAppointmentsResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /appointments [get]
func (h *Handlers) ListAppointments(c *gin.Context) {
	if h.notModified(c, domain.CollectionAppointments) {
		return
	}
	items, err := h.records.ListAppointments(c.Request.Context(), services.AppointmentFilter{
		Status:   c.Query("status"),
		DoctorID: c.Query("doctorId"),
		Limit:    listLimit(c),
	})
	if err != nil {
		failFromErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Appointment{}
	}
	ok(c, http.StatusOK, ListAppointmentsResponse{Appointments: items})
}

// CreateAppointment godoc
// @ID          createAppointment
// @Summary     Request an appointment
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                             false  "Key for safe retries"
// @Param       body             body    handlers.CreateAppointmentRequest  true   "Appointment"
// @Success     201  {object}  handlers.AppointmentResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /appointments [post]
func (h *Handlers) CreateAppointment(c *gin.Context) {
	ctx := c.Request.Context()
	if id, status, found := h.replayed(c, domain.CollectionAppointments); found {
		if prev, err := h.records.GetAppointment(ctx, id); err == nil {
			markReplayed(c)
			ok(c, status, AppointmentResponse{Message: "Appointment requested successfully", Appointment: prev})
			return
		}
	}

	var req CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid appointment payload")
		return
	}
	a, err := h.records.CreateAppointment(ctx, domain.Appointment{
		PatientName: req.PatientName,
		DoctorID:    req.DoctorID,
		Date:        req.Date,
		Time:        req.Time,
		Reason:      req.Reason,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.remember(c, domain.CollectionAppointments, a.ID, http.StatusCreated)
	ok(c, http.StatusCreated, AppointmentResponse{Message: "Appointment requested successfully", Appointment: a})
}

// UpdateAppointment godoc
// @ID          updateAppointment
// @Summary     Update an appointment
// @Description Setting the status an appointment already has changes nothing.
// @Tags        Appointments
// @Accept      json
// @Produce     json
// @Param       id    path  string                             true  "Appointment ID"
// @Param       body  body  handlers.UpdateAppointmentRequest  true  "Changes"
// @Success     200  {object}  handlers.AppointmentResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /appointments/{id} [put]
func (h *Handlers) UpdateAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid appointment patch")
		return
	}
	id := c.Param("id")
	if id == "" {
		id = strings.TrimSpace(req.ID)
	}
	if id == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "appointment id required")
		return
	}
	a, err := h.records.UpdateAppointment(c.Request.Context(), id, services.AppointmentPatch{
		Status: req.Status,
		Date:   req.NewDate,
		Time:   req.NewTime,
		Reason: req.Reason,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "appointment not found")
			return
		}
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, AppointmentResponse{Message: "Appointment updated", Appointment: a})
}
