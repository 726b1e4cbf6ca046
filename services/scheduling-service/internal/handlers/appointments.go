package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/calendarsync"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/notify"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

const defaultColor = "#3b82f6"

type AppointmentHandler struct {
	appointments storage.Appointments
	notifier     *notify.Dispatcher
	syncer       *calendarsync.Syncer
	loc          *time.Location
	logger       *slog.Logger
}

func NewAppointmentHandler(appointments storage.Appointments, notifier *notify.Dispatcher, syncer *calendarsync.Syncer, loc *time.Location, logger *slog.Logger) *AppointmentHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentHandler{appointments: appointments, notifier: notifier, syncer: syncer, loc: loc, logger: logger}
}

// appointmentInput is shared by create and partial update; nil fields are left alone.
type appointmentInput struct {
	Title     *string                  `json:"title"`
	StartTime *time.Time               `json:"startTime"`
	EndTime   *time.Time               `json:"endTime"`
	ClientID  *int64                   `json:"clientId"`
	StaffID   *int64                   `json:"staffId"`
	Location  *string                  `json:"location"`
	Notes     *string                  `json:"notes"`
	Status    *model.AppointmentStatus `json:"status"`
	Color     *string                  `json:"color"`
}

func (in appointmentInput) apply(a *model.Appointment) {
	if in.Title != nil {
		a.Title = strings.TrimSpace(*in.Title)
	}
	if in.StartTime != nil {
		a.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		a.EndTime = *in.EndTime
	}
	if in.ClientID != nil {
		a.ClientID = in.ClientID
	}
	if in.StaffID != nil {
		a.StaffID = in.StaffID
	}
	if in.Location != nil {
		a.Location = *in.Location
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.Color != nil {
		a.Color = *in.Color
	}
}

func validateAppointment(a model.Appointment) string {
	switch {
	case a.Title == "":
		return "title is required"
	case a.StartTime.IsZero() || a.EndTime.IsZero():
		return "startTime and endTime are required"
	case !a.EndTime.After(a.StartTime):
		return "endTime must be after startTime"
	case !a.Status.Valid():
		return "invalid status"
	}
	return ""
}

func canModify(u model.User, a model.Appointment) bool {
	if u.Role == model.RoleAdmin {
		return true
	}
	return (a.StaffID != nil && *a.StaffID == u.ID) || (a.ClientID != nil && *a.ClientID == u.ID)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	q := r.URL.Query()

	var f model.AppointmentFilter
	if raw := q.Get("startDate"); raw != "" {
		t, err := parseTimeParam(raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate")
			return
		}
		f.StartDate = t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseTimeParam(raw, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		f.EndDate = t
	}
	if raw := q.Get("status"); raw != "" {
		f.Status = model.AppointmentStatus(raw)
		if !f.Status.Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	switch u.Role {
	case model.RoleCustomer:
		f.ClientID = model.Int64Ptr(u.ID)
	case model.RoleStaff:
		f.StaffID = model.Int64Ptr(u.ID)
	}

	list, err := h.appointments.ListAppointments(r.Context(), f)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list appointments failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var in appointmentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid appointment data")
		return
	}
	a := model.Appointment{Status: model.StatusScheduled, Color: defaultColor}
	in.apply(&a)
	if u.Role == model.RoleCustomer && a.ClientID == nil {
		a.ClientID = model.Int64Ptr(u.ID)
	}
	if msg := validateAppointment(a); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	created, err := h.appointments.CreateAppointment(ctx, a)
	if err != nil {
		h.logger.ErrorContext(ctx, "create appointment failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to create appointment")
		return
	}
	h.afterChange(r, created, model.NotificationConfirmation, calendarsync.ActionCreate)
	writeJSON(w, http.StatusCreated, created)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	ctx := r.Context()
	existing, err := h.appointments.GetAppointment(ctx, id)
	if err != nil {
		h.lookupFailed(w, r, err)
		return
	}
	if !canModify(u, existing) {
		writeError(w, http.StatusForbidden, "Not authorized to update this appointment")
		return
	}

	var in appointmentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid appointment data")
		return
	}
	updated := existing
	in.apply(&updated)
	if msg := validateAppointment(updated); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	updated, err = h.appointments.UpdateAppointment(ctx, updated)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.ErrorContext(ctx, "update appointment failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to update appointment")
		return
	}

	var typ model.NotificationType
	if !updated.StartTime.Equal(existing.StartTime) || !updated.EndTime.Equal(existing.EndTime) {
		typ = model.NotificationRescheduled
	}
	h.afterChange(r, updated, typ, calendarsync.ActionUpdate)
	writeJSON(w, http.StatusOK, updated)
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	ctx := r.Context()
	existing, err := h.appointments.GetAppointment(ctx, id)
	if err != nil {
		h.lookupFailed(w, r, err)
		return
	}
	if !canModify(u, existing) {
		writeError(w, http.StatusForbidden, "Not authorized to delete this appointment")
		return
	}

	// The client hears about the cancellation before the record goes away.
	h.afterChange(r, existing, model.NotificationCancellation, calendarsync.ActionDelete)
	if err := h.appointments.DeleteAppointment(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.ErrorContext(ctx, "delete appointment failed", "appointment_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete appointment")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Appointment deleted successfully"})
}

// afterChange notifies the client (when typ is set) and mirrors the change to
// the staff member's calendars. Neither step fails the request.
func (h *AppointmentHandler) afterChange(r *http.Request, a model.Appointment, typ model.NotificationType, action calendarsync.Action) {
	ctx := r.Context()
	if typ != "" && a.ClientID != nil && h.notifier != nil {
		if _, err := h.notifier.Notify(ctx, *a.ClientID, a, typ); err != nil {
			h.logger.WarnContext(ctx, "notification not recorded", "appointment_id", a.ID, "type", string(typ), "err", err)
		}
	}
	if h.syncer != nil {
		h.syncer.Sync(ctx, action, a)
	}
}

func (h *AppointmentHandler) lookupFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Appointment not found")
		return
	}
	h.logger.ErrorContext(r.Context(), "load appointment failed", "err", err)
	writeError(w, http.StatusInternalServerError, "Failed to load appointment")
}
