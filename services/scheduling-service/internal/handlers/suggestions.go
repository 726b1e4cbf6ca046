package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/recommend"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

// contextWindow is how far either side of the target date appointments are
// loaded for scoring and attendance history.
const contextWindow = 7 * 24 * time.Hour

type Recommender interface {
	Generate(ctx context.Context, req recommend.Request) (model.RecommendationResult, error)
}

type SuggestionHandler struct {
	engine          Recommender
	appointments    storage.Appointments
	recommendations storage.Recommendations
	loc             *time.Location
	logger          *slog.Logger
}

func NewSuggestionHandler(engine Recommender, appointments storage.Appointments, recommendations storage.Recommendations, loc *time.Location, logger *slog.Logger) *SuggestionHandler {
	if loc == nil {
		loc = time.Local
	}
	return &SuggestionHandler{engine: engine, appointments: appointments, recommendations: recommendations, loc: loc, logger: logger}
}

type generateRequest struct {
	Date string `json:"date"`
}

func (h *SuggestionHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	list, err := h.recommendations.ListRecommendationsByUser(r.Context(), u.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list suggestions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve AI suggestions")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SuggestionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}
	date, err := parseTimeParam(req.Date, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	f := model.AppointmentFilter{StartDate: date.Add(-contextWindow), EndDate: date.Add(contextWindow)}
	if u.Role == model.RoleCustomer {
		f.ClientID = model.Int64Ptr(u.ID)
	} else {
		f.StaffID = model.Int64Ptr(u.ID)
	}

	ctx := r.Context()
	appts, err := h.appointments.ListAppointments(ctx, f)
	if err != nil {
		h.logger.ErrorContext(ctx, "load suggestion context failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate AI suggestions")
		return
	}
	result, err := h.engine.Generate(ctx, recommend.Request{UserID: u.ID, Date: date, Appointments: withoutCancelled(appts), Role: u.Role})
	if err != nil {
		if errors.Is(err, recommend.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "generate suggestions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate AI suggestions")
		return
	}

	saved, err := h.recommendations.CreateRecommendation(ctx, model.Recommendation{UserID: u.ID, Date: date, Suggestion: result})
	if err != nil {
		h.logger.ErrorContext(ctx, "save suggestion failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate AI suggestions")
		return
	}
	h.logger.InfoContext(ctx, "suggestions generated", "user_id", u.ID, "suggestion_id", saved.ID, "slots", len(result.RecommendedSlots))
	writeJSON(w, http.StatusOK, saved)
}

// withoutCancelled drops cancelled bookings so their time is offered again.
func withoutCancelled(appts []model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Status != model.StatusCancelled {
			out = append(out, a)
		}
	}
	return out
}

func (h *SuggestionHandler) Use(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid suggestion id")
		return
	}
	ctx := r.Context()
	s, err := h.recommendations.GetRecommendation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "AI suggestion not found")
			return
		}
		h.logger.ErrorContext(ctx, "load suggestion failed", "suggestion_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to mark AI suggestion as used")
		return
	}
	if s.UserID != u.ID && u.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "Not authorized to use this suggestion")
		return
	}
	s, err = h.recommendations.MarkRecommendationUsed(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "AI suggestion not found")
			return
		}
		h.logger.ErrorContext(ctx, "mark suggestion used failed", "suggestion_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to mark AI suggestion as used")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
