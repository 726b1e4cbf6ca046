package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

type IntegrationHandler struct {
	integrations storage.Integrations
	logger       *slog.Logger
}

func NewIntegrationHandler(integrations storage.Integrations, logger *slog.Logger) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, logger: logger}
}

type createIntegrationRequest struct {
	Provider     model.Provider `json:"provider"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	ExpiresAt    *time.Time     `json:"expiresAt"`
	Connected    *bool          `json:"connected"`
}

func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	list, err := h.integrations.ListIntegrationsByUser(r.Context(), u.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list integrations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve calendar integrations")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	var req createIntegrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid integration data")
		return
	}
	if !req.Provider.Valid() {
		writeError(w, http.StatusBadRequest, "provider must be google, outlook or apple")
		return
	}
	connected := true
	if req.Connected != nil {
		connected = *req.Connected
	}
	ci, err := h.integrations.CreateIntegration(r.Context(), model.CalendarIntegration{
		UserID:       u.ID,
		Provider:     req.Provider,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    req.ExpiresAt,
		Connected:    connected,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create integration failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to create calendar integration")
		return
	}
	writeJSON(w, http.StatusCreated, ci)
}

func (h *IntegrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid integration id")
		return
	}
	ctx := r.Context()
	ci, err := h.integrations.GetIntegration(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calendar integration not found")
			return
		}
		h.logger.ErrorContext(ctx, "load integration failed", "integration_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete calendar integration")
		return
	}
	if ci.UserID != u.ID && u.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "Not authorized to delete this integration")
		return
	}
	if err := h.integrations.DeleteIntegration(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calendar integration not found")
			return
		}
		h.logger.ErrorContext(ctx, "delete integration failed", "integration_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete calendar integration")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Calendar integration deleted successfully"})
}
