package handlers

import (
	"log/slog"
	"net/http"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

type NotificationHandler struct {
	notifications storage.Notifications
	logger        *slog.Logger
}

func NewNotificationHandler(notifications storage.Notifications, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())
	list, err := h.notifications.ListNotificationsByUser(r.Context(), u.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list notifications failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to retrieve notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
