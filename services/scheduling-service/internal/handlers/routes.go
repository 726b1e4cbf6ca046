package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/calendarsync"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/notify"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

type Deps struct {
	Store    storage.Store
	Engine   Recommender
	Notifier *notify.Dispatcher
	Syncer   *calendarsync.Syncer
	Sessions *Sessions
	Location *time.Location
	Logger   *slog.Logger
}

// Register mounts the JSON API on mux.
func Register(mux *http.ServeMux, d Deps) {
	authH := NewAuthHandler(d.Sessions, d.Store, d.Logger)
	users := NewUserHandler(d.Store, d.Logger)
	appts := NewAppointmentHandler(d.Store, d.Notifier, d.Syncer, d.Location, d.Logger)
	integrations := NewIntegrationHandler(d.Store, d.Logger)
	suggestions := NewSuggestionHandler(d.Engine, d.Store, d.Store, d.Location, d.Logger)
	notifications := NewNotificationHandler(d.Store, d.Logger)
	authed, admin := d.Sessions.Authenticated, d.Sessions.Admin

	mux.HandleFunc("POST /api/auth/login", authH.Login)
	mux.HandleFunc("POST /api/auth/logout", authH.Logout)
	mux.HandleFunc("GET /api/auth/session", authH.Session)

	mux.HandleFunc("GET /api/users", admin(users.List))
	mux.HandleFunc("POST /api/users", admin(users.Create))

	mux.HandleFunc("GET /api/appointments", authed(appts.List))
	mux.HandleFunc("POST /api/appointments", authed(appts.Create))
	mux.HandleFunc("PUT /api/appointments/{id}", authed(appts.Update))
	mux.HandleFunc("DELETE /api/appointments/{id}", authed(appts.Delete))

	mux.HandleFunc("GET /api/calendar-integrations", authed(integrations.List))
	mux.HandleFunc("POST /api/calendar-integrations", authed(integrations.Create))
	mux.HandleFunc("DELETE /api/calendar-integrations/{id}", authed(integrations.Delete))

	mux.HandleFunc("GET /api/ai-suggestions", authed(suggestions.List))
	mux.HandleFunc("POST /api/ai-suggestions/generate", authed(suggestions.Generate))
	mux.HandleFunc("POST /api/ai-suggestions/{id}/use", authed(suggestions.Use))

	mux.HandleFunc("GET /api/notifications", authed(notifications.List))
}
