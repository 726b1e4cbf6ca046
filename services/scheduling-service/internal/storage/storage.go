package storage

import (
	"context"
	"errors"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Users interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	// ListUsers filters by role unless role is empty.
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
}

type Appointments interface {
	GetAppointment(ctx context.Context, id int64) (model.Appointment, error)
	// ListAppointments returns matches ordered by start time.
	ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error)
	CreateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	UpdateAppointment(ctx context.Context, a model.Appointment) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, id int64) error
}

type Recommendations interface {
	CreateRecommendation(ctx context.Context, r model.Recommendation) (model.Recommendation, error)
	GetRecommendation(ctx context.Context, id int64) (model.Recommendation, error)
	// ListRecommendationsByUser returns newest first.
	ListRecommendationsByUser(ctx context.Context, userID int64) ([]model.Recommendation, error)
	MarkRecommendationUsed(ctx context.Context, id int64) (model.Recommendation, error)
}

type Integrations interface {
	CreateIntegration(ctx context.Context, ci model.CalendarIntegration) (model.CalendarIntegration, error)
	GetIntegration(ctx context.Context, id int64) (model.CalendarIntegration, error)
	ListIntegrationsByUser(ctx context.Context, userID int64) ([]model.CalendarIntegration, error)
	DeleteIntegration(ctx context.Context, id int64) error
}

type Notifications interface {
	CreateNotification(ctx context.Context, n model.Notification) (model.Notification, error)
	// CreateReminder inserts a reminder unless the appointment already has one.
	// The bool reports whether a row was created.
	CreateReminder(ctx context.Context, n model.Notification) (model.Notification, bool, error)
	// ListNotificationsByUser returns newest first.
	ListNotificationsByUser(ctx context.Context, userID int64) ([]model.Notification, error)
	// ListDueNotifications returns unsent notifications scheduled at or before now, oldest first.
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64) error
}

// Store is everything the scheduling service persists.
type Store interface {
	Users
	Appointments
	Recommendations
	Integrations
	Notifications
}
