package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, m *Memory, a model.Appointment) model.Appointment {
	t.Helper()
	out, err := m.CreateAppointment(context.Background(), a)
	if err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return out
}

func TestListAppointmentsFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	staff := int64(2)
	client := int64(3)
	late := mustCreate(t, m, model.Appointment{Title: "late", StartTime: day.Add(15 * time.Hour), EndTime: day.Add(16 * time.Hour), StaffID: &staff, Status: model.StatusScheduled})
	early := mustCreate(t, m, model.Appointment{Title: "early", StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), ClientID: &client, Status: model.StatusScheduled})
	mustCreate(t, m, model.Appointment{Title: "next week", StartTime: day.AddDate(0, 0, 8), EndTime: day.AddDate(0, 0, 8).Add(time.Hour), Status: model.StatusCancelled})

	all, _ := m.ListAppointments(ctx, model.AppointmentFilter{})
	if len(all) != 3 || all[0].ID != early.ID || all[1].ID != late.ID {
		t.Fatalf("expected start-time order, got %+v", all)
	}

	window, _ := m.ListAppointments(ctx, model.AppointmentFilter{StartDate: day, EndDate: day.AddDate(0, 0, 1)})
	if len(window) != 2 {
		t.Fatalf("window filter: got %d", len(window))
	}
	byStaff, _ := m.ListAppointments(ctx, model.AppointmentFilter{StaffID: &staff})
	if len(byStaff) != 1 || byStaff[0].ID != late.ID {
		t.Fatalf("staff filter: %+v", byStaff)
	}
	byClient, _ := m.ListAppointments(ctx, model.AppointmentFilter{ClientID: &client})
	if len(byClient) != 1 || byClient[0].ID != early.ID {
		t.Fatalf("client filter: %+v", byClient)
	}
	cancelled, _ := m.ListAppointments(ctx, model.AppointmentFilter{Status: model.StatusCancelled})
	if len(cancelled) != 1 {
		t.Fatalf("status filter: %+v", cancelled)
	}
}

func TestUpdateAndDeleteAppointment(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := mustCreate(t, m, model.Appointment{Title: "a", StartTime: day.Add(9 * time.Hour), EndTime: day.Add(10 * time.Hour), Status: model.StatusScheduled})
	_, _ = m.CreateNotification(ctx, model.Notification{UserID: 1, AppointmentID: a.ID, Type: model.NotificationConfirmation, Method: model.MethodEmail})

	a.Title = "renamed"
	updated, err := m.UpdateAppointment(ctx, a)
	if err != nil || updated.Title != "renamed" || !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Fatalf("update: %+v %v", updated, err)
	}
	if _, err := m.UpdateAppointment(ctx, model.Appointment{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.DeleteAppointment(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetAppointment(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted appointment to be gone")
	}
	if ns, _ := m.ListNotificationsByUser(ctx, 1); len(ns) != 0 {
		t.Fatalf("notifications should go with their appointment, got %d", len(ns))
	}
}

func TestCreateReminderIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	n := model.Notification{UserID: 3, AppointmentID: 7, Method: model.MethodEmail, ScheduledFor: day}
	first, created, err := m.CreateReminder(ctx, n)
	if err != nil || !created {
		t.Fatalf("first reminder: created=%v err=%v", created, err)
	}
	second, created, err := m.CreateReminder(ctx, n)
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("second reminder should be a no-op: created=%v id=%d err=%v", created, second.ID, err)
	}
	if first.Type != model.NotificationReminder {
		t.Fatalf("type=%s", first.Type)
	}
}

func TestDueNotificationsAndMarkSent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	past, _ := m.CreateNotification(ctx, model.Notification{UserID: 1, AppointmentID: 1, Type: model.NotificationReminder, Method: model.MethodSMS, ScheduledFor: day})
	_, _ = m.CreateNotification(ctx, model.Notification{UserID: 1, AppointmentID: 2, Type: model.NotificationReminder, Method: model.MethodSMS, ScheduledFor: day.Add(48 * time.Hour)})

	due, _ := m.ListDueNotifications(ctx, day.Add(time.Hour), 10)
	if len(due) != 1 || due[0].ID != past.ID {
		t.Fatalf("due: %+v", due)
	}
	if err := m.MarkNotificationSent(ctx, past.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	due, _ = m.ListDueNotifications(ctx, day.Add(time.Hour), 10)
	if len(due) != 0 {
		t.Fatalf("sent notification still due")
	}
	if err := m.MarkNotificationSent(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecommendationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	first, _ := m.CreateRecommendation(ctx, model.Recommendation{UserID: 1, Date: day, Used: true})
	second, _ := m.CreateRecommendation(ctx, model.Recommendation{UserID: 1, Date: day})
	_, _ = m.CreateRecommendation(ctx, model.Recommendation{UserID: 2, Date: day})

	if first.Used {
		t.Fatalf("new recommendations start unused")
	}
	list, _ := m.ListRecommendationsByUser(ctx, 1)
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	used, err := m.MarkRecommendationUsed(ctx, first.ID)
	if err != nil || !used.Used {
		t.Fatalf("mark used: %+v %v", used, err)
	}
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)
	if err := SeedDemo(ctx, m, now, bcrypt.MinCost); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SeedDemo(ctx, m, now, bcrypt.MinCost); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	users, _ := m.ListUsers(ctx, "")
	if len(users) != 3 {
		t.Fatalf("expected 3 users after two seeds, got %d", len(users))
	}
	admin, err := m.GetUserByUsername(ctx, "ADMIN")
	if err != nil || admin.Role != model.RoleAdmin {
		t.Fatalf("lookup should ignore case: %+v %v", admin, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")) != nil {
		t.Fatalf("seed password not hashed with bcrypt")
	}
	appts, _ := m.ListAppointments(ctx, model.AppointmentFilter{})
	if len(appts) != 3 || appts[0].StartTime.Hour() != 9 {
		t.Fatalf("unexpected seeded appointments %+v", appts)
	}
	integrations, _ := m.ListIntegrationsByUser(ctx, admin.ID)
	if len(integrations) != 2 {
		t.Fatalf("expected 2 admin integrations, got %d", len(integrations))
	}
	if _, err := m.CreateUser(ctx, model.User{Username: "Staff"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
}
