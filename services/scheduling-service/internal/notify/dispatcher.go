package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/metrics"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

// Message is a rendered notification ready for a channel.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, method model.NotificationMethod, msg Message) error
}

// LogSender records deliveries in the log instead of calling a provider.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, method model.NotificationMethod, msg Message) error {
	s.Logger.InfoContext(ctx, "notification delivered", "method", string(method), "to", msg.To, "subject", msg.Subject)
	return nil
}

type Dispatcher struct {
	users         storage.Users
	appointments  storage.Appointments
	notifications storage.Notifications
	sender        Sender
	logger        *slog.Logger
}

func NewDispatcher(store storage.Store, sender Sender, logger *slog.Logger) *Dispatcher {
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Dispatcher{users: store, appointments: store, notifications: store, sender: sender, logger: logger}
}

// Notify records a notification for userID about appt and delivers it immediately.
// Delivery failures are logged and leave the record unsent for the next sweep.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, appt model.Appointment, typ model.NotificationType) (model.Notification, error) {
	n, err := d.notifications.CreateNotification(ctx, model.Notification{
		UserID:        userID,
		AppointmentID: appt.ID,
		Type:          typ,
		Method:        model.MethodEmail,
	})
	if err != nil {
		return model.Notification{}, fmt.Errorf("record %s notification: %w", typ, err)
	}
	if err := d.deliver(ctx, n, &appt); err != nil {
		d.logger.WarnContext(ctx, "notification delivery failed", "notification_id", n.ID, "err", err)
		return n, nil
	}
	n.Sent = true
	return n, nil
}

// Send delivers an existing notification and marks it sent.
func (d *Dispatcher) Send(ctx context.Context, n model.Notification) error {
	return d.deliver(ctx, n, nil)
}

func (d *Dispatcher) deliver(ctx context.Context, n model.Notification, appt *model.Appointment) error {
	user, err := d.users.GetUser(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", n.UserID, err)
	}
	if appt == nil {
		a, err := d.appointments.GetAppointment(ctx, n.AppointmentID)
		if err != nil {
			return fmt.Errorf("load appointment %d: %w", n.AppointmentID, err)
		}
		appt = &a
	}
	if err := d.sender.Send(ctx, n.Method, render(user, *appt, n)); err != nil {
		return err
	}
	if err := d.notifications.MarkNotificationSent(ctx, n.ID); err != nil {
		return err
	}
	metrics.RecordNotificationSent(string(n.Type), string(n.Method))
	return nil
}

// DispatchDue sends every unsent notification scheduled at or before now.
// Records whose user or appointment has gone are skipped.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := d.notifications.ListDueNotifications(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, n := range due {
		if err := d.Send(ctx, n); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				d.logger.WarnContext(ctx, "skipping orphaned notification", "notification_id", n.ID, "err", err)
				continue
			}
			d.logger.ErrorContext(ctx, "notification send failed", "notification_id", n.ID, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

var subjects = map[model.NotificationType]string{
	model.NotificationReminder:     "Reminder: %s",
	model.NotificationConfirmation: "Confirmed: %s",
	model.NotificationCancellation: "Cancelled: %s",
	model.NotificationRescheduled:  "Rescheduled: %s",
}

func render(user model.User, appt model.Appointment, n model.Notification) Message {
	subject := fmt.Sprintf(subjects[n.Type], appt.Title)
	body := fmt.Sprintf("Hi %s,\n\n%s on %s from %s to %s.",
		user.Name, appt.Title,
		appt.StartTime.Format("Monday, January 2"),
		appt.StartTime.Format(time.Kitchen),
		appt.EndTime.Format(time.Kitchen))
	if appt.Location != "" {
		body += "\nLocation: " + appt.Location
	}
	to := user.Email
	if n.Method == model.MethodSMS {
		to = user.Phone
	}
	return Message{To: to, Subject: subject, Body: body}
}
