package model

import "time"

type NotificationType string

const (
	NotificationReminder     NotificationType = "reminder"
	NotificationConfirmation NotificationType = "confirmation"
	NotificationCancellation NotificationType = "cancellation"
	NotificationRescheduled  NotificationType = "rescheduled"
)

type NotificationMethod string

const (
	MethodEmail NotificationMethod = "email"
	MethodSMS   NotificationMethod = "sms"
	MethodInApp NotificationMethod = "in-app"
)

type Notification struct {
	ID            int64              `json:"id"`
	UserID        int64              `json:"userId"`
	AppointmentID int64              `json:"appointmentId"`
	Type          NotificationType   `json:"type"`
	Method        NotificationMethod `json:"method"`
	Sent          bool               `json:"sent"`
	ScheduledFor  time.Time          `json:"scheduledFor"`
	CreatedAt     time.Time          `json:"createdAt"`
}
