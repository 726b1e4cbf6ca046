package model

import "time"

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime"`
	ClientID  *int64            `json:"clientId"`
	StaffID   *int64            `json:"staffId"`
	Location  string            `json:"location"`
	Notes     string            `json:"notes"`
	Status    AppointmentStatus `json:"status"`
	Color     string            `json:"color"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// AppointmentFilter selects appointments fully contained in [StartDate, EndDate].
// Zero values and nil pointers do not constrain.
type AppointmentFilter struct {
	StartDate time.Time
	EndDate   time.Time
	ClientID  *int64
	StaffID   *int64
	Status    AppointmentStatus
}

func (f AppointmentFilter) Match(a Appointment) bool {
	if !f.StartDate.IsZero() && a.StartTime.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && a.EndTime.After(f.EndDate) {
		return false
	}
	if f.ClientID != nil && (a.ClientID == nil || *a.ClientID != *f.ClientID) {
		return false
	}
	if f.StaffID != nil && (a.StaffID == nil || *a.StaffID != *f.StaffID) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

func Int64Ptr(v int64) *int64 { return &v }
