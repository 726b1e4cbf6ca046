package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

// Memory is a process-local Store keyed by incrementing ids. It backs local
// runs without DATABASE_URL and the handler tests.
type Memory struct {
	now func() time.Time

	mu            sync.RWMutex
	nextID        map[string]int64
	users         map[int64]model.User
	appointments  map[int64]model.Appointment
	suggestions   map[int64]model.Recommendation
	integrations  map[int64]model.CalendarIntegration
	notifications map[int64]model.Notification
}

func NewMemory() *Memory {
	return &Memory{
		now:           time.Now,
		nextID:        map[string]int64{},
		users:         map[int64]model.User{},
		appointments:  map[int64]model.Appointment{},
		suggestions:   map[int64]model.Recommendation{},
		integrations:  map[int64]model.CalendarIntegration{},
		notifications: map[int64]model.Notification{},
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) id(kind string) int64 {
	m.nextID[kind]++
	return m.nextID[kind]
}

func (m *Memory) GetUser(_ context.Context, id int64) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (m *Memory) CreateUser(_ context.Context, u model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return model.User{}, ErrConflict
		}
	}
	u.ID = m.id("user")
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	return u, nil
}

func (m *Memory) ListUsers(_ context.Context, role model.Role) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetAppointment(_ context.Context, id int64) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListAppointments(_ context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Appointment{}
	for _, a := range m.appointments {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) CreateAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id("appointment")
	a.CreatedAt = m.now()
	a.UpdatedAt = a.CreatedAt
	m.appointments[a.ID] = a
	return a, nil
}

func (m *Memory) UpdateAppointment(_ context.Context, a model.Appointment) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.appointments[a.ID]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = m.now()
	m.appointments[a.ID] = a
	return a, nil
}

func (m *Memory) DeleteAppointment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.appointments[id]; !ok {
		return ErrNotFound
	}
	delete(m.appointments, id)
	for nid, n := range m.notifications {
		if n.AppointmentID == id {
			delete(m.notifications, nid)
		}
	}
	return nil
}

func (m *Memory) CreateRecommendation(_ context.Context, r model.Recommendation) (model.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.id("recommendation")
	r.Used = false
	r.CreatedAt = m.now()
	m.suggestions[r.ID] = r
	return r, nil
}

func (m *Memory) GetRecommendation(_ context.Context, id int64) (model.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.suggestions[id]
	if !ok {
		return model.Recommendation{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRecommendationsByUser(_ context.Context, userID int64) ([]model.Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Recommendation{}
	for _, r := range m.suggestions {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) MarkRecommendationUsed(_ context.Context, id int64) (model.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.suggestions[id]
	if !ok {
		return model.Recommendation{}, ErrNotFound
	}
	r.Used = true
	m.suggestions[id] = r
	return r, nil
}

func (m *Memory) CreateIntegration(_ context.Context, ci model.CalendarIntegration) (model.CalendarIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci.ID = m.id("integration")
	ci.CreatedAt = m.now()
	m.integrations[ci.ID] = ci
	return ci, nil
}

func (m *Memory) GetIntegration(_ context.Context, id int64) (model.CalendarIntegration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ci, ok := m.integrations[id]
	if !ok {
		return model.CalendarIntegration{}, ErrNotFound
	}
	return ci, nil
}

func (m *Memory) ListIntegrationsByUser(_ context.Context, userID int64) ([]model.CalendarIntegration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.CalendarIntegration{}
	for _, ci := range m.integrations {
		if ci.UserID == userID {
			out = append(out, ci)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteIntegration(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.integrations[id]; !ok {
		return ErrNotFound
	}
	delete(m.integrations, id)
	return nil
}

func (m *Memory) CreateNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertNotificationLocked(n), nil
}

func (m *Memory) insertNotificationLocked(n model.Notification) model.Notification {
	n.ID = m.id("notification")
	n.CreatedAt = m.now()
	if n.ScheduledFor.IsZero() {
		n.ScheduledFor = n.CreatedAt
	}
	m.notifications[n.ID] = n
	return n
}

func (m *Memory) CreateReminder(_ context.Context, n model.Notification) (model.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifications {
		if existing.AppointmentID == n.AppointmentID && existing.Type == model.NotificationReminder {
			return existing, false, nil
		}
	}
	n.Type = model.NotificationReminder
	return m.insertNotificationLocked(n), true, nil
}

func (m *Memory) ListNotificationsByUser(_ context.Context, userID int64) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Notification{}
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) ListDueNotifications(_ context.Context, now time.Time, limit int) ([]model.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Notification{}
	for _, n := range m.notifications {
		if !n.Sent && !n.ScheduledFor.After(now) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ScheduledFor.Before(out[j].ScheduledFor)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkNotificationSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return ErrNotFound
	}
	n.Sent = true
	m.notifications[id] = n
	return nil
}
