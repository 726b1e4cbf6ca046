package storage

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

type seedUser struct {
	username, password, name, email, phone string
	role                                   model.Role
}

var demoUsers = []seedUser{
	{"admin", "admin123", "Sarah Johnson", "sarah@example.com", "555-123-4567", model.RoleAdmin},
	{"staff", "staff123", "John Davis", "john@example.com", "555-987-6543", model.RoleStaff},
	{"customer", "customer123", "Michael Thompson", "michael@example.com", "555-555-5555", model.RoleCustomer},
}

// SeedDemo creates the demo accounts, three appointments on now's day and two
// calendar integrations for the admin. It does nothing when users already exist.
func SeedDemo(ctx context.Context, s Store, now time.Time, bcryptCost int) error {
	existing, err := s.ListUsers(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	ids := map[model.Role]int64{}
	for _, su := range demoUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(su.password), bcryptCost)
		if err != nil {
			return fmt.Errorf("hash %s password: %w", su.username, err)
		}
		u, err := s.CreateUser(ctx, model.User{
			Username:     su.username,
			PasswordHash: string(hash),
			Name:         su.name,
			Email:        su.email,
			Phone:        su.phone,
			Role:         su.role,
		})
		if err != nil {
			return fmt.Errorf("seed user %s: %w", su.username, err)
		}
		ids[su.role] = u.ID
	}

	y, m, d := now.Date()
	clock := func(h, min int) time.Time { return time.Date(y, m, d, h, min, 0, 0, now.Location()) }
	customer, staff, admin := ids[model.RoleCustomer], ids[model.RoleStaff], ids[model.RoleAdmin]
	appts := []model.Appointment{
		{Title: "Client Consultation", StartTime: clock(9, 0), EndTime: clock(9, 45), ClientID: &customer, StaffID: &staff,
			Location: "Video Call", Notes: "Initial consultation", Status: model.StatusScheduled, Color: "#3b82f6"},
		{Title: "Team Meeting", StartTime: clock(11, 0), EndTime: clock(12, 0), StaffID: &staff,
			Location: "Conference Room", Notes: "All staff required", Status: model.StatusScheduled, Color: "#8b5cf6"},
		{Title: "Project Review", StartTime: clock(14, 0), EndTime: clock(14, 30), ClientID: &customer, StaffID: &admin,
			Location: "Office", Notes: "Review progress on current project", Status: model.StatusScheduled, Color: "#10b981"},
	}
	for _, a := range appts {
		if _, err := s.CreateAppointment(ctx, a); err != nil {
			return fmt.Errorf("seed appointment: %w", err)
		}
	}

	expires := now.Add(time.Hour)
	for _, p := range []model.Provider{model.ProviderGoogle, model.ProviderOutlook} {
		_, err := s.CreateIntegration(ctx, model.CalendarIntegration{
			UserID:       admin,
			Provider:     p,
			AccessToken:  "demo-access-token",
			RefreshToken: "demo-refresh-token",
			ExpiresAt:    &expires,
			Connected:    true,
		})
		if err != nil {
			return fmt.Errorf("seed integration: %w", err)
		}
	}
	return nil
}
