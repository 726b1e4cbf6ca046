package calendarsync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

func TestSyncOnlyConnectedStaffCalendars(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	staff := int64(5)
	_, _ = store.CreateIntegration(ctx, model.CalendarIntegration{UserID: staff, Provider: model.ProviderGoogle, Connected: true})
	_, _ = store.CreateIntegration(ctx, model.CalendarIntegration{UserID: staff, Provider: model.ProviderApple, Connected: false})
	_, _ = store.CreateIntegration(ctx, model.CalendarIntegration{UserID: 6, Provider: model.ProviderOutlook, Connected: true})

	s := NewSyncer(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{ID: 1, Title: "Consultation", StartTime: start, EndTime: start.Add(time.Hour), StaffID: &staff}

	if got := s.Sync(ctx, ActionCreate, appt); got != 1 {
		t.Fatalf("expected 1 synced calendar, got %d", got)
	}
	appt.StaffID = nil
	if got := s.Sync(ctx, ActionDelete, appt); got != 0 {
		t.Fatalf("appointment without staff should not sync, got %d", got)
	}
}
