package calendarsync

import (
	"context"
	"log/slog"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/metrics"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Syncer mirrors appointment changes into the staff member's connected
// calendars. Provider calls are simulated and logged.
type Syncer struct {
	integrations storage.Integrations
	logger       *slog.Logger
}

func NewSyncer(integrations storage.Integrations, logger *slog.Logger) *Syncer {
	return &Syncer{integrations: integrations, logger: logger}
}

// Sync pushes action for appt to every connected integration of its staff
// member and returns how many calendars were updated. It never fails the caller.
func (s *Syncer) Sync(ctx context.Context, action Action, appt model.Appointment) int {
	if appt.StaffID == nil {
		return 0
	}
	list, err := s.integrations.ListIntegrationsByUser(ctx, *appt.StaffID)
	if err != nil {
		s.logger.WarnContext(ctx, "calendar sync skipped", "appointment_id", appt.ID, "err", err)
		return 0
	}
	synced := 0
	for _, ci := range list {
		if !ci.Connected {
			continue
		}
		s.logger.InfoContext(ctx, "calendar sync",
			"provider", string(ci.Provider),
			"action", string(action),
			"appointment_id", appt.ID,
			"title", appt.Title,
			"start", appt.StartTime,
			"end", appt.EndTime,
		)
		metrics.RecordCalendarSync(string(ci.Provider), string(action))
		synced++
	}
	return synced
}
