package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/metrics"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/notify"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

// maxBookingSpan bounds how far past the horizon an upcoming appointment may end.
const maxBookingSpan = 24 * time.Hour

type Config struct {
	// Schedule is a standard five-field cron expression or a descriptor such as "@every 15m".
	Schedule  string
	// Horizon is how far ahead appointments get a reminder.
	Horizon   time.Duration
	// Lead is how long before the start the reminder is due.
	Lead      time.Duration
	BatchSize int
}

type Worker struct {
	store      storage.Store
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

func NewWorker(store storage.Store, dispatcher *notify.Dispatcher, logger *slog.Logger, cfg Config) (*Worker, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/15 * * * *"
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 24 * time.Hour
	}
	if cfg.Lead <= 0 {
		cfg.Lead = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{store: store, dispatcher: dispatcher, logger: logger, cfg: cfg, now: time.Now}, nil
}

// Run executes RunOnce on the cron schedule until ctx is cancelled. Overlapping
// runs are skipped rather than queued.
func (w *Worker) Run(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(w.cfg.Schedule, func() {
		if _, err := w.RunOnce(ctx, w.now()); err != nil {
			w.logger.Error("reminder run failed", "err", err)
		}
	})
	if err != nil {
		w.logger.Error("reminder scheduler not started", "err", err)
		return
	}
	c.Start()
	w.logger.Info("reminder scheduler started", "schedule", w.cfg.Schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	w.logger.Info("reminder scheduler stopped")
}

type Result struct {
	Created    int
	Dispatched int
}

// RunOnce creates a reminder for every scheduled appointment with a client that
// starts within the horizon, then sends whatever is due. Reruns never create a
// second reminder for the same appointment.
func (w *Worker) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	until := now.Add(w.cfg.Horizon)
	appts, err := w.store.ListAppointments(ctx, model.AppointmentFilter{
		StartDate: now,
		EndDate:   until.Add(maxBookingSpan),
		Status:    model.StatusScheduled,
	})
	if err != nil {
		return res, fmt.Errorf("list upcoming appointments: %w", err)
	}
	for _, a := range appts {
		if a.ClientID == nil || !a.StartTime.Before(until) {
			continue
		}
		due := a.StartTime.Add(-w.cfg.Lead)
		if due.Before(now) {
			due = now
		}
		_, created, err := w.store.CreateReminder(ctx, model.Notification{
			UserID:        *a.ClientID,
			AppointmentID: a.ID,
			Type:          model.NotificationReminder,
			Method:        model.MethodEmail,
			ScheduledFor:  due,
		})
		if err != nil {
			return res, fmt.Errorf("create reminder for appointment %d: %w", a.ID, err)
		}
		if created {
			res.Created++
		}
	}
	metrics.RecordRemindersCreated(res.Created)

	res.Dispatched, err = w.dispatcher.DispatchDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("dispatch due notifications: %w", err)
	}
	if res.Created > 0 || res.Dispatched > 0 {
		w.logger.Info("reminders processed", "created", res.Created, "dispatched", res.Dispatched)
	}
	return res, nil
}
