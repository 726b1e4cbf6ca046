package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/metrics"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

var ErrInvalidInput = errors.New("invalid recommendation input")

var tracer = otel.Tracer("github.com/smartbook-ai/smartbook/recommend")

type Request struct {
	UserID int64
	// Date selects the calendar day in Date's location; its clock time is ignored.
	Date time.Time
	// Appointments is the caller's visible window around Date. Only those
	// starting on Date block slots; the rest feed attendance history.
	Appointments []model.Appointment
	Role         model.Role
	Hours        *availability.BusinessHours
}

type Options struct {
	Hours     availability.BusinessHours
	Source    Source
	Assistant Assistant
	Breaker   *Breaker
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Engine produces slot recommendations. It keeps no per-call state and may be
// shared across goroutines.
type Engine struct {
	hours     availability.BusinessHours
	rnd       Source
	assistant Assistant
	breaker   *Breaker
	timeout   time.Duration
	logger    *slog.Logger
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		hours:     opts.Hours,
		rnd:       opts.Source,
		assistant: opts.Assistant,
		breaker:   opts.Breaker,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
	if e.hours == (availability.BusinessHours{}) {
		e.hours = availability.DefaultHours
	}
	if e.rnd == nil {
		e.rnd = NewTimeSource()
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Generate returns ranked slots, insights and no-show risks for req.Date.
// Only malformed input is reported as an error; assistant failures fall back
// to the built-in heuristic.
func (e *Engine) Generate(ctx context.Context, req Request) (model.RecommendationResult, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "recommend.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.String("user.role", string(req.Role)),
		attribute.Int("appointments.count", len(req.Appointments)),
	)

	hours := e.hours
	if req.Hours != nil {
		hours = *req.Hours
	}
	if err := validate(req, hours); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return model.RecommendationResult{}, err
	}
	day := availability.StartOfDay(req.Date)

	if e.assistant != nil {
		res, err := e.fromAssistant(ctx, day, req, hours)
		if err == nil {
			span.SetAttributes(attribute.String("recommend.source", "assistant"))
			metrics.RecordRecommendation("assistant", time.Since(started))
			return Normalize(res), nil
		}
		kind := failureKind(err)
		metrics.RecordAssistantFailure(kind)
		span.AddEvent("assistant fallback", trace.WithAttributes(attribute.String("kind", kind)))
		e.logger.WarnContext(ctx, "assistant unavailable, using heuristic", "user_id", req.UserID, "kind", kind, "err", err)
	}

	res := model.RecommendationResult{
		RecommendedSlots: heuristicSlots(day, req.Appointments, hours, e.rnd),
		Insights:         insightsFor(req.Role),
		NoShowRisks:      noShowRisks(day, req.Appointments, e.rnd),
	}
	span.SetAttributes(attribute.String("recommend.source", "heuristic"))
	metrics.RecordRecommendation("heuristic", time.Since(started))
	return Normalize(res), nil
}

func (e *Engine) fromAssistant(ctx context.Context, day time.Time, req Request, hours availability.BusinessHours) (model.RecommendationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dayAppts := availability.OnDay(day, req.Appointments)
	var res model.RecommendationResult
	call := func(ctx context.Context) error {
		raw, err := e.assistant.Suggest(ctx, AssistantRequest{Date: day, Role: req.Role, Hours: hours, Appointments: dayAppts})
		if err != nil {
			return err
		}
		res, err = parseAssistantResult(raw, day, hours, dayAppts, req.Role)
		return err
	}
	var err error
	if e.breaker == nil {
		err = call(ctx)
	} else {
		err = e.breaker.Execute(ctx, call)
	}
	return res, err
}

func validate(req Request, hours availability.BusinessHours) error {
	if req.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if err := hours.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !req.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}
	for _, a := range req.Appointments {
		if !a.EndTime.After(a.StartTime) {
			return fmt.Errorf("%w: appointment %d ends before it starts", ErrInvalidInput, a.ID)
		}
	}
	return nil
}

func failureKind(err error) string {
	var invalidErr *InvalidResponseError
	switch {
	case errors.Is(err, ErrBreakerOpen):
		return "breaker_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &invalidErr):
		return "invalid_response"
	default:
		return "request"
	}
}
