package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

// AssistantRequest is what an external assistant sees: one day of appointments
// and the hours it may place slots in.
type AssistantRequest struct {
	Date         time.Time
	Role         model.Role
	Hours        availability.BusinessHours
	Appointments []model.Appointment
}

// Assistant proposes a recommendation as raw JSON in the wire shape. The engine
// parses and checks the payload, so implementations only do transport.
type Assistant interface {
	Suggest(ctx context.Context, req AssistantRequest) ([]byte, error)
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIAssistant struct {
	client *openai.Client
	model  string
}

func NewOpenAIAssistant(cfg OpenAIConfig) *OpenAIAssistant {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	return &OpenAIAssistant{client: openai.NewClientWithConfig(c), model: modelName}
}

const systemPrompt = `You are a scheduling assistant. Given a day's appointments and business hours, ` +
	`propose up to 3 open time slots that do not overlap any appointment, short insights about the schedule, ` +
	`and appointments at risk of a no-show. Reply with a single JSON object: ` +
	`{"recommended_slots":[{"startTime":"RFC3339","endTime":"RFC3339","score":0..1,"reason":"..."}],` +
	`"insights":["..."],"no_show_risks":[{"appointmentId":1,"risk":0.3..1,"reason":"..."}]}`

type promptAppointment struct {
	ID        int64                   `json:"id"`
	Title     string                  `json:"title"`
	StartTime string                  `json:"startTime"`
	EndTime   string                  `json:"endTime"`
	Status    model.AppointmentStatus `json:"status"`
	HasClient bool                    `json:"hasClient"`
}

type promptPayload struct {
	Date          string                     `json:"date"`
	Timezone      string                     `json:"timezone"`
	UserRole      model.Role                 `json:"userRole"`
	BusinessHours availability.BusinessHours `json:"businessHours"`
	Appointments  []promptAppointment        `json:"appointments"`
}

func buildPrompt(req AssistantRequest) (string, error) {
	p := promptPayload{
		Date:          req.Date.Format(time.DateOnly),
		Timezone:      req.Date.Location().String(),
		UserRole:      req.Role,
		BusinessHours: req.Hours,
		Appointments:  []promptAppointment{},
	}
	for _, a := range req.Appointments {
		p.Appointments = append(p.Appointments, promptAppointment{
			ID:        a.ID,
			Title:     a.Title,
			StartTime: a.StartTime.In(req.Date.Location()).Format(time.RFC3339),
			EndTime:   a.EndTime.In(req.Date.Location()).Format(time.RFC3339),
			Status:    a.Status,
			HasClient: a.ClientID != nil,
		})
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *OpenAIAssistant) Suggest(ctx context.Context, req AssistantRequest) ([]byte, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
		MaxTokens:      800,
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

// InvalidResponseError marks assistant output that could not be used.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string { return "invalid assistant response: " + e.Reason }

func invalid(format string, args ...any) error {
	return &InvalidResponseError{Reason: fmt.Sprintf(format, args...)}
}

type rawSlot struct {
	StartTime string  `json:"startTime"`
	EndTime   string  `json:"endTime"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

type rawResult struct {
	RecommendedSlots []rawSlot          `json:"recommended_slots"`
	Insights         []string           `json:"insights"`
	NoShowRisks      []model.NoShowRisk `json:"no_show_risks"`
}

var (
	datedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}
	clockLayouts = []string{"15:04:05", "15:04", "3:04PM", "3:04 PM", "3PM", "3 PM"}
)

// parseSlotTime accepts full timestamps or bare clock times. Clock times and
// timestamps without an offset are placed on day in day's location.
func parseSlotTime(day time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datedLayouts {
		if t, err := time.ParseInLocation(layout, s, day.Location()); err == nil {
			return t, nil
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			y, m, d := day.Date()
			return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
		}
	}
	return time.Time{}, invalid("unrecognised time %q", s)
}

// parseAssistantResult decodes and checks an assistant payload against the
// same invariants the heuristic guarantees.
func parseAssistantResult(data []byte, day time.Time, hours availability.BusinessHours, dayAppts []model.Appointment, role model.Role) (model.RecommendationResult, error) {
	var raw rawResult
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.RecommendationResult{}, invalid("decode: %v", err)
	}

	// null and a missing key both decode to nil
	if raw.RecommendedSlots == nil {
		return model.RecommendationResult{}, invalid("missing recommended_slots")
	}
	busy := availability.BusyRanges(day, dayAppts)
	if len(raw.RecommendedSlots) == 0 && hasOpening(hours, busy) {
		return model.RecommendationResult{}, invalid("no slots on a day with openings")
	}
	slots := make([]model.TimeSlot, 0, len(raw.RecommendedSlots))
	for i, rs := range raw.RecommendedSlots {
		start, err := parseSlotTime(day, rs.StartTime)
		if err != nil {
			return model.RecommendationResult{}, err
		}
		end, err := parseSlotTime(day, rs.EndTime)
		if err != nil {
			return model.RecommendationResult{}, err
		}
		if !end.After(start) || !availability.SameDay(day, start) || !availability.SameDay(day, end) {
			return model.RecommendationResult{}, invalid("slot %d is not a same-day interval", i)
		}
		from := availability.FractionalHour(start.In(day.Location()))
		to := availability.FractionalHour(end.In(day.Location()))
		if from < hours.StartHour || to > hours.EndHour {
			return model.RecommendationResult{}, invalid("slot %d outside business hours", i)
		}
		if availability.OverlapsAny(from, to, busy) {
			return model.RecommendationResult{}, invalid("slot %d overlaps an appointment", i)
		}
		if rs.Score < 0 || rs.Score > 1 {
			return model.RecommendationResult{}, invalid("slot %d score %v out of range", i, rs.Score)
		}
		reason := strings.TrimSpace(rs.Reason)
		if reason == "" {
			reason = reasonOpen
		}
		slots = append(slots, model.TimeSlot{StartTime: start, EndTime: end, Score: rs.Score, Reason: reason})
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Score > slots[j].Score })
	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}

	ids := make(map[int64]bool, len(dayAppts))
	for _, a := range dayAppts {
		ids[a.ID] = true
	}
	risks := make([]model.NoShowRisk, 0, len(raw.NoShowRisks))
	for _, r := range raw.NoShowRisks {
		if !ids[r.AppointmentID] {
			return model.RecommendationResult{}, invalid("risk references unknown appointment %d", r.AppointmentID)
		}
		if r.Risk < riskFloor || r.Risk > 1 {
			return model.RecommendationResult{}, invalid("risk %v out of range", r.Risk)
		}
		if strings.TrimSpace(r.Reason) == "" {
			r.Reason = noShowRiskReason
		}
		risks = append(risks, r)
	}

	insights := raw.Insights
	if len(insights) == 0 {
		insights = insightsFor(role)
	}
	return model.RecommendationResult{RecommendedSlots: slots, Insights: insights, NoShowRisks: risks}, nil
}
