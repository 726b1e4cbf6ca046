package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testDay = time.Date(2025, 3, 10, 14, 37, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC)
}

func scheduled(id int64, start, end time.Time, client *int64) model.Appointment {
	return model.Appointment{ID: id, Title: "visit", StartTime: start, EndTime: end, ClientID: client, Status: model.StatusScheduled}
}

func checkInvariants(t *testing.T, res model.RecommendationResult, day time.Time, appts []model.Appointment, hours availability.BusinessHours) {
	t.Helper()
	if len(res.RecommendedSlots) > 3 {
		t.Fatalf("expected at most 3 slots, got %d", len(res.RecommendedSlots))
	}
	busy := availability.BusyRanges(day, appts)
	for i, s := range res.RecommendedSlots {
		from := availability.FractionalHour(s.StartTime)
		to := availability.FractionalHour(s.EndTime)
		if from < hours.StartHour || to > hours.EndHour {
			t.Fatalf("slot %d [%v,%v) outside business hours", i, from, to)
		}
		if availability.OverlapsAny(from, to, busy) {
			t.Fatalf("slot %d [%v,%v) overlaps a busy range", i, from, to)
		}
		if s.Score < 0 || s.Score > 1 {
			t.Fatalf("slot %d score %v out of [0,1]", i, s.Score)
		}
		if i > 0 && s.Score > res.RecommendedSlots[i-1].Score {
			t.Fatalf("slots not sorted by score: %v", res.RecommendedSlots)
		}
		if !availability.SameDay(day, s.StartTime) {
			t.Fatalf("slot %d not on target day: %s", i, s.StartTime)
		}
	}
	ids := map[int64]bool{}
	for _, a := range availability.OnDay(day, appts) {
		ids[a.ID] = true
	}
	for _, r := range res.NoShowRisks {
		if !ids[r.AppointmentID] {
			t.Fatalf("risk references appointment %d not on the day", r.AppointmentID)
		}
		if r.Risk < 0.3 || r.Risk > 1 {
			t.Fatalf("risk %v out of [0.3,1]", r.Risk)
		}
	}
}

func TestEmptyDayCandidateCount(t *testing.T) {
	got := candidates(availability.DefaultHours, nil, NewSource(1))
	if len(got) != 57 {
		t.Fatalf("expected 57 candidates for an empty day, got %d", len(got))
	}
	for _, c := range got {
		if c.end() > 18 || c.hour < 8 {
			t.Fatalf("candidate outside hours: %+v", c)
		}
	}
}

func TestOneAppointmentNineToTen(t *testing.T) {
	busy := availability.BusyRanges(testDay, []model.Appointment{scheduled(1, at(9, 0), at(10, 0), nil)})
	var sawEight, sawNine bool
	for _, c := range candidates(availability.DefaultHours, busy, NewSource(7)) {
		if c.hour == 8 && c.duration == 0.5 {
			sawEight = true
		}
		if c.hour == 9 && c.duration == 0.5 {
			sawNine = true
		}
	}
	if !sawEight {
		t.Fatalf("8:00-8:30 should be a candidate")
	}
	if sawNine {
		t.Fatalf("9:00-9:30 overlaps the appointment and must be rejected")
	}
}

func TestMorningBufferScenario(t *testing.T) {
	// With zero jitter the deterministic part must already reach 0.5+0.2+0.1+0.3.
	for _, c := range candidates(availability.DefaultHours, nil, constSource(0)) {
		if c.hour < 12 && c.duration <= 1 {
			cs := contributions(c.hour, c.duration, nil)
			sum := 0.0
			for _, x := range cs {
				sum += x.delta
			}
			if baseScore+sum < 1.1-1e-9 {
				t.Fatalf("morning slot %v/%v deterministic score %v", c.hour, c.duration, baseScore+sum)
			}
			if c.score != 1 {
				t.Fatalf("expected clamped score 1, got %v", c.score)
			}
			if c.reason != reasonBuffer {
				t.Fatalf("expected buffer reason to win, got %q", c.reason)
			}
		}
	}
}

func TestReasonIsLastRuleThatFired(t *testing.T) {
	busy := []availability.Range{{Start: 11, End: 12}}
	cases := []struct {
		name     string
		hour     float64
		duration float64
		want     string
	}{
		{"lunch then standard, no buffer", 12, 0.5, reasonStandard},
		{"long late with buffer", 16, 1.5, reasonBuffer},
		{"morning long without buffer", 9, 1.5, reasonMorning},
		{"afternoon long with buffer", 14, 1.5, reasonBuffer},
	}
	busyLate := []availability.Range{{Start: 17.5, End: 18}}
	for _, tc := range cases {
		b := busy
		if tc.hour == 9 {
			b = []availability.Range{{Start: 10.5, End: 11}}
		}
		_, reason := score(contributions(tc.hour, tc.duration, b), 0)
		if reason != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, reason, tc.want)
		}
	}
	// 16:00-17:30 ends right where the busy range starts, so no buffer and no standard duration.
	if _, reason := score(contributions(16, 1.5, busyLate), 0); reason != reasonLongLate {
		t.Fatalf("got %q want %q", reason, reasonLongLate)
	}
	if _, reason := score(nil, 0.1); reason != reasonOpen {
		t.Fatalf("no rules should give the open-slot reason, got %q", reason)
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	e := NewEngine(Options{Source: constSource(0), Logger: quietLogger()})
	res, err := e.Generate(context.Background(), Request{UserID: 1, Date: testDay, Role: model.RoleStaff})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []struct{ start, end time.Time }{
		{at(8, 0), at(8, 30)},
		{at(8, 0), at(9, 0)},
		{at(8, 0), at(9, 30)},
	}
	if len(res.RecommendedSlots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(res.RecommendedSlots))
	}
	for i, w := range want {
		s := res.RecommendedSlots[i]
		if !s.StartTime.Equal(w.start) || !s.EndTime.Equal(w.end) {
			t.Fatalf("slot %d: got %s-%s", i, s.StartTime.Format(time.Kitchen), s.EndTime.Format(time.Kitchen))
		}
	}
}

func TestGenerateInvariantsAcrossSeeds(t *testing.T) {
	client := model.Int64Ptr(42)
	appts := []model.Appointment{
		scheduled(1, at(9, 0), at(10, 0), client),
		scheduled(2, at(11, 30), at(12, 15), nil),
		scheduled(3, at(15, 0), at(16, 30), model.Int64Ptr(7)),
		{ID: 4, StartTime: at(13, 0), EndTime: at(14, 0), Status: model.StatusCancelled},
		scheduled(5, at(9, 0).AddDate(0, 0, 1), at(10, 0).AddDate(0, 0, 1), client),
	}
	for seed := int64(0); seed < 50; seed++ {
		e := NewEngine(Options{Source: NewSource(seed), Logger: quietLogger()})
		res, err := e.Generate(context.Background(), Request{UserID: 1, Date: testDay, Appointments: appts, Role: model.RoleAdmin})
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		checkInvariants(t, res, testDay, appts, availability.DefaultHours)
	}
}

func TestEveryDayAppointmentBlocks(t *testing.T) {
	appts := []model.Appointment{{ID: 1, StartTime: at(8, 0), EndTime: at(18, 0), Status: model.StatusCancelled}}
	e := NewEngine(Options{Source: constSource(0), Logger: quietLogger()})
	res, err := e.Generate(context.Background(), Request{Date: testDay, Appointments: appts, Role: model.RoleCustomer})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(res.RecommendedSlots) != 0 {
		t.Fatalf("appointment passed to the engine should block, got %d slots", len(res.RecommendedSlots))
	}
}

func TestDSTTransitionDay(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2025, 3, 9, 0, 0, 0, 0, ny)
	appts := []model.Appointment{scheduled(1, time.Date(2025, 3, 9, 9, 0, 0, 0, ny), time.Date(2025, 3, 9, 17, 30, 0, 0, ny), nil)}
	e := NewEngine(Options{Source: NewSource(11), Logger: quietLogger()})
	res, err := e.Generate(context.Background(), Request{Date: day, Appointments: appts, Role: model.RoleStaff})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkInvariants(t, res, day, appts, availability.DefaultHours)
	// only 08:00-09:00 and 17:30-18:00 remain
	if len(res.RecommendedSlots) != 3 {
		t.Fatalf("expected 3 slots, got %+v", res.RecommendedSlots)
	}
	for _, s := range res.RecommendedSlots {
		if s.StartTime.Location() != ny {
			t.Fatalf("slot not in target location: %v", s.StartTime)
		}
		if got := s.EndTime.Sub(s.StartTime); got != 30*time.Minute && got != time.Hour {
			t.Fatalf("unexpected slot length %v for %v", got, s.StartTime)
		}
	}
}

func TestFullyBookedDay(t *testing.T) {
	appts := []model.Appointment{scheduled(1, at(7, 0), at(19, 0), nil)}
	e := NewEngine(Options{Source: NewSource(3), Logger: quietLogger()})
	res, err := e.Generate(context.Background(), Request{Date: testDay, Appointments: appts, Role: model.RoleStaff})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.RecommendedSlots == nil || len(res.RecommendedSlots) != 0 {
		t.Fatalf("expected empty non-nil slots, got %#v", res.RecommendedSlots)
	}
}

func TestCustomHours(t *testing.T) {
	hours := availability.BusinessHours{StartHour: 13, EndHour: 15}
	e := NewEngine(Options{Source: NewSource(5), Logger: quietLogger()})
	res, err := e.Generate(context.Background(), Request{Date: testDay, Role: model.RoleStaff, Hours: &hours})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	checkInvariants(t, res, testDay, nil, hours)
	if len(candidates(hours, nil, constSource(0))) != 4+3+2 {
		t.Fatalf("unexpected candidate count for 13-15")
	}
}

func TestPreconditions(t *testing.T) {
	e := NewEngine(Options{Logger: quietLogger()})
	bad := []Request{
		{Date: testDay, Role: "guest"},
		{Date: testDay, Role: model.RoleAdmin, Hours: &availability.BusinessHours{StartHour: 18, EndHour: 8}},
		{Date: testDay, Role: model.RoleAdmin, Appointments: []model.Appointment{scheduled(1, at(10, 0), at(9, 0), nil)}},
		{Role: model.RoleAdmin},
	}
	for i, req := range bad {
		if _, err := e.Generate(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if _, err := e.Generate(context.Background(), Request{Date: testDay, Role: model.RoleAdmin}); err != nil {
		t.Fatalf("empty appointment list must not fail: %v", err)
	}
}

func TestInsightsByRole(t *testing.T) {
	if got := insightsFor(model.RoleCustomer); len(got) != 3 {
		t.Fatalf("customer should get the 3 base insights, got %v", got)
	}
	if got := insightsFor(model.RoleAdmin); len(got) != 4 || got[3] != roleInsights[model.RoleAdmin] {
		t.Fatalf("admin insights: %v", got)
	}
	if got := insightsFor(model.RoleStaff); len(got) != 4 || got[3] != roleInsights[model.RoleStaff] {
		t.Fatalf("staff insights: %v", got)
	}
	// callers must not be able to mutate the shared base list
	got := insightsFor(model.RoleCustomer)
	got[0] = "changed"
	if baseInsights[0] == "changed" {
		t.Fatalf("insightsFor leaked the base slice")
	}
}

func TestNoShowRiskFromHistory(t *testing.T) {
	client := model.Int64Ptr(9)
	window := []model.Appointment{
		{ID: 1, StartTime: at(9, 0).AddDate(0, 0, -3), EndTime: at(10, 0).AddDate(0, 0, -3), ClientID: client, Status: model.StatusNoShow},
		{ID: 2, StartTime: at(9, 0).AddDate(0, 0, -2), EndTime: at(10, 0).AddDate(0, 0, -2), ClientID: client, Status: model.StatusCompleted},
		scheduled(3, at(11, 0), at(12, 0), client),
		scheduled(4, at(14, 0), at(15, 0), nil),
		{ID: 5, StartTime: at(15, 0), EndTime: at(16, 0), ClientID: client, Status: model.StatusCompleted},
	}
	// 0.99 never passes the random gate, so only history-backed risks appear.
	risks := noShowRisks(testDay, window, constSource(0.99))
	if len(risks) != 1 || risks[0].AppointmentID != 3 {
		t.Fatalf("expected only appointment 3 flagged, got %+v", risks)
	}
	if diff := risks[0].Risk - 0.65; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected risk 0.65, got %v", risks[0].Risk)
	}
	if risks[0].Reason != noShowRiskReason {
		t.Fatalf("unexpected reason %q", risks[0].Reason)
	}

	// 0.1 always passes the gate and maps to 0.3+0.07.
	other := []model.Appointment{scheduled(8, at(10, 0), at(11, 0), model.Int64Ptr(1))}
	risks = noShowRisks(testDay, other, constSource(0.1))
	if len(risks) != 1 || risks[0].Risk < 0.37-1e-9 || risks[0].Risk > 0.37+1e-9 {
		t.Fatalf("unexpected random risk %+v", risks)
	}
}

func TestConcurrentGenerate(t *testing.T) {
	e := NewEngine(Options{Source: NewSource(11), Logger: quietLogger()})
	appts := []model.Appointment{scheduled(1, at(9, 0), at(10, 0), model.Int64Ptr(2))}
	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Generate(context.Background(), Request{Date: testDay, Appointments: appts, Role: model.RoleStaff}); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("%d concurrent calls failed", failures.Load())
	}
}
