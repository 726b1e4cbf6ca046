package availability

import (
	"fmt"
	"math"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

// BusinessHours bounds slot generation, in whole hours since local midnight.
type BusinessHours struct {
	StartHour float64 `json:"startHour"`
	EndHour   float64 `json:"endHour"`
}

var DefaultHours = BusinessHours{StartHour: 8, EndHour: 18}

func (h BusinessHours) Validate() error {
	if h.StartHour < 0 || h.EndHour > 24 || h.StartHour >= h.EndHour {
		return fmt.Errorf("business hours must satisfy 0 <= start < end <= 24 (got %v-%v)", h.StartHour, h.EndHour)
	}
	return nil
}

// Range is a busy interval in fractional hours since local midnight, half-open [Start, End).
type Range struct {
	Start float64
	End   float64
}

// Overlaps reports whether [start, end) intersects r. Touching endpoints do not overlap.
func (r Range) Overlaps(start, end float64) bool {
	return start < r.End && end > r.Start
}

func OverlapsAny(start, end float64, busy []Range) bool {
	for _, r := range busy {
		if r.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// SameDay reports whether t falls on day's calendar date in day's location.
func SameDay(day, t time.Time) bool {
	y1, m1, d1 := day.Date()
	y2, m2, d2 := t.In(day.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// OnDay keeps the appointments that start on day's calendar date.
func OnDay(day time.Time, appts []model.Appointment) []model.Appointment {
	var out []model.Appointment
	for _, a := range appts {
		if SameDay(day, a.StartTime) {
			out = append(out, a)
		}
	}
	return out
}

// BusyRanges converts the appointments starting on day into fractional-hour ranges.
// Every appointment passed in is busy regardless of status; callers drop the
// ones that should not block. An end past midnight is clamped to 24.
func BusyRanges(day time.Time, appts []model.Appointment) []Range {
	var out []Range
	for _, a := range OnDay(day, appts) {
		end := FractionalHour(a.EndTime.In(day.Location()))
		if !SameDay(day, a.EndTime) {
			end = 24
		}
		out = append(out, Range{Start: FractionalHour(a.StartTime.In(day.Location())), End: end})
	}
	return out
}

func FractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

// HalfHourStarts lists every half-hour boundary in [StartHour, EndHour).
func HalfHourStarts(h BusinessHours) []float64 {
	var out []float64
	for hour := h.StartHour; hour < h.EndHour; hour += 0.5 {
		out = append(out, hour)
	}
	return out
}

// At returns the wall-clock time hour (fractional) on day's date in day's
// location. Building from the clock keeps 10:00 at 10:00 on DST transition days.
func At(day time.Time, hour float64) time.Time {
	y, m, d := day.Date()
	whole := math.Floor(hour)
	minutes := int(math.Round((hour - whole) * 60))
	return time.Date(y, m, d, int(whole), minutes, 0, 0, day.Location())
}

// StartOfDay truncates t to local midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return At(t, 0)
}
