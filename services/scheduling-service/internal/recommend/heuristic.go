package recommend

import (
	"math"
	"sort"
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

const (
	maxSlots     = 3
	bufferWindow = 0.25
	maxJitter    = 0.2
	baseScore    = 0.5

	reasonMorning  = "morning slots are better for focused work"
	reasonLunch    = "near lunch time, less convenient"
	reasonLongLate = "long meetings late in the day are less productive"
	reasonStandard = "standard, efficient duration"
	reasonBuffer   = "buffer time before and after reduces stress"
	reasonOpen     = "open slot within business hours"
)

var slotDurations = []float64{0.5, 1.0, 1.5}

type contribution struct {
	delta  float64
	reason string
}

// candidate is an accepted (start, duration) pair in fractional hours.
type candidate struct {
	hour     float64
	duration float64
	score    float64
	reason   string
}

func (c candidate) end() float64 { return c.hour + c.duration }

// contributions lists every scoring rule that fires for a slot, in rule order.
func contributions(hour, duration float64, busy []availability.Range) []contribution {
	slotEnd := hour + duration
	var out []contribution
	if hour < 12 {
		out = append(out, contribution{0.2, reasonMorning})
	}
	if hour >= 12 && hour < 13.5 {
		out = append(out, contribution{-0.3, reasonLunch})
	}
	if duration > 1 && slotEnd > 16 {
		out = append(out, contribution{-0.2, reasonLongLate})
	}
	if duration == 0.5 || duration == 1.0 {
		out = append(out, contribution{0.1, reasonStandard})
	}
	if hasBuffer(hour, slotEnd, busy) {
		out = append(out, contribution{0.3, reasonBuffer})
	}
	return out
}

func hasBuffer(hour, slotEnd float64, busy []availability.Range) bool {
	for _, r := range busy {
		if math.Abs(r.End-hour) < bufferWindow || math.Abs(r.Start-slotEnd) < bufferWindow {
			return false
		}
	}
	return true
}

// score sums the contributions plus jitter around the 0.5 baseline. The reason
// is taken from the last rule that fired.
func score(cs []contribution, jitter float64) (float64, string) {
	sum := jitter
	reason := reasonOpen
	for _, c := range cs {
		sum += c.delta
		reason = c.reason
	}
	return clamp(baseScore+sum, 0, 1), reason
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// candidates enumerates every open slot inside hours with its score.
func candidates(hours availability.BusinessHours, busy []availability.Range, rnd Source) []candidate {
	var out []candidate
	for _, hour := range availability.HalfHourStarts(hours) {
		for _, d := range slotDurations {
			slotEnd := hour + d
			if slotEnd > hours.EndHour {
				continue
			}
			if availability.OverlapsAny(hour, slotEnd, busy) {
				continue
			}
			s, reason := score(contributions(hour, d, busy), rnd.Float64()*maxJitter)
			out = append(out, candidate{hour: hour, duration: d, score: s, reason: reason})
		}
	}
	return out
}

// hasOpening reports whether at least one slot fits inside hours.
func hasOpening(hours availability.BusinessHours, busy []availability.Range) bool {
	for _, hour := range availability.HalfHourStarts(hours) {
		if hour+slotDurations[0] <= hours.EndHour && !availability.OverlapsAny(hour, hour+slotDurations[0], busy) {
			return true
		}
	}
	return false
}

// rank orders by score, then earlier start, then shorter duration, and keeps the top n.
func rank(cs []candidate, n int) []candidate {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].score != cs[j].score {
			return cs[i].score > cs[j].score
		}
		if cs[i].hour != cs[j].hour {
			return cs[i].hour < cs[j].hour
		}
		return cs[i].duration < cs[j].duration
	})
	if len(cs) > n {
		cs = cs[:n]
	}
	return cs
}

func heuristicSlots(day time.Time, appts []model.Appointment, hours availability.BusinessHours, rnd Source) []model.TimeSlot {
	busy := availability.BusyRanges(day, appts)
	top := rank(candidates(hours, busy, rnd), maxSlots)
	slots := make([]model.TimeSlot, 0, len(top))
	for _, c := range top {
		slots = append(slots, model.TimeSlot{
			StartTime: availability.At(day, c.hour),
			EndTime:   availability.At(day, c.end()),
			Score:     c.score,
			Reason:    c.reason,
		})
	}
	return slots
}
