package recommend

import (
	"time"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/availability"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

const (
	riskFloor        = 0.3
	riskSpan         = 0.7
	randomFlagOdds   = 0.3
	noShowRiskReason = "client has missed previous appointments"
)

type attendance struct {
	past    int
	noShows int
}

// clientHistory tallies finished appointments per client from the whole window.
func clientHistory(before time.Time, appts []model.Appointment) map[int64]attendance {
	out := map[int64]attendance{}
	for _, a := range appts {
		if a.ClientID == nil || !a.StartTime.Before(before) {
			continue
		}
		h := out[*a.ClientID]
		switch a.Status {
		case model.StatusCompleted:
			h.past++
		case model.StatusNoShow:
			h.past++
			h.noShows++
		}
		out[*a.ClientID] = h
	}
	return out
}

// noShowRisks flags scheduled appointments on day. A client with recorded
// no-shows is always flagged with a rate-based risk; anyone else is flagged
// at random so the assistant still surfaces candidates for follow-up.
func noShowRisks(day time.Time, window []model.Appointment, rnd Source) []model.NoShowRisk {
	history := clientHistory(availability.StartOfDay(day), window)
	out := []model.NoShowRisk{}
	for _, a := range availability.OnDay(day, window) {
		if a.Status != model.StatusScheduled || a.ClientID == nil {
			continue
		}
		var risk float64
		if h := history[*a.ClientID]; h.noShows > 0 {
			risk = riskFloor + riskSpan*float64(h.noShows)/float64(h.past)
		} else {
			if rnd.Float64() >= randomFlagOdds {
				continue
			}
			risk = riskFloor + riskSpan*rnd.Float64()
		}
		out = append(out, model.NoShowRisk{
			AppointmentID: a.ID,
			Risk:          clamp(risk, riskFloor, 1),
			Reason:        noShowRiskReason,
		})
	}
	return out
}
