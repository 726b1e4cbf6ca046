package model

import "time"

// TimeSlot is a proposed opening. Score is in [0, 1].
type TimeSlot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
}

type NoShowRisk struct {
	AppointmentID int64   `json:"appointmentId"`
	Risk          float64 `json:"risk"`
	Reason        string  `json:"reason"`
}

// RecommendationResult is the assistant output stored and returned to clients.
// Its JSON form uses snake_case list keys to stay compatible with stored rows.
type RecommendationResult struct {
	RecommendedSlots []TimeSlot   `json:"recommended_slots"`
	Insights         []string     `json:"insights"`
	NoShowRisks      []NoShowRisk `json:"no_show_risks"`
}

type Recommendation struct {
	ID         int64                `json:"id"`
	UserID     int64                `json:"userId"`
	Date       time.Time            `json:"date"`
	Suggestion RecommendationResult `json:"suggestion"`
	Used       bool                 `json:"used"`
	CreatedAt  time.Time            `json:"createdAt"`
}
