package recommend

import (
	"encoding/json"

	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
)

// Normalize replaces nil lists with empty ones so they encode as [] rather than null.
func Normalize(r model.RecommendationResult) model.RecommendationResult {
	if r.RecommendedSlots == nil {
		r.RecommendedSlots = []model.TimeSlot{}
	}
	if r.Insights == nil {
		r.Insights = []string{}
	}
	if r.NoShowRisks == nil {
		r.NoShowRisks = []model.NoShowRisk{}
	}
	return r
}

func Marshal(r model.RecommendationResult) ([]byte, error) {
	return json.Marshal(Normalize(r))
}

func Unmarshal(data []byte) (model.RecommendationResult, error) {
	var r model.RecommendationResult
	if err := json.Unmarshal(data, &r); err != nil {
		return model.RecommendationResult{}, err
	}
	return Normalize(r), nil
}
