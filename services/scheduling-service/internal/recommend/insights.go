package recommend

import "github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"

var baseInsights = []string{
	"Your meeting load is optimally balanced this week",
	"Consider scheduling focused work time in the mornings",
	"You have several meetings scheduled without proper breaks",
}

var roleInsights = map[model.Role]string{
	model.RoleAdmin: "Consider delegating routine appointments to staff members to free up your schedule",
	model.RoleStaff: "Leave time after each appointment for documentation and client follow-ups",
}

func insightsFor(role model.Role) []string {
	out := append([]string(nil), baseInsights...)
	if extra, ok := roleInsights[role]; ok {
		out = append(out, extra)
	}
	return out
}
