package model

import "time"

type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
	ProviderApple   Provider = "apple"
)

func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderOutlook || p == ProviderApple
}

// CalendarIntegration links a user to an external calendar. Tokens never leave the service.
type CalendarIntegration struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"userId"`
	Provider     Provider   `json:"provider"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	Connected    bool       `json:"connected"`
	CreatedAt    time.Time  `json:"createdAt"`
}
