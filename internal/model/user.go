package model

import "time"

// User is the profile record kept by the persistence collaborator.
type User struct {
	UID                    string    `json:"uid"`
	Email                  string    `json:"email"`
	DisplayName            string    `json:"displayName"`
	PhotoURL               string    `json:"photoURL,omitempty"`
	Country                string    `json:"country,omitempty"`
	CreatedAt              time.Time `json:"createdAt"`
	HasCompletedOnboarding bool      `json:"hasCompletedOnboarding"`
}

// PortfolioPosition is one simulated holding.
type PortfolioPosition struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	BuyPrice        float64   `json:"buyPrice"`
	CurrentPrice    float64   `json:"currentPrice"`
	Quantity        float64   `json:"quantity"`
	BuyDate         time.Time `json:"buyDate"`
	GainLoss        float64   `json:"gainLoss"`
	GainLossPercent float64   `json:"gainLossPercent"`
}

// WatchlistEntry is a symbol a user follows.
type WatchlistEntry struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	Symbol  string    `json:"symbol"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"addedAt"`
}
