package domain

import "time"

// WalletAccount is the balance sheet of one agent.
type WalletAccount struct {
	AgentID           string
	Currency          string
	CurrentBalance    float64
	TotalEarned       float64
	TotalWithdrawn    float64
	PendingWithdrawal float64
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
