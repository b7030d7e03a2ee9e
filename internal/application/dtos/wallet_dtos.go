package dtos

import "time"

// CreateWalletCommand is the input for creating a wallet.
type CreateWalletCommand struct {
	UserID   string `json:"userId"`
	Name     string `json:"name,omitempty"`
	Currency string `json:"currency"`
}

// AddFundsCommand is the input for depositing into a wallet.
type AddFundsCommand struct {
	UserID      string `json:"userId"`
	WalletID    string `json:"walletId"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

// WalletDTO is the wire representation of a wallet.
type WalletDTO struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BalanceDTO is the response of the balance endpoint.
type BalanceDTO struct {
	Balance string `json:"balance"`
}

// TransferLimitsDTO is the response of the transfer-limits endpoint.
type TransferLimitsDTO struct {
	DailyLimit       string    `json:"dailyLimit"`
	DailyUsed        string    `json:"dailyUsed"`
	DailyRemaining   string    `json:"dailyRemaining"`
	MonthlyLimit     string    `json:"monthlyLimit"`
	MonthlyUsed      string    `json:"monthlyUsed"`
	MonthlyRemaining string    `json:"monthlyRemaining"`
	LastDailyReset   time.Time `json:"lastDailyReset"`
	LastMonthlyReset time.Time `json:"lastMonthlyReset"`
}
