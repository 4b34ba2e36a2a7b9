package client

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account mirrors the server's account record.
type Account struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Number          string          `json:"number"`
	Name            string          `json:"name"`
	Broker          string          `json:"broker"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CreatedAt       time.Time       `json:"created_at"`
	ResetAt         *time.Time      `json:"reset_at,omitempty"`
}

// Limit is a percent-of-balance or absolute rule value.
type Limit struct {
	Kind  string          `json:"kind"` // "percent" or "amount"
	Value decimal.Decimal `json:"value"`
}

// Phase is one evaluation stage of a prop-firm account.
type Phase struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	Type         string     `json:"type"`
	ProfitTarget Limit      `json:"profit_target"`
	DailyLimit   Limit      `json:"daily_limit"`
	MaxLimit     Limit      `json:"max_limit"`
	DrawdownMode string     `json:"drawdown_mode"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Outcome      string     `json:"outcome,omitempty"`
}

// Violation is one broken rule.
type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Day  string `json:"day,omitempty"`
}

// Metrics are the resolved drawdown numbers for the active phase.
type Metrics struct {
	DailyLimit     decimal.Decimal `json:"daily_limit"`
	DailyUsed      decimal.Decimal `json:"daily_used"`
	DailyRemaining decimal.Decimal `json:"daily_remaining"`
	MaxLimit       decimal.Decimal `json:"max_limit"`
	Floor          decimal.Decimal `json:"floor"`
	MaxUsed        decimal.Decimal `json:"max_used"`
	MaxRemaining   decimal.Decimal `json:"max_remaining"`
	ProfitTarget   decimal.Decimal `json:"profit_target"`
	TargetProgress decimal.Decimal `json:"target_progress"`
}

// Decision is the risk engine's verdict for an account.
type Decision struct {
	Violations    []Violation `json:"violations,omitempty"`
	Metrics       Metrics     `json:"metrics"`
	TargetReached bool        `json:"target_reached"`
}

// Overview is an account with its derived risk state.
type Overview struct {
	Account  Account         `json:"account"`
	Phase    *Phase          `json:"phase,omitempty"`
	Decision *Decision       `json:"decision,omitempty"`
	Equity   decimal.Decimal `json:"equity"`
}

// EquityPoint is one point of the closed-trade equity curve.
type EquityPoint struct {
	Time    time.Time       `json:"time"`
	Balance decimal.Decimal `json:"balance"`
}

// Trade is one closed position.
type Trade struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	Platform   string          `json:"platform"`
	ExternalID string          `json:"external_id"`
	Instrument string          `json:"instrument"`
	Side       string          `json:"side,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ClosePrice decimal.Decimal `json:"close_price"`
	EntryTime  time.Time       `json:"entry_time"`
	CloseTime  time.Time       `json:"close_time"`
	PnL        decimal.Decimal `json:"pnl"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
	Tags       []string        `json:"tags,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Stats summarizes a set of trades.
type Stats struct {
	Trades     int             `json:"trades"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	WinRate    decimal.Decimal `json:"win_rate"`
	GrossPnL   decimal.Decimal `json:"gross_pnl"`
	NetPnL     decimal.Decimal `json:"net_pnl"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
	BestTrade  decimal.Decimal `json:"best_trade"`
	WorstTrade decimal.Decimal `json:"worst_trade"`
}

// Event is one audit-trail entry.
type Event struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Template is a built-in prop-firm rule preset.
type Template struct {
	Name         string `json:"name"`
	Firm         string `json:"firm"`
	ProfitTarget Limit  `json:"profit_target"`
	DailyLimit   Limit  `json:"daily_limit"`
	MaxLimit     Limit  `json:"max_limit"`
	DrawdownMode string `json:"drawdown_mode"`
}

// ImportBatch summarizes one committed import.
type ImportBatch struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Platform      string    `json:"platform"`
	FileName      string    `json:"file_name"`
	RowsTotal     int       `json:"rows_total"`
	RowsImported  int       `json:"rows_imported"`
	RowsSkipped   int       `json:"rows_skipped"`
	RowsDuplicate int       `json:"rows_duplicate"`
	CreatedAt     time.Time `json:"created_at"`
}

// RowError is one skipped import row.
type RowError struct {
	Row int    `json:"row"`
	Msg string `json:"msg"`
}

// ImportPreview is a parsed, not-yet-persisted import file.
type ImportPreview struct {
	Platform  string         `json:"platform"`
	Header    []string       `json:"header"`
	Mapping   map[string]int `json:"mapping"`
	Trades    []Trade        `json:"trades"`
	RowErrors []RowError     `json:"row_errors,omitempty"`
	RowsTotal int            `json:"rows_total"`
}
