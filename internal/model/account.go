package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes live broker accounts from prop-firm evaluations.
type AccountType string

const (
	AccountTypeLive     AccountType = "live"
	AccountTypePropFirm AccountType = "prop_firm"
)

// ParseAccountType parses a user-supplied account type.
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(strings.ToLower(strings.TrimSpace(s))) {
	case AccountTypeLive:
		return AccountTypeLive, true
	case AccountTypePropFirm:
		return AccountTypePropFirm, true
	default:
		return "", false
	}
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusPassed   AccountStatus = "passed"
	StatusBreached AccountStatus = "breached"
	StatusArchived AccountStatus = "archived"
)

// Account is a trading account owned by a user. Prop-firm accounts carry an
// evaluation phase; live accounts do not.
type Account struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Number          string          `json:"number"` // broker/firm account number, unique per user
	Name            string          `json:"name"`
	Broker          string          `json:"broker"` // broker name for live accounts, firm name for prop accounts
	Type            AccountType     `json:"type"`
	Status          AccountStatus   `json:"status"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	CreatedAt       time.Time       `json:"created_at"`
	ResetAt         *time.Time      `json:"reset_at,omitempty"` // last evaluation reset, prop-firm only
}

// User owns accounts. Password is stored as a bcrypt hash only.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
