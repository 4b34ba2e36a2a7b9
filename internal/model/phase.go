package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PhaseType is an evaluation stage. Firms typically run one or two challenge
// phases before funding an account.
type PhaseType string

const (
	PhaseOne    PhaseType = "phase_1"
	PhaseTwo    PhaseType = "phase_2"
	PhaseFunded PhaseType = "funded"
)

// Next returns the stage that follows a passed evaluation. Funded accounts
// stay funded.
func (p PhaseType) Next() PhaseType {
	switch p {
	case PhaseOne:
		return PhaseTwo
	case PhaseTwo:
		return PhaseFunded
	default:
		return PhaseFunded
	}
}

// DrawdownMode selects how the maximum-drawdown floor behaves. Static fixes
// it below the starting balance; trailing raises it with the equity
// high-water mark and never lowers it.
type DrawdownMode string

const (
	DrawdownStatic   DrawdownMode = "static"
	DrawdownTrailing DrawdownMode = "trailing"
)

// ParseDrawdownMode parses a user-supplied drawdown mode.
func ParseDrawdownMode(s string) (DrawdownMode, bool) {
	switch DrawdownMode(strings.ToLower(strings.TrimSpace(s))) {
	case DrawdownStatic:
		return DrawdownStatic, true
	case DrawdownTrailing:
		return DrawdownTrailing, true
	default:
		return "", false
	}
}

// LimitKind says whether a configured limit is a percentage of the starting
// balance or an absolute currency amount.
type LimitKind string

const (
	LimitPercent LimitKind = "percent"
	LimitAmount  LimitKind = "amount"
)

// Limit is a drawdown or profit limit as configured by the firm.
type Limit struct {
	Kind  LimitKind       `json:"kind"`
	Value decimal.Decimal `json:"value"` // percent (0..100) or currency amount
}

// Percent builds a percentage limit.
func Percent(v string) Limit {
	return Limit{Kind: LimitPercent, Value: decimal.RequireFromString(v)}
}

// Amount builds an absolute currency limit.
func Amount(v string) Limit {
	return Limit{Kind: LimitAmount, Value: decimal.RequireFromString(v)}
}

// PhaseOutcome records how an evaluation phase ended.
type PhaseOutcome string

const (
	OutcomePassed PhaseOutcome = "passed"
	OutcomeFailed PhaseOutcome = "failed"
	OutcomeReset  PhaseOutcome = "reset"
)

// Phase is one evaluation stage of a prop-firm account. Exactly one phase
// per account has no EndedAt; that one governs the risk checks.
type Phase struct {
	ID           string       `json:"id"`
	AccountID    string       `json:"account_id"`
	Type         PhaseType    `json:"type"`
	ProfitTarget Limit        `json:"profit_target"`
	DailyLimit   Limit        `json:"daily_limit"`
	MaxLimit     Limit        `json:"max_limit"`
	DrawdownMode DrawdownMode `json:"drawdown_mode"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
	Outcome      PhaseOutcome `json:"outcome,omitempty"` // empty while the phase is running
}

// Active reports whether the phase is still running.
func (p Phase) Active() bool { return p.EndedAt == nil }
