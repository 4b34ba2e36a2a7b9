package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// Violation codes reported by Evaluate and by the ledger's historical scan.
const (
	CodeDailyDrawdown = "DAILY_DRAWDOWN_BREACH"
	CodeMaxDrawdown   = "MAX_DRAWDOWN_BREACH"
)

// Violation is one broken rule.
type Violation struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Day  string `json:"day,omitempty"` // YYYY-MM-DD for historical daily breaches
}

// Snapshot carries the equity facts the rules run against. All figures are
// closed-trade balances derived from the ledger; the day fields describe the
// current evaluation day.
type Snapshot struct {
	StartingBalance decimal.Decimal
	CurrentEquity   decimal.Decimal
	HighestEquity   decimal.Decimal
	DayStartEquity  decimal.Decimal
	LowestToday     decimal.Decimal
}

// Metrics is everything a dashboard card needs about an account's risk state.
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

// Decision is the outcome of evaluating a phase's rules against a snapshot.
type Decision struct {
	Violations    []Violation `json:"violations,omitempty"`
	Metrics       Metrics     `json:"metrics"`
	TargetReached bool        `json:"target_reached"`
}

// Breached reports whether any rule was violated.
func (d Decision) Breached() bool { return len(d.Violations) > 0 }

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
}

// Evaluate runs the phase's drawdown and profit-target rules against the
// current snapshot. A zero-valued limit disables its rule; breaches are
// strict (equity exactly at the floor, or loss exactly at the limit, is not
// a violation). Historical breaches on earlier days are the ledger scan's
// job, not Evaluate's.
func Evaluate(phase model.Phase, snap Snapshot) Decision {
	var d Decision

	daily := ResolveLimit(snap.StartingBalance, phase.DailyLimit)
	if daily.IsPositive() {
		used := DailyUsed(snap.DayStartEquity, snap.LowestToday)
		d.Metrics.DailyLimit = daily
		d.Metrics.DailyUsed = used
		d.Metrics.DailyRemaining = DailyRemaining(daily, used)
		if used.GreaterThan(daily) {
			d.add(CodeDailyDrawdown, fmt.Sprintf("daily loss %s exceeds limit %s",
				used.StringFixed(2), daily.StringFixed(2)))
		}
	}

	maxAllowed := ResolveLimit(snap.StartingBalance, phase.MaxLimit)
	if maxAllowed.IsPositive() {
		floor := Floor(snap.StartingBalance, snap.HighestEquity, maxAllowed, phase.DrawdownMode)
		rem := MaxRemaining(snap.CurrentEquity, floor)
		d.Metrics.MaxLimit = maxAllowed
		d.Metrics.Floor = floor
		d.Metrics.MaxRemaining = rem
		used := maxAllowed.Sub(rem)
		if used.IsNegative() {
			used = decimal.Zero // equity above the starting balance
		}
		d.Metrics.MaxUsed = used
		if snap.CurrentEquity.LessThan(floor) {
			d.add(CodeMaxDrawdown, fmt.Sprintf("equity %s below floor %s",
				snap.CurrentEquity.StringFixed(2), floor.StringFixed(2)))
		}
	}

	target := ResolveLimit(snap.StartingBalance, phase.ProfitTarget)
	if target.IsPositive() {
		d.Metrics.ProfitTarget = target
		d.Metrics.TargetProgress = TargetProgress(snap.StartingBalance, snap.CurrentEquity, target)
		d.TargetReached = snap.CurrentEquity.Sub(snap.StartingBalance).GreaterThanOrEqual(target)
	}

	return d
}
