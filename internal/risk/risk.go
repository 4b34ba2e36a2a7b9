// Package risk implements the prop-firm drawdown and profit-target rules.
// Everything here is a pure function over decimals; equity inputs come from
// the ledger package, which derives them from the trade history.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/model"
)

var hundred = decimal.NewFromInt(100)

// ResolveLimit converts a configured limit to an absolute currency amount.
// Percentage limits are taken against the starting balance.
func ResolveLimit(startingBalance decimal.Decimal, l model.Limit) decimal.Decimal {
	if l.Kind == model.LimitPercent {
		return startingBalance.Mul(l.Value).Div(hundred)
	}
	return l.Value
}

// DailyUsed is how much of the daily loss allowance has been consumed:
// the drop from the day's opening equity to the day's lowest point, never
// negative.
func DailyUsed(dayStartEquity, lowestToday decimal.Decimal) decimal.Decimal {
	used := dayStartEquity.Sub(lowestToday)
	if used.IsNegative() {
		return decimal.Zero
	}
	return used
}

// DailyRemaining is the allowance left today, clamped to [0, limit].
func DailyRemaining(limit, used decimal.Decimal) decimal.Decimal {
	rem := limit.Sub(used)
	if rem.IsNegative() {
		return decimal.Zero
	}
	if rem.GreaterThan(limit) {
		return limit
	}
	return rem
}

// Floor is the equity level an account must stay above. Static mode fixes it
// below the starting balance. Trailing mode ties it to the high-water mark,
// so it rises with new equity highs and never retreats (the high-water mark
// itself never decreases and starts at the starting balance).
func Floor(startingBalance, highestEquity, maxLimit decimal.Decimal, mode model.DrawdownMode) decimal.Decimal {
	if mode == model.DrawdownTrailing {
		base := decimal.Max(startingBalance, highestEquity)
		return base.Sub(maxLimit)
	}
	return startingBalance.Sub(maxLimit)
}

// MaxRemaining is the distance from current equity down to the floor,
// never negative.
func MaxRemaining(currentEquity, floor decimal.Decimal) decimal.Decimal {
	rem := currentEquity.Sub(floor)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// TargetProgress reports evaluation progress toward the profit target as a
// fraction in [0, 1]. A zero target (live accounts, funded phases without
// one) always reports zero.
func TargetProgress(startingBalance, currentEquity, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	gain := currentEquity.Sub(startingBalance)
	if gain.IsNegative() {
		return decimal.Zero
	}
	progress := gain.Div(target)
	if progress.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return progress
}
