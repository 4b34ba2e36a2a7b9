package ledger

import (
	"fmt"
	"time"

	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/risk"
)

// Snapshot projects the history into the inputs the risk rules need,
// evaluated at now. When the last traded day is not today, the current
// evaluation day opens at the current balance with nothing used from the
// daily allowance.
func (h *History) Snapshot(now time.Time) risk.Snapshot {
	snap := risk.Snapshot{
		StartingBalance: h.StartingBalance,
		CurrentEquity:   h.CurrentBalance,
		HighestEquity:   h.HighestBalance,
		DayStartEquity:  h.CurrentBalance,
		LowestToday:     h.CurrentBalance,
	}
	if day, ok := h.LastDay(); ok && day.Date == now.In(h.loc).Format(dayFormat) {
		snap.DayStartEquity = day.StartBalance
		snap.LowestToday = day.Lowest
	}
	return snap
}

// Scan walks the whole history against a phase's rules and reports every
// historical breach: one violation per day whose net loss exceeded the daily
// limit, and the first equity point that fell below the max-drawdown floor.
// Past days are judged on what they closed at, so a dip that recovered the
// same day does not count; only the live current-day rule watches the
// intraday low.
// The trailing floor is recomputed along the walk from the running
// high-water mark, so a dip is judged against the floor in force at the
// time, not today's.
func (h *History) Scan(phase model.Phase) []risk.Violation {
	var out []risk.Violation

	daily := risk.ResolveLimit(h.StartingBalance, phase.DailyLimit)
	if daily.IsPositive() {
		for _, day := range h.Days {
			if loss := day.NetLoss(); loss.GreaterThan(daily) {
				out = append(out, risk.Violation{
					Code: risk.CodeDailyDrawdown,
					Msg: fmt.Sprintf("daily loss %s exceeds limit %s by %s",
						loss.StringFixed(2), daily.StringFixed(2), loss.Sub(daily).StringFixed(2)),
					Day: day.Date,
				})
			}
		}
	}

	maxAllowed := risk.ResolveLimit(h.StartingBalance, phase.MaxLimit)
	if maxAllowed.IsPositive() {
		high := h.StartingBalance
		for _, p := range h.Points {
			if p.Balance.GreaterThan(high) {
				high = p.Balance
			}
			floor := risk.Floor(h.StartingBalance, high, maxAllowed, phase.DrawdownMode)
			if p.Balance.LessThan(floor) {
				out = append(out, risk.Violation{
					Code: risk.CodeMaxDrawdown,
					Msg: fmt.Sprintf("equity %s fell below floor %s",
						p.Balance.StringFixed(2), floor.StringFixed(2)),
					Day: p.Time.In(h.loc).Format(dayFormat),
				})
				break
			}
		}
	}

	return out
}
