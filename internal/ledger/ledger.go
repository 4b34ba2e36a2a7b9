// Package ledger derives equity history from an account's closed trades.
// The granularity is one equity point per trade close: the running balance
// after applying each trade's net PnL. Day buckets, intraday extrema, and
// the high-water mark all come from that curve, so drawdown checks never
// have to approximate a day's start or low from the current balance.
package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/model"
)

const dayFormat = "2006-01-02"

// Day aggregates one evaluation day of the equity curve. Days are keyed by
// the trade close time in the ledger's timezone; the start balance carries
// over from the previous day's end.
type Day struct {
	Date         string          `json:"date"` // YYYY-MM-DD
	StartBalance decimal.Decimal `json:"start_balance"`
	EndBalance   decimal.Decimal `json:"end_balance"`
	Lowest       decimal.Decimal `json:"lowest"`
	Highest      decimal.Decimal `json:"highest"`
	NetPnL       decimal.Decimal `json:"net_pnl"`
	Trades       int             `json:"trades"`
}

// Loss is the day's intraday drawdown consumption: the drop from the day's
// start to its lowest point. The current-day rule judges this figure.
func (d Day) Loss() decimal.Decimal {
	loss := d.StartBalance.Sub(d.Lowest)
	if loss.IsNegative() {
		return decimal.Zero
	}
	return loss
}

// NetLoss is the day's realized loss: net PnL clamped at zero and flipped
// positive. A day that dips intraday but closes above its open has no net
// loss, so historical checks use this, not Loss.
func (d Day) NetLoss() decimal.Decimal {
	if d.NetPnL.IsNegative() {
		return d.NetPnL.Neg()
	}
	return decimal.Zero
}

// History is the full derived equity state of an account.
type History struct {
	StartingBalance decimal.Decimal
	CurrentBalance  decimal.Decimal
	LowestBalance   decimal.Decimal
	HighestBalance  decimal.Decimal // high-water mark, never below the starting balance
	Points          []model.EquityPoint
	Days            []Day

	loc *time.Location
}

// Build computes the equity history for trades in the given timezone.
// Trades are ordered by close time (ties broken by id) regardless of input
// order. A nil location means UTC.
func Build(startingBalance decimal.Decimal, trades []model.Trade, loc *time.Location) *History {
	if loc == nil {
		loc = time.UTC
	}

	sorted := make([]model.Trade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CloseTime.Equal(sorted[j].CloseTime) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CloseTime.Before(sorted[j].CloseTime)
	})

	h := &History{
		StartingBalance: startingBalance,
		CurrentBalance:  startingBalance,
		LowestBalance:   startingBalance,
		HighestBalance:  startingBalance,
		loc:             loc,
	}

	var day *Day
	for _, t := range sorted {
		key := t.CloseTime.In(loc).Format(dayFormat)
		if day == nil || day.Date != key {
			start := h.CurrentBalance
			h.Days = append(h.Days, Day{
				Date:         key,
				StartBalance: start,
				EndBalance:   start,
				Lowest:       start,
				Highest:      start,
			})
			day = &h.Days[len(h.Days)-1]
		}

		h.CurrentBalance = h.CurrentBalance.Add(t.NetPnL())
		h.Points = append(h.Points, model.EquityPoint{Time: t.CloseTime, Balance: h.CurrentBalance})

		day.EndBalance = h.CurrentBalance
		day.NetPnL = day.NetPnL.Add(t.NetPnL())
		day.Trades++
		if h.CurrentBalance.LessThan(day.Lowest) {
			day.Lowest = h.CurrentBalance
		}
		if h.CurrentBalance.GreaterThan(day.Highest) {
			day.Highest = h.CurrentBalance
		}

		if h.CurrentBalance.LessThan(h.LowestBalance) {
			h.LowestBalance = h.CurrentBalance
		}
		if h.CurrentBalance.GreaterThan(h.HighestBalance) {
			h.HighestBalance = h.CurrentBalance
		}
	}

	return h
}

// LastDay returns the most recent day bucket, or false when no trades exist.
func (h *History) LastDay() (Day, bool) {
	if len(h.Days) == 0 {
		return Day{}, false
	}
	return h.Days[len(h.Days)-1], true
}
