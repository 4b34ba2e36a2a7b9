package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a position.
type TradeSide string

const (
	SideLong  TradeSide = "long"
	SideShort TradeSide = "short"
)

// Trade is one closed position in the journal. Trades are immutable once
// saved except for the annotation fields (Tags, Notes).
type Trade struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"account_id"`
	Platform   string          `json:"platform"`    // importing platform, "manual" for hand-entered trades
	ExternalID string          `json:"external_id"` // platform's own trade/ticket id, used for dedup
	Instrument string          `json:"instrument"`
	Side       TradeSide       `json:"side,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ClosePrice decimal.Decimal `json:"close_price"`
	EntryTime  time.Time       `json:"entry_time"`
	CloseTime  time.Time       `json:"close_time"`
	PnL        decimal.Decimal `json:"pnl"`        // gross profit/loss
	Commission decimal.Decimal `json:"commission"` // negative when a cost
	Swap       decimal.Decimal `json:"swap"`       // negative when a cost
	Tags       []string        `json:"tags,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NetPnL is the prop-firm accounting figure: gross PnL plus commission and
// swap (both carried as signed values, costs negative).
func (t Trade) NetPnL() decimal.Decimal {
	return t.PnL.Add(t.Commission).Add(t.Swap)
}

// DedupKey identifies a trade for duplicate detection within an account.
// The platform ticket id wins when present; otherwise instrument, close time
// and gross PnL stand in.
func (t Trade) DedupKey() string {
	if t.ExternalID != "" {
		return t.Platform + ":" + t.ExternalID
	}
	return fmt.Sprintf("%s:%s:%s", t.Instrument, t.CloseTime.UTC().Format(time.RFC3339), t.PnL.String())
}

// JoinTags flattens tags for storage. Tags must not contain the separator.
func JoinTags(tags []string) string {
	return strings.Join(tags, ";")
}

// SplitTags inverts JoinTags, dropping empty segments.
func SplitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ImportBatch summarizes one committed import run.
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

// EquityPoint is one point of an account's closed-trade equity curve.
type EquityPoint struct {
	Time    time.Time       `json:"time"`
	Balance decimal.Decimal `json:"balance"`
}
