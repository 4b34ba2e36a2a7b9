package journal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/riskbook-dev/riskbook/internal/model"
)

func validTrade() model.Trade {
	close := time.Date(2025, 12, 24, 13, 21, 0, 0, time.UTC)
	return model.Trade{
		Instrument: "XAUUSD",
		Side:       model.SideLong,
		Quantity:   decimal.RequireFromString("0.1"),
		EntryTime:  close.Add(-time.Hour),
		CloseTime:  close,
		PnL:        decimal.RequireFromString("25"),
	}
}

func TestValidateTrade_Valid(t *testing.T) {
	assert.Empty(t, ValidateTrade(validTrade()))

	// Entry time and side are optional.
	tr := validTrade()
	tr.EntryTime = time.Time{}
	tr.Side = ""
	assert.Empty(t, ValidateTrade(tr))
}

func TestValidateTrade_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Trade)
		field  string
	}{
		{"missing instrument", func(tr *model.Trade) { tr.Instrument = "  " }, "instrument"},
		{"missing close time", func(tr *model.Trade) { tr.CloseTime = time.Time{} }, "close_time"},
		{"entry after close", func(tr *model.Trade) { tr.EntryTime = tr.CloseTime.Add(time.Minute) }, "entry_time"},
		{"negative quantity", func(tr *model.Trade) { tr.Quantity = decimal.RequireFromString("-1") }, "quantity"},
		{"bad side", func(tr *model.Trade) { tr.Side = "sideways" }, "side"},
		{"tag separator", func(tr *model.Trade) { tr.Tags = []string{"a;b"} }, "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrade()
			tt.mutate(&tr)
			errs := ValidateTrade(tr)
			assert.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateTrade_AccumulatesErrors(t *testing.T) {
	tr := model.Trade{Quantity: decimal.RequireFromString("-1")}
	errs := ValidateTrade(tr)
	assert.Len(t, errs, 3) // instrument, close_time, quantity
}
