package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskbook-dev/riskbook/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func trade(id string, closeAt string, pnl, commission string) model.Trade {
	ts, err := time.Parse(time.RFC3339, closeAt)
	if err != nil {
		panic(err)
	}
	return model.Trade{
		ID:         id,
		Instrument: "EURUSD",
		CloseTime:  ts,
		PnL:        dec(pnl),
		Commission: dec(commission),
	}
}

func TestBuildEmpty(t *testing.T) {
	h := Build(dec("5000"), nil, nil)

	assert.True(t, h.CurrentBalance.Equal(dec("5000")))
	assert.True(t, h.HighestBalance.Equal(dec("5000")))
	assert.Empty(t, h.Days)
	assert.Empty(t, h.Points)

	_, ok := h.LastDay()
	assert.False(t, ok)
}

func TestBuildGroupsByDay(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:30:00Z", "100", "-3"),
		trade("t2", "2025-01-02T14:00:00Z", "-50", "-3"),
		trade("t3", "2025-01-03T10:00:00Z", "200", "-3"),
	}
	h := Build(dec("5000"), trades, nil)

	require.Len(t, h.Days, 2)
	require.Len(t, h.Points, 3)

	jan2 := h.Days[0]
	assert.Equal(t, "2025-01-02", jan2.Date)
	assert.Equal(t, 2, jan2.Trades)
	assert.True(t, jan2.StartBalance.Equal(dec("5000")))
	assert.True(t, jan2.EndBalance.Equal(dec("5044")), "5000 + 97 - 53 = 5044")
	assert.True(t, jan2.NetPnL.Equal(dec("44")))

	jan3 := h.Days[1]
	assert.Equal(t, "2025-01-03", jan3.Date)
	assert.True(t, jan3.StartBalance.Equal(jan2.EndBalance), "day start carries the previous day's end")
	assert.True(t, jan3.EndBalance.Equal(dec("5241")))

	assert.True(t, h.CurrentBalance.Equal(dec("5241")))
	assert.True(t, h.HighestBalance.Equal(dec("5241")))
}

func TestBuildSortsOutOfOrderTrades(t *testing.T) {
	trades := []model.Trade{
		trade("t2", "2025-01-03T10:00:00Z", "-100", "0"),
		trade("t1", "2025-01-02T10:00:00Z", "50", "0"),
	}
	h := Build(dec("1000"), trades, nil)

	require.Len(t, h.Days, 2)
	assert.Equal(t, "2025-01-02", h.Days[0].Date)
	assert.True(t, h.Points[0].Balance.Equal(dec("1050")))
	assert.True(t, h.Points[1].Balance.Equal(dec("950")))
}

func TestBuildIntradayExtrema(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-150", "0"),
		trade("t2", "2025-01-02T11:00:00Z", "300", "0"),
		trade("t3", "2025-01-02T15:00:00Z", "-50", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	day := h.Days[0]
	assert.True(t, day.Lowest.Equal(dec("4850")))
	assert.True(t, day.Highest.Equal(dec("5150")))
	assert.True(t, day.Loss().Equal(dec("150")), "intraday loss is start minus lowest")
	assert.True(t, day.NetLoss().IsZero(), "the day closed up 100, so no net loss")
	assert.True(t, h.LowestBalance.Equal(dec("4850")))
	assert.True(t, h.HighestBalance.Equal(dec("5150")))
}

func TestNetLossClampsWinningDays(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-80", "-5"),
	}
	h := Build(dec("5000"), trades, nil)
	assert.True(t, h.Days[0].NetLoss().Equal(dec("85")))

	up := Build(dec("5000"), []model.Trade{trade("t1", "2025-01-02T09:00:00Z", "40", "0")}, nil)
	assert.True(t, up.Days[0].NetLoss().IsZero())
}

func TestBuildLossNeverNegative(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "100", "0"),
	}
	h := Build(dec("5000"), trades, nil)
	assert.True(t, h.Days[0].Loss().IsZero())
}

func TestBuildTimezoneDayBoundary(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:00 UTC on Jan 3rd is still Jan 2nd in New York.
	trades := []model.Trade{
		trade("t1", "2025-01-02T20:00:00Z", "50", "0"),
		trade("t2", "2025-01-03T01:00:00Z", "25", "0"),
	}

	utc := Build(dec("1000"), trades, time.UTC)
	require.Len(t, utc.Days, 2)

	nyc := Build(dec("1000"), trades, ny)
	require.Len(t, nyc.Days, 1)
	assert.Equal(t, "2025-01-02", nyc.Days[0].Date)
	assert.Equal(t, 2, nyc.Days[0].Trades)
}
