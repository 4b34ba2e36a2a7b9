package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/risk"
)

func percentPhase(daily, max string, mode model.DrawdownMode) model.Phase {
	return model.Phase{
		Type:         model.PhaseOne,
		DailyLimit:   model.Limit{Kind: model.LimitPercent, Value: dec(daily)},
		MaxLimit:     model.Limit{Kind: model.LimitPercent, Value: dec(max)},
		DrawdownMode: mode,
	}
}

func TestSnapshotOnTradedDay(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-150", "0"),
		trade("t2", "2025-01-02T11:00:00Z", "100", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	now, _ := time.Parse(time.RFC3339, "2025-01-02T18:00:00Z")
	snap := h.Snapshot(now)

	assert.True(t, snap.DayStartEquity.Equal(dec("5000")))
	assert.True(t, snap.LowestToday.Equal(dec("4850")))
	assert.True(t, snap.CurrentEquity.Equal(dec("4950")))
}

func TestSnapshotOnQuietDay(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-150", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	// Days later: the daily allowance is fresh.
	now, _ := time.Parse(time.RFC3339, "2025-01-10T12:00:00Z")
	snap := h.Snapshot(now)

	assert.True(t, snap.DayStartEquity.Equal(dec("4850")))
	assert.True(t, snap.LowestToday.Equal(dec("4850")))
}

func TestScanFindsHistoricalDailyBreach(t *testing.T) {
	// 4% of 5000 = 200 daily limit. Jan 3rd loses 250.
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "80", "-3"),
		trade("t2", "2025-01-03T09:00:00Z", "-250", "0"),
		trade("t3", "2025-01-04T09:00:00Z", "300", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	violations := h.Scan(percentPhase("4", "8", model.DrawdownStatic))
	require.Len(t, violations, 1)
	assert.Equal(t, risk.CodeDailyDrawdown, violations[0].Code)
	assert.Equal(t, "2025-01-03", violations[0].Day)
}

func TestScanDipAndRecoverIsNoBreach(t *testing.T) {
	// Down 250 intraday but back to -50 by the close: the 200 daily limit
	// judges the day on its net loss, so the dip does not count.
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-250", "0"),
		trade("t2", "2025-01-02T14:00:00Z", "200", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	violations := h.Scan(percentPhase("4", "8", model.DrawdownStatic))
	assert.Empty(t, violations)
}

func TestScanLossAtLimitIsNoBreach(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-200", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	violations := h.Scan(percentPhase("4", "8", model.DrawdownStatic))
	assert.Empty(t, violations, "breaches are strict: exactly the limit is allowed")
}

func TestScanStaticFloorCrossing(t *testing.T) {
	// 8% of 5000 = 400; the static floor sits at 4600.
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-150", "0"),
		trade("t2", "2025-01-03T09:00:00Z", "-150", "0"),
		trade("t3", "2025-01-06T09:00:00Z", "-150", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	violations := h.Scan(percentPhase("10", "8", model.DrawdownStatic))
	require.Len(t, violations, 1)
	assert.Equal(t, risk.CodeMaxDrawdown, violations[0].Code)
	assert.Equal(t, "2025-01-06", violations[0].Day)
}

func TestScanTrailingFloorFollowsHighWaterMark(t *testing.T) {
	// Trailing 8% on 5000. After rallying to 5500 the floor is 5100, so a
	// drop to 5050 breaches even though it is far above the static 4600.
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "500", "0"),
		trade("t2", "2025-01-03T09:00:00Z", "-450", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	trailing := h.Scan(percentPhase("50", "8", model.DrawdownTrailing))
	require.Len(t, trailing, 1)
	assert.Equal(t, risk.CodeMaxDrawdown, trailing[0].Code)
	assert.Equal(t, "2025-01-03", trailing[0].Day)

	static := h.Scan(percentPhase("50", "8", model.DrawdownStatic))
	assert.Empty(t, static)
}

func TestScanReportsFirstFloorCrossingOnly(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-500", "0"),
		trade("t2", "2025-01-03T09:00:00Z", "-500", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	violations := h.Scan(percentPhase("20", "8", model.DrawdownStatic))
	require.Len(t, violations, 1)
	assert.Equal(t, "2025-01-02", violations[0].Day)
}

func TestScanZeroLimitsSkipChecks(t *testing.T) {
	trades := []model.Trade{
		trade("t1", "2025-01-02T09:00:00Z", "-1000", "0"),
	}
	h := Build(dec("5000"), trades, nil)

	phase := model.Phase{
		Type:         model.PhaseFunded,
		DailyLimit:   model.Limit{Kind: model.LimitAmount, Value: dec("0")},
		MaxLimit:     model.Limit{Kind: model.LimitAmount, Value: dec("0")},
		DrawdownMode: model.DrawdownStatic,
	}
	assert.Empty(t, h.Scan(phase))
}
