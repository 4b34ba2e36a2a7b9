package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskbook-dev/riskbook/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestResolveLimit_Percent(t *testing.T) {
	tests := []struct {
		balance, pct, want string
	}{
		{"100000", "10", "10000"},
		{"5000", "4", "200"},
		{"5000", "8", "400"},
		{"100000", "0", "0"},
		{"100000", "100", "100000"},
		{"2500.50", "10", "250.05"},
	}
	for _, tt := range tests {
		got := ResolveLimit(dec(tt.balance), model.Limit{Kind: model.LimitPercent, Value: dec(tt.pct)})
		assert.True(t, got.Equal(dec(tt.want)), "ResolveLimit(%s, %s%%) = %s, want %s", tt.balance, tt.pct, got, tt.want)
	}
}

func TestResolveLimit_Amount(t *testing.T) {
	got := ResolveLimit(dec("100000"), model.Limit{Kind: model.LimitAmount, Value: dec("2500")})
	assert.True(t, got.Equal(dec("2500")))
}

func TestDailyUsed(t *testing.T) {
	assert.True(t, DailyUsed(dec("5000"), dec("4900")).Equal(dec("100")))
	// Day moved only up: nothing used.
	assert.True(t, DailyUsed(dec("5000"), dec("5200")).IsZero())
	assert.True(t, DailyUsed(dec("5000"), dec("5000")).IsZero())
}

func TestDailyRemaining_Bounds(t *testing.T) {
	limit := dec("200")
	// Remaining is never negative and never above the limit.
	for _, used := range []string{"0", "50", "199.99", "200", "350"} {
		rem := DailyRemaining(limit, dec(used))
		assert.False(t, rem.IsNegative(), "used=%s", used)
		assert.True(t, rem.LessThanOrEqual(limit), "used=%s", used)
	}
	assert.True(t, DailyRemaining(limit, dec("50")).Equal(dec("150")))
	assert.True(t, DailyRemaining(limit, dec("350")).IsZero())
}

func TestFloor_Static(t *testing.T) {
	// 100k start with a 10% static allowance puts the floor at 90k.
	floor := Floor(dec("100000"), dec("100000"), dec("10000"), model.DrawdownStatic)
	assert.True(t, floor.Equal(dec("90000")))

	// Static floor ignores the high-water mark.
	floor = Floor(dec("100000"), dec("130000"), dec("10000"), model.DrawdownStatic)
	assert.True(t, floor.Equal(dec("90000")))
}

func TestFloor_TrailingMonotonic(t *testing.T) {
	start, limit := dec("100000"), dec("10000")
	prev := Floor(start, start, limit, model.DrawdownTrailing)
	assert.True(t, prev.Equal(dec("90000")), "fresh account trails from the starting balance")

	for _, high := range []string{"100000", "102000", "105000", "105000", "110000"} {
		floor := Floor(start, dec(high), limit, model.DrawdownTrailing)
		assert.True(t, floor.GreaterThanOrEqual(prev), "floor retreated at high=%s", high)
		prev = floor
	}
	assert.True(t, prev.Equal(dec("100000")))
}

func TestMaxRemaining(t *testing.T) {
	// Equity 95k against a 90k floor leaves 5k of room.
	assert.True(t, MaxRemaining(dec("95000"), dec("90000")).Equal(dec("5000")))
	assert.True(t, MaxRemaining(dec("89000"), dec("90000")).IsZero())
}

func TestTargetProgress(t *testing.T) {
	start := dec("5000")
	target := dec("500")

	assert.True(t, TargetProgress(start, dec("5000"), target).IsZero())
	assert.True(t, TargetProgress(start, dec("5250"), target).Equal(dec("0.5")))
	assert.True(t, TargetProgress(start, dec("5500"), target).Equal(dec("1")))
	// Clamped above the target and below the start.
	assert.True(t, TargetProgress(start, dec("6000"), target).Equal(dec("1")))
	assert.True(t, TargetProgress(start, dec("4800"), target).IsZero())
	// No target configured.
	assert.True(t, TargetProgress(start, dec("6000"), decimal.Zero).IsZero())
}

func phase(daily, maxPct, target string, mode model.DrawdownMode) model.Phase {
	return model.Phase{
		Type:         model.PhaseOne,
		ProfitTarget: model.Limit{Kind: model.LimitPercent, Value: dec(target)},
		DailyLimit:   model.Limit{Kind: model.LimitPercent, Value: dec(daily)},
		MaxLimit:     model.Limit{Kind: model.LimitPercent, Value: dec(maxPct)},
		DrawdownMode: mode,
	}
}

func TestEvaluate_CleanAccount(t *testing.T) {
	// The analysis-script configuration: 5k account, 4% daily, 8% max.
	p := phase("4", "8", "10", model.DrawdownStatic)
	d := Evaluate(p, Snapshot{
		StartingBalance: dec("5000"),
		CurrentEquity:   dec("5100"),
		HighestEquity:   dec("5150"),
		DayStartEquity:  dec("5050"),
		LowestToday:     dec("5020"),
	})

	assert.False(t, d.Breached())
	assert.True(t, d.Metrics.DailyLimit.Equal(dec("200")))
	assert.True(t, d.Metrics.DailyUsed.Equal(dec("30")))
	assert.True(t, d.Metrics.DailyRemaining.Equal(dec("170")))
	assert.True(t, d.Metrics.MaxLimit.Equal(dec("400")))
	assert.True(t, d.Metrics.Floor.Equal(dec("4600")))
	assert.True(t, d.Metrics.MaxRemaining.Equal(dec("500")))
	assert.True(t, d.Metrics.MaxUsed.IsZero(), "equity above start consumes nothing")
	assert.False(t, d.TargetReached)
	assert.True(t, d.Metrics.TargetProgress.Equal(dec("0.2")))
}

func TestEvaluate_DailyBreach(t *testing.T) {
	p := phase("4", "8", "10", model.DrawdownStatic)
	d := Evaluate(p, Snapshot{
		StartingBalance: dec("5000"),
		CurrentEquity:   dec("4790"),
		HighestEquity:   dec("5000"),
		DayStartEquity:  dec("5000"),
		LowestToday:     dec("4790"), // 210 down on a 200 limit
	})

	require.Len(t, d.Violations, 1)
	assert.Equal(t, CodeDailyDrawdown, d.Violations[0].Code)
	assert.Contains(t, d.Violations[0].Msg, "210.00")
	assert.True(t, d.Metrics.DailyRemaining.IsZero())
}

func TestEvaluate_ExactLimitIsNotBreach(t *testing.T) {
	p := phase("4", "8", "10", model.DrawdownStatic)
	d := Evaluate(p, Snapshot{
		StartingBalance: dec("5000"),
		CurrentEquity:   dec("4800"),
		HighestEquity:   dec("5000"),
		DayStartEquity:  dec("5000"),
		LowestToday:     dec("4800"), // exactly the 200 limit
	})
	assert.False(t, d.Breached())
	assert.True(t, d.Metrics.DailyRemaining.IsZero())
}

func TestEvaluate_MaxBreach_Trailing(t *testing.T) {
	p := phase("0", "8", "10", model.DrawdownTrailing)
	// High water 5500 trails the floor up to 5100; equity 5050 is under it
	// even though it is above the static floor 4600.
	d := Evaluate(p, Snapshot{
		StartingBalance: dec("5000"),
		CurrentEquity:   dec("5050"),
		HighestEquity:   dec("5500"),
		DayStartEquity:  dec("5100"),
		LowestToday:     dec("5050"),
	})

	require.Len(t, d.Violations, 1)
	assert.Equal(t, CodeMaxDrawdown, d.Violations[0].Code)
	assert.True(t, d.Metrics.Floor.Equal(dec("5100")))
	// Daily limit of zero disables the daily rule entirely.
	assert.True(t, d.Metrics.DailyLimit.IsZero())
}

func TestEvaluate_TargetReached(t *testing.T) {
	p := phase("4", "8", "10", model.DrawdownStatic)
	d := Evaluate(p, Snapshot{
		StartingBalance: dec("5000"),
		CurrentEquity:   dec("5500"),
		HighestEquity:   dec("5500"),
		DayStartEquity:  dec("5400"),
		LowestToday:     dec("5400"),
	})
	assert.True(t, d.TargetReached)
	assert.False(t, d.Breached())
	assert.True(t, d.Metrics.TargetProgress.Equal(dec("1")))
}
