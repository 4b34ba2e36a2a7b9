package commands_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingCSV = `ID,Open Time,Type,Volume,Symbol,Open Price,Close Time,Close Price,Commission,Swap,Profit
1,02/01/2025 09:00:00,buy,1,EURUSD,1.04,02/01/2025 10:00:00,1.05,-3.00,0.00,80.00
2,03/01/2025 09:00:00,sell,1,EURUSD,1.05,03/01/2025 10:00:00,1.04,-3.00,0.00,60.00
Total,,,,,,,,-6.00,0.00,140.00
`

// Day 2 loses 250 net against a 200 daily limit on a 5000 balance.
const breachingCSV = `ID,Open Time,Type,Volume,Symbol,Open Price,Close Time,Close Price,Commission,Swap,Profit
1,02/01/2025 09:00:00,buy,1,EURUSD,1.04,02/01/2025 10:00:00,1.05,-3.00,0.00,80.00
2,03/01/2025 09:00:00,buy,1,EURUSD,1.05,03/01/2025 10:00:00,1.03,-4.00,0.00,-246.00
Total,,,,,,,,-7.00,0.00,-166.00
`

// Dips 253 intraday on Jan 2nd but closes the day down only 56: no breach
// against the 200 daily limit, which judges closed days on net PnL.
const dipRecoverCSV = `ID,Open Time,Type,Volume,Symbol,Open Price,Close Time,Close Price,Commission,Swap,Profit
1,02/01/2025 09:00:00,buy,1,EURUSD,1.05,02/01/2025 10:00:00,1.03,-3.00,0.00,-250.00
2,02/01/2025 13:00:00,sell,1,EURUSD,1.05,02/01/2025 14:00:00,1.03,-3.00,0.00,200.00
Total,,,,,,,,-6.00,0.00,-50.00
`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyze_Passing(t *testing.T) {
	file := writeFixture(t, "passing.csv", passingCSV)

	out, err := runRiskbook(t, "analyze", file, "--balance", "5000")
	require.NoError(t, err, out)
	assert.Contains(t, out, "All rules respected")
	assert.Contains(t, out, "mt5report")
	assert.Contains(t, out, "daily loss limit 200.00")
	assert.Contains(t, out, "max drawdown 400.00")
}

func TestAnalyze_DailyBreachExitsNonZero(t *testing.T) {
	file := writeFixture(t, "breaching.csv", breachingCSV)

	out, err := runRiskbook(t, "analyze", file, "--balance", "5000")
	require.Error(t, err, "a violation must exit non-zero")
	assert.Contains(t, out, "DAILY_DRAWDOWN_BREACH")
	assert.Contains(t, out, "2025-01-03")
}

func TestAnalyze_DipAndRecoverPasses(t *testing.T) {
	file := writeFixture(t, "dip.csv", dipRecoverCSV)

	out, err := runRiskbook(t, "analyze", file, "--balance", "5000")
	require.NoError(t, err, out)
	assert.Contains(t, out, "All rules respected")
	assert.Contains(t, out, "56.00", "the day-loss column shows the net figure")
}

func TestAnalyze_HigherLimitPasses(t *testing.T) {
	file := writeFixture(t, "breaching.csv", breachingCSV)

	out, err := runRiskbook(t, "analyze", file, "--balance", "5000", "--daily-pct", "10", "--max-pct", "20")
	require.NoError(t, err, out)
	assert.Contains(t, out, "All rules respected")
}

func TestAnalyze_RequiresBalance(t *testing.T) {
	file := writeFixture(t, "passing.csv", passingCSV)

	_, err := runRiskbook(t, "analyze", file)
	require.Error(t, err)
}
