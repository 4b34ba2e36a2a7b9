package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/model"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedUser(t *testing.T, s *SQLite) model.User {
	t.Helper()
	u := model.User{ID: id.New(), Email: "trader@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func seedAccount(t *testing.T, s *SQLite, userID, number string) model.Account {
	t.Helper()
	a := model.Account{
		ID:              id.New(),
		UserID:          userID,
		Number:          number,
		Name:            "Eval " + number,
		Broker:          "Maven",
		Type:            model.AccountTypePropFirm,
		Status:          model.StatusActive,
		StartingBalance: dec("5000"),
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func testTrade(accountID, externalID string, close time.Time, pnl string) model.Trade {
	return model.Trade{
		ID:         id.New(),
		AccountID:  accountID,
		Platform:   "mt5report",
		ExternalID: externalID,
		Instrument: "XAUUSD",
		Side:       model.SideLong,
		Quantity:   dec("0.1"),
		EntryPrice: dec("2650.00"),
		ClosePrice: dec("2655.00"),
		EntryTime:  close.Add(-30 * time.Minute),
		CloseTime:  close,
		PnL:        dec(pnl),
		Commission: dec("-0.50"),
		Swap:       dec("0"),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestUsers_CreateAndLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)

	got, err := s.UserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.UserByEmail(ctx, "nobody@example.com")
	assert.True(t, IsNotFound(err))

	// Email is unique.
	err = s.CreateUser(ctx, model.User{ID: id.New(), Email: u.Email, PasswordHash: "y", CreatedAt: time.Now()})
	assert.Equal(t, CodeAccountExists, ErrCode(err))
}

func TestAccounts_UniquePerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	seedAccount(t, s, u.ID, "101")

	// Same number for the same user is rejected.
	err := s.CreateAccount(ctx, model.Account{
		ID: id.New(), UserID: u.ID, Number: "101", Type: model.AccountTypeLive,
		Status: model.StatusActive, StartingBalance: dec("1000"), CreatedAt: time.Now(),
	})
	assert.Equal(t, CodeAccountExists, ErrCode(err))

	// Same number for another user is fine.
	other := model.User{ID: id.New(), Email: "other@example.com", PasswordHash: "x", CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, other))
	err = s.CreateAccount(ctx, model.Account{
		ID: id.New(), UserID: other.ID, Number: "101", Type: model.AccountTypeLive,
		Status: model.StatusActive, StartingBalance: dec("1000"), CreatedAt: time.Now(),
	})
	assert.NoError(t, err)
}

func TestAccounts_UpdateAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	a.Status = model.StatusBreached
	a.Name = "renamed"
	require.NoError(t, s.UpdateAccount(ctx, a))

	got, err := s.Account(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBreached, got.Status)
	assert.Equal(t, "renamed", got.Name)
	assert.True(t, got.StartingBalance.Equal(dec("5000")))

	require.NoError(t, s.DeleteAccount(ctx, a.ID))
	_, err = s.Account(ctx, a.ID)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(s.DeleteAccount(ctx, a.ID)))
}

func TestPhases_ActiveLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	p := model.Phase{
		ID:           id.New(),
		AccountID:    a.ID,
		Type:         model.PhaseOne,
		ProfitTarget: model.Percent("10"),
		DailyLimit:   model.Percent("4"),
		MaxLimit:     model.Percent("8"),
		DrawdownMode: model.DrawdownStatic,
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.CreatePhase(ctx, p))

	active, err := s.ActivePhase(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, active.ID)
	assert.True(t, active.DailyLimit.Value.Equal(dec("4")))
	assert.Equal(t, model.LimitPercent, active.DailyLimit.Kind)

	ended := time.Now().UTC()
	active.EndedAt = &ended
	active.Outcome = model.OutcomePassed
	require.NoError(t, s.UpdatePhase(ctx, active))

	_, err = s.ActivePhase(ctx, a.ID)
	assert.True(t, IsNotFound(err))

	all, err := s.PhasesByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.OutcomePassed, all[0].Outcome)
}

func TestSaveTrades_CountsDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	base := time.Date(2025, 12, 24, 13, 21, 0, 0, time.UTC)
	first := []model.Trade{
		testTrade(a.ID, "T-1", base, "50"),
		testTrade(a.ID, "T-2", base.Add(time.Hour), "-20"),
	}
	ins, dup, err := s.SaveTrades(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, ins)
	assert.Equal(t, 0, dup)

	// Re-saving the same external ids inserts nothing.
	again := []model.Trade{
		testTrade(a.ID, "T-1", base, "50"),
		testTrade(a.ID, "T-3", base.Add(2*time.Hour), "10"),
	}
	ins, dup, err = s.SaveTrades(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 1, ins)
	assert.Equal(t, 1, dup)

	trades, err := s.TradesByAccount(ctx, a.ID, TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 3)
	// Ordered by close time.
	assert.Equal(t, "T-1", trades[0].ExternalID)
	assert.Equal(t, "T-3", trades[2].ExternalID)
	assert.True(t, trades[0].PnL.Equal(dec("50")))
	assert.True(t, trades[0].Commission.Equal(dec("-0.50")))
}

func TestTradesByAccount_Filter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	base := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	var trades []model.Trade
	for i := 0; i < 5; i++ {
		trades = append(trades, testTrade(a.ID, "", base.AddDate(0, 0, i), "10"))
	}
	_, _, err := s.SaveTrades(ctx, trades)
	require.NoError(t, err)

	got, err := s.TradesByAccount(ctx, a.ID, TradeFilter{
		From: base.AddDate(0, 0, 1),
		To:   base.AddDate(0, 0, 4),
	})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.TradesByAccount(ctx, a.ID, TradeFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestUpdateTradeAnnotations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	tr := testTrade(a.ID, "T-1", time.Now().UTC(), "25")
	_, _, err := s.SaveTrades(ctx, []model.Trade{tr})
	require.NoError(t, err)

	require.NoError(t, s.UpdateTradeAnnotations(ctx, tr.ID, []string{"breakout", "news"}, "held too long"))

	got, err := s.Trade(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"breakout", "news"}, got.Tags)
	assert.Equal(t, "held too long", got.Notes)
	// Everything else is untouched.
	assert.True(t, got.PnL.Equal(dec("25")))

	assert.True(t, IsNotFound(s.UpdateTradeAnnotations(ctx, "nope", nil, "")))
}

func TestArchiveTrades_HidesAndFreesDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	tr := testTrade(a.ID, "T-1", time.Now().UTC(), "25")
	_, _, err := s.SaveTrades(ctx, []model.Trade{tr})
	require.NoError(t, err)

	require.NoError(t, s.ArchiveTrades(ctx, a.ID))

	got, err := s.TradesByAccount(ctx, a.ID, TradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// The same external id can be imported again after a reset.
	ins, dup, err := s.SaveTrades(ctx, []model.Trade{testTrade(a.ID, "T-1", time.Now().UTC(), "25")})
	require.NoError(t, err)
	assert.Equal(t, 1, ins)
	assert.Equal(t, 0, dup)
}

func TestBatchesAndEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)
	a := seedAccount(t, s, u.ID, "101")

	b := model.ImportBatch{
		ID: id.New(), AccountID: a.ID, Platform: "topstep", FileName: "dec.csv",
		RowsTotal: 10, RowsImported: 8, RowsSkipped: 1, RowsDuplicate: 1,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateBatch(ctx, b))

	batches, err := s.BatchesByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 8, batches[0].RowsImported)

	e := model.Event{ID: id.New(), AccountID: a.ID, Action: model.ActionImportCommitted,
		Details: "dec.csv: 8 rows", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateEvent(ctx, e))

	events, err := s.EventsByAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.ActionImportCommitted, events[0].Action)
}

func TestOpen_UnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), configFor("oracle", ""))
	assert.Equal(t, CodeValidation, ErrCode(err))
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), configFor("sqlite", filepath.Join(t.TempDir(), "r.db")))
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func configFor(engine, dsn string) config.DatabaseConfig {
	return config.DatabaseConfig{Engine: engine, DSN: dsn}
}
