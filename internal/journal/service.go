// Package journal is the trade journal: manual entry, listing, annotation,
// per-account statistics, and CSV export. Trades are immutable once saved;
// only the annotation fields (tags, notes) can change.
package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/store"
)

// Service provides business logic for the trade journal.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a journal Service.
func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// ManualParams holds parameters for a hand-entered trade.
type ManualParams struct {
	AccountID  string
	Instrument string
	Side       model.TradeSide
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	ClosePrice decimal.Decimal
	EntryTime  time.Time
	CloseTime  time.Time
	PnL        decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	Tags       []string
	Notes      string
}

// AddManual validates and saves a manual trade. A trade matching an existing
// one's dedup key is rejected as a duplicate.
func (s *Service) AddManual(ctx context.Context, userID string, p ManualParams) (model.Trade, error) {
	if _, err := s.ownedAccount(ctx, userID, p.AccountID); err != nil {
		return model.Trade{}, err
	}

	t := model.Trade{
		ID:         id.New(),
		AccountID:  p.AccountID,
		Platform:   "manual",
		Instrument: strings.TrimSpace(p.Instrument),
		Side:       p.Side,
		Quantity:   p.Quantity,
		EntryPrice: p.EntryPrice,
		ClosePrice: p.ClosePrice,
		EntryTime:  p.EntryTime,
		CloseTime:  p.CloseTime,
		PnL:        p.PnL,
		Commission: p.Commission,
		Swap:       p.Swap,
		Tags:       p.Tags,
		Notes:      p.Notes,
		CreatedAt:  s.now().UTC(),
	}
	if verrs := ValidateTrade(t); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return model.Trade{}, store.NewError(store.CodeValidation, "invalid trade: %s", strings.Join(msgs, "; "))
	}

	inserted, _, err := s.store.SaveTrades(ctx, []model.Trade{t})
	if err != nil {
		return model.Trade{}, fmt.Errorf("saving trade: %w", err)
	}
	if inserted == 0 {
		return model.Trade{}, store.NewError(store.CodeDuplicateTrades, "trade already recorded")
	}
	return t, nil
}

// List returns an account's trades ordered by close time.
func (s *Service) List(ctx context.Context, userID, accountID string, f store.TradeFilter) ([]model.Trade, error) {
	if _, err := s.ownedAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.store.TradesByAccount(ctx, accountID, f)
}

// Annotate updates a trade's tags and notes, the only mutable fields.
func (s *Service) Annotate(ctx context.Context, userID, tradeID string, tags []string, notes string) (model.Trade, error) {
	t, err := s.store.Trade(ctx, tradeID)
	if err != nil {
		return model.Trade{}, err
	}
	if _, err := s.ownedAccount(ctx, userID, t.AccountID); err != nil {
		return model.Trade{}, err
	}
	for _, tag := range tags {
		if strings.Contains(tag, ";") {
			return model.Trade{}, store.NewError(store.CodeValidation, "tag %q contains the separator", tag)
		}
	}
	if err := s.store.UpdateTradeAnnotations(ctx, tradeID, tags, notes); err != nil {
		return model.Trade{}, err
	}
	t.Tags = tags
	t.Notes = notes
	return t, nil
}

// Stats summarizes a set of trades.
type Stats struct {
	Trades     int             `json:"trades"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	WinRate    decimal.Decimal `json:"win_rate"` // fraction in [0, 1], zero when no trades
	GrossPnL   decimal.Decimal `json:"gross_pnl"`
	NetPnL     decimal.Decimal `json:"net_pnl"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
	BestTrade  decimal.Decimal `json:"best_trade"`
	WorstTrade decimal.Decimal `json:"worst_trade"`
}

// Summarize computes journal statistics over trades. Wins and losses count
// net PnL; a flat trade counts as neither.
func Summarize(trades []model.Trade) Stats {
	var st Stats
	st.Trades = len(trades)
	for i, t := range trades {
		net := t.NetPnL()
		st.GrossPnL = st.GrossPnL.Add(t.PnL)
		st.NetPnL = st.NetPnL.Add(net)
		st.Commission = st.Commission.Add(t.Commission)
		st.Swap = st.Swap.Add(t.Swap)
		if net.IsPositive() {
			st.Wins++
		} else if net.IsNegative() {
			st.Losses++
		}
		if i == 0 || net.GreaterThan(st.BestTrade) {
			st.BestTrade = net
		}
		if i == 0 || net.LessThan(st.WorstTrade) {
			st.WorstTrade = net
		}
	}
	if st.Trades > 0 {
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).Div(decimal.NewFromInt(int64(st.Trades))).Round(4)
	}
	return st
}

func (s *Service) ownedAccount(ctx context.Context, userID, accountID string) (model.Account, error) {
	a, err := s.store.Account(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.UserID != userID {
		return model.Account{}, store.NewError(store.CodeNotFound, "account %s not found", accountID)
	}
	return a, nil
}
