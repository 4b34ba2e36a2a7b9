package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/journal"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/store"
)

func (s *Server) listTrades(c *gin.Context) {
	accountID := c.Query("account")
	if accountID == "" {
		s.badRequest(c, "account query parameter is required")
		return
	}

	var f store.TradeFilter
	var err error
	if raw := c.Query("from"); raw != "" {
		if f.From, err = time.Parse(time.RFC3339, raw); err != nil {
			s.badRequest(c, "from must be RFC3339")
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if f.To, err = time.Parse(time.RFC3339, raw); err != nil {
			s.badRequest(c, "to must be RFC3339")
			return
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil || f.Limit < 0 {
			s.badRequest(c, "limit must be a non-negative integer")
			return
		}
	}

	trades, err := s.journal.List(c.Request.Context(), userID(c), accountID, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	s.respond(c, http.StatusOK, gin.H{"trades": trades, "stats": journal.Summarize(trades)})
}

type createTradeRequest struct {
	AccountID  string    `json:"account_id" binding:"required"`
	Instrument string    `json:"instrument" binding:"required"`
	Side       string    `json:"side"`
	Quantity   string    `json:"quantity"`
	EntryPrice string    `json:"entry_price"`
	ClosePrice string    `json:"close_price"`
	EntryTime  time.Time `json:"entry_time"`
	CloseTime  time.Time `json:"close_time" binding:"required"`
	PnL        string    `json:"pnl" binding:"required"`
	Commission string    `json:"commission"`
	Swap       string    `json:"swap"`
	Tags       []string  `json:"tags"`
	Notes      string    `json:"notes"`
}

func (s *Server) createTrade(c *gin.Context) {
	var in createTradeRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "account_id, instrument, close_time, and pnl are required")
		return
	}

	p := journal.ManualParams{
		AccountID:  in.AccountID,
		Instrument: in.Instrument,
		Side:       model.TradeSide(in.Side),
		EntryTime:  in.EntryTime,
		CloseTime:  in.CloseTime,
		Tags:       in.Tags,
		Notes:      in.Notes,
	}
	var err error
	for _, fld := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"quantity", in.Quantity, &p.Quantity},
		{"entry_price", in.EntryPrice, &p.EntryPrice},
		{"close_price", in.ClosePrice, &p.ClosePrice},
		{"pnl", in.PnL, &p.PnL},
		{"commission", in.Commission, &p.Commission},
		{"swap", in.Swap, &p.Swap},
	} {
		if fld.raw == "" {
			continue
		}
		if *fld.dst, err = decimal.NewFromString(fld.raw); err != nil {
			s.badRequest(c, fld.name+" must be a decimal number")
			return
		}
	}

	t, err := s.journal.AddManual(c.Request.Context(), userID(c), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.invalidateMetrics(t.AccountID)
	if s.hub != nil {
		// Re-derive the account state so a trade that trips a limit flips the
		// status (and notifies) before anything is pushed.
		if ov, err := s.accounts.Overview(c.Request.Context(), userID(c), t.AccountID); err == nil {
			s.hub.AccountUpdated(t.AccountID, ov)
		}
	}
	s.respond(c, http.StatusCreated, t)
}

type annotateRequest struct {
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

func (s *Server) annotateTrade(c *gin.Context) {
	var in annotateRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "invalid body")
		return
	}
	t, err := s.journal.Annotate(c.Request.Context(), userID(c), c.Param("id"), in.Tags, in.Notes)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, t)
}
