package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/accounts"
	"github.com/riskbook-dev/riskbook/internal/model"
)

type createAccountRequest struct {
	Number          string       `json:"number" binding:"required"`
	Name            string       `json:"name"`
	Broker          string       `json:"broker"`
	Type            string       `json:"type" binding:"required"`
	StartingBalance string       `json:"starting_balance" binding:"required"`
	Template        string       `json:"template"`
	Phase           *phaseLimits `json:"phase"`
}

type phaseLimits struct {
	ProfitTarget limitSpec `json:"profit_target"`
	DailyLimit   limitSpec `json:"daily_limit"`
	MaxLimit     limitSpec `json:"max_limit"`
	DrawdownMode string    `json:"drawdown_mode"`
}

type limitSpec struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (l limitSpec) limit() (model.Limit, bool) {
	v, err := decimal.NewFromString(l.Value)
	if err != nil {
		return model.Limit{}, false
	}
	switch model.LimitKind(l.Kind) {
	case model.LimitPercent, model.LimitAmount:
		return model.Limit{Kind: model.LimitKind(l.Kind), Value: v}, true
	default:
		return model.Limit{}, false
	}
}

func (s *Server) createAccount(c *gin.Context) {
	var in createAccountRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "number, type, and starting_balance are required")
		return
	}

	typ, ok := model.ParseAccountType(in.Type)
	if !ok {
		s.badRequest(c, "type must be 'live' or 'prop_firm'")
		return
	}
	balance, err := decimal.NewFromString(in.StartingBalance)
	if err != nil {
		s.badRequest(c, "starting_balance must be a decimal number")
		return
	}

	p := accounts.CreateParams{
		UserID:          userID(c),
		Number:          in.Number,
		Name:            in.Name,
		Broker:          in.Broker,
		Type:            typ,
		StartingBalance: balance,
		Template:        in.Template,
	}
	if in.Phase != nil {
		mode, ok := model.ParseDrawdownMode(in.Phase.DrawdownMode)
		if !ok {
			s.badRequest(c, "drawdown_mode must be 'static' or 'trailing'")
			return
		}
		target, ok1 := in.Phase.ProfitTarget.limit()
		daily, ok2 := in.Phase.DailyLimit.limit()
		maxLim, ok3 := in.Phase.MaxLimit.limit()
		if !ok1 || !ok2 || !ok3 {
			s.badRequest(c, "phase limits need kind ('percent' or 'amount') and a decimal value")
			return
		}
		p.Phase = &accounts.PhaseParams{
			ProfitTarget: target,
			DailyLimit:   daily,
			MaxLimit:     maxLim,
			DrawdownMode: mode,
		}
	}

	a, err := s.accounts.Create(c.Request.Context(), p)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusCreated, a)
}

func (s *Server) listAccounts(c *gin.Context) {
	ovs, err := s.accounts.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, ovs)
}

// listPropAccounts narrows the listing to prop-firm accounts, each with its
// phase and live metrics.
func (s *Server) listPropAccounts(c *gin.Context) {
	ovs, err := s.accounts.List(c.Request.Context(), userID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]accounts.Overview, 0, len(ovs))
	for _, ov := range ovs {
		if ov.Account.Type == model.AccountTypePropFirm {
			out = append(out, ov)
		}
	}
	s.respond(c, http.StatusOK, out)
}

func (s *Server) getAccount(c *gin.Context) {
	ov, err := s.accounts.Overview(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, ov)
}

type updateAccountRequest struct {
	Name   string `json:"name"`
	Broker string `json:"broker"`
}

func (s *Server) updateAccount(c *gin.Context) {
	var in updateAccountRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		s.badRequest(c, "invalid body")
		return
	}
	a, err := s.accounts.Update(c.Request.Context(), userID(c), c.Param("id"), in.Name, in.Broker)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, a)
}

func (s *Server) deleteAccount(c *gin.Context) {
	accountID := c.Param("id")
	if err := s.accounts.Delete(c.Request.Context(), userID(c), accountID); err != nil {
		s.fail(c, err)
		return
	}
	s.invalidateMetrics(accountID)
	s.respond(c, http.StatusOK, gin.H{"deleted": accountID})
}

// accountMetrics serves the derived risk state, cached per account until a
// write invalidates it.
func (s *Server) accountMetrics(c *gin.Context) {
	accountID := c.Param("id")
	key := metricsKey(accountID)

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if ov, ok := v.(accounts.Overview); ok && ov.Account.UserID == userID(c) {
				s.respond(c, http.StatusOK, ov)
				return
			}
		}
	}

	ov, err := s.accounts.Overview(c.Request.Context(), userID(c), accountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if s.cache != nil {
		s.cache.Set(key, ov)
	}
	s.respond(c, http.StatusOK, ov)
}

func (s *Server) accountEquity(c *gin.Context) {
	ov, err := s.accounts.Overview(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	points := ov.Points
	if points == nil {
		points = []model.EquityPoint{}
	}
	s.respond(c, http.StatusOK, points)
}

func (s *Server) accountEvents(c *gin.Context) {
	events, err := s.accounts.Events(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	s.respond(c, http.StatusOK, events)
}

func (s *Server) resetAccount(c *gin.Context) {
	accountID := c.Param("id")
	a, err := s.accounts.Reset(c.Request.Context(), userID(c), accountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.invalidateMetrics(accountID)
	if s.hub != nil {
		s.hub.AccountUpdated(accountID, a)
	}
	s.respond(c, http.StatusOK, a)
}

func (s *Server) advanceAccount(c *gin.Context) {
	accountID := c.Param("id")
	phase, err := s.accounts.Advance(c.Request.Context(), userID(c), accountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.invalidateMetrics(accountID)
	if s.hub != nil {
		s.hub.AccountUpdated(accountID, phase)
	}
	s.respond(c, http.StatusOK, phase)
}

func (s *Server) listTemplates(c *gin.Context) {
	s.respond(c, http.StatusOK, accounts.Templates())
}
