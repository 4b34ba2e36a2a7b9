// Package accounts is the account registry: creation, listing, evaluation
// resets, phase advancement, and the breach transitions driven by the risk
// engine.
package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/audit"
	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/ledger"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/risk"
	"github.com/riskbook-dev/riskbook/internal/store"
)

// Notifier receives an account snapshot when the risk engine changes the
// account's status. The websocket hub satisfies this.
type Notifier interface {
	AccountUpdated(accountID string, payload any)
}

// Service provides business logic over the account registry.
type Service struct {
	store  store.Store
	audit  *audit.Recorder
	loc    *time.Location
	now    func() time.Time
	notify Notifier
}

// NewService creates an account Service. The location sets the evaluation
// day boundary; nil means UTC.
func NewService(st store.Store, rec *audit.Recorder, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: st, audit: rec, loc: loc, now: time.Now}
}

// SetNotifier installs the hook that pushes status transitions out. A breach
// is discovered wherever an overview is computed, including plain reads, so
// handler-level broadcasting alone would miss it.
func (s *Service) SetNotifier(n Notifier) { s.notify = n }

// PhaseParams are explicit phase limits for accounts created without a
// template.
type PhaseParams struct {
	ProfitTarget model.Limit
	DailyLimit   model.Limit
	MaxLimit     model.Limit
	DrawdownMode model.DrawdownMode
}

// CreateParams holds parameters for registering an account. Prop-firm
// accounts need either a Template name or explicit Phase limits.
type CreateParams struct {
	UserID          string
	Number          string
	Name            string
	Broker          string
	Type            model.AccountType
	StartingBalance decimal.Decimal
	Template        string
	Phase           *PhaseParams
}

// Create registers an account. For prop-firm accounts it also opens the
// phase_1 evaluation and records the creation event.
func (s *Service) Create(ctx context.Context, p CreateParams) (model.Account, error) {
	if strings.TrimSpace(p.Number) == "" {
		return model.Account{}, store.NewError(store.CodeValidation, "account number is required")
	}
	if !p.StartingBalance.IsPositive() {
		return model.Account{}, store.NewError(store.CodeValidation, "starting balance must be positive")
	}

	phase := p.Phase
	if p.Type == model.AccountTypePropFirm {
		if p.Template != "" {
			tpl, ok := TemplateByName(p.Template)
			if !ok {
				return model.Account{}, store.NewError(store.CodeValidation, "unknown template %q", p.Template)
			}
			tp := tpl.PhaseParams()
			phase = &tp
		}
		if phase == nil {
			return model.Account{}, store.NewError(store.CodeValidation, "prop-firm accounts need a template or explicit limits")
		}
	}

	a := model.Account{
		ID:              id.New(),
		UserID:          p.UserID,
		Number:          strings.TrimSpace(p.Number),
		Name:            p.Name,
		Broker:          p.Broker,
		Type:            p.Type,
		Status:          model.StatusActive,
		StartingBalance: p.StartingBalance,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("creating account %s: %w", a.Number, err)
	}

	if a.Type == model.AccountTypePropFirm {
		if err := s.store.CreatePhase(ctx, s.newPhase(a.ID, model.PhaseOne, *phase)); err != nil {
			return model.Account{}, fmt.Errorf("opening phase_1 for %s: %w", a.Number, err)
		}
	}

	s.audit.Record(ctx, a.ID, model.ActionAccountCreated,
		fmt.Sprintf("%s account %s, balance %s", a.Type, a.Number, a.StartingBalance.StringFixed(2)))
	return a, nil
}

func (s *Service) newPhase(accountID string, typ model.PhaseType, p PhaseParams) model.Phase {
	target := p.ProfitTarget
	if typ == model.PhaseFunded {
		// Funded accounts keep the drawdown rules but have no target.
		target = model.Limit{Kind: model.LimitAmount, Value: decimal.Zero}
	}
	return model.Phase{
		ID:           id.New(),
		AccountID:    accountID,
		Type:         typ,
		ProfitTarget: target,
		DailyLimit:   p.DailyLimit,
		MaxLimit:     p.MaxLimit,
		DrawdownMode: p.DrawdownMode,
		StartedAt:    s.now().UTC(),
	}
}

// Get returns one account, enforcing ownership.
func (s *Service) Get(ctx context.Context, userID, accountID string) (model.Account, error) {
	a, err := s.store.Account(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.UserID != userID {
		return model.Account{}, store.NewError(store.CodeNotFound, "account %s not found", accountID)
	}
	return a, nil
}

// Overview is an account with its derived risk state. Phase and Decision are
// nil for live accounts.
type Overview struct {
	Account  model.Account       `json:"account"`
	Phase    *model.Phase        `json:"phase,omitempty"`
	Decision *risk.Decision      `json:"decision,omitempty"`
	Equity   decimal.Decimal     `json:"equity"`
	History  *ledger.History     `json:"-"`
	Points   []model.EquityPoint `json:"-"`
}

// Overview loads an account, derives its equity history, and for prop-firm
// accounts runs the active phase's rules. A fresh breach flips the account
// to breached and records the event; repeated evaluations of an already
// breached account change nothing.
func (s *Service) Overview(ctx context.Context, userID, accountID string) (Overview, error) {
	a, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return Overview{}, err
	}
	return s.overview(ctx, a)
}

func (s *Service) overview(ctx context.Context, a model.Account) (Overview, error) {
	trades, err := s.store.TradesByAccount(ctx, a.ID, store.TradeFilter{})
	if err != nil {
		return Overview{}, fmt.Errorf("loading trades for %s: %w", a.Number, err)
	}
	h := ledger.Build(a.StartingBalance, trades, s.loc)
	ov := Overview{Account: a, Equity: h.CurrentBalance, History: h, Points: h.Points}

	if a.Type != model.AccountTypePropFirm {
		return ov, nil
	}

	phase, err := s.store.ActivePhase(ctx, a.ID)
	if store.IsNotFound(err) {
		return ov, nil // archived or fully ended evaluation
	}
	if err != nil {
		return Overview{}, fmt.Errorf("loading phase for %s: %w", a.Number, err)
	}

	d := risk.Evaluate(phase, h.Snapshot(s.now()))
	// Current-day rules miss breaches on earlier days; the historical scan
	// catches those.
	if !d.Breached() {
		d.Violations = append(d.Violations, h.Scan(phase)...)
	}
	ov.Phase = &phase
	ov.Decision = &d

	if d.Breached() && a.Status == model.StatusActive {
		a.Status = model.StatusBreached
		if err := s.store.UpdateAccount(ctx, a); err != nil {
			return Overview{}, fmt.Errorf("marking %s breached: %w", a.Number, err)
		}
		ov.Account = a
		s.audit.Record(ctx, a.ID, model.ActionLimitBreached, d.Violations[0].Code+": "+d.Violations[0].Msg)
		if s.notify != nil {
			s.notify.AccountUpdated(a.ID, ov)
		}
	}
	return ov, nil
}

// List returns all of a user's accounts with their derived state.
func (s *Service) List(ctx context.Context, userID string) ([]Overview, error) {
	accts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Overview, 0, len(accts))
	for _, a := range accts {
		ov, err := s.overview(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}

// Update changes an account's mutable fields (name, broker).
func (s *Service) Update(ctx context.Context, userID, accountID, name, broker string) (model.Account, error) {
	a, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if name != "" {
		a.Name = name
	}
	if broker != "" {
		a.Broker = broker
	}
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// Delete removes an account and everything under it.
func (s *Service) Delete(ctx context.Context, userID, accountID string) error {
	if _, err := s.Get(ctx, userID, accountID); err != nil {
		return err
	}
	return s.store.DeleteAccount(ctx, accountID)
}

// Archive retires an account without deleting its history.
func (s *Service) Archive(ctx context.Context, userID, accountID string) error {
	a, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return err
	}
	if a.Status == model.StatusArchived {
		return nil
	}
	a.Status = model.StatusArchived
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return err
	}
	s.audit.Record(ctx, a.ID, model.ActionAccountArchived, "")
	return nil
}

// Reset restarts a prop-firm evaluation: the current trades are archived,
// the running phase ends with a reset outcome, and a fresh phase_1 opens
// with the same limits.
func (s *Service) Reset(ctx context.Context, userID, accountID string) (model.Account, error) {
	a, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.Type != model.AccountTypePropFirm {
		return model.Account{}, store.NewError(store.CodeValidation, "only prop-firm accounts can be reset")
	}

	phase, err := s.store.ActivePhase(ctx, a.ID)
	if err != nil {
		return model.Account{}, fmt.Errorf("loading phase for reset: %w", err)
	}
	now := s.now().UTC()
	phase.EndedAt = &now
	phase.Outcome = model.OutcomeReset
	if err := s.store.UpdatePhase(ctx, phase); err != nil {
		return model.Account{}, fmt.Errorf("ending phase: %w", err)
	}
	if err := s.store.ArchiveTrades(ctx, a.ID); err != nil {
		return model.Account{}, fmt.Errorf("archiving trades: %w", err)
	}
	if err := s.store.CreatePhase(ctx, s.newPhase(a.ID, model.PhaseOne, PhaseParams{
		ProfitTarget: phase.ProfitTarget,
		DailyLimit:   phase.DailyLimit,
		MaxLimit:     phase.MaxLimit,
		DrawdownMode: phase.DrawdownMode,
	})); err != nil {
		return model.Account{}, fmt.Errorf("opening fresh phase_1: %w", err)
	}

	a.Status = model.StatusActive
	a.ResetAt = &now
	if err := s.store.UpdateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("reactivating account: %w", err)
	}
	s.audit.Record(ctx, a.ID, model.ActionAccountReset, "evaluation restarted at phase_1")
	return a, nil
}

// Advance moves a prop-firm account to its next phase. It requires the
// profit target to be reached with no rule violations.
func (s *Service) Advance(ctx context.Context, userID, accountID string) (model.Phase, error) {
	a, err := s.Get(ctx, userID, accountID)
	if err != nil {
		return model.Phase{}, err
	}
	if a.Type != model.AccountTypePropFirm {
		return model.Phase{}, store.NewError(store.CodeValidation, "only prop-firm accounts can advance")
	}

	ov, err := s.overview(ctx, a)
	if err != nil {
		return model.Phase{}, err
	}
	if ov.Phase == nil {
		return model.Phase{}, store.NewError(store.CodeNotFound, "no active phase for account %s", accountID)
	}
	if ov.Phase.Type == model.PhaseFunded {
		return model.Phase{}, store.NewError(store.CodeValidation, "account is already funded")
	}
	if ov.Decision.Breached() {
		return model.Phase{}, store.NewError(store.CodeValidation, "account has rule violations: %s", ov.Decision.Violations[0].Code)
	}
	if !ov.Decision.TargetReached {
		return model.Phase{}, store.NewError(store.CodeValidation, "profit target not reached (%s of %s)",
			ov.Equity.Sub(a.StartingBalance).StringFixed(2), ov.Decision.Metrics.ProfitTarget.StringFixed(2))
	}

	now := s.now().UTC()
	prev := *ov.Phase
	prev.EndedAt = &now
	prev.Outcome = model.OutcomePassed
	if err := s.store.UpdatePhase(ctx, prev); err != nil {
		return model.Phase{}, fmt.Errorf("ending phase: %w", err)
	}
	s.audit.Record(ctx, a.ID, model.ActionTargetReached, string(prev.Type))

	next := s.newPhase(a.ID, prev.Type.Next(), PhaseParams{
		ProfitTarget: prev.ProfitTarget,
		DailyLimit:   prev.DailyLimit,
		MaxLimit:     prev.MaxLimit,
		DrawdownMode: prev.DrawdownMode,
	})
	if err := s.store.CreatePhase(ctx, next); err != nil {
		return model.Phase{}, fmt.Errorf("opening %s: %w", next.Type, err)
	}
	// The new phase starts from a clean slate: the passed evaluation's
	// trades belong to the previous phase.
	if err := s.store.ArchiveTrades(ctx, a.ID); err != nil {
		return model.Phase{}, fmt.Errorf("archiving passed-phase trades: %w", err)
	}
	if next.Type == model.PhaseFunded {
		a.Status = model.StatusPassed
		if err := s.store.UpdateAccount(ctx, a); err != nil {
			return model.Phase{}, fmt.Errorf("marking account passed: %w", err)
		}
	}
	s.audit.Record(ctx, a.ID, model.ActionPhaseAdvanced,
		fmt.Sprintf("%s -> %s", prev.Type, next.Type))
	return next, nil
}

// Events returns an account's audit trail.
func (s *Service) Events(ctx context.Context, userID, accountID string) ([]model.Event, error) {
	if _, err := s.Get(ctx, userID, accountID); err != nil {
		return nil, err
	}
	return s.audit.Trail(ctx, accountID)
}
