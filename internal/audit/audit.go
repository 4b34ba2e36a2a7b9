// Package audit records the append-only event trail of an account:
// creations, resets, imports, phase changes, breaches. Events are stored
// alongside the account and served on its events endpoint, so every status
// change is explainable after the fact.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riskbook-dev/riskbook/internal/id"
	"github.com/riskbook-dev/riskbook/internal/model"
	"github.com/riskbook-dev/riskbook/internal/store"
)

// Recorder writes audit events. A failed write is logged and swallowed: the
// trail is diagnostic, it must never fail the operation it describes.
type Recorder struct {
	store  store.Store
	logger *zap.Logger
}

// NewRecorder creates a Recorder. A nil logger disables logging.
func NewRecorder(st store.Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: st, logger: logger}
}

// Record appends one event to an account's trail.
func (r *Recorder) Record(ctx context.Context, accountID string, action model.EventAction, details string) {
	e := model.Event{
		ID:        id.New(),
		AccountID: accountID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateEvent(ctx, e); err != nil {
		r.logger.Warn("audit_event_dropped",
			zap.String("account_id", accountID),
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}
	r.logger.Info("audit_event",
		zap.String("account_id", accountID),
		zap.String("action", string(action)),
		zap.String("details", details))
}

// Trail returns an account's events, oldest first.
func (r *Recorder) Trail(ctx context.Context, accountID string) ([]model.Event, error) {
	return r.store.EventsByAccount(ctx, accountID)
}
