// Package store persists riskbook's records in a relational database.
// Two engines are supported: an embedded sqlite file for single-user
// installs and Postgres for shared ones. Both speak the same Store
// interface and surface the same error codes, so nothing above this
// package cares which is in use.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/riskbook-dev/riskbook/internal/config"
	"github.com/riskbook-dev/riskbook/internal/model"
)

// Error codes carried to the HTTP layer and rendered in the error envelope.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeAccountExists   = "ACCOUNT_EXISTS"
	CodeDuplicateTrades = "DUPLICATE_TRADES"
	CodeDBConnection    = "DB_CONNECTION_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
)

// Error is a storage failure with a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// NewError builds an Error with a formatted message.
func NewError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrCode extracts the store error code from err, or "" when err is not a
// store error.
func ErrCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err is a missing-row error.
func IsNotFound(err error) bool { return ErrCode(err) == CodeNotFound }

// TradeFilter narrows trade listings. Zero values mean no constraint.
type TradeFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Store is the persistence surface. Listings come back in a deterministic
// order: accounts and events by creation, trades by close time.
type Store interface {
	CreateUser(ctx context.Context, u model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)

	CreateAccount(ctx context.Context, a model.Account) error
	Account(ctx context.Context, id string) (model.Account, error)
	AccountsByUser(ctx context.Context, userID string) ([]model.Account, error)
	UpdateAccount(ctx context.Context, a model.Account) error
	DeleteAccount(ctx context.Context, id string) error

	CreatePhase(ctx context.Context, p model.Phase) error
	ActivePhase(ctx context.Context, accountID string) (model.Phase, error)
	PhasesByAccount(ctx context.Context, accountID string) ([]model.Phase, error)
	UpdatePhase(ctx context.Context, p model.Phase) error

	// SaveTrades inserts trades in one transaction. Rows whose dedup key
	// already exists for the account are counted as duplicates and skipped;
	// they do not fail the batch.
	SaveTrades(ctx context.Context, trades []model.Trade) (inserted, duplicates int, err error)
	Trade(ctx context.Context, id string) (model.Trade, error)
	TradesByAccount(ctx context.Context, accountID string, f TradeFilter) ([]model.Trade, error)
	UpdateTradeAnnotations(ctx context.Context, id string, tags []string, notes string) error
	// ArchiveTrades hides an account's current trades from listings and
	// equity history. Used by evaluation resets.
	ArchiveTrades(ctx context.Context, accountID string) error

	CreateBatch(ctx context.Context, b model.ImportBatch) error
	BatchesByAccount(ctx context.Context, accountID string) ([]model.ImportBatch, error)

	CreateEvent(ctx context.Context, e model.Event) error
	EventsByAccount(ctx context.Context, accountID string) ([]model.Event, error)

	Close() error
}

// Open connects to the configured engine and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Engine {
	case "sqlite", "":
		return OpenSQLite(cfg.DSN)
	case "postgres":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, NewError(CodeValidation, "unknown database engine %q", cfg.Engine)
	}
}
