package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/riskbook-dev/riskbook/internal/model"
)

// Times are stored as RFC3339 text in both engines so rows stay readable
// and comparable with plain SQL.
const timeFormat = time.RFC3339Nano

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL REFERENCES users(id),
	number           TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	broker           TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL,
	status           TEXT NOT NULL,
	starting_balance TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	reset_at         TEXT,
	UNIQUE (user_id, number)
);

CREATE TABLE IF NOT EXISTS phases (
	id                  TEXT PRIMARY KEY,
	account_id          TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	type                TEXT NOT NULL,
	profit_target_kind  TEXT NOT NULL,
	profit_target_value TEXT NOT NULL,
	daily_limit_kind    TEXT NOT NULL,
	daily_limit_value   TEXT NOT NULL,
	max_limit_kind      TEXT NOT NULL,
	max_limit_value     TEXT NOT NULL,
	drawdown_mode       TEXT NOT NULL,
	started_at          TEXT NOT NULL,
	ended_at            TEXT,
	outcome             TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_phases_account ON phases(account_id);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	platform    TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	dedup_key   TEXT NOT NULL,
	instrument  TEXT NOT NULL,
	side        TEXT NOT NULL DEFAULT '',
	quantity    TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	close_price TEXT NOT NULL,
	entry_time  TEXT,
	close_time  TEXT NOT NULL,
	pnl         TEXT NOT NULL,
	commission  TEXT NOT NULL,
	swap        TEXT NOT NULL,
	tags        TEXT NOT NULL DEFAULT '',
	notes       TEXT NOT NULL DEFAULT '',
	archived    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	UNIQUE (account_id, dedup_key)
);
CREATE INDEX IF NOT EXISTS idx_trades_account_close ON trades(account_id, close_time);

CREATE TABLE IF NOT EXISTS import_batches (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	platform       TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	rows_total     INTEGER NOT NULL,
	rows_imported  INTEGER NOT NULL,
	rows_skipped   INTEGER NOT NULL,
	rows_duplicate INTEGER NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	action     TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_account ON events(account_id);
`

// SQLite is the embedded single-file store.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a sqlite database and ensures the
// schema. WAL mode keeps the HTTP server and CLI from blocking each other.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, NewError(CodeDBConnection, "opening sqlite %s: %v", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewError(CodeDBConnection, "connecting to sqlite %s: %v", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func isSQLiteUnique(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDec(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing stored decimal %q: %w", s, err)
	}
	return d, nil
}

// --- users ---

func (s *SQLite) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, fmtTime(u.CreatedAt))
	if isSQLiteUnique(err) {
		return NewError(CodeAccountExists, "user %s already registered", u.Email)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, NewError(CodeNotFound, "user %s not found", email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("querying user: %w", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// --- accounts ---

func (s *SQLite) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, number, name, broker, type, status, starting_balance, created_at, reset_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Number, a.Name, a.Broker, string(a.Type), string(a.Status),
		a.StartingBalance.String(), fmtTime(a.CreatedAt), fmtTimePtr(a.ResetAt))
	if isSQLiteUnique(err) {
		return NewError(CodeAccountExists, "account number %s already exists", a.Number)
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

const accountCols = `id, user_id, number, name, broker, type, status, starting_balance, created_at, reset_at`

func scanAccount(row interface{ Scan(...any) error }) (model.Account, error) {
	var a model.Account
	var typ, status, balance, created string
	var reset sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.Number, &a.Name, &a.Broker, &typ, &status, &balance, &created, &reset); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	a.Status = model.AccountStatus(status)
	var err error
	if a.StartingBalance, err = parseDec(balance); err != nil {
		return model.Account{}, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return model.Account{}, err
	}
	if a.ResetAt, err = parseTimePtr(reset); err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func (s *SQLite) Account(ctx context.Context, id string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, NewError(CodeNotFound, "account %s not found", id)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

func (s *SQLite) AccountsByUser(ctx context.Context, userID string) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateAccount(ctx context.Context, a model.Account) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET number = ?, name = ?, broker = ?, status = ?, starting_balance = ?, reset_at = ?
		WHERE id = ?`,
		a.Number, a.Name, a.Broker, string(a.Status), a.StartingBalance.String(), fmtTimePtr(a.ResetAt), a.ID)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	return requireRow(res, "account %s", a.ID)
}

func (s *SQLite) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return requireRow(res, "account %s", id)
}

func requireRow(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return NewError(CodeNotFound, format+" not found", args...)
	}
	return nil
}

// --- phases ---

func (s *SQLite) CreatePhase(ctx context.Context, p model.Phase) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO phases (id, account_id, type, profit_target_kind, profit_target_value,
			daily_limit_kind, daily_limit_value, max_limit_kind, max_limit_value,
			drawdown_mode, started_at, ended_at, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, string(p.Type),
		string(p.ProfitTarget.Kind), p.ProfitTarget.Value.String(),
		string(p.DailyLimit.Kind), p.DailyLimit.Value.String(),
		string(p.MaxLimit.Kind), p.MaxLimit.Value.String(),
		string(p.DrawdownMode), fmtTime(p.StartedAt), fmtTimePtr(p.EndedAt), string(p.Outcome))
	if err != nil {
		return fmt.Errorf("inserting phase: %w", err)
	}
	return nil
}

const phaseCols = `id, account_id, type, profit_target_kind, profit_target_value,
	daily_limit_kind, daily_limit_value, max_limit_kind, max_limit_value,
	drawdown_mode, started_at, ended_at, outcome`

func scanPhase(row interface{ Scan(...any) error }) (model.Phase, error) {
	var p model.Phase
	var typ, ptKind, ptVal, dlKind, dlVal, mlKind, mlVal, mode, started, outcome string
	var ended sql.NullString
	if err := row.Scan(&p.ID, &p.AccountID, &typ, &ptKind, &ptVal, &dlKind, &dlVal,
		&mlKind, &mlVal, &mode, &started, &ended, &outcome); err != nil {
		return model.Phase{}, err
	}
	p.Type = model.PhaseType(typ)
	p.DrawdownMode = model.DrawdownMode(mode)
	p.Outcome = model.PhaseOutcome(outcome)
	var err error
	if p.ProfitTarget.Value, err = parseDec(ptVal); err != nil {
		return model.Phase{}, err
	}
	if p.DailyLimit.Value, err = parseDec(dlVal); err != nil {
		return model.Phase{}, err
	}
	if p.MaxLimit.Value, err = parseDec(mlVal); err != nil {
		return model.Phase{}, err
	}
	p.ProfitTarget.Kind = model.LimitKind(ptKind)
	p.DailyLimit.Kind = model.LimitKind(dlKind)
	p.MaxLimit.Kind = model.LimitKind(mlKind)
	if p.StartedAt, err = parseTime(started); err != nil {
		return model.Phase{}, err
	}
	if p.EndedAt, err = parseTimePtr(ended); err != nil {
		return model.Phase{}, err
	}
	return p, nil
}

func (s *SQLite) ActivePhase(ctx context.Context, accountID string) (model.Phase, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+phaseCols+` FROM phases WHERE account_id = ? AND ended_at IS NULL`, accountID)
	p, err := scanPhase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Phase{}, NewError(CodeNotFound, "no active phase for account %s", accountID)
	}
	if err != nil {
		return model.Phase{}, fmt.Errorf("querying active phase: %w", err)
	}
	return p, nil
}

func (s *SQLite) PhasesByAccount(ctx context.Context, accountID string) ([]model.Phase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+phaseCols+` FROM phases WHERE account_id = ? ORDER BY started_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying phases: %w", err)
	}
	defer rows.Close()

	var out []model.Phase
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning phase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdatePhase(ctx context.Context, p model.Phase) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE phases SET ended_at = ?, outcome = ? WHERE id = ?`,
		fmtTimePtr(p.EndedAt), string(p.Outcome), p.ID)
	if err != nil {
		return fmt.Errorf("updating phase: %w", err)
	}
	return requireRow(res, "phase %s", p.ID)
}

// --- trades ---

func (s *SQLite) SaveTrades(ctx context.Context, trades []model.Trade) (int, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, account_id, platform, external_id, dedup_key, instrument, side,
			quantity, entry_price, close_price, entry_time, close_time, pnl, commission, swap,
			tags, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, dedup_key) DO NOTHING`)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	var inserted, duplicates int
	for _, t := range trades {
		var entry any
		if !t.EntryTime.IsZero() {
			entry = fmtTime(t.EntryTime)
		}
		res, err := stmt.ExecContext(ctx,
			t.ID, t.AccountID, t.Platform, t.ExternalID, t.DedupKey(), t.Instrument, string(t.Side),
			t.Quantity.String(), t.EntryPrice.String(), t.ClosePrice.String(),
			entry, fmtTime(t.CloseTime), t.PnL.String(), t.Commission.String(), t.Swap.String(),
			model.JoinTags(t.Tags), t.Notes, fmtTime(t.CreatedAt))
		if err != nil {
			return 0, 0, fmt.Errorf("inserting trade %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, 0, err
		}
		if n == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing trades: %w", err)
	}
	return inserted, duplicates, nil
}

const tradeCols = `id, account_id, platform, external_id, instrument, side, quantity,
	entry_price, close_price, entry_time, close_time, pnl, commission, swap, tags, notes, created_at`

func scanTrade(row interface{ Scan(...any) error }) (model.Trade, error) {
	var t model.Trade
	var side, qty, eprice, cprice, close, pnl, comm, swap, tags, created string
	var entry sql.NullString
	if err := row.Scan(&t.ID, &t.AccountID, &t.Platform, &t.ExternalID, &t.Instrument, &side,
		&qty, &eprice, &cprice, &entry, &close, &pnl, &comm, &swap, &tags, &t.Notes, &created); err != nil {
		return model.Trade{}, err
	}
	t.Side = model.TradeSide(side)
	t.Tags = model.SplitTags(tags)
	var err error
	if t.Quantity, err = parseDec(qty); err != nil {
		return model.Trade{}, err
	}
	if t.EntryPrice, err = parseDec(eprice); err != nil {
		return model.Trade{}, err
	}
	if t.ClosePrice, err = parseDec(cprice); err != nil {
		return model.Trade{}, err
	}
	if t.PnL, err = parseDec(pnl); err != nil {
		return model.Trade{}, err
	}
	if t.Commission, err = parseDec(comm); err != nil {
		return model.Trade{}, err
	}
	if t.Swap, err = parseDec(swap); err != nil {
		return model.Trade{}, err
	}
	if entry.Valid && entry.String != "" {
		if t.EntryTime, err = parseTime(entry.String); err != nil {
			return model.Trade{}, err
		}
	}
	if t.CloseTime, err = parseTime(close); err != nil {
		return model.Trade{}, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return model.Trade{}, err
	}
	return t, nil
}

func (s *SQLite) Trade(ctx context.Context, id string) (model.Trade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE id = ? AND archived = 0`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trade{}, NewError(CodeNotFound, "trade %s not found", id)
	}
	if err != nil {
		return model.Trade{}, fmt.Errorf("querying trade: %w", err)
	}
	return t, nil
}

func (s *SQLite) TradesByAccount(ctx context.Context, accountID string, f TradeFilter) ([]model.Trade, error) {
	q := `SELECT ` + tradeCols + ` FROM trades WHERE account_id = ? AND archived = 0`
	args := []any{accountID}
	if !f.From.IsZero() {
		q += ` AND close_time >= ?`
		args = append(args, fmtTime(f.From))
	}
	if !f.To.IsZero() {
		q += ` AND close_time < ?`
		args = append(args, fmtTime(f.To))
	}
	q += ` ORDER BY close_time, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var out []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateTradeAnnotations(ctx context.Context, id string, tags []string, notes string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trades SET tags = ?, notes = ? WHERE id = ? AND archived = 0`,
		model.JoinTags(tags), notes, id)
	if err != nil {
		return fmt.Errorf("updating annotations: %w", err)
	}
	return requireRow(res, "trade %s", id)
}

func (s *SQLite) ArchiveTrades(ctx context.Context, accountID string) error {
	// Free the dedup keys so a re-import after a reset is not treated as
	// duplicate rows of the archived evaluation.
	_, err := s.db.ExecContext(ctx,
		`UPDATE trades SET archived = 1, dedup_key = id WHERE account_id = ? AND archived = 0`,
		accountID)
	if err != nil {
		return fmt.Errorf("archiving trades: %w", err)
	}
	return nil
}

// --- import batches ---

func (s *SQLite) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, account_id, platform, file_name, rows_total,
			rows_imported, rows_skipped, rows_duplicate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Platform, b.FileName, b.RowsTotal,
		b.RowsImported, b.RowsSkipped, b.RowsDuplicate, fmtTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting import batch: %w", err)
	}
	return nil
}

func (s *SQLite) BatchesByAccount(ctx context.Context, accountID string) ([]model.ImportBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, platform, file_name, rows_total, rows_imported, rows_skipped, rows_duplicate, created_at
		FROM import_batches WHERE account_id = ? ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying import batches: %w", err)
	}
	defer rows.Close()

	var out []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		var created string
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Platform, &b.FileName, &b.RowsTotal,
			&b.RowsImported, &b.RowsSkipped, &b.RowsDuplicate, &created); err != nil {
			return nil, fmt.Errorf("scanning import batch: %w", err)
		}
		if b.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- events ---

func (s *SQLite) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, account_id, action, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.AccountID, string(e.Action), e.Details, fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *SQLite) EventsByAccount(ctx context.Context, accountID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, action, details, created_at FROM events WHERE account_id = ? ORDER BY created_at, id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var action, created string
		if err := rows.Scan(&e.ID, &e.AccountID, &action, &e.Details, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Action = model.EventAction(action)
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
