package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riskbook-dev/riskbook/internal/model"
)

const postgresSchema = `
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
	archived    BOOLEAN NOT NULL DEFAULT FALSE,
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

// Postgres is the shared-install store, backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the given DSN and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, NewError(CodeDBConnection, "parsing postgres dsn: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, NewError(CodeDBConnection, "connecting to postgres: %v", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- users ---

func (s *Postgres) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Email, u.PasswordHash, fmtTime(u.CreatedAt))
	if isPgUnique(err) {
		return NewError(CodeAccountExists, "user %s already registered", u.Email)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	var created string
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *Postgres) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, user_id, number, name, broker, type, status, starting_balance, created_at, reset_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.Number, a.Name, a.Broker, string(a.Type), string(a.Status),
		a.StartingBalance.String(), fmtTime(a.CreatedAt), fmtTimePtr(a.ResetAt))
	if isPgUnique(err) {
		return NewError(CodeAccountExists, "account number %s already exists", a.Number)
	}
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *Postgres) Account(ctx context.Context, id string) (model.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, NewError(CodeNotFound, "account %s not found", id)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

func (s *Postgres) AccountsByUser(ctx context.Context, userID string) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE user_id = $1 ORDER BY created_at, id`, userID)
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

func (s *Postgres) UpdateAccount(ctx context.Context, a model.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts SET number = $1, name = $2, broker = $3, status = $4, starting_balance = $5, reset_at = $6
		WHERE id = $7`,
		a.Number, a.Name, a.Broker, string(a.Status), a.StartingBalance.String(), fmtTimePtr(a.ResetAt), a.ID)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(CodeNotFound, "account %s not found", a.ID)
	}
	return nil
}

func (s *Postgres) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(CodeNotFound, "account %s not found", id)
	}
	return nil
}

// --- phases ---

func (s *Postgres) CreatePhase(ctx context.Context, p model.Phase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO phases (id, account_id, type, profit_target_kind, profit_target_value,
			daily_limit_kind, daily_limit_value, max_limit_kind, max_limit_value,
			drawdown_mode, started_at, ended_at, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
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

func (s *Postgres) ActivePhase(ctx context.Context, accountID string) (model.Phase, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+phaseCols+` FROM phases WHERE account_id = $1 AND ended_at IS NULL`, accountID)
	p, err := scanPhase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Phase{}, NewError(CodeNotFound, "no active phase for account %s", accountID)
	}
	if err != nil {
		return model.Phase{}, fmt.Errorf("querying active phase: %w", err)
	}
	return p, nil
}

func (s *Postgres) PhasesByAccount(ctx context.Context, accountID string) ([]model.Phase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+phaseCols+` FROM phases WHERE account_id = $1 ORDER BY started_at, id`, accountID)
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

func (s *Postgres) UpdatePhase(ctx context.Context, p model.Phase) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE phases SET ended_at = $1, outcome = $2 WHERE id = $3`,
		fmtTimePtr(p.EndedAt), string(p.Outcome), p.ID)
	if err != nil {
		return fmt.Errorf("updating phase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(CodeNotFound, "phase %s not found", p.ID)
	}
	return nil
}

// --- trades ---

func (s *Postgres) SaveTrades(ctx context.Context, trades []model.Trade) (int, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var inserted, duplicates int
	for _, t := range trades {
		var entry any
		if !t.EntryTime.IsZero() {
			entry = fmtTime(t.EntryTime)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO trades (id, account_id, platform, external_id, dedup_key, instrument, side,
				quantity, entry_price, close_price, entry_time, close_time, pnl, commission, swap,
				tags, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (account_id, dedup_key) DO NOTHING`,
			t.ID, t.AccountID, t.Platform, t.ExternalID, t.DedupKey(), t.Instrument, string(t.Side),
			t.Quantity.String(), t.EntryPrice.String(), t.ClosePrice.String(),
			entry, fmtTime(t.CloseTime), t.PnL.String(), t.Commission.String(), t.Swap.String(),
			model.JoinTags(t.Tags), t.Notes, fmtTime(t.CreatedAt))
		if err != nil {
			return 0, 0, fmt.Errorf("inserting trade %s: %w", t.ID, err)
		}
		if tag.RowsAffected() == 0 {
			duplicates++
		} else {
			inserted++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("committing trades: %w", err)
	}
	return inserted, duplicates, nil
}

func (s *Postgres) Trade(ctx context.Context, id string) (model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE id = $1 AND NOT archived`, id)
	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Trade{}, NewError(CodeNotFound, "trade %s not found", id)
	}
	if err != nil {
		return model.Trade{}, fmt.Errorf("querying trade: %w", err)
	}
	return t, nil
}

func (s *Postgres) TradesByAccount(ctx context.Context, accountID string, f TradeFilter) ([]model.Trade, error) {
	q := `SELECT ` + tradeCols + ` FROM trades WHERE account_id = $1 AND NOT archived`
	args := []any{accountID}
	if !f.From.IsZero() {
		args = append(args, fmtTime(f.From))
		q += fmt.Sprintf(` AND close_time >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, fmtTime(f.To))
		q += fmt.Sprintf(` AND close_time < $%d`, len(args))
	}
	q += ` ORDER BY close_time, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
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

func (s *Postgres) UpdateTradeAnnotations(ctx context.Context, id string, tags []string, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET tags = $1, notes = $2 WHERE id = $3 AND NOT archived`,
		model.JoinTags(tags), notes, id)
	if err != nil {
		return fmt.Errorf("updating annotations: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(CodeNotFound, "trade %s not found", id)
	}
	return nil
}

func (s *Postgres) ArchiveTrades(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE trades SET archived = TRUE, dedup_key = id WHERE account_id = $1 AND NOT archived`,
		accountID)
	if err != nil {
		return fmt.Errorf("archiving trades: %w", err)
	}
	return nil
}

// --- import batches ---

func (s *Postgres) CreateBatch(ctx context.Context, b model.ImportBatch) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_batches (id, account_id, platform, file_name, rows_total,
			rows_imported, rows_skipped, rows_duplicate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.AccountID, b.Platform, b.FileName, b.RowsTotal,
		b.RowsImported, b.RowsSkipped, b.RowsDuplicate, fmtTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting import batch: %w", err)
	}
	return nil
}

func (s *Postgres) BatchesByAccount(ctx context.Context, accountID string) ([]model.ImportBatch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, platform, file_name, rows_total, rows_imported, rows_skipped, rows_duplicate, created_at
		FROM import_batches WHERE account_id = $1 ORDER BY created_at, id`, accountID)
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

func (s *Postgres) CreateEvent(ctx context.Context, e model.Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (id, account_id, action, details, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.AccountID, string(e.Action), e.Details, fmtTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

func (s *Postgres) EventsByAccount(ctx context.Context, accountID string) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, account_id, action, details, created_at FROM events WHERE account_id = $1 ORDER BY created_at, id`,
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
