// Package ledger is the persistence layer for strategies, trade history,
// PnL snapshots, the watchlist, sell targets, and quote intents. One
// modernc.org/sqlite database, WAL mode, short-lived transactions per
// write.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// IntentTTL is the lifetime of a quote before it expires unconfirmed.
const IntentTTL = 120 * time.Second

// Ledger wraps the sqlite database backing the whole trading core.
type Ledger struct {
	db *sql.DB
}

// Open creates/migrates the database at path.
func Open(path string) (*Ledger, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}

	log.Info().Str("path", path).Msg("ledger: database ready")
	return &Ledger{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS strategies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		max_trade_usd TEXT NOT NULL,
		auto_execute_under_usd TEXT NOT NULL,
		max_loss_pct TEXT NOT NULL,
		slippage_bps INTEGER NOT NULL,
		require_rugcheck INTEGER NOT NULL,
		allowed_tokens TEXT NOT NULL DEFAULT '[]',
		is_active INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trade_history (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		mint TEXT NOT NULL,
		symbol TEXT NOT NULL,
		amount_tokens TEXT NOT NULL,
		amount_usd TEXT NOT NULL,
		price_per_token TEXT NOT NULL,
		tx_signature TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pnl_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trigger TEXT NOT NULL,
		baseline_usd TEXT NOT NULL,
		realized_usd TEXT NOT NULL,
		unrealized_usd TEXT NOT NULL,
		total_usd TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watchlist (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mint TEXT NOT NULL UNIQUE,
		symbol TEXT NOT NULL,
		alert_condition TEXT NOT NULL DEFAULT '',
		added_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sell_targets (
		id TEXT PRIMARY KEY,
		mint TEXT NOT NULL,
		symbol TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_value TEXT NOT NULL,
		sell_amount TEXT NOT NULL,
		entry_price TEXT NOT NULL,
		peak_value TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		trigger_price TEXT,
		tx_signature TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS intents (
		id TEXT PRIMARY KEY,
		from_mint TEXT NOT NULL,
		to_mint TEXT NOT NULL,
		amount TEXT NOT NULL,
		slippage_bps INTEGER NOT NULL,
		out_amount_est TEXT NOT NULL,
		unsigned_tx TEXT NOT NULL,
		request_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		executed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_trade_history_timestamp ON trade_history(timestamp);
	CREATE INDEX IF NOT EXISTS idx_sell_targets_status ON sell_targets(status);
	CREATE INDEX IF NOT EXISTS idx_intents_expires_at ON intents(expires_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }

// ---------------------------------------------------------------------
// Strategies

type Strategy struct {
	ID                  int64
	Name                string
	Description         string
	MaxTradeUSD         decimal.Decimal
	AutoExecuteUnderUSD decimal.Decimal
	MaxLossPct          decimal.Decimal
	SlippageBps         int
	RequireRugcheck     bool
	AllowedTokens       []string
	IsActive            bool
	CreatedAt           time.Time
}

// UpsertStrategy inserts a new strategy row (strategies are immutable
// presets plus user-defined rows; there is no update-in-place).
func (l *Ledger) UpsertStrategy(ctx context.Context, s *Strategy) (int64, error) {
	allowed := strings.Join(s.AllowedTokens, ",")
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO strategies (name, description, max_trade_usd, auto_execute_under_usd, max_loss_pct, slippage_bps, require_rugcheck, allowed_tokens, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		s.Name, s.Description, s.MaxTradeUSD.String(), s.AutoExecuteUnderUSD.String(), s.MaxLossPct.String(),
		s.SlippageBps, boolToInt(s.RequireRugcheck), allowed, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("ledger: insert strategy: %w", err)
	}
	return res.LastInsertId()
}

// SetActiveStrategy clears is_active on every row and sets it on id, in one
// transaction, preserving the single-active-strategy invariant.
func (l *Ledger) SetActiveStrategy(ctx context.Context, id int64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE strategies SET is_active = 0`); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE strategies SET is_active = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("ledger: strategy %d not found", id)
	}
	return tx.Commit()
}

// ActiveStrategy returns the currently active strategy, if any.
func (l *Ledger) ActiveStrategy(ctx context.Context) (*Strategy, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, name, description, max_trade_usd, auto_execute_under_usd, max_loss_pct, slippage_bps, require_rugcheck, allowed_tokens, is_active, created_at
		FROM strategies WHERE is_active = 1 LIMIT 1`)
	return scanStrategy(row)
}

func scanStrategy(row *sql.Row) (*Strategy, error) {
	var s Strategy
	var maxTrade, autoExec, maxLoss, allowed string
	var active int
	var created int64
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &maxTrade, &autoExec, &maxLoss, &s.SlippageBps, &s.RequireRugcheck, &allowed, &active, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.MaxTradeUSD, _ = decimal.NewFromString(maxTrade)
	s.AutoExecuteUnderUSD, _ = decimal.NewFromString(autoExec)
	s.MaxLossPct, _ = decimal.NewFromString(maxLoss)
	s.IsActive = active != 0
	s.CreatedAt = time.Unix(created, 0).UTC()
	if allowed != "" {
		s.AllowedTokens = strings.Split(allowed, ",")
	}
	return &s, nil
}

// ListStrategies returns every stored strategy, newest first.
func (l *Ledger) ListStrategies(ctx context.Context) ([]*Strategy, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, description, max_trade_usd, auto_execute_under_usd, max_loss_pct, slippage_bps, require_rugcheck, allowed_tokens, is_active, created_at
		FROM strategies ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Strategy
	for rows.Next() {
		var s Strategy
		var maxTrade, autoExec, maxLoss, allowed string
		var active int
		var created int64
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &maxTrade, &autoExec, &maxLoss, &s.SlippageBps, &s.RequireRugcheck, &allowed, &active, &created); err != nil {
			return nil, err
		}
		s.MaxTradeUSD, _ = decimal.NewFromString(maxTrade)
		s.AutoExecuteUnderUSD, _ = decimal.NewFromString(autoExec)
		s.MaxLossPct, _ = decimal.NewFromString(maxLoss)
		s.IsActive = active != 0
		s.CreatedAt = time.Unix(created, 0).UTC()
		if allowed != "" {
			s.AllowedTokens = strings.Split(allowed, ",")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------
// Trade history

type Trade struct {
	ID            uuid.UUID
	Action        string // "buy" or "sell"
	Mint          string
	Symbol        string
	AmountTokens  decimal.Decimal
	AmountUSD     decimal.Decimal
	PricePerToken decimal.Decimal
	TxSignature   string
	Notes         string
	Timestamp     time.Time
}

// InsertTrade records one completed buy/sell.
func (l *Ledger) InsertTrade(ctx context.Context, t *Trade) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO trade_history (id, action, mint, symbol, amount_tokens, amount_usd, price_per_token, tx_signature, notes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Action, t.Mint, t.Symbol, t.AmountTokens.String(), t.AmountUSD.String(),
		t.PricePerToken.String(), t.TxSignature, t.Notes, t.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("ledger: insert trade: %w", err)
	}
	return nil
}

// Trades returns the most recent trades, newest first, optionally filtered
// to one mint.
func (l *Ledger) Trades(ctx context.Context, mint string, limit int) ([]*Trade, error) {
	query := `SELECT id, action, mint, symbol, amount_tokens, amount_usd, price_per_token, tx_signature, notes, timestamp FROM trade_history`
	args := []any{}
	if mint != "" {
		query += ` WHERE mint = ?`
		args = append(args, mint)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t, err := scanTradeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTradeRows(rows *sql.Rows) (*Trade, error) {
	var t Trade
	var id, amountTokens, amountUSD, price string
	var ts int64
	if err := rows.Scan(&id, &t.Action, &t.Mint, &t.Symbol, &amountTokens, &amountUSD, &price, &t.TxSignature, &t.Notes, &ts); err != nil {
		return nil, err
	}
	t.ID, _ = uuid.Parse(id)
	t.AmountTokens, _ = decimal.NewFromString(amountTokens)
	t.AmountUSD, _ = decimal.NewFromString(amountUSD)
	t.PricePerToken, _ = decimal.NewFromString(price)
	t.Timestamp = time.Unix(ts, 0).UTC()
	return &t, nil
}

// ---------------------------------------------------------------------
// PnL snapshots

type Snapshot struct {
	ID            int64
	Trigger       string
	BaselineUSD   decimal.Decimal
	RealizedUSD   decimal.Decimal
	UnrealizedUSD decimal.Decimal
	TotalUSD      decimal.Decimal
	Timestamp     time.Time
}

func (l *Ledger) InsertSnapshot(ctx context.Context, s *Snapshot) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO pnl_snapshots (trigger, baseline_usd, realized_usd, unrealized_usd, total_usd, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.Trigger, s.BaselineUSD.String(), s.RealizedUSD.String(), s.UnrealizedUSD.String(), s.TotalUSD.String(), time.Now().Unix())
	return err
}

// FirstSnapshot returns the earliest snapshot recorded for trigger, or
// nil if none exists. Used to find the portfolio baseline, which is
// always the first "init"-trigger row ever written.
func (l *Ledger) FirstSnapshot(ctx context.Context, trigger string) (*Snapshot, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, trigger, baseline_usd, realized_usd, unrealized_usd, total_usd, timestamp
		FROM pnl_snapshots WHERE trigger = ? ORDER BY timestamp ASC LIMIT 1`, trigger)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ClearSnapshots deletes every recorded snapshot, so the next Init call
// re-establishes the baseline from scratch. Trade history is untouched —
// trades are append-only per the ledger's invariants.
func (l *Ledger) ClearSnapshots(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM pnl_snapshots`)
	return err
}

// Snapshots returns recorded snapshots newest first, optionally capped
// by limit (0 means unlimited).
func (l *Ledger) Snapshots(ctx context.Context, limit int) ([]*Snapshot, error) {
	query := `SELECT id, trigger, baseline_usd, realized_usd, unrealized_usd, total_usd, timestamp FROM pnl_snapshots ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var s Snapshot
		var ts int64
		var baseline, realized, unrealized, total string
		if err := rows.Scan(&s.ID, &s.Trigger, &baseline, &realized, &unrealized, &total, &ts); err != nil {
			return nil, err
		}
		s.BaselineUSD, _ = decimal.NewFromString(baseline)
		s.RealizedUSD, _ = decimal.NewFromString(realized)
		s.UnrealizedUSD, _ = decimal.NewFromString(unrealized)
		s.TotalUSD, _ = decimal.NewFromString(total)
		s.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, &s)
	}
	return out, rows.Err()
}

func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var s Snapshot
	var ts int64
	var baseline, realized, unrealized, total string
	if err := row.Scan(&s.ID, &s.Trigger, &baseline, &realized, &unrealized, &total, &ts); err != nil {
		return nil, err
	}
	s.BaselineUSD, _ = decimal.NewFromString(baseline)
	s.RealizedUSD, _ = decimal.NewFromString(realized)
	s.UnrealizedUSD, _ = decimal.NewFromString(unrealized)
	s.TotalUSD, _ = decimal.NewFromString(total)
	s.Timestamp = time.Unix(ts, 0).UTC()
	return &s, nil
}

// ---------------------------------------------------------------------
// Watchlist

type WatchlistEntry struct {
	ID             int64
	Mint           string
	Symbol         string
	AlertCondition string
	AddedAt        time.Time
}

func (l *Ledger) UpsertWatchlistEntry(ctx context.Context, e *WatchlistEntry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO watchlist (mint, symbol, alert_condition, added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(mint) DO UPDATE SET symbol = excluded.symbol, alert_condition = excluded.alert_condition`,
		e.Mint, e.Symbol, e.AlertCondition, time.Now().Unix())
	return err
}

func (l *Ledger) RemoveWatchlistEntry(ctx context.Context, mint string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM watchlist WHERE mint = ?`, mint)
	return err
}

func (l *Ledger) Watchlist(ctx context.Context) ([]*WatchlistEntry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, mint, symbol, alert_condition, added_at FROM watchlist ORDER BY added_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WatchlistEntry
	for rows.Next() {
		var e WatchlistEntry
		var added int64
		if err := rows.Scan(&e.ID, &e.Mint, &e.Symbol, &e.AlertCondition, &added); err != nil {
			return nil, err
		}
		e.AddedAt = time.Unix(added, 0).UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
