package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Intent is a quote awaiting confirmation: the two-phase quote/confirm
// record. Created by QuoteEngine, consumed exactly once by ExecEngine.
type Intent struct {
	ID           uuid.UUID
	FromMint     string
	ToMint       string
	Amount       string
	SlippageBps  int
	OutAmountEst string
	UnsignedTx   string
	RequestID    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	Executed     bool
}

// CreateIntentParams is the input to IntentStore.Create.
type CreateIntentParams struct {
	FromMint     string
	ToMint       string
	Amount       string
	SlippageBps  int
	OutAmountEst string
	UnsignedTx   string
	RequestID    string
}

// IntentStore is the distinct contract over the intents table: create,
// fetch-if-live, and a single-writer mark-executed.
type IntentStore interface {
	Create(ctx context.Context, in CreateIntentParams) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*Intent, error)
	MarkExecuted(ctx context.Context, id uuid.UUID) (bool, error)
	ListPending(ctx context.Context) ([]*Intent, error)
}

// intentStore implements IntentStore against the same database as the
// rest of the ledger.
type intentStore struct{ l *Ledger }

// Intents returns the IntentStore view of this ledger.
func (l *Ledger) Intents() IntentStore { return &intentStore{l: l} }

// cleanupExpired deletes intents whose TTL has elapsed, run opportunistically
// before create/get/list, matching the Python original's eager-cleanup
// pattern rather than a separate background sweep.
func (s *intentStore) cleanupExpired(ctx context.Context) error {
	_, err := s.l.db.ExecContext(ctx, `DELETE FROM intents WHERE expires_at < ?`, time.Now().Unix())
	return err
}

func (s *intentStore) Create(ctx context.Context, in CreateIntentParams) (uuid.UUID, error) {
	if err := s.cleanupExpired(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("ledger: cleanup expired intents: %w", err)
	}

	id := uuid.New()
	now := time.Now().UTC()
	expires := now.Add(IntentTTL)

	_, err := s.l.db.ExecContext(ctx, `
		INSERT INTO intents (id, from_mint, to_mint, amount, slippage_bps, out_amount_est, unsigned_tx, request_id, created_at, expires_at, executed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		id.String(), in.FromMint, in.ToMint, in.Amount, in.SlippageBps, in.OutAmountEst, in.UnsignedTx, in.RequestID,
		now.Unix(), expires.Unix())
	if err != nil {
		return uuid.Nil, fmt.Errorf("ledger: create intent: %w", err)
	}
	return id, nil
}

func (s *intentStore) Get(ctx context.Context, id uuid.UUID) (*Intent, error) {
	if err := s.cleanupExpired(ctx); err != nil {
		return nil, err
	}

	row := s.l.db.QueryRowContext(ctx, `
		SELECT id, from_mint, to_mint, amount, slippage_bps, out_amount_est, unsigned_tx, request_id, created_at, expires_at, executed
		FROM intents WHERE id = ? AND expires_at > ?`, id.String(), time.Now().Unix())
	in, err := scanIntent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return in, err
}

func scanIntent(row *sql.Row) (*Intent, error) {
	var in Intent
	var id string
	var created, expires int64
	var executed int
	if err := row.Scan(&id, &in.FromMint, &in.ToMint, &in.Amount, &in.SlippageBps, &in.OutAmountEst, &in.UnsignedTx,
		&in.RequestID, &created, &expires, &executed); err != nil {
		return nil, err
	}
	in.ID, _ = uuid.Parse(id)
	in.CreatedAt = time.Unix(created, 0).UTC()
	in.ExpiresAt = time.Unix(expires, 0).UTC()
	in.Executed = executed != 0
	return &in, nil
}

// MarkExecuted conditionally flips executed=1 only if it was still 0,
// reporting whether this call was the one that made the flip. This is the
// replay-prevention guarantee: two concurrent confirms on the same intent
// can never both succeed.
func (s *intentStore) MarkExecuted(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.l.db.ExecContext(ctx, `UPDATE intents SET executed = 1 WHERE id = ? AND executed = 0`, id.String())
	if err != nil {
		return false, fmt.Errorf("ledger: mark intent executed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *intentStore) ListPending(ctx context.Context) ([]*Intent, error) {
	if err := s.cleanupExpired(ctx); err != nil {
		return nil, err
	}
	rows, err := s.l.db.QueryContext(ctx, `
		SELECT id, from_mint, to_mint, amount, slippage_bps, out_amount_est, unsigned_tx, request_id, created_at, expires_at, executed
		FROM intents WHERE expires_at > ? AND executed = 0 ORDER BY created_at DESC`, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Intent
	for rows.Next() {
		var in Intent
		var id string
		var created, expires int64
		var executed int
		if err := rows.Scan(&id, &in.FromMint, &in.ToMint, &in.Amount, &in.SlippageBps, &in.OutAmountEst, &in.UnsignedTx,
			&in.RequestID, &created, &expires, &executed); err != nil {
			return nil, err
		}
		in.ID, _ = uuid.Parse(id)
		in.CreatedAt = time.Unix(created, 0).UTC()
		in.ExpiresAt = time.Unix(expires, 0).UTC()
		in.Executed = executed != 0
		out = append(out, &in)
	}
	return out, rows.Err()
}

// TimeRemaining returns the seconds left before the intent expires,
// floored at zero.
func TimeRemaining(in *Intent) int {
	remaining := int(time.Until(in.ExpiresAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
