package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TargetType mirrors the four sell-target kinds.
type TargetType string

const (
	TargetPctGain      TargetType = "pct_gain"
	TargetPrice        TargetType = "price"
	TargetMcap         TargetType = "mcap"
	TargetTrailingStop TargetType = "trailing_stop"
)

// TargetStatus tracks the sell-target state machine:
// pending -> triggered -> executed, or pending -> cancelled.
type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"
	TargetTriggered TargetStatus = "triggered"
	TargetExecuted  TargetStatus = "executed"
	TargetCancelled TargetStatus = "cancelled"
)

type SellTarget struct {
	ID           uuid.UUID
	Mint         string
	Symbol       string
	Type         TargetType
	TargetValue  decimal.Decimal
	SellAmount   string // "all", "N%", or "USD:X"
	EntryPrice   decimal.Decimal
	PeakValue    *decimal.Decimal
	Status       TargetStatus
	TriggerPrice *decimal.Decimal
	TxSignature  *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InsertTarget creates a new pending sell target. Trailing-stop targets
// seed PeakValue to the entry price so the first Tick has a baseline to
// compare against.
func (l *Ledger) InsertTarget(ctx context.Context, t *SellTarget) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Status = TargetPending

	if t.Type == TargetTrailingStop && t.PeakValue == nil {
		peak := t.EntryPrice
		t.PeakValue = &peak
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO sell_targets (id, mint, symbol, target_type, target_value, sell_amount, entry_price, peak_value, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Mint, t.Symbol, string(t.Type), t.TargetValue.String(), t.SellAmount, t.EntryPrice.String(),
		decimalPtrString(t.PeakValue), string(t.Status), now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("ledger: insert target: %w", err)
	}
	return nil
}

// ActiveTargets returns every target still pending, most recent first.
func (l *Ledger) ActiveTargets(ctx context.Context) ([]*SellTarget, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, mint, symbol, target_type, target_value, sell_amount, entry_price, peak_value, status, trigger_price, tx_signature, created_at, updated_at
		FROM sell_targets WHERE status = 'pending' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTargets(rows)
}

// AllTargets returns every target regardless of status.
func (l *Ledger) AllTargets(ctx context.Context) ([]*SellTarget, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, mint, symbol, target_type, target_value, sell_amount, entry_price, peak_value, status, trigger_price, tx_signature, created_at, updated_at
		FROM sell_targets ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTargets(rows)
}

func scanTargets(rows *sql.Rows) ([]*SellTarget, error) {
	var out []*SellTarget
	for rows.Next() {
		t, err := scanTargetRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTargetRow(rows *sql.Rows) (*SellTarget, error) {
	var t SellTarget
	var id, targetType, targetValue, entryPrice, status string
	var peakValue, triggerPrice, txSig sql.NullString
	var created, updated int64
	if err := rows.Scan(&id, &t.Mint, &t.Symbol, &targetType, &targetValue, &t.SellAmount, &entryPrice, &peakValue, &status, &triggerPrice, &txSig, &created, &updated); err != nil {
		return nil, err
	}
	t.ID, _ = uuid.Parse(id)
	t.Type = TargetType(targetType)
	t.TargetValue, _ = decimal.NewFromString(targetValue)
	t.EntryPrice, _ = decimal.NewFromString(entryPrice)
	t.Status = TargetStatus(status)
	t.CreatedAt = time.Unix(created, 0).UTC()
	t.UpdatedAt = time.Unix(updated, 0).UTC()
	if peakValue.Valid {
		d, _ := decimal.NewFromString(peakValue.String)
		t.PeakValue = &d
	}
	if triggerPrice.Valid {
		d, _ := decimal.NewFromString(triggerPrice.String)
		t.TriggerPrice = &d
	}
	if txSig.Valid {
		t.TxSignature = &txSig.String
	}
	return &t, nil
}

// GetTarget fetches one target by ID.
func (l *Ledger) GetTarget(ctx context.Context, id uuid.UUID) (*SellTarget, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, mint, symbol, target_type, target_value, sell_amount, entry_price, peak_value, status, trigger_price, tx_signature, created_at, updated_at
		FROM sell_targets WHERE id = ?`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	targets, err := scanTargets(rows)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return targets[0], nil
}

// CancelTarget moves a pending target to cancelled.
func (l *Ledger) CancelTarget(ctx context.Context, id uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `UPDATE sell_targets SET status = 'cancelled', updated_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().Unix(), id.String())
	return err
}

// BumpTrailingPeak raises peak_value to max(current peak, price), for
// trailing_stop targets only. Mirrors the SQL-side MAX/COALESCE idiom so
// concurrent ticks never race each other down.
func (l *Ledger) BumpTrailingPeak(ctx context.Context, id uuid.UUID, price decimal.Decimal) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE sell_targets
		SET peak_value = CASE
			WHEN peak_value IS NULL OR CAST(peak_value AS REAL) < ? THEN ?
			ELSE peak_value
		END,
		updated_at = ?
		WHERE id = ? AND target_type = 'trailing_stop'`,
		price.InexactFloat64(), price.String(), time.Now().Unix(), id.String())
	return err
}

// MarkTriggered transitions pending -> triggered, recording the price that
// tripped the condition. Conditional on status = 'pending' so a target
// can't be triggered twice.
func (l *Ledger) MarkTriggered(ctx context.Context, id uuid.UUID, triggerPrice decimal.Decimal) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		UPDATE sell_targets SET status = 'triggered', trigger_price = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		triggerPrice.String(), time.Now().Unix(), id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkTargetExecuted transitions triggered -> executed once the synthesized sell
// has actually landed.
func (l *Ledger) MarkTargetExecuted(ctx context.Context, id uuid.UUID, txSignature string) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE sell_targets SET status = 'executed', tx_signature = ?, updated_at = ?
		WHERE id = ? AND status = 'triggered'`,
		txSignature, time.Now().Unix(), id.String())
	return err
}

func decimalPtrString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}
