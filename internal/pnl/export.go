package pnl

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"slopesniper/internal/ledger"
)

// ExportFormat selects Export's output encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// exportRow is the canonical, deterministic shape trade history is
// exported as — fixed field order so a round trip through reparse loses
// nothing.
type exportRow struct {
	Timestamp     int64  `json:"ts"`
	Action        string `json:"action"`
	Mint          string `json:"mint"`
	Symbol        string `json:"symbol"`
	AmountTokens  string `json:"amount_tokens"`
	AmountUSD     string `json:"amount_usd"`
	PricePerToken string `json:"price_per_token"`
	TxSignature   string `json:"tx_signature"`
	Notes         string `json:"notes"`
}

var csvColumns = []string{
	"ts", "action", "mint", "symbol", "amount_tokens", "amount_usd", "price_per_token", "tx_signature", "notes",
}

// Export dumps the full trade history in the requested format.
func (e *Engine) Export(ctx context.Context, format ExportFormat) ([]byte, error) {
	trades, err := e.ledger.Trades(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("pnl: load trades: %w", err)
	}

	rows := make([]exportRow, len(trades))
	for i, t := range trades {
		rows[i] = toExportRow(t)
	}

	switch format {
	case ExportJSON:
		return json.MarshalIndent(rows, "", "  ")
	case ExportCSV:
		return exportCSV(rows)
	default:
		return nil, fmt.Errorf("pnl: unknown export format %q", format)
	}
}

func toExportRow(t *ledger.Trade) exportRow {
	return exportRow{
		Timestamp:     t.Timestamp.Unix(),
		Action:        t.Action,
		Mint:          t.Mint,
		Symbol:        t.Symbol,
		AmountTokens:  t.AmountTokens.String(),
		AmountUSD:     t.AmountUSD.String(),
		PricePerToken: t.PricePerToken.String(),
		TxSignature:   t.TxSignature,
		Notes:         t.Notes,
	}
}

func exportCSV(rows []exportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvColumns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Action, r.Mint, r.Symbol, r.AmountTokens, r.AmountUSD, r.PricePerToken, r.TxSignature, r.Notes,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
