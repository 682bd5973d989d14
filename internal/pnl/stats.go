package pnl

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Stats summarizes closed-position performance: a mint counts as closed
// the moment any sell exists against it, regardless of remaining
// holdings (spec's "counts closed positions (any sells exist)").
type Stats struct {
	ClosedPositions int
	Wins            int
	Losses          int
	WinRatePct      decimal.Decimal
	AvgGainUSD      decimal.Decimal
	AvgLossUSD      decimal.Decimal
	LargestWinUSD   decimal.Decimal
	LargestLossUSD  decimal.Decimal
}

// Stats groups all trades by mint and reports closed-position
// performance across them.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	trades, err := e.ledger.Trades(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("pnl: load trades: %w", err)
	}

	s := &Stats{
		WinRatePct:     decimal.Zero,
		AvgGainUSD:     decimal.Zero,
		AvgLossUSD:     decimal.Zero,
		LargestWinUSD:  decimal.Zero,
		LargestLossUSD: decimal.Zero,
	}

	var gains, losses []decimal.Decimal
	for _, mint := range uniqueMints(trades) {
		tok, err := e.PerToken(ctx, mint)
		if err != nil {
			return nil, err
		}
		if tok.SoldTokens.LessThanOrEqual(decimal.Zero) {
			continue // no sells yet: not a closed position
		}
		s.ClosedPositions++

		switch {
		case tok.Realized.GreaterThan(decimal.Zero):
			s.Wins++
			gains = append(gains, tok.Realized)
		case tok.Realized.LessThan(decimal.Zero):
			s.Losses++
			losses = append(losses, tok.Realized)
		}
	}

	if s.ClosedPositions > 0 {
		s.WinRatePct = decimal.NewFromInt(int64(s.Wins)).Div(decimal.NewFromInt(int64(s.ClosedPositions))).Mul(decimal.NewFromInt(100))
	}
	if len(gains) > 0 {
		s.AvgGainUSD = sumDecimals(gains).Div(decimal.NewFromInt(int64(len(gains))))
		s.LargestWinUSD = maxDecimal(gains)
	}
	if len(losses) > 0 {
		s.AvgLossUSD = sumDecimals(losses).Div(decimal.NewFromInt(int64(len(losses))))
		s.LargestLossUSD = minDecimal(losses)
	}

	return s, nil
}

func sumDecimals(ds []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

func maxDecimal(ds []decimal.Decimal) decimal.Decimal {
	max := ds[0]
	for _, d := range ds[1:] {
		if d.GreaterThan(max) {
			max = d
		}
	}
	return max
}

func minDecimal(ds []decimal.Decimal) decimal.Decimal {
	min := ds[0]
	for _, d := range ds[1:] {
		if d.LessThan(min) {
			min = d
		}
	}
	return min
}
