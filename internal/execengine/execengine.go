// Package execengine is the ExecEngine component: confirms a previously
// quoted Intent by signing its unsigned transaction and submitting it
// through the aggregator, then records exactly one Trade row.
package execengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/token"
)

var (
	ErrIntentNotFound        = errors.New("execengine: intent not found or expired")
	ErrIntentAlreadyExecuted = errors.New("execengine: intent already executed")
)

// Wallet is the signing capability ExecEngine needs. Satisfied by
// *vault.Wallet.
type Wallet interface {
	Sign(unsignedTxBase64 string) (string, error)
}

// Dependencies wires ExecEngine to the external clients and storage it
// needs. All fields are required.
type Dependencies struct {
	Wallet  Wallet
	Jupiter *jupiter.Client
	Prices  *jupiterprice.Client
	Intents ledger.IntentStore
	Ledger  *ledger.Ledger
}

// Engine is the ExecEngine.
type Engine struct {
	deps Dependencies
}

// NewEngine builds an ExecEngine from its dependencies.
func NewEngine(deps Dependencies) *Engine {
	return &Engine{deps: deps}
}

// Result is the outcome of confirming an intent.
type Result struct {
	Success        bool
	Signature      string
	Error          string
	FromMint       string
	ToMint         string
	InAmount       string
	OutAmountActual string
	ExplorerURL    string
}

// Confirm signs and submits the unsigned transaction attached to
// intentID, marks the intent executed as soon as the submit call returns
// (landed or not) so it can never be replayed, and records a trade on
// success. A signing failure returns before anything is submitted or
// marked.
func (e *Engine) Confirm(ctx context.Context, intentID uuid.UUID) (*Result, error) {
	intent, err := e.deps.Intents.Get(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("execengine: load intent: %w", err)
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}
	if intent.Executed {
		return nil, ErrIntentAlreadyExecuted
	}

	signedTx, err := e.deps.Wallet.Sign(intent.UnsignedTx)
	if err != nil {
		return nil, fmt.Errorf("execengine: sign transaction: %w", err)
	}

	execResult, execErr := e.deps.Jupiter.Execute(ctx, signedTx, intent.RequestID)

	// Mark executed unconditionally, before interpreting the outcome: a
	// quote is single-use the instant it's been submitted, landed or not.
	if _, merr := e.deps.Intents.MarkExecuted(ctx, intentID); merr != nil {
		log.Error().Err(merr).Str("intent_id", intentID.String()).Msg("execengine: failed to mark intent executed")
	}

	if execErr != nil {
		return nil, fmt.Errorf("execengine: execute: %w", execErr)
	}

	if !execResult.Succeeded() {
		return &Result{
			Success:   false,
			Error:     execResult.Error,
			Signature: execResult.Signature,
			FromMint:  intent.FromMint,
			ToMint:    intent.ToMint,
			InAmount:  intent.Amount,
		}, nil
	}

	outDecimals := token.Decimals(intent.ToMint)
	outAtomic, _ := decimal.NewFromString(execResult.OutputAmountResult)
	outAmountUI := outAtomic.Div(decimal.New(1, int32(outDecimals)))

	if err := e.recordTrade(ctx, intent, execResult, outAmountUI); err != nil {
		log.Error().Err(err).Str("intent_id", intentID.String()).Msg("execengine: failed to record trade, execution still reported")
	}

	return &Result{
		Success:         true,
		Signature:       execResult.Signature,
		FromMint:        intent.FromMint,
		ToMint:          intent.ToMint,
		InAmount:        intent.Amount,
		OutAmountActual: outAmountUI.String(),
		ExplorerURL:     "https://solscan.io/tx/" + execResult.Signature,
	}, nil
}

// recordTrade determines buy/sell direction from which side of the swap
// was SOL, values the trade in USD, and writes exactly one ledger row.
//
// This prefers the aggregator's own reported output amount over a live
// SOL-price approximation: outputAmountResult already reflects what
// actually landed on chain, so it survives slippage and price drift
// between quote and confirm in a way a fresh SOL price lookup cannot.
func (e *Engine) recordTrade(ctx context.Context, intent *ledger.Intent, execResult *jupiter.ExecuteResult, outAmountUI decimal.Decimal) error {
	var action, tradeMint string
	var amountTokens, amountUSD decimal.Decimal

	inAmount, _ := decimal.NewFromString(intent.Amount)

	if intent.FromMint == token.SymbolToMint["SOL"] {
		action = "buy"
		tradeMint = intent.ToMint
		amountTokens = outAmountUI
		amountUSD = e.valueInUSD(ctx, intent.ToMint, outAmountUI, inAmount)
	} else {
		action = "sell"
		tradeMint = intent.FromMint
		amountTokens = inAmount
		amountUSD = e.valueInUSD(ctx, intent.ToMint, outAmountUI, outAmountUI)
	}

	pricePerToken := decimal.Zero
	if amountTokens.GreaterThan(decimal.Zero) {
		pricePerToken = amountUSD.Div(amountTokens)
	}

	return e.deps.Ledger.InsertTrade(ctx, &ledger.Trade{
		Action:        action,
		Mint:          tradeMint,
		Symbol:        token.SymbolForMint(tradeMint),
		AmountTokens:  amountTokens,
		AmountUSD:     amountUSD,
		PricePerToken: pricePerToken,
		TxSignature:   execResult.Signature,
		Timestamp:     time.Now().UTC(),
	})
}

// valueInUSD values the trade in USD. outMint/outAmountUI is the swap's
// realized output leg (the token bought on a buy, the SOL received on a
// sell); solAmount is the SOL side of the swap (SOL spent on a buy, SOL
// received on a sell). Falls back to solAmount times a live SOL price
// only when the output leg can't be priced.
func (e *Engine) valueInUSD(ctx context.Context, outMint string, outAmountUI, solAmount decimal.Decimal) decimal.Decimal {
	if price, ok, err := e.deps.Prices.GetPrice(ctx, outMint); err == nil && ok && outAmountUI.GreaterThan(decimal.Zero) {
		return outAmountUI.Mul(price)
	}

	solPrice, ok, err := e.deps.Prices.GetPrice(ctx, token.SymbolToMint["SOL"])
	if err != nil || !ok {
		log.Warn().Err(err).Msg("execengine: could not price trade, recording $0")
		return decimal.Zero
	}
	return solAmount.Mul(solPrice)
}
