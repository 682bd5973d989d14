// Package policy is the PolicyEngine component: a pure, deterministic
// function over a proposed trade and the current safety configuration.
// No I/O, no globals — callers supply rugcheck results and config.
package policy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// KnownSafeMints skips the rugcheck gate for well-established tokens.
var KnownSafeMints = map[string]bool{
	"So11111111111111111111111111111111111111112": true, // SOL (wrapped)
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": true, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": true, // USDT
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  true, // mSOL
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": true, // stSOL
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": true, // BONK
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  true, // JUP
}

// IsKnownSafeMint reports whether mint skips the rugcheck gate.
func IsKnownSafeMint(mint string) bool { return KnownSafeMints[mint] }

// Config holds the user's configured safety limits.
type Config struct {
	MaxSlippageBps      int
	MaxTradeUSD         decimal.Decimal
	MinRugcheckScore    int
	RequireMintDisabled bool
	RequireFreezeDisabled bool
	DenyMints           []string
	AllowMints          []string
}

// RugcheckSummary is the subset of a rugcheck response the policy reads.
type RugcheckSummary struct {
	MintAuthority   *string
	FreezeAuthority *string
}

// RugcheckResult is the optional rugcheck outcome for the to_mint.
type RugcheckResult struct {
	Score   *int
	Summary RugcheckSummary
}

// Input is a proposed trade to check.
type Input struct {
	FromMint    string
	ToMint      string
	AmountUSD   decimal.Decimal
	SlippageBps int
	Rugcheck    *RugcheckResult
	Config      Config
}

// Result is the policy verdict, with both passed and failed check labels
// for display/audit.
type Result struct {
	Allowed      bool
	Reason       string
	ChecksPassed []string
	ChecksFailed []string
}

// Check runs the five ordered gates: slippage, notional size, deny list,
// allow list, and rugcheck (skipped for known-safe mints).
func Check(in Input) Result {
	var passed, failed []string

	// 1. Slippage limit.
	if in.SlippageBps > in.Config.MaxSlippageBps {
		failed = append(failed, fmt.Sprintf("slippage (%dbps > max %dbps)", in.SlippageBps, in.Config.MaxSlippageBps))
	} else {
		passed = append(passed, fmt.Sprintf("slippage (%dbps)", in.SlippageBps))
	}

	// 2. Trade size limit.
	if in.AmountUSD.GreaterThan(in.Config.MaxTradeUSD) {
		failed = append(failed, fmt.Sprintf("trade_size ($%s > max $%s)", in.AmountUSD.StringFixed(2), in.Config.MaxTradeUSD.StringFixed(2)))
	} else {
		passed = append(passed, fmt.Sprintf("trade_size ($%s)", in.AmountUSD.StringFixed(2)))
	}

	// 3. Deny list.
	if containsMint(in.Config.DenyMints, in.FromMint) {
		failed = append(failed, "from_mint in DENY_MINTS")
	} else {
		passed = append(passed, "from_mint not in DENY_MINTS")
	}
	if containsMint(in.Config.DenyMints, in.ToMint) {
		failed = append(failed, "to_mint in DENY_MINTS")
	} else {
		passed = append(passed, "to_mint not in DENY_MINTS")
	}

	// 4. Allow list, only enforced when non-empty.
	if len(in.Config.AllowMints) > 0 {
		if !containsMint(in.Config.AllowMints, in.FromMint) && !IsKnownSafeMint(in.FromMint) {
			failed = append(failed, "from_mint not in ALLOW_MINTS")
		} else {
			passed = append(passed, "from_mint in ALLOW_MINTS")
		}
		if !containsMint(in.Config.AllowMints, in.ToMint) && !IsKnownSafeMint(in.ToMint) {
			failed = append(failed, "to_mint not in ALLOW_MINTS")
		} else {
			passed = append(passed, "to_mint in ALLOW_MINTS")
		}
	}

	// 5. Rugcheck, skipped for known-safe destination mints.
	if !IsKnownSafeMint(in.ToMint) {
		if in.Rugcheck != nil {
			if in.Rugcheck.Score != nil {
				score := *in.Rugcheck.Score
				if score > in.Config.MinRugcheckScore {
					failed = append(failed, fmt.Sprintf("rugcheck_score (%d > max %d)", score, in.Config.MinRugcheckScore))
				} else {
					passed = append(passed, fmt.Sprintf("rugcheck_score (%d)", score))
				}
			}
			if in.Config.RequireMintDisabled {
				if in.Rugcheck.Summary.MintAuthority != nil {
					failed = append(failed, "mint_authority still active")
				} else {
					passed = append(passed, "mint_authority disabled")
				}
			}
			if in.Config.RequireFreezeDisabled {
				if in.Rugcheck.Summary.FreezeAuthority != nil {
					failed = append(failed, "freeze_authority still active")
				} else {
					passed = append(passed, "freeze_authority disabled")
				}
			}
		} else {
			failed = append(failed, "rugcheck required for unknown token")
		}
	}

	if len(failed) > 0 {
		return Result{
			Allowed:      false,
			Reason:       "Policy blocked: " + strings.Join(failed, ", "),
			ChecksPassed: passed,
			ChecksFailed: failed,
		}
	}
	return Result{Allowed: true, ChecksPassed: passed}
}

func containsMint(list []string, mint string) bool {
	for _, m := range list {
		if m == mint {
			return true
		}
	}
	return false
}

// Format renders a Result the way the CLI/REST surfaces display it.
func Format(r Result) string {
	var b strings.Builder
	if r.Allowed {
		b.WriteString("Policy Check: PASSED")
	} else {
		fmt.Fprintf(&b, "Policy Check: BLOCKED - %s", r.Reason)
	}
	if len(r.ChecksPassed) > 0 {
		fmt.Fprintf(&b, "\n  Passed: %s", strings.Join(r.ChecksPassed, ", "))
	}
	if len(r.ChecksFailed) > 0 {
		fmt.Fprintf(&b, "\n  Failed: %s", strings.Join(r.ChecksFailed, ", "))
	}
	return b.String()
}
