// Package token is the TokenResolver component: symbol-to-mint resolution,
// per-mint decimal lookup, and an aggregator search fallback for symbols
// the baked table doesn't know.
package token

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

var ErrTokenNotFound = errors.New("token: not found")

// O(1) base58-alphabet membership check, replacing a per-char O(58) scan.
var base58Set = func() [256]bool {
	var set [256]bool
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	for i := 0; i < len(alphabet); i++ {
		set[alphabet[i]] = true
	}
	return set
}()

func isValidBase58(s string) bool {
	for i := 0; i < len(s); i++ {
		if !base58Set[s[i]] {
			return false
		}
	}
	return true
}

// IsMintAddress reports whether s already looks like a base58 mint
// address rather than a symbol. Solana addresses are 32-44 base58
// characters.
func IsMintAddress(s string) bool {
	return isMintShaped(s)
}

// isMintShaped reports whether s already looks like a base58 mint address
// rather than a symbol. Solana addresses are 32-44 base58 characters.
func isMintShaped(s string) bool {
	return len(s) >= 32 && len(s) <= 44 && isValidBase58(s)
}

// SymbolToMint is the baked seed table: the common tokens every instance
// needs to resolve without a network call.
var SymbolToMint = map[string]string{
	"SOL":   "So11111111111111111111111111111111111111112",
	"USDC":  "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"USDT":  "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"MSOL":  "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So",
	"STSOL": "7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj",
	"BONK":  "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
	"JUP":   "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN",
}

// knownDecimals covers the common mints whose decimals aren't 9.
var knownDecimals = map[string]int{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": 6, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": 6, // USDT
}

const defaultDecimals = 9

// Searcher is the aggregator search fallback used when neither the
// passthrough check nor the baked table resolves a symbol.
type Searcher interface {
	SearchToken(ctx context.Context, query string) ([]SearchResult, error)
}

// SearchResult is one hit from an aggregator token search.
type SearchResult struct {
	Mint     string
	Symbol   string
	Decimals int
}

// Resolution is what Resolve returns: exactly one mint, several
// candidates, or nothing.
type Resolution struct {
	Mint       string
	Ambiguous  []SearchResult
}

// Resolver resolves a user-supplied symbol or mint to a canonical mint
// address, and answers per-mint decimal questions.
type Resolver struct {
	searcher Searcher
	extra    map[string]string // user-added symbol->mint entries
}

func NewResolver(searcher Searcher) *Resolver {
	return &Resolver{searcher: searcher, extra: map[string]string{}}
}

// AddToken records a user-taught symbol->mint mapping for this process.
func (r *Resolver) AddToken(symbol, mint string) {
	r.extra[normalize(symbol)] = mint
}

func normalize(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// Resolve converts text (a symbol or a mint address) into a mint address.
// Precedence: already-mint-shaped passthrough, user-taught table, baked
// table, then aggregator search.
func (r *Resolver) Resolve(ctx context.Context, text string) (Resolution, error) {
	if isMintShaped(text) {
		log.Debug().Str("mint", text).Msg("token: already a mint address")
		return Resolution{Mint: text}, nil
	}

	upper := normalize(text)
	if mint, ok := r.extra[upper]; ok {
		return Resolution{Mint: mint}, nil
	}
	if mint, ok := SymbolToMint[upper]; ok {
		return Resolution{Mint: mint}, nil
	}

	if r.searcher == nil {
		return Resolution{}, ErrTokenNotFound
	}

	results, err := r.searcher.SearchToken(ctx, text)
	if err != nil {
		return Resolution{}, err
	}
	switch len(results) {
	case 0:
		return Resolution{}, ErrTokenNotFound
	case 1:
		return Resolution{Mint: results[0].Mint}, nil
	default:
		return Resolution{Ambiguous: results}, nil
	}
}

// Decimals returns the on-chain decimal count for mint, falling back to 9
// (the common SPL-token default) for anything not in the known table.
func Decimals(mint string) int {
	if d, ok := knownDecimals[mint]; ok {
		return d
	}
	return defaultDecimals
}

// KnownSymbolForMint looks up mint in the baked symbol table only,
// reporting whether it was found.
func KnownSymbolForMint(mint string) (string, bool) {
	for sym, m := range SymbolToMint {
		if m == mint {
			return sym, true
		}
	}
	return "", false
}

// SymbolForMint reverse-looks-up a display symbol for a known mint, or
// returns the mint itself truncated for display.
func SymbolForMint(mint string) string {
	if sym, ok := KnownSymbolForMint(mint); ok {
		return sym
	}
	if len(mint) > 8 {
		return mint[:4] + "…" + mint[len(mint)-4:]
	}
	return mint
}
