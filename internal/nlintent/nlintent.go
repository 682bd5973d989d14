// Package nlintent is a small deterministic free-text parser for
// cmd/cli's natural-language entry point. It never touches Core
// directly; it only tags raw input with an Action and the few
// arguments that action needs, leaving all validation and execution to
// the caller.
package nlintent

import (
	"regexp"
	"strconv"
	"strings"
)

// Action names one of the callable surface operations this parser can
// recognize from free text.
type Action string

const (
	ActionUnknown    Action = "unknown"
	ActionStatus     Action = "status"
	ActionBuy        Action = "buy"
	ActionSell       Action = "sell"
	ActionQuote      Action = "quote"
	ActionPrice      Action = "price"
	ActionCheck      Action = "check"
	ActionPortfolio  Action = "portfolio"
	ActionHistory    Action = "history"
	ActionWatch      Action = "watch"
	ActionWatchlist  Action = "watchlist"
	ActionScan       Action = "scan"
	ActionStrategy   Action = "strategy"
	ActionSetStrategy Action = "set_strategy"
)

// Intent is the tagged result of parsing one line of free text.
type Intent struct {
	Action   Action
	Token    string
	USD      string
	Slippage int
	Preset   string
	Raw      string
}

var (
	usdRe    = regexp.MustCompile(`\$\s?([0-9]+(?:\.[0-9]+)?)`)
	slipRe   = regexp.MustCompile(`([0-9]+)\s*bps`)
	tickerRe = regexp.MustCompile(`\b[A-Z]{2,10}\b`)
)

// Parse converts a free-text command line into an Intent. It never
// returns an error: unrecognized text becomes ActionUnknown with Raw
// set, so the caller can show a help message or fall through to a
// literal verb dispatch.
func Parse(line string) Intent {
	raw := strings.TrimSpace(line)
	lower := strings.ToLower(raw)
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return Intent{Action: ActionUnknown, Raw: raw}
	}

	in := Intent{Raw: raw}
	if m := usdRe.FindStringSubmatch(raw); m != nil {
		in.USD = m[1]
	}
	if m := slipRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			in.Slippage = n
		}
	}
	if m := tickerRe.FindString(raw); m != "" {
		in.Token = m
	}

	switch {
	case containsAny(fields, "status", "portfolio-status"):
		in.Action = ActionStatus
	case containsAny(fields, "buy", "ape"):
		in.Action = ActionBuy
	case containsAny(fields, "sell", "dump"):
		in.Action = ActionSell
	case containsAny(fields, "quote"):
		in.Action = ActionQuote
	case containsAny(fields, "price"):
		in.Action = ActionPrice
	case containsAny(fields, "check", "rugcheck", "audit"):
		in.Action = ActionCheck
	case containsAny(fields, "portfolio", "pnl"):
		in.Action = ActionPortfolio
	case containsAny(fields, "history"):
		in.Action = ActionHistory
	case containsAny(fields, "watchlist"):
		in.Action = ActionWatchlist
	case containsAny(fields, "watch"):
		in.Action = ActionWatch
	case containsAny(fields, "scan", "opportunities"):
		in.Action = ActionScan
	case containsAny(fields, "conservative", "balanced", "aggressive", "degen"):
		in.Action = ActionSetStrategy
		for _, p := range []string{"conservative", "balanced", "aggressive", "degen"} {
			if containsAny(fields, p) {
				in.Preset = p
				break
			}
		}
	case containsAny(fields, "strategy"):
		in.Action = ActionStrategy
	default:
		in.Action = ActionUnknown
	}

	return in
}

func containsAny(fields []string, targets ...string) bool {
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	for _, f := range fields {
		if set[f] {
			return true
		}
	}
	return false
}
