// Package mcptools exposes Core's callable surface as a typed registry
// of named tools, the same one-name-per-operation shape an MCP server
// would advertise to a model. Each ToolFunc takes a decoded arguments
// struct and returns a JSON-serializable result, so a thin transport on
// top (stdio, HTTP) only has to marshal/unmarshal at the edges.
package mcptools

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"slopesniper/internal/core"
	"slopesniper/internal/coreerr"
	"slopesniper/internal/ledger"
)

// ToolFunc is one callable surface operation: decode args, call Core,
// return a plain result value ready for JSON encoding.
type ToolFunc func(ctx context.Context, c *core.Core, args map[string]any) (any, error)

// Registry maps every callable surface operation name to its ToolFunc,
// mirroring spec's callable surface 1:1.
var Registry = map[string]ToolFunc{
	"get_status":             toolGetStatus,
	"setup_wallet":           toolSetupWallet,
	"export_wallet":          toolExportWallet,
	"list_backups":           toolListBackups,
	"restore_backup":         toolRestoreBackup,
	"set_strategy":           toolSetStrategy,
	"get_strategy":           toolGetStrategy,
	"list_strategies":        toolListStrategies,
	"get_price":              toolGetPrice,
	"search_token":           toolSearchToken,
	"check_token":            toolCheckToken,
	"get_wallet":             toolGetWallet,
	"quote":                  toolQuote,
	"swap_confirm":           toolSwapConfirm,
	"quick_trade":            toolQuickTrade,
	"record_trade":           toolRecordTrade,
	"get_trade_history":      toolGetTradeHistory,
	"get_portfolio_pnl":      toolGetPortfolioPnL,
	"pnl_init":               toolPnLInit,
	"pnl_stats":              toolPnLStats,
	"pnl_positions":          toolPnLPositions,
	"pnl_export":             toolPnLExport,
	"pnl_reset":              toolPnLReset,
	"add_target":             toolAddTarget,
	"remove_target":          toolRemoveTarget,
	"get_active_targets":     toolGetActiveTargets,
	"scan_opportunities":     toolScanOpportunities,
	"recent_launches":        toolRecentLaunches,
	"watch_token":            toolWatchToken,
	"get_watchlist":          toolGetWatchlist,
	"remove_from_watchlist":  toolRemoveFromWatchlist,
	"daemon_start":           toolDaemonStart,
	"daemon_stop":            toolDaemonStop,
	"daemon_status":          toolDaemonStatus,
	"daemon_logs":            toolDaemonLogs,
}

// Call looks up name in Registry and invokes it, returning a coreerr
// User error if name is unknown.
func Call(ctx context.Context, c *core.Core, name string, args map[string]any) (any, error) {
	fn, ok := Registry[name]
	if !ok {
		return nil, coreerr.User(fmt.Sprintf("unknown tool %q", name), nil)
	}
	return fn(ctx, c, args)
}

func argString(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func argInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func argFloat(args map[string]any, key string) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toolGetStatus(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.GetStatus(ctx)
}

func toolSetupWallet(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.SetupWallet(ctx, argString(args, "key"))
}

func toolExportWallet(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.ExportWallet(ctx)
}

func toolListBackups(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.ListBackups(ctx)
}

func toolRestoreBackup(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return nil, c.RestoreBackup(ctx, argString(args, "timestamp"))
}

func toolSetStrategy(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	var overrides *ledger.Strategy
	if args["max_trade_usd"] != nil {
		overrides = &ledger.Strategy{MaxTradeUSD: decimal.NewFromFloat(argFloat(args, "max_trade_usd"))}
	}
	return c.SetStrategy(ctx, argString(args, "preset"), overrides)
}

func toolGetStrategy(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.GetStrategy(ctx)
}

func toolListStrategies(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.ListStrategies(ctx)
}

func toolGetPrice(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.GetPrice(ctx, argString(args, "token"))
}

func toolSearchToken(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.SearchToken(ctx, argString(args, "query"))
}

func toolCheckToken(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.CheckToken(ctx, argString(args, "mint"))
}

func toolGetWallet(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.GetWallet(ctx, argString(args, "address"))
}

func toolQuote(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.Quote(ctx, argString(args, "from"), argString(args, "to"), argString(args, "amount"), argInt(args, "slippage_bps"))
}

func toolSwapConfirm(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	id, err := uuid.Parse(argString(args, "intent_id"))
	if err != nil {
		return nil, coreerr.User("invalid intent_id", err)
	}
	return c.SwapConfirm(ctx, id)
}

func toolQuickTrade(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.QuickTrade(ctx, argString(args, "action"), argString(args, "token"), decimal.NewFromFloat(argFloat(args, "usd")))
}

func toolRecordTrade(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	t := &ledger.Trade{
		Mint:          argString(args, "mint"),
		Symbol:        argString(args, "symbol"),
		Action:        argString(args, "action"),
		AmountTokens:  decimal.NewFromFloat(argFloat(args, "amount_tokens")),
		AmountUSD:     decimal.NewFromFloat(argFloat(args, "amount_usd")),
		PricePerToken: decimal.NewFromFloat(argFloat(args, "price_per_token")),
		TxSignature:   argString(args, "tx_signature"),
		Notes:         argString(args, "notes"),
	}
	return nil, c.RecordTrade(ctx, t)
}

func toolGetTradeHistory(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.GetTradeHistory(ctx, argString(args, "mint"), argInt(args, "limit"))
}

func toolGetPortfolioPnL(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.GetPortfolioPnL(ctx)
}

func toolPnLInit(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return nil, c.PnLInit(ctx, argString(args, "value"))
}

func toolPnLStats(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.PnLStats(ctx)
}

func toolPnLPositions(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.PnLPositions(ctx)
}

func toolPnLExport(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	out, err := c.PnLExport(ctx, argString(args, "format"))
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func toolPnLReset(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return nil, c.PnLReset(ctx)
}

func toolAddTarget(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.AddTarget(ctx, argString(args, "token"), ledger.TargetType(argString(args, "kind")),
		decimal.NewFromFloat(argFloat(args, "value")), argString(args, "sell_amount"))
}

func toolRemoveTarget(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	id, err := uuid.Parse(argString(args, "id"))
	if err != nil {
		return nil, coreerr.User("invalid id", err)
	}
	return nil, c.RemoveTarget(ctx, id)
}

func toolGetActiveTargets(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.GetActiveTargets(ctx)
}

func toolScanOpportunities(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.ScanOpportunities(ctx, core.ScanFilter{
		Query:        argString(args, "query"),
		MinLiqUSD:    argFloat(args, "min_liquidity_usd"),
		MinVol24hUSD: argFloat(args, "min_volume_usd"),
		Limit:        argInt(args, "limit"),
	})
}

func toolRecentLaunches(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	limit := argInt(args, "limit")
	if limit == 0 {
		limit = 20
	}
	return c.RecentLaunches(ctx, limit), nil
}

func toolWatchToken(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return c.WatchToken(ctx, argString(args, "token"), argString(args, "condition"))
}

func toolGetWatchlist(ctx context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.GetWatchlist(ctx)
}

func toolRemoveFromWatchlist(ctx context.Context, c *core.Core, args map[string]any) (any, error) {
	return nil, c.RemoveFromWatchlist(ctx, argString(args, "mint"))
}

func toolDaemonStart(_ context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.DaemonStart()
}

func toolDaemonStop(_ context.Context, c *core.Core, _ map[string]any) (any, error) {
	return nil, c.DaemonStop()
}

func toolDaemonStatus(_ context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.DaemonStatus()
}

func toolDaemonLogs(_ context.Context, c *core.Core, _ map[string]any) (any, error) {
	return c.DaemonLogPath()
}
