package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/core"
	"slopesniper/internal/ledger"
	"slopesniper/internal/nlintent"
	"slopesniper/internal/restapi"
)

type commandFunc func(c *core.Core, args []string) error

var commands = map[string]commandFunc{
	"status":         cmdStatus,
	"setup-wallet":   cmdSetupWallet,
	"export-wallet":  cmdExportWallet,
	"backups":        cmdBackups,
	"restore-backup": cmdRestoreBackup,
	"strategy":       cmdStrategy,
	"strategies":     cmdStrategies,
	"price":          cmdPrice,
	"search":         cmdSearch,
	"check":          cmdCheck,
	"wallet":         cmdWallet,
	"quote":          cmdQuote,
	"confirm":        cmdConfirm,
	"quick":          cmdQuick,
	"history":        cmdHistory,
	"pnl":            cmdPnL,
	"pnl-stats":      cmdPnLStats,
	"pnl-init":       cmdPnLInit,
	"pnl-positions":  cmdPnLPositions,
	"pnl-export":     cmdPnLExport,
	"pnl-reset":      cmdPnLReset,
	"target-add":     cmdTargetAdd,
	"target-remove":  cmdTargetRemove,
	"targets":        cmdTargets,
	"scan":           cmdScan,
	"launches":       cmdLaunches,
	"watch":          cmdWatch,
	"watchlist":      cmdWatchlist,
	"unwatch":        cmdUnwatch,
	"daemon":         cmdDaemon,
	"dashboard":      cmdDashboard,
}

func cmdStatus(c *core.Core, _ []string) error {
	ctx := context.Background()
	st, err := c.GetStatus(ctx)
	if err != nil {
		return err
	}
	printKV("Wallet", orNone(st.WalletAddress))
	printKV("Balance", st.BalanceSOL.StringFixed(4)+" SOL")
	if st.ActiveStrategy != nil {
		printKV("Strategy", st.ActiveStrategy.Name)
	}
	printKV("Daemon", daemonLabel(st.DaemonRunning, st.DaemonPID))
	for _, h := range st.ComponentHealth {
		label := "up"
		if !h.Healthy {
			label = "down: " + h.Error
		}
		printKV(h.Name, label)
	}
	if st.PerformanceTip != nil {
		printWarn("%s", *st.PerformanceTip)
	}
	return nil
}

func daemonLabel(running bool, pid int) string {
	if !running {
		return "stopped"
	}
	return fmt.Sprintf("running (pid %d)", pid)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func cmdSetupWallet(c *core.Core, args []string) error {
	key := ""
	if len(args) > 0 {
		key = args[0]
	}
	res, err := c.SetupWallet(context.Background(), key)
	if err != nil {
		return err
	}
	printOK("wallet ready: %s", res.Address)
	if res.RevealedPrivateKey != "" {
		printWarn("private key (back this up now; export-wallet shows it again): %s", res.RevealedPrivateKey)
	}
	return nil
}

func cmdExportWallet(c *core.Core, _ []string) error {
	key, err := c.ExportWallet(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}

func cmdBackups(c *core.Core, _ []string) error {
	refs, err := c.ListBackups(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(refs))
	for _, r := range refs {
		rows = append(rows, []string{r.Timestamp, r.Address})
	}
	fmt.Print(table([]string{"TIMESTAMP", "ADDRESS"}, rows))
	return nil
}

func cmdRestoreBackup(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: restore-backup <timestamp>")
	}
	if err := c.RestoreBackup(context.Background(), args[0]); err != nil {
		return err
	}
	printOK("wallet restored from backup %s", args[0])
	return nil
}

func cmdStrategy(c *core.Core, args []string) error {
	ctx := context.Background()
	if len(args) == 0 {
		strat, err := c.GetStrategy(ctx)
		if err != nil {
			return err
		}
		return printStrategy(strat)
	}
	strat, err := c.SetStrategy(ctx, args[0], nil)
	if err != nil {
		return err
	}
	printOK("strategy set to %s", strat.Name)
	return printStrategy(strat)
}

func printStrategy(s *ledger.Strategy) error {
	printKV("Name", s.Name)
	printKV("Max trade", "$"+s.MaxTradeUSD.StringFixed(2))
	printKV("Auto-execute under", "$"+s.AutoExecuteUnderUSD.StringFixed(2))
	printKV("Max loss", s.MaxLossPct.StringFixed(1)+"%")
	printKV("Slippage", strconv.Itoa(s.SlippageBps)+" bps")
	printKV("Require rugcheck", s.RequireRugcheck)
	return nil
}

func cmdStrategies(c *core.Core, _ []string) error {
	strats, err := c.ListStrategies(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(strats))
	for _, s := range strats {
		rows = append(rows, []string{
			s.Name, "$" + s.MaxTradeUSD.StringFixed(0), "$" + s.AutoExecuteUnderUSD.StringFixed(0),
			strconv.Itoa(s.SlippageBps) + " bps", fmt.Sprintf("%v", s.RequireRugcheck),
		})
	}
	fmt.Print(table([]string{"NAME", "MAX TRADE", "AUTO-EXEC", "SLIPPAGE", "RUGCHECK"}, rows))
	return nil
}

func cmdPrice(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: price <token>")
	}
	price, err := c.GetPrice(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("$%s\n", price.StringFixed(6))
	return nil
}

func cmdSearch(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: search <query>")
	}
	results, err := c.SearchToken(context.Background(), args[0])
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Symbol, r.Mint, strconv.Itoa(r.Decimals)})
	}
	fmt.Print(table([]string{"SYMBOL", "MINT", "DECIMALS"}, rows))
	return nil
}

func cmdCheck(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: check <mint>")
	}
	summary, err := c.CheckToken(context.Background(), args[0])
	if err != nil {
		return err
	}
	printKV("Score", summary.Score)
	if len(summary.CriticalRisks()) == 0 {
		printOK("no critical risks found")
	} else {
		for _, r := range summary.CriticalRisks() {
			printWarn("[%s] %s", r.Level, r.Name)
		}
	}
	return nil
}

func cmdWallet(c *core.Core, args []string) error {
	address := ""
	if len(args) > 0 {
		address = args[0]
	}
	holdings, err := c.GetWallet(context.Background(), address)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(holdings.Tokens))
	for mint, h := range holdings.Tokens {
		rows = append(rows, []string{mint, h.Amount, fmt.Sprintf("%.6f", h.UIAmount)})
	}
	fmt.Print(table([]string{"MINT", "RAW AMOUNT", "UI AMOUNT"}, rows))
	return nil
}

func cmdQuote(c *core.Core, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: quote <from> <to> <amount> [slippage_bps]")
	}
	slip := 0
	if len(args) > 3 {
		slip, _ = strconv.Atoi(args[3])
	}
	res, err := c.Quote(context.Background(), args[0], args[1], args[2], slip)
	if err != nil {
		return err
	}
	printKV("Intent", res.IntentID)
	printKV("In", res.InAmount)
	printKV("Out (est)", res.OutAmountEst)
	printKV("Price impact", fmt.Sprintf("%.4f%%", res.PriceImpactPct))
	printKV("Route", res.RouteSummary)
	printKV("Expires", res.ExpiresAt.Format("15:04:05"))
	return nil
}

func cmdConfirm(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: confirm <intent-id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid intent id: %w", err)
	}
	res, err := c.SwapConfirm(context.Background(), id)
	if err != nil {
		return err
	}
	if res.Success {
		printOK("trade executed: %s", res.Signature)
		printKV("Explorer", res.ExplorerURL)
	} else {
		printErr("trade failed: %s", res.Error)
	}
	return nil
}

func cmdQuick(c *core.Core, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: quick <buy|sell> <token> <usd>")
	}
	usd, err := core.ParseUSD(args[2])
	if err != nil {
		return err
	}
	res, err := c.QuickTrade(context.Background(), args[0], args[1], usd)
	if err != nil {
		return err
	}
	if res.Success {
		printOK("trade executed: %s", res.Signature)
		printKV("Explorer", res.ExplorerURL)
	} else {
		printErr("trade failed: %s", res.Error)
	}
	return nil
}

func cmdHistory(c *core.Core, args []string) error {
	mint := ""
	limit := 20
	if len(args) > 0 {
		mint = args[0]
	}
	if len(args) > 1 {
		limit, _ = strconv.Atoi(args[1])
	}
	trades, err := c.GetTradeHistory(context.Background(), mint, limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.Timestamp.Format("2006-01-02 15:04"), t.Action, t.Symbol,
			t.AmountTokens.StringFixed(4), "$" + t.AmountUSD.StringFixed(2),
		})
	}
	fmt.Print(table([]string{"TIME", "ACTION", "SYMBOL", "AMOUNT", "USD"}, rows))
	return nil
}

func cmdPnL(c *core.Core, _ []string) error {
	p, err := c.GetPortfolioPnL(context.Background())
	if err != nil {
		return err
	}
	printKV("Total value", "$"+p.TotalValue.StringFixed(2))
	printKV("Realized", "$"+p.TotalRealized.StringFixed(2))
	printKV("Unrealized", "$"+p.TotalUnrealized.StringFixed(2))
	if p.HasBaseline {
		gain := p.TotalValue.Sub(p.Baseline)
		printKV("Baseline", "$"+p.Baseline.StringFixed(2))
		printKV("Gain since baseline", "$"+gain.StringFixed(2))
	}
	return nil
}

func cmdPnLStats(c *core.Core, _ []string) error {
	s, err := c.PnLStats(context.Background())
	if err != nil {
		return err
	}
	printKV("Closed positions", strconv.Itoa(s.ClosedPositions))
	printKV("Wins", strconv.Itoa(s.Wins))
	printKV("Losses", strconv.Itoa(s.Losses))
	printKV("Win rate", s.WinRatePct.StringFixed(1)+"%")
	printKV("Avg gain", "$"+s.AvgGainUSD.StringFixed(2))
	printKV("Avg loss", "$"+s.AvgLossUSD.StringFixed(2))
	printKV("Largest win", "$"+s.LargestWinUSD.StringFixed(2))
	printKV("Largest loss", "$"+s.LargestLossUSD.StringFixed(2))
	return nil
}

func cmdPnLInit(c *core.Core, args []string) error {
	value := ""
	if len(args) > 0 {
		value = args[0]
	}
	if err := c.PnLInit(context.Background(), value); err != nil {
		return err
	}
	printOK("pnl baseline set")
	return nil
}

func cmdPnLPositions(c *core.Core, _ []string) error {
	positions, err := c.PnLPositions(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, []string{
			p.Symbol, p.Holdings.StringFixed(4), "$" + p.HoldingsValue.StringFixed(2),
			"$" + p.Realized.StringFixed(2), "$" + p.Unrealized.StringFixed(2),
		})
	}
	fmt.Print(table([]string{"SYMBOL", "HOLDINGS", "VALUE", "REALIZED", "UNREALIZED"}, rows))
	return nil
}

func cmdPnLExport(c *core.Core, args []string) error {
	format := "csv"
	if len(args) > 0 {
		format = args[0]
	}
	out, err := c.PnLExport(context.Background(), format)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdPnLReset(c *core.Core, _ []string) error {
	if err := c.PnLReset(context.Background()); err != nil {
		return err
	}
	printOK("pnl baseline cleared")
	return nil
}

func cmdTargetAdd(c *core.Core, args []string) error {
	if len(args) < 4 {
		return fmt.Errorf("usage: target-add <token> <pct_gain|price|mcap|trailing_stop> <value> <sellAmount>")
	}
	value, err := decimal.NewFromString(args[2])
	if err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	t, err := c.AddTarget(context.Background(), args[0], ledger.TargetType(args[1]), value, args[3])
	if err != nil {
		return err
	}
	printOK("target added: %s", t.ID)
	return nil
}

func cmdTargetRemove(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: target-remove <id>")
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	if err := c.RemoveTarget(context.Background(), id); err != nil {
		return err
	}
	printOK("target removed")
	return nil
}

func cmdTargets(c *core.Core, _ []string) error {
	targets, err := c.GetActiveTargets(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, []string{t.Symbol, string(t.Type), t.TargetValue.String(), t.SellAmount, string(t.Status)})
	}
	fmt.Print(table([]string{"SYMBOL", "TYPE", "TARGET", "SELL", "STATUS"}, rows))
	return nil
}

func cmdScan(c *core.Core, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	pairs, err := c.ScanOpportunities(context.Background(), core.ScanFilter{Query: query, Limit: 20})
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{
			p.BaseToken.Symbol, p.PriceUSD, fmt.Sprintf("%.2f", p.Liquidity.USD), fmt.Sprintf("%.2f", p.Volume.H24),
		})
	}
	fmt.Print(table([]string{"SYMBOL", "PRICE", "LIQUIDITY", "24H VOLUME"}, rows))
	return nil
}

func cmdLaunches(c *core.Core, args []string) error {
	limit := 20
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	events := c.RecentLaunches(context.Background(), limit)
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.Mint, e.Symbol, e.Name})
	}
	fmt.Print(table([]string{"MINT", "SYMBOL", "NAME"}, rows))
	return nil
}

func cmdWatch(c *core.Core, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: watch <token> <condition>")
	}
	entry, err := c.WatchToken(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	printOK("watching %s (%s)", entry.Symbol, entry.AlertCondition)
	return nil
}

func cmdWatchlist(c *core.Core, _ []string) error {
	entries, err := c.GetWatchlist(context.Background())
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Symbol, e.Mint, e.AlertCondition})
	}
	fmt.Print(table([]string{"SYMBOL", "MINT", "CONDITION"}, rows))
	return nil
}

func cmdUnwatch(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: unwatch <mint>")
	}
	if err := c.RemoveFromWatchlist(context.Background(), args[0]); err != nil {
		return err
	}
	printOK("removed from watchlist")
	return nil
}

func cmdDaemon(c *core.Core, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: daemon <start|stop|status|logs>")
	}
	switch args[0] {
	case "start":
		st, err := c.DaemonStart()
		if err != nil {
			return err
		}
		printOK("daemon started, pid %d", st.PID)
	case "stop":
		if err := c.DaemonStop(); err != nil {
			return err
		}
		printOK("daemon stopped")
	case "status":
		st, err := c.DaemonStatus()
		if err != nil {
			return err
		}
		printKV("Daemon", daemonLabel(st.Running, st.PID))
	case "logs":
		path, err := c.DaemonLogPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
	case "run":
		return runDaemonForeground(c)
	default:
		return fmt.Errorf("unknown daemon subcommand %q", args[0])
	}
	return nil
}

// runDaemonForeground is what the self-exec'd "daemon run" child
// actually executes: the REST API alongside the target-engine tick
// loop, mirroring the teacher's runHeadless goroutine pair (signal
// server + monitor loop) started from the same background process.
func runDaemonForeground(c *core.Core) error {
	if addr := c.RESTListenAddr(); addr != "" {
		srv := restapi.NewServer(c)
		go func() {
			if err := srv.Listen(addr); err != nil {
				log.Error().Err(err).Msg("daemon: rest api server stopped")
			}
		}()
		defer srv.Shutdown()
	}
	return c.Daemon.Run(context.Background())
}

func cmdDashboard(c *core.Core, _ []string) error {
	return runDashboard(c)
}

// runFreeText parses a natural-language command line and dispatches it
// onto the same Core operations the verb commands use.
func runFreeText(c *core.Core, line string) error {
	in := nlintent.Parse(line)
	ctx := context.Background()

	switch in.Action {
	case nlintent.ActionStatus:
		return cmdStatus(c, nil)
	case nlintent.ActionBuy, nlintent.ActionSell:
		if in.Token == "" || in.USD == "" {
			return fmt.Errorf("couldn't parse a token and dollar amount out of %q", line)
		}
		usd, err := core.ParseUSD(in.USD)
		if err != nil {
			return err
		}
		action := "buy"
		if in.Action == nlintent.ActionSell {
			action = "sell"
		}
		res, err := c.QuickTrade(ctx, action, in.Token, usd)
		if err != nil {
			return err
		}
		if res.Success {
			printOK("trade executed: %s", res.Signature)
		} else {
			printErr("trade failed: %s", res.Error)
		}
		return nil
	case nlintent.ActionPrice:
		if in.Token == "" {
			return fmt.Errorf("couldn't find a token in %q", line)
		}
		return cmdPrice(c, []string{in.Token})
	case nlintent.ActionCheck:
		if in.Token == "" {
			return fmt.Errorf("couldn't find a token in %q", line)
		}
		return cmdCheck(c, []string{in.Token})
	case nlintent.ActionPortfolio:
		return cmdPnL(c, nil)
	case nlintent.ActionHistory:
		return cmdHistory(c, nil)
	case nlintent.ActionWatchlist:
		return cmdWatchlist(c, nil)
	case nlintent.ActionWatch:
		if in.Token == "" {
			return fmt.Errorf("couldn't find a token in %q", line)
		}
		return cmdWatch(c, []string{in.Token, "price_above_entry"})
	case nlintent.ActionScan:
		return cmdScan(c, nil)
	case nlintent.ActionSetStrategy:
		return cmdStrategy(c, []string{in.Preset})
	case nlintent.ActionStrategy:
		return cmdStrategy(c, nil)
	default:
		printUsage()
		return fmt.Errorf("didn't understand %q", line)
	}
}
