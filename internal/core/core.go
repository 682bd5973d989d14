// Package core wires every core component (Vault, ConfigStore, Ledger,
// PolicyEngine, TokenResolver, QuoteEngine, ExecEngine, PnLEngine,
// TargetEngine, Daemon) into the single callable surface every
// transport (cmd/cli, internal/restapi, internal/mcptools) dispatches
// onto, mirroring the teacher's initComponents wiring in cmd/bot/main.go
// generalized from one DEX-bot binary into a set of named operations a
// transport can invoke individually.
package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/coreerr"
	"slopesniper/internal/daemon"
	"slopesniper/internal/dexscreener"
	"slopesniper/internal/execengine"
	"slopesniper/internal/health"
	"slopesniper/internal/jupiter"
	"slopesniper/internal/jupiterprice"
	"slopesniper/internal/ledger"
	"slopesniper/internal/pnl"
	"slopesniper/internal/policy"
	"slopesniper/internal/pricecache"
	"slopesniper/internal/pumpfun"
	"slopesniper/internal/quote"
	"slopesniper/internal/rpc"
	"slopesniper/internal/rugcheck"
	"slopesniper/internal/target"
	"slopesniper/internal/token"
	"slopesniper/internal/wsprice"

	"slopesniper/internal/config"
	"slopesniper/internal/configstore"
	"slopesniper/internal/vault"
)

// searcherAdapter satisfies token.Searcher over jupiterprice.Client,
// whose SearchToken returns its own TokenInfo shape rather than
// token.SearchResult.
type searcherAdapter struct{ prices *jupiterprice.Client }

func (a searcherAdapter) SearchToken(ctx context.Context, query string) ([]token.SearchResult, error) {
	results, err := a.prices.SearchToken(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]token.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, token.SearchResult{Mint: r.Mint, Symbol: r.Symbol, Decimals: r.Decimals})
	}
	return out, nil
}

// Core holds every wired component. A transport constructs exactly one
// Core at startup and dispatches every operation through it.
type Core struct {
	cfg *config.Manager

	dataDir string

	Vault       *vault.Vault
	ConfigStore *configstore.Store
	Ledger      *ledger.Ledger
	Resolver    *token.Resolver

	RPC       *rpc.Client
	Jupiter   *jupiter.Client
	Prices    *jupiterprice.Client
	Rugcheck  *rugcheck.Client
	Dex       *dexscreener.Client
	PriceCache *pricecache.Cache

	Quote  *quote.Engine
	Exec   *execengine.Engine
	PnL    *pnl.Engine
	Target *target.Engine
	Daemon *daemon.Daemon
	Health  *health.Checker
	WSPrice *wsprice.Client
	PumpFun *pumpfun.Client
	Launches *launchFeed

	wallet       *vault.Wallet
	walletStatus vault.Status
}

// New wires every component from cfg, opening (or creating) the ledger
// database and loading the wallet if one exists. A missing wallet is
// not an error here — setup_wallet creates one on first use.
func New(cfg *config.Manager, dataDir string) (*Core, error) {
	storageCfg := cfg.Get().Storage

	v, err := vault.New(dataDir)
	if err != nil {
		return nil, coreerr.FatalErr("open vault", err)
	}

	store, err := configstore.New(dataDir, v.MachineKey)
	if err != nil {
		return nil, coreerr.FatalErr("open config store", err)
	}

	l, err := ledger.Open(storageCfg.SQLitePath)
	if err != nil {
		return nil, coreerr.FatalErr("open ledger", err)
	}

	jupCfg := cfg.Get().Jupiter
	timeout := time.Duration(jupCfg.TimeoutSeconds) * time.Second
	jupiterClient := jupiter.NewClient(timeout, jupiter.DefaultAPIKeys())
	jupiterClient.SetBaseURL(jupCfg.QuoteAPIURL)

	priceClient := jupiterprice.NewClient(timeout, cfg.JupiterAPIKey())
	priceClient.SetBaseURLs(jupCfg.PriceAPIURL, jupCfg.PriceAPIURL)

	rugClient := rugcheck.NewClient(timeout)
	dexClient := dexscreener.NewClient(timeout)
	rpcClient := rpc.NewClient(cfg.PrimaryRPCURL(), cfg.FallbackRPCURL())

	cache := pricecache.New(context.Background(), cfg.RedisURL())

	resolver := token.NewResolver(searcherAdapter{prices: priceClient})

	wallet, status, loadErr := v.Load(cfg.PrivateKey())
	if loadErr != nil && status != vault.StatusNoWallet {
		log.Warn().Err(loadErr).Msg("core: wallet load failed, continuing without a signer")
	}

	c := &Core{
		cfg:          cfg,
		dataDir:      dataDir,
		Vault:        v,
		ConfigStore:  store,
		Ledger:       l,
		Resolver:     resolver,
		RPC:          rpcClient,
		Jupiter:      jupiterClient,
		Prices:       priceClient,
		Rugcheck:     rugClient,
		Dex:          dexClient,
		PriceCache:   cache,
		wallet:       wallet,
		walletStatus: status,
	}

	c.rewireTradeEngines()
	c.Target = target.NewEngine(target.Dependencies{
		Ledger:   l,
		Prices:   priceClient,
		Mcap:     priceClient,
		Holdings: c.PnL,
		Quoter:   c.Quote,
		Execer:   c.Exec,
		Cache:    cache,
	})
	c.Daemon = daemon.New(dataDir, cfg.DaemonInterval(), c.Target)

	c.Health = health.NewChecker(rpcClient, jupCfg.QuoteAPIURL)
	c.Health.Start(context.Background(), 30*time.Second)

	if jupCfg.PriceWSURL != "" {
		c.WSPrice = wsprice.NewClient(jupCfg.PriceWSURL, cache, 30*time.Second)
		if err := c.WSPrice.Connect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("core: live price feed unavailable, falling back to polling")
		} else if entries, err := l.Watchlist(context.Background()); err == nil && len(entries) > 0 {
			mints := make([]string, len(entries))
			for i, e := range entries {
				mints[i] = e.Mint
			}
			if err := c.WSPrice.Subscribe(mints); err != nil {
				log.Warn().Err(err).Msg("core: live price feed subscribe failed")
			}
		}
	}

	c.Launches = newLaunchFeed(200)
	c.PumpFun = pumpfun.NewClient(cfg.PumpFunAPIKey())
	c.PumpFun.OnEvent(c.Launches.record)
	if err := c.PumpFun.Connect(context.Background()); err != nil {
		log.Warn().Err(err).Msg("core: pumpfun feed unavailable, recent_launches will stay empty")
	} else if err := c.PumpFun.SubscribeNewTokens(); err != nil {
		log.Warn().Err(err).Msg("core: pumpfun subscribe failed")
	}

	return c, nil
}

// rewireTradeEngines (re)builds QuoteEngine/ExecEngine/PnLEngine from
// the current wallet and policy config. Called once at startup and
// again after setup_wallet/rotate change the signer.
func (c *Core) rewireTradeEngines() {
	policyCfg := c.policyConfig()
	taker := ""
	if c.wallet != nil {
		taker = c.wallet.Address
	}

	c.Quote = quote.NewEngine(quote.Dependencies{
		TakerAddress: taker,
		Jupiter:      c.Jupiter,
		Prices:       c.Prices,
		Rugcheck:     c.Rugcheck,
		Intents:      c.Ledger.Intents(),
		PolicyCfg:    policyCfg,
	})

	var signer execengine.Wallet
	if c.wallet != nil {
		signer = c.wallet
	}
	c.Exec = execengine.NewEngine(execengine.Dependencies{
		Wallet:  signer,
		Jupiter: c.Jupiter,
		Prices:  c.Prices,
		Intents: c.Ledger.Intents(),
		Ledger:  c.Ledger,
	})

	c.PnL = pnl.NewEngine(c.Ledger, c.Prices)
}

func (c *Core) policyConfig() policy.Config {
	p := c.cfg.Get().Policy
	cfg := policy.Config{
		MaxSlippageBps:        p.MaxSlippageBps,
		MaxTradeUSD:           decimal.NewFromFloat(p.MaxTradeUSD),
		MinRugcheckScore:      p.MinRugcheckScore,
		RequireMintDisabled:   p.RequireMintDisabled,
		RequireFreezeDisabled: p.RequireFreezeDisabled,
	}
	// The active strategy's max trade size narrows the configured cap.
	if strat, err := c.Ledger.ActiveStrategy(context.Background()); err == nil && strat != nil &&
		strat.MaxTradeUSD.IsPositive() && strat.MaxTradeUSD.LessThan(cfg.MaxTradeUSD) {
		cfg.MaxTradeUSD = strat.MaxTradeUSD
	}
	return cfg
}

// HasWallet reports whether a signing wallet is currently loaded.
func (c *Core) HasWallet() bool { return c.wallet != nil }

// WalletAddress returns the loaded wallet's address, or "" if none.
func (c *Core) WalletAddress() string {
	if c.wallet == nil {
		return ""
	}
	return c.wallet.Address
}

// Close releases every resource Core opened.
func (c *Core) Close() error {
	if c.Health != nil {
		c.Health.Stop()
	}
	if c.WSPrice != nil {
		_ = c.WSPrice.Close()
	}
	if c.PumpFun != nil {
		_ = c.PumpFun.Close()
	}
	if c.PriceCache != nil {
		_ = c.PriceCache.Close()
	}
	return c.Ledger.Close()
}

// RESTListenAddr returns the configured REST transport listen address,
// for the binary that hosts both the daemon tick loop and the REST API
// in the same background process.
func (c *Core) RESTListenAddr() string {
	return c.cfg.Get().Transport.RESTListenAddr
}

// Status is the get_status callable surface operation.
type Status struct {
	WalletAddress   string
	HasWallet       bool
	BalanceSOL      decimal.Decimal
	ActiveStrategy  *ledger.Strategy
	DaemonRunning   bool
	DaemonPID       int
	PerformanceTip  *string
	IntegrityReport vault.IntegrityReport
	ComponentHealth []health.Status
}

// GetStatus reports wallet, balance, active strategy, and daemon state.
func (c *Core) GetStatus(ctx context.Context) (*Status, error) {
	st := &Status{WalletAddress: c.WalletAddress(), HasWallet: c.HasWallet()}

	if c.wallet != nil {
		lamports, err := c.RPC.GetBalance(ctx, c.wallet.Address)
		if err != nil {
			log.Warn().Err(err).Msg("core: balance lookup failed")
		} else {
			st.BalanceSOL = decimal.New(int64(lamports), -9)
		}
		st.IntegrityReport = c.Vault.IntegrityReport(c.cfg.PrivateKey())
	}

	strat, err := c.Ledger.ActiveStrategy(ctx)
	if err != nil {
		return nil, coreerr.State("load active strategy", err)
	}
	st.ActiveStrategy = strat

	if dst, err := c.Daemon.Status(); err == nil {
		st.DaemonRunning = dst.Running
		st.DaemonPID = dst.PID
	}

	if c.cfg.JupiterAPIKey() == "" {
		tip := "Using the shared Jupiter API key — set JUPITER_API_KEY for 10x better performance."
		st.PerformanceTip = &tip
	}

	if c.Health != nil {
		st.ComponentHealth = c.Health.Statuses()
	}

	return st, nil
}

// WalletSetupResult is returned by every SetupWallet call: the caller gets
// the raw key of the wallet just generated or imported so they can back
// it up. ExportWallet reveals the same key again on request.
type WalletSetupResult struct {
	Address           string
	RevealedPrivateKey string // set on every generation/import
}

// SetupWallet generates a new wallet (key == "") or imports the
// supplied key, persisting it through Vault.Save, and rewires the
// trade engines to sign with it.
func (c *Core) SetupWallet(ctx context.Context, key string) (*WalletSetupResult, error) {
	var w *vault.Wallet
	var err error
	if key == "" {
		w, err = c.Vault.Generate()
	} else {
		w, err = vault.Import([]byte(key))
	}
	if err != nil {
		return nil, coreerr.User("create wallet", err)
	}

	if err := c.Vault.Save(w); err != nil {
		return nil, coreerr.FatalErr("save wallet", err)
	}

	c.wallet = w
	c.walletStatus = vault.StatusOK
	c.rewireTradeEngines()

	return &WalletSetupResult{Address: w.Address, RevealedPrivateKey: w.RevealPrivateKey()}, nil
}

// ExportWallet returns the wallet's private key for explicit backup.
func (c *Core) ExportWallet(ctx context.Context) (string, error) {
	if c.wallet == nil {
		return "", coreerr.User("export wallet", vault.ErrNoWallet)
	}
	return c.wallet.RevealPrivateKey(), nil
}

// ListBackups is the list_backups callable surface operation.
func (c *Core) ListBackups(ctx context.Context) ([]vault.BackupRef, error) {
	refs, err := c.Vault.ListBackups()
	if err != nil {
		return nil, coreerr.FatalErr("list backups", err)
	}
	return refs, nil
}

// RestoreBackup restores and reloads the wallet stamped ts.
func (c *Core) RestoreBackup(ctx context.Context, ts string) error {
	if err := c.Vault.Restore(ts); err != nil {
		return coreerr.User("restore backup", err)
	}
	w, status, err := c.Vault.Load(c.cfg.PrivateKey())
	if err != nil {
		return coreerr.FatalErr("reload wallet after restore", err)
	}
	c.wallet = w
	c.walletStatus = status
	c.rewireTradeEngines()
	return nil
}

// presetStrategies are the four baked-in strategy presets, matching the
// original onboarding tool's conservative/balanced/aggressive/degen
// risk ladder.
var presetStrategies = map[string]ledger.Strategy{
	"conservative": {
		Name: "conservative", Description: "Safe trading with low limits. Best for beginners.",
		MaxTradeUSD: decimal.NewFromInt(25), AutoExecuteUnderUSD: decimal.NewFromInt(10),
		MaxLossPct: decimal.NewFromInt(5), SlippageBps: 50, RequireRugcheck: true,
	},
	"balanced": {
		Name: "balanced", Description: "Moderate limits with safety checks. Good for most traders.",
		MaxTradeUSD: decimal.NewFromInt(100), AutoExecuteUnderUSD: decimal.NewFromInt(25),
		MaxLossPct: decimal.NewFromInt(10), SlippageBps: 100, RequireRugcheck: true,
	},
	"aggressive": {
		Name: "aggressive", Description: "Higher limits, faster execution. For experienced traders.",
		MaxTradeUSD: decimal.NewFromInt(500), AutoExecuteUnderUSD: decimal.NewFromInt(50),
		MaxLossPct: decimal.NewFromInt(25), SlippageBps: 200, RequireRugcheck: false,
	},
	"degen": {
		Name: "degen", Description: "Maximum risk tolerance. YOLO mode. You've been warned.",
		MaxTradeUSD: decimal.NewFromInt(1000), AutoExecuteUnderUSD: decimal.NewFromInt(100),
		MaxLossPct: decimal.NewFromInt(50), SlippageBps: 500, RequireRugcheck: false,
	},
}

// DefaultStrategyPreset is used when no strategy is active yet.
const DefaultStrategyPreset = "balanced"

// PresetStrategy returns a copy of the named preset, or nil if unknown.
// Empty name defaults to DefaultStrategyPreset.
func PresetStrategy(name string) *ledger.Strategy {
	if name == "" {
		name = DefaultStrategyPreset
	}
	s, ok := presetStrategies[name]
	if !ok {
		return nil
	}
	out := s
	return &out
}

// SetStrategy is the set_strategy callable surface operation. overrides
// may be nil to use a preset as-is.
func (c *Core) SetStrategy(ctx context.Context, preset string, overrides *ledger.Strategy) (*ledger.Strategy, error) {
	s := PresetStrategy(preset)
	if s == nil {
		return nil, coreerr.User(fmt.Sprintf("unknown strategy preset %q", preset), nil)
	}
	if overrides != nil {
		applyOverrides(s, overrides)
	}
	if s.AutoExecuteUnderUSD.GreaterThan(s.MaxTradeUSD) {
		s.AutoExecuteUnderUSD = s.MaxTradeUSD
	}

	id, err := c.Ledger.UpsertStrategy(ctx, s)
	if err != nil {
		return nil, coreerr.State("save strategy", err)
	}
	if err := c.Ledger.SetActiveStrategy(ctx, id); err != nil {
		return nil, coreerr.State("activate strategy", err)
	}
	c.rewireTradeEngines()
	return c.Ledger.ActiveStrategy(ctx)
}

func applyOverrides(base, overrides *ledger.Strategy) {
	if overrides.Name != "" {
		base.Name = overrides.Name
	}
	if !overrides.MaxTradeUSD.IsZero() {
		base.MaxTradeUSD = overrides.MaxTradeUSD
	}
	if !overrides.AutoExecuteUnderUSD.IsZero() {
		base.AutoExecuteUnderUSD = overrides.AutoExecuteUnderUSD
	}
	if !overrides.MaxLossPct.IsZero() {
		base.MaxLossPct = overrides.MaxLossPct
	}
	if overrides.SlippageBps != 0 {
		base.SlippageBps = overrides.SlippageBps
	}
	if len(overrides.AllowedTokens) > 0 {
		base.AllowedTokens = overrides.AllowedTokens
	}
	base.RequireRugcheck = overrides.RequireRugcheck
	base.Name = "custom"
}

// GetStrategy is the get_strategy callable surface operation.
func (c *Core) GetStrategy(ctx context.Context) (*ledger.Strategy, error) {
	s, err := c.Ledger.ActiveStrategy(ctx)
	if err != nil {
		return nil, coreerr.State("load active strategy", err)
	}
	return s, nil
}

// ListStrategies is the list_strategies callable surface operation.
func (c *Core) ListStrategies(ctx context.Context) ([]*ledger.Strategy, error) {
	s, err := c.Ledger.ListStrategies(ctx)
	if err != nil {
		return nil, coreerr.State("list strategies", err)
	}
	return s, nil
}

// GetPrice is the get_price callable surface operation.
func (c *Core) GetPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	mint, err := c.resolveMint(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok, err := c.Prices.GetPrice(ctx, mint)
	if err != nil {
		return decimal.Zero, coreerr.Remote("price lookup", err)
	}
	if !ok {
		return decimal.Zero, coreerr.User(fmt.Sprintf("no price available for %s", mint), nil)
	}
	return price, nil
}

// SearchToken is the search_token callable surface operation.
func (c *Core) SearchToken(ctx context.Context, query string) ([]jupiterprice.TokenInfo, error) {
	results, err := c.Prices.SearchToken(ctx, query)
	if err != nil {
		return nil, coreerr.Remote("search token", err)
	}
	return results, nil
}

// CheckToken is the check_token callable surface operation: the
// rugcheck report for an already-resolved mint.
func (c *Core) CheckToken(ctx context.Context, mint string) (*rugcheck.Summary, error) {
	summary, err := c.Rugcheck.GetReportSummary(ctx, mint)
	if err != nil {
		return nil, coreerr.Remote("rugcheck", err)
	}
	return summary, nil
}

// GetWallet is the get_wallet callable surface operation: aggregator-
// reported holdings for an address, defaulting to the loaded wallet.
func (c *Core) GetWallet(ctx context.Context, address string) (*jupiter.Holdings, error) {
	if address == "" {
		address = c.WalletAddress()
	}
	if address == "" {
		return nil, coreerr.User("no wallet address available", nil)
	}
	holdings, err := c.Jupiter.GetHoldings(ctx, address)
	if err != nil {
		return nil, coreerr.Remote("get holdings", err)
	}
	return holdings, nil
}

// Quote is the quote callable surface operation: from/to may be
// symbols or mints.
func (c *Core) Quote(ctx context.Context, from, to, amount string, slippageBps int) (*quote.Result, error) {
	fromMint, err := c.resolveMint(ctx, from)
	if err != nil {
		return nil, err
	}
	toMint, err := c.resolveMint(ctx, to)
	if err != nil {
		return nil, err
	}
	res, err := c.Quote.Quote(ctx, quote.Request{FromMint: fromMint, ToMint: toMint, Amount: amount, SlippageBps: slippageBps})
	if err != nil {
		return nil, translateQuoteError(err)
	}
	return res, nil
}

func translateQuoteError(err error) error {
	switch err.(type) {
	case *quote.PolicyBlockedError:
		return coreerr.User(err.Error(), err)
	case *quote.QuoteFailedError:
		return coreerr.Remote(err.Error(), err)
	default:
		return coreerr.Remote("quote", err)
	}
}

// SwapConfirm is the swap_confirm callable surface operation.
func (c *Core) SwapConfirm(ctx context.Context, intentID uuid.UUID) (*execengine.Result, error) {
	if c.wallet == nil {
		return nil, coreerr.User("no wallet configured, run setup_wallet first", nil)
	}
	res, err := c.Exec.Confirm(ctx, intentID)
	if err != nil {
		return nil, translateConfirmError(err)
	}
	return res, nil
}

func translateConfirmError(err error) error {
	switch err {
	case execengine.ErrIntentNotFound:
		return coreerr.User("intent not found or expired", err)
	case execengine.ErrIntentAlreadyExecuted:
		return coreerr.User("intent already executed", err)
	default:
		return coreerr.Remote("confirm", err)
	}
}

// QuickTrade is the quick_trade callable surface operation: folds
// quote+confirm into one call when notional falls under the active
// strategy's auto-execute threshold, per spec's auto-execution rule.
func (c *Core) QuickTrade(ctx context.Context, action, tokenQuery string, usd decimal.Decimal) (*execengine.Result, error) {
	strat, err := c.Ledger.ActiveStrategy(ctx)
	if err != nil {
		return nil, coreerr.State("load active strategy", err)
	}
	if strat == nil {
		return nil, coreerr.Config("no active strategy configured", nil)
	}
	if usd.GreaterThan(strat.AutoExecuteUnderUSD) {
		return nil, coreerr.User(fmt.Sprintf("amount $%s exceeds auto-execute threshold $%s, use quote+swap_confirm instead",
			usd.StringFixed(2), strat.AutoExecuteUnderUSD.StringFixed(2)), nil)
	}

	mint, err := c.resolveMint(ctx, tokenQuery)
	if err != nil {
		return nil, err
	}

	var fromMint, toMint, amount string
	switch action {
	case "buy":
		fromMint, toMint = token.SymbolToMint["SOL"], mint
		price, ok, perr := c.Prices.GetPrice(ctx, fromMint)
		if perr != nil || !ok || price.IsZero() {
			return nil, coreerr.Remote("price SOL for quick_trade sizing", perr)
		}
		amount = usd.Div(price).String()
	case "sell":
		fromMint, toMint = mint, token.SymbolToMint["SOL"]
		holdings, herr := c.PnL.Holdings(ctx, mint)
		if herr != nil {
			return nil, coreerr.State("load holdings for quick_trade sizing", herr)
		}
		price, ok, perr := c.Prices.GetPrice(ctx, mint)
		if perr != nil || !ok || price.IsZero() {
			return nil, coreerr.Remote("price token for quick_trade sizing", perr)
		}
		tokens := usd.Div(price)
		if tokens.GreaterThan(holdings) {
			tokens = holdings
		}
		amount = tokens.String()
	default:
		return nil, coreerr.User(fmt.Sprintf("unknown quick_trade action %q, want buy or sell", action), nil)
	}

	qr, err := c.Quote.Quote(ctx, quote.Request{FromMint: fromMint, ToMint: toMint, Amount: amount, SlippageBps: strat.SlippageBps})
	if err != nil {
		return nil, translateQuoteError(err)
	}
	res, err := c.Exec.Confirm(ctx, qr.IntentID)
	if err != nil {
		return nil, translateConfirmError(err)
	}
	return res, nil
}

func (c *Core) resolveMint(ctx context.Context, text string) (string, error) {
	res, err := c.Resolver.Resolve(ctx, text)
	if err != nil {
		return "", coreerr.User(fmt.Sprintf("could not resolve token %q", text), err)
	}
	if res.Mint == "" {
		names := make([]string, 0, len(res.Ambiguous))
		for _, a := range res.Ambiguous {
			names = append(names, fmt.Sprintf("%s (%s)", a.Symbol, a.Mint))
		}
		return "", coreerr.User(fmt.Sprintf("ambiguous token %q, candidates: %v", text, names), nil)
	}
	return res.Mint, nil
}

// RecordTrade is the record_trade callable surface operation: a manual
// ledger entry for a trade executed outside this core (e.g. imported
// history).
func (c *Core) RecordTrade(ctx context.Context, t *ledger.Trade) error {
	if err := c.Ledger.InsertTrade(ctx, t); err != nil {
		return coreerr.State("record trade", err)
	}
	return nil
}

// GetTradeHistory is the get_trade_history callable surface operation.
func (c *Core) GetTradeHistory(ctx context.Context, mint string, limit int) ([]*ledger.Trade, error) {
	trades, err := c.Ledger.Trades(ctx, mint, limit)
	if err != nil {
		return nil, coreerr.State("load trade history", err)
	}
	return trades, nil
}

// GetPortfolioPnL is the get_portfolio_pnl callable surface operation.
func (c *Core) GetPortfolioPnL(ctx context.Context) (*pnl.Portfolio, error) {
	p, err := c.PnL.Portfolio(ctx)
	if err != nil {
		return nil, coreerr.State("compute portfolio pnl", err)
	}
	return p, nil
}

// PnLInit is the pnl_init callable surface operation. An explicit value
// string may be empty to use the current total portfolio value.
func (c *Core) PnLInit(ctx context.Context, value string) error {
	baseline := decimal.Zero
	if value != "" {
		v, err := decimal.NewFromString(value)
		if err != nil {
			return coreerr.User(fmt.Sprintf("invalid baseline value %q", value), err)
		}
		baseline = v
	} else {
		p, err := c.PnL.Portfolio(ctx)
		if err != nil {
			return coreerr.State("compute current value for baseline", err)
		}
		baseline = p.TotalValue
	}
	if err := c.PnL.Init(ctx, baseline); err != nil {
		return coreerr.State("init pnl baseline", err)
	}
	return nil
}

// PnLStats is the pnl_stats callable surface operation: closed-position
// win rate, average gain/loss, and largest win/loss across every mint
// with at least one sell.
func (c *Core) PnLStats(ctx context.Context) (*pnl.Stats, error) {
	s, err := c.PnL.Stats(ctx)
	if err != nil {
		return nil, coreerr.State("compute pnl stats", err)
	}
	return s, nil
}

// PnLPositions is the pnl_positions callable surface operation.
func (c *Core) PnLPositions(ctx context.Context) ([]pnl.TokenPnL, error) {
	p, err := c.PnL.Portfolio(ctx)
	if err != nil {
		return nil, coreerr.State("load positions", err)
	}
	return p.Tokens, nil
}

// PnLExport is the pnl_export callable surface operation.
func (c *Core) PnLExport(ctx context.Context, format string) ([]byte, error) {
	f := pnl.ExportFormat(strings.ToLower(format))
	if f == "" {
		f = pnl.ExportCSV
	}
	out, err := c.PnL.Export(ctx, f)
	if err != nil {
		return nil, coreerr.State("export trade history", err)
	}
	return out, nil
}

// PnLReset is the pnl_reset callable surface operation.
func (c *Core) PnLReset(ctx context.Context) error {
	if err := c.PnL.Reset(ctx); err != nil {
		return coreerr.State("reset pnl baseline", err)
	}
	return nil
}

// AddTarget is the add_target callable surface operation. token may be
// a symbol or mint.
func (c *Core) AddTarget(ctx context.Context, tokenQuery string, kind ledger.TargetType, value decimal.Decimal, sellAmount string) (*ledger.SellTarget, error) {
	mint, err := c.resolveMint(ctx, tokenQuery)
	if err != nil {
		return nil, err
	}
	price, ok, perr := c.Prices.GetPrice(ctx, mint)
	if perr != nil || !ok {
		return nil, coreerr.Remote("price lookup for new target", perr)
	}

	t := &ledger.SellTarget{
		Mint:        mint,
		Symbol:      token.SymbolForMint(mint),
		Type:        kind,
		TargetValue: value,
		SellAmount:  sellAmount,
		EntryPrice:  price,
		Status:      ledger.TargetPending,
	}
	if err := c.Ledger.InsertTarget(ctx, t); err != nil {
		return nil, coreerr.State("insert target", err)
	}
	return t, nil
}

// RemoveTarget is the remove_target callable surface operation.
func (c *Core) RemoveTarget(ctx context.Context, id uuid.UUID) error {
	if err := c.Ledger.CancelTarget(ctx, id); err != nil {
		return coreerr.State("cancel target", err)
	}
	return nil
}

// GetActiveTargets is the get_active_targets callable surface operation.
func (c *Core) GetActiveTargets(ctx context.Context) ([]*ledger.SellTarget, error) {
	targets, err := c.Ledger.ActiveTargets(ctx)
	if err != nil {
		return nil, coreerr.State("load active targets", err)
	}
	return targets, nil
}

// ScanFilter narrows scan_opportunities results.
type ScanFilter struct {
	Query    string
	MinLiqUSD   float64
	MinVol24hUSD float64
	Limit    int
}

// ScanOpportunities is the scan_opportunities callable surface
// operation: DexScreener pair search filtered by liquidity/volume.
func (c *Core) ScanOpportunities(ctx context.Context, f ScanFilter) ([]dexscreener.Pair, error) {
	pairs, err := c.Dex.SearchPairs(ctx, f.Query)
	if err != nil {
		return nil, coreerr.Remote("scan opportunities", err)
	}

	var out []dexscreener.Pair
	for _, p := range pairs {
		if p.Liquidity.USD < f.MinLiqUSD {
			continue
		}
		if p.Volume.H24 < f.MinVol24hUSD {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// WatchToken is the watch_token callable surface operation.
func (c *Core) WatchToken(ctx context.Context, tokenQuery, condition string) (*ledger.WatchlistEntry, error) {
	mint, err := c.resolveMint(ctx, tokenQuery)
	if err != nil {
		return nil, err
	}
	e := &ledger.WatchlistEntry{
		Mint:           mint,
		Symbol:         token.SymbolForMint(mint),
		AlertCondition: condition,
		AddedAt:        time.Now().UTC(),
	}
	if err := c.Ledger.UpsertWatchlistEntry(ctx, e); err != nil {
		return nil, coreerr.State("add to watchlist", err)
	}
	if c.WSPrice != nil {
		if err := c.WSPrice.Subscribe([]string{mint}); err != nil {
			log.Warn().Err(err).Str("mint", mint).Msg("core: live price feed subscribe failed")
		}
	}
	return e, nil
}

// GetWatchlist is the get_watchlist callable surface operation.
func (c *Core) GetWatchlist(ctx context.Context) ([]*ledger.WatchlistEntry, error) {
	entries, err := c.Ledger.Watchlist(ctx)
	if err != nil {
		return nil, coreerr.State("load watchlist", err)
	}
	return entries, nil
}

// RemoveFromWatchlist is the remove_from_watchlist callable surface
// operation.
func (c *Core) RemoveFromWatchlist(ctx context.Context, mint string) error {
	if err := c.Ledger.RemoveWatchlistEntry(ctx, mint); err != nil {
		return coreerr.State("remove from watchlist", err)
	}
	return nil
}

// DaemonStart is the daemon start callable surface operation.
func (c *Core) DaemonStart() (*daemon.Status, error) {
	st, err := c.Daemon.Start()
	if err != nil {
		return nil, coreerr.FatalErr("start daemon", err)
	}
	return st, nil
}

// DaemonStop is the daemon stop callable surface operation.
func (c *Core) DaemonStop() error {
	if err := c.Daemon.Stop(); err != nil {
		return coreerr.FatalErr("stop daemon", err)
	}
	return nil
}

// DaemonStatus is the daemon status callable surface operation.
func (c *Core) DaemonStatus() (*daemon.Status, error) {
	st, err := c.Daemon.Status()
	if err != nil {
		return nil, coreerr.FatalErr("daemon status", err)
	}
	return st, nil
}

// DaemonLogPath is the daemon logs callable surface operation's backing
// path; transports tail or read the file themselves.
func (c *Core) DaemonLogPath() (string, error) {
	st, err := c.Daemon.Status()
	if err != nil {
		return "", coreerr.FatalErr("daemon log path", err)
	}
	return st.LogFile, nil
}

// ParseAmount is a shared helper transports use to validate a raw
// numeric string before handing it to Quote/QuickTrade.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, coreerr.User(fmt.Sprintf("invalid amount %q", s), err)
	}
	return d, nil
}

// ParseUSD parses a "$123.45" or "123.45" string into a decimal.
func ParseUSD(s string) (decimal.Decimal, error) {
	if len(s) > 0 && s[0] == '$' {
		s = s[1:]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Zero, coreerr.User(fmt.Sprintf("invalid USD amount %q", s), err)
	}
	return decimal.NewFromFloat(f), nil
}
