// Package restapi is the REST transport: a fiber app exposing Core's
// callable surface as JSON routes, adapted from the teacher's signal
// ingestion server (same fiber.Config, JSON-in/JSON-out handler shape)
// generalized from a single webhook endpoint into a full route table.
package restapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"slopesniper/internal/core"
	"slopesniper/internal/coreerr"
	"slopesniper/internal/ledger"
)

// Server runs the HTTP API over a Core.
type Server struct {
	app  *fiber.App
	core *core.Core
}

// NewServer builds a Server with every route wired to core.
func NewServer(c *core.Core) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{app: app, core: c}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Unix()})
	})

	s.app.Get("/status", s.handleGetStatus)

	s.app.Post("/wallet/setup", s.handleSetupWallet)
	s.app.Get("/wallet/export", s.handleExportWallet)
	s.app.Get("/wallet/backups", s.handleListBackups)
	s.app.Post("/wallet/restore/:ts", s.handleRestoreBackup)
	s.app.Get("/wallet/:address", s.handleGetWallet)

	s.app.Post("/strategy", s.handleSetStrategy)
	s.app.Get("/strategy", s.handleGetStrategy)
	s.app.Get("/strategies", s.handleListStrategies)

	s.app.Get("/price/:token", s.handleGetPrice)
	s.app.Get("/search/:query", s.handleSearchToken)
	s.app.Get("/check/:mint", s.handleCheckToken)

	s.app.Post("/quote", s.handleQuote)
	s.app.Post("/swap/confirm", s.handleSwapConfirm)
	s.app.Post("/trade/quick", s.handleQuickTrade)
	s.app.Post("/trade/record", s.handleRecordTrade)
	s.app.Get("/trade/history", s.handleGetTradeHistory)

	s.app.Get("/pnl", s.handleGetPortfolioPnL)
	s.app.Post("/pnl/init", s.handlePnLInit)
	s.app.Get("/pnl/positions", s.handlePnLPositions)
	s.app.Get("/pnl/stats", s.handlePnLStats)
	s.app.Get("/pnl/export", s.handlePnLExport)
	s.app.Post("/pnl/reset", s.handlePnLReset)

	s.app.Post("/targets", s.handleAddTarget)
	s.app.Delete("/targets/:id", s.handleRemoveTarget)
	s.app.Get("/targets", s.handleGetActiveTargets)

	s.app.Get("/scan", s.handleScanOpportunities)
	s.app.Get("/launches", s.handleRecentLaunches)
	s.app.Post("/watchlist", s.handleWatchToken)
	s.app.Get("/watchlist", s.handleGetWatchlist)
	s.app.Delete("/watchlist/:mint", s.handleRemoveFromWatchlist)

	s.app.Post("/daemon/start", s.handleDaemonStart)
	s.app.Post("/daemon/stop", s.handleDaemonStop)
	s.app.Get("/daemon/status", s.handleDaemonStatus)
	s.app.Get("/daemon/logs", s.handleDaemonLogs)
}

// statusFor maps a coreerr.Kind to an HTTP status code.
func statusFor(err error) int {
	switch coreerr.KindOf(err) {
	case coreerr.KindUser:
		return fiber.StatusBadRequest
	case coreerr.KindConfig:
		return fiber.StatusUnprocessableEntity
	case coreerr.KindRemote:
		return fiber.StatusBadGateway
	case coreerr.KindState:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	log.Error().Err(err).Str("path", c.Path()).Msg("restapi: request failed")
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleGetStatus(c *fiber.Ctx) error {
	st, err := s.core.GetStatus(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

type setupWalletRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleSetupWallet(c *fiber.Ctx) error {
	var req setupWalletRequest
	_ = c.BodyParser(&req)
	res, err := s.core.SetupWallet(c.Context(), req.Key)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleExportWallet(c *fiber.Ctx) error {
	key, err := s.core.ExportWallet(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"private_key": key})
}

func (s *Server) handleListBackups(c *fiber.Ctx) error {
	refs, err := s.core.ListBackups(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(refs)
}

func (s *Server) handleRestoreBackup(c *fiber.Ctx) error {
	if err := s.core.RestoreBackup(c.Context(), c.Params("ts")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "restored"})
}

func (s *Server) handleGetWallet(c *fiber.Ctx) error {
	holdings, err := s.core.GetWallet(c.Context(), c.Params("address"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(holdings)
}

type setStrategyRequest struct {
	Preset              string  `json:"preset"`
	Name                string  `json:"name"`
	MaxTradeUSD         float64 `json:"max_trade_usd"`
	AutoExecuteUnderUSD float64 `json:"auto_execute_under_usd"`
	MaxLossPct          float64 `json:"max_loss_pct"`
	SlippageBps         int     `json:"slippage_bps"`
	RequireRugcheck     bool    `json:"require_rugcheck"`
}

func (s *Server) handleSetStrategy(c *fiber.Ctx) error {
	var req setStrategyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}

	var overrides *ledger.Strategy
	if req.MaxTradeUSD != 0 || req.AutoExecuteUnderUSD != 0 || req.MaxLossPct != 0 || req.SlippageBps != 0 || req.Name != "" {
		overrides = &ledger.Strategy{
			Name:                req.Name,
			MaxTradeUSD:         decimal.NewFromFloat(req.MaxTradeUSD),
			AutoExecuteUnderUSD: decimal.NewFromFloat(req.AutoExecuteUnderUSD),
			MaxLossPct:          decimal.NewFromFloat(req.MaxLossPct),
			SlippageBps:         req.SlippageBps,
			RequireRugcheck:     req.RequireRugcheck,
		}
	}

	strat, err := s.core.SetStrategy(c.Context(), req.Preset, overrides)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(strat)
}

func (s *Server) handleGetStrategy(c *fiber.Ctx) error {
	strat, err := s.core.GetStrategy(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(strat)
}

func (s *Server) handleListStrategies(c *fiber.Ctx) error {
	strats, err := s.core.ListStrategies(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(strats)
}

func (s *Server) handleGetPrice(c *fiber.Ctx) error {
	price, err := s.core.GetPrice(c.Context(), c.Params("token"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"price_usd": price})
}

func (s *Server) handleSearchToken(c *fiber.Ctx) error {
	results, err := s.core.SearchToken(c.Context(), c.Params("query"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(results)
}

func (s *Server) handleCheckToken(c *fiber.Ctx) error {
	summary, err := s.core.CheckToken(c.Context(), c.Params("mint"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summary)
}

type quoteRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	SlippageBps int    `json:"slippage_bps"`
}

func (s *Server) handleQuote(c *fiber.Ctx) error {
	var req quoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	res, err := s.core.Quote(c.Context(), req.From, req.To, req.Amount, req.SlippageBps)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

type swapConfirmRequest struct {
	IntentID string `json:"intent_id"`
}

func (s *Server) handleSwapConfirm(c *fiber.Ctx) error {
	var req swapConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	id, err := uuid.Parse(req.IntentID)
	if err != nil {
		return fail(c, coreerr.User("invalid intent_id", err))
	}
	res, err := s.core.SwapConfirm(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

type quickTradeRequest struct {
	Action string  `json:"action"`
	Token  string  `json:"token"`
	USD    float64 `json:"usd"`
}

func (s *Server) handleQuickTrade(c *fiber.Ctx) error {
	var req quickTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	res, err := s.core.QuickTrade(c.Context(), req.Action, req.Token, decimal.NewFromFloat(req.USD))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleRecordTrade(c *fiber.Ctx) error {
	var t ledger.Trade
	if err := c.BodyParser(&t); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	if err := s.core.RecordTrade(c.Context(), &t); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "recorded"})
}

func (s *Server) handleGetTradeHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	trades, err := s.core.GetTradeHistory(c.Context(), c.Query("mint"), limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(trades)
}

func (s *Server) handleGetPortfolioPnL(c *fiber.Ctx) error {
	p, err := s.core.GetPortfolioPnL(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

type pnlInitRequest struct {
	Value string `json:"value"`
}

func (s *Server) handlePnLInit(c *fiber.Ctx) error {
	var req pnlInitRequest
	_ = c.BodyParser(&req)
	if err := s.core.PnLInit(c.Context(), req.Value); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "initialized"})
}

func (s *Server) handlePnLPositions(c *fiber.Ctx) error {
	positions, err := s.core.PnLPositions(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(positions)
}

func (s *Server) handlePnLStats(c *fiber.Ctx) error {
	stats, err := s.core.PnLStats(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handlePnLExport(c *fiber.Ctx) error {
	format := c.Query("format", "csv")
	out, err := s.core.PnLExport(c.Context(), format)
	if err != nil {
		return fail(c, err)
	}
	if format == "json" {
		c.Set("Content-Type", "application/json")
	} else {
		c.Set("Content-Type", "text/csv; charset=utf-8")
	}
	return c.Send(out)
}

func (s *Server) handlePnLReset(c *fiber.Ctx) error {
	if err := s.core.PnLReset(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "reset"})
}

type addTargetRequest struct {
	Token      string  `json:"token"`
	Kind       string  `json:"kind"`
	Value      float64 `json:"value"`
	SellAmount string  `json:"sell_amount"`
}

func (s *Server) handleAddTarget(c *fiber.Ctx) error {
	var req addTargetRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	t, err := s.core.AddTarget(c.Context(), req.Token, ledger.TargetType(req.Kind), decimal.NewFromFloat(req.Value), req.SellAmount)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(t)
}

func (s *Server) handleRemoveTarget(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, coreerr.User("invalid target id", err))
	}
	if err := s.core.RemoveTarget(c.Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "removed"})
}

func (s *Server) handleGetActiveTargets(c *fiber.Ctx) error {
	targets, err := s.core.GetActiveTargets(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(targets)
}

func (s *Server) handleScanOpportunities(c *fiber.Ctx) error {
	filter := core.ScanFilter{
		Query:        c.Query("query"),
		MinLiqUSD:    c.QueryFloat("min_liquidity_usd", 0),
		MinVol24hUSD: c.QueryFloat("min_volume_usd", 0),
		Limit:        c.QueryInt("limit", 20),
	}
	pairs, err := s.core.ScanOpportunities(c.Context(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(pairs)
}

func (s *Server) handleRecentLaunches(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	return c.JSON(s.core.RecentLaunches(c.Context(), limit))
}

type watchTokenRequest struct {
	Token     string `json:"token"`
	Condition string `json:"condition"`
}

func (s *Server) handleWatchToken(c *fiber.Ctx) error {
	var req watchTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, coreerr.User("invalid request body", err))
	}
	entry, err := s.core.WatchToken(c.Context(), req.Token, req.Condition)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(entry)
}

func (s *Server) handleGetWatchlist(c *fiber.Ctx) error {
	entries, err := s.core.GetWatchlist(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(entries)
}

func (s *Server) handleRemoveFromWatchlist(c *fiber.Ctx) error {
	if err := s.core.RemoveFromWatchlist(c.Context(), c.Params("mint")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "removed"})
}

func (s *Server) handleDaemonStart(c *fiber.Ctx) error {
	st, err := s.core.DaemonStart()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

func (s *Server) handleDaemonStop(c *fiber.Ctx) error {
	if err := s.core.DaemonStop(); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "stopped"})
}

func (s *Server) handleDaemonStatus(c *fiber.Ctx) error {
	st, err := s.core.DaemonStatus()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(st)
}

func (s *Server) handleDaemonLogs(c *fiber.Ctx) error {
	path, err := s.core.DaemonLogPath()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"log_file": path})
}

// Listen starts the HTTP server on addr, blocking until it stops.
func (s *Server) Listen(addr string) error {
	log.Info().Str("addr", addr).Msg("restapi: starting server")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
