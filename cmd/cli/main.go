// Command cli is the terminal transport: a verb-dispatch CLI over
// Core's callable surface (status/quote/confirm/quick/pnl/target/
// daemon/...), plus a free-text entry point backed by internal/nlintent
// and a live bubbletea dashboard, adapted from the teacher's
// runHeadless/runWithTUI dual-mode cmd/bot entrypoint generalized from
// one always-running bot process into individual on-demand commands.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"slopesniper/internal/config"
	"slopesniper/internal/core"
)

func main() {
	setupLogger()
	config.LoadDotenv(".env")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewManager(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dataDir := cfg.Get().Storage.DataDir
	c, err := core.New(cfg, dataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize core")
	}
	defer c.Close()

	verb := os.Args[1]
	args := os.Args[2:]

	if fn, ok := commands[verb]; ok {
		if err := fn(c, args); err != nil {
			printErr("%v", err)
			os.Exit(1)
		}
		return
	}

	// Not a known verb: treat the whole remainder as free text.
	if err := runFreeText(c, joinArgs(os.Args[1:])); err != nil {
		printErr("%v", err)
		os.Exit(1)
	}
}

func configPath() string {
	if p := os.Getenv("SLOPESNIPER_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func setupLogger() {
	log.Logger = zerolog.New(
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "1" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func printUsage() {
	fmt.Println(`slopesniper - personal Solana trading agent

Usage:
  slopesniper <command> [args...]

Commands:
  status                              wallet, balance, strategy, daemon state
  setup-wallet [key]                  generate or import a wallet
  export-wallet                       reveal the wallet private key
  backups                             list wallet key backups
  restore-backup <timestamp>          restore a backup
  strategy [preset]                   show or set the active strategy
  strategies                          list the baked-in presets
  price <token>                       current USD price
  search <query>                      search tokens by name/symbol
  check <mint>                        rugcheck report for a mint
  wallet [address]                    aggregator-reported holdings
  quote <from> <to> <amount> [bps]    get a swap quote
  confirm <intent-id>                 execute a previously quoted swap
  quick <buy|sell> <token> <usd>      auto-execute under the strategy threshold
  history [mint] [limit]              trade history
  pnl                                 portfolio profit/loss
  pnl-stats                           closed-position win rate and gain/loss
  pnl-init [value]                    set the pnl baseline
  pnl-positions                       per-token pnl breakdown
  pnl-export [csv|json]               export trade history
  pnl-reset                           clear the pnl baseline
  target-add <token> <kind> <value> <sellAmount>
  target-remove <id>
  targets                             active sell targets
  scan [query]                        scan for trading opportunities
  launches [limit]                    recent Pump.fun token launches
  watch <token> <condition>
  watchlist
  unwatch <mint>
  daemon <start|stop|status|logs>
  dashboard                           live bubbletea status dashboard

Anything else is parsed as free text, e.g.:
  slopesniper buy BONK for $25`)
}
