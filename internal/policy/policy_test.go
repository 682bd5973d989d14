package policy

import (
	"testing"

	"github.com/shopspring/decimal"
)

func baseConfig() Config {
	return Config{
		MaxSlippageBps:        100,
		MaxTradeUSD:           decimal.NewFromInt(50),
		MinRugcheckScore:      2000,
		RequireMintDisabled:   true,
		RequireFreezeDisabled: true,
	}
}

func TestAllowsKnownSafePairWithoutRugcheck(t *testing.T) {
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      baseConfig(),
	})
	if !r.Allowed {
		t.Fatalf("expected allowed, got blocked: %s", r.Reason)
	}
}

func TestBlocksExcessiveSlippage(t *testing.T) {
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 500,
		Config:      baseConfig(),
	})
	if r.Allowed {
		t.Fatal("expected blocked for excessive slippage")
	}
	if len(r.ChecksFailed) != 1 || r.ChecksFailed[0] != "slippage (500bps > max 100bps)" {
		t.Fatalf("unexpected checks_failed: %+v", r.ChecksFailed)
	}
}

func TestBlocksExcessiveNotional(t *testing.T) {
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		AmountUSD:   decimal.NewFromInt(500),
		SlippageBps: 50,
		Config:      baseConfig(),
	})
	if r.Allowed {
		t.Fatal("expected blocked for oversized trade")
	}
}

func TestDenyListBlocksRegardlessOfOtherChecks(t *testing.T) {
	cfg := baseConfig()
	cfg.DenyMints = []string{"BADMINT"}
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "BADMINT",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      cfg,
	})
	if r.Allowed {
		t.Fatal("expected blocked by deny list")
	}
}

func TestAllowListRestrictsToWhitelist(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowMints = []string{"ONLYTHIS"}
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "SOMEOTHERMINT",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      cfg,
	})
	if r.Allowed {
		t.Fatal("expected blocked: to_mint not in allow list and not known-safe")
	}
}

func TestUnknownTokenRequiresRugcheck(t *testing.T) {
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "UNKNOWNMINT",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      baseConfig(),
	})
	if r.Allowed {
		t.Fatal("expected blocked without a rugcheck result")
	}
	found := false
	for _, f := range r.ChecksFailed {
		if f == "rugcheck required for unknown token" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected rugcheck-required failure, got %+v", r.ChecksFailed)
	}
}

func TestRugcheckMintAuthorityStillActiveBlocks(t *testing.T) {
	active := "someAuthority"
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "UNKNOWNMINT",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      baseConfig(),
		Rugcheck: &RugcheckResult{
			Summary: RugcheckSummary{MintAuthority: &active},
		},
	})
	if r.Allowed {
		t.Fatal("expected blocked: mint authority still active")
	}
}

func TestRugcheckPassesWhenAuthoritiesDisabledAndScoreOK(t *testing.T) {
	score := 100
	r := Check(Input{
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "UNKNOWNMINT",
		AmountUSD:   decimal.NewFromInt(10),
		SlippageBps: 50,
		Config:      baseConfig(),
		Rugcheck: &RugcheckResult{
			Score:   &score,
			Summary: RugcheckSummary{},
		},
	})
	if !r.Allowed {
		t.Fatalf("expected allowed, got blocked: %s", r.Reason)
	}
}
