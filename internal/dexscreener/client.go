// Package dexscreener is a thin client for the public DexScreener API:
// pair search and per-token pair lookups, used for momentum/liquidity
// signals outside the policy engine's trust gates.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const baseURL = "https://api.dexscreener.com"

// Client is a no-auth DexScreener API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Pair is one trading pair as DexScreener reports it.
type Pair struct {
	ChainID       string        `json:"chainId"`
	DexID         string        `json:"dexId"`
	PairAddress   string        `json:"pairAddress"`
	BaseToken     TokenRef      `json:"baseToken"`
	QuoteToken    TokenRef      `json:"quoteToken"`
	PriceUSD      string        `json:"priceUsd"`
	PriceChange   PriceChange   `json:"priceChange"`
	Volume        Volume        `json:"volume"`
	Liquidity     Liquidity     `json:"liquidity"`
	Txns          TxnCounts     `json:"txns"`
	PairCreatedAt int64         `json:"pairCreatedAt"`
	URL           string        `json:"url"`
}

type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type PriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

type Volume struct {
	H24 float64 `json:"h24"`
}

type Liquidity struct {
	USD float64 `json:"usd"`
}

type TxnCounts struct {
	H24 struct {
		Buys  int `json:"buys"`
		Sells int `json:"sells"`
	} `json:"h24"`
}

type searchResponse struct {
	Pairs []Pair `json:"pairs"`
}

// SearchPairs searches by name, symbol, or address and returns Solana
// pairs only.
func (c *Client) SearchPairs(ctx context.Context, query string) ([]Pair, error) {
	var resp searchResponse
	url := fmt.Sprintf("%s/latest/dex/search?q=%s", c.baseURL, query)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener: search pairs: %w", err)
	}
	return filterSolana(resp.Pairs), nil
}

// GetTokenPairs fetches all known pairs for a mint.
func (c *Client) GetTokenPairs(ctx context.Context, mint string) ([]Pair, error) {
	var pairs []Pair
	url := fmt.Sprintf("%s/tokens/v1/solana/%s", c.baseURL, mint)
	if err := c.getJSON(ctx, url, &pairs); err != nil {
		return nil, fmt.Errorf("dexscreener: get token pairs: %w", err)
	}
	return pairs, nil
}

func filterSolana(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.ChainID == "solana" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "slopesniper/0.1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("dexscreener: non-200 response")
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
