// Package jupiterprice is a client for Jupiter's Price API and Token
// Search API: USD pricing for up to 50 mints per call, and a token
// search used by the TokenResolver fallback path.
package jupiterprice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	priceBaseURL  = "https://api.jup.ag/price/v3"
	tokensBaseURL = "https://api.jup.ag/tokens/v2"
	maxIDsPerCall = 50
	maxRetries    = 3
)

// Client talks to the Price and Token Search APIs.
type Client struct {
	httpClient  *http.Client
	priceURL    string
	tokensURL   string
	apiKey      string
}

// NewClient builds a price/search client. apiKey may be empty.
func NewClient(timeout time.Duration, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		priceURL:   priceBaseURL,
		tokensURL:  tokensBaseURL,
		apiKey:     apiKey,
	}
}

// SetBaseURLs overrides both target hosts, used by tests to point the
// client at an httptest server.
func (c *Client) SetBaseURLs(priceURL, tokensURL string) {
	c.priceURL = priceURL
	c.tokensURL = tokensURL
}

// PriceEntry is one mint's quote from the Price API.
type PriceEntry struct {
	USDPrice decimal.Decimal `json:"usdPrice"`
}

// GetPrices fetches USD prices for up to 50 mints in one call; extra
// ids beyond the limit are dropped with a warning rather than erroring.
func (c *Client) GetPrices(ctx context.Context, mints []string) (map[string]decimal.Decimal, error) {
	if len(mints) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	if len(mints) > maxIDsPerCall {
		log.Warn().Int("requested", len(mints)).Int("max", maxIDsPerCall).Msg("jupiterprice: truncating mint list")
		mints = mints[:maxIDsPerCall]
	}

	ids := mints[0]
	for _, m := range mints[1:] {
		ids += "," + m
	}

	url := fmt.Sprintf("%s?ids=%s", c.priceURL, ids)
	var raw map[string]PriceEntry
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("jupiterprice: get prices: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(raw))
	for mint, entry := range raw {
		out[mint] = entry.USDPrice
	}
	return out, nil
}

// GetPrice fetches the USD price for a single mint.
func (c *Client) GetPrice(ctx context.Context, mint string) (decimal.Decimal, bool, error) {
	prices, err := c.GetPrices(ctx, []string{mint})
	if err != nil {
		return decimal.Zero, false, err
	}
	p, ok := prices[mint]
	return p, ok, nil
}

// TokenInfo is one search result from the Token Search API.
type TokenInfo struct {
	Mint               string  `json:"id"`
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	Decimals           int     `json:"decimals"`
	MCap               float64 `json:"mcap"`
	OrganicScoreLabel  string  `json:"organicScoreLabel"`
	Audit              TokenAudit `json:"audit"`
}

// TokenAudit is the embedded audit block Jupiter attaches to search hits.
type TokenAudit struct {
	IsSus                    bool    `json:"isSus"`
	MintAuthorityDisabled    bool    `json:"mintAuthorityDisabled"`
	FreezeAuthorityDisabled  bool    `json:"freezeAuthorityDisabled"`
	TopHoldersPercentage     float64 `json:"topHoldersPercentage"`
	DevBalancePercentage     float64 `json:"devBalancePercentage"`
}

// SearchToken searches by symbol, name, or mint address.
func (c *Client) SearchToken(ctx context.Context, query string) ([]TokenInfo, error) {
	url := fmt.Sprintf("%s/search?query=%s", c.tokensURL, query)
	var results []TokenInfo
	if err := c.getJSON(ctx, url, &results); err != nil {
		return nil, fmt.Errorf("jupiterprice: search token: %w", err)
	}
	return results, nil
}

// IsSuspicious flags tokens whose audit metadata looks risky, mirroring
// the heuristic rugcheck/dexscreener gates apply independently.
func IsSuspicious(t TokenInfo) (bool, []string) {
	var reasons []string
	if t.Audit.IsSus {
		reasons = append(reasons, "flagged as suspicious by aggregator")
	}
	if !t.Audit.MintAuthorityDisabled {
		reasons = append(reasons, "mint authority not disabled")
	}
	if !t.Audit.FreezeAuthorityDisabled {
		reasons = append(reasons, "freeze authority not disabled")
	}
	if t.Audit.TopHoldersPercentage > 50 {
		reasons = append(reasons, fmt.Sprintf("high holder concentration: %.1f%%", t.Audit.TopHoldersPercentage))
	}
	if t.Audit.DevBalancePercentage > 10 {
		reasons = append(reasons, fmt.Sprintf("dev holds %.1f%% of supply", t.Audit.DevBalancePercentage))
	}
	if t.OrganicScoreLabel == "low" {
		reasons = append(reasons, "low organic trading activity")
	}
	return len(reasons) > 0, reasons
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return json.Unmarshal(body, out)
		}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("bad request: %s", string(body))
		}
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		c.backoff(ctx, attempt)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("exhausted %d attempts", maxRetries)
	}
	return lastErr
}

func (c *Client) backoff(ctx context.Context, attempt int) {
	if attempt >= maxRetries-1 {
		return
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
