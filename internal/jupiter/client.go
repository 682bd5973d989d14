// Package jupiter is a client for the Jupiter Ultra API: quote-with-
// unsigned-transaction ("order"), signed-transaction submission
// ("execute"), and wallet holdings lookup. HTTP/2 pooled transport and
// key rotation are adapted from an earlier Metis-API client; the
// endpoints themselves target Ultra.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
)

// BaseURL is the Jupiter Ultra API root.
const BaseURL = "https://api.jup.ag/ultra/v1"

// SOLMint is the wrapped-SOL mint address Ultra quotes speak in.
const SOLMint = "So11111111111111111111111111111111111111112"

const maxRetries = 5

// Client talks to the Ultra API with pooled HTTP/2 connections and
// round-robin API-key rotation.
type Client struct {
	baseURL    string
	clientPool *httpClientPool
	apiKeys    []string
	keyIdx     atomic.Uint32
}

// DefaultAPIKeys returns the fallback key set used when neither an
// explicit key nor JUPITER_API_KEYS is configured. Production
// deployments should always set JUPITER_API_KEYS.
func DefaultAPIKeys() []string {
	return []string{""}
}

// httpClientPool round-robins requests across a small set of HTTP/2
// clients so one slow connection doesn't serialize every call.
type httpClientPool struct {
	clients []*http.Client
	idx     atomic.Uint32
}

func newHTTPClientPool(size int, timeout time.Duration) *httpClientPool {
	pool := &httpClientPool{clients: make([]*http.Client, size)}
	for i := 0; i < size; i++ {
		transport := &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		http2.ConfigureTransport(transport)
		pool.clients[i] = &http.Client{Transport: transport, Timeout: timeout}
	}
	return pool
}

func (p *httpClientPool) get() *http.Client {
	idx := p.idx.Add(1)
	return p.clients[idx%uint32(len(p.clients))]
}

// NewClient builds an Ultra API client. apiKeys is round-robined across
// requests; when empty, JUPITER_API_KEYS (comma-separated) is read,
// falling back to DefaultAPIKeys.
func NewClient(timeout time.Duration, apiKeys []string) *Client {
	if len(apiKeys) == 0 {
		if env := os.Getenv("JUPITER_API_KEYS"); env != "" {
			apiKeys = strings.Split(env, ",")
		} else {
			apiKeys = DefaultAPIKeys()
		}
	}
	return &Client{
		baseURL:    BaseURL,
		clientPool: newHTTPClientPool(4, timeout),
		apiKeys:    apiKeys,
	}
}

// SetBaseURL overrides the target host, used by tests to point the
// client at an httptest server.
func (c *Client) SetBaseURL(url string) { c.baseURL = url }

func (c *Client) apiKey() string {
	idx := c.keyIdx.Add(1) % uint32(len(c.apiKeys))
	return c.apiKeys[idx]
}

// Order is the response to GET /order: a quote plus (when taker is set)
// an unsigned transaction ready to sign.
type Order struct {
	InputMint            string  `json:"inputMint"`
	OutputMint           string  `json:"outputMint"`
	InAmount             string  `json:"inAmount"`
	OutAmount            string  `json:"outAmount"`
	OtherAmountThreshold string  `json:"otherAmountThreshold"`
	PriceImpactPct       string  `json:"priceImpactPct,omitempty"`
	PriceImpact          float64 `json:"priceImpact,omitempty"`
	SlippageBps          int     `json:"slippageBps"`
	SwapMode             string  `json:"swapMode"`
	Transaction          string  `json:"transaction"`
	RequestID            string  `json:"requestId"`
	ErrorCode            string  `json:"errorCode,omitempty"`
	ErrorMessage         string  `json:"errorMessage,omitempty"`
	ContextSlot          uint64  `json:"contextSlot,omitempty"`
}

// OrderParams requests a quote and, when Taker is non-empty, an
// unsigned transaction for that wallet to sign.
type OrderParams struct {
	InputMint    string
	OutputMint   string
	AmountAtomic uint64
	Taker        string
	SlippageBps  int
	ExcludeDexes string
}

// GetOrder calls GET /order.
func (c *Client) GetOrder(ctx context.Context, p OrderParams) (*Order, error) {
	url := fmt.Sprintf("%s/order?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		c.baseURL, p.InputMint, p.OutputMint, p.AmountAtomic, p.SlippageBps)
	if p.Taker != "" {
		url += "&taker=" + p.Taker
	}
	if p.ExcludeDexes != "" {
		url += "&excludeDexes=" + p.ExcludeDexes
	}

	var order Order
	if err := c.requestJSON(ctx, http.MethodGet, url, nil, &order); err != nil {
		return nil, fmt.Errorf("jupiter: get order: %w", err)
	}
	if order.ErrorCode != "" {
		log.Warn().Str("code", order.ErrorCode).Str("message", order.ErrorMessage).Msg("jupiter: order has error")
	}
	return &order, nil
}

// ExecuteResult is the response to POST /execute.
type ExecuteResult struct {
	Status             string `json:"status"`
	Signature          string `json:"signature,omitempty"`
	Error              string `json:"error,omitempty"`
	Code               int    `json:"code,omitempty"`
	InputAmountResult  string `json:"inputAmountResult,omitempty"`
	OutputAmountResult string `json:"outputAmountResult,omitempty"`
	SlotSent           uint64 `json:"slotSent,omitempty"`
	SlotLanded         uint64 `json:"slotLanded,omitempty"`
}

// Succeeded reports whether the swap landed on chain.
func (r ExecuteResult) Succeeded() bool { return r.Status == "Success" }

// Execute submits a signed transaction for the requestId returned by a
// prior GetOrder call.
func (c *Client) Execute(ctx context.Context, signedTxBase64, requestID string) (*ExecuteResult, error) {
	body := struct {
		SignedTransaction string `json:"signedTransaction"`
		RequestID         string `json:"requestId"`
	}{SignedTransaction: signedTxBase64, RequestID: requestID}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("jupiter: marshal execute body: %w", err)
	}

	var result ExecuteResult
	url := c.baseURL + "/execute"
	if err := c.requestJSON(ctx, http.MethodPost, url, raw, &result); err != nil {
		return nil, fmt.Errorf("jupiter: execute: %w", err)
	}
	if !result.Succeeded() {
		log.Error().Str("status", result.Status).Str("error", result.Error).Msg("jupiter: execute failed")
	}
	return &result, nil
}

// Holdings is the response to GET /holdings/{address}.
type Holdings struct {
	Tokens map[string]TokenHolding `json:"tokens"`
}

// TokenHolding is one mint's balance within Holdings.
type TokenHolding struct {
	Amount   string  `json:"amount"`
	UIAmount float64 `json:"uiAmount"`
}

// GetHoldings calls GET /holdings/{address}.
func (c *Client) GetHoldings(ctx context.Context, address string) (*Holdings, error) {
	var h Holdings
	url := fmt.Sprintf("%s/holdings/%s", c.baseURL, address)
	if err := c.requestJSON(ctx, http.MethodGet, url, nil, &h); err != nil {
		return nil, fmt.Errorf("jupiter: get holdings: %w", err)
	}
	return &h, nil
}

// requestJSON performs one HTTP call with exponential backoff on
// transport errors and 5xx responses. 4xx responses are returned
// immediately as an error without retrying.
func (c *Client) requestJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if key := c.apiKey(); key != "" {
			req.Header.Set("x-api-key", key)
		}

		resp, err := c.clientPool.get().Do(req)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("jupiter: request failed")
			c.backoff(ctx, attempt)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return json.Unmarshal(respBody, out)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
		default:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
			log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Msg("jupiter: retryable failure")
			c.backoff(ctx, attempt)
		}
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
