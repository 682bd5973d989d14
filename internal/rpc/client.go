// Package rpc is a trimmed Solana JSON-RPC client: balance lookups,
// raw transaction submission, and latest-blockhash fetches, guarded by
// a primary/fallback circuit breaker.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Client issues Solana JSON-RPC 2.0 calls against a primary endpoint,
// falling back to a secondary endpoint once the primary trips its
// circuit breaker.
type Client struct {
	primaryURL  string
	fallbackURL string
	httpClient  *http.Client

	mu          sync.RWMutex
	failures    int
	lastFailure time.Time
	circuitOpen bool
}

// request is the JSON-RPC 2.0 envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// response is the JSON-RPC 2.0 response envelope.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

const circuitResetAfter = 30 * time.Second
const circuitOpensAfterFailures = 5

// NewClient builds a client that calls primaryURL, falling back to
// fallbackURL when the circuit breaker is open or the primary call
// fails outright.
func NewClient(primaryURL, fallbackURL string) *Client {
	return &Client{
		primaryURL:  primaryURL,
		fallbackURL: fallbackURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// BlockhashResult is the result of getLatestBlockhash.
type BlockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// GetLatestBlockhash fetches the latest confirmed blockhash.
func (c *Client) GetLatestBlockhash(ctx context.Context) (*BlockhashResult, error) {
	req := request{
		JSONRPC: "2.0", ID: 1, Method: "getLatestBlockhash",
		Params: []any{map[string]string{"commitment": "confirmed"}},
	}
	var result BlockhashResult
	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBalance fetches the lamport balance for a public key.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	req := request{
		JSONRPC: "2.0", ID: 1, Method: "getBalance",
		Params: []any{pubkey, map[string]string{"commitment": "confirmed"}},
	}
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, req, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// SendRawTransaction submits a base64-encoded signed transaction and
// returns its signature.
func (c *Client) SendRawTransaction(ctx context.Context, signedTxBase64 string, skipPreflight bool) (string, error) {
	req := request{
		JSONRPC: "2.0", ID: 1, Method: "sendTransaction",
		Params: []any{
			signedTxBase64,
			map[string]any{
				"encoding":            "base64",
				"skipPreflight":       skipPreflight,
				"preflightCommitment": "processed",
				"maxRetries":          3,
			},
		},
	}
	var signature string
	if err := c.call(ctx, req, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot                uint64  `json:"slot"`
	Confirmations       *uint64 `json:"confirmations"`
	Err                 any     `json:"err"`
	ConfirmationStatus  string  `json:"confirmationStatus"`
}

// GetSignatureStatuses checks the landing status of transaction signatures.
func (c *Client) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	req := request{
		JSONRPC: "2.0", ID: 1, Method: "getSignatureStatuses",
		Params: []any{signatures, map[string]bool{"searchTransactionHistory": true}},
	}
	var result struct {
		Value []*SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, req, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

func (c *Client) call(ctx context.Context, req request, result any) error {
	if c.isCircuitOpen() {
		return c.callURL(ctx, c.fallbackURL, req, result)
	}

	err := c.callURL(ctx, c.primaryURL, req, result)
	if err != nil {
		c.recordFailure()
		log.Warn().Err(err).Msg("rpc: primary endpoint failed, trying fallback")
		return c.callURL(ctx, c.fallbackURL, req, result)
	}
	c.recordSuccess()
	return nil
}

func (c *Client) callURL(ctx context.Context, url string, rpcReq request, result any) error {
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("rpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpc: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("rpc: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("rpc: http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("rpc: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("rpc: unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.circuitOpen {
		return false
	}
	return time.Since(c.lastFailure) <= circuitResetAfter
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	c.lastFailure = time.Now()
	if c.failures >= circuitOpensAfterFailures {
		c.circuitOpen = true
		log.Warn().Msg("rpc: circuit breaker opened")
	}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = 0
	c.circuitOpen = false
}
