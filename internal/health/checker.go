// Package health runs a background liveness probe against the RPC
// endpoint and the Jupiter aggregator, surfaced through get_status so a
// caller can tell a stale quote from a genuinely down dependency.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"slopesniper/internal/rpc"
)

// Status reports the liveness of one upstream dependency.
type Status struct {
	Name    string
	Healthy bool
	Latency time.Duration
	Error   string
}

// Checker periodically probes RPC and Jupiter reachability.
type Checker struct {
	mu       sync.RWMutex
	statuses []Status

	rpc         *rpc.Client
	jupiterBase string
	httpClient  *http.Client

	cancel context.CancelFunc
}

// NewChecker builds a Checker over an already-constructed RPC client and
// the Jupiter API's base URL.
func NewChecker(rpcClient *rpc.Client, jupiterBaseURL string) *Checker {
	return &Checker{
		rpc:         rpcClient,
		jupiterBase: jupiterBaseURL,
		httpClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Start begins periodic health checks every interval until ctx is
// cancelled or Stop is called.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.check(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.check(ctx)
			}
		}
	}()
}

// Stop ends the background probe loop. Safe to call even if Start was
// never called.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Checker) check(ctx context.Context) {
	statuses := []Status{c.checkRPC(ctx), c.checkJupiter(ctx)}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

func (c *Checker) checkRPC(ctx context.Context) Status {
	start := time.Now()
	_, err := c.rpc.GetLatestBlockhash(ctx)
	s := Status{Name: "rpc", Latency: time.Since(start), Healthy: err == nil}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func (c *Checker) checkJupiter(ctx context.Context) Status {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jupiterBase, nil)
	s := Status{Name: "jupiter"}
	if err != nil {
		s.Error = err.Error()
		return s
	}

	resp, err := c.httpClient.Do(req)
	s.Latency = time.Since(start)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	defer resp.Body.Close()

	// Jupiter has no dedicated health route; any response (even 404)
	// proves the host is reachable, so only connection-level errors
	// count as unhealthy.
	s.Healthy = true
	return s
}

// Statuses returns the most recent check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Status, len(c.statuses))
	copy(out, c.statuses)
	return out
}
