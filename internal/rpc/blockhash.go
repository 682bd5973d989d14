package rpc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// cachedBlockhash is one fetched blockhash with its fetch time.
type cachedBlockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
	FetchedAt            time.Time
}

// BlockhashCache double-buffers the latest blockhash so ExecEngine's
// confirm path never blocks on an RPC round trip to stitch a fresh
// blockhash into an aggregator-issued transaction.
type BlockhashCache struct {
	current atomic.Pointer[cachedBlockhash]
	next    atomic.Pointer[cachedBlockhash]

	client   *Client
	ttl      time.Duration
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBlockhashCache builds a cache that refreshes every interval and
// treats entries older than ttl as stale.
func NewBlockhashCache(client *Client, interval, ttl time.Duration) *BlockhashCache {
	return &BlockhashCache{client: client, interval: interval, ttl: ttl, stopCh: make(chan struct{})}
}

// Start performs the initial fetch (must succeed) and begins the
// background refresh loop.
func (c *BlockhashCache) Start() error {
	if err := c.fetchAndRotate(); err != nil {
		return err
	}
	c.wg.Add(1)
	go c.prefetchLoop()
	return nil
}

// Stop halts the background refresh loop.
func (c *BlockhashCache) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// Get returns the cached blockhash, forcing a synchronous refresh only
// when both buffers have gone stale.
func (c *BlockhashCache) Get() (string, uint64, error) {
	if cached := c.current.Load(); cached != nil && time.Since(cached.FetchedAt) < c.ttl {
		return cached.Hash, cached.LastValidBlockHeight, nil
	}
	if next := c.next.Load(); next != nil && time.Since(next.FetchedAt) < c.ttl {
		return next.Hash, next.LastValidBlockHeight, nil
	}

	log.Warn().Msg("rpc: blockhash cache miss, forcing sync refresh")
	if err := c.fetchAndRotate(); err != nil {
		return "", 0, err
	}
	cached := c.current.Load()
	return cached.Hash, cached.LastValidBlockHeight, nil
}

func (c *BlockhashCache) prefetchLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.fetchAndRotate(); err != nil {
				log.Warn().Err(err).Msg("rpc: blockhash prefetch failed")
			}
		}
	}
}

func (c *BlockhashCache) fetchAndRotate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	result, err := c.client.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}

	fresh := &cachedBlockhash{
		Hash:                 result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
		FetchedAt:            time.Now(),
	}

	current := c.current.Load()
	c.current.Store(c.next.Load())
	c.next.Store(fresh)
	if current == nil {
		c.current.Store(fresh)
	}
	return nil
}
