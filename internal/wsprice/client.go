// Package wsprice maintains a reconnecting WebSocket subscription to a
// Jupiter-adjacent live price feed for watchlisted mints, pushing ticks
// into a shared cache instead of making TargetEngine poll every mint on
// every tick. Adapted from the teacher's internal/websocket price-feed
// reconnect/resubscribe loop, generalized from Solana account
// subscriptions to a plain mint->price tick stream.
package wsprice

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PriceSink receives a push price update for a mint, e.g.
// pricecache.Cache.Set bound with a TTL.
type PriceSink interface {
	Set(ctx context.Context, mint string, price decimal.Decimal, ttl time.Duration)
}

// Client manages a reconnecting WebSocket subscription to a price feed.
type Client struct {
	url string

	mu             sync.RWMutex
	conn           *websocket.Conn
	connected      bool
	reconnectDelay time.Duration
	subscribed     []string
	closeCh        chan struct{}

	sink PriceSink
	ttl  time.Duration
}

// NewClient builds a client that pushes every tick into sink, cached
// for ttl.
func NewClient(url string, sink PriceSink, ttl time.Duration) *Client {
	return &Client{
		url:            url,
		sink:           sink,
		ttl:            ttl,
		reconnectDelay: 5 * time.Second,
		closeCh:        make(chan struct{}),
	}
}

// Connect dials the feed and starts the read loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("wsprice: dial: %w", err)
	}
	c.conn = conn
	c.connected = true

	go c.readLoop()
	return nil
}

// Close ends the subscription and stops reconnect attempts.
func (c *Client) Close() error {
	close(c.closeCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Subscribe adds mints to the live feed, resubscribed automatically
// after a reconnect.
func (c *Client) Subscribe(mints []string) error {
	c.mu.Lock()
	c.subscribed = append(c.subscribed, mints...)
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if !connected {
		return nil // picked up once Connect succeeds
	}
	return conn.WriteJSON(subscribeRequest{Method: "subscribe", Mints: mints})
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Mints  []string `json:"mints"`
}

type priceTick struct {
	Mint     string `json:"mint"`
	PriceUSD string `json:"priceUsd"`
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("wsprice: read error, reconnecting")
			go c.reconnect()
			return
		}
		c.route(message)
	}
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	for {
		select {
		case <-c.closeCh:
			return
		case <-time.After(c.reconnectDelay):
			if err := c.Connect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("wsprice: reconnect failed")
				continue
			}
			c.mu.RLock()
			mints := append([]string(nil), c.subscribed...)
			c.mu.RUnlock()
			if len(mints) > 0 {
				if err := c.Subscribe(mints); err != nil {
					log.Warn().Err(err).Msg("wsprice: resubscribe failed")
				}
			}
			return
		}
	}
}

func (c *Client) route(raw []byte) {
	var tick priceTick
	if err := json.Unmarshal(raw, &tick); err != nil || tick.Mint == "" {
		return
	}
	price, err := decimal.NewFromString(tick.PriceUSD)
	if err != nil {
		return
	}
	c.sink.Set(context.Background(), tick.Mint, price, c.ttl)
}
