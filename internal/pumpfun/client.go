// Package pumpfun streams new-token-launch and migration events from
// PumpPortal's public WebSocket feed, adapted from the reconnect/
// resubscribe pattern used for Solana account subscriptions.
package pumpfun

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsURL = "wss://pumpportal.fun/api/data"

// Event is a normalized launch, migration, or trade notification.
type Event struct {
	Kind      string // "launch", "migration", "trade"
	Mint      string
	Symbol    string
	Name      string
	Signature string
	Raw       map[string]any
}

// Handler receives events as they arrive.
type Handler func(Event)

// Client manages a reconnecting WebSocket subscription to PumpPortal.
type Client struct {
	url            string
	apiKey         string
	mu             sync.RWMutex
	conn           *websocket.Conn
	connected      bool
	reconnectDelay time.Duration
	handlers       []Handler
	handlersMu     sync.RWMutex
	subscriptions  []subscribeRequest
	closeCh        chan struct{}
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// NewClient builds a client. apiKey may be empty (free tier).
func NewClient(apiKey string) *Client {
	return &Client{
		url:            wsURL,
		apiKey:         apiKey,
		reconnectDelay: 5 * time.Second,
		closeCh:        make(chan struct{}),
	}
}

// OnEvent registers an event handler. Must be called before Connect.
func (c *Client) OnEvent(h Handler) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlersMu.Unlock()
}

func (c *Client) dialURL() string {
	if c.apiKey != "" {
		return fmt.Sprintf("%s?api-key=%s", c.url, c.apiKey)
	}
	return c.url
}

// Connect dials the feed and starts the read loop in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.dialURL(), nil)
	if err != nil {
		return fmt.Errorf("pumpfun: dial: %w", err)
	}
	c.conn = conn
	c.connected = true

	go c.readLoop()
	return nil
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
			log.Warn().Err(err).Msg("pumpfun: read error, reconnecting")
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
				log.Warn().Err(err).Msg("pumpfun: reconnect failed")
				continue
			}
			c.resubscribeAll()
			return
		}
	}
}

func (c *Client) resubscribeAll() {
	c.mu.RLock()
	subs := append([]subscribeRequest(nil), c.subscriptions...)
	c.mu.RUnlock()

	for _, req := range subs {
		if err := c.send(req); err != nil {
			log.Warn().Err(err).Str("method", req.Method).Msg("pumpfun: resubscribe failed")
		}
	}
}

func (c *Client) send(req subscribeRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("pumpfun: not connected")
	}
	return c.conn.WriteJSON(req)
}

// SubscribeNewTokens subscribes to token creation events.
func (c *Client) SubscribeNewTokens() error {
	req := subscribeRequest{Method: "subscribeNewToken"}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, req)
	c.mu.Unlock()
	return c.send(req)
}

// SubscribeMigrations subscribes to bonding-curve-to-DEX migration events.
func (c *Client) SubscribeMigrations() error {
	req := subscribeRequest{Method: "subscribeMigration"}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, req)
	c.mu.Unlock()
	return c.send(req)
}

// SubscribeTokenTrades subscribes to trades for specific mints.
func (c *Client) SubscribeTokenTrades(mints []string) error {
	req := subscribeRequest{Method: "subscribeTokenTrade", Keys: mints}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, req)
	c.mu.Unlock()
	return c.send(req)
}

func (c *Client) route(raw []byte) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	if _, confirming := data["message"]; confirming {
		return
	}

	mint, _ := data["mint"].(string)
	if mint == "" {
		return
	}

	event := Event{Mint: mint, Raw: data}
	if symbol, ok := data["symbol"].(string); ok {
		event.Symbol = symbol
	}
	if name, ok := data["name"].(string); ok {
		event.Name = name
	}
	if sig, ok := data["signature"].(string); ok {
		event.Signature = sig
	}

	switch data["txType"] {
	case "create":
		event.Kind = "launch"
	case "buy", "sell":
		event.Kind = "trade"
	default:
		event.Kind = "migration"
	}

	c.handlersMu.RLock()
	handlers := append([]Handler(nil), c.handlers...)
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

// Close shuts down the connection and stops reconnect attempts.
func (c *Client) Close() error {
	close(c.closeCh)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the feed is currently live.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
