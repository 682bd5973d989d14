package wsprice

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeSink struct {
	mint  string
	price decimal.Decimal
	ttl   time.Duration
}

func (f *fakeSink) Set(ctx context.Context, mint string, price decimal.Decimal, ttl time.Duration) {
	f.mint, f.price, f.ttl = mint, price, ttl
}

func TestRouteParsesTickAndPushesToSink(t *testing.T) {
	sink := &fakeSink{}
	c := NewClient("wss://example.invalid", sink, time.Minute)

	c.route([]byte(`{"mint":"So11111111111111111111111111111111111111112","priceUsd":"142.50"}`))

	if sink.mint != "So11111111111111111111111111111111111111112" {
		t.Fatalf("sink mint = %q", sink.mint)
	}
	if !sink.price.Equal(decimal.NewFromFloat(142.50)) {
		t.Fatalf("sink price = %s", sink.price)
	}
	if sink.ttl != time.Minute {
		t.Fatalf("sink ttl = %s", sink.ttl)
	}
}

func TestRouteIgnoresMalformedMessages(t *testing.T) {
	sink := &fakeSink{}
	c := NewClient("wss://example.invalid", sink, time.Minute)

	c.route([]byte(`not json`))
	c.route([]byte(`{"priceUsd":"1.0"}`))
	c.route([]byte(`{"mint":"abc","priceUsd":"not-a-number"}`))

	if sink.mint != "" {
		t.Fatalf("expected no sink write, got mint=%q", sink.mint)
	}
}

func TestSubscribeBeforeConnectQueuesMints(t *testing.T) {
	c := NewClient("wss://example.invalid", &fakeSink{}, time.Minute)
	if err := c.Subscribe([]string{"mintA", "mintB"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if len(c.subscribed) != 2 {
		t.Fatalf("subscribed = %v", c.subscribed)
	}
}
