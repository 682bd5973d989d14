package pricecache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewWithEmptyURLFallsBackToLocal(t *testing.T) {
	c := New(context.Background(), "")
	if c.rdb != nil {
		t.Fatal("expected no redis client with empty URL")
	}
}

func TestNewWithUnreachableRedisFallsBackToLocal(t *testing.T) {
	c := New(context.Background(), "redis://127.0.0.1:1/0")
	if c.rdb != nil {
		t.Fatal("expected fallback to in-process cache when redis is unreachable")
	}
}

func TestGetSetRoundTripsThroughLocalCache(t *testing.T) {
	c := New(context.Background(), "")
	ctx := context.Background()

	if _, ok := c.Get(ctx, "mintA"); ok {
		t.Fatal("expected miss before Set")
	}

	c.Set(ctx, "mintA", decimal.NewFromFloat(1.23), time.Minute)

	price, ok := c.Get(ctx, "mintA")
	if !ok || !price.Equal(decimal.NewFromFloat(1.23)) {
		t.Fatalf("price=%s ok=%v", price, ok)
	}
}

func TestGetExpiresAfterTTL(t *testing.T) {
	c := New(context.Background(), "")
	ctx := context.Background()

	c.Set(ctx, "mintB", decimal.NewFromFloat(9.99), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(ctx, "mintB"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCloseWithoutRedisIsNoop(t *testing.T) {
	c := New(context.Background(), "")
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
