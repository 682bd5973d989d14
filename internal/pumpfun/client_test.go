package pumpfun

import "testing"

func TestRouteClassifiesLaunchEvent(t *testing.T) {
	c := NewClient("")
	var got Event
	c.OnEvent(func(e Event) { got = e })

	c.route([]byte(`{"mint":"MINT1","symbol":"FOO","txType":"create","signature":"sig1"}`))

	if got.Kind != "launch" || got.Mint != "MINT1" || got.Symbol != "FOO" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestRouteClassifiesTradeEvent(t *testing.T) {
	c := NewClient("")
	var got Event
	c.OnEvent(func(e Event) { got = e })

	c.route([]byte(`{"mint":"MINT1","txType":"buy"}`))

	if got.Kind != "trade" {
		t.Fatalf("expected trade kind, got %q", got.Kind)
	}
}

func TestRouteIgnoresSubscriptionConfirmations(t *testing.T) {
	c := NewClient("")
	called := false
	c.OnEvent(func(e Event) { called = true })

	c.route([]byte(`{"message":"Successfully subscribed"}`))

	if called {
		t.Fatal("expected confirmation message to be ignored")
	}
}

func TestDialURLIncludesAPIKey(t *testing.T) {
	c := NewClient("secretkey")
	if c.dialURL() != wsURL+"?api-key=secretkey" {
		t.Fatalf("unexpected dial URL: %s", c.dialURL())
	}
}
