package coreerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageIncludesActionWhenSet(t *testing.T) {
	err := Newf(KindRemote, "aggregator timed out", "retry in a few seconds", errors.New("dial tcp: timeout"))
	want := "remote_error: aggregator timed out (try: retry in a few seconds)"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorMessageOmitsActionWhenUnset(t *testing.T) {
	err := User("unknown mint", nil)
	if err.Error() != "user_error: unknown mint" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := Config("bad provider url", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through to cause")
	}
}

func TestIsMatchesWrappedKind(t *testing.T) {
	err := State("ledger invariant violated", nil)
	wrapped := fmt.Errorf("confirm: %w", err)
	if !Is(wrapped, KindState) {
		t.Fatal("expected Is to see through fmt.Errorf wrapping")
	}
	if Is(wrapped, KindUser) {
		t.Fatal("expected Is to reject the wrong kind")
	}
}

func TestKindOfReturnsEmptyForUntaggedError(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("expected empty kind for an untagged error")
	}
}
