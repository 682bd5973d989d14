package main

import (
	"strings"
	"testing"
)

func TestTableAlignsColumns(t *testing.T) {
	out := table([]string{"SYMBOL", "PRICE"}, [][]string{
		{"BONK", "0.000012"},
		{"SOL", "150"},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header, rule, 2 rows), got %d:\n%s", len(lines), out)
	}
	for _, l := range lines[2:] {
		if !strings.Contains(l, "  ") {
			t.Errorf("row %q missing column separator", l)
		}
	}
}

func TestPadCellPadsToWidth(t *testing.T) {
	if got := padCell("hi", 5); got != "hi   " {
		t.Errorf("padCell = %q, want %q", got, "hi   ")
	}
	if got := padCell("toolong", 3); got != "toolong" {
		t.Errorf("padCell should not truncate, got %q", got)
	}
}

func TestJoinArgs(t *testing.T) {
	if got := joinArgs([]string{"buy", "BONK", "for", "$50"}); got != "buy BONK for $50" {
		t.Errorf("joinArgs = %q", got)
	}
}
