package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type countingTicker struct {
	count  atomic.Int32
	failOn int32
}

func (c *countingTicker) Tick(ctx context.Context) error {
	n := c.count.Add(1)
	if n == c.failOn {
		panic("synthetic panic")
	}
	return nil
}

func TestRunWritesAndRemovesPIDFile(t *testing.T) {
	dir := t.TempDir()
	ticker := &countingTicker{}
	d := New(dir, 20*time.Millisecond, ticker)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, pidFileName)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed after Run returns, err=%v", err)
	}
	if ticker.count.Load() < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", ticker.count.Load())
	}
}

func TestRunSurvivesPanickingTick(t *testing.T) {
	dir := t.TempDir()
	ticker := &countingTicker{failOn: 1}
	d := New(dir, 10*time.Millisecond, ticker)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticker.count.Load() < 2 {
		t.Fatalf("expected ticking to continue past the panic, got %d ticks", ticker.count.Load())
	}
}

func TestStatusReportsNotRunningWithoutPIDFile(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, time.Second, &countingTicker{})

	status, err := d.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected not running")
	}
}

func TestStatusCleansUpStalePIDFile(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, time.Second, &countingTicker{})

	// A PID that's extremely unlikely to be alive.
	if err := os.WriteFile(filepath.Join(dir, pidFileName), []byte("999999"), 0600); err != nil {
		t.Fatalf("write stale pid: %v", err)
	}

	status, err := d.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Running {
		t.Fatal("expected stale pid to report not running")
	}
	if _, err := os.Stat(filepath.Join(dir, pidFileName)); !os.IsNotExist(err) {
		t.Fatal("expected stale pid file to be removed")
	}
}

func TestStopReturnsErrNotRunning(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, time.Second, &countingTicker{})

	if err := d.Stop(); err != ErrNotRunning {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
