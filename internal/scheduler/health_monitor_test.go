package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/dlbridge/internal/connection"
	"github.com/MrSnakeDoc/dlbridge/internal/logger"
)

type countingChecker struct {
	calls atomic.Int32
}

func (c *countingChecker) CheckStatus(ctx context.Context) connection.State {
	c.calls.Add(1)
	return connection.State{Status: connection.Connected}
}

func TestHealthMonitor_Ticks(t *testing.T) {
	checker := &countingChecker{}
	hm := NewHealthMonitor(checker, logger.Nop(), 5*time.Millisecond)

	if err := hm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for checker.calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 3 checks, got %d", checker.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}

	hm.Stop()
	time.Sleep(20 * time.Millisecond)
	settled := checker.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if n := checker.calls.Load(); n != settled {
		t.Errorf("Checks continued after Stop: %d -> %d", settled, n)
	}
}

func TestHealthMonitor_Disabled(t *testing.T) {
	checker := &countingChecker{}
	hm := NewHealthMonitor(checker, logger.Nop(), 0)

	if err := hm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := checker.calls.Load(); n != 0 {
		t.Errorf("Expected no checks when disabled, got %d", n)
	}
	hm.Stop()
}

func TestHealthMonitor_StopsWithContext(t *testing.T) {
	checker := &countingChecker{}
	hm := NewHealthMonitor(checker, logger.Nop(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	if err := hm.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	time.Sleep(20 * time.Millisecond)
	settled := checker.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if n := checker.calls.Load(); n != settled {
		t.Errorf("Checks continued after cancel: %d -> %d", settled, n)
	}
}
