package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownCancelsContext(t *testing.T) {
	m := NewManager()
	if m.IsShutdown() {
		t.Fatal("fresh manager already shut down")
	}

	m.Shutdown()
	m.Shutdown() // idempotent

	if !m.IsShutdown() {
		t.Error("IsShutdown false after Shutdown")
	}
	select {
	case <-m.Context().Done():
	default:
		t.Error("context not cancelled")
	}
}

func TestWaitRunsCleanupsLIFO(t *testing.T) {
	m := NewManager()

	var order []string
	m.RegisterCleanup("first", func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.RegisterCleanup("second", func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("ignored")
	})

	m.Shutdown()
	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("cleanup order = %v, want LIFO", order)
	}
}

func TestWaitTimesOut(t *testing.T) {
	m := NewManager()
	m.RegisterCleanup("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := m.Wait(ctx); err == nil {
		t.Error("expected timeout error from Wait")
	}
}
