package http

import (
	"context"
	"testing"
	"time"
)

func TestWaitForInFlightZero(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Fatalf("WaitForInFlight with zero in flight: %v", err)
	}
}

func TestWaitForInFlightDrains(t *testing.T) {
	inFlight.Add(1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Fatalf("WaitForInFlight: %v", err)
	}
	if InFlightCount() != 0 {
		t.Errorf("InFlightCount = %d, want 0", InFlightCount())
	}
}

func TestWaitForInFlightTimeout(t *testing.T) {
	inFlight.Add(1)
	defer inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err == nil {
		t.Fatal("expected context deadline error while a request is in flight")
	}
}
