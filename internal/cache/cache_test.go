package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestInMemoryCache_SetGet(t *testing.T) {
	c := NewInMemoryCache(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte(`{"temp":15.5}`), time.Minute); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if string(got) != `{"temp":15.5}` {
		t.Errorf("Get() = %q, want stored payload", got)
	}
}

func TestInMemoryCache_MissOnUnknownKey(t *testing.T) {
	c := NewInMemoryCache(clockwork.NewFakeClock())
	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() hit, want miss")
	}
}

func TestInMemoryCache_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache(clock)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() unexpected error: %v", err)
	}

	clock.Advance(time.Minute + time.Second)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() hit after TTL, want miss")
	}
}

func TestInMemoryCache_OverwriteResetsTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := NewInMemoryCache(clock)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("old"), time.Minute)
	clock.Advance(50 * time.Second)
	_ = c.Set(ctx, "k", []byte("new"), time.Minute)
	clock.Advance(30 * time.Second)

	got, ok, _ := c.Get(ctx, "k")
	if !ok {
		t.Fatal("Get() miss, want hit after overwrite")
	}
	if string(got) != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}
