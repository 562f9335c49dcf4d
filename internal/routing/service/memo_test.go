package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestMemo(t *testing.T) (*RedisMemo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisMemo(client, "test", time.Hour), mr
}

func TestRedisMemoClaimKeepsFirstOwner(t *testing.T) {
	memo, _ := newTestMemo(t)
	ctx := context.Background()

	owner, err := memo.Claim(ctx, "lead-1", "agent-a")
	if err != nil || owner != "agent-a" {
		t.Fatalf("expected agent-a to claim, got %q err=%v", owner, err)
	}

	owner, err = memo.Claim(ctx, "lead-1", "agent-b")
	if err != nil || owner != "agent-a" {
		t.Fatalf("expected existing owner agent-a, got %q err=%v", owner, err)
	}

	got, err := memo.Lookup(ctx, "lead-1")
	if err != nil || got != "agent-a" {
		t.Fatalf("expected lookup agent-a, got %q err=%v", got, err)
	}
}

func TestRedisMemoForgetAndExpiry(t *testing.T) {
	memo, mr := newTestMemo(t)
	ctx := context.Background()

	if _, err := memo.Claim(ctx, "lead-1", "agent-a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := memo.Forget(ctx, "lead-1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if got, _ := memo.Lookup(ctx, "lead-1"); got != "" {
		t.Fatalf("expected forgotten memo, got %q", got)
	}

	if _, err := memo.Claim(ctx, "lead-2", "agent-a"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	mr.FastForward(2 * time.Hour)
	if got, _ := memo.Lookup(ctx, "lead-2"); got != "" {
		t.Fatalf("expected expired memo, got %q", got)
	}
}

func TestRedisMemoUsesPrefixedKey(t *testing.T) {
	memo, mr := newTestMemo(t)
	if _, err := memo.Claim(context.Background(), "lead-9", "agent-z"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got, err := mr.Get("test:lead-assignment:lead-9"); err != nil || got != "agent-z" {
		t.Fatalf("expected prefixed key, got %q err=%v", got, err)
	}
}
