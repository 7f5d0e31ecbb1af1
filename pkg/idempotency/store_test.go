package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeSetter struct {
	keys map[string]bool
	err  error
}

func (f *fakeSetter) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		cmd := redis.NewBoolCmd(ctx)
		cmd.SetErr(f.err)
		return cmd
	}
	if f.keys == nil {
		f.keys = map[string]bool{}
	}
	set := !f.keys[key]
	f.keys[key] = true
	return redis.NewBoolResult(set, nil)
}

func TestSeenFirstDeliveryClaimsKey(t *testing.T) {
	s := NewStore(&fakeSetter{}, time.Minute)
	key := s.Key("pay.events", 0, 42)

	seen, err := s.Seen(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be seen")
	}

	seen, err = s.Seen(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatal("redelivery must be seen")
	}
}

func TestSeenPropagatesRedisError(t *testing.T) {
	s := NewStore(&fakeSetter{err: errors.New("redis down")}, time.Minute)
	if _, err := s.Seen(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}

func TestKeyIsUniquePerOffset(t *testing.T) {
	s := NewStore(&fakeSetter{}, time.Minute)
	if s.Key("t", 1, 2) == s.Key("t", 1, 3) {
		t.Fatal("keys must differ per offset")
	}
}
