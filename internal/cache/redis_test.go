package cache

import (
	"context"
	"testing"
	"time"

	"contractdesk/internal/auth"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T) (*PrincipalStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPrincipalStore(client, time.Minute), mr
}

func TestPrincipalRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	c := auth.Claims{Subject: "u1", Email: "a@b.c", Role: "company", JWTID: "j1"}

	if _, ok, err := s.GetPrincipal(ctx, "j1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := s.SetPrincipal(ctx, c, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.GetPrincipal(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != c {
		t.Fatalf("unexpected claims %#v", got)
	}
}

func TestTTLBoundedBySessionExpiry(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()
	c := auth.Claims{Subject: "u1", Role: "user", JWTID: "j2"}
	if err := s.SetPrincipal(ctx, c, time.Now().Add(10*time.Second)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL(sessionKey("j2")); ttl > 10*time.Second || ttl <= 0 {
		t.Fatalf("ttl should follow session expiry, got %v", ttl)
	}
	if err := s.SetPrincipal(ctx, auth.Claims{Subject: "u1", JWTID: "old"}, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("set expired: %v", err)
	}
	if mr.Exists(sessionKey("old")) {
		t.Fatalf("expired session must not be cached")
	}
}

func TestInvalidateUserDropsAllSessions(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)
	for _, j := range []string{"a", "b"} {
		if err := s.SetPrincipal(ctx, auth.Claims{Subject: "u9", Role: "user", JWTID: j}, exp); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if err := s.SetPrincipal(ctx, auth.Claims{Subject: "other", Role: "user", JWTID: "c"}, exp); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.InvalidateUser(ctx, "u9"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	for _, j := range []string{"a", "b"} {
		if _, ok, _ := s.GetPrincipal(ctx, j); ok {
			t.Fatalf("session %q should be gone", j)
		}
	}
	if _, ok, _ := s.GetPrincipal(ctx, "c"); !ok {
		t.Fatalf("other user's session should survive")
	}
}
