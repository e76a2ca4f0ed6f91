package memory

import (
	"context"
	"testing"
	"time"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	defer store.Close()

	if sess, err := store.Get(ctx, 42); err != nil || sess != nil {
		t.Fatalf("expected no session, got %+v err=%v", sess, err)
	}

	in := domain.NewSession(42)
	in.QuestionOrder = []string{"a", "b"}
	in.Score = 1
	if err := store.Put(ctx, 42, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	out, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if out.Score != 1 || len(out.QuestionOrder) != 2 || out.Attempt != 1 {
		t.Fatalf("unexpected session: %+v", out)
	}

	// The store hands out copies; mutating one must not leak back.
	out.Score = 99
	out.QuestionOrder[0] = "mutated"
	again, _ := store.Get(ctx, 42)
	if again.Score != 1 || again.QuestionOrder[0] != "a" {
		t.Fatalf("store leaked a shared reference: %+v", again)
	}
}

func TestSessionStoreEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	store := newSessionStoreWithClock(time.Hour, func() time.Time { return now })

	if err := store.Put(ctx, 1, domain.NewSession(1)); err != nil {
		t.Fatalf("put: %v", err)
	}

	now = now.Add(30 * time.Minute)
	store.evictExpired()
	if sess, _ := store.Get(ctx, 1); sess == nil {
		t.Fatalf("session evicted before the TTL elapsed")
	}

	// The Get above refreshed the idle clock.
	now = now.Add(61 * time.Minute)
	store.evictExpired()
	if sess, _ := store.Get(ctx, 1); sess != nil {
		t.Fatalf("expected idle session evicted, got %+v", sess)
	}
}
