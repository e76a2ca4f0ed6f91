package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	if sess, err := store.Get(ctx, 7); err != nil || sess != nil {
		t.Fatalf("expected no session, got %+v err=%v", sess, err)
	}

	in := domain.NewSession(7)
	in.QuestionOrder = []string{"a", "b", "c"}
	in.QuestionIndex = 2
	in.Score = 1
	in.Won = true
	if err := store.Put(ctx, 7, in); err != nil {
		t.Fatalf("put: %v", err)
	}

	if !mr.Exists("quiz:session:7") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:7"); ttl != time.Minute {
		t.Fatalf("expected TTL of 1m, got %v", ttl)
	}

	out, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !out.Won || out.Score != 1 || out.QuestionIndex != 2 || len(out.QuestionOrder) != 3 {
		t.Fatalf("unexpected session: %+v", out)
	}
}

func TestSessionExpires(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)

	if err := store.Put(ctx, 7, domain.NewSession(7)); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if sess, err := store.Get(ctx, 7); err != nil || sess != nil {
		t.Fatalf("expected expired session, got %+v err=%v", sess, err)
	}
}
