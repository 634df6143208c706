package store

import (
	"context"
	"errors"
	"testing"

	"github.com/meeter/meeter/internal/testutil"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	client := testutil.RedisClient(t)
	ctx := context.Background()

	prefix := testutil.UniquePrefix("store")
	t.Cleanup(func() { _ = testutil.FlushPrefix(context.Background(), client, prefix) })

	s := NewRedisStoreFromClient(client, prefix)

	var users []map[string]string
	if err := s.Load(ctx, Users, &users); !errors.Is(err, ErrStorage) {
		t.Fatalf("Load before bootstrap error = %v, want ErrStorage", err)
	}

	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if err := s.Load(ctx, Users, &users); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected empty users, got %v", users)
	}

	if err := s.Save(ctx, Users, []map[string]string{{"avatar": "abc"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("second Bootstrap failed: %v", err)
	}
	if err := s.Load(ctx, Users, &users); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(users) != 1 || users[0]["avatar"] != "abc" {
		t.Errorf("Load = %v, want saved document", users)
	}
}
