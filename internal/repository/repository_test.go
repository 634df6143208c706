package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/meeter/meeter/internal/model"
	"github.com/meeter/meeter/internal/store"
	"github.com/meeter/meeter/internal/testutil"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	return New(s, store.NewLocker(true))
}

func TestFindUserBy_AvatarAndKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	alice := testutil.NewTestUser(t, "alice", 100)
	bob := testutil.NewTestUser(t, "bob", 50)
	for _, u := range []*model.User{alice, bob} {
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", u.Avatar, err)
		}
	}

	got, err := repo.FindUserBy(ctx, FieldAvatar, "bob")
	if err != nil {
		t.Fatalf("FindUserBy avatar failed: %v", err)
	}
	if got.APIKey != bob.APIKey {
		t.Errorf("found key %q, want %q", got.APIKey, bob.APIKey)
	}

	got, err = repo.FindUserBy(ctx, FieldAPIKey, alice.APIKey)
	if err != nil {
		t.Fatalf("FindUserBy apiKey failed: %v", err)
	}
	if got.Avatar != "alice" {
		t.Errorf("found avatar %q, want alice", got.Avatar)
	}
}

func TestFindUserBy_NoCrossFieldMatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	u := testutil.NewTestUser(t, "alice", 100)
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	testCases := []struct {
		name  string
		field Field
		value string
	}{
		{"avatar used as key", FieldAPIKey, "alice"},
		{"key used as avatar", FieldAvatar, u.APIKey},
		{"case differs", FieldAvatar, "ALICE"},
		{"empty value", FieldAvatar, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := repo.FindUserBy(ctx, tc.field, tc.value)
			if !errors.Is(err, ErrUserNotFound) {
				t.Errorf("FindUserBy error = %v, want ErrUserNotFound", err)
			}
		})
	}
}

func TestFindUserBy_UnknownField(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t)
	_, err := repo.FindUserBy(context.Background(), Field("name"), "x")
	if !errors.Is(err, ErrUnknownField) {
		t.Errorf("FindUserBy error = %v, want ErrUnknownField", err)
	}
}

func TestCreateUser_Uniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	u := testutil.NewTestUser(t, "alice", 100)
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dupAvatar := testutil.NewTestUser(t, "alice", 0)
	dupAvatar.APIKey = "other"
	if err := repo.CreateUser(ctx, dupAvatar); !errors.Is(err, ErrAvatarExists) {
		t.Errorf("duplicate avatar error = %v, want ErrAvatarExists", err)
	}

	dupKey := testutil.NewTestUser(t, "carol", 0)
	dupKey.APIKey = u.APIKey
	if err := repo.CreateUser(ctx, dupKey); !errors.Is(err, ErrAPIKeyExists) {
		t.Errorf("duplicate key error = %v, want ErrAPIKeyExists", err)
	}
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	u := testutil.NewTestUser(t, "alice", 100)
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	updated, err := repo.UpdateUser(ctx, FieldAvatar, "alice", func(u *model.User) error {
		u.Balance += 50
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Balance != 150 {
		t.Errorf("updated balance = %v, want 150", updated.Balance)
	}

	errAbort := errors.New("abort")
	_, err = repo.UpdateUser(ctx, FieldAvatar, "alice", func(u *model.User) error {
		u.Balance = 0
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("UpdateUser error = %v, want errAbort", err)
	}

	stored, err := repo.FindUserBy(ctx, FieldAvatar, "alice")
	if err != nil {
		t.Fatalf("FindUserBy failed: %v", err)
	}
	if stored.Balance != 150 {
		t.Errorf("aborted update was persisted: balance = %v", stored.Balance)
	}

	_, err = repo.UpdateUser(ctx, FieldAvatar, "ghost", func(u *model.User) error { return nil })
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdateUser(ghost) error = %v, want ErrUserNotFound", err)
	}
}

func TestDeliveries_AppendOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	for _, item := range []string{"sword", "shield"} {
		d := &model.Delivery{ID: item, Timestamp: time.Now().UTC(), Item: item, Avatar: "alice", ProcessedBy: "system"}
		if err := repo.AppendDelivery(ctx, d); err != nil {
			t.Fatalf("AppendDelivery failed: %v", err)
		}
	}

	deliveries, err := repo.ListDeliveries(ctx)
	if err != nil {
		t.Fatalf("ListDeliveries failed: %v", err)
	}
	if len(deliveries) != 2 || deliveries[0].Item != "sword" || deliveries[1].Item != "shield" {
		t.Errorf("deliveries = %+v, want sword then shield", deliveries)
	}
}

func TestStats_WholesaleReplace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestRepository(t)

	if _, err := repo.GetStats(ctx, "alice"); !errors.Is(err, ErrStatsNotFound) {
		t.Fatalf("GetStats error = %v, want ErrStatsNotFound", err)
	}

	first := model.StatsEntry{Stats: []float64{1, 2, 3}, Timestamp: time.Now().UTC()}
	second := model.StatsEntry{Stats: []float64{7}, Timestamp: time.Now().UTC()}
	if err := repo.UpsertStats(ctx, "alice", first); err != nil {
		t.Fatalf("UpsertStats failed: %v", err)
	}
	if err := repo.UpsertStats(ctx, "bob", first); err != nil {
		t.Fatalf("UpsertStats failed: %v", err)
	}
	if err := repo.UpsertStats(ctx, "alice", second); err != nil {
		t.Fatalf("UpsertStats failed: %v", err)
	}

	got, err := repo.GetStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(got.Stats) != 1 || got.Stats[0] != 7 {
		t.Errorf("alice stats = %v, want [7]", got.Stats)
	}

	other, err := repo.GetStats(ctx, "bob")
	if err != nil {
		t.Fatalf("GetStats(bob) failed: %v", err)
	}
	if len(other.Stats) != 3 {
		t.Errorf("bob stats = %v, want untouched", other.Stats)
	}
}

func TestUsers_NullEntryIsStorageError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := os.WriteFile(fs.Path(store.Users), []byte(`[null]`), 0o644); err != nil {
		t.Fatalf("write users: %v", err)
	}
	repo := New(fs, nil)

	if _, err := repo.ListUsers(ctx); !errors.Is(err, store.ErrStorage) {
		t.Errorf("ListUsers error = %v, want ErrStorage", err)
	}
	if _, err := repo.FindUserBy(ctx, FieldAvatar, "x"); !errors.Is(err, store.ErrStorage) {
		t.Errorf("FindUserBy error = %v, want ErrStorage", err)
	}
	if err := repo.CreateUser(ctx, &model.User{Avatar: "x", APIKey: "k"}); !errors.Is(err, store.ErrStorage) {
		t.Errorf("CreateUser error = %v, want ErrStorage", err)
	}
	if _, err := repo.UpdateUser(ctx, FieldAvatar, "x", func(u *model.User) error { return nil }); !errors.Is(err, store.ErrStorage) {
		t.Errorf("UpdateUser error = %v, want ErrStorage", err)
	}
}
