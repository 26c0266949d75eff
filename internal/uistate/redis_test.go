package uistate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/zulandar/kpiboard/internal/threshold"
)

func setupTestRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	b, err := NewRedisBackend("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisBackend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, s
}

func TestNewRedisBackend_BadURL(t *testing.T) {
	if _, err := NewRedisBackend("not-a-url", time.Hour); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestRedisBackend_SaveLoad(t *testing.T) {
	b, s := setupTestRedis(t)
	ctx := context.Background()

	want := State{
		ActiveModal: ModalIssueDetail,
		Selected:    &Selection{Kind: KindIssue, ID: "iss-1", ProjectID: "prj-1"},
		Thresholds:  threshold.Default(),
		Draft:       "# heading",
	}
	if err := b.Save(ctx, "abc", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !s.Exists("ui:abc") {
		t.Fatal("key ui:abc not written")
	}
	if ttl := s.TTL("ui:abc"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	got, ok, err := b.Load(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisBackend_Expiry(t *testing.T) {
	b, s := setupTestRedis(t)
	ctx := context.Background()
	if err := b.Save(ctx, "abc", State{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.FastForward(2 * time.Hour)

	_, ok, err := b.Load(ctx, "abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Error("expired session still loadable")
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	b, _ := setupTestRedis(t)
	ctx := context.Background()
	if err := b.Save(ctx, "abc", State{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := b.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := b.Load(ctx, "abc"); ok {
		t.Error("deleted session still loadable")
	}
}

func TestSessions_Redis(t *testing.T) {
	b, _ := setupTestRedis(t)
	sessions := NewSessions(b, nil)
	ctx := context.Background()

	if _, err := sessions.Update(ctx, "s1", func(s *Store) error {
		return s.OpenModal(ModalColorSettings, nil)
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	store, err := sessions.Open(ctx, "s1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.State().ActiveModal != ModalColorSettings {
		t.Errorf("ActiveModal = %q", store.State().ActiveModal)
	}
}
