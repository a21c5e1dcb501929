package membership

import (
	"testing"
	"time"
)

type fakeClock struct {
	current time.Time
}

func (f *fakeClock) now() time.Time {
	return f.current
}

func (f *fakeClock) advance(d time.Duration) {
	f.current = f.current.Add(d)
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	return NewCacheWithClock(clock.now), clock
}

func TestRefresh_ActiveUntilTTL(t *testing.T) {
	cache, clock := newTestCache()

	cache.Refresh("user-1", 4*time.Hour)
	if !cache.IsActive("user-1") {
		t.Fatal("expected user to be active right after refresh")
	}

	clock.advance(4*time.Hour - time.Second)
	if !cache.IsActive("user-1") {
		t.Fatal("expected user to be active just before expiry")
	}

	clock.advance(time.Second)
	if cache.IsActive("user-1") {
		t.Fatal("expected user to be inactive at expiry")
	}
}

func TestRefresh_ExtendsExpiry(t *testing.T) {
	cache, clock := newTestCache()

	cache.Refresh("user-1", time.Hour)
	clock.advance(30 * time.Minute)
	cache.Refresh("user-1", time.Hour)

	clock.advance(45 * time.Minute)
	if !cache.IsActive("user-1") {
		t.Fatal("expected second refresh to extend expiry")
	}
}

func TestRevoke_ImmediatelyInactive(t *testing.T) {
	cache, _ := newTestCache()

	cache.Refresh("user-1", 4*time.Hour)
	cache.Revoke("user-1")
	if cache.IsActive("user-1") {
		t.Fatal("expected revoked user to be inactive regardless of remaining TTL")
	}

	// revoking an absent user is a no-op
	cache.Revoke("user-2")
}

func TestRefresh_ReplacesInsteadOfDuplicating(t *testing.T) {
	cache, _ := newTestCache()

	for i := 0; i < 5; i++ {
		cache.Refresh("user-1", time.Hour)
	}
	cache.Refresh("user-2", time.Hour)

	snapshot := cache.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(snapshot), snapshot)
	}
}

func TestSnapshot_SortedAndExcludesExpired(t *testing.T) {
	cache, clock := newTestCache()

	cache.Refresh("user-b", time.Hour)
	cache.Refresh("user-a", 4*time.Hour)
	clock.advance(2 * time.Hour)

	snapshot := cache.Snapshot()
	if len(snapshot) != 1 || snapshot[0] != "user-a" {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}
}

func TestIsActive_UnknownUser(t *testing.T) {
	cache, _ := newTestCache()
	if cache.IsActive("nobody") {
		t.Fatal("expected unknown user to be inactive")
	}
}
