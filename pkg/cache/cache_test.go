package cache

import (
	"testing"
	"time"
)

func TestGetMissWithNoEntry(t *testing.T) {
	c := New(time.Minute)
	if _, ok := c.Get("root", nil); ok {
		t.Fatal("expected miss on empty cache")
	}
	if s := c.Stats(); s.Misses != 1 || s.Hits != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestSetThenGetIsHit(t *testing.T) {
	c := New(time.Minute)
	mtimes := FileMtimes{"a.go": time.Unix(100, 0)}
	ctx := ProjectContext{Language: "go"}
	c.Set("root", ctx, mtimes)

	got, ok := c.Get("root", mtimes)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Language != "go" {
		t.Fatalf("got %+v", got)
	}
	if s := c.Stats(); s.Hits != 1 || s.HitRate != 100 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestGetMissOnNewerMtime(t *testing.T) {
	c := New(time.Minute)
	c.Set("root", ProjectContext{}, FileMtimes{"a.go": time.Unix(100, 0)})

	_, ok := c.Get("root", FileMtimes{"a.go": time.Unix(200, 0)})
	if ok {
		t.Fatal("expected miss on newer mtime")
	}
	if s := c.Stats(); s.Invalidations != 1 {
		t.Fatalf("expected invalidation, got %+v", s)
	}
	// the invalidated entry must be gone, not just flagged.
	if _, ok := c.Get("root", FileMtimes{"a.go": time.Unix(100, 0)}); ok {
		t.Fatal("expected miss: entry was invalidated")
	}
}

func TestGetMissOnCardinalityChange(t *testing.T) {
	c := New(time.Minute)
	c.Set("root", ProjectContext{}, FileMtimes{"a.go": time.Unix(100, 0)})

	_, ok := c.Get("root", FileMtimes{
		"a.go": time.Unix(100, 0),
		"b.go": time.Unix(100, 0),
	})
	if ok {
		t.Fatal("expected miss on cardinality change")
	}
}

func TestGetMissOnMissingTrackedFile(t *testing.T) {
	c := New(time.Minute)
	c.Set("root", ProjectContext{}, FileMtimes{
		"a.go": time.Unix(100, 0),
		"b.go": time.Unix(100, 0),
	})

	_, ok := c.Get("root", FileMtimes{
		"a.go": time.Unix(100, 0),
		"c.go": time.Unix(100, 0),
	})
	if ok {
		t.Fatal("expected miss: b.go missing from current set")
	}
}

func TestGetMissOnTTLExpiry(t *testing.T) {
	c := New(time.Millisecond)
	base := time.Now()
	tick := base
	c.now = func() time.Time { return tick }

	mtimes := FileMtimes{"a.go": time.Unix(100, 0)}
	c.Set("root", ProjectContext{}, mtimes)

	// immediately after set (relative to injected clock) still valid.
	if _, ok := c.Get("root", mtimes); !ok {
		t.Fatal("expected hit before expiry")
	}

	tick = base.Add(time.Hour)
	if _, ok := c.Get("root", mtimes); ok {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", ProjectContext{}, nil)
	c.Set("b", ProjectContext{}, nil)

	c.Invalidate("a")
	if s := c.Stats(); s.EntryCount != 1 || s.Invalidations != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}

	c.Clear()
	if s := c.Stats(); s.EntryCount != 0 {
		t.Fatalf("expected empty cache after clear, got %+v", s)
	}
}

func TestHitRateZeroWhenNoLookups(t *testing.T) {
	c := New(time.Minute)
	if s := c.Stats(); s.HitRate != 0 {
		t.Fatalf("expected zero hit rate, got %f", s.HitRate)
	}
}
