package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCacheBasicOps(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, tenantID, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := c.Get(ctx, tenantID, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("got %q, want value1", val)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		val, err := c.Get(ctx, tenantID, "nope")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for missing key, got %q", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Set(ctx, tenantID, "key2", []byte("value2"), time.Minute)
		if err := c.Delete(ctx, tenantID, "key2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := c.Get(ctx, tenantID, "key2")
		if val != nil {
			t.Error("key survived delete")
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c.Set(ctx, tenantID, "short", []byte("gone"), time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		val, _ := c.Get(ctx, tenantID, "short")
		if val != nil {
			t.Error("expired entry still readable")
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		c.Set(ctx, "tenant-a", "shared", []byte("a-value"), time.Minute)

		val, _ := c.Get(ctx, "tenant-b", "shared")
		if val != nil {
			t.Error("cross-tenant read returned data")
		}
	})

	t.Run("EmptyTenantRejected", func(t *testing.T) {
		if err := c.Set(ctx, "", "k", []byte("v"), time.Minute); err == nil {
			t.Error("expected error for empty tenant")
		}
		if _, err := c.Get(ctx, "", "k"); err == nil {
			t.Error("expected error for empty tenant")
		}
	})
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	c.Set(ctx, tenantID, "a", []byte("1"), time.Minute)
	c.Set(ctx, tenantID, "b", []byte("2"), time.Minute)
	c.Set(ctx, tenantID, "c", []byte("3"), time.Minute)

	// Touch "a" so "b" becomes the oldest.
	c.Get(ctx, tenantID, "a")

	c.Set(ctx, tenantID, "d", []byte("4"), time.Minute)

	if val, _ := c.Get(ctx, tenantID, "b"); val != nil {
		t.Error("expected b to be evicted")
	}
	if val, _ := c.Get(ctx, tenantID, "a"); val == nil {
		t.Error("recently used entry was evicted")
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("stats = %d/%d, want 3/3", size, capacity)
	}
}

func TestLRUCacheCaseRoundTrip(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	dc := &domain.DisputeCase{
		ID:         "case-1",
		CaseNumber: "CB-2026-0001",
		Category:   domain.CategoryMerchandise,
		Transaction: domain.Transaction{
			Amount:         199.99,
			SameCardOrders: 2,
		},
		RiskScore:      41,
		Recommendation: domain.RecommendMerchantInvestigation,
		Status:         domain.StatusPendingReview,
	}

	if err := c.SetCase(ctx, tenantID, dc.ID, dc, time.Minute); err != nil {
		t.Fatalf("SetCase failed: %v", err)
	}

	got, err := c.GetCase(ctx, tenantID, "case-1")
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached case")
	}
	if got.CaseNumber != dc.CaseNumber || got.RiskScore != 41 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Recommendation != domain.RecommendMerchantInvestigation {
		t.Errorf("recommendation = %s", got.Recommendation)
	}

	missing, err := c.GetCase(ctx, tenantID, "case-404")
	if err != nil {
		t.Fatalf("GetCase failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for uncached case")
	}
}

func TestLRUCacheCounters(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()

	ctx := context.Background()
	tenantID := "tenant-001"

	for i := int64(1); i <= 3; i++ {
		n, err := c.IncrementCounter(ctx, tenantID, "reanalysis:case-1", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if n != i {
			t.Errorf("count = %d, want %d", n, i)
		}
	}

	// Window expiry resets the counter.
	if _, err := c.IncrementCounter(ctx, tenantID, "short", time.Millisecond); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	n, _ := c.IncrementCounter(ctx, tenantID, "short", time.Minute)
	if n != 1 {
		t.Errorf("expected reset counter, got %d", n)
	}

	// Counters are tenant-scoped.
	n, _ = c.IncrementCounter(ctx, "tenant-other", "reanalysis:case-1", time.Minute)
	if n != 1 {
		t.Errorf("cross-tenant counter leak: got %d", n)
	}
}

func TestNewFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("expected LRUCache, got %T", c)
	}

	if _, err := New(domain.CacheConfig{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
}
