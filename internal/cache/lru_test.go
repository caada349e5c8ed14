// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestLRUBasicOperations(t *testing.T) {
	c := NewLRU[string, int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	if v, found := c.Get("a"); !found || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, found)
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestLRUEvictionOrder(t *testing.T) {
	c := NewLRU[string, int](3, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)

	// Touch 'a' so 'b' becomes the eviction candidate.
	c.Get("a")
	c.Add("d", 4)

	if _, found := c.Get("b"); found {
		t.Error("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, found := c.Get(k); !found {
			t.Errorf("expected %s to be present", k)
		}
	}
}

func TestLRUUpdateDoesNotGrow(t *testing.T) {
	c := NewLRU[string, int](2, 0)

	c.Add("a", 1)
	c.Add("a", 2)
	c.Add("b", 3)

	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("updated value = %d, want 2", v)
	}
}

func TestLRUTTLExpiration(t *testing.T) {
	c := NewLRU[string, int](10, 30*time.Millisecond)

	c.Add("a", 1)
	if _, found := c.Get("a"); !found {
		t.Fatal("expected to find key immediately")
	}

	time.Sleep(40 * time.Millisecond)
	if _, found := c.Get("a"); found {
		t.Error("expected key to be expired")
	}
}

func TestLRUZeroTTLNeverExpires(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	c.Add("a", 1)
	time.Sleep(10 * time.Millisecond)
	if _, found := c.Get("a"); !found {
		t.Error("entry with disabled TTL should persist")
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	c.Add("a", 1)
	c.Add("b", 2)

	if !c.Remove("a") {
		t.Error("Remove(a) should report true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) should report false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", c.Len())
	}
}

func TestLRUStats(t *testing.T) {
	c := NewLRU[string, int](10, 0)
	c.Add("a", 1)
	c.Get("a")
	c.Get("missing")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats = %d hits, %d misses, %d size; want 1, 1, 1", hits, misses, size)
	}
}

func TestLRUConcurrentAccess(t *testing.T) {
	c := NewLRU[int, int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Add(i%50, g)
				c.Get(i % 50)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len = %d exceeds capacity", c.Len())
	}
}
