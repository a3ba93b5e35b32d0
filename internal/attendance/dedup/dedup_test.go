package dedup

import (
	"sync"
	"testing"
	"time"
)

func TestCheckAndRecordDetectsDuplicate(t *testing.T) {
	cache := New(5 * time.Minute)

	if cache.CheckAndRecord("user-1", "收工:王小明", 1700000000000) {
		t.Fatal("first delivery should not be a duplicate")
	}
	if !cache.CheckAndRecord("user-1", "收工:王小明", 1700000000000) {
		t.Fatal("second identical delivery should be a duplicate")
	}
}

func TestCheckAndRecordDistinguishesTriple(t *testing.T) {
	cache := New(5 * time.Minute)

	cache.CheckAndRecord("user-1", "收工:王小明", 1700000000000)
	if cache.CheckAndRecord("user-2", "收工:王小明", 1700000000000) {
		t.Fatal("different sender should not be a duplicate")
	}
	if cache.CheckAndRecord("user-1", "收工:李大華", 1700000000000) {
		t.Fatal("different text should not be a duplicate")
	}
	if cache.CheckAndRecord("user-1", "收工:王小明", 1700000000001) {
		t.Fatal("different timestamp should not be a duplicate")
	}
}

func TestEntriesExpireAfterWindow(t *testing.T) {
	cache := New(5 * time.Minute)
	current := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	if cache.CheckAndRecord("user-1", "hello", 1) {
		t.Fatal("first delivery should not be a duplicate")
	}

	current = current.Add(6 * time.Minute)
	if cache.CheckAndRecord("user-1", "hello", 1) {
		t.Fatal("delivery after the window should be accepted again")
	}
	if cache.Len() != 1 {
		t.Fatalf("expected the expired entry to be swept, got %d entries", cache.Len())
	}
}

func TestPurgeRemovesOnlyExpired(t *testing.T) {
	cache := New(5 * time.Minute)
	current := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	cache.CheckAndRecord("user-1", "old", 1)
	current = current.Add(4 * time.Minute)
	cache.CheckAndRecord("user-1", "new", 2)

	current = current.Add(2 * time.Minute)
	cache.Purge()

	if cache.Len() != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", cache.Len())
	}
}

func TestConcurrentDuplicatesAdmitExactlyOne(t *testing.T) {
	cache := New(5 * time.Minute)

	const goroutines = 16
	var wg sync.WaitGroup
	results := make(chan bool, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- cache.CheckAndRecord("user-1", "同一則訊息", 1700000000000)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for duplicate := range results {
		if !duplicate {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one delivery to pass, got %d", accepted)
	}
}
