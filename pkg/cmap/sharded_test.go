package cmap

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[string, int]()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if len(m.shards) != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", len(m.shards), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{2, 2},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)
	m.Set("key2", 250)

	if val, ok := m.Get("key1"); !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}
	if val, ok := m.Get("key2"); !ok || val != 250 {
		t.Errorf("Get(key2) = (%d, %v), want (250, true)", val, ok)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	m.Delete("key1")
	m.Delete("missing")
	if m.Has("key1") {
		t.Error("Has(key1) = true after Delete")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

type sessionID string

func TestNamedStringKey(t *testing.T) {
	m := New[sessionID, string]()
	m.Set(sessionID("abc"), "cart")
	if v, ok := m.Get("abc"); !ok || v != "cart" {
		t.Errorf("Get(abc) = (%q, %v), want (cart, true)", v, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 500

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := strconv.Itoa(base*numOps + j)
				m.Set(key, j)
				m.Get(key)
				m.Has(key)
			}
		}(i)
	}
	wg.Wait()

	if m.Len() != numGoroutines*numOps {
		t.Errorf("Len() = %d, want %d", m.Len(), numGoroutines*numOps)
	}
}

func TestShardRouting(t *testing.T) {
	m := New[string, int]()
	used := make(map[*shard[string, int]]bool)
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		key := "session-" + strconv.Itoa(i)
		s := m.getShard(key)
		used[s] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.getShard(key) != s {
				t.Errorf("key %q routed to a different shard", key)
			}
		}()
	}
	wg.Wait()
	if len(used) != DefaultShardCount {
		t.Errorf("1000 keys used %d of %d shards", len(used), DefaultShardCount)
	}
}
