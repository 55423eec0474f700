package keylock

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New[string]()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("goal")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if m.Len() != 0 {
		t.Fatalf("entries leaked: %d", m.Len())
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	m := New[int]()
	unlock := m.Lock(1)
	other := m.Lock(2)
	other()
	unlock()
	unlock()
	again := m.Lock(1)
	again()
	if m.Len() != 0 {
		t.Fatalf("entries leaked: %d", m.Len())
	}
}
