package shm

import (
	"sync"
	"testing"
	"time"
)

func newTestLock(t *testing.T, cfg LockConfig) (*SpinLock, *Region) {
	t.Helper()
	region, err := NewMemoryRegion("lock", 8, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return NewSpinLock(region.LockWord(), cfg), region
}

func TestSpinLockUncontended(t *testing.T) {
	lock, _ := newTestLock(t, DefaultLockConfig())

	stats := lock.Acquire()
	if stats.Contended || stats.TakenOver || stats.Attempts != 1 {
		t.Fatalf("unexpected stats for free lock: %+v", stats)
	}
	if !lock.Held() {
		t.Fatalf("expected lock to be held")
	}
	if lock.TryAcquire() {
		t.Fatalf("expected second TryAcquire to fail")
	}

	lock.Release()
	if lock.Held() {
		t.Fatalf("expected lock to be free after release")
	}
}

func TestSpinLockStealsFromStuckHolder(t *testing.T) {
	cfg := DefaultLockConfig()
	cfg.Policy = TakeoverSteal
	lock, _ := newTestLock(t, cfg)

	// Simulate a holder that never releases.
	if !lock.TryAcquire() {
		t.Fatalf("failed to take lock")
	}

	stats := lock.Acquire()
	if !stats.TakenOver || !stats.Contended {
		t.Fatalf("expected forced takeover, got %+v", stats)
	}
	if stats.Attempts < cfg.MaxAttempts {
		t.Fatalf("expected at least %d attempts before takeover, got %d", cfg.MaxAttempts, stats.Attempts)
	}
	if !lock.Held() {
		t.Fatalf("expected caller to hold the lock after takeover")
	}
}

func TestSpinLockWaitNeverSteals(t *testing.T) {
	cfg := DefaultLockConfig()
	cfg.MaxAttempts = 2
	cfg.MaxPause = 100 * time.Microsecond
	lock, _ := newTestLock(t, cfg)

	lock.TryAcquire()

	acquired := make(chan AcquireStats, 1)
	go func() {
		acquired <- lock.Acquire()
	}()

	select {
	case stats := <-acquired:
		t.Fatalf("waiter acquired a held lock: %+v", stats)
	case <-time.After(20 * time.Millisecond):
	}

	lock.Release()

	select {
	case stats := <-acquired:
		if stats.TakenOver || !stats.Contended {
			t.Fatalf("unexpected stats after release: %+v", stats)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiter did not acquire after release")
	}
}

func TestSpinLockMutualExclusion(t *testing.T) {
	cfg := DefaultLockConfig()
	cfg.Pause = 0
	lock, _ := newTestLock(t, cfg)

	const workers = 16
	const perWorker = 500

	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for range perWorker {
				lock.Acquire()
				counter++
				lock.Release()
			}
		}()
	}
	wg.Wait()

	if counter != workers*perWorker {
		t.Fatalf("expected %d increments, got %d", workers*perWorker, counter)
	}
}

func TestParseTakeoverPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    TakeoverPolicy
		wantErr bool
	}{
		{"", TakeoverWait, false},
		{"wait", TakeoverWait, false},
		{"steal", TakeoverSteal, false},
		{"yolo", TakeoverWait, true},
	}

	for _, tt := range tests {
		got, err := ParseTakeoverPolicy(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("ParseTakeoverPolicy(%q) = %v, %v", tt.input, got, err)
		}
	}

	if TakeoverSteal.String() != "steal" || TakeoverWait.String() != "wait" {
		t.Fatalf("unexpected policy strings")
	}
}
