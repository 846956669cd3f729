package shm

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLockDirExclusiveThenShared(t *testing.T) {
	dir := t.TempDir()

	first, exclusive, err := LockDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exclusive {
		t.Fatalf("expected the first lock to be exclusive")
	}

	type result struct {
		lock      *DirLock
		exclusive bool
		err       error
	}
	done := make(chan result, 1)
	go func() {
		lock, exclusive, err := LockDir(dir)
		done <- result{lock, exclusive, err}
	}()

	select {
	case <-done:
		t.Fatalf("second lock must wait while the first is exclusive")
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Share(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var second result
	select {
	case second = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("second lock still waiting after share")
	}
	if second.err != nil {
		t.Fatalf("unexpected error: %v", second.err)
	}
	if second.exclusive {
		t.Fatalf("expected the second lock to be shared")
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := second.lock.Unlock(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	third, exclusive, err := LockDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer third.Unlock()
	if !exclusive {
		t.Fatalf("expected an exclusive lock once every holder left")
	}
}

func TestLockDirMissingDirectory(t *testing.T) {
	if _, _, err := LockDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}

func TestClearStale(t *testing.T) {
	lock, region := newTestLock(t, DefaultLockConfig())
	if ClearStale(region.LockWord()) {
		t.Fatalf("free word reported as stale")
	}
	lock.Acquire()
	if !ClearStale(region.LockWord()) {
		t.Fatalf("held word not reported as stale")
	}
	if lock.Held() {
		t.Fatalf("expected lock to be free after clearing")
	}
}
