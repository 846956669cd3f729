package shm

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	lockFree uint32 = 0
)

var lockHeld = toLE32(1)

// TakeoverPolicy decides what Acquire does once MaxAttempts tries have
// failed to observe the lock free.
type TakeoverPolicy int

const (
	// TakeoverWait keeps retrying with exponential backoff and never
	// overrides the holder.
	TakeoverWait TakeoverPolicy = iota
	// TakeoverSteal forcibly resets the lock to free and retries. A slow
	// holder can be overridden mid critical section.
	TakeoverSteal
)

// ParseTakeoverPolicy parses "wait" or "steal".
func ParseTakeoverPolicy(s string) (TakeoverPolicy, error) {
	switch s {
	case "", "wait":
		return TakeoverWait, nil
	case "steal":
		return TakeoverSteal, nil
	default:
		return TakeoverWait, fmt.Errorf("unknown lock takeover policy %q", s)
	}
}

func (p TakeoverPolicy) String() string {
	if p == TakeoverSteal {
		return "steal"
	}
	return "wait"
}

// LockConfig tunes the busy-wait loop.
type LockConfig struct {
	MaxAttempts int           // tries per round before the takeover policy applies
	Pause       time.Duration // pause between tries; zero yields the processor
	MaxPause    time.Duration // backoff ceiling for TakeoverWait
	Policy      TakeoverPolicy
}

// DefaultLockConfig returns the settings used when none are configured.
func DefaultLockConfig() LockConfig {
	return LockConfig{
		MaxAttempts: 10,
		Pause:       time.Nanosecond,
		MaxPause:    time.Millisecond,
		Policy:      TakeoverWait,
	}
}

// AcquireStats describes how an acquisition went.
type AcquireStats struct {
	Attempts  int
	Contended bool
	TakenOver bool
}

// SpinLock is a mutual-exclusion flag stored in a 32-bit word of shared
// memory. It has no fairness and no wake-up signal: waiters poll.
type SpinLock struct {
	word *uint32
	cfg  LockConfig
}

// NewSpinLock builds a lock over word.
func NewSpinLock(word *uint32, cfg LockConfig) *SpinLock {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultLockConfig().MaxAttempts
	}
	if cfg.MaxPause <= 0 {
		cfg.MaxPause = DefaultLockConfig().MaxPause
	}
	return &SpinLock{word: word, cfg: cfg}
}

// TryAcquire makes a single attempt.
func (l *SpinLock) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(l.word, lockFree, lockHeld)
}

// Acquire spins until the lock is held by the caller.
func (l *SpinLock) Acquire() AcquireStats {
	stats := AcquireStats{Attempts: 1}
	if l.TryAcquire() {
		return stats
	}
	stats.Contended = true

	var wait backoff.BackOff
	for {
		for i := 1; i < l.cfg.MaxAttempts; i++ {
			l.pause()
			stats.Attempts++
			if l.TryAcquire() {
				return stats
			}
		}

		switch l.cfg.Policy {
		case TakeoverSteal:
			atomic.StoreUint32(l.word, lockFree)
			stats.TakenOver = true
		default:
			if wait == nil {
				wait = l.newWaitBackOff()
			}
			time.Sleep(wait.NextBackOff())
		}

		stats.Attempts++
		if l.TryAcquire() {
			return stats
		}
	}
}

// Release marks the lock free regardless of who holds it.
func (l *SpinLock) Release() {
	atomic.StoreUint32(l.word, lockFree)
}

// ClearStale frees word and reports whether it was set. It is only safe when
// no live process can be holding the lock.
func ClearStale(word *uint32) bool {
	return atomic.SwapUint32(word, lockFree) != lockFree
}

// Held reports whether the lock word is currently set.
func (l *SpinLock) Held() bool {
	return atomic.LoadUint32(l.word) != lockFree
}

func (l *SpinLock) pause() {
	if l.cfg.Pause <= 0 {
		runtime.Gosched()
		return
	}
	time.Sleep(l.cfg.Pause)
}

func (l *SpinLock) newWaitBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(l.cfg.Pause, time.Microsecond)
	b.MaxInterval = l.cfg.MaxPause
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
