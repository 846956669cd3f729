package shm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const dirLockFile = ".lock"

// DirLock is an advisory flock(2) on a ledger directory. Every engine that
// maps the directory holds it shared while open, so a process that obtains
// it exclusively is the only one attached and may repair the regions.
type DirLock struct {
	f *os.File
}

// LockDir locks dir. It first tries an exclusive lock without blocking and
// reports whether that succeeded; otherwise it waits for a shared lock.
func LockDir(dir string) (*DirLock, bool, error) {
	f, err := os.OpenFile(filepath.Join(dir, dirLockFile), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open directory lock: %w", err)
	}
	lock := &DirLock{f: f}

	err = flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return lock, true, nil
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		_ = f.Close()
		return nil, false, fmt.Errorf("failed to lock directory: %w", err)
	}

	if err := flock(int(f.Fd()), unix.LOCK_SH); err != nil {
		_ = f.Close()
		return nil, false, fmt.Errorf("failed to lock directory: %w", err)
	}
	return lock, false, nil
}

// Share downgrades an exclusive lock so other processes can attach.
func (l *DirLock) Share() error {
	return flock(int(l.f.Fd()), unix.LOCK_SH)
}

// Unlock releases the lock and closes its file.
func (l *DirLock) Unlock() error {
	return errors.Join(
		flock(int(l.f.Fd()), unix.LOCK_UN),
		l.f.Close(),
	)
}

func flock(fd, how int) error {
	for {
		err := unix.Flock(fd, how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
