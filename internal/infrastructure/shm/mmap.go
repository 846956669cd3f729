package shm

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenFileRegion maps the file at path as a shared region so several
// processes on one host see the same bytes. The file is created if needed.
// When reset is true, or the file's size does not match the requested
// shape, the file is truncated and zero-filled; otherwise existing contents
// are attached as-is.
func OpenFileRegion(path, name string, rowWidth, capacity int, reset bool) (*Region, error) {
	if err := validateShape(rowWidth, capacity); err != nil {
		return nil, err
	}

	size := RegionSize(rowWidth, capacity)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open region file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat region file: %w", err)
	}

	fresh := reset || info.Size() != int64(size)
	if fresh {
		if err := f.Truncate(0); err != nil {
			return nil, fmt.Errorf("failed to truncate region file: %w", err)
		}
		if err := f.Truncate(int64(size)); err != nil {
			return nil, fmt.Errorf("failed to size region file: %w", err)
		}
	}

	return mapFile(f, name, rowWidth, size, fresh)
}

// AttachFileRegion maps an existing region file without modifying it. The
// capacity is derived from the file size.
func AttachFileRegion(path, name string, rowWidth int) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open region file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat region file: %w", err)
	}

	size := int(info.Size())
	if size <= HeaderWidth || (size-HeaderWidth)%rowWidth != 0 {
		return nil, fmt.Errorf("region file %s has unexpected size %d", path, size)
	}

	return mapFile(f, name, rowWidth, size, false)
}

func mapFile(f *os.File, name string, rowWidth, size int, fresh bool) (*Region, error) {
	buf, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap region file: %w", err)
	}

	return &Region{
		name:     name,
		buf:      buf,
		rowWidth: rowWidth,
		capacity: (size - HeaderWidth) / rowWidth,
		fresh:    fresh,
		syncer: func() error {
			return unix.Msync(buf, unix.MS_SYNC)
		},
		closer: func() error {
			return errors.Join(
				unix.Msync(buf, unix.MS_SYNC),
				unix.Munmap(buf),
			)
		},
	}, nil
}
