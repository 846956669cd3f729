package shm

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/iho/slotledger/internal/domain"
)

// Control header layout, shared by every region.
const (
	HeaderWidth = 8

	HeaderNextIDOffset = 0
	HeaderLockOffset   = 4
)

// Region is a fixed-size byte area holding a control header followed by
// capacity row slots of rowWidth bytes each. Slot i starts at
// HeaderWidth + i*rowWidth. Capacity never changes after creation.
type Region struct {
	name     string
	buf      []byte
	rowWidth int
	capacity int
	fresh    bool
	syncer   func() error
	closer   func() error
}

// RegionSize returns the number of bytes a region of the given shape needs.
func RegionSize(rowWidth, capacity int) int {
	return HeaderWidth + rowWidth*capacity
}

// NewMemoryRegion allocates a zero-filled region in process memory.
func NewMemoryRegion(name string, rowWidth, capacity int) (*Region, error) {
	if err := validateShape(rowWidth, capacity); err != nil {
		return nil, err
	}

	size := RegionSize(rowWidth, capacity)

	// Backing the bytes with uint64 words keeps the base 8-byte aligned.
	words := make([]uint64, (size+7)/8)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)

	return &Region{
		name:     name,
		buf:      buf,
		rowWidth: rowWidth,
		capacity: capacity,
		fresh:    true,
	}, nil
}

func validateShape(rowWidth, capacity int) error {
	if rowWidth <= 0 || rowWidth%8 != 0 {
		return fmt.Errorf("row width %d must be a positive multiple of 8", rowWidth)
	}
	if capacity <= 0 {
		return fmt.Errorf("capacity %d must be positive", capacity)
	}
	return nil
}

// Name returns the region's label, used in logs and metrics.
func (r *Region) Name() string { return r.name }

// Capacity returns the number of row slots.
func (r *Region) Capacity() int { return r.capacity }

// RowWidth returns the width of one slot in bytes.
func (r *Region) RowWidth() int { return r.rowWidth }

// Fresh reports whether the region was zero-filled when it was opened.
func (r *Region) Fresh() bool { return r.fresh }

// Slot returns a view of slot i backed by the region's memory. Writes to the
// returned slice are visible to every user of the region.
func (r *Region) Slot(i int) ([]byte, error) {
	if i < 0 || i >= r.capacity {
		return nil, fmt.Errorf("%s slot %d of %d: %w", r.name, i, r.capacity, domain.ErrOutOfRange)
	}
	off := HeaderWidth + i*r.rowWidth
	return r.buf[off : off+r.rowWidth : off+r.rowWidth], nil
}

// ReadSlot returns a copy of slot i.
func (r *Region) ReadSlot(i int) ([]byte, error) {
	slot, err := r.Slot(i)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(slot))
	copy(out, slot)
	return out, nil
}

// WriteSlot overwrites slot i with b, which must be exactly one row wide.
func (r *Region) WriteSlot(i int, b []byte) error {
	slot, err := r.Slot(i)
	if err != nil {
		return err
	}
	if len(b) != r.rowWidth {
		return fmt.Errorf("%s write of %d bytes into %d-byte slot: %w", r.name, len(b), r.rowWidth, domain.ErrOutOfRange)
	}
	copy(slot, b)
	return nil
}

// ReadHeader atomically loads the next_id counter.
func (r *Region) ReadHeader() uint32 {
	return fromLE32(atomic.LoadUint32(word32(r.buf, HeaderNextIDOffset)))
}

// WriteHeader atomically stores the next_id counter. A store publishes every
// slot written before it to readers that load the counter afterwards.
func (r *Region) WriteHeader(next uint32) {
	atomic.StoreUint32(word32(r.buf, HeaderNextIDOffset), toLE32(next))
}

// LockWord returns the header lock word guarding the whole region.
func (r *Region) LockWord() *uint32 {
	return word32(r.buf, HeaderLockOffset)
}

// Reset zero-fills the whole region including its header.
func (r *Region) Reset() {
	clear(r.buf)
	r.fresh = true
}

// Sync flushes a file-backed region to disk. It is a no-op for memory
// regions.
func (r *Region) Sync() error {
	if r.syncer == nil {
		return nil
	}
	return r.syncer()
}

// Close releases the backing memory. The region must not be used afterwards.
func (r *Region) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer()
	r.closer = nil
	r.buf = nil
	return err
}
