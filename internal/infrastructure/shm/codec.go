package shm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync/atomic"
	"time"
	"unicode/utf8"
	"unsafe"

	"github.com/iho/slotledger/internal/domain"
)

// Row layout. All integers are little-endian regardless of the host.
const (
	AccountRowWidth = 24

	AccountIDOffset      = 0
	AccountLockOffset    = 4
	AccountBalanceOffset = 8
	AccountLimitOffset   = 16
)

const (
	TransactionRowWidth = 40

	TransactionIDOffset          = 0
	TransactionAccountIDOffset   = 4
	TransactionKindOffset        = 6
	TransactionAmountOffset      = 8
	TransactionCreatedAtOffset   = 16
	TransactionDescriptionOffset = 24

	DescriptionWidth = TransactionRowWidth - TransactionDescriptionOffset
)

// descriptionFill pads the description slot.
const descriptionFill byte = 0x00

var le = binary.LittleEndian

var hostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// AccountRow is the decoded form of an account slot.
type AccountRow struct {
	ID      uint32
	Locked  bool
	Balance int64
	Limit   int64
}

// TransactionRow is the decoded form of a transaction slot.
type TransactionRow struct {
	ID          uint32
	AccountID   uint16
	Kind        domain.Kind
	Amount      int64
	CreatedAt   int64
	Description string
}

// EncodeAccount writes a into dst, which must be AccountRowWidth bytes.
func EncodeAccount(dst []byte, a AccountRow) {
	mustWidth(dst, AccountRowWidth)
	le.PutUint32(dst[AccountIDOffset:], a.ID)
	var lock uint32
	if a.Locked {
		lock = 1
	}
	le.PutUint32(dst[AccountLockOffset:], lock)
	le.PutUint64(dst[AccountBalanceOffset:], uint64(a.Balance))
	le.PutUint64(dst[AccountLimitOffset:], uint64(a.Limit))
}

// DecodeAccount reads an account row from a private copy of a slot.
func DecodeAccount(src []byte) AccountRow {
	mustWidth(src, AccountRowWidth)
	return AccountRow{
		ID:      le.Uint32(src[AccountIDOffset:]),
		Locked:  le.Uint32(src[AccountLockOffset:]) != 0,
		Balance: int64(le.Uint64(src[AccountBalanceOffset:])),
		Limit:   int64(le.Uint64(src[AccountLimitOffset:])),
	}
}

// SnapshotAccount reads an account row directly from a live slot. The lock
// and balance fields are loaded atomically so a concurrent writer can make
// the snapshot stale but never torn.
func SnapshotAccount(slot []byte) AccountRow {
	mustWidth(slot, AccountRowWidth)
	return AccountRow{
		ID:      le.Uint32(slot[AccountIDOffset:]),
		Locked:  atomic.LoadUint32(AccountLockWord(slot)) != 0,
		Balance: LoadAccountBalance(slot),
		Limit:   int64(le.Uint64(slot[AccountLimitOffset:])),
	}
}

// AccountLockWord returns the lock word of a live account slot.
func AccountLockWord(slot []byte) *uint32 {
	return word32(slot, AccountLockOffset)
}

// LoadAccountBalance atomically reads the balance field of a live slot.
func LoadAccountBalance(slot []byte) int64 {
	return int64(fromLE64(atomic.LoadUint64(word64(slot, AccountBalanceOffset))))
}

// StoreAccountBalance atomically writes the balance field of a live slot.
func StoreAccountBalance(slot []byte, balance int64) {
	atomic.StoreUint64(word64(slot, AccountBalanceOffset), toLE64(uint64(balance)))
}

// AccountLimit reads the limit field. Limits are written once at
// provisioning, so no atomic load is needed.
func AccountLimit(slot []byte) int64 {
	return int64(le.Uint64(slot[AccountLimitOffset:]))
}

// EncodeTransaction writes t into dst, which must be TransactionRowWidth
// bytes. Descriptions longer than DescriptionWidth are truncated on a rune
// boundary.
func EncodeTransaction(dst []byte, t TransactionRow) {
	mustWidth(dst, TransactionRowWidth)
	le.PutUint32(dst[TransactionIDOffset:], t.ID)
	le.PutUint16(dst[TransactionAccountIDOffset:], t.AccountID)
	dst[TransactionKindOffset] = byte(t.Kind)
	dst[TransactionKindOffset+1] = 0
	le.PutUint64(dst[TransactionAmountOffset:], uint64(t.Amount))
	le.PutUint64(dst[TransactionCreatedAtOffset:], uint64(t.CreatedAt))

	desc := dst[TransactionDescriptionOffset:TransactionRowWidth]
	n := copy(desc, truncateDescription(t.Description))
	for i := n; i < len(desc); i++ {
		desc[i] = descriptionFill
	}
}

// DecodeTransaction reads a transaction row. It never fails for a block of
// the right width; unknown kind bytes decode to domain.KindUnknown.
func DecodeTransaction(src []byte) TransactionRow {
	mustWidth(src, TransactionRowWidth)
	desc := src[TransactionDescriptionOffset:TransactionRowWidth]
	return TransactionRow{
		ID:          le.Uint32(src[TransactionIDOffset:]),
		AccountID:   le.Uint16(src[TransactionAccountIDOffset:]),
		Kind:        domain.KindFromByte(src[TransactionKindOffset]),
		Amount:      int64(le.Uint64(src[TransactionAmountOffset:])),
		CreatedAt:   int64(le.Uint64(src[TransactionCreatedAtOffset:])),
		Description: string(bytes.TrimRight(desc, string(descriptionFill))),
	}
}

// ToDomain converts a decoded row to a domain.Transaction.
func (t TransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:          t.ID,
		AccountID:   int(t.AccountID),
		Amount:      t.Amount,
		Kind:        t.Kind,
		Description: t.Description,
		CreatedAt:   time.Unix(0, t.CreatedAt).UTC(),
	}
}

func truncateDescription(s string) string {
	if len(s) <= DescriptionWidth {
		return s
	}
	n := DescriptionWidth
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func mustWidth(b []byte, width int) {
	if len(b) != width {
		panic(fmt.Sprintf("shm: row block is %d bytes, want %d: %v", len(b), width, domain.ErrOutOfRange))
	}
}

// word32 and word64 reinterpret aligned fields of mapped memory for atomic
// access. Region guarantees 8-byte alignment of the base address and all
// row widths and offsets are multiples of the field size.
func word32(b []byte, off int) *uint32 {
	_ = b[off+3]
	return (*uint32)(unsafe.Pointer(&b[off]))
}

func word64(b []byte, off int) *uint64 {
	_ = b[off+7]
	return (*uint64)(unsafe.Pointer(&b[off]))
}

func toLE32(v uint32) uint32 {
	if hostLittleEndian {
		return v
	}
	return bits.ReverseBytes32(v)
}

func fromLE32(v uint32) uint32 { return toLE32(v) }

func toLE64(v uint64) uint64 {
	if hostLittleEndian {
		return v
	}
	return bits.ReverseBytes64(v)
}

func fromLE64(v uint64) uint64 { return toLE64(v) }
