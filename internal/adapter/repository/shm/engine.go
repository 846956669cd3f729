// Package shm implements the ledger store on fixed-size shared-memory
// regions: one accounts table with a busy-wait lock per account row, and one
// append-only transaction table per account guarded by its header lock.
package shm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/slotledger/internal/domain"
	"github.com/iho/slotledger/internal/infrastructure/metrics"
	mem "github.com/iho/slotledger/internal/infrastructure/shm"
)

const (
	// MaxRecentTransactions bounds RecentTransactions.
	MaxRecentTransactions = 10

	// DefaultTransactionCapacity is the per-account log size used when
	// Config leaves it unset.
	DefaultTransactionCapacity = 100_000

	accountsTable     = "accounts"
	transactionsTable = "transactions"
	accountsFile      = "accounts.shm"
)

// Config describes the regions to provision.
type Config struct {
	// Limits holds the overdraft limit of accounts 1..len(Limits).
	Limits []int64
	// TransactionCapacity is the number of slots in each account's log.
	TransactionCapacity int
	// Dir holds the region files. Empty keeps everything in process memory.
	Dir string
	// Reset re-provisions file regions even if they are already provisioned.
	Reset bool
	// Lock tunes the busy-wait locks.
	Lock mem.LockConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records engine metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With().Str("component", "ledger_engine").Logger() }
}

// Engine is the ledger store. It is safe for concurrent use, and when backed
// by files it may be shared with other processes mapping the same directory.
type Engine struct {
	dirLock      *mem.DirLock
	accounts     *mem.Region
	accountLocks []*mem.SpinLock
	txns         []*mem.Region
	txnLocks     []*mem.SpinLock

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Open creates or attaches the regions described by cfg. Accounts are
// seeded with a zero balance and their configured limit whenever the
// accounts region is fresh, was provisioned with different limits, or
// cfg.Reset is set. Seeding also zeroes every transaction log.
//
// An existing directory whose logs were sized with a different
// TransactionCapacity is refused with ErrLayoutMismatch unless cfg.Reset is
// set. When no other process has the directory open, lock words left set by
// a process that died while holding them are cleared.
func Open(cfg Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}

	n := len(cfg.Limits)

	sole := false
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		lock, exclusive, err := mem.LockDir(cfg.Dir)
		if err != nil {
			return nil, err
		}
		e.dirLock = lock
		sole = exclusive
	}

	accounts, err := openRegion(cfg, accountsFile, accountsTable, mem.AccountRowWidth, n, cfg.Reset)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to open accounts region: %w", err)
	}
	e.accounts = accounts

	if sole {
		e.clearStale(accountsTable, 0, accounts.LockWord())
	}

	// The accounts header lock serializes provisioning between processes
	// that start at the same time against one directory.
	tableLock := mem.NewSpinLock(accounts.LockWord(), cfg.Lock)
	tableLock.Acquire()
	provision := accounts.Fresh() || !e.provisionedWith(cfg.Limits)

	if !provision && cfg.Dir != "" {
		if err := checkLogLayout(cfg.Dir, n, cfg.TransactionCapacity); err != nil {
			tableLock.Release()
			_ = e.Close()
			return nil, err
		}
	}

	for i := range n {
		region, err := openRegion(cfg, txnFile(i+1), transactionsTable, mem.TransactionRowWidth, cfg.TransactionCapacity, provision)
		if err != nil {
			tableLock.Release()
			_ = e.Close()
			return nil, fmt.Errorf("failed to open transaction region for account %d: %w", i+1, err)
		}
		e.txns = append(e.txns, region)
	}

	if sole {
		e.clearStaleRows()
	}
	if provision {
		e.provision(cfg.Limits)
	}
	tableLock.Release()

	if sole {
		if err := e.dirLock.Share(); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to share directory lock: %w", err)
		}
	}

	e.buildLocks(cfg.Lock)

	e.logger.Info().
		Int("accounts", n).
		Int("transaction_capacity", cfg.TransactionCapacity).
		Str("dir", cfg.Dir).
		Bool("provisioned", provision).
		Str("lock_policy", cfg.Lock.Policy.String()).
		Msg("ledger storage ready")

	return e, nil
}

// Attach maps an already provisioned directory without re-provisioning it.
// Like Open, it clears stale lock words when it is the only process attached.
func Attach(dir string, lock mem.LockConfig, opts ...Option) (*Engine, error) {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}

	dirLock, sole, err := mem.LockDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotProvisioned
		}
		return nil, err
	}
	e.dirLock = dirLock

	accounts, err := mem.AttachFileRegion(filepath.Join(dir, accountsFile), accountsTable, mem.AccountRowWidth)
	if err != nil {
		_ = e.Close()
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotProvisioned
		}
		return nil, err
	}
	e.accounts = accounts

	n := int(accounts.ReadHeader())
	if n == 0 || n > accounts.Capacity() {
		_ = e.Close()
		return nil, domain.ErrNotProvisioned
	}

	for i := range n {
		region, err := mem.AttachFileRegion(filepath.Join(dir, txnFile(i+1)), transactionsTable, mem.TransactionRowWidth)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to attach transaction region for account %d: %w", i+1, err)
		}
		e.txns = append(e.txns, region)
	}

	if sole {
		e.clearStale(accountsTable, 0, accounts.LockWord())
		e.clearStaleRows()
		if err := dirLock.Share(); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to share directory lock: %w", err)
		}
	}

	e.buildLocks(lock)
	return e, nil
}

func txnFile(id int) string {
	return fmt.Sprintf("transactions-%d.shm", id)
}

// checkLogLayout verifies that every transaction file of a provisioned
// directory exists with the size capacity implies. Opening a log at another
// size would rewrite it and orphan the balances it backs.
func checkLogLayout(dir string, n, capacity int) error {
	want := mem.RegionSize(mem.TransactionRowWidth, capacity)
	for id := 1; id <= n; id++ {
		info, err := os.Stat(filepath.Join(dir, txnFile(id)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("transaction log of account %d is missing: %w", id, domain.ErrLayoutMismatch)
			}
			return fmt.Errorf("failed to stat transaction log of account %d: %w", id, err)
		}
		if info.Size() != int64(want) {
			return fmt.Errorf("transaction log of account %d holds %d bytes, transaction capacity %d needs %d: %w",
				id, info.Size(), capacity, want, domain.ErrLayoutMismatch)
		}
	}
	return nil
}

// clearStaleRows frees every account row lock and log header lock. Callers
// must hold the directory lock exclusively.
func (e *Engine) clearStaleRows() {
	for i, region := range e.txns {
		slot, _ := e.accounts.Slot(i)
		e.clearStale(accountsTable, i+1, mem.AccountLockWord(slot))
		e.clearStale(transactionsTable, i+1, region.LockWord())
	}
}

func (e *Engine) clearStale(table string, id int, word *uint32) {
	if mem.ClearStale(word) {
		e.logger.Warn().
			Str("table", table).
			Int("account_id", id).
			Msg("cleared stale lock left by a previous process")
	}
}

func validateConfig(cfg *Config) error {
	n := len(cfg.Limits)
	if n == 0 {
		return errors.New("at least one account limit is required")
	}
	if n > math.MaxUint16 {
		return fmt.Errorf("too many accounts: %d", n)
	}
	for i, limit := range cfg.Limits {
		if limit < 0 {
			return fmt.Errorf("limit for account %d must not be negative", i+1)
		}
	}
	if cfg.TransactionCapacity <= 0 {
		cfg.TransactionCapacity = DefaultTransactionCapacity
	}
	if cfg.Lock.MaxAttempts <= 0 {
		cfg.Lock = mem.DefaultLockConfig()
	}
	return nil
}

func openRegion(cfg Config, file, table string, rowWidth, capacity int, reset bool) (*mem.Region, error) {
	if cfg.Dir == "" {
		return mem.NewMemoryRegion(table, rowWidth, capacity)
	}
	return mem.OpenFileRegion(filepath.Join(cfg.Dir, file), table, rowWidth, capacity, reset)
}

// provisionedWith reports whether the accounts region already holds exactly
// the accounts described by limits.
func (e *Engine) provisionedWith(limits []int64) bool {
	if int(e.accounts.ReadHeader()) != len(limits) {
		return false
	}
	for i, limit := range limits {
		slot, err := e.accounts.Slot(i)
		if err != nil {
			return false
		}
		row := mem.SnapshotAccount(slot)
		if row.ID != uint32(i+1) || row.Limit != limit {
			return false
		}
	}
	return true
}

// provision runs with the accounts header lock held, so it rewrites slots
// one by one instead of clearing the region and the lock word with it.
func (e *Engine) provision(limits []int64) {
	e.accounts.WriteHeader(0)
	for _, region := range e.txns {
		region.Reset()
	}

	for i, limit := range limits {
		// Slots exist for every configured account by construction.
		slot, _ := e.accounts.Slot(i)
		mem.EncodeAccount(slot, mem.AccountRow{ID: uint32(i + 1), Limit: limit})
		e.metrics.SetBalance(i+1, 0)
	}

	// Publishing the count last marks the table as provisioned.
	e.accounts.WriteHeader(uint32(len(limits)))
}

func (e *Engine) buildLocks(cfg mem.LockConfig) {
	e.accountLocks = make([]*mem.SpinLock, len(e.txns))
	e.txnLocks = make([]*mem.SpinLock, len(e.txns))
	for i, region := range e.txns {
		slot, _ := e.accounts.Slot(i)
		e.accountLocks[i] = mem.NewSpinLock(mem.AccountLockWord(slot), cfg)
		e.txnLocks[i] = mem.NewSpinLock(region.LockWord(), cfg)
	}
}

// AccountCount returns the number of provisioned accounts.
func (e *Engine) AccountCount() int {
	return len(e.txns)
}

// accountSlot validates id and returns its live slot. Validating here keeps
// ErrOutOfRange unreachable from the public operations.
func (e *Engine) accountSlot(id int) ([]byte, error) {
	if id < 1 || id > len(e.txns) {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return e.accounts.Slot(id - 1)
}

// GetBalance returns the balance without taking the account lock. The value
// may be stale but is never torn.
func (e *Engine) GetBalance(ctx context.Context, id int) (int64, error) {
	slot, err := e.accountSlot(id)
	if err != nil {
		return 0, err
	}
	return mem.LoadAccountBalance(slot), nil
}

// GetAccount returns a lock-free snapshot of one account.
func (e *Engine) GetAccount(ctx context.Context, id int) (*domain.Account, error) {
	slot, err := e.accountSlot(id)
	if err != nil {
		return nil, err
	}
	return accountFromRow(mem.SnapshotAccount(slot)), nil
}

// Accounts returns a lock-free snapshot of every account.
func (e *Engine) Accounts(ctx context.Context) ([]*domain.Account, error) {
	out := make([]*domain.Account, 0, len(e.txns))
	for id := 1; id <= len(e.txns); id++ {
		acc, err := e.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// ApplyDelta adds delta to the balance of account id under its lock. If the
// result would fall below -limit the balance is left unchanged and
// ErrRejected is returned together with the current balance.
func (e *Engine) ApplyDelta(ctx context.Context, id int, delta int64) (int64, error) {
	defer e.metrics.ObserveOperation("apply_delta", time.Now())

	slot, err := e.accountSlot(id)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lock := e.accountLocks[id-1]
	e.observeLock(accountsTable, id, lock.Acquire())
	defer lock.Release()

	return e.applyDeltaLocked(id, slot, delta)
}

// applyDeltaLocked runs with the account lock of id held.
func (e *Engine) applyDeltaLocked(id int, slot []byte, delta int64) (int64, error) {
	acc := domain.Account{
		ID:      id,
		Balance: mem.LoadAccountBalance(slot),
		Limit:   mem.AccountLimit(slot),
	}

	newBalance, err := acc.CanApply(delta)
	if err != nil {
		e.metrics.ObserveDelta(id, acc.Balance, true)
		return acc.Balance, err
	}

	mem.StoreAccountBalance(slot, newBalance)
	e.metrics.ObserveDelta(id, newBalance, false)

	return newBalance, nil
}

// AppendTransaction writes a new row to the log of account id and returns
// its sequence id. Ids start at 1 and increase by one per append.
func (e *Engine) AppendTransaction(ctx context.Context, id int, amount int64, kind domain.Kind, description string, at time.Time) (uint32, error) {
	defer e.metrics.ObserveOperation("append_transaction", time.Now())

	if _, err := e.accountSlot(id); err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	if kind != domain.KindCredit && kind != domain.KindDebit {
		return 0, domain.ErrInvalidKind
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	lock := e.txnLocks[id-1]
	e.observeLock(transactionsTable, id, lock.Acquire())
	defer lock.Release()

	return e.appendLocked(id, amount, kind, description, at)
}

// appendLocked runs with the log header lock of id held.
func (e *Engine) appendLocked(id int, amount int64, kind domain.Kind, description string, at time.Time) (uint32, error) {
	region := e.txns[id-1]

	// The header counts rows written so far; the new row takes slot count
	// and sequence id count+1.
	count := region.ReadHeader()
	slot, err := region.Slot(int(count))
	if err != nil {
		e.metrics.ObserveAppend(true)
		e.logger.Error().
			Int("account_id", id).
			Int("capacity", region.Capacity()).
			Msg("transaction log full")
		return 0, fmt.Errorf("account %d: %w", id, domain.ErrCapacityExceeded)
	}

	seq := count + 1
	mem.EncodeTransaction(slot, mem.TransactionRow{
		ID:          seq,
		AccountID:   uint16(id),
		Kind:        kind,
		Amount:      amount,
		CreatedAt:   at.UnixNano(),
		Description: description,
	})
	region.WriteHeader(seq)
	e.metrics.ObserveAppend(false)

	return seq, nil
}

// RecentTransactions returns up to limit rows of account id, newest first.
// It reads without a lock: rows appended concurrently may be missed, but
// every returned row is complete. limit is clamped to
// MaxRecentTransactions; zero or negative means the maximum.
func (e *Engine) RecentTransactions(ctx context.Context, id int, limit int) ([]domain.Transaction, error) {
	defer e.metrics.ObserveOperation("recent_transactions", time.Now())

	if _, err := e.accountSlot(id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxRecentTransactions {
		limit = MaxRecentTransactions
	}

	region := e.txns[id-1]
	count := min(int(region.ReadHeader()), region.Capacity())

	out := make([]domain.Transaction, 0, min(limit, count))
	for i := count - 1; i >= 0 && len(out) < limit; i-- {
		slot, err := region.Slot(i)
		if err != nil {
			return nil, err
		}
		out = append(out, mem.DecodeTransaction(slot).ToDomain())
	}

	return out, nil
}

// ReplayBalance folds the whole transaction log of account id into a net
// signed amount. With no concurrent writers it equals the stored balance.
func (e *Engine) ReplayBalance(ctx context.Context, id int) (int64, int, error) {
	defer e.metrics.ObserveOperation("replay_balance", time.Now())

	if _, err := e.accountSlot(id); err != nil {
		return 0, 0, err
	}

	region := e.txns[id-1]
	count := min(int(region.ReadHeader()), region.Capacity())

	var net int64
	for i := range count {
		if i%4096 == 0 && ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		slot, err := region.Slot(i)
		if err != nil {
			return 0, 0, err
		}
		row := mem.DecodeTransaction(slot)
		delta, err := domain.SignedAmount(row.Kind, row.Amount)
		if err != nil {
			return 0, 0, fmt.Errorf("row %d of account %d: %w", i, id, err)
		}
		net += delta
	}

	return net, count, nil
}

// Post applies a transaction to the balance and appends it to the log while
// holding the account lock, so log order matches the order in which balances
// changed. Locks are always taken account first, then log. A rejected delta
// appends nothing. If the append fails after the balance changed, the
// balance is not rolled back and the error is returned with the updated
// account.
func (e *Engine) Post(ctx context.Context, id int, kind domain.Kind, amount int64, description string, at time.Time) (*domain.Account, uint32, error) {
	defer e.metrics.ObserveOperation("post", time.Now())

	delta, err := domain.SignedAmount(kind, amount)
	if err != nil {
		return nil, 0, err
	}
	slot, err := e.accountSlot(id)
	if err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	accountLock := e.accountLocks[id-1]
	e.observeLock(accountsTable, id, accountLock.Acquire())
	defer accountLock.Release()

	balance, err := e.applyDeltaLocked(id, slot, delta)
	if err != nil {
		return nil, 0, err
	}
	acc := &domain.Account{ID: id, Balance: balance, Limit: mem.AccountLimit(slot)}

	txnLock := e.txnLocks[id-1]
	e.observeLock(transactionsTable, id, txnLock.Acquire())
	defer txnLock.Release()

	seq, err := e.appendLocked(id, amount, kind, description, at)
	if err != nil {
		e.logger.Error().Err(err).
			Int("account_id", id).
			Int64("balance", balance).
			Msg("balance applied but transaction not recorded")
		return acc, 0, err
	}

	return acc, seq, nil
}

// Sync flushes file-backed regions.
func (e *Engine) Sync() error {
	errs := []error{e.accounts.Sync()}
	for _, region := range e.txns {
		errs = append(errs, region.Sync())
	}
	return errors.Join(errs...)
}

// Close unmaps every region and releases the directory lock.
func (e *Engine) Close() error {
	var errs []error
	if e.accounts != nil {
		errs = append(errs, e.accounts.Close())
	}
	for _, region := range e.txns {
		errs = append(errs, region.Close())
	}
	if e.dirLock != nil {
		errs = append(errs, e.dirLock.Unlock())
	}
	return errors.Join(errs...)
}

func (e *Engine) observeLock(table string, id int, stats mem.AcquireStats) {
	e.metrics.ObserveLock(table, stats.Attempts, stats.Contended, stats.TakenOver)
	if stats.TakenOver {
		e.logger.Warn().
			Str("table", table).
			Int("account_id", id).
			Int("attempts", stats.Attempts).
			Msg("forced lock takeover")
	}
}

func accountFromRow(row mem.AccountRow) *domain.Account {
	return &domain.Account{
		ID:      int(row.ID),
		Balance: row.Balance,
		Limit:   row.Limit,
		Locked:  row.Locked,
	}
}
