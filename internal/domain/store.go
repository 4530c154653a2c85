package domain

import (
	"context"
	"io"
	"time"
)

// ConfigStore is the read surface the core consumes. Implementations must
// return defensive copies: a snapshot taken during a tick is never affected
// by concurrent UI mutation.
type ConfigStore interface {
	// Get returns the user's configuration, or a default one if the user is
	// unknown.
	Get(userID int64) UserConfig

	// Snapshot returns a copy of every registered user's configuration in a
	// deterministic order.
	Snapshot() []UserConfig
}

// WalletService resolves the wallet for a user. Depending on configuration it
// either creates missing wallets on first use or fails with ErrWalletNotFound.
type WalletService interface {
	GetOrCreate(ctx context.Context, userID int64) (Wallet, error)
}

// TradeLedger is the durable, append-only, per-user execution history.
// Append must be durable before returning success. Records are immutable.
type TradeLedger interface {
	Append(ctx context.Context, rec TradeRecord) error

	// ReadLast returns up to n most recent records for the user, newest
	// first.
	ReadLast(ctx context.Context, userID int64, n int) ([]TradeRecord, error)

	// SumProfit and SumFee aggregate over SUCCESS records only; FAILED
	// records are excluded regardless of any numeric fields they carry.
	SumProfit(ctx context.Context, userID int64) (float64, error)
	SumFee(ctx context.Context, userID int64) (float64, error)
}

// NotificationSink delivers best-effort status messages to a user. Calls
// never block and delivery is not guaranteed; failures must not influence
// scanning or execution.
type NotificationSink interface {
	Notify(userID int64, message string)
}

// LockManager provides mutual exclusion keyed by string. Acquire returns an
// unlock function on success, or ErrLockHeld when another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// QuoteCache is a best-effort cache of the latest quote per (venue, pair),
// published by the scan loop for the UI layer. Errors are advisory.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, venue string, pairIndex int) (Quote, error)
}

// BlobWriter stores an object at path in durable object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader retrieves and enumerates stored objects. Get returns
// ErrNotFound for a missing object.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
