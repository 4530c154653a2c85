package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is a single venue's answer for one pair within one scan tick. Quotes
// are ephemeral; they are created, compared, and discarded inside a tick.
type Quote struct {
	Venue     string
	PairIndex int

	// Out is the quoted output amount in token1 units for the probe input.
	// Only meaningful when Valid is true.
	Out   float64
	Valid bool
}

// Opportunity is a spread at or above the owning user's threshold, detected
// between two venues for one pair.
type Opportunity struct {
	UserID    int64
	PairIndex int
	PairName  string
	Token0    common.Address
	Token1    common.Address

	VenueA  string
	VenueB  string
	RouterA common.Address
	RouterB common.Address

	// Spread is the relative price difference in percent of the lower quote.
	// QuoteA and QuoteB are the resolved per-venue prices behind it.
	Spread float64
	QuoteA float64
	QuoteB float64

	DetectedAt time.Time
}

// TradeStatus is the terminal state of one execution attempt.
type TradeStatus string

const (
	TradeSuccess TradeStatus = "SUCCESS"
	TradeFailed  TradeStatus = "FAILED"
)

// TradeRecord is the audit entry for one execution attempt. A record is
// created once, durably appended to the owning user's ledger, and never
// mutated; corrections are new records.
type TradeRecord struct {
	ID        string
	UserID    int64
	Timestamp time.Time
	Pair      string
	VenueA    string
	VenueB    string
	Leverage  int
	AmountIn  float64

	// Profit is the native-balance delta across the trade (gas folded in).
	// Nil when the execution failed before it could be measured.
	Profit *float64

	// Fee is the skimmed portion of a positive profit. Nil on failure, zero
	// when no profit was realized.
	Fee *float64

	// GasUsed is the gas consumed by the trade transaction, when known.
	GasUsed *int64

	// TxHashes lists every transaction produced by the attempt, in submission
	// order, including those submitted before a mid-run failure.
	TxHashes []string

	Status TradeStatus
	Error  string
}
