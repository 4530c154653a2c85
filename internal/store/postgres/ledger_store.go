package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// LedgerStore implements domain.TradeLedger using PostgreSQL. Each record is
// written with a single INSERT, which is atomic and durable on commit, so
// concurrent appends for one user cannot lose each other's writes.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Append durably inserts a trade record. Records carry no updated-at; there
// is no update path, corrections are new records.
func (s *LedgerStore) Append(ctx context.Context, rec domain.TradeRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	hashes, err := json.Marshal(rec.TxHashes)
	if err != nil {
		return fmt.Errorf("postgres: marshal tx hashes: %w", err)
	}

	const query = `
		INSERT INTO trade_records (
			id, user_id, ts, pair, venue_a, venue_b,
			leverage, amount_in, profit, fee, gas_used,
			tx_hashes, status, error
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)`

	_, err = s.pool.Exec(ctx, query,
		id, rec.UserID, rec.Timestamp, rec.Pair, rec.VenueA, rec.VenueB,
		rec.Leverage, rec.AmountIn, rec.Profit, rec.Fee, rec.GasUsed,
		hashes, string(rec.Status), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade record for user %d: %w", rec.UserID, err)
	}
	return nil
}

const ledgerSelectCols = `id, user_id, ts, pair, venue_a, venue_b,
	leverage, amount_in, profit, fee, gas_used, tx_hashes, status, error`

// ReadLast returns up to n most recent records for the user, newest first.
func (s *LedgerStore) ReadLast(ctx context.Context, userID int64, n int) ([]domain.TradeRecord, error) {
	if n <= 0 {
		n = 20
	}

	query := `SELECT ` + ledgerSelectCols + `
		FROM trade_records WHERE user_id = $1
		ORDER BY ts DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: read trade records for user %d: %w", userID, err)
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var status string
		var hashes []byte

		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Timestamp, &rec.Pair, &rec.VenueA, &rec.VenueB,
			&rec.Leverage, &rec.AmountIn, &rec.Profit, &rec.Fee, &rec.GasUsed,
			&hashes, &status, &rec.Error,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade record: %w", err)
		}

		if err := json.Unmarshal(hashes, &rec.TxHashes); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal tx hashes: %w", err)
		}
		rec.Status = domain.TradeStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SumProfit totals profit over SUCCESS records only. FAILED records are
// excluded regardless of any numeric fields they may carry.
func (s *LedgerStore) SumProfit(ctx context.Context, userID int64) (float64, error) {
	return s.sumColumn(ctx, userID, "profit")
}

// SumFee totals skimmed fees over SUCCESS records only.
func (s *LedgerStore) SumFee(ctx context.Context, userID int64) (float64, error) {
	return s.sumColumn(ctx, userID, "fee")
}

func (s *LedgerStore) sumColumn(ctx context.Context, userID int64, column string) (float64, error) {
	// column is one of two compile-time constants, never user input.
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(%s), 0)
		FROM trade_records
		WHERE user_id = $1 AND status = 'SUCCESS' AND %s IS NOT NULL`,
		column, column)

	var total float64
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres: sum %s for user %d: %w", column, userID, err)
	}
	return total, nil
}

var _ domain.TradeLedger = (*LedgerStore)(nil)
