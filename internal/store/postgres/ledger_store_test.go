package postgres

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpassword",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		log.Fatalf("could not start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("could not stop postgres container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	if err != nil {
		log.Fatalf("could not get container host: %s", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("could not get mapped port: %s", err)
	}

	connStr := "postgres://testuser:testpassword@" + host + ":" + port.Port() + "/testdb"

	pool, err = pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}
	defer pool.Close()

	client := &Client{pool: pool}
	if err := client.RunMigrations(ctx); err != nil {
		log.Fatalf("could not run migrations: %s", err)
	}

	os.Exit(m.Run())
}

func f64(v float64) *float64 { return &v }

func successRecord(userID int64, profit, fee float64) domain.TradeRecord {
	return domain.TradeRecord{
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Pair:      "WETH/USDC",
		VenueA:    "UniV2",
		VenueB:    "SushiV2",
		Leverage:  1,
		AmountIn:  0.001,
		Profit:    f64(profit),
		Fee:       f64(fee),
		TxHashes:  []string{"0xaaa", "0xbbb"},
		Status:    domain.TradeSuccess,
	}
}

func TestLedgerStore_AppendAndReadLast(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore(pool)

	for i := 0; i < 3; i++ {
		rec := successRecord(100, float64(i)*0.001, 0)
		rec.Timestamp = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, store.Append(ctx, rec))
	}

	records, err := store.ReadLast(ctx, 100, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.True(t, records[0].Timestamp.After(records[1].Timestamp))
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, records[0].TxHashes)
	assert.Equal(t, domain.TradeSuccess, records[0].Status)

	// Other users see nothing.
	empty, err := store.ReadLast(ctx, 101, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLedgerStore_FailedRecordKeepsPreFailureHashes(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore(pool)

	rec := domain.TradeRecord{
		UserID:    200,
		Timestamp: time.Now().UTC(),
		Pair:      "WETH/DAI",
		VenueA:    "UniV2",
		VenueB:    "SushiV2",
		Leverage:  1,
		AmountIn:  0.001,
		TxHashes:  []string{"0xapprove"},
		Status:    domain.TradeFailed,
		Error:     "swap reverted",
	}
	require.NoError(t, store.Append(ctx, rec))

	records, err := store.ReadLast(ctx, 200, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.TradeFailed, records[0].Status)
	assert.Equal(t, "swap reverted", records[0].Error)
	assert.Equal(t, []string{"0xapprove"}, records[0].TxHashes)
	assert.Nil(t, records[0].Profit)
	assert.Nil(t, records[0].GasUsed)
}

func TestLedgerStore_SumsExcludeFailedRecords(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore(pool)

	require.NoError(t, store.Append(ctx, successRecord(300, 0.002, 0.0007)))

	// A FAILED record with a stray profit-like field must not count.
	failed := successRecord(300, 0.5, 0.1)
	failed.Status = domain.TradeFailed
	failed.Error = "insufficient funds"
	require.NoError(t, store.Append(ctx, failed))

	require.NoError(t, store.Append(ctx, successRecord(300, 0.001, 0.00035)))

	profit, err := store.SumProfit(ctx, 300)
	require.NoError(t, err)
	assert.InDelta(t, 0.003, profit, 1e-9)

	fee, err := store.SumFee(ctx, 300)
	require.NoError(t, err)
	assert.InDelta(t, 0.00105, fee, 1e-9)

	// Unknown user sums to zero, not an error.
	zero, err := store.SumProfit(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestLedgerStore_ConcurrentAppendsAllSurvive(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore(pool)

	const n = 20
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errCh <- store.Append(ctx, successRecord(400, float64(i)*1e-4, 0))
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh)
	}

	records, err := store.ReadLast(ctx, 400, n*2)
	require.NoError(t, err)
	assert.Len(t, records, n)
}
