package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
	stamps  map[string]time.Time
}

func newMemBlob() *memBlob {
	return &memBlob{objects: make(map[string][]byte), stamps: make(map[string]time.Time)}
}

func (m *memBlob) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = buf
	m.stamps[path] = time.Now()
	return nil
}

func (m *memBlob) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (m *memBlob) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var infos []domain.BlobInfo
	for path, buf := range m.objects {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(buf)), LastModified: m.stamps[path]})
		}
	}
	return infos, nil
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memBlob) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	delete(m.stamps, path)
	return nil
}

func (m *memBlob) backdate(path string, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stamps[path] = time.Now().Add(-age)
}

type memLedger struct {
	records map[int64][]domain.TradeRecord
}

func (m *memLedger) Append(context.Context, domain.TradeRecord) error { return nil }

func (m *memLedger) ReadLast(_ context.Context, userID int64, n int) ([]domain.TradeRecord, error) {
	recs := m.records[userID]
	if len(recs) > n {
		recs = recs[:n]
	}
	return recs, nil
}

func (m *memLedger) SumProfit(context.Context, int64) (float64, error) { return 0, nil }
func (m *memLedger) SumFee(context.Context, int64) (float64, error)    { return 0, nil }

type memConfigStore struct {
	users []domain.UserConfig
}

func (m *memConfigStore) Get(userID int64) domain.UserConfig {
	return domain.UserConfig{UserID: userID}
}

func (m *memConfigStore) Snapshot() []domain.UserConfig { return m.users }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchiverExportsPerUserJSONL(t *testing.T) {
	blob := newMemBlob()
	ledger := &memLedger{records: map[int64][]domain.TradeRecord{
		7: {
			{ID: "a", UserID: 7, Pair: "TOK/WNATIVE", Status: domain.TradeSuccess},
			{ID: "b", UserID: 7, Pair: "TOK/WNATIVE", Status: domain.TradeFailed, Error: "reverted"},
		},
	}}
	store := &memConfigStore{users: []domain.UserConfig{{UserID: 7}, {UserID: 8}}}

	a := NewLedgerArchiver(ArchiverConfig{BatchSize: 10}, blob, blob, ledger, store, testLogger())
	a.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }

	a.exportOnce(context.Background())

	body, err := blob.Get(context.Background(), "archive/trades/7/2025-03-14.jsonl")
	require.NoError(t, err)
	defer body.Close()

	dec := json.NewDecoder(body)
	var recs []domain.TradeRecord
	for dec.More() {
		var rec domain.TradeRecord
		require.NoError(t, dec.Decode(&rec))
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, domain.TradeFailed, recs[1].Status)

	// A user with no history produces no object.
	ok, err := blob.Exists(context.Background(), "archive/trades/8/2025-03-14.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArchiverPrunesOldObjects(t *testing.T) {
	blob := newMemBlob()
	require.NoError(t, blob.Put(context.Background(), "archive/trades/7/2024-01-01.jsonl", bytes.NewReader([]byte("{}\n")), "application/x-ndjson"))
	require.NoError(t, blob.Put(context.Background(), "archive/trades/7/2025-03-14.jsonl", bytes.NewReader([]byte("{}\n")), "application/x-ndjson"))
	blob.backdate("archive/trades/7/2024-01-01.jsonl", 90*24*time.Hour)

	a := NewLedgerArchiver(ArchiverConfig{Retention: 30 * 24 * time.Hour}, blob, blob, &memLedger{}, &memConfigStore{}, testLogger())
	a.pruneOnce(context.Background())

	ok, _ := blob.Exists(context.Background(), "archive/trades/7/2024-01-01.jsonl")
	assert.False(t, ok, "expired archive should be pruned")
	ok, _ = blob.Exists(context.Background(), "archive/trades/7/2025-03-14.jsonl")
	assert.True(t, ok, "recent archive should survive")
}
