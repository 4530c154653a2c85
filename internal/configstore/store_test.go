package configstore

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

func newTestStore() *Store {
	return New([]string{"UniV2", "SushiV2", "PancakeV2"}, 3)
}

func TestStore_VenueInvariants(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.AddVenue(7, "UniV2"))
	require.NoError(t, s.AddVenue(7, "SushiV2"))
	assert.ErrorIs(t, s.AddVenue(7, "Bogus"), domain.ErrUnknownVenue)

	// Removing below the two-venue minimum is refused.
	assert.ErrorIs(t, s.RemoveVenue(7, "UniV2"), domain.ErrMinVenues)

	require.NoError(t, s.AddVenue(7, "PancakeV2"))
	require.NoError(t, s.RemoveVenue(7, "PancakeV2"))
	assert.Equal(t, []string{"UniV2", "SushiV2"}, s.Get(7).Venues)

	// Adding the same venue twice stays a set.
	require.NoError(t, s.AddVenue(7, "UniV2"))
	assert.Len(t, s.Get(7).Venues, 2)
}

func TestStore_PairInvariants(t *testing.T) {
	s := newTestStore()

	assert.ErrorIs(t, s.AddPair(7, 3), domain.ErrUnknownPair)
	require.NoError(t, s.AddPair(7, 0))
	assert.ErrorIs(t, s.RemovePair(7, 0), domain.ErrMinPairs)

	require.NoError(t, s.AddPair(7, 2))
	require.NoError(t, s.RemovePair(7, 0))
	assert.Equal(t, []int{2}, s.Get(7).Pairs)
}

func TestStore_ThresholdBoundary(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.SetThreshold(7, 2.5))
	assert.ErrorIs(t, s.SetThreshold(7, 0.05), domain.ErrInvalidThreshold)
	assert.ErrorIs(t, s.SetThreshold(7, 10.5), domain.ErrInvalidThreshold)

	// Previous valid value is retained after a rejected update.
	assert.Equal(t, 2.5, s.Get(7).Threshold)

	s.MarkThresholdPending(7)
	cfg := s.Get(7)
	assert.True(t, cfg.ThresholdPending)
	assert.Equal(t, 2.5, cfg.Threshold, "pending state keeps last valid threshold")

	require.NoError(t, s.SetThreshold(7, 0.1))
	cfg = s.Get(7)
	assert.False(t, cfg.ThresholdPending)
	assert.Equal(t, 0.1, cfg.Threshold)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.AddVenue(1, "UniV2"))
	require.NoError(t, s.AddVenue(1, "SushiV2"))
	require.NoError(t, s.AddPair(1, 0))

	snap := s.Snapshot()
	require.Len(t, snap, 1)

	// Mutating the store after the snapshot must not change the snapshot,
	// and mutating the snapshot must not reach the store.
	require.NoError(t, s.AddVenue(1, "PancakeV2"))
	assert.Equal(t, []string{"UniV2", "SushiV2"}, snap[0].Venues)

	snap[0].Venues[0] = "tampered"
	assert.Equal(t, "UniV2", s.Get(1).Venues[0])
}

func TestStore_SnapshotDeterministicOrder(t *testing.T) {
	s := newTestStore()
	for _, id := range []int64{42, 7, 19} {
		s.Register(id)
	}
	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, int64(7), snap[0].UserID)
	assert.Equal(t, int64(19), snap[1].UserID)
	assert.Equal(t, int64(42), snap[2].UserID)
}

func TestStore_ConcurrentMutationDoesNotCorruptSnapshots(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Seed(domain.UserConfig{
		UserID: 1, Venues: []string{"UniV2", "SushiV2"}, Pairs: []int{0}, Threshold: 1.0,
	}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = s.AddVenue(1, "PancakeV2")
				_ = s.RemoveVenue(1, "PancakeV2")
				s.SetAutotrade(1, true)
				s.SetAutotrade(1, false)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		snap := s.Snapshot()
		require.Len(t, snap, 1)
		assert.GreaterOrEqual(t, len(snap[0].Venues), 2)
		assert.Len(t, snap[0].Pairs, 1)
	}
	close(stop)
	wg.Wait()
}

func TestStore_DefaultConfig(t *testing.T) {
	s := newTestStore()
	cfg := s.Get(99)
	assert.Equal(t, domain.DefaultSpreadThreshold, cfg.Threshold)
	assert.False(t, cfg.Scannable())
	assert.Empty(t, s.Snapshot(), "Get must not register unknown users")
}
