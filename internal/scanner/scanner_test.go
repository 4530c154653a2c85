package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbradar/internal/chain"
	"github.com/alanyoungcy/arbradar/internal/configstore"
	"github.com/alanyoungcy/arbradar/internal/domain"
)

var testVenues = []domain.DexDescriptor{
	{Name: "UniV2", Router: common.HexToAddress("0x0000000000000000000000000000000000000011")},
	{Name: "SushiV2", Router: common.HexToAddress("0x0000000000000000000000000000000000000022")},
	{Name: "Pancake", Router: common.HexToAddress("0x0000000000000000000000000000000000000033")},
}

var testPairs = []domain.PairDescriptor{
	{
		Name:   "TOK/WNATIVE",
		Token0: common.HexToAddress("0x00000000000000000000000000000000000000BB"),
		Token1: common.HexToAddress("0x00000000000000000000000000000000000000AA"),
	},
}

type fakeOracle struct {
	mu    sync.Mutex
	outs  map[common.Address]float64
	errs  map[common.Address]error
	calls int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{outs: make(map[common.Address]float64), errs: make(map[common.Address]error)}
}

func (f *fakeOracle) set(venue string, out float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range testVenues {
		if v.Name == venue {
			f.outs[v.Router] = out
			return
		}
	}
	panic("unknown venue " + venue)
}

func (f *fakeOracle) failVenue(venue string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range testVenues {
		if v.Name == venue {
			f.errs[v.Router] = fmt.Errorf("execution reverted")
			return
		}
	}
}

func (f *fakeOracle) Quote(_ context.Context, router, _, _ common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[router]; err != nil {
		return nil, err
	}
	out, ok := f.outs[router]
	if !ok {
		return nil, domain.ErrNoQuote
	}
	return chain.EtherToWei(out), nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTrigger struct {
	mu   sync.Mutex
	opps []domain.Opportunity
	err  error
}

func (f *fakeTrigger) Trigger(opp domain.Opportunity, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.opps = append(f.opps, opp)
	return nil
}

func (f *fakeTrigger) triggered() []domain.Opportunity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Opportunity, len(f.opps))
	copy(out, f.opps)
	return out
}

type fakeSink struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeSink) Notify(_ int64, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeSink) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	copy(out, f.messages)
	return out
}

func testStore(t *testing.T, cfg domain.UserConfig) *configstore.Store {
	t.Helper()
	names := make([]string, len(testVenues))
	for i, v := range testVenues {
		names[i] = v.Name
	}
	store := configstore.New(names, len(testPairs))
	require.NoError(t, store.Seed(cfg))
	return store
}

func testScanner(store domain.ConfigStore, oracle domain.PriceOracle, trigger TradeTrigger, sink domain.NotificationSink) *Scanner {
	logger := slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{}, store, oracle, testVenues, testPairs, trigger, sink, nil, logger)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestScanNotifiesWithoutAutotrade(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)
	oracle.set("SushiV2", 1.02)

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2", "SushiV2"},
		Pairs:     []int{0},
		Threshold: 1.0,
	})
	trigger := &fakeTrigger{}
	sink := &fakeSink{}
	s := testScanner(store, oracle, trigger, sink)

	s.tick(context.Background())

	// A 2% spread above a 1% threshold is reported but, with autotrade
	// off, never executed.
	assert.Empty(t, trigger.triggered())
	msgs := sink.all()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "2.00%")
	assert.Contains(t, msgs[0], "UniV2")
	assert.Contains(t, msgs[0], "SushiV2")
}

func TestScanTriggersWithAutotrade(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)
	oracle.set("SushiV2", 1.015)

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2", "SushiV2"},
		Pairs:     []int{0},
		Threshold: 1.0,
		Autotrade: true,
	})
	trigger := &fakeTrigger{}
	sink := &fakeSink{}
	s := testScanner(store, oracle, trigger, sink)

	s.tick(context.Background())

	opps := trigger.triggered()
	require.Len(t, opps, 1)
	opp := opps[0]
	assert.Equal(t, int64(7), opp.UserID)
	assert.Equal(t, "UniV2", opp.VenueA)
	assert.Equal(t, "SushiV2", opp.VenueB)
	assert.Equal(t, testVenues[0].Router, opp.RouterA)
	assert.Equal(t, testVenues[1].Router, opp.RouterB)
	assert.InDelta(t, 1.5, opp.Spread, 1e-9)
	// Dispatch replaces notification when autotrade is on.
	assert.Empty(t, sink.all())
}

func TestScanSkipsFailedVenue(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)
	oracle.set("SushiV2", 1.001)
	oracle.set("Pancake", 1.5)
	oracle.failVenue("Pancake")

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2", "SushiV2", "Pancake"},
		Pairs:     []int{0},
		Threshold: 1.0,
		Autotrade: true,
	})
	trigger := &fakeTrigger{}
	s := testScanner(store, oracle, trigger, &fakeSink{})

	s.tick(context.Background())

	// With Pancake's quote unavailable only the UniV2/SushiV2 combo
	// remains, and its 0.1% spread is below threshold.
	assert.Empty(t, trigger.triggered())
}

func TestScanSkipsUnscannableUser(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2"},
		Pairs:     []int{0},
		Threshold: 1.0,
	})
	sink := &fakeSink{}
	s := testScanner(store, oracle, &fakeTrigger{}, sink)

	s.tick(context.Background())

	// Fewer than two venues: the user is skipped before any quote is
	// requested.
	assert.Zero(t, oracle.callCount())
	assert.Empty(t, sink.all())
}

func TestScanSpreadExactlyAtThresholdCounts(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)
	oracle.set("SushiV2", 1.01)

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2", "SushiV2"},
		Pairs:     []int{0},
		Threshold: 1.0,
		Autotrade: true,
	})
	trigger := &fakeTrigger{}
	s := testScanner(store, oracle, trigger, &fakeSink{})

	s.tick(context.Background())

	// Exactly 1.0% meets a 1.0% threshold.
	opps := trigger.triggered()
	require.Len(t, opps, 1)
	assert.InDelta(t, 1.0, opps[0].Spread, 1e-9)
}

func TestScanInFlightRejectionIsSilent(t *testing.T) {
	oracle := newFakeOracle()
	oracle.set("UniV2", 1.0)
	oracle.set("SushiV2", 1.05)

	store := testStore(t, domain.UserConfig{
		UserID:    7,
		Venues:    []string{"UniV2", "SushiV2"},
		Pairs:     []int{0},
		Threshold: 1.0,
		Autotrade: true,
	})
	trigger := &fakeTrigger{err: domain.ErrExecutionInFlight}
	sink := &fakeSink{}
	s := testScanner(store, oracle, trigger, sink)

	s.tick(context.Background())

	// A duplicate in-flight rejection is routine, not user-visible.
	assert.Empty(t, sink.all())
}
