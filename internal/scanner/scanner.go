package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbradar/internal/arbitrage"
	"github.com/alanyoungcy/arbradar/internal/chain"
	"github.com/alanyoungcy/arbradar/internal/domain"
)

// TradeTrigger admits a trade execution without blocking.
type TradeTrigger interface {
	Trigger(opp domain.Opportunity, leverage int) error
}

// Config carries the scan cadence and quote probe parameters.
type Config struct {
	Interval     time.Duration
	QuoteTimeout time.Duration

	// ProbeAmount is the input amount, in whole tokens, quoted against
	// every router to derive comparable output prices.
	ProbeAmount float64
}

// Scanner drives the periodic scan loop: one pass over every scannable
// user per tick, quoting each selected (venue, pair) once and ranking
// venue combinations by spread.
type Scanner struct {
	cfg     Config
	store   domain.ConfigStore
	oracle  domain.PriceOracle
	venues  map[string]domain.DexDescriptor
	pairs   []domain.PairDescriptor
	trigger TradeTrigger
	sink    domain.NotificationSink
	cache   domain.QuoteCache
	logger  *slog.Logger
}

// New builds a Scanner. trigger may be nil (scan-only mode, every
// opportunity is notified instead of executed) and cache may be nil
// (quotes are not published).
func New(cfg Config, store domain.ConfigStore, oracle domain.PriceOracle, venues []domain.DexDescriptor, pairs []domain.PairDescriptor, trigger TradeTrigger, sink domain.NotificationSink, cache domain.QuoteCache, logger *slog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = 5 * time.Second
	}
	if cfg.ProbeAmount <= 0 {
		cfg.ProbeAmount = 1.0
	}
	byName := make(map[string]domain.DexDescriptor, len(venues))
	for _, v := range venues {
		byName[v.Name] = v
	}
	return &Scanner{
		cfg:     cfg,
		store:   store,
		oracle:  oracle,
		venues:  byName,
		pairs:   pairs,
		trigger: trigger,
		sink:    sink,
		cache:   cache,
		logger:  logger.With(slog.String("component", "scanner")),
	}
}

// Run blocks until ctx is cancelled, scanning on every tick. A tick
// that is still running when the next fires simply delays it; ticks do
// not pile up.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scan loop started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Int("venues", len(s.venues)),
		slog.Int("pairs", len(s.pairs)))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	start := time.Now()
	users := s.store.Snapshot()

	scanned := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		if !u.Scannable() {
			continue
		}
		s.scanUser(ctx, u)
		scanned++
	}

	s.logger.Debug("tick complete",
		slog.Int("users", scanned),
		slog.Duration("elapsed", time.Since(start)))
}

func (s *Scanner) scanUser(ctx context.Context, u domain.UserConfig) {
	for _, idx := range u.Pairs {
		if idx < 0 || idx >= len(s.pairs) {
			s.logger.Warn("pair index out of range", slog.Int64("user_id", u.UserID), slog.Int("pair", idx))
			continue
		}
		pair := s.pairs[idx]

		quotes := s.collectQuotes(ctx, u.Venues, idx, pair)
		best, ok := arbitrage.Best(u.Venues, quotes, u.Threshold)
		if !ok {
			continue
		}

		opp := domain.Opportunity{
			UserID:     u.UserID,
			PairIndex:  idx,
			PairName:   pair.DisplayName(),
			Token0:     pair.Token0,
			Token1:     pair.Token1,
			VenueA:     best.VenueA,
			VenueB:     best.VenueB,
			RouterA:    s.venues[best.VenueA].Router,
			RouterB:    s.venues[best.VenueB].Router,
			Spread:     best.Spread,
			QuoteA:     best.QuoteA,
			QuoteB:     best.QuoteB,
			DetectedAt: time.Now().UTC(),
		}

		s.logger.Info("opportunity detected",
			slog.Int64("user_id", u.UserID),
			slog.String("pair", opp.PairName),
			slog.String("venue_a", opp.VenueA),
			slog.String("venue_b", opp.VenueB),
			slog.Float64("spread_pct", opp.Spread))

		if u.Autotrade && s.trigger != nil {
			s.dispatch(opp)
			continue
		}
		s.sink.Notify(u.UserID, fmt.Sprintf("📈 Spread %.2f%% on %s: %s %.6f vs %s %.6f",
			opp.Spread, opp.PairName, opp.VenueA, opp.QuoteA, opp.VenueB, opp.QuoteB))
	}
}

func (s *Scanner) dispatch(opp domain.Opportunity) {
	err := s.trigger.Trigger(opp, 1)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrExecutionInFlight):
		s.logger.Debug("execution already in flight",
			slog.Int64("user_id", opp.UserID), slog.String("pair", opp.PairName))
	case errors.Is(err, domain.ErrQueueFull):
		s.logger.Warn("execution queue full, opportunity dropped",
			slog.Int64("user_id", opp.UserID), slog.String("pair", opp.PairName))
		s.sink.Notify(opp.UserID, fmt.Sprintf("⚠️ Opportunity on %s dropped: executor busy", opp.PairName))
	default:
		s.logger.Error("trigger failed", slog.String("error", err.Error()))
	}
}

// collectQuotes probes every selected venue concurrently. A venue that
// errors or times out is left out of the result and thus out of the
// spread ranking for this tick.
func (s *Scanner) collectQuotes(ctx context.Context, venues []string, pairIndex int, pair domain.PairDescriptor) map[string]float64 {
	amountIn := chain.EtherToWei(s.cfg.ProbeAmount)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]float64, len(venues))
	)
	for _, name := range venues {
		venue, ok := s.venues[name]
		if !ok {
			s.logger.Warn("unknown venue in user selection", slog.String("venue", name))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			qctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
			defer cancel()

			amountOut, err := s.oracle.Quote(qctx, venue.Router, pair.Token0, pair.Token1, amountIn)
			if err != nil {
				s.logger.Debug("quote failed",
					slog.String("venue", venue.Name),
					slog.String("pair", pair.DisplayName()),
					slog.String("error", err.Error()))
				return
			}
			price := chain.WeiToEther(amountOut)
			if price <= 0 {
				return
			}

			mu.Lock()
			out[venue.Name] = price
			mu.Unlock()

			if s.cache != nil {
				if err := s.cache.SetQuote(ctx, domain.Quote{Venue: venue.Name, PairIndex: pairIndex, Out: price, Valid: true}); err != nil {
					s.logger.Debug("quote publish failed", slog.String("error", err.Error()))
				}
			}
		}()
	}
	wg.Wait()
	return out
}
