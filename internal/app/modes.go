package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/arbradar/internal/blob/s3"
	"github.com/alanyoungcy/arbradar/internal/executor"
	"github.com/alanyoungcy/arbradar/internal/scanner"
)

// ScanMode runs the detection loop only: opportunities are logged and
// notified, never executed.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	s := a.buildScanner(deps, nil)
	g.Go(func() error {
		return s.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// TradeMode runs the detection loop plus the execution pipeline: users
// with autotrade enabled have their opportunities handed to the
// coordinator.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	g, ctx := errgroup.WithContext(ctx)

	coord := executor.New(executor.Config{
		Workers:          a.cfg.Executor.Workers,
		QueueSize:        a.cfg.Executor.QueueSize,
		BaseAmount:       a.cfg.Executor.BaseAmount,
		WrappedNative:    common.HexToAddress(a.cfg.Chain.WrappedNative),
		FeeBeneficiary:   common.HexToAddress(a.cfg.Executor.FeeBeneficiary),
		InclusionTimeout: a.cfg.Executor.InclusionTimeout.Duration,
		LockTTL:          a.cfg.Executor.LockTTL.Duration,
	}, deps.Wallets, deps.Chain, deps.Ledger, deps.Notifier, deps.Locks, a.logger)

	g.Go(func() error {
		return coord.Run(ctx)
	})

	s := a.buildScanner(deps, coord)
	g.Go(func() error {
		return s.Run(ctx)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

func (a *App) buildScanner(deps *Dependencies, trigger scanner.TradeTrigger) *scanner.Scanner {
	return scanner.New(scanner.Config{
		Interval:     a.cfg.Scan.Interval.Duration,
		QuoteTimeout: a.cfg.Scan.QuoteTimeout.Duration,
		ProbeAmount:  a.cfg.Scan.ProbeAmount,
	}, deps.Config, deps.Oracle, deps.Venues, deps.Pairs, trigger, deps.Notifier, deps.Quotes, a.logger)
}

// startArchiver adds the ledger export loop to the errgroup when blob
// storage is wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.BlobWriter == nil {
		return
	}
	archiver := s3blob.NewLedgerArchiver(s3blob.ArchiverConfig{
		Interval:  a.cfg.Archive.Interval.Duration,
		BatchSize: a.cfg.Archive.BatchSize,
		Retention: time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour,
	}, deps.BlobWriter, deps.BlobReader, deps.Ledger, deps.Config, a.logger)

	g.Go(func() error {
		return archiver.Run(ctx)
	})
}
