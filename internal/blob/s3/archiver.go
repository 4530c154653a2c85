package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

const archivePrefix = "archive/trades/"

// ArchiverConfig controls the export cadence and retention window.
type ArchiverConfig struct {
	// Interval between export passes.
	Interval time.Duration

	// BatchSize is the number of recent records exported per user and
	// pass.
	BatchSize int

	// Retention removes archive objects older than this. Zero disables
	// pruning.
	Retention time.Duration
}

// LedgerArchiver periodically exports each user's recent trade history
// to object storage as JSONL, one object per user and day, and prunes
// objects past the retention window. Export is best effort: a failed
// pass is logged and retried on the next tick, never surfaced to
// scanning or execution.
type LedgerArchiver struct {
	cfg    ArchiverConfig
	writer domain.BlobWriter
	reader domain.BlobReader
	ledger domain.TradeLedger
	store  domain.ConfigStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLedgerArchiver creates a LedgerArchiver. reader may be nil, which
// disables retention pruning.
func NewLedgerArchiver(cfg ArchiverConfig, writer domain.BlobWriter, reader domain.BlobReader, ledger domain.TradeLedger, store domain.ConfigStore, logger *slog.Logger) *LedgerArchiver {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &LedgerArchiver{
		cfg:    cfg,
		writer: writer,
		reader: reader,
		ledger: ledger,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, exporting on every tick.
func (a *LedgerArchiver) Run(ctx context.Context) error {
	a.logger.Info("archiver started", slog.Duration("interval", a.cfg.Interval))

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			a.exportOnce(ctx)
			a.pruneOnce(ctx)
		}
	}
}

func (a *LedgerArchiver) exportOnce(ctx context.Context) {
	for _, u := range a.store.Snapshot() {
		if err := a.exportUser(ctx, u.UserID); err != nil {
			a.logger.Warn("ledger export failed",
				slog.Int64("user_id", u.UserID),
				slog.String("error", err.Error()))
		}
	}
}

func (a *LedgerArchiver) exportUser(ctx context.Context, userID int64) error {
	records, err := a.ledger.ReadLast(ctx, userID, a.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(userID, a.now().UTC())
	if int64(len(buf)) > minPartSize {
		if mw, ok := a.writer.(*Writer); ok {
			if err := mw.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize); err != nil {
				return fmt.Errorf("s3blob: archive upload: %w", err)
			}
			a.logger.Debug("ledger exported", slog.String("path", path), slog.Int("records", len(records)))
			return nil
		}
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive upload: %w", err)
	}

	a.logger.Debug("ledger exported", slog.String("path", path), slog.Int("records", len(records)))
	return nil
}

func (a *LedgerArchiver) pruneOnce(ctx context.Context) {
	if a.reader == nil || a.cfg.Retention <= 0 {
		return
	}
	cutoff := a.now().Add(-a.cfg.Retention)

	infos, err := a.reader.List(ctx, archivePrefix)
	if err != nil {
		a.logger.Warn("archive list failed", slog.String("error", err.Error()))
		return
	}
	for _, info := range infos {
		if info.LastModified.IsZero() || !info.LastModified.Before(cutoff) {
			continue
		}
		if err := a.reader.Delete(ctx, info.Path); err != nil {
			a.logger.Warn("archive prune failed",
				slog.String("path", info.Path),
				slog.String("error", err.Error()))
			continue
		}
		a.logger.Info("archive pruned", slog.String("path", info.Path))
	}
}

// archivePath partitions exports by user and day:
//
//	archive/trades/42/2025-01-31.jsonl
func archivePath(userID int64, at time.Time) string {
	return fmt.Sprintf("%s%d/%s.jsonl", archivePrefix, userID, at.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
