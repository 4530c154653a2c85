package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// quoteTTL bounds staleness: a quote the scanner stopped refreshing
// disappears rather than lingering as a live-looking price.
const quoteTTL = 2 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. Each latest
// quote lives at "quote:{venue}:{pair}" with fields "out" and "ts". The scan
// loop publishes into it best-effort for the UI layer's status display.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(venue string, pairIndex int) string {
	return fmt.Sprintf("quote:%s:%d", venue, pairIndex)
}

// SetQuote stores the latest quote for a (venue, pair).
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Venue, q.PairIndex)
	fields := map[string]interface{}{
		"out": strconv.FormatFloat(q.Out, 'f', -1, 64),
		"ts":  strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", key, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a (venue, pair). It returns
// domain.ErrNotFound when no quote is cached.
func (qc *QuoteCache) GetQuote(ctx context.Context, venue string, pairIndex int) (domain.Quote, error) {
	key := quoteKey(venue, pairIndex)
	vals, err := qc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	out, err := strconv.ParseFloat(vals["out"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote %s: %w", key, err)
	}

	return domain.Quote{
		Venue:     venue,
		PairIndex: pairIndex,
		Out:       out,
		Valid:     true,
	}, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
