package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/arbradar/internal/blob/s3"
	"github.com/alanyoungcy/arbradar/internal/cache/redis"
	"github.com/alanyoungcy/arbradar/internal/chain"
	"github.com/alanyoungcy/arbradar/internal/config"
	"github.com/alanyoungcy/arbradar/internal/configstore"
	"github.com/alanyoungcy/arbradar/internal/domain"
	"github.com/alanyoungcy/arbradar/internal/notify"
	"github.com/alanyoungcy/arbradar/internal/store/postgres"
	"github.com/alanyoungcy/arbradar/internal/wallet"
)

// Dependencies bundles every domain-level dependency the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Venues []domain.DexDescriptor
	Pairs  []domain.PairDescriptor

	Config  *configstore.Store
	Ledger  domain.TradeLedger
	Chain   *chain.Client
	Oracle  domain.PriceOracle
	Wallets domain.WalletService // nil outside trade mode

	Locks  domain.LockManager // nil when redis is disabled
	Quotes domain.QuoteCache  // nil when redis is disabled

	BlobWriter domain.BlobWriter // nil when s3 is disabled
	BlobReader domain.BlobReader

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Static venue and pair descriptors ---
	for _, v := range cfg.Venues {
		deps.Venues = append(deps.Venues, domain.DexDescriptor{
			Name:   v.Name,
			Router: common.HexToAddress(v.Router),
		})
	}
	for _, p := range cfg.Pairs {
		deps.Pairs = append(deps.Pairs, domain.PairDescriptor{
			Name:   p.Name,
			Token0: common.HexToAddress(p.Token0),
			Token1: common.HexToAddress(p.Token1),
		})
	}

	// --- User configuration store ---
	venueNames := make([]string, len(cfg.Venues))
	for i, v := range cfg.Venues {
		venueNames[i] = v.Name
	}
	deps.Config = configstore.New(venueNames, len(cfg.Pairs))
	for _, u := range cfg.Users {
		if err := deps.Config.Seed(domain.UserConfig{
			UserID:    u.ID,
			Venues:    u.Venues,
			Pairs:     u.Pairs,
			Threshold: u.Threshold,
			Autotrade: u.Autotrade,
		}); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: seed user %d: %w", u.ID, err)
		}
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Ledger = postgres.NewLedgerStore(pgClient.Pool())

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.Quotes = redis.NewQuoteCache(redisClient)
	}

	// --- S3 blob storage (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Chain client and price oracle ---
	chainClient, err := chain.New(ctx, cfg.Chain.RPCURL, cfg.Chain.ChainID)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient
	deps.Oracle = chain.NewOracle(chainClient)

	// --- Wallets (trade mode only) ---
	if strings.ToLower(cfg.Mode) == "trade" {
		walletSvc, err := wallet.NewService(wallet.Config{
			Dir:           cfg.Wallet.Dir,
			Password:      cfg.Wallet.Password,
			CreateMissing: cfg.Wallet.CreateMissing,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet service: %w", err)
		}
		deps.Wallets = walletSvc
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)
	closers = append(closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		deps.Notifier.Flush(flushCtx)
	})

	return deps, cleanup, nil
}
