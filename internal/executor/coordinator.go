package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbradar/internal/chain"
	"github.com/alanyoungcy/arbradar/internal/domain"
)

const (
	feeRate       = 0.35
	profitEpsilon = 1e-6

	approveGasLimit = 100_000
	tradeGasLimit   = 250_000
	transferGas     = 21_000

	// Allowance granted to a router before the first swap of a
	// non-native token, denominated in whole tokens.
	approveAllowance = 1000
)

// fallbackGasPrice is used when the node refuses to suggest one. 5 gwei.
var fallbackGasPrice = big.NewInt(5_000_000_000)

// Config carries the executor pool and trade sizing parameters.
type Config struct {
	Workers   int
	QueueSize int

	// BaseAmount is the trade size in native units per unit of leverage.
	BaseAmount float64

	// WrappedNative identifies the wrapped native token; swaps whose
	// input token equals it skip the ERC-20 approval step.
	WrappedNative common.Address

	// FeeBeneficiary receives the profit share. The zero address
	// disables the fee transfer.
	FeeBeneficiary common.Address

	InclusionTimeout time.Duration
	LockTTL          time.Duration
}

type task struct {
	opp      domain.Opportunity
	leverage int
}

// Coordinator serializes trade executions per user and bounds the number
// of concurrent executions with a fixed worker pool. At most one
// execution per (user, pair) is admitted at a time.
type Coordinator struct {
	cfg     Config
	wallets domain.WalletService
	client  domain.ChainClient
	ledger  domain.TradeLedger
	sink    domain.NotificationSink
	locks   domain.LockManager
	logger  *slog.Logger

	tasks chan task

	mu       sync.Mutex
	inflight map[string]struct{}
	accounts map[int64]*sync.Mutex
}

// New builds a Coordinator. locks may be nil, in which case only the
// in-process single-flight guard applies.
func New(cfg Config, wallets domain.WalletService, client domain.ChainClient, ledger domain.TradeLedger, sink domain.NotificationSink, locks domain.LockManager, logger *slog.Logger) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.BaseAmount <= 0 {
		cfg.BaseAmount = 0.001
	}
	if cfg.InclusionTimeout <= 0 {
		cfg.InclusionTimeout = 90 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	return &Coordinator{
		cfg:      cfg,
		wallets:  wallets,
		client:   client,
		ledger:   ledger,
		sink:     sink,
		locks:    locks,
		logger:   logger.With(slog.String("component", "executor")),
		tasks:    make(chan task, cfg.QueueSize),
		inflight: make(map[string]struct{}),
		accounts: make(map[int64]*sync.Mutex),
	}
}

// Run starts the worker pool and blocks until ctx is cancelled. Workers
// finish the execution they are on before exiting.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("executor started",
		slog.Int("workers", c.cfg.Workers),
		slog.Int("queue_size", c.cfg.QueueSize))

	g := new(errgroup.Group)
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case t := <-c.tasks:
					c.process(ctx, t)
				}
			}
		})
	}
	err := g.Wait()
	c.logger.Info("executor stopped")
	return err
}

// Trigger admits a trade execution for the opportunity. It never
// blocks: if an execution for the same (user, pair) is already admitted
// it returns domain.ErrExecutionInFlight, and if the queue is full it
// returns domain.ErrQueueFull.
func (c *Coordinator) Trigger(opp domain.Opportunity, leverage int) error {
	if leverage < 1 {
		leverage = 1
	}
	key := flightKey(opp.UserID, opp.PairIndex)

	c.mu.Lock()
	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return domain.ErrExecutionInFlight
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	select {
	case c.tasks <- task{opp: opp, leverage: leverage}:
		return nil
	default:
		c.release(key)
		return domain.ErrQueueFull
	}
}

func flightKey(userID int64, pairIndex int) string {
	return fmt.Sprintf("%d:%d", userID, pairIndex)
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Coordinator) accountMu(userID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.accounts[userID]
	if !ok {
		m = new(sync.Mutex)
		c.accounts[userID] = m
	}
	return m
}

func (c *Coordinator) process(ctx context.Context, t task) {
	key := flightKey(t.opp.UserID, t.opp.PairIndex)
	defer c.release(key)

	// A shutdown stops admission, not the execution already underway:
	// leaving a signed, submitted transaction unaccounted for is worse
	// than delaying exit.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*c.cfg.InclusionTimeout+time.Minute)
	defer cancel()

	if c.locks != nil {
		unlock, err := c.locks.Acquire(execCtx, "exec:"+key, c.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				c.logger.Info("execution lock held elsewhere", slog.Int64("user_id", t.opp.UserID), slog.String("pair", t.opp.PairName))
			} else {
				c.logger.Error("execution lock acquire failed", slog.String("error", err.Error()))
			}
			return
		}
		defer unlock()
	}

	// Nonce discipline: one execution per account at a time, so the
	// sequence fetched at the start stays valid for every transaction
	// this execution submits.
	am := c.accountMu(t.opp.UserID)
	am.Lock()
	defer am.Unlock()

	c.execute(execCtx, t)
}

func (c *Coordinator) execute(ctx context.Context, t task) {
	opp := t.opp
	rec := domain.TradeRecord{
		ID:        uuid.New().String(),
		UserID:    opp.UserID,
		Timestamp: time.Now().UTC(),
		Pair:      opp.PairName,
		VenueA:    opp.VenueA,
		VenueB:    opp.VenueB,
		Leverage:  t.leverage,
		AmountIn:  c.cfg.BaseAmount * float64(t.leverage),
		Status:    domain.TradeFailed,
	}
	log := c.logger.With(slog.Int64("user_id", opp.UserID), slog.String("pair", opp.PairName), slog.String("trade_id", rec.ID))

	fail := func(step string, err error) {
		rec.Error = fmt.Sprintf("%s: %v", step, err)
		log.Error("trade failed", slog.String("step", step), slog.String("error", err.Error()))
		c.append(ctx, rec)
		c.sink.Notify(opp.UserID, fmt.Sprintf("❌ Trade failed (%s): %v", step, err))
	}

	c.sink.Notify(opp.UserID, fmt.Sprintf("⚡ Executing %s: %s vs %s, spread %.2f%%",
		opp.PairName, opp.VenueA, opp.VenueB, opp.Spread))

	wallet, err := c.wallets.GetOrCreate(ctx, opp.UserID)
	if err != nil {
		fail("wallet", err)
		return
	}

	nonce, err := c.client.SequenceNumber(ctx, wallet.Address)
	if err != nil {
		fail("nonce", err)
		return
	}

	gasPrice, err := c.client.GasPrice(ctx)
	if err != nil || gasPrice == nil || gasPrice.Sign() == 0 {
		log.Warn("gas price suggestion unavailable, using fallback")
		gasPrice = new(big.Int).Set(fallbackGasPrice)
	}

	before, err := c.client.Balance(ctx, wallet.Address)
	if err != nil {
		fail("balance", err)
		return
	}

	if opp.Token0 != c.cfg.WrappedNative {
		approveData, err := chain.PackApprove(opp.RouterA, chain.EtherToWei(approveAllowance))
		if err != nil {
			fail("approve", err)
			return
		}
		hash, err := c.submitAndWait(ctx, wallet, domain.TxRequest{
			Nonce:    nonce,
			To:       opp.Token0,
			Value:    new(big.Int),
			Gas:      approveGasLimit,
			GasPrice: gasPrice,
			Data:     approveData,
		}, &rec)
		if err != nil {
			fail("approve", err)
			return
		}
		nonce++
		log.Info("approval confirmed", slog.String("tx_hash", hash))
		c.sink.Notify(opp.UserID, fmt.Sprintf("✅ Approval confirmed: %s", hash))
	}

	// Native value rides along only when the input token is the wrapped
	// native; an ERC-20 input is spent via the approval instead.
	value := new(big.Int)
	if opp.Token0 == c.cfg.WrappedNative {
		value = chain.EtherToWei(rec.AmountIn)
	}
	tradeReq := domain.TxRequest{
		Nonce:    nonce,
		To:       opp.RouterA,
		Value:    value,
		GasPrice: gasPrice,
	}
	if gas, err := c.client.EstimateGas(ctx, wallet.Address, tradeReq); err == nil && gas > 0 {
		tradeReq.Gas = gas
	} else {
		tradeReq.Gas = tradeGasLimit
	}

	tradeHash, err := c.submitAndWaitReceipt(ctx, wallet, tradeReq, &rec)
	if err != nil {
		fail("trade", err)
		return
	}
	nonce++
	log.Info("trade confirmed", slog.String("tx_hash", tradeHash), slog.Int64("gas_used", derefInt64(rec.GasUsed)))

	after, err := c.client.Balance(ctx, wallet.Address)
	if err != nil {
		fail("balance", err)
		return
	}
	profit := chain.WeiToEther(new(big.Int).Sub(after, before))
	rec.Profit = &profit

	fee := 0.0
	if profit > profitEpsilon && c.cfg.FeeBeneficiary == (common.Address{}) {
		log.Warn("fee beneficiary unset, profit share skipped", slog.Float64("profit", profit))
		c.sink.Notify(opp.UserID, "⚠️ Fee beneficiary not configured, profit share skipped")
	}
	if profit > profitEpsilon && c.cfg.FeeBeneficiary != (common.Address{}) {
		fee = profit * feeRate
		signed, err := c.client.Sign(domain.TxRequest{
			Nonce:    nonce,
			To:       c.cfg.FeeBeneficiary,
			Value:    chain.EtherToWei(fee),
			Gas:      transferGas,
			GasPrice: gasPrice,
		}, wallet.Key)
		if err != nil {
			fail("fee", err)
			return
		}
		if _, err := c.client.Submit(ctx, signed); err != nil {
			fail("fee", err)
			return
		}
		rec.TxHashes = append(rec.TxHashes, signed.Hash)
		log.Info("fee transfer submitted", slog.String("tx_hash", signed.Hash), slog.Float64("fee", fee))
	}
	rec.Fee = &fee

	rec.Status = domain.TradeSuccess
	c.append(ctx, rec)

	log.Info("trade complete", slog.Float64("profit", profit), slog.Float64("fee", fee))
	c.sink.Notify(opp.UserID, fmt.Sprintf("💰 Trade complete on %s: profit %.6f, fee %.6f, tx %s",
		opp.PairName, profit, fee, tradeHash))
}

// submitAndWait signs, submits and waits for inclusion. The hash is
// appended to the record before waiting so a later failure still
// accounts for the transaction.
func (c *Coordinator) submitAndWait(ctx context.Context, wallet domain.Wallet, req domain.TxRequest, rec *domain.TradeRecord) (string, error) {
	signed, err := c.client.Sign(req, wallet.Key)
	if err != nil {
		return "", err
	}
	if _, err := c.client.Submit(ctx, signed); err != nil {
		return "", err
	}
	rec.TxHashes = append(rec.TxHashes, signed.Hash)
	if _, err := c.client.WaitForInclusion(ctx, signed.Hash, c.cfg.InclusionTimeout); err != nil {
		if errors.Is(err, domain.ErrInclusionTimeout) {
			return signed.Hash, fmt.Errorf("tx %s still pending after %s: %w", signed.Hash, c.cfg.InclusionTimeout, err)
		}
		return signed.Hash, err
	}
	return signed.Hash, nil
}

func (c *Coordinator) submitAndWaitReceipt(ctx context.Context, wallet domain.Wallet, req domain.TxRequest, rec *domain.TradeRecord) (string, error) {
	signed, err := c.client.Sign(req, wallet.Key)
	if err != nil {
		return "", err
	}
	if _, err := c.client.Submit(ctx, signed); err != nil {
		return "", err
	}
	rec.TxHashes = append(rec.TxHashes, signed.Hash)
	receipt, err := c.client.WaitForInclusion(ctx, signed.Hash, c.cfg.InclusionTimeout)
	if err != nil {
		if errors.Is(err, domain.ErrInclusionTimeout) {
			return signed.Hash, fmt.Errorf("tx %s still pending after %s: %w", signed.Hash, c.cfg.InclusionTimeout, err)
		}
		return signed.Hash, err
	}
	rec.GasUsed = &receipt.GasUsed
	if receipt.Status == 0 {
		return signed.Hash, fmt.Errorf("tx %s reverted", signed.Hash)
	}
	return signed.Hash, nil
}

func (c *Coordinator) append(ctx context.Context, rec domain.TradeRecord) {
	if err := c.ledger.Append(ctx, rec); err != nil {
		c.logger.Error("ledger append failed",
			slog.String("trade_id", rec.ID),
			slog.Int64("user_id", rec.UserID),
			slog.String("error", err.Error()))
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
