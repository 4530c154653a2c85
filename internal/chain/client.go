// Package chain implements the JSON-RPC chain client and the router price
// oracle on top of go-ethereum's ethclient.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// receiptPollInterval is how often WaitForInclusion re-checks for a receipt.
const receiptPollInterval = 2 * time.Second

// Client implements domain.ChainClient against a single RPC endpoint.
type Client struct {
	ec      *ethclient.Client
	chainID *big.Int
}

// New dials the RPC endpoint and fetches the chain id. When expectChainID is
// non-zero it is checked against the node's answer, catching a node pointed
// at the wrong network before any transaction is signed.
func New(ctx context.Context, rpcURL string, expectChainID int64) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	id, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("chain: fetch chain id: %w", err)
	}
	if expectChainID != 0 && id.Int64() != expectChainID {
		ec.Close()
		return nil, fmt.Errorf("chain: node reports chain id %d, config expects %d", id.Int64(), expectChainID)
	}

	return &Client{ec: ec, chainID: id}, nil
}

// ChainID returns the connected network's chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// SequenceNumber returns the account's next nonce, counting pending
// transactions so back-to-back executions observe each other's submissions.
func (c *Client) SequenceNumber(ctx context.Context, addr common.Address) (uint64, error) {
	n, err := c.ec.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("chain: nonce for %s: %w", addr.Hex(), err)
	}
	return n, nil
}

// GasPrice returns the node's suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	p, err := c.ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return p, nil
}

// EstimateGas estimates the gas limit for the given transaction request.
func (c *Client) EstimateGas(ctx context.Context, from common.Address, tx domain.TxRequest) (uint64, error) {
	to := tx.To
	gas, err := c.ec.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: tx.Value,
		Data:  tx.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("chain: estimate gas: %w", err)
	}
	return gas, nil
}

// Balance returns the account's native-asset balance at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	b, err := c.ec.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance of %s: %w", addr.Hex(), err)
	}
	return b, nil
}

// Sign produces a signed legacy transaction for the request using the key
// handle. The handle is used immediately and never retained.
func (c *Client) Sign(tx domain.TxRequest, key domain.KeyHandle) (domain.SignedTx, error) {
	to := tx.To
	ltx := types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce,
		To:       &to,
		Value:    tx.Value,
		Gas:      tx.Gas,
		GasPrice: tx.GasPrice,
		Data:     tx.Data,
	})

	signer := types.LatestSignerForChainID(c.chainID)
	signed, err := types.SignTx(ltx, signer, key.PrivateKey())
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("chain: sign tx nonce %d: %w", tx.Nonce, err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("chain: encode signed tx: %w", err)
	}

	return domain.SignedTx{Hash: signed.Hash().Hex(), Raw: raw}, nil
}

// Submit broadcasts a signed transaction and returns its hash. Once accepted
// by the node the transaction cannot be cancelled.
func (c *Client) Submit(ctx context.Context, stx domain.SignedTx) (string, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(stx.Raw); err != nil {
		return "", fmt.Errorf("chain: decode signed tx: %w", err)
	}
	if err := c.ec.SendTransaction(ctx, &tx); err != nil {
		return "", fmt.Errorf("chain: submit tx %s: %w", stx.Hash, err)
	}
	return tx.Hash().Hex(), nil
}

// WaitForInclusion polls for the transaction receipt until it appears or the
// timeout elapses. A timeout yields domain.ErrInclusionTimeout: the
// transaction is pending/unknown, not failed.
func (c *Client) WaitForInclusion(ctx context.Context, txHash string, timeout time.Duration) (*domain.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		rcpt, err := c.ec.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil:
			return &domain.Receipt{
				TxHash:  txHash,
				GasUsed: int64(rcpt.GasUsed),
				Status:  rcpt.Status,
			}, nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet; keep polling.
		case waitCtx.Err() != nil:
			// Fall through to the select below for a uniform timeout path.
		default:
			return nil, fmt.Errorf("chain: receipt for %s: %w", txHash, err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("chain: tx %s: %w", txHash, domain.ErrInclusionTimeout)
		case <-ticker.C:
		}
	}
}

var _ domain.ChainClient = (*Client)(nil)
