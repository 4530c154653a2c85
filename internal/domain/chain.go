package domain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// KeyHandle is a short-lived reference to signing material resolved by the
// wallet service. The core never persists key material itself.
type KeyHandle interface {
	PrivateKey() *ecdsa.PrivateKey
}

// Wallet is an account the executor acts on behalf of.
type Wallet struct {
	Address common.Address
	Key     KeyHandle
}

// TxRequest describes a transaction before signing. Nonce is the account
// sequence number and must be assigned under the owning account's exclusion.
type TxRequest struct {
	Nonce    uint64
	To       common.Address
	Value    *big.Int
	Gas      uint64
	GasPrice *big.Int
	Data     []byte
}

// SignedTx is an encoded, signed transaction ready for submission.
type SignedTx struct {
	Hash string
	Raw  []byte
}

// Receipt is the inclusion result of a submitted transaction.
type Receipt struct {
	TxHash  string
	GasUsed int64
	Status  uint64
}

// ChainClient abstracts the JSON-RPC surface the executor needs. A broadcast
// transaction cannot be cancelled; only WaitForInclusion is bounded, and on
// timeout it returns ErrInclusionTimeout so the caller can report the
// transaction as pending rather than failed.
type ChainClient interface {
	SequenceNumber(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, from common.Address, tx TxRequest) (uint64, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Sign(tx TxRequest, key KeyHandle) (SignedTx, error)
	Submit(ctx context.Context, tx SignedTx) (string, error)
	WaitForInclusion(ctx context.Context, txHash string, timeout time.Duration) (*Receipt, error)
}

// PriceOracle quotes the output amount a router would return for swapping
// amountIn of tokenIn into tokenOut. Any failure (RPC, revert, missing pool)
// surfaces as an error and is treated as "no quote" by the scanner.
type PriceOracle interface {
	Quote(ctx context.Context, router, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error)
}
