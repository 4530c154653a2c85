package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/arbradar/internal/domain"
)

// Minimal ABI fragments: the UniswapV2-style quote call and the ERC-20
// approval the executor needs. Full contract bindings are deliberately out of
// scope.
const (
	routerABIJSON = `[{"name":"getAmountsOut","type":"function","stateMutability":"view",
		"inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
		"outputs":[{"name":"amounts","type":"uint256[]"}]}]`

	erc20ABIJSON = `[{"name":"approve","type":"function","stateMutability":"nonpayable",
		"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]}]`
)

var (
	routerABI = mustParseABI(routerABIJSON)
	erc20ABI  = mustParseABI(erc20ABIJSON)
)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("chain: parse ABI: %v", err))
	}
	return parsed
}

// Oracle implements domain.PriceOracle by calling getAmountsOut on a
// UniswapV2-compatible router.
type Oracle struct {
	ec *ethclient.Client
}

// NewOracle creates an Oracle sharing the client's RPC connection.
func NewOracle(c *Client) *Oracle {
	return &Oracle{ec: c.ec}
}

// Quote asks the router how much tokenOut amountIn of tokenIn buys. Reverts,
// missing pools, and transport failures all surface as errors; callers treat
// any error as an absent quote.
func (o *Oracle) Quote(ctx context.Context, router, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	data, err := routerABI.Pack("getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("chain: pack getAmountsOut: %w", err)
	}

	out, err := o.ec.CallContract(ctx, ethereum.CallMsg{To: &router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: getAmountsOut on %s: %w", router.Hex(), err)
	}

	res, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack getAmountsOut: %w", err)
	}

	amounts, ok := res[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("chain: getAmountsOut on %s: %w", router.Hex(), domain.ErrNoQuote)
	}
	return amounts[len(amounts)-1], nil
}

// PackApprove encodes an ERC-20 approve(spender, value) call.
func PackApprove(spender common.Address, value *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, value)
	if err != nil {
		return nil, fmt.Errorf("chain: pack approve: %w", err)
	}
	return data, nil
}

var weiPerEther = new(big.Float).SetFloat64(1e18)

// WeiToEther converts a wei amount to a float ether amount. Precision loss
// beyond float64 is acceptable for spread comparison and reporting.
func WeiToEther(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return f
}

// EtherToWei converts a float ether amount to wei.
func EtherToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetFloat64(eth), weiPerEther)
	wei, _ := f.Int(nil)
	return wei
}

var _ domain.PriceOracle = (*Oracle)(nil)
