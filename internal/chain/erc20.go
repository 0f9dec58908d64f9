package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20DecimalsABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

var (
	erc20ABIOnce sync.Once
	erc20ABI     abi.ABI
	erc20ABIErr  error
)

func loadERC20ABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20DecimalsABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

type decimalsKey struct {
	chainID uint64
	address common.Address
}

// DecimalsCache caches ERC20 decimals per (chain, token). Decimals are
// immutable, so entries never expire.
type DecimalsCache struct {
	mu   sync.RWMutex
	data map[decimalsKey]uint8
}

func NewDecimalsCache() *DecimalsCache {
	return &DecimalsCache{data: make(map[decimalsKey]uint8)}
}

func (c *DecimalsCache) Get(chainID uint64, address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[decimalsKey{chainID: chainID, address: address}]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *DecimalsCache) Set(chainID uint64, address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[decimalsKey{chainID: chainID, address: address}] = decimals
	c.mu.Unlock()
}

// FetchDecimals loads token decimals via an ERC20 decimals() call.
func FetchDecimals(ctx context.Context, caller Caller, token common.Address) (uint8, error) {
	if caller == nil {
		return 0, fmt.Errorf("caller is nil")
	}
	parsed, err := loadERC20ABI()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := parsed.Unpack("decimals", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("decimals result size %d", len(values))
	}
	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported decimals type %T", values[0])
	}
}
