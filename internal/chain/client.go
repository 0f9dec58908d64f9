package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Caller is the read-only contract surface the oracle needs. Satisfied by
// Client and by test fakes.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client wraps a go-ethereum RPC connection for one chain.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewClient creates a chain client from an RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainID returns the chain id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// CallContract performs an eth_call at the given block (nil means latest).
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// Set holds one connected client per chain id.
type Set struct {
	mu      sync.RWMutex
	clients map[uint64]*Client
}

func NewSet() *Set {
	return &Set{clients: make(map[uint64]*Client)}
}

// Dial connects a chain and registers it in the set.
func (s *Set) Dial(ctx context.Context, chainID uint64, rpcURL string) error {
	client, err := NewClient(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	s.mu.Lock()
	s.clients[chainID] = client
	s.mu.Unlock()
	return nil
}

// Client returns the client for a chain, or nil when not connected.
func (s *Set) Client(chainID uint64) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients[chainID]
}

// Close closes every connected client.
func (s *Set) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clients = make(map[uint64]*Client)
}
