package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainClient is the subset of the RPC surface the executor needs.
// *ethclient.Client satisfies it.
type ChainClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a ChainClient for an RPC URL.
type Dialer func(ctx context.Context, url string) (ChainClient, error)

// DialEth dials a JSON-RPC endpoint with ethclient.
func DialEth(ctx context.Context, url string) (ChainClient, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Clients owns the primary and fallback RPC handles. Each is dialed on first
// use and kept until Reset or ResetPrimary drops it. Build one per process.
type Clients struct {
	primaryURL  string
	fallbackURL string
	dial        Dialer

	mu       sync.Mutex
	primary  ChainClient
	fallback ChainClient
}

// NewClients creates a Clients. A nil dial uses DialEth.
func NewClients(primaryURL, fallbackURL string, dial Dialer) *Clients {
	if dial == nil {
		dial = DialEth
	}
	return &Clients{primaryURL: primaryURL, fallbackURL: fallbackURL, dial: dial}
}

// Primary returns the primary client, dialing it if needed.
func (c *Clients) Primary(ctx context.Context) (ChainClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primary == nil {
		cl, err := c.dial(ctx, c.primaryURL)
		if err != nil {
			return nil, fmt.Errorf("settlement: dial primary: %w", err)
		}
		c.primary = cl
	}
	return c.primary, nil
}

// Fallback returns the fallback client, dialing it if needed.
func (c *Clients) Fallback(ctx context.Context) (ChainClient, error) {
	if c.fallbackURL == "" {
		return nil, ErrNoFallback
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback == nil {
		cl, err := c.dial(ctx, c.fallbackURL)
		if err != nil {
			return nil, fmt.Errorf("settlement: dial fallback: %w", err)
		}
		c.fallback = cl
	}
	return c.fallback, nil
}

// ResetPrimary closes and forgets the primary client.
func (c *Clients) ResetPrimary() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primary != nil {
		c.primary.Close()
		c.primary = nil
	}
}

// Reset closes and forgets both clients.
func (c *Clients) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range []*ChainClient{&c.primary, &c.fallback} {
		if *cl != nil {
			(*cl).Close()
			*cl = nil
		}
	}
}
