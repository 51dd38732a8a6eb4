package bundlecore

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

	"github.com/ligun0805/bundle-relay/internal/config"
	"github.com/ligun0805/bundle-relay/internal/flashbots"
)

var ErrChainIDMismatch = errors.New("chain id mismatch")

// Chain is the subset of an Ethereum node client the flow needs.
// *ethclient.Client and the simulated backend client satisfy it.
type Chain interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Relay submits and simulates bundles. *flashbots.Client satisfies it.
type Relay interface {
	SimulateBundle(ctx context.Context, txs types.Transactions, target, stateBlock, timestamp uint64) (*flashbots.SimResult, error)
	SendBundle(ctx context.Context, txs types.Transactions, target uint64) (common.Hash, error)
}

// Options tune transaction filling and inclusion polling.
type Options struct {
	TipGwei      int64 // 0: ask the node
	BaseMul      int64
	GasLimit     uint64 // 0: estimate
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.BaseMul <= 0 {
		o.BaseMul = 2
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	return o
}

// Client composes the node transport, the relay and the transaction signer.
type Client struct {
	chain        Chain
	relay        Relay
	wallet       *Signer
	bundleSigner *Signer
	opts         Options
	closers      []func()
}

// NewClient wires the layers together. Both signers must be pinned to the
// same chain ID.
func NewClient(chain Chain, relay Relay, wallet, bundleSigner *Signer, opts Options) (*Client, error) {
	if chain == nil {
		return nil, errors.New("chain client is nil")
	}
	if relay == nil {
		return nil, errors.New("relay client is nil")
	}
	if wallet == nil || bundleSigner == nil {
		return nil, errors.New("signer is nil")
	}
	if wallet.chainID.Cmp(bundleSigner.chainID) != 0 {
		return nil, fmt.Errorf("%w: wallet=%s bundle signer=%s", ErrChainIDMismatch, wallet.chainID, bundleSigner.chainID)
	}
	return &Client{
		chain:        chain,
		relay:        relay,
		wallet:       wallet,
		bundleSigner: bundleSigner,
		opts:         opts.withDefaults(),
	}, nil
}

// Dial assembles a client from settings and checks the node serves the
// configured chain.
func Dial(ctx context.Context, st config.Settings) (*Client, error) {
	wallet, err := NewSigner(st.PrivateKeyHex, st.ChainID)
	if err != nil {
		return nil, fmt.Errorf("wallet: %w", err)
	}
	bundleSigner, err := NewSigner(st.AuthKeyHex(), st.ChainID)
	if err != nil {
		return nil, fmt.Errorf("bundle signer: %w", err)
	}

	ec, err := ethclient.DialContext(ctx, st.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	nodeChainID, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if nodeChainID.Cmp(st.ChainID) != 0 {
		ec.Close()
		return nil, fmt.Errorf("%w: node=%s configured=%s", ErrChainIDMismatch, nodeChainID, st.ChainID)
	}

	relay, err := flashbots.NewClient(st.RelayURL, bundleSigner.PrivateKey())
	if err != nil {
		ec.Close()
		return nil, err
	}

	c, err := NewClient(ec, relay, wallet, bundleSigner, Options{
		TipGwei:      st.TipGwei,
		BaseMul:      st.BasefeeMul,
		GasLimit:     st.GasLimit,
		PollInterval: st.PollInterval,
	})
	if err != nil {
		ec.Close()
		_ = relay.Close()
		return nil, err
	}
	c.closers = append(c.closers, ec.Close, func() { _ = relay.Close() })
	return c, nil
}

func (c *Client) Close() {
	for _, f := range c.closers {
		f()
	}
	c.closers = nil
}

func (c *Client) Address() common.Address { return c.wallet.Address() }

func (c *Client) ChainID() *big.Int { return c.wallet.ChainID() }

// BundleSignerAddress is the identity used to authenticate relay requests.
func (c *Client) BundleSignerAddress() common.Address { return c.bundleSigner.Address() }

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.chain.BlockNumber(ctx)
}

// Nonce returns the account's transaction count at the latest block.
func (c *Client) Nonce(ctx context.Context) (uint64, error) {
	return c.chain.NonceAt(ctx, c.wallet.Address(), nil)
}

func (c *Client) SignTransaction(tx *types.Transaction) (*types.Transaction, error) {
	return c.wallet.SignTx(tx)
}

// SimulateBundle runs the bundle against its simulation block and timestamp.
func (c *Client) SimulateBundle(ctx context.Context, b *Bundle) (*flashbots.SimResult, error) {
	txs, err := b.Transactions()
	if err != nil {
		return nil, err
	}
	var stateBlock, ts uint64
	if b.SimulationBlock != nil {
		stateBlock = *b.SimulationBlock
	}
	if b.SimulationTimestamp != nil {
		ts = *b.SimulationTimestamp
	}
	return c.relay.SimulateBundle(ctx, txs, b.BlockNumber, stateBlock, ts)
}

// SendBundle submits the bundle for its target block and returns a handle
// that resolves once the target block is known.
func (c *Client) SendBundle(ctx context.Context, b *Bundle) (*PendingBundle, error) {
	if b.Len() == 0 {
		return nil, errors.New("empty bundle")
	}
	if b.BlockNumber == 0 {
		return nil, errors.New("bundle has no target block")
	}
	txs, err := b.Transactions()
	if err != nil {
		return nil, err
	}
	hash, err := c.relay.SendBundle(ctx, txs, b.BlockNumber)
	if err != nil {
		return nil, err
	}
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	return &PendingBundle{
		BundleHash:   hash,
		TargetBlock:  b.BlockNumber,
		Transactions: hashes,
		chain:        c.chain,
		interval:     c.opts.PollInterval,
	}, nil
}
