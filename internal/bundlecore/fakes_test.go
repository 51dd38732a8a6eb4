package bundlecore

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/bundle-relay/internal/flashbots"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testChainID = big.NewInt(11155111)

// fakeChain serves scripted heads first, then advances one block per
// BlockNumber call unless frozen.
type fakeChain struct {
	mu sync.Mutex

	script []uint64
	head   uint64
	frozen bool

	nonce         uint64
	nonceDrift    uint64
	nonceFailures int
	nonceCalls    int

	receiptFailures int
	receipts        map[common.Hash]*types.Receipt
}

func newFakeChain(heads ...uint64) *fakeChain {
	return &fakeChain{script: heads, receipts: map[common.Hash]*types.Receipt{}}
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case len(f.script) > 0:
		f.head, f.script = f.script[0], f.script[1:]
	case !f.frozen:
		f.head++
	}
	return f.head, nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(f.head),
		BaseFee: big.NewInt(1_000_000_000),
	}, nil
}

func (f *fakeChain) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonceCalls++
	if f.nonceFailures > 0 {
		f.nonceFailures--
		return 0, errors.New("nonce unavailable")
	}
	n := f.nonce
	f.nonce += f.nonceDrift
	return n, nil
}

func (f *fakeChain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21_000, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptFailures > 0 {
		f.receiptFailures--
		return nil, errors.New("receipt backend down")
	}
	r, ok := f.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeChain) include(txs types.Transactions, block uint64, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range txs {
		f.receipts[tx.Hash()] = &types.Receipt{
			TxHash:      tx.Hash(),
			Status:      status,
			BlockNumber: new(big.Int).SetUint64(block),
		}
	}
}

type sentBundle struct {
	txs    types.Transactions
	target uint64
}

type simCall struct {
	txs        types.Transactions
	target     uint64
	stateBlock uint64
	timestamp  uint64
}

// fakeRelay mines a bundle into chain when its target is in includeAt.
type fakeRelay struct {
	mu sync.Mutex

	chain     *fakeChain
	includeAt map[uint64]bool
	sendErr   map[uint64]error
	simErr    error

	sent []sentBundle
	sims []simCall
}

func newFakeRelay(chain *fakeChain, includeAt ...uint64) *fakeRelay {
	r := &fakeRelay{chain: chain, includeAt: map[uint64]bool{}, sendErr: map[uint64]error{}}
	for _, b := range includeAt {
		r.includeAt[b] = true
	}
	return r
}

func (r *fakeRelay) SimulateBundle(_ context.Context, txs types.Transactions, target, stateBlock, timestamp uint64) (*flashbots.SimResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sims = append(r.sims, simCall{txs: txs, target: target, stateBlock: stateBlock, timestamp: timestamp})
	if r.simErr != nil {
		return nil, r.simErr
	}
	return &flashbots.SimResult{OK: true, RawJSON: `{"results":[]}`}, nil
}

func (r *fakeRelay) SendBundle(_ context.Context, txs types.Transactions, target uint64) (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sendErr[target]; err != nil {
		return common.Hash{}, err
	}
	r.sent = append(r.sent, sentBundle{txs: txs, target: target})
	if r.includeAt[target] && r.chain != nil {
		r.chain.include(txs, target, types.ReceiptStatusSuccessful)
	}
	return common.BigToHash(new(big.Int).SetUint64(target)), nil
}

func (r *fakeRelay) targets() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.sent))
	for i, s := range r.sent {
		out[i] = s.target
	}
	return out
}

func newTestClient(t *testing.T, chain Chain, relay Relay) *Client {
	t.Helper()
	wallet, err := NewSigner(testKey, testChainID)
	require.NoError(t, err)
	c, err := NewClient(chain, relay, wallet, wallet, Options{PollInterval: time.Millisecond})
	require.NoError(t, err)
	return c
}
