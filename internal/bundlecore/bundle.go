package bundlecore

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// BundleTx holds either an already signed transaction or its raw wire bytes.
type BundleTx struct {
	Signed *types.Transaction
	Raw    []byte
}

// Bytes returns the signed wire encoding of the entry.
func (t BundleTx) Bytes() ([]byte, error) {
	if t.Signed != nil {
		return t.Signed.MarshalBinary()
	}
	return common.CopyBytes(t.Raw), nil
}

// Bundle is an ordered list of signed transactions for one target block.
// Order is insertion order and is what the relay executes.
type Bundle struct {
	txs []BundleTx

	BlockNumber         uint64
	SimulationBlock     *uint64
	SimulationTimestamp *uint64
}

func NewBundle() *Bundle { return &Bundle{} }

func (b *Bundle) PushTransaction(tx *types.Transaction) *Bundle {
	b.txs = append(b.txs, BundleTx{Signed: tx})
	return b
}

func (b *Bundle) PushRawTransaction(raw []byte) *Bundle {
	b.txs = append(b.txs, BundleTx{Raw: common.CopyBytes(raw)})
	return b
}

func (b *Bundle) SetBlock(n uint64) *Bundle {
	b.BlockNumber = n
	return b
}

func (b *Bundle) SetSimulationBlock(n uint64) *Bundle {
	b.SimulationBlock = &n
	return b
}

func (b *Bundle) SetSimulationTimestamp(ts uint64) *Bundle {
	b.SimulationTimestamp = &ts
	return b
}

func (b *Bundle) Len() int { return len(b.txs) }

func (b *Bundle) Entries() []BundleTx {
	out := make([]BundleTx, len(b.txs))
	copy(out, b.txs)
	return out
}

// RawTransactions returns the wire encoding of every entry, in order.
func (b *Bundle) RawTransactions() ([][]byte, error) {
	out := make([][]byte, 0, len(b.txs))
	for i, t := range b.txs {
		raw, err := t.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func (b *Bundle) RawHex() ([]string, error) {
	raws, err := b.RawTransactions()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(raws))
	for i, r := range raws {
		out[i] = hexutil.Encode(r)
	}
	return out, nil
}

// Transactions decodes every entry into a transaction, in order.
func (b *Bundle) Transactions() (types.Transactions, error) {
	out := make(types.Transactions, 0, len(b.txs))
	for i, t := range b.txs {
		if t.Signed != nil {
			out = append(out, t.Signed)
			continue
		}
		tx, err := DecodeRawTransaction(t.Raw)
		if err != nil {
			return nil, fmt.Errorf("decode tx %d: %w", i, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (b *Bundle) TxHashes() ([]common.Hash, error) {
	txs, err := b.Transactions()
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash()
	}
	return out, nil
}
