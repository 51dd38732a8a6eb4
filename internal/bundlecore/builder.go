package bundlecore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// BuildBundle signs TxPerBundle copies of pay with consecutive nonces.
// The base nonce is read from the chain unless reserved is set.
// The returned bundle has no target block yet.
func (c *Client) BuildBundle(ctx context.Context, pay Payment, reserved *uint64) (*Bundle, error) {
	var nonce uint64
	if reserved != nil {
		nonce = *reserved
	} else {
		n, err := c.Nonce(ctx)
		if err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		nonce = n
	}

	value := pay.Value
	if value == nil {
		value = big.NewInt(0)
	}

	bundle := NewBundle()
	for i := 0; i < TxPerBundle; i++ {
		to := pay.To
		inner := &types.DynamicFeeTx{
			Nonce: nonce + uint64(i),
			To:    &to,
			Value: new(big.Int).Set(value),
		}
		if err := c.FillTransaction(ctx, inner); err != nil {
			return nil, fmt.Errorf("fill tx %d: %w", i, err)
		}
		signed, err := c.SignTransaction(types.NewTx(inner))
		if err != nil {
			return nil, fmt.Errorf("sign tx %d: %w", i, err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		bundle.PushRawTransaction(raw)
	}
	return bundle, nil
}
