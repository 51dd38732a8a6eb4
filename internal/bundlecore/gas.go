package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
)

// Base fee of the latest header.
func latestBaseFee(ctx context.Context, chain Chain) (*big.Int, error) {
	h, err := chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	if h.BaseFee == nil {
		return nil, errors.New("no baseFee (pre-1559?)")
	}
	return new(big.Int).Set(h.BaseFee), nil
}

func (c *Client) suggestTip(ctx context.Context) (*big.Int, error) {
	if c.opts.TipGwei > 0 {
		return gweiToWei(c.opts.TipGwei), nil
	}
	return c.chain.SuggestGasTipCap(ctx)
}

// FillTransaction sets the chain ID and every fee/gas field left empty:
// tip from config or the node, feeCap = baseFee*BaseMul + tip, gas from
// config or eth_estimateGas.
func (c *Client) FillTransaction(ctx context.Context, tx *types.DynamicFeeTx) error {
	tx.ChainID = c.wallet.ChainID()

	if tx.GasTipCap == nil {
		tip, err := c.suggestTip(ctx)
		if err != nil {
			return fmt.Errorf("tip: %w", err)
		}
		tx.GasTipCap = tip
	}
	if tx.GasFeeCap == nil {
		baseFee, err := latestBaseFee(ctx, c.chain)
		if err != nil {
			return fmt.Errorf("base fee: %w", err)
		}
		tx.GasFeeCap = addBig(mulBig(baseFee, c.opts.BaseMul), tx.GasTipCap)
	}
	if tx.Value == nil {
		tx.Value = big.NewInt(0)
	}
	if tx.Gas == 0 {
		if c.opts.GasLimit > 0 {
			tx.Gas = c.opts.GasLimit
		} else {
			gas, err := c.chain.EstimateGas(ctx, ethereum.CallMsg{
				From:      c.wallet.Address(),
				To:        tx.To,
				Value:     tx.Value,
				Data:      tx.Data,
				GasTipCap: tx.GasTipCap,
				GasFeeCap: tx.GasFeeCap,
			})
			if err != nil {
				return fmt.Errorf("estimate gas: %w", err)
			}
			tx.Gas = gas
		}
	}
	return nil
}
