package bundlecore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// ErrBundleNotIncluded is returned by Wait when the target block was mined
// without the bundle.
var ErrBundleNotIncluded = errors.New("bundle not included in target block")

// PendingBundle is a submitted bundle whose target block may not exist yet.
type PendingBundle struct {
	BundleHash   common.Hash
	TargetBlock  uint64
	Transactions []common.Hash

	chain    Chain
	interval time.Duration
}

// Wait blocks until the chain reaches the target block, then reports whether
// every bundle transaction was mined in it. On inclusion it returns the
// bundle hash.
func (pb *PendingBundle) Wait(ctx context.Context) (common.Hash, error) {
	if err := pb.waitForBlock(ctx); err != nil {
		return common.Hash{}, err
	}
	for i, h := range pb.Transactions {
		rcpt, err := pb.chain.TransactionReceipt(ctx, h)
		if errors.Is(err, ethereum.NotFound) {
			return common.Hash{}, ErrBundleNotIncluded
		}
		if err != nil {
			return common.Hash{}, fmt.Errorf("receipt tx %d: %w", i, err)
		}
		// A reverted tx in the target block still counts: its nonce is spent.
		if rcpt.BlockNumber == nil || rcpt.BlockNumber.Uint64() != pb.TargetBlock {
			return common.Hash{}, ErrBundleNotIncluded
		}
	}
	return pb.BundleHash, nil
}

func (pb *PendingBundle) waitForBlock(ctx context.Context) error {
	interval := pb.interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		head, err := pb.chain.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("block number: %w", err)
		}
		if head >= pb.TargetBlock {
			return nil
		}
		timer.Reset(interval)
	}
}
