package bundlecore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/bundle-relay/internal/config"
	"github.com/ligun0805/bundle-relay/internal/metrics"
)

// ErrBuildBundle wraps failures to construct a bundle, in the loop or for
// the up-front simulation.
var ErrBuildBundle = errors.New("build bundle")

// Run captures the chain height once, optionally simulates one bundle, then
// submits a freshly built bundle per target block until one is included or
// p.MaxAttempts targets have been tried. Exhaustion is not an error; the
// returned Result tells the three endings apart.
func Run(ctx context.Context, c *Client, p Params) (Result, error) {
	log := p.logger(ctx)
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = config.DefaultMaxAttempts
	}

	base, err := c.BlockNumber(ctx)
	if err != nil {
		return fatal(ctx, p, Result{}, fmt.Errorf("block number: %w", err))
	}
	res := Result{BaseBlock: base}
	log.Info("base block", zap.Uint64("block", base), zap.Stringer("from", c.Address()))

	var reserved *uint64
	if p.NonceMode == config.NonceReserve {
		n, err := c.Nonce(ctx)
		if err != nil {
			return fatal(ctx, p, res, fmt.Errorf("nonce: %w", err))
		}
		reserved = &n
		log.Info("reserved nonce", zap.Uint64("nonce", n))
	}

	if p.Simulate {
		_, err := Simulate(ctx, c, p, base)
		switch {
		case errors.Is(err, ErrBuildBundle) && p.OnBuildError != config.ErrorSkip:
			return fatal(ctx, p, res, err)
		case err != nil:
			log.Warn("simulation step", zap.Error(err))
		}
	}

	for k := 0; k < p.MaxAttempts; k++ {
		if err := ctx.Err(); err != nil {
			return fatal(ctx, p, res, err)
		}
		target, err := targetFor(ctx, c, p.TargetMode, base, k)
		if err != nil {
			return fatal(ctx, p, res, fmt.Errorf("block number: %w", err))
		}
		att := Attempt{Index: k, TargetBlock: target, Phase: PhaseBuild}
		alog := log.With(zap.Int("attempt", k), zap.Uint64("target_block", target))

		b, err := c.BuildBundle(ctx, p.Payment, reserved)
		if err != nil {
			att.Phase, att.Err = PhaseError, err
			res.Attempts = append(res.Attempts, att)
			p.Metrics.Attempt(metrics.OutcomeBuildError)
			if p.OnBuildError == config.ErrorSkip {
				alog.Error("build bundle", zap.Error(err))
				continue
			}
			return fatal(ctx, p, res, fmt.Errorf("%w: %w", ErrBuildBundle, err))
		}
		b.SetBlock(target)
		alog.Info("bundle initialized")
		p.Metrics.Target(target)

		att.Phase = PhaseSubmit
		pending, err := c.SendBundle(ctx, b)
		if err != nil {
			att.Phase, att.Err = PhaseError, err
			res.Attempts = append(res.Attempts, att)
			p.Metrics.Attempt(metrics.OutcomeSubmitError)
			if p.OnSubmitError == config.ErrorSkip {
				alog.Error("send bundle", zap.Error(err))
				continue
			}
			return fatal(ctx, p, res, fmt.Errorf("send bundle: %w", err))
		}
		att.BundleHash = pending.BundleHash

		att.Phase = PhaseAwait
		waitCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.InclusionTimeout > 0 {
			waitCtx, cancel = context.WithTimeout(ctx, p.InclusionTimeout)
		}
		hash, err := pending.Wait(waitCtx)
		cancel()

		switch {
		case err == nil:
			att.Phase = PhaseIncluded
			res.Attempts = append(res.Attempts, att)
			res.Status = StatusIncluded
			res.Included = true
			res.Reason = "included"
			res.TargetBlock = target
			res.BundleHash = hash
			res.TxHashes = append([]common.Hash(nil), pending.Transactions...)
			p.Metrics.Attempt(metrics.OutcomeIncluded)
			p.Metrics.Finished(res.Status.String())
			alog.Info("bundle included",
				zap.Stringer("bundle_hash", hash),
				zap.Stringers("txs", res.TxHashes))
			return res, nil
		case errors.Is(err, ErrBundleNotIncluded):
			att.Phase = PhaseNotIncluded
			res.Attempts = append(res.Attempts, att)
			p.Metrics.Attempt(metrics.OutcomeNotIncluded)
			alog.Info("bundle was not included in target block")
		default:
			att.Phase, att.Err = PhaseError, err
			res.Attempts = append(res.Attempts, att)
			p.Metrics.Attempt(metrics.OutcomeAwaitError)
			if ctx.Err() != nil {
				return fatal(ctx, p, res, ctx.Err())
			}
			alog.Error("await inclusion", zap.Error(err))
		}
	}

	res.Status = StatusExhausted
	res.Reason = "exhausted attempts"
	p.Metrics.Finished(res.Status.String())
	log.Info("attempts exhausted", zap.Int("attempts", p.MaxAttempts))
	return res, nil
}

// targetFor returns base+k, or in head mode at least one past the current head.
func targetFor(ctx context.Context, c *Client, mode config.TargetMode, base uint64, k int) (uint64, error) {
	target := base + uint64(k)
	if mode != config.TargetHead {
		return target, nil
	}
	head, err := c.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if head+1 > target {
		target = head + 1
	}
	return target, nil
}

func fatal(ctx context.Context, p Params, res Result, err error) (Result, error) {
	res.Status = StatusFatal
	res.Included = false
	res.Reason = err.Error()
	res.Err = err
	p.Metrics.Finished(res.Status.String())
	p.logger(ctx).Error("run aborted", zap.Error(err))
	return res, err
}
