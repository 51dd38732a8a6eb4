package bundlecore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ligun0805/bundle-relay/internal/flashbots"
)

// SimReport is the diagnostic output of a one-off bundle simulation.
type SimReport struct {
	TargetBlock     uint64
	SimulationBlock uint64
	Timestamp       uint64
	RawTxs          []string
	Result          *flashbots.SimResult
}

// Simulate builds one bundle against head and asks the relay to execute it
// on top of head at p.SimTimestamp. Nothing in the retry loop depends on the
// outcome.
func Simulate(ctx context.Context, c *Client, p Params, head uint64) (*SimReport, error) {
	log := p.logger(ctx)

	b, err := c.BuildBundle(ctx, p.Payment, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildBundle, err)
	}
	b.SetBlock(head + 1).
		SetSimulationBlock(head).
		SetSimulationTimestamp(p.SimTimestamp)

	raws, err := b.RawHex()
	if err != nil {
		return nil, err
	}
	rep := &SimReport{
		TargetBlock:     head + 1,
		SimulationBlock: head,
		Timestamp:       p.SimTimestamp,
		RawTxs:          raws,
	}
	for i, raw := range raws {
		log.Info("simulated bundle", zap.Int("tx", i), zap.String("raw", raw))
	}

	res, err := c.SimulateBundle(ctx, b)
	if err != nil {
		p.Metrics.Simulation(false)
		log.Warn("simulation failed", zap.Error(err), zap.String("hint", flashbots.FriendlyError(err)))
		return rep, err
	}
	rep.Result = res
	p.Metrics.Simulation(res.OK)
	if res.OK {
		log.Info("simulation ok", zap.Uint64("target_block", rep.TargetBlock))
	} else {
		log.Warn("simulation reverted", zap.String("error", res.Error), zap.String("hint", flashbots.FriendlyError(errors.New(res.Error))))
	}
	log.Debug("simulation response", zap.String("raw", res.RawJSON))
	return rep, nil
}
