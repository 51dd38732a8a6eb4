package bundlecore

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/ligun0805/bundle-relay/internal/config"
	"github.com/ligun0805/bundle-relay/internal/logging"
	"github.com/ligun0805/bundle-relay/internal/metrics"
)

// TxPerBundle is the number of payments packed into every bundle.
const TxPerBundle = 2

// Payment is the transfer repeated in each bundle transaction.
type Payment struct {
	To    common.Address
	Value *big.Int
}

type Params struct {
	Payment Payment

	MaxAttempts      int
	SimTimestamp     uint64
	Simulate         bool
	InclusionTimeout time.Duration

	NonceMode     config.NonceMode
	TargetMode    config.TargetMode
	OnBuildError  config.ErrorPolicy
	OnSubmitError config.ErrorPolicy

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// ParamsFromSettings maps loaded settings onto run parameters.
func ParamsFromSettings(st config.Settings) Params {
	return Params{
		Payment:          Payment{To: st.Recipient, Value: new(big.Int).Set(st.ValueWei)},
		MaxAttempts:      st.MaxAttempts,
		SimTimestamp:     st.SimTimestamp,
		Simulate:         st.Simulate,
		InclusionTimeout: st.InclusionTimeout,
		NonceMode:        st.NonceMode,
		TargetMode:       st.TargetMode,
		OnBuildError:     st.OnBuildError,
		OnSubmitError:    st.OnSubmitError,
	}
}

// logger prefers p.Logger and falls back to the one carried by ctx.
func (p *Params) logger(ctx context.Context) *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.FromContext(ctx)
}

// Status is the terminal state of a run.
type Status int

const (
	StatusExhausted Status = iota
	StatusIncluded
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusIncluded:
		return "included"
	case StatusFatal:
		return "fatal"
	default:
		return "exhausted"
	}
}

// Phase is the last state an attempt reached.
type Phase string

const (
	PhaseBuild       Phase = "build"
	PhaseSubmit      Phase = "submit"
	PhaseAwait       Phase = "await"
	PhaseIncluded    Phase = "included"
	PhaseNotIncluded Phase = "not_included"
	PhaseError       Phase = "error"
)

type Attempt struct {
	Index       int
	TargetBlock uint64
	Phase       Phase
	BundleHash  common.Hash
	Err         error
}

// Result is Included(hashes) | Exhausted | Fatal(err).
type Result struct {
	Status      Status
	Included    bool
	Reason      string
	BaseBlock   uint64
	TargetBlock uint64
	BundleHash  common.Hash
	TxHashes    []common.Hash
	Attempts    []Attempt
	Err         error
}
