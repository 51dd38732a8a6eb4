package flashbots

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	fb "github.com/lmittmann/flashbots"
	"github.com/lmittmann/w3"
)

// Client talks to one Flashbots-compatible relay. Every request body is
// signed with AuthKey (X-Flashbots-Signature).
type Client struct {
	RelayURL string
	AuthKey  *ecdsa.PrivateKey
	rpc      *w3.Client
}

type SimResult struct {
	OK      bool
	Error   string
	RawJSON string
}

func NewClient(relayURL string, authKey *ecdsa.PrivateKey) (*Client, error) {
	if authKey == nil {
		return nil, errors.New("auth key is nil")
	}
	u := strings.TrimSpace(relayURL)
	rpc, err := fb.Dial(u, authKey)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", u, err)
	}
	return &Client{RelayURL: u, AuthKey: authKey, rpc: rpc}, nil
}

// AuthAddress is the searcher identity the relay sees.
func (c *Client) AuthAddress() common.Address {
	return crypto.PubkeyToAddress(c.AuthKey.PublicKey)
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

// SimulateBundle runs eth_callBundle. stateBlock and timestamp are optional (0 = relay default).
func (c *Client) SimulateBundle(ctx context.Context, txs types.Transactions, target, stateBlock, timestamp uint64) (*SimResult, error) {
	req := &fb.CallBundleRequest{
		Transactions: txs,
		BlockNumber:  new(big.Int).SetUint64(target),
	}
	if stateBlock > 0 {
		req.StateBlockNumber = new(big.Int).SetUint64(stateBlock)
	}
	if timestamp > 0 {
		req.Timestamp = timestamp
	}

	resp := new(fb.CallBundleResponse)
	if err := c.rpc.CallCtx(ctx, fb.CallBundle(req).Returns(resp)); err != nil {
		return nil, err
	}

	res := &SimResult{OK: true}
	if resp == nil {
		return res, nil
	}
	if b, err := json.Marshal(resp); err != nil {
		res.RawJSON = fmt.Sprintf("unencodable response: %v", err)
	} else {
		res.RawJSON = string(b)
	}
	for _, r := range resp.Results {
		if r.Error != nil || len(r.Revert) > 0 {
			res.OK = false
			if r.Error != nil {
				res.Error = r.Error.Error()
			} else {
				res.Error = r.Revert
			}
			break
		}
	}
	return res, nil
}

// SendBundle runs eth_sendBundle and returns the relay's bundle hash.
func (c *Client) SendBundle(ctx context.Context, txs types.Transactions, target uint64) (common.Hash, error) {
	var bundleHash common.Hash
	err := c.rpc.CallCtx(ctx,
		fb.SendBundle(&fb.SendBundleRequest{
			Transactions: txs,
			BlockNumber:  new(big.Int).SetUint64(target),
		}).Returns(&bundleHash),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return bundleHash, nil
}
