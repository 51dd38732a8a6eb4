package bundlecore

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// Sign transaction with latest signer for given chain ID.
func signTx(tx *types.Transaction, chain *big.Int, prv *ecdsa.PrivateKey) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chain)
	return types.SignTx(tx, signer, prv)
}

// DecodeRawTransaction parses a signed wire encoding (typed envelope or legacy RLP).
func DecodeRawTransaction(raw []byte) (*types.Transaction, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty raw transaction")
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return tx, nil
}
