package bundlecore

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer is a private key pinned to one chain ID.
type Signer struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
	address common.Address
}

func NewSigner(hexKey string, chainID *big.Int) (*Signer, error) {
	prv, err := hexToECDSAPriv(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	return NewSignerFromKey(prv, chainID)
}

func NewSignerFromKey(prv *ecdsa.PrivateKey, chainID *big.Int) (*Signer, error) {
	if prv == nil {
		return nil, errors.New("private key is nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, errors.New("chain id must be positive")
	}
	return &Signer{
		key:     prv,
		chainID: new(big.Int).Set(chainID),
		address: gethcrypto.PubkeyToAddress(prv.PublicKey),
	}, nil
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

func (s *Signer) PrivateKey() *ecdsa.PrivateKey { return s.key }

// SignTx signs with the EIP-155/1559 aware signer of the pinned chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return signTx(tx, s.chainID, s.key)
}
