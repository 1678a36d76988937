package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// ResolveActionTag is the action tag mixed into every resolution message.
const ResolveActionTag = "RESOLVE_MIRROR"

// OracleSigner holds the oracle key. It signs resolution messages and the
// transactions that carry them.
type OracleSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewOracleSigner binds pk to chainID.
func NewOracleSigner(pk *ecdsa.PrivateKey, chainID int64) *OracleSigner {
	return &OracleSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    big.NewInt(chainID),
	}
}

// Address returns the oracle address derived from the key.
func (s *OracleSigner) Address() common.Address {
	return s.address
}

// ChainID returns the chain the signer is bound to.
func (s *OracleSigner) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// ResolutionHash returns the canonical message hash:
//
//	keccak256(mirrorKey || outcome || "RESOLVE_MIRROR" || uint256(chainId))
//
// outcome is one byte, 1 for YES and 0 for NO. This matches Solidity's
// abi.encodePacked(bytes32, bool, string, uint256).
func ResolutionHash(mirrorKey common.Hash, yesWon bool, chainID *big.Int) common.Hash {
	outcome := byte(0)
	if yesWon {
		outcome = 1
	}
	return ethcrypto.Keccak256Hash(
		mirrorKey.Bytes(),
		[]byte{outcome},
		[]byte(ResolveActionTag),
		common.LeftPadBytes(chainID.Bytes(), 32),
	)
}

// SignResolution signs the resolution hash as an EIP-191 personal message and
// returns the 65-byte signature with v in {27, 28}.
func (s *OracleSigner) SignResolution(mirrorKey common.Hash, yesWon bool) ([]byte, error) {
	hash := ResolutionHash(mirrorKey, yesWon, s.chainID)
	sig, err := ethcrypto.Sign(accounts.TextHash(hash.Bytes()), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: %w: %v", domain.ErrSigningFailed, err)
	}
	sig[64] += 27
	return sig, nil
}

// SignTx signs a transaction for the bound chain.
func (s *OracleSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w: %v", domain.ErrSigningFailed, err)
	}
	return signed, nil
}

// RecoverResolutionSigner returns the address that produced sig over the
// resolution message. The contract performs the same recovery.
func RecoverResolutionSigner(mirrorKey common.Hash, yesWon bool, chainID *big.Int, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto/signer: signature length %d", len(sig))
	}
	raw := append([]byte(nil), sig...)
	if raw[64] >= 27 {
		raw[64] -= 27
	}
	digest := accounts.TextHash(ResolutionHash(mirrorKey, yesWon, chainID).Bytes())
	pub, err := ethcrypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto/signer: recover: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
