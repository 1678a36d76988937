package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// mirrorABI covers the three mirror-contract methods the oracle uses.
const mirrorABI = `[
  {"type":"function","name":"isAuthorizedOracle","stateMutability":"view",
   "inputs":[{"name":"oracle","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"getMirrorMarket","stateMutability":"view",
   "inputs":[{"name":"mirrorKey","type":"bytes32"}],
   "outputs":[
     {"name":"flowMarketId","type":"uint256"},
     {"name":"externalId","type":"string"},
     {"name":"source","type":"uint8"},
     {"name":"lastSyncPrice","type":"uint256"},
     {"name":"lastSyncTime","type":"uint256"},
     {"name":"isActive","type":"bool"},
     {"name":"totalMirrorVolume","type":"uint256"},
     {"name":"createdAt","type":"uint256"},
     {"name":"creator","type":"address"}]},
  {"type":"function","name":"resolveMirrorMarket","stateMutability":"nonpayable",
   "inputs":[
     {"name":"mirrorKey","type":"bytes32"},
     {"name":"yesWon","type":"bool"},
     {"name":"oracleSignature","type":"bytes"}],
   "outputs":[]}
]`

const (
	methodIsAuthorized = "isAuthorizedOracle"
	methodGetMirror    = "getMirrorMarket"
	methodResolve      = "resolveMirrorMarket"
)

// Contract packs and unpacks calls to the mirror contract.
type Contract struct {
	address common.Address
	abi     abi.ABI
}

// NewContract parses the mirror ABI for the contract at address.
func NewContract(address common.Address) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(mirrorABI))
	if err != nil {
		return nil, fmt.Errorf("settlement: parse abi: %w", err)
	}
	return &Contract{address: address, abi: parsed}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address { return c.address }

func (c *Contract) callRaw(ctx context.Context, cl ChainClient, method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := cl.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

// IsAuthorizedOracle asks the contract whether oracle may resolve markets.
func (c *Contract) IsAuthorizedOracle(ctx context.Context, cl ChainClient, oracle common.Address) (bool, error) {
	out, err := c.callRaw(ctx, cl, methodIsAuthorized, oracle)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := c.abi.UnpackIntoInterface(&ok, methodIsAuthorized, out); err != nil {
		return false, fmt.Errorf("unpack %s: %w", methodIsAuthorized, err)
	}
	return ok, nil
}

// mirrorMarketOut mirrors the getMirrorMarket return tuple. Field names follow
// the ABI output names.
type mirrorMarketOut struct {
	FlowMarketId      *big.Int
	ExternalId        string
	Source            uint8
	LastSyncPrice     *big.Int
	LastSyncTime      *big.Int
	IsActive          bool
	TotalMirrorVolume *big.Int
	CreatedAt         *big.Int
	Creator           common.Address
}

// GetMirrorMarket reads the on-chain record for mirrorKey. An unknown key
// comes back zero-valued; check MirrorMarket.Exists.
func (c *Contract) GetMirrorMarket(ctx context.Context, cl ChainClient, mirrorKey common.Hash) (domain.MirrorMarket, error) {
	out, err := c.callRaw(ctx, cl, methodGetMirror, mirrorKey)
	if err != nil {
		return domain.MirrorMarket{}, err
	}
	var res mirrorMarketOut
	if err := c.abi.UnpackIntoInterface(&res, methodGetMirror, out); err != nil {
		return domain.MirrorMarket{}, fmt.Errorf("unpack %s: %w", methodGetMirror, err)
	}
	return domain.MirrorMarket{
		FlowMarketID: res.FlowMarketId,
		ExternalLink: domain.ExternalLink{
			ExternalID:    res.ExternalId,
			Source:        SourceVenue(res.Source),
			LastSyncPrice: res.LastSyncPrice,
			LastSyncTime:  unixTime(res.LastSyncTime),
			IsActive:      res.IsActive,
		},
		TotalMirrorVolume: res.TotalMirrorVolume,
		CreatedAt:         unixTime(res.CreatedAt),
		Creator:           res.Creator,
	}, nil
}

// PackResolve encodes the resolveMirrorMarket call data.
func (c *Contract) PackResolve(mirrorKey common.Hash, yesWon bool, sig []byte) ([]byte, error) {
	data, err := c.abi.Pack(methodResolve, mirrorKey, yesWon, sig)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", methodResolve, err)
	}
	return data, nil
}

// SourceVenue maps the contract's source enum to a venue. Unknown values map
// to the empty venue.
func SourceVenue(src uint8) domain.Venue {
	switch src {
	case 0:
		return domain.VenuePolymarket
	case 1:
		return domain.VenueKalshi
	default:
		return ""
	}
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

// ParseMirrorKey parses a 0x-prefixed 32-byte hex key.
func ParseMirrorKey(s string) (common.Hash, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != 64 {
		return common.Hash{}, fmt.Errorf("%w: mirror key must be 32 bytes of hex", domain.ErrValidation)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: mirror key is not hex", domain.ErrValidation)
	}
	return common.BytesToHash(b), nil
}
