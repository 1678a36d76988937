package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ExternalLink ties a mirror market to the venue listing it tracks.
type ExternalLink struct {
	ExternalID    string
	Source        Venue
	LastSyncPrice *big.Int
	LastSyncTime  time.Time
	IsActive      bool
}

// MirrorMarket is the on-chain record read before a settlement is signed.
type MirrorMarket struct {
	FlowMarketID      *big.Int
	ExternalLink      ExternalLink
	TotalMirrorVolume *big.Int
	CreatedAt         time.Time
	Creator           common.Address
}

// Exists reports whether the contract returned a populated record.
func (m MirrorMarket) Exists() bool {
	return m.Creator != (common.Address{})
}

// Resolution is the outcome of one settlement call.
type Resolution struct {
	MirrorKey       string    `json:"mirrorKey"`
	YesWon          bool      `json:"yesWon"`
	Source          Venue     `json:"source,omitempty"`
	OracleSignature string    `json:"oracleSignature"`
	TxHash          string    `json:"txHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	Attempts        int       `json:"attempts"`
	ResolvedAt      time.Time `json:"resolvedAt"`
}
