package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DisputeStatus is the outcome of comparing an allocation's submitted POI
// against the reference POIs computed for its rewards pool.
type DisputeStatus string

const (
	DisputeStatusPotential           DisputeStatus = "potential"
	DisputeStatusValid               DisputeStatus = "valid"
	DisputeStatusReferenceUnavailable DisputeStatus = "reference_unavailable"
)

// POIDispute is a persisted, write-once record produced by the POI Dispute
// Monitor. Primary key is AllocationID; insertion is idempotent on it.
type POIDispute struct {
	AllocationID          common.Address
	SubgraphDeploymentID  SubgraphDeploymentID
	AllocationIndexer     common.Address
	AllocationAmount      *big.Int
	AllocationProof       [32]byte
	ClosedEpoch           uint64

	ClosedEpochStartBlockHash   common.Hash
	ClosedEpochStartBlockNumber uint64
	ClosedEpochReferenceProof   *[32]byte

	PreviousEpochStartBlockHash   common.Hash
	PreviousEpochStartBlockNumber uint64
	PreviousEpochReferenceProof   *[32]byte

	Status DisputeStatus
}
