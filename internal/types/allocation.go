package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AllocationState mirrors the staking contract's allocation state machine.
// The reconciler only ever drives Null->Active (open) and Active->Closed
// (close); the remaining transitions are observed, never written.
type AllocationState int

const (
	AllocationStateNull AllocationState = iota
	AllocationStateActive
	AllocationStateClosed
	AllocationStateFinalized
	AllocationStateClaimed
)

func (s AllocationState) String() string {
	switch s {
	case AllocationStateActive:
		return "Active"
	case AllocationStateClosed:
		return "Closed"
	case AllocationStateFinalized:
		return "Finalized"
	case AllocationStateClaimed:
		return "Claimed"
	default:
		return "Null"
	}
}

// ZeroPOI is the 32 zero bytes submitted when the graph node cannot produce a
// proof of indexing for an allocation being closed.
var ZeroPOI [32]byte

// Allocation is the on-chain record of staked tokens against a deployment.
type Allocation struct {
	ID                 common.Address
	Indexer            common.Address
	SubgraphDeployment SubgraphDeploymentID
	AllocatedTokens    *big.Int
	CreatedAtEpoch     uint64
	CreatedAtBlockHash common.Hash
	ClosedAtEpoch      uint64 // 0 while still active
	ClosedAtBlockHash  common.Hash
	POI                [32]byte
}

// IsActive reports whether the allocation has not yet been closed.
func (a Allocation) IsActive() bool {
	return a.ClosedAtEpoch == 0
}
