// Package contracts models the Ethereum contract surface the reconciliation
// engine depends on (staking, service registry, controller, epoch manager)
// as typed Go interfaces, and provides OnChain (onchain.go), the ad hoc
// ABI-bound adapter the daemon wires them to; no abigen bindings are used.
package contracts

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/types"
)

// TxOpts carries the sender and gas ceiling for a write call. OnChain leaves
// nonce and gas limit to go-ethereum's bind package (its own estimate, with
// no 1.5x margin), sets GasPriceMax as the fee cap when it is non-nil, and
// sends each write once: it does not bump the gas price or retry.
type TxOpts struct {
	From       common.Address
	GasPriceMax *big.Int
}

// TxResult is returned by a successful write.
type TxResult struct {
	TxHash common.Hash
}

// Staking models the protocol's staking contract read/write surface.
type Staking interface {
	// CurrentEpoch returns the current epoch number.
	CurrentEpoch(ctx context.Context) (uint64, error)

	// MaxAllocationEpochs returns the configured maximum allocation
	// lifetime in epochs.
	MaxAllocationEpochs(ctx context.Context) (uint64, error)

	// IsOperator reports whether operator is authorized to act for indexer.
	IsOperator(ctx context.Context, operator, indexer common.Address) (bool, error)

	// GetAllocationState returns the current state machine position of an
	// allocation id.
	GetAllocationState(ctx context.Context, allocationID common.Address) (types.AllocationState, error)

	// GetAllocation returns full on-chain allocation details.
	GetAllocation(ctx context.Context, allocationID common.Address) (types.Allocation, error)

	// GetIndexerCapacity returns the amount of stake an indexer has free to
	// allocate.
	GetIndexerCapacity(ctx context.Context, indexer common.Address) (*big.Int, error)

	// AllocateFrom opens a new allocation, signed by the ephemeral
	// allocation key's proof of control.
	AllocateFrom(ctx context.Context, opts TxOpts, indexer common.Address, deployment types.SubgraphDeploymentID, tokens *big.Int, allocationID common.Address, proofOfControl [65]byte) (TxResult, error)

	// CloseAllocation closes an active allocation with the given proof of
	// indexing.
	CloseAllocation(ctx context.Context, opts TxOpts, allocationID common.Address, poi [32]byte) (TxResult, error)

	// CollectRewards claims rewards for a batch of claimable allocations.
	CollectRewards(ctx context.Context, opts TxOpts, allocationIDs []common.Address) (TxResult, error)
}

// ServiceRegistry models the read surface needed to check network-level
// operator authorization independent of the indexer==operator fast path.
type ServiceRegistry interface {
	IsRegistered(ctx context.Context, indexer common.Address) (bool, error)
}

// Controller exposes the protocol-wide pause switch.
type Controller interface {
	Paused(ctx context.Context) (bool, error)
}

// EpochManager models the epoch-manager contract's block bookkeeping, used
// by the POI Dispute Monitor to find each epoch's starting block.
type EpochManager interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
	EpochStartBlockHash(ctx context.Context, epoch uint64) (common.Hash, uint64, error)

	// EpochLength returns the configured epoch length in blocks.
	EpochLength(ctx context.Context) (uint64, error)
}
