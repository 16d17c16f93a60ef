package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	indexertypes "indexer-agent/internal/types"
)

// mustABI joins JSON ABI method entries into one ABI array and parses it
// with accounts/abi.JSON for ad hoc (non-abigen) contract binding; it panics
// on a malformed entry.
func mustABI(signatures ...string) abi.ABI {
	var b strings.Builder
	b.WriteString("[")
	for i, sig := range signatures {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(sig)
	}
	b.WriteString("]")
	parsed, err := abi.JSON(strings.NewReader(b.String()))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid ABI fragment: %s", err))
	}
	return parsed
}

var stakingABI = mustABI(
	`{"name":"currentEpoch","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}`,
	`{"name":"maxAllocationEpochs","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}`,
	`{"name":"isOperator","type":"function","stateMutability":"view","inputs":[{"type":"address","name":"operator"},{"type":"address","name":"indexer"}],"outputs":[{"type":"bool"}]}`,
	`{"name":"getAllocationState","type":"function","stateMutability":"view","inputs":[{"type":"address","name":"allocationID"}],"outputs":[{"type":"uint8"}]}`,
	`{"name":"getAllocation","type":"function","stateMutability":"view","inputs":[{"type":"address","name":"allocationID"}],"outputs":[{"type":"tuple","components":[{"type":"address","name":"indexer"},{"type":"bytes32","name":"subgraphDeploymentID"},{"type":"uint256","name":"tokens"},{"type":"uint256","name":"createdAtEpoch"},{"type":"uint256","name":"closedAtEpoch"}]}]}`,
	`{"name":"getIndexerCapacity","type":"function","stateMutability":"view","inputs":[{"type":"address","name":"indexer"}],"outputs":[{"type":"uint256"}]}`,
	`{"name":"allocateFrom","type":"function","stateMutability":"nonpayable","inputs":[{"type":"address","name":"indexer"},{"type":"bytes32","name":"subgraphDeploymentID"},{"type":"uint256","name":"tokens"},{"type":"address","name":"allocationID"},{"type":"bytes","name":"proofOfControl"}],"outputs":[]}`,
	`{"name":"closeAllocation","type":"function","stateMutability":"nonpayable","inputs":[{"type":"address","name":"allocationID"},{"type":"bytes32","name":"poi"}],"outputs":[]}`,
	`{"name":"collectRewards","type":"function","stateMutability":"nonpayable","inputs":[{"type":"address[]","name":"allocationIDs"}],"outputs":[]}`,
)

var serviceRegistryABI = mustABI(
	`{"name":"isRegistered","type":"function","stateMutability":"view","inputs":[{"type":"address","name":"indexer"}],"outputs":[{"type":"bool"}]}`,
)

var controllerABI = mustABI(
	`{"name":"paused","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"bool"}]}`,
)

var epochManagerABI = mustABI(
	`{"name":"currentEpoch","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}`,
	`{"name":"blockNumForEpoch","type":"function","stateMutability":"view","inputs":[{"type":"uint256","name":"epoch"}],"outputs":[{"type":"uint256"}]}`,
	`{"name":"epochLength","type":"function","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]}`,
)

// TxSigner produces a signed, chain-aware transactor for broadcasting writes
// from the indexer's operator wallet. A production build supplies this from
// a keystore or hardware signer; gas price is overridden per-call from
// TxOpts.GasPriceMax.
type TxSigner func(ctx context.Context) (*bind.TransactOpts, error)

// OnChain implements Staking, ServiceRegistry, Controller and EpochManager
// against ad hoc ABI-bound contracts, using the client's own read/write
// surface rather than abigen-generated bindings - gas estimation and
// broadcast mechanics are delegated to go-ethereum's bind package per the
// TxSigner supplied at construction.
type OnChain struct {
	client *ethclient.Client
	signer TxSigner

	staking         *bind.BoundContract
	serviceRegistry *bind.BoundContract
	controller      *bind.BoundContract
	epochManager    *bind.BoundContract
}

// Addresses names the on-chain contracts OnChain talks to.
type Addresses struct {
	Staking         common.Address
	ServiceRegistry common.Address
	Controller      common.Address
	EpochManager    common.Address
}

// NewOnChain builds an OnChain reader/writer against the given client.
func NewOnChain(client *ethclient.Client, addrs Addresses, signer TxSigner) *OnChain {
	backend := client
	return &OnChain{
		client:          client,
		signer:          signer,
		staking:         bind.NewBoundContract(addrs.Staking, stakingABI, backend, backend, backend),
		serviceRegistry: bind.NewBoundContract(addrs.ServiceRegistry, serviceRegistryABI, backend, backend, backend),
		controller:      bind.NewBoundContract(addrs.Controller, controllerABI, backend, backend, backend),
		epochManager:    bind.NewBoundContract(addrs.EpochManager, epochManagerABI, backend, backend, backend),
	}
}

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (o *OnChain) CurrentEpoch(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "currentEpoch"); err != nil {
		return 0, fmt.Errorf("staking.currentEpoch: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (o *OnChain) MaxAllocationEpochs(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "maxAllocationEpochs"); err != nil {
		return 0, fmt.Errorf("staking.maxAllocationEpochs: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (o *OnChain) IsOperator(ctx context.Context, operator, indexer common.Address) (bool, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "isOperator", operator, indexer); err != nil {
		return false, fmt.Errorf("staking.isOperator: %w", err)
	}
	return out[0].(bool), nil
}

func (o *OnChain) GetAllocationState(ctx context.Context, allocationID common.Address) (indexertypes.AllocationState, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "getAllocationState", allocationID); err != nil {
		return indexertypes.AllocationStateNull, fmt.Errorf("staking.getAllocationState: %w", err)
	}
	return indexertypes.AllocationState(out[0].(uint8)), nil
}

func (o *OnChain) GetAllocation(ctx context.Context, allocationID common.Address) (indexertypes.Allocation, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "getAllocation", allocationID); err != nil {
		return indexertypes.Allocation{}, fmt.Errorf("staking.getAllocation: %w", err)
	}
	raw := out[0].(struct {
		Indexer              common.Address
		SubgraphDeploymentID [32]byte
		Tokens               *big.Int
		CreatedAtEpoch       *big.Int
		ClosedAtEpoch        *big.Int
	})
	return indexertypes.Allocation{
		ID:                 allocationID,
		Indexer:            raw.Indexer,
		SubgraphDeployment: indexertypes.NewDeploymentIDFromBytes32(raw.SubgraphDeploymentID),
		AllocatedTokens:    raw.Tokens,
		CreatedAtEpoch:     raw.CreatedAtEpoch.Uint64(),
		ClosedAtEpoch:      raw.ClosedAtEpoch.Uint64(),
	}, nil
}

func (o *OnChain) GetIndexerCapacity(ctx context.Context, indexer common.Address) (*big.Int, error) {
	var out []interface{}
	if err := o.staking.Call(callOpts(ctx), &out, "getIndexerCapacity", indexer); err != nil {
		return nil, fmt.Errorf("staking.getIndexerCapacity: %w", err)
	}
	return out[0].(*big.Int), nil
}

func (o *OnChain) AllocateFrom(ctx context.Context, opts TxOpts, indexer common.Address, deployment indexertypes.SubgraphDeploymentID, tokens *big.Int, allocationID common.Address, proofOfControl [65]byte) (TxResult, error) {
	txOpts, err := o.prepareWrite(ctx, opts)
	if err != nil {
		return TxResult{}, err
	}
	b32 := deployment.Bytes32()
	tx, err := o.staking.Transact(txOpts, "allocateFrom", indexer, b32, tokens, allocationID, proofOfControl[:])
	if err != nil {
		return TxResult{}, fmt.Errorf("staking.allocateFrom: %w", err)
	}
	return TxResult{TxHash: tx.Hash()}, nil
}

func (o *OnChain) CloseAllocation(ctx context.Context, opts TxOpts, allocationID common.Address, poi [32]byte) (TxResult, error) {
	txOpts, err := o.prepareWrite(ctx, opts)
	if err != nil {
		return TxResult{}, err
	}
	tx, err := o.staking.Transact(txOpts, "closeAllocation", allocationID, poi)
	if err != nil {
		return TxResult{}, fmt.Errorf("staking.closeAllocation: %w", err)
	}
	return TxResult{TxHash: tx.Hash()}, nil
}

func (o *OnChain) CollectRewards(ctx context.Context, opts TxOpts, allocationIDs []common.Address) (TxResult, error) {
	txOpts, err := o.prepareWrite(ctx, opts)
	if err != nil {
		return TxResult{}, err
	}
	tx, err := o.staking.Transact(txOpts, "collectRewards", allocationIDs)
	if err != nil {
		return TxResult{}, fmt.Errorf("staking.collectRewards: %w", err)
	}
	return TxResult{TxHash: tx.Hash()}, nil
}

func (o *OnChain) prepareWrite(ctx context.Context, opts TxOpts) (*bind.TransactOpts, error) {
	txOpts, err := o.signer(ctx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	txOpts.Context = ctx
	if opts.GasPriceMax != nil {
		txOpts.GasFeeCap = opts.GasPriceMax
	}
	return txOpts, nil
}

func (o *OnChain) IsRegistered(ctx context.Context, indexer common.Address) (bool, error) {
	var out []interface{}
	if err := o.serviceRegistry.Call(callOpts(ctx), &out, "isRegistered", indexer); err != nil {
		return false, fmt.Errorf("serviceRegistry.isRegistered: %w", err)
	}
	return out[0].(bool), nil
}

func (o *OnChain) Paused(ctx context.Context) (bool, error) {
	var out []interface{}
	if err := o.controller.Call(callOpts(ctx), &out, "paused"); err != nil {
		return false, fmt.Errorf("controller.paused: %w", err)
	}
	return out[0].(bool), nil
}

// EpochLength returns the epoch manager's configured epoch length in
// blocks, used to size the rewrite rule's deployment-rollover grace window.
func (o *OnChain) EpochLength(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := o.epochManager.Call(callOpts(ctx), &out, "epochLength"); err != nil {
		return 0, fmt.Errorf("epochManager.epochLength: %w", err)
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (o *OnChain) EpochStartBlockHash(ctx context.Context, epoch uint64) (common.Hash, uint64, error) {
	var out []interface{}
	if err := o.epochManager.Call(callOpts(ctx), &out, "blockNumForEpoch", new(big.Int).SetUint64(epoch)); err != nil {
		return common.Hash{}, 0, fmt.Errorf("epochManager.blockNumForEpoch: %w", err)
	}
	blockNum := out[0].(*big.Int).Uint64()

	header, err := o.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNum))
	if err != nil {
		return common.Hash{}, 0, fmt.Errorf("fetch header for block %d: %w", blockNum, err)
	}
	return header.Hash(), blockNum, nil
}
