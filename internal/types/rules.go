package types

import "math/big"

// IdentifierType distinguishes what an IndexingRule's Identifier refers to.
type IdentifierType string

const (
	IdentifierTypeGroup      IdentifierType = "GROUP"
	IdentifierTypeSubgraph   IdentifierType = "SUBGRAPH"
	IdentifierTypeDeployment IdentifierType = "DEPLOYMENT"
)

// DecisionBasis controls how the Rule Evaluator treats a matched rule.
type DecisionBasis string

const (
	DecisionBasisRules    DecisionBasis = "RULES"
	DecisionBasisAlways   DecisionBasis = "ALWAYS"
	DecisionBasisNever    DecisionBasis = "NEVER"
	DecisionBasisOffchain DecisionBasis = "OFFCHAIN"
)

// GlobalIdentifier is the sentinel identifier of the per-network fallback
// rule; it must be paired with IdentifierTypeGroup.
const GlobalIdentifier = "global"

// AllocationManagementMode controls whether the Allocation Reconciler is
// allowed to write on-chain transactions for a network.
type AllocationManagementMode string

const (
	AllocationManagementAuto   AllocationManagementMode = "auto"
	AllocationManagementManual AllocationManagementMode = "manual"
)

// IndexingRule is an operator-authored policy row, scoped to one protocol
// network. (identifier, identifierType, protocolNetwork) is unique.
type IndexingRule struct {
	Identifier     string
	IdentifierType IdentifierType
	ProtocolNetwork string

	AllocationAmount       *big.Int
	ParallelAllocations    int
	MaxAllocationPercentage *float64
	MinSignal              *big.Int
	MaxSignal              *big.Int
	MinStake               *big.Int
	MinAverageQueryFees    *big.Int

	DecisionBasis      DecisionBasis
	AllocationLifetime *uint64 // epochs; nil means "derive from maxAllocationEpochs"
	RequireSupported   bool
	AutoRenewal        bool
}

// IsGlobal reports whether this is the per-network fallback rule.
func (r IndexingRule) IsGlobal() bool {
	return r.Identifier == GlobalIdentifier && r.IdentifierType == IdentifierTypeGroup
}

// DefaultGlobalRule builds the default "global" rule inserted by
// Operator.EnsureGlobalIndexingRule for a network that has none yet.
func DefaultGlobalRule(network string, defaultAllocationAmount *big.Int) IndexingRule {
	return IndexingRule{
		Identifier:          GlobalIdentifier,
		IdentifierType:      IdentifierTypeGroup,
		ProtocolNetwork:     network,
		AllocationAmount:    defaultAllocationAmount,
		ParallelAllocations: 1,
		DecisionBasis:       DecisionBasisRules,
		RequireSupported:    true,
	}
}

// MergeWithGlobal returns a copy of r with any unset economic/lifecycle
// fields inherited from the global rule. Only applies to SUBGRAPH and
// DEPLOYMENT rules, per Operator.indexingRules(merged=true).
func (r IndexingRule) MergeWithGlobal(global IndexingRule) IndexingRule {
	if r.IdentifierType != IdentifierTypeSubgraph && r.IdentifierType != IdentifierTypeDeployment {
		return r
	}
	merged := r
	if merged.AllocationAmount == nil {
		merged.AllocationAmount = global.AllocationAmount
	}
	if merged.ParallelAllocations == 0 {
		merged.ParallelAllocations = global.ParallelAllocations
	}
	if merged.MaxAllocationPercentage == nil {
		merged.MaxAllocationPercentage = global.MaxAllocationPercentage
	}
	if merged.MinSignal == nil {
		merged.MinSignal = global.MinSignal
	}
	if merged.MaxSignal == nil {
		merged.MaxSignal = global.MaxSignal
	}
	if merged.MinStake == nil {
		merged.MinStake = global.MinStake
	}
	if merged.MinAverageQueryFees == nil {
		merged.MinAverageQueryFees = global.MinAverageQueryFees
	}
	if merged.DecisionBasis == "" {
		merged.DecisionBasis = global.DecisionBasis
	}
	if merged.AllocationLifetime == nil {
		merged.AllocationLifetime = global.AllocationLifetime
	}
	return merged
}
