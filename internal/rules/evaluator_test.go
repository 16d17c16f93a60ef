package rules

import (
	"math/big"
	"testing"

	. "github.com/onsi/gomega"

	"indexer-agent/internal/types"
)

var (
	deploymentA = types.MustNewDeploymentID("QmZtNN8NNf4jVmSh4CWYStbeQLvoQX9gmAU8AKx8c7pnwb")
	deploymentB = types.MustNewDeploymentID("QmRhH2KnBk7qfCRxHE1hMpUXYMTkYx9Eo7nJfoxBz6zWwa")
)

func globalRule(basis types.DecisionBasis, allocationAmount *big.Int) types.IndexingRule {
	return types.IndexingRule{
		Identifier:       types.GlobalIdentifier,
		IdentifierType:   types.IdentifierTypeGroup,
		DecisionBasis:    basis,
		AllocationAmount: allocationAmount,
		RequireSupported: true,
	}
}

func TestEvaluateAlwaysRuleAllocates(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:     deploymentA.Hex(),
		IdentifierType: types.IdentifierTypeDeployment,
		DecisionBasis:  types.DecisionBasisAlways,
	}
	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, Chain: "mainnet"}}, nil)

	g.Expect(decisions).To(HaveLen(1))
	g.Expect(decisions[0].ToAllocate).To(BeTrue())
	g.Expect(decisions[0].RuleMatch.Reason).To(Equal("matched deployment rule"))
}

func TestEvaluateNeverRuleNeverAllocatesRegardlessOfThresholds(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisNever,
		AllocationAmount: big.NewInt(1000),
		MinStake:         big.NewInt(1),
	}
	d := Deployment{ID: deploymentA, Chain: "mainnet", StakedTokens: big.NewInt(1_000_000)}
	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{d}, nil)

	g.Expect(decisions[0].ToAllocate).To(BeFalse())
}

func TestEvaluateOffchainRuleNeverAllocatesOnChain(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:     deploymentA.Hex(),
		IdentifierType: types.IdentifierTypeDeployment,
		DecisionBasis:  types.DecisionBasisOffchain,
	}
	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA}}, nil)

	g.Expect(decisions[0].ToAllocate).To(BeFalse())
}

func TestEvaluateDeploymentRuleTakesPrecedenceOverGlobal(t *testing.T) {
	g := NewWithT(t)

	deploymentRule := types.IndexingRule{
		Identifier:     deploymentA.Hex(),
		IdentifierType: types.IdentifierTypeDeployment,
		DecisionBasis:  types.DecisionBasisAlways,
	}
	global := globalRule(types.DecisionBasisNever, nil)

	decisions := Evaluate([]types.IndexingRule{global, deploymentRule}, []Deployment{{ID: deploymentA}}, nil)

	g.Expect(decisions[0].ToAllocate).To(BeTrue())
	g.Expect(decisions[0].RuleMatch.Reason).To(Equal("matched deployment rule"))
}

func TestEvaluateFallsBackToGlobalRule(t *testing.T) {
	g := NewWithT(t)

	global := globalRule(types.DecisionBasisAlways, nil)

	decisions := Evaluate([]types.IndexingRule{global}, []Deployment{{ID: deploymentB, Chain: "mainnet"}}, map[string]bool{"mainnet": true})

	g.Expect(decisions[0].ToAllocate).To(BeTrue())
	g.Expect(decisions[0].RuleMatch.Reason).To(Equal("matched global rule"))
}

func TestEvaluateNoMatchingRuleDoesNotAllocate(t *testing.T) {
	g := NewWithT(t)

	decisions := Evaluate(nil, []Deployment{{ID: deploymentA}}, nil)

	g.Expect(decisions[0].ToAllocate).To(BeFalse())
	g.Expect(decisions[0].RuleMatch.Rule).To(BeNil())
	g.Expect(decisions[0].RuleMatch.Reason).To(Equal("no matching rule"))
}

func TestEvaluateRulesBasisRequiresAThresholdMatch(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisRules,
		AllocationAmount: big.NewInt(1000),
		MinStake:         big.NewInt(500),
	}

	below := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, StakedTokens: big.NewInt(100)}}, nil)
	g.Expect(below[0].ToAllocate).To(BeFalse())

	above := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, StakedTokens: big.NewInt(500)}}, nil)
	g.Expect(above[0].ToAllocate).To(BeTrue())
}

func TestEvaluateRulesBasisWithZeroAllocationAmountNeverAllocates(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisRules,
		AllocationAmount: big.NewInt(0),
		MinStake:         big.NewInt(0),
	}

	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, StakedTokens: big.NewInt(1000)}}, nil)
	g.Expect(decisions[0].ToAllocate).To(BeFalse())
}

func TestEvaluateSignalThresholdRespectsMinAndMax(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisRules,
		AllocationAmount: big.NewInt(1000),
		MinSignal:        big.NewInt(10),
		MaxSignal:        big.NewInt(100),
	}

	tooLow := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, SignalAmount: big.NewInt(5)}}, nil)
	g.Expect(tooLow[0].ToAllocate).To(BeFalse())

	tooHigh := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, SignalAmount: big.NewInt(500)}}, nil)
	g.Expect(tooHigh[0].ToAllocate).To(BeFalse())

	inRange := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, SignalAmount: big.NewInt(50)}}, nil)
	g.Expect(inRange[0].ToAllocate).To(BeTrue())
}

func TestEvaluateAverageQueryFeesDividesByAllocationCount(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:          deploymentA.Hex(),
		IdentifierType:      types.IdentifierTypeDeployment,
		DecisionBasis:       types.DecisionBasisRules,
		AllocationAmount:    big.NewInt(1000),
		MinAverageQueryFees: big.NewInt(100),
	}

	d := Deployment{ID: deploymentA, QueryFeesAmount: big.NewInt(1000), AllocationCount: 5}
	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{d}, nil)
	g.Expect(decisions[0].ToAllocate).To(BeTrue()) // average 1000/5 = 200 >= 100

	d2 := Deployment{ID: deploymentA, QueryFeesAmount: big.NewInt(1000), AllocationCount: 20}
	decisions2 := Evaluate([]types.IndexingRule{rule}, []Deployment{d2}, nil)
	g.Expect(decisions2[0].ToAllocate).To(BeFalse()) // average 1000/20 = 50 < 100
}

func TestEvaluateUnsupportedChainForcesFalseWhenRequireSupported(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisAlways,
		RequireSupported: true,
	}
	supported := map[string]bool{"mainnet": true}

	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, Chain: "arbitrum"}}, supported)

	g.Expect(decisions[0].ToAllocate).To(BeFalse())
	g.Expect(decisions[0].RuleMatch.Reason).To(ContainSubstring("unsupported chain arbitrum"))
}

func TestEvaluateSupportedChainIsUnaffectedWhenRequireSupportedFalse(t *testing.T) {
	g := NewWithT(t)

	rule := types.IndexingRule{
		Identifier:       deploymentA.Hex(),
		IdentifierType:   types.IdentifierTypeDeployment,
		DecisionBasis:    types.DecisionBasisAlways,
		RequireSupported: false,
	}

	decisions := Evaluate([]types.IndexingRule{rule}, []Deployment{{ID: deploymentA, Chain: "arbitrum"}}, map[string]bool{})

	g.Expect(decisions[0].ToAllocate).To(BeTrue())
}
