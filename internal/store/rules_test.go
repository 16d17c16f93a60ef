package store

import (
	"database/sql"
	"math/big"
	"testing"

	. "github.com/onsi/gomega"

	"indexer-agent/internal/types"
)

func TestBigIntStringRoundTripsThroughParseBigInt(t *testing.T) {
	g := NewWithT(t)

	v := big.NewInt(123456789)
	parsed := parseBigInt(bigIntString(v))

	g.Expect(parsed).To(Equal(v))
}

func TestBigIntStringIsNullForNilValue(t *testing.T) {
	g := NewWithT(t)

	g.Expect(bigIntString(nil).Valid).To(BeFalse())
}

func TestParseBigIntReturnsNilForInvalidOrNullString(t *testing.T) {
	g := NewWithT(t)

	g.Expect(parseBigInt(sql.NullString{})).To(BeNil())
	g.Expect(parseBigInt(sql.NullString{String: "not-a-number", Valid: true})).To(BeNil())
}

func TestRuleRowToRuleConvertsNullableFields(t *testing.T) {
	g := NewWithT(t)

	row := ruleRow{
		Identifier:          "global",
		IdentifierType:      string(types.IdentifierTypeGroup),
		ProtocolNetwork:     "eip155:1",
		AllocationAmount:    bigIntString(big.NewInt(1000)),
		ParallelAllocations: 2,
		DecisionBasis:       string(types.DecisionBasisAlways),
		RequireSupported:    true,
	}

	rule := row.toRule()

	g.Expect(rule.Identifier).To(Equal("global"))
	g.Expect(rule.IdentifierType).To(Equal(types.IdentifierTypeGroup))
	g.Expect(rule.AllocationAmount).To(Equal(big.NewInt(1000)))
	g.Expect(rule.MaxAllocationPercentage).To(BeNil())
	g.Expect(rule.AllocationLifetime).To(BeNil())
	g.Expect(rule.IsGlobal()).To(BeTrue())
}

func TestRuleRowToRuleSetsOptionalPointerFieldsWhenValid(t *testing.T) {
	g := NewWithT(t)

	row := ruleRow{
		Identifier:              "0x" + "ab",
		IdentifierType:          string(types.IdentifierTypeDeployment),
		MaxAllocationPercentage: sql.NullFloat64{Float64: 0.5, Valid: true},
		AllocationLifetime:      sql.NullInt64{Int64: 28, Valid: true},
	}

	rule := row.toRule()

	g.Expect(rule.MaxAllocationPercentage).NotTo(BeNil())
	g.Expect(*rule.MaxAllocationPercentage).To(Equal(0.5))
	g.Expect(rule.AllocationLifetime).NotTo(BeNil())
	g.Expect(*rule.AllocationLifetime).To(Equal(uint64(28)))
}
