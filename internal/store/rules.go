package store

import (
	"database/sql"
	"fmt"
	"math/big"

	"indexer-agent/internal/types"
)

type ruleRow struct {
	Identifier              string          `db:"identifier"`
	IdentifierType          string          `db:"identifier_type"`
	ProtocolNetwork         string          `db:"protocol_network"`
	AllocationAmount        sql.NullString  `db:"allocation_amount"`
	ParallelAllocations     int             `db:"parallel_allocations"`
	MaxAllocationPercentage sql.NullFloat64 `db:"max_allocation_percentage"`
	MinSignal               sql.NullString  `db:"min_signal"`
	MaxSignal               sql.NullString  `db:"max_signal"`
	MinStake                sql.NullString  `db:"min_stake"`
	MinAverageQueryFees     sql.NullString  `db:"min_average_query_fees"`
	DecisionBasis           string          `db:"decision_basis"`
	AllocationLifetime      sql.NullInt64   `db:"allocation_lifetime"`
	RequireSupported        bool            `db:"require_supported"`
	AutoRenewal             bool            `db:"auto_renewal"`
}

func bigIntString(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseBigInt(s sql.NullString) *big.Int {
	if !s.Valid {
		return nil
	}
	v, ok := new(big.Int).SetString(s.String, 10)
	if !ok {
		return nil
	}
	return v
}

func (r ruleRow) toRule() types.IndexingRule {
	rule := types.IndexingRule{
		Identifier:              r.Identifier,
		IdentifierType:          types.IdentifierType(r.IdentifierType),
		ProtocolNetwork:         r.ProtocolNetwork,
		AllocationAmount:        parseBigInt(r.AllocationAmount),
		ParallelAllocations:     r.ParallelAllocations,
		MinSignal:               parseBigInt(r.MinSignal),
		MaxSignal:               parseBigInt(r.MaxSignal),
		MinStake:                parseBigInt(r.MinStake),
		MinAverageQueryFees:     parseBigInt(r.MinAverageQueryFees),
		DecisionBasis:           types.DecisionBasis(r.DecisionBasis),
		RequireSupported:        r.RequireSupported,
		AutoRenewal:             r.AutoRenewal,
	}
	if r.MaxAllocationPercentage.Valid {
		v := r.MaxAllocationPercentage.Float64
		rule.MaxAllocationPercentage = &v
	}
	if r.AllocationLifetime.Valid {
		v := uint64(r.AllocationLifetime.Int64)
		rule.AllocationLifetime = &v
	}
	return rule
}

// IndexingRules returns every rule row for network. When merged is true,
// SUBGRAPH and DEPLOYMENT rules inherit unset fields from the network's
// global rule, per Operator.indexingRules(merged).
func (s *Store) IndexingRules(network string, merged bool) ([]types.IndexingRule, error) {
	var rows []ruleRow
	if err := s.db.Select(&rows, `SELECT * FROM indexing_rules WHERE protocol_network = $1`, network); err != nil {
		return nil, fmt.Errorf("fetch indexing rules for %s: %w", network, err)
	}

	rules := make([]types.IndexingRule, 0, len(rows))
	var global *types.IndexingRule
	for _, r := range rows {
		rule := r.toRule()
		rules = append(rules, rule)
		if rule.IsGlobal() {
			g := rule
			global = &g
		}
	}

	if merged && global != nil {
		for i, r := range rules {
			rules[i] = r.MergeWithGlobal(*global)
		}
	}

	return rules, nil
}

// EnsureGlobalIndexingRule inserts the default "global" rule for network if
// none exists yet. Idempotent: a second call is a no-op.
func (s *Store) EnsureGlobalIndexingRule(network string, defaultAllocationAmount *big.Int) error {
	var count int
	if err := s.db.Get(&count, `
		SELECT count(*) FROM indexing_rules
		WHERE protocol_network = $1 AND identifier = $2 AND identifier_type = $3`,
		network, types.GlobalIdentifier, string(types.IdentifierTypeGroup)); err != nil {
		return fmt.Errorf("check for existing global rule: %w", err)
	}
	if count > 0 {
		return nil
	}

	rule := types.DefaultGlobalRule(network, defaultAllocationAmount)
	return s.upsertRule(rule)
}

func (s *Store) upsertRule(rule types.IndexingRule) error {
	var lifetime sql.NullInt64
	if rule.AllocationLifetime != nil {
		lifetime = sql.NullInt64{Int64: int64(*rule.AllocationLifetime), Valid: true}
	}
	var maxPct sql.NullFloat64
	if rule.MaxAllocationPercentage != nil {
		maxPct = sql.NullFloat64{Float64: *rule.MaxAllocationPercentage, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO indexing_rules (
			identifier, identifier_type, protocol_network, allocation_amount,
			parallel_allocations, max_allocation_percentage, min_signal, max_signal,
			min_stake, min_average_query_fees, decision_basis, allocation_lifetime,
			require_supported, auto_renewal
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (identifier, identifier_type, protocol_network) DO UPDATE SET
			allocation_amount = EXCLUDED.allocation_amount,
			parallel_allocations = EXCLUDED.parallel_allocations,
			max_allocation_percentage = EXCLUDED.max_allocation_percentage,
			min_signal = EXCLUDED.min_signal,
			max_signal = EXCLUDED.max_signal,
			min_stake = EXCLUDED.min_stake,
			min_average_query_fees = EXCLUDED.min_average_query_fees,
			decision_basis = EXCLUDED.decision_basis,
			allocation_lifetime = EXCLUDED.allocation_lifetime,
			require_supported = EXCLUDED.require_supported,
			auto_renewal = EXCLUDED.auto_renewal`,
		rule.Identifier, string(rule.IdentifierType), rule.ProtocolNetwork, bigIntString(rule.AllocationAmount),
		rule.ParallelAllocations, maxPct, bigIntString(rule.MinSignal), bigIntString(rule.MaxSignal),
		bigIntString(rule.MinStake), bigIntString(rule.MinAverageQueryFees), string(rule.DecisionBasis), lifetime,
		rule.RequireSupported, rule.AutoRenewal)
	if err != nil {
		return fmt.Errorf("upsert indexing rule %s/%s/%s: %w", rule.ProtocolNetwork, rule.IdentifierType, rule.Identifier, err)
	}
	return nil
}
