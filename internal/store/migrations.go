package store

import (
	"database/sql"
	"fmt"
)

// migration is one numbered, idempotent schema step. Each runs inside the
// same transaction as the migration ledger update, per spec §6's "Schema
// evolution is handled by ordered numbered migrations; each migration is
// idempotent ... and runs inside a transaction." This hand-rolled ladder is
// grounded on go-ethereum's statediff/indexer/postgres package (see
// SPEC_FULL.md) rather than a migration framework, since no example in the
// retrieval pack ships one and the idempotent check-then-act style here
// doesn't match what a framework like golang-migrate provides anyway.
type migration struct {
	number int
	name   string
	up     func(tx *sql.Tx) error
}

var migrations = []migration{
	{1, "create indexing_rules", migrateIndexingRules},
	{2, "create poi_disputes", migratePOIDisputes},
	{3, "create actions", migrateActions},
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			number INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := tx.Query(`SELECT number FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return err
		}
		applied[n] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.number] {
			continue
		}
		s.log.Infof("applying migration %d: %s", m.number, m.name)
		if err := m.up(tx); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.number, m.name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (number, name) VALUES ($1, $2)`, m.number, m.name); err != nil {
			return fmt.Errorf("record migration %d: %w", m.number, err)
		}
	}

	return tx.Commit()
}

func migrateIndexingRules(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS indexing_rules (
			identifier TEXT NOT NULL,
			identifier_type TEXT NOT NULL,
			protocol_network TEXT NOT NULL,
			allocation_amount NUMERIC,
			parallel_allocations INTEGER NOT NULL DEFAULT 1,
			max_allocation_percentage DOUBLE PRECISION,
			min_signal NUMERIC,
			max_signal NUMERIC,
			min_stake NUMERIC,
			min_average_query_fees NUMERIC,
			decision_basis TEXT NOT NULL DEFAULT 'rules',
			allocation_lifetime BIGINT,
			require_supported BOOLEAN NOT NULL DEFAULT TRUE,
			auto_renewal BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (identifier, identifier_type, protocol_network)
		)`)
	return err
}

func migratePOIDisputes(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS poi_disputes (
			allocation_id TEXT PRIMARY KEY,
			subgraph_deployment_id TEXT NOT NULL,
			allocation_indexer TEXT NOT NULL,
			allocation_amount NUMERIC,
			allocation_proof TEXT NOT NULL,
			closed_epoch BIGINT NOT NULL,
			closed_epoch_start_block_hash TEXT,
			closed_epoch_start_block_number BIGINT,
			closed_epoch_reference_proof TEXT,
			previous_epoch_start_block_hash TEXT,
			previous_epoch_start_block_number BIGINT,
			previous_epoch_reference_proof TEXT,
			status TEXT NOT NULL
		)`)
	return err
}

func migrateActions(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id SERIAL PRIMARY KEY,
			protocol_network TEXT NOT NULL,
			deployment TEXT NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}
