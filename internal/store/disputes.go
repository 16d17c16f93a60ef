package store

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/types"
)

type disputeRow struct {
	AllocationID                   string         `db:"allocation_id"`
	SubgraphDeploymentID           string         `db:"subgraph_deployment_id"`
	AllocationIndexer              string         `db:"allocation_indexer"`
	AllocationAmount               sql.NullString `db:"allocation_amount"`
	AllocationProof                string         `db:"allocation_proof"`
	ClosedEpoch                    int64          `db:"closed_epoch"`
	ClosedEpochStartBlockHash      sql.NullString `db:"closed_epoch_start_block_hash"`
	ClosedEpochStartBlockNumber    sql.NullInt64  `db:"closed_epoch_start_block_number"`
	ClosedEpochReferenceProof      sql.NullString `db:"closed_epoch_reference_proof"`
	PreviousEpochStartBlockHash    sql.NullString `db:"previous_epoch_start_block_hash"`
	PreviousEpochStartBlockNumber  sql.NullInt64  `db:"previous_epoch_start_block_number"`
	PreviousEpochReferenceProof    sql.NullString `db:"previous_epoch_reference_proof"`
	Status                         string         `db:"status"`
}

func (r disputeRow) toDispute() (types.POIDispute, error) {
	depID, err := types.NewDeploymentID(r.SubgraphDeploymentID)
	if err != nil {
		return types.POIDispute{}, err
	}
	d := types.POIDispute{
		AllocationID:         common.HexToAddress(r.AllocationID),
		SubgraphDeploymentID: depID,
		AllocationIndexer:    common.HexToAddress(r.AllocationIndexer),
		AllocationAmount:     parseBigInt(r.AllocationAmount),
		ClosedEpoch:          uint64(r.ClosedEpoch),
		Status:               types.DisputeStatus(r.Status),
	}
	copy(d.AllocationProof[:], common.FromHex(r.AllocationProof))
	if r.ClosedEpochStartBlockHash.Valid {
		d.ClosedEpochStartBlockHash = common.HexToHash(r.ClosedEpochStartBlockHash.String)
	}
	if r.ClosedEpochStartBlockNumber.Valid {
		d.ClosedEpochStartBlockNumber = uint64(r.ClosedEpochStartBlockNumber.Int64)
	}
	if r.ClosedEpochReferenceProof.Valid {
		var p [32]byte
		copy(p[:], common.FromHex(r.ClosedEpochReferenceProof.String))
		d.ClosedEpochReferenceProof = &p
	}
	if r.PreviousEpochStartBlockHash.Valid {
		d.PreviousEpochStartBlockHash = common.HexToHash(r.PreviousEpochStartBlockHash.String)
	}
	if r.PreviousEpochStartBlockNumber.Valid {
		d.PreviousEpochStartBlockNumber = uint64(r.PreviousEpochStartBlockNumber.Int64)
	}
	if r.PreviousEpochReferenceProof.Valid {
		var p [32]byte
		copy(p[:], common.FromHex(r.PreviousEpochReferenceProof.String))
		d.PreviousEpochReferenceProof = &p
	}
	return d, nil
}

// validateDispute rejects records whose allocation indexer is the zero
// address before anything is written, per the "invalid indexer address
// rejected" testable property.
func validateDispute(d types.POIDispute) error {
	if !common.IsHexAddress(d.AllocationIndexer.Hex()) || d.AllocationIndexer == (common.Address{}) {
		return fmt.Errorf("invalid allocation indexer address %q", d.AllocationIndexer.Hex())
	}
	return nil
}

// StorePOIDisputes persists disputes in a single transaction, upserting by
// allocation id. Calling it repeatedly with the same input is a no-op after
// the first call (dispute uniqueness / idempotence, spec §8).
func (s *Store) StorePOIDisputes(disputes []types.POIDispute) ([]types.POIDispute, error) {
	for _, d := range disputes {
		if err := validateDispute(d); err != nil {
			return nil, fmt.Errorf("failed to store pending POI disputes: %w", err)
		}
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to store pending POI disputes: %w", err)
	}
	defer tx.Rollback()

	for _, d := range disputes {
		if err := upsertDispute(tx, d); err != nil {
			return nil, fmt.Errorf("failed to store pending POI disputes: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to store pending POI disputes: %w", err)
	}

	return disputes, nil
}

func upsertDispute(tx execer, d types.POIDispute) error {
	var closedRef, prevRef sql.NullString
	if d.ClosedEpochReferenceProof != nil {
		closedRef = sql.NullString{String: common.Bytes2Hex(d.ClosedEpochReferenceProof[:]), Valid: true}
	}
	if d.PreviousEpochReferenceProof != nil {
		prevRef = sql.NullString{String: common.Bytes2Hex(d.PreviousEpochReferenceProof[:]), Valid: true}
	}

	_, err := tx.Exec(`
		INSERT INTO poi_disputes (
			allocation_id, subgraph_deployment_id, allocation_indexer, allocation_amount,
			allocation_proof, closed_epoch, closed_epoch_start_block_hash,
			closed_epoch_start_block_number, closed_epoch_reference_proof,
			previous_epoch_start_block_hash, previous_epoch_start_block_number,
			previous_epoch_reference_proof, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (allocation_id) DO UPDATE SET
			closed_epoch_reference_proof = EXCLUDED.closed_epoch_reference_proof,
			previous_epoch_reference_proof = EXCLUDED.previous_epoch_reference_proof,
			status = EXCLUDED.status`,
		d.AllocationID.Hex(), d.SubgraphDeploymentID.Hex(), d.AllocationIndexer.Hex(), bigIntString(d.AllocationAmount),
		common.Bytes2Hex(d.AllocationProof[:]), int64(d.ClosedEpoch), d.ClosedEpochStartBlockHash.Hex(),
		int64(d.ClosedEpochStartBlockNumber), closedRef,
		d.PreviousEpochStartBlockHash.Hex(), int64(d.PreviousEpochStartBlockNumber), prevRef, string(d.Status))
	return err
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// POIDisputes returns every persisted dispute across all networks; rows
// whose deployment id does not parse are skipped.
func (s *Store) POIDisputes() ([]types.POIDispute, error) {
	var rows []disputeRow
	if err := s.db.Select(&rows, `SELECT * FROM poi_disputes`); err != nil {
		return nil, fmt.Errorf("fetch poi disputes: %w", err)
	}
	out := make([]types.POIDispute, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDispute()
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
