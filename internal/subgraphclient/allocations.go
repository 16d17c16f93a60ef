package subgraphclient

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/types"
)

// AllocationStatus mirrors the network subgraph's allocation status
// enumeration, used to select which bucket of allocations to fetch.
type AllocationStatus string

const (
	AllocationStatusActive  AllocationStatus = "Active"
	AllocationStatusClosed  AllocationStatus = "Closed"
	AllocationStatusClaimed AllocationStatus = "Claimed"
)

const allocationsQuery = `
query allocations($lastID: String!, $pageSize: Int!, $indexer: String!, $status: AllocationStatus!) {
  allocations(first: $pageSize, where: { id_gt: $lastID, indexer: $indexer, status: $status }, orderBy: id, orderDirection: asc) {
    id
    indexer { id }
    subgraphDeployment { ipfsHash }
    allocatedTokens
    createdAtEpoch
    createdAtBlockHash
    closedAtEpoch
    closedAtBlockHash
    poi
    queryFeesCollected
  }
}`

type allocationPage struct {
	Allocations []struct {
		ID      string `json:"id"`
		Indexer struct{ ID string } `json:"indexer"`
		SubgraphDeployment struct {
			IpfsHash string `json:"ipfsHash"`
		} `json:"subgraphDeployment"`
		AllocatedTokens    string  `json:"allocatedTokens"`
		CreatedAtEpoch     uint64  `json:"createdAtEpoch"`
		CreatedAtBlockHash string  `json:"createdAtBlockHash"`
		ClosedAtEpoch      uint64  `json:"closedAtEpoch"`
		ClosedAtBlockHash  string  `json:"closedAtBlockHash"`
		POI                string  `json:"poi"`
		QueryFeesCollected string  `json:"queryFeesCollected"`
	} `json:"allocations"`
}

// Allocations fetches every allocation for indexer in the given status,
// paginated in ascending-id pages of up to 1000.
func (c *Client) Allocations(ctx context.Context, indexer common.Address, status AllocationStatus) ([]types.Allocation, error) {
	var all []types.Allocation
	lastID := ""

	for {
		var page allocationPage
		if err := c.query(ctx, allocationsQuery, map[string]interface{}{
			"lastID":   lastID,
			"pageSize": pageSize,
			"indexer":  indexer.Hex(),
			"status":   string(status),
		}, &page); err != nil {
			return nil, err
		}

		for _, a := range page.Allocations {
			depID, err := types.NewDeploymentID(a.SubgraphDeployment.IpfsHash)
			if err != nil {
				continue
			}
			tokens, ok := new(big.Int).SetString(a.AllocatedTokens, 10)
			if !ok {
				tokens = big.NewInt(0)
			}
			var poi [32]byte
			if len(a.POI) > 0 {
				copy(poi[:], common.FromHex(a.POI))
			}
			all = append(all, types.Allocation{
				ID:                 common.HexToAddress(a.ID),
				Indexer:            common.HexToAddress(a.Indexer.ID),
				SubgraphDeployment: depID,
				AllocatedTokens:    tokens,
				CreatedAtEpoch:     a.CreatedAtEpoch,
				CreatedAtBlockHash: common.HexToHash(a.CreatedAtBlockHash),
				ClosedAtEpoch:      a.ClosedAtEpoch,
				ClosedAtBlockHash:  common.HexToHash(a.ClosedAtBlockHash),
				POI:                poi,
			})
		}

		if len(page.Allocations) < pageSize {
			break
		}
		lastID = page.Allocations[len(page.Allocations)-1].ID
	}

	return all, nil
}
