package subgraphclient

import (
	"context"
	"time"

	"indexer-agent/internal/types"
)

const subgraphsQuery = `
query subgraphs($lastID: String!, $pageSize: Int!) {
  subgraphs(first: $pageSize, where: { id_gt: $lastID }, orderBy: id, orderDirection: asc) {
    id
    versionCount
    versions(orderBy: version, orderDirection: asc) {
      version
      createdAt
      subgraphDeployment { ipfsHash }
    }
  }
}`

type subgraphPage struct {
	Subgraphs []struct {
		ID           string `json:"id"`
		VersionCount uint32 `json:"versionCount"`
		Versions     []struct {
			Version            uint32 `json:"version"`
			CreatedAt          int64  `json:"createdAt"`
			SubgraphDeployment struct {
				IpfsHash string `json:"ipfsHash"`
			} `json:"subgraphDeployment"`
		} `json:"versions"`
	} `json:"subgraphs"`
}

// Subgraphs fetches every versioned subgraph, paginated in ascending-id
// pages of up to 1000.
func (c *Client) Subgraphs(ctx context.Context) ([]types.SubgraphID, error) {
	var all []types.SubgraphID
	lastID := ""

	for {
		var page subgraphPage
		if err := c.query(ctx, subgraphsQuery, map[string]interface{}{
			"lastID":   lastID,
			"pageSize": pageSize,
		}, &page); err != nil {
			return nil, err
		}

		for _, s := range page.Subgraphs {
			sub := types.SubgraphID{ID: s.ID, VersionCount: s.VersionCount}
			for _, v := range s.Versions {
				depID, err := types.NewDeploymentID(v.SubgraphDeployment.IpfsHash)
				if err != nil {
					continue
				}
				sub.Versions = append(sub.Versions, types.SubgraphVersion{
					Version:    v.Version,
					CreatedAt:  time.Unix(v.CreatedAt, 0).UTC(),
					Deployment: depID,
				})
			}
			all = append(all, sub)
		}

		if len(page.Subgraphs) < pageSize {
			break
		}
		lastID = page.Subgraphs[len(page.Subgraphs)-1].ID
	}

	return all, nil
}
