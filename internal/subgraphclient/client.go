// Package subgraphclient implements the thin GraphQL client used to read the
// network subgraph and epoch subgraph. The query shape mirrors the request
// pattern in the graphql resolvers package this repository's ambient stack
// is grounded on (a json-encoded {query,variables} payload POSTed over
// plain net/http), since nothing in the retrieval pack ships a dedicated
// outbound GraphQL client library.
package subgraphclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"indexer-agent/internal/types"
)

const (
	// pageSize is the cursor page size used for every paginated query, per
	// the id_gt/ascending-id convention.
	pageSize = 1000

	requestTimeout = 30 * time.Second
)

// Client queries a single GraphQL endpoint (network subgraph or epoch
// subgraph).
type Client struct {
	endpoint string
	http     *http.Client
}

// New builds a Client against the given GraphQL endpoint URL.
func New(endpoint string) *Client {
	return &Client{endpoint: endpoint, http: &http.Client{Timeout: requestTimeout}}
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// query executes a GraphQL query/mutation and decodes the "data" field into
// out.
func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request to %s failed: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql request to %s rejected with status %d", c.endpoint, resp.StatusCode)
	}

	var gr gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("graphql errors from %s: %s", c.endpoint, gr.Errors[0].Message)
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(gr.Data, out)
}

// NetworkDeployment is a published subgraph deployment as seen by the
// network subgraph.
type NetworkDeployment struct {
	ID                  string
	DeploymentID        types.SubgraphDeploymentID
	Chain               string
	StartedTransferToL2 bool
	TransferredToL2     bool
	StakedTokens        *big.Int
	SignalAmount        *big.Int
	QueryFeesAmount     *big.Int
	AllocationCount     int
}

type deploymentPage struct {
	SubgraphDeployments []struct {
		ID                 string `json:"id"`
		IpfsHash           string `json:"ipfsHash"`
		Network            struct{ ID string } `json:"network"`
		StartedTransferToL2 bool  `json:"startedTransferToL2"`
		TransferredToL2     bool  `json:"transferredToL2"`
		StakedTokens        string `json:"stakedTokens"`
		SignalAmount        string `json:"signalAmount"`
		QueryFeesAmount     string `json:"queryFeesAmount"`
		IndexerAllocations  []struct{ ID string } `json:"indexerAllocations"`
	} `json:"subgraphDeployments"`
}

const deploymentsQuery = `
query deployments($lastID: String!, $pageSize: Int!) {
  subgraphDeployments(first: $pageSize, where: { id_gt: $lastID }, orderBy: id, orderDirection: asc) {
    id
    ipfsHash
    network { id }
    startedTransferToL2
    transferredToL2
    stakedTokens
    signalAmount
    queryFeesAmount
    indexerAllocations(where: { status: Active }) { id }
  }
}`

// NetworkDeployments fetches every published subgraph deployment, paginating
// in ascending-id pages of up to 1000 until a short page is returned.
func (c *Client) NetworkDeployments(ctx context.Context) ([]NetworkDeployment, error) {
	var all []NetworkDeployment
	lastID := ""

	for {
		var page deploymentPage
		if err := c.query(ctx, deploymentsQuery, map[string]interface{}{
			"lastID":   lastID,
			"pageSize": pageSize,
		}, &page); err != nil {
			return nil, err
		}

		for _, d := range page.SubgraphDeployments {
			id, err := types.NewDeploymentID(d.IpfsHash)
			if err != nil {
				continue
			}
			all = append(all, NetworkDeployment{
				ID:                  d.ID,
				DeploymentID:        id,
				Chain:               d.Network.ID,
				StartedTransferToL2: d.StartedTransferToL2,
				TransferredToL2:     d.TransferredToL2,
				StakedTokens:        parseAmount(d.StakedTokens),
				SignalAmount:        parseAmount(d.SignalAmount),
				QueryFeesAmount:     parseAmount(d.QueryFeesAmount),
				AllocationCount:     len(d.IndexerAllocations),
			})
		}

		if len(page.SubgraphDeployments) < pageSize {
			break
		}
		lastID = page.SubgraphDeployments[len(page.SubgraphDeployments)-1].ID
	}

	return all, nil
}

// parseAmount parses a GraphQL BigInt-as-string field, returning nil (an
// unset threshold input) rather than zero when the field is empty or
// malformed.
func parseAmount(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}

const isPausedQuery = `{ graphNetworks(first: 1) { isPaused } }`

type isPausedResponse struct {
	GraphNetworks []struct {
		IsPaused bool `json:"isPaused"`
	} `json:"graphNetworks"`
}

// IsPaused queries the one-shot graphNetworks[0].isPaused field.
func (c *Client) IsPaused(ctx context.Context) (bool, error) {
	var resp isPausedResponse
	if err := c.query(ctx, isPausedQuery, nil, &resp); err != nil {
		return false, err
	}
	if len(resp.GraphNetworks) == 0 {
		return false, fmt.Errorf("network subgraph returned no graphNetworks entity")
	}
	return resp.GraphNetworks[0].IsPaused, nil
}
