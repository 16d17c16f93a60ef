package graphnode

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"indexer-agent/internal/types"
)

const requestTimeout = 30 * time.Second

// RPCClient implements Client against a real graph node's admin JSON-RPC
// endpoint and status GraphQL endpoint, the wire-level surface spec §1
// names as an assumed-interface boundary - this is the thin adapter a
// running daemon plugs in to satisfy it.
type RPCClient struct {
	adminEndpoint  string
	statusEndpoint string
	http           *http.Client
}

// NewRPCClient builds an RPCClient against a graph node's admin and status
// endpoints.
func NewRPCClient(adminEndpoint, statusEndpoint string) *RPCClient {
	return &RPCClient{
		adminEndpoint:  adminEndpoint,
		statusEndpoint: statusEndpoint,
		http:           &http.Client{Timeout: requestTimeout},
	}
}

type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonRPCError   `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	payload, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode admin rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.adminEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build admin rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin rpc request %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	var rr jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("decode admin rpc response for %s: %w", method, err)
	}
	if rr.Error != nil {
		return fmt.Errorf("admin rpc %s returned error %d: %s", method, rr.Error.Code, rr.Error.Message)
	}
	if out == nil || len(rr.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rr.Result, out)
}

func (c *RPCClient) CreateSubgraphName(ctx context.Context, name string) error {
	return c.call(ctx, "subgraph_create", map[string]string{"name": name}, nil)
}

func (c *RPCClient) Deploy(ctx context.Context, name string, deployment types.SubgraphDeploymentID) error {
	return c.call(ctx, "subgraph_deploy", map[string]string{
		"name":          name,
		"ipfs_hash":     deployment.IPFSHash(),
	}, nil)
}

func (c *RPCClient) Reassign(ctx context.Context, deployment types.SubgraphDeploymentID, nodeID string) error {
	return c.call(ctx, "subgraph_reassign", map[string]string{
		"ipfs_hash": deployment.IPFSHash(),
		"node_id":   nodeID,
	}, nil)
}

type gqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (c *RPCClient) statusQuery(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode status query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.statusEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build status query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("status query failed: %w", err)
	}
	defer resp.Body.Close()

	var gr gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("decode status query response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("status query errors: %s", gr.Errors[0].Message)
	}
	return json.Unmarshal(gr.Data, out)
}

const indexingStatusesQuery = `{ indexingStatuses { subgraph node synced health chains { network } } }`

type indexingStatusesResponse struct {
	IndexingStatuses []struct {
		Subgraph string `json:"subgraph"`
		Node     string `json:"node"`
	} `json:"indexingStatuses"`
}

func (c *RPCClient) IndexNodeDeployments(ctx context.Context) (map[string][]types.SubgraphDeploymentID, error) {
	var resp indexingStatusesResponse
	if err := c.statusQuery(ctx, indexingStatusesQuery, nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]types.SubgraphDeploymentID)
	for _, s := range resp.IndexingStatuses {
		id, err := types.NewDeploymentID(s.Subgraph)
		if err != nil {
			continue
		}
		out[s.Node] = append(out[s.Node], id)
	}
	return out, nil
}

func (c *RPCClient) LocalDeployments(ctx context.Context) ([]types.SubgraphDeploymentID, error) {
	byNode, err := c.IndexNodeDeployments(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.SubgraphDeploymentID
	for node, deployments := range byNode {
		if node == RemovedNodeID {
			continue
		}
		out = append(out, deployments...)
	}
	return out, nil
}

const proofOfIndexingQuery = `
query poi($deployment: String!, $blockHash: String!, $blockNumber: Int!, $indexer: String!) {
  proofOfIndexing(subgraph: $deployment, blockHash: $blockHash, blockNumber: $blockNumber, indexer: $indexer)
}`

type proofOfIndexingResponse struct {
	ProofOfIndexing *string `json:"proofOfIndexing"`
}

func (c *RPCClient) ProofOfIndexing(ctx context.Context, deployment types.SubgraphDeploymentID, blockHash common.Hash, blockNumber uint64, indexer common.Address) (*[32]byte, error) {
	var resp proofOfIndexingResponse
	if err := c.statusQuery(ctx, proofOfIndexingQuery, map[string]interface{}{
		"deployment":  deployment.IPFSHash(),
		"blockHash":   blockHash.Hex(),
		"blockNumber": blockNumber,
		"indexer":     indexer.Hex(),
	}, &resp); err != nil {
		return nil, err
	}
	if resp.ProofOfIndexing == nil {
		return nil, nil
	}
	raw, err := hex.DecodeString(trimHexPrefix(*resp.ProofOfIndexing))
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("graph node returned malformed proof of indexing %q", *resp.ProofOfIndexing)
	}
	var poi [32]byte
	copy(poi[:], raw)
	return &poi, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0:2] == "0x" {
		return s[2:]
	}
	return s
}
